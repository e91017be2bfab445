package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Load reads a persisted catalog. A missing file yields an empty document
// named DefaultName. A file that is not a valid catalog is an error, so it
// is never silently replaced.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Document{Name: DefaultName, Downloads: []Entry{}}, nil
	}

	if err != nil {
		return Document{}, fmt.Errorf("read catalog %q: %w", path, err)
	}

	return Decode(data)
}

// Decode parses catalog JSON.
func Decode(data []byte) (Document, error) {
	doc := Document{}
	if len(bytes.TrimSpace(data)) == 0 {
		return Document{Name: DefaultName, Downloads: []Entry{}}, nil
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("decode catalog: %w", err)
	}

	if doc.Name == "" {
		doc.Name = DefaultName
	}

	for i := range doc.Downloads {
		if doc.Downloads[i].URIs == nil {
			doc.Downloads[i].URIs = []string{}
		}
	}

	if doc.Downloads == nil {
		doc.Downloads = []Entry{}
	}

	return doc, nil
}

// Encode renders doc as indented UTF-8 JSON ending with a newline.
func Encode(doc Document) ([]byte, error) {
	if doc.Downloads == nil {
		doc.Downloads = []Entry{}
	}

	data, err := EncodeIndented(doc)
	if err != nil {
		return nil, fmt.Errorf("encode catalog: %w", err)
	}

	return data, nil
}

// EncodeIndented renders v with four-space indentation and without HTML escaping.
func EncodeIndented(v any) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "    ")

	if err := encoder.Encode(v); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Save rewrites path with doc. The file is replaced atomically.
func Save(path string, doc Document) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}

	return WriteFileAtomic(path, data)
}

// WriteFileAtomic writes data to a temporary file next to path and renames it.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return fmt.Errorf("write %q: %w", tmpName, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("close %q: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("rename to %q: %w", path, err)
	}

	return nil
}
