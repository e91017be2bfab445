// Package config holds the crawl configuration and its built-in defaults.
package config

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"cloudeng.io/cmdutil/cmdyaml"
	"gopkg.in/yaml.v3"

	"catalogcrawler/internal/catalog"
	"catalogcrawler/internal/hosts"
	"catalogcrawler/internal/parser"
)

const siteRoot = "https://repack-games.com/category/"

var defaultCategories = []string{
	"latest-updates/", "action-games/", "anime-games/", "adventure-games/",
	"building-games/", "exploration/", "multiplayer-games/", "open-world-game/",
	"fighting-games/", "horror-games/", "racing-game/", "shooting-games/",
	"rpg-pc-games/", "puzzle/", "sport-game/", "survival-games/",
	"simulation-game/", "strategy-games/", "sci-fi-games/", "adult/",
}

// Config is the YAML configuration of a crawl. Empty fields take defaults.
type Config struct {
	Name          string            `yaml:"name"`
	Categories    []string          `yaml:"categories"`
	Hosts         []hosts.Spec      `yaml:"hosts"`
	Signatures    []string          `yaml:"signatures"`
	IgnoredTitles []string          `yaml:"ignored_titles"`
	Headers       map[string]string `yaml:"headers"`
	Selectors     parser.Selectors  `yaml:"selectors"`
}

// Default returns the built-in configuration.
func Default() Config {
	categories := make([]string, 0, len(defaultCategories))
	for _, category := range defaultCategories {
		categories = append(categories, siteRoot+category)
	}

	return Config{
		Name:          catalog.DefaultName,
		Categories:    categories,
		Hosts:         hosts.Default(),
		Signatures:    hosts.DefaultSignatures(),
		IgnoredTitles: []string{"FULL UNLOCKED", "CRACKSTATUS"},
		Headers:       DefaultHeaders(),
		Selectors:     parser.DefaultSelectors(),
	}
}

// DefaultHeaders returns the request headers sent with every fetch.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.5",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
	}
}

// Load reads the YAML file at path over the defaults. An empty path yields
// the defaults. Unknown fields are rejected.
func Load(ctx context.Context, path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}

	var cfg Config
	if err := cmdyaml.ParseConfigFileStrict(ctx, path, &cfg); err != nil {
		return Config{}, err
	}

	cfg = cfg.WithDefaults()

	return cfg, cfg.Validate()
}

// Parse decodes YAML text over the defaults.
func Parse(text string) (Config, error) {
	var cfg Config
	if err := cmdyaml.ParseConfigStringStrict(text, &cfg); err != nil {
		return Config{}, err
	}

	cfg = cfg.WithDefaults()

	return cfg, cfg.Validate()
}

// WithDefaults fills every empty field from Default. Headers are merged,
// configured values winning.
func (c Config) WithDefaults() Config {
	defaults := Default()

	if c.Name == "" {
		c.Name = defaults.Name
	}

	if len(c.Categories) == 0 {
		c.Categories = defaults.Categories
	}

	if len(c.Hosts) == 0 {
		c.Hosts = defaults.Hosts
	}

	if len(c.Signatures) == 0 {
		c.Signatures = defaults.Signatures
	}

	if c.IgnoredTitles == nil {
		c.IgnoredTitles = defaults.IgnoredTitles
	}

	headers := defaults.Headers
	for key, value := range c.Headers {
		headers[key] = value
	}

	c.Headers = headers

	selectors := defaults.Selectors
	if c.Selectors.ListingItem != "" {
		selectors.ListingItem = c.Selectors.ListingItem
	}

	if c.Selectors.LastPage != "" {
		selectors.LastPage = c.Selectors.LastPage
	}

	if c.Selectors.Title != "" {
		selectors.Title = c.Selectors.Title
	}

	if c.Selectors.Date != "" {
		selectors.Date = c.Selectors.Date
	}

	c.Selectors = selectors

	return c
}

// Validate checks category URLs and host declarations.
func (c Config) Validate() error {
	for _, category := range c.Categories {
		parsed, err := url.Parse(strings.TrimSpace(category))
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return fmt.Errorf("category %q: not an absolute http(s) URL", category)
		}
	}

	if _, err := hosts.NewRegistry(c.Hosts); err != nil {
		return fmt.Errorf("hosts: %w", err)
	}

	return nil
}

// Dump renders c as YAML that Load accepts.
func (c Config) Dump() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}

	return data, nil
}
