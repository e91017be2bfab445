package hosts

// Registry holds the recognized hosts in priority order.
type Registry struct {
	hosts []Host
}

// NewRegistry builds a registry from specs. The first matching host wins.
func NewRegistry(specs []Spec) (*Registry, error) {
	registry := &Registry{hosts: make([]Host, 0, len(specs))}

	seen := map[string]bool{}
	for _, spec := range specs {
		host, err := New(spec)
		if err != nil {
			return nil, err
		}

		if seen[host.Name()] {
			continue
		}

		seen[host.Name()] = true
		registry.hosts = append(registry.hosts, host)
	}

	return registry, nil
}

// Lookup returns the host link belongs to.
func (r *Registry) Lookup(link string) (Host, bool) {
	for _, host := range r.hosts {
		if host.Matches(link) {
			return host, true
		}
	}

	return nil, false
}

// Filter keeps recognized links, at most one per host, preserving the first
// occurrence for each host.
func (r *Registry) Filter(links []string) []string {
	kept := []string{}
	seen := map[string]bool{}

	for _, link := range links {
		host, ok := r.Lookup(link)
		if !ok || seen[host.Name()] {
			continue
		}

		seen[host.Name()] = true
		kept = append(kept, link)
	}

	return kept
}

// OnlyLowTrust reports whether links is a single link on a low-trust host.
func (r *Registry) OnlyLowTrust(links []string) bool {
	if len(links) != 1 {
		return false
	}

	host, ok := r.Lookup(links[0])

	return ok && host.LowTrust()
}
