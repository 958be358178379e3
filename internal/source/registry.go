// Package source holds the static catalog of sports sections the harvester crawls.
package source

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Definition describes one crawlable section.
type Definition struct {
	ID                string `json:"id"`
	BaseURL           string `json:"base_url"`
	CategoryLabel     string `json:"category"`
	RequiresScripting bool   `json:"requires_scripting"`
}

// PageURL returns the index URL for the given 1-based page number.
// Page 1 is the base URL itself; later pages carry a page query parameter.
func (d Definition) PageURL(page int) string {
	if page <= 1 {
		return d.BaseURL
	}
	u, err := url.Parse(d.BaseURL)
	if err != nil {
		return d.BaseURL
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

// Host returns the scheme and host portion of the base URL.
func (d Definition) Host() string {
	u, err := url.Parse(d.BaseURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// Registry maps source identifiers to definitions. It is immutable after construction.
type Registry struct {
	defs  map[string]Definition
	order []string
}

// NewRegistry builds a registry from the supplied definitions.
func NewRegistry(defs []Definition) (*Registry, error) {
	r := &Registry{defs: make(map[string]Definition, len(defs))}
	for _, def := range defs {
		id := strings.TrimSpace(def.ID)
		if id == "" {
			return nil, fmt.Errorf("source id is required")
		}
		if _, dup := r.defs[id]; dup {
			return nil, fmt.Errorf("duplicate source id %q", id)
		}
		u, err := url.Parse(def.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("source %q: invalid base url %q", id, def.BaseURL)
		}
		def.ID = id
		r.defs[id] = def
		r.order = append(r.order, id)
	}
	return r, nil
}

// Default returns the registry of all built-in sources.
func Default() *Registry {
	r, err := NewRegistry(builtin)
	if err != nil {
		panic(fmt.Sprintf("builtin source catalog invalid: %v", err))
	}
	return r
}

// Lookup returns the definition for id.
func (r *Registry) Lookup(id string) (Definition, bool) {
	def, ok := r.defs[id]
	return def, ok
}

// All returns every definition in catalog order.
func (r *Registry) All() []Definition {
	out := make([]Definition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.defs[id])
	}
	return out
}

// IDs returns the sorted list of known identifiers.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	sort.Strings(ids)
	return ids
}

// Len reports the number of registered sources.
func (r *Registry) Len() int {
	return len(r.order)
}
