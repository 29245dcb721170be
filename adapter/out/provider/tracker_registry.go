// Package provider maps provider names to mailbox factories.
package provider

import (
	"sort"
	"strings"

	"tracker_server/core/port/out"
)

// Registry is built once at startup and read concurrently afterwards.
type Registry struct {
	factories map[string]out.MailboxFactory
}

var _ out.MailboxRegistry = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]out.MailboxFactory)}
}

// Register adds a factory under name. Names are case-insensitive.
func (r *Registry) Register(name string, factory out.MailboxFactory) *Registry {
	r.factories[strings.ToLower(name)] = factory
	return r
}

func (r *Registry) Lookup(provider string) (out.MailboxFactory, bool) {
	f, ok := r.factories[strings.ToLower(strings.TrimSpace(provider))]
	return f, ok
}

// Providers lists the registered names in sorted order.
func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
