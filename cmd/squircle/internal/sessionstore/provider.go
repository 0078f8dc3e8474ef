package sessionstore

import "sync"

// Provider is the process-wide handle to the session store. The factory runs
// at most once, on first Get; every caller observes the same Store or the
// same construction error.
type Provider struct {
	get func() (Store, error)
}

// NewProvider wraps factory behind a single-initialization accessor.
func NewProvider(factory func() (Store, error)) *Provider {
	return &Provider{get: sync.OnceValues(factory)}
}

// StaticProvider returns a Provider for an already constructed store.
func StaticProvider(s Store) *Provider {
	return NewProvider(func() (Store, error) { return s, nil })
}

// Get returns the shared store, constructing it on first use.
func (p *Provider) Get() (Store, error) {
	return p.get()
}
