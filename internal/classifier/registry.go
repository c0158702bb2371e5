package classifier

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	apperrors "github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/errors"
)

// ErrRegistrySealed is returned by Register after Seal.
var ErrRegistrySealed = errors.New("registry is sealed")

// Registry maps model ids to artifacts. It is filled at startup and sealed;
// after Seal all reads are lock-free.
type Registry struct {
	mu        sync.Mutex
	sealed    atomic.Bool
	artifacts map[string]Artifact
	ids       []string
}

// NewRegistry returns an empty, unsealed registry.
func NewRegistry() *Registry {
	return &Registry{artifacts: make(map[string]Artifact)}
}

// Register adds a under id. Duplicate ids and registration after Seal fail.
func (r *Registry) Register(id string, a Artifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed.Load() {
		return fmt.Errorf("registering %s: %w", id, ErrRegistrySealed)
	}
	if id == "" || a == nil {
		return fmt.Errorf("registering %q: empty id or nil artifact", id)
	}
	if _, exists := r.artifacts[id]; exists {
		return fmt.Errorf("model %s already registered", id)
	}
	r.artifacts[id] = a
	return nil
}

// Seal freezes the registry.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed.Load() {
		return
	}
	ids := make([]string, 0, len(r.artifacts))
	for id := range r.artifacts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	r.ids = ids
	r.sealed.Store(true)
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	return r.sealed.Load()
}

// Get returns the artifact registered under id or ErrUnknownModel.
func (r *Registry) Get(id string) (Artifact, error) {
	if !r.sealed.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	a, ok := r.artifacts[id]
	if !ok {
		return nil, fmt.Errorf("model %q: %w", id, apperrors.ErrUnknownModel)
	}
	return a, nil
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	if r.sealed.Load() {
		out := make([]string, len(r.ids))
		copy(out, r.ids)
		return out
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.artifacts))
	for id := range r.artifacts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) Len() int {
	return len(r.IDs())
}
