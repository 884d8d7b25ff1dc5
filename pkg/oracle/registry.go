// Package oracle collects the pieces used to build a ports.RiskOracle:
// a per-provider registry, a retry decorator, the prompt and response
// format spoken with language models, and an offline heuristic oracle.
package oracle

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/ports"
)

// DefaultProvider is used when a risk_eval node does not name one.
const DefaultProvider = "deepseek"

// Registry routes a request to the oracle registered for its provider.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]ports.RiskOracle
	fallback  string
}

// NewRegistry creates an empty registry. Requests without a provider go to
// fallback; an empty fallback means DefaultProvider.
func NewRegistry(fallback string) *Registry {
	if fallback == "" {
		fallback = DefaultProvider
	}
	return &Registry{
		providers: make(map[string]ports.RiskOracle),
		fallback:  fallback,
	}
}

// Register adds an oracle under a provider name.
// If the name is already taken, it is overwritten.
func (r *Registry) Register(name string, o ports.RiskOracle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = o
}

// Providers returns the registered names, sorted.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Evaluate implements ports.RiskOracle.
func (r *Registry) Evaluate(ctx context.Context, req ports.RiskRequest) (domain.RiskAssessment, error) {
	name := req.Provider
	if name == "" {
		name = r.fallback
	}

	r.mu.RLock()
	o, ok := r.providers[name]
	r.mu.RUnlock()

	if !ok {
		return domain.RiskAssessment{}, fmt.Errorf("oracle provider not registered: %s", name)
	}

	a, err := o.Evaluate(ctx, req)
	if err != nil {
		return a, err
	}
	if a.Provider == "" {
		a.Provider = name
	}
	return a, nil
}
