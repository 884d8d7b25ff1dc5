// Package middleware wraps a ports.TraceStore to protect what runs persist:
// envelope encryption with key rotation, and masking of sensitive fields.
package middleware

import "github.com/aretw0/quorum/pkg/ports"

// Middleware allows wrapping a TraceStore to add behavior.
type Middleware func(ports.TraceStore) ports.TraceStore

// Chain applies middlewares so the first one sees a result first on save.
func Chain(store ports.TraceStore, mws ...Middleware) ports.TraceStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
