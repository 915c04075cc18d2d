// Package middleware wraps draft stores with extra behavior.
package middleware

import "github.com/aretw0/flowdeck/pkg/ports"

// Middleware allows wrapping a DraftStore to add behavior.
type Middleware func(ports.DraftStore) ports.DraftStore

// Wrap applies the middlewares in order, so the first one is outermost.
func Wrap(store ports.DraftStore, mws ...Middleware) ports.DraftStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
