// Package middleware holds the HTTP cross-cutting concerns: request ids,
// access logging, panic recovery, CORS, rate limiting, and the owner
// identity the API surface keys everything on.
package middleware

import "net/http"

// Middleware wraps an http.Handler with one cross-cutting concern.
type Middleware func(http.Handler) http.Handler

// Chain folds several middleware into one. The first argument becomes the
// outermost wrapper, so Chain(a, b)(h) serves a request through a, then b,
// then h.
func Chain(mws ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		wrapped := next
		for i := len(mws) - 1; i >= 0; i-- {
			wrapped = mws[i](wrapped)
		}
		return wrapped
	}
}
