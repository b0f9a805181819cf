// Package middleware holds the HTTP middleware stack of the development
// server. Middlewares are applied in order, so the first one listed is the
// outermost wrapper.
package middleware

import (
	"net/http"
)

// Middleware represents a single middleware function
type Middleware func(http.Handler) http.Handler

// Chain is an ordered list of middlewares.
type Chain struct {
	middlewares []Middleware
}

// NewChain creates a chain from middlewares, outermost first.
func NewChain(middlewares ...Middleware) *Chain {
	c := &Chain{middlewares: make([]Middleware, 0, len(middlewares))}
	for _, m := range middlewares {
		c.Use(m)
	}
	return c
}

// Use appends a middleware; nil values are ignored.
func (c *Chain) Use(m Middleware) {
	if m != nil {
		c.middlewares = append(c.middlewares, m)
	}
}

// Len returns the number of middlewares.
func (c *Chain) Len() int {
	return len(c.middlewares)
}

// Apply wraps handler with every middleware of the chain.
func (c *Chain) Apply(handler http.Handler) http.Handler {
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		handler = c.middlewares[i](handler)
	}
	return handler
}
