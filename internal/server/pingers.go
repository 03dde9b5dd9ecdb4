package server

import "context"

// pingFunc adapts a plain probe function plus a label to the Pinger
// interface. The concrete dependencies (vector store, embedding API, chat
// model, log store) each expose a Ping method; this adapter names them for
// readiness responses without each package importing the server.
type pingFunc struct {
	name string
	fn   func(ctx context.Context) error
}

// NewPinger wraps fn as a named Pinger.
func NewPinger(name string, fn func(ctx context.Context) error) Pinger {
	return &pingFunc{name: name, fn: fn}
}

// Name returns the dependency label used in readiness responses.
func (p *pingFunc) Name() string { return p.name }

// Ping delegates to the wrapped probe function.
func (p *pingFunc) Ping(ctx context.Context) error { return p.fn(ctx) }
