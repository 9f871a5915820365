package cdp

import (
	"context"

	"github.com/grantcarthew/cdpctl/internal/endpoint"
)

// Connect resolves raw (ws, wss, http or https) to a debugger WebSocket,
// connects within opts.Timeout and returns a client reading from it.
// Failures are *endpoint.Error values categorised by endpoint.Kind.
func Connect(ctx context.Context, raw string, opts endpoint.Options, clientOpts ...Option) (*Client, error) {
	conn, wsURL, err := endpoint.Dial(ctx, raw, opts)
	if err != nil {
		return nil, err
	}
	if opts.Logger != nil {
		opts.Logger.WithField("url", endpoint.Redact(wsURL)).Debug("connected")
	}
	return NewClient(conn, clientOpts...), nil
}

// Dial connects to a CDP WebSocket endpoint with default options.
func Dial(ctx context.Context, wsURL string, clientOpts ...Option) (*Client, error) {
	return Connect(ctx, wsURL, endpoint.Options{}, clientOpts...)
}
