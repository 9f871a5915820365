// Package endpoint turns a user-supplied debugging endpoint into an open
// WebSocket connection: scheme validation, DNS pre-check, HTTP discovery of
// the debugger URL and a bounded connect.
package endpoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds a whole connect attempt when Options.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// readLimit caps a single inbound frame. Screenshots and large DOM dumps
// exceed the websocket package default by orders of magnitude.
const readLimit = 128 << 20

// Options configures Dial.
type Options struct {
	// Timeout bounds DNS check, discovery and handshake together.
	Timeout time.Duration

	// CheckDNS resolves the host before any connection is attempted.
	CheckDNS bool

	// Header is sent with discovery requests and the WebSocket handshake.
	Header http.Header

	// HTTPClient is used for discovery and the handshake. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Resolver is used when CheckDNS is set. Defaults to net.DefaultResolver.
	Resolver Resolver

	Logger logrus.FieldLogger
}

func (o Options) logger() logrus.FieldLogger {
	if o.Logger != nil {
		return o.Logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return http.DefaultClient
}

// Parse validates an endpoint string. Only ws, wss, http and https
// endpoints with a host are accepted.
func Parse(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &Error{Kind: KindConfig, Op: "parse", Err: ErrNoEndpoint}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, &Error{Kind: KindConfig, Op: "parse", Err: err}
	}

	u.Scheme = strings.ToLower(u.Scheme)
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return nil, &Error{Kind: KindConfig, Op: "parse", URL: raw, Err: ErrUnsupportedScheme}
	}

	if u.Host == "" {
		return nil, &Error{Kind: KindConfig, Op: "parse", URL: raw, Err: ErrMissingHost}
	}
	return u, nil
}

// GuessWebSocketURL rewrites an http(s) URL to its ws(s) equivalent,
// defaulting an empty path to "/". Other URLs are returned unchanged.
func GuessWebSocketURL(u *url.URL) string {
	g := *u
	switch g.Scheme {
	case "http":
		g.Scheme = "ws"
	case "https":
		g.Scheme = "wss"
	default:
		return g.String()
	}
	if g.Path == "" {
		g.Path = "/"
	}
	return g.String()
}

// Dial resolves raw to a WebSocket debugger URL and connects to it.
// For http(s) endpoints the scheme-swapped URL is tried first, then the
// discovery document at the URL itself and at /json/version.
// It returns the open connection and the URL it is connected to.
func Dial(ctx context.Context, raw string, opts Options) (*websocket.Conn, string, error) {
	u, err := Parse(raw)
	if err != nil {
		return nil, "", err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log := opts.logger()

	if opts.CheckDNS {
		if err := CheckHost(ctx, opts.Resolver, u.Hostname()); err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, "", &Error{Kind: KindTimeout, Op: "lookup", URL: u.Hostname(), Err: ctx.Err()}
			}
			return nil, "", err
		}
	}

	if u.Scheme == "ws" || u.Scheme == "wss" {
		conn, err := dialWebSocket(ctx, u.String(), opts)
		if err != nil {
			return nil, "", err
		}
		return conn, u.String(), nil
	}

	guess := GuessWebSocketURL(u)
	conn, err := dialWebSocket(ctx, guess, opts)
	if err == nil {
		return conn, guess, nil
	}
	if KindOf(err) == KindTimeout {
		return nil, "", err
	}
	log.WithField("url", Redact(guess)).WithError(err).Debug("direct websocket attempt failed, trying discovery")

	wsURL, err := Discover(ctx, u, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", &Error{Kind: KindTimeout, Op: "discover", URL: u.String(), Err: ctx.Err()}
		}
		return nil, "", err
	}
	log.WithField("url", Redact(wsURL)).Debug("discovered debugger url")

	conn, err = dialWebSocket(ctx, wsURL, opts)
	if err != nil {
		return nil, "", err
	}
	return conn, wsURL, nil
}

func dialWebSocket(ctx context.Context, wsURL string, opts Options) (*websocket.Conn, error) {
	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPClient: opts.HTTPClient,
		HTTPHeader: opts.Header,
	})
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &Error{Kind: KindTimeout, Op: "connect", URL: wsURL, Err: ctx.Err()}
		}
		if resp != nil {
			err = fmt.Errorf("handshake status %d: %w", resp.StatusCode, err)
		}
		return nil, &Error{Kind: KindTransport, Op: "connect", URL: wsURL, Err: err}
	}
	conn.SetReadLimit(readLimit)
	return conn, nil
}
