package endpoint

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantcarthew/cdpctl/internal/cdptest"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "ws", input: "ws://127.0.0.1:9222/devtools/browser/abc"},
		{name: "wss", input: "wss://browser.example.com/session?token=x"},
		{name: "http", input: "http://localhost:9222"},
		{name: "https uppercase scheme", input: "HTTPS://browser.example.com"},
		{name: "empty", input: "  ", wantErr: ErrNoEndpoint},
		{name: "ftp", input: "ftp://host/path", wantErr: ErrUnsupportedScheme},
		{name: "bare host", input: "localhost:9222", wantErr: ErrUnsupportedScheme},
		{name: "no host", input: "ws:///path", wantErr: ErrMissingHost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			u, err := Parse(tt.input)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, KindConfig, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, u.Host)
		})
	}
}

func TestGuessWebSocketURL(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"http://localhost:9222":                       "ws://localhost:9222/",
		"https://browser.example.com/session?token=x": "wss://browser.example.com/session?token=x",
		"ws://localhost:9222/devtools/browser/abc":    "ws://localhost:9222/devtools/browser/abc",
	}
	for in, want := range tests {
		u, err := url.Parse(in)
		require.NoError(t, err)
		assert.Equal(t, want, GuessWebSocketURL(u), in)
	}
}

func TestDial_UnsupportedSchemeBeforeNetwork(t *testing.T) {
	t.Parallel()

	_, _, err := Dial(context.Background(), "ftp://host/path", Options{
		CheckDNS: true,
		Resolver: resolverFunc(func(context.Context, string) ([]string, error) {
			t.Error("resolver must not be called")
			return nil, nil
		}),
	})
	require.Error(t, err)
	assert.Equal(t, KindConfig, KindOf(err))
	assert.Contains(t, err.Error(), "configuration error")
}

func TestDial_DNSFailureIsDistinct(t *testing.T) {
	t.Parallel()

	_, _, err := Dial(context.Background(), "ws://no-such-host.invalid:9222/devtools", Options{
		CheckDNS: true,
		Resolver: resolverFunc(func(context.Context, string) ([]string, error) {
			return nil, &net.DNSError{Err: "no such host", Name: "no-such-host.invalid", IsNotFound: true}
		}),
	})
	require.Error(t, err)
	assert.Equal(t, KindDNS, KindOf(err))
	assert.Contains(t, err.Error(), "dns resolution failed")
}

func TestDial_WebSocketEndpoint(t *testing.T) {
	t.Parallel()

	srv := cdptest.NewServer(t)
	conn, wsURL, err := Dial(context.Background(), srv.WebSocketURL(), Options{Timeout: 2 * time.Second})
	require.NoError(t, err)
	defer conn.CloseNow()
	assert.Equal(t, srv.WebSocketURL(), wsURL)
}

func TestDial_HTTPEndpointFallsBackToDiscovery(t *testing.T) {
	t.Parallel()

	srv := cdptest.NewServer(t)
	conn, wsURL, err := Dial(context.Background(), srv.URL, Options{Timeout: 2 * time.Second})
	require.NoError(t, err)
	defer conn.CloseNow()
	assert.Equal(t, srv.WebSocketURL(), wsURL)
}

func TestDial_SchemeSwapHeuristic(t *testing.T) {
	t.Parallel()

	srv := cdptest.NewServer(t)
	httpURL := "http" + strings.TrimPrefix(srv.WebSocketURL(), "ws")

	conn, wsURL, err := Dial(context.Background(), httpURL, Options{Timeout: 2 * time.Second})
	require.NoError(t, err)
	defer conn.CloseNow()
	assert.Equal(t, srv.WebSocketURL(), wsURL)
}

func TestDial_ForwardsHeaders(t *testing.T) {
	t.Parallel()

	srv := cdptest.NewServer(t)
	srv.RequireHeader("Authorization", "Bearer s3cret")

	_, _, err := Dial(context.Background(), srv.URL, Options{Timeout: 2 * time.Second})
	require.Error(t, err)
	assert.Equal(t, KindDiscovery, KindOf(err))

	header := http.Header{}
	header.Set("Authorization", "Bearer s3cret")
	conn, _, err := Dial(context.Background(), srv.URL, Options{Timeout: 2 * time.Second, Header: header})
	require.NoError(t, err)
	conn.CloseNow()
}

func TestDial_ConnectTimeout(t *testing.T) {
	t.Parallel()

	// Accepts the TCP connection but never answers the handshake.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()
	defer func() {
		select {
		case c := <-accepted:
			c.Close()
		default:
		}
	}()

	start := time.Now()
	_, _, err = Dial(context.Background(), "ws://"+ln.Addr().String()+"/devtools", Options{Timeout: 100 * time.Millisecond})
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDial_TransportError(t *testing.T) {
	t.Parallel()

	// Reserve a port and close it so the connection is refused.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, _, err = Dial(context.Background(), "ws://"+addr+"/devtools", Options{Timeout: 2 * time.Second})
	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
		wantErr string
	}{
		{
			name: "document at base url",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"webSocketDebuggerUrl":"ws://host/devtools/abc"}`))
			},
			want: "ws://host/devtools/abc",
		},
		{
			name: "document at json version",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/json/version" {
					http.NotFound(w, r)
					return
				}
				w.Write([]byte(`{"Browser":"Chrome","webSocketDebuggerUrl":"ws://host/devtools/abc"}`))
			},
			want: "ws://host/devtools/abc",
		},
		{
			name: "non 200",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", http.StatusForbidden)
			},
			wantErr: "unexpected status: 403",
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"webSocketDebuggerUrl":`))
			},
			wantErr: "malformed discovery document",
		},
		{
			name: "missing field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"Browser":"Chrome"}`))
			},
			wantErr: ErrNoDebuggerURL.Error(),
		},
		{
			name: "non websocket url",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"webSocketDebuggerUrl":"http://host/devtools/abc"}`))
			},
			wantErr: "invalid webSocketDebuggerUrl",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			u, err := url.Parse(srv.URL)
			require.NoError(t, err)

			got, err := Discover(context.Background(), u, Options{})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, KindDiscovery, KindOf(err))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckHost(t *testing.T) {
	t.Parallel()

	calls := 0
	r := resolverFunc(func(_ context.Context, host string) ([]string, error) {
		calls++
		if host == "ok.example" {
			return []string{"192.0.2.1"}, nil
		}
		if host == "empty.example" {
			return nil, nil
		}
		return nil, errors.New("no such host")
	})

	assert.NoError(t, CheckHost(context.Background(), r, "127.0.0.1"))
	assert.NoError(t, CheckHost(context.Background(), r, "::1"))
	assert.Equal(t, 0, calls, "IP literals must not be looked up")

	assert.NoError(t, CheckHost(context.Background(), r, "ok.example"))
	assert.Equal(t, KindDNS, KindOf(CheckHost(context.Background(), r, "empty.example")))
	assert.Equal(t, KindDNS, KindOf(CheckHost(context.Background(), r, "bad.example")))
}

type resolverFunc func(ctx context.Context, host string) ([]string, error)

func (f resolverFunc) LookupHost(ctx context.Context, host string) ([]string, error) {
	return f(ctx, host)
}
