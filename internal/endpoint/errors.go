package endpoint

import (
	"errors"
	"fmt"
)

// Kind categorises connection failures.
type Kind int

const (
	KindUnknown Kind = iota
	// KindConfig is an empty, unparseable or unsupported endpoint.
	KindConfig
	// KindDNS means the endpoint host did not resolve.
	KindDNS
	// KindDiscovery means no WebSocket URL could be obtained over HTTP.
	KindDiscovery
	// KindTimeout means the connect attempt exceeded its deadline.
	KindTimeout
	// KindTransport is a socket, TLS or handshake failure.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "configuration error"
	case KindDNS:
		return "dns resolution failed"
	case KindDiscovery:
		return "discovery failed"
	case KindTimeout:
		return "connect timeout"
	case KindTransport:
		return "transport error"
	default:
		return "connection error"
	}
}

var (
	// ErrNoEndpoint is returned for an empty endpoint string.
	ErrNoEndpoint = errors.New("no endpoint given")

	// ErrUnsupportedScheme is returned for schemes other than ws, wss, http and https.
	ErrUnsupportedScheme = errors.New("unsupported scheme (want ws, wss, http or https)")

	// ErrMissingHost is returned for endpoints without a host.
	ErrMissingHost = errors.New("endpoint has no host")

	// ErrNoDebuggerURL is returned when a discovery document lacks webSocketDebuggerUrl.
	ErrNoDebuggerURL = errors.New("discovery document has no webSocketDebuggerUrl")
)

// Error is a categorised connection failure. Its message never contains
// credentials.
type Error struct {
	Kind Kind
	Op   string
	URL  string
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Op)
	if e.URL != "" {
		msg += " " + e.URL
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return Redact(msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
