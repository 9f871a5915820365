package endpoint

import (
	"context"
	"fmt"
	"net"
)

// Resolver looks up host addresses.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// CheckHost verifies that host resolves. IP literals always pass.
func CheckHost(ctx context.Context, r Resolver, host string) error {
	if net.ParseIP(host) != nil {
		return nil
	}
	if r == nil {
		r = net.DefaultResolver
	}

	addrs, err := r.LookupHost(ctx, host)
	if err != nil {
		return &Error{Kind: KindDNS, Op: "lookup", URL: host, Err: err}
	}
	if len(addrs) == 0 {
		return &Error{Kind: KindDNS, Op: "lookup", URL: host, Err: fmt.Errorf("no addresses")}
	}
	return nil
}
