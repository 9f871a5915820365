package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/grantcarthew/cdpctl/internal/cdp"
	"github.com/grantcarthew/cdpctl/internal/config"
	"github.com/grantcarthew/cdpctl/internal/endpoint"
)

// errNoPage is returned when the browser has no page target to attach to.
var errNoPage = errors.New("no page target found")

// runContext returns the context a command runs under: canceled on SIGINT or
// SIGTERM and, when --deadline is set, after that duration.
func runContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)

	deadline, _ := cmd.Flags().GetDuration("deadline")
	if deadline <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	return ctx, func() {
		cancel()
		stop()
	}
}

// connect opens a client using the merged configuration.
func connect(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*cdp.Client, error) {
	header, err := cfg.Header()
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"endpoint": endpoint.Redact(cfg.Endpoint),
		"headers":  endpoint.RedactHeader(header),
	}).Debug("connecting")

	client, err := cdp.Connect(ctx, cfg.Endpoint,
		endpoint.Options{
			Timeout:  cfg.ConnectTimeout,
			CheckDNS: cfg.CheckDNS,
			Header:   header,
			Logger:   log,
		},
		cdp.WithLogger(log),
		cdp.WithCommandTimeout(cfg.CommandTimeout),
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// pageRun is the state shared by commands that act on one page.
type pageRun struct {
	ctx       context.Context
	client    *cdp.Client
	sessionID string
	log       logrus.FieldLogger
}

// withPage connects, attaches to the page given by --target (or the first
// page) and calls fn. Errors are printed and marked.
func withPage(cmd *cobra.Command, fn func(*pageRun) error) error {
	return withClient(cmd, func(ctx context.Context, client *cdp.Client, log logrus.FieldLogger) error {
		targetID, _ := cmd.Flags().GetString("target")
		sessionID, err := attachPage(ctx, client, targetID)
		if err != nil {
			return err
		}
		log.WithField("sessionId", sessionID).Debug("attached")

		return fn(&pageRun{ctx: ctx, client: client, sessionID: sessionID, log: log})
	})
}

// withClient connects and calls fn with the open client.
func withClient(cmd *cobra.Command, fn func(context.Context, *cdp.Client, logrus.FieldLogger) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return outputError(err)
	}
	log := newLogger(cfg.Debug)

	ctx, cancel := runContext(cmd)
	defer cancel()

	client, err := connect(ctx, cfg, log)
	if err != nil {
		return outputError(err)
	}
	defer client.Close()

	if err := fn(ctx, client, log); err != nil {
		if IsPrintedError(err) {
			return err
		}
		return outputError(err)
	}
	return nil
}

// attachPage attaches to targetID, or to the first page target when empty.
func attachPage(ctx context.Context, client *cdp.Client, targetID string) (string, error) {
	if targetID == "" {
		pages, err := client.Targets(ctx)
		if err != nil {
			return "", fmt.Errorf("list targets: %w", err)
		}
		if len(pages) == 0 {
			return "", errNoPage
		}
		targetID = pages[0].TargetID
	}
	return client.AttachToPage(ctx, targetID)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
