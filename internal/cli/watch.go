package cli

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/grantcarthew/cdpctl/internal/cdp"
)

var watchCmd = &cobra.Command{
	Use:   "watch <event-method>...",
	Short: "Print protocol events as they arrive",
	Long: `Subscribes to the given event methods and prints each event as a JSON line.
With --attach, a page is attached and its domain is enabled so page events flow.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().Duration("duration", 0, "Stop after this duration (default until interrupted)")
	watchCmd.Flags().Bool("attach", false, "Attach to a page and enable the domains of the watched events")
	watchCmd.Flags().String("target", "", "Target id used with --attach (default first page)")
	watchCmd.Flags().Int("count", 0, "Stop after this many events (0 means no limit)")
	rootCmd.AddCommand(watchCmd)
}

// watchedEvent is one printed line.
type watchedEvent struct {
	Method    string          `json:"method"`
	SessionID string          `json:"sessionId,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
}

func runWatch(cmd *cobra.Command, args []string) error {
	duration, _ := cmd.Flags().GetDuration("duration")
	attach, _ := cmd.Flags().GetBool("attach")
	limit, _ := cmd.Flags().GetInt("count")

	return withClient(cmd, func(ctx context.Context, client *cdp.Client, log logrus.FieldLogger) error {
		if duration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, duration)
			defer cancel()
		}

		var (
			mu   sync.Mutex
			seen int
		)
		done := make(chan struct{})
		var doneOnce sync.Once

		for _, method := range args {
			sub := client.On(method, func(evt cdp.Event) {
				mu.Lock()
				defer mu.Unlock()
				if limit > 0 && seen >= limit {
					return
				}
				seen++
				outputJSON(stdout, watchedEvent{Method: evt.Method, SessionID: evt.SessionID, Params: evt.Params})
				if limit > 0 && seen >= limit {
					doneOnce.Do(func() { close(done) })
				}
			})
			defer sub.Unsubscribe()
		}

		if attach {
			targetID, _ := cmd.Flags().GetString("target")
			sessionID, err := attachPage(ctx, client, targetID)
			if err != nil {
				return err
			}
			for _, domain := range domainsOf(args) {
				client.SendOptional(ctx, sessionID, domain+".enable", nil)
			}
		}

		select {
		case <-done:
			return nil
		case <-ctx.Done():
			// Duration, deadline and interrupt all end a watch normally.
			return nil
		case <-client.Done():
			if err := client.Err(); err != nil {
				return err
			}
			return cdp.ErrClosed
		}
	})
}

// domainsOf returns the distinct domains of event methods like "Page.loadEventFired".
func domainsOf(methods []string) []string {
	seen := make(map[string]bool)
	var domains []string
	for _, m := range methods {
		d, _, ok := strings.Cut(m, ".")
		if ok && !seen[d] {
			seen[d] = true
			domains = append(domains, d)
		}
	}
	return domains
}
