package cli

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var navigateCmd = &cobra.Command{
	Use:   "navigate <url>",
	Short: "Navigate to URL",
	Long:  "Navigates a page to the specified URL. Returns once navigation starts unless --wait is given.",
	Args:  cobra.ExactArgs(1),
	RunE:  runNavigate,
}

func init() {
	navigateCmd.Flags().String("target", "", "Target id (default first page)")
	navigateCmd.Flags().Duration("wait", 0, "Fixed delay after navigation starts")
	rootCmd.AddCommand(navigateCmd)
}

// normalizeURL adds protocol to URL if missing.
// Uses http:// for localhost/127.0.0.1/0.0.0.0, https:// otherwise.
func normalizeURL(url string) string {
	if strings.Contains(url, "://") || strings.HasPrefix(url, "about:") || strings.HasPrefix(url, "data:") {
		return url
	}

	lower := strings.ToLower(url)
	if strings.HasPrefix(lower, "localhost") ||
		strings.HasPrefix(lower, "127.0.0.1") ||
		strings.HasPrefix(lower, "0.0.0.0") {
		return "http://" + url
	}

	return "https://" + url
}

func runNavigate(cmd *cobra.Command, args []string) error {
	wait, _ := cmd.Flags().GetDuration("wait")
	url := normalizeURL(args[0])

	return withPage(cmd, func(p *pageRun) error {
		// Page events are not required for navigation; older targets reject Page.enable.
		p.client.SendOptional(p.ctx, p.sessionID, "Page.enable", nil)

		nav, err := p.client.Navigate(p.ctx, p.sessionID, url)
		if err != nil {
			return err
		}
		if nav.ErrorText != "" {
			return errors.New("navigation failed: " + nav.ErrorText)
		}

		sleepContext(p.ctx, wait)
		if err := p.ctx.Err(); err != nil && wait > 0 {
			return err
		}

		return outputSuccess(map[string]any{
			"url":       url,
			"frameId":   nav.FrameID,
			"sessionId": p.sessionID,
			"waited":    wait.Round(time.Millisecond).String(),
		}, "")
	})
}
