package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/grantcarthew/cdpctl/internal/cdp"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List page targets",
	Long:  "Lists the page targets of the browser behind the endpoint.",
	Args:  cobra.NoArgs,
	RunE:  runTargets,
}

func init() {
	rootCmd.AddCommand(targetsCmd)
}

func runTargets(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, client *cdp.Client, _ logrus.FieldLogger) error {
		pages, err := client.Targets(ctx)
		if err != nil {
			return err
		}
		return outputSuccess(pages, formatTargets(pages))
	})
}

// formatTargets renders one target per line: id, title, url.
func formatTargets(pages []cdp.TargetInfo) string {
	if len(pages) == 0 {
		return "No page targets"
	}
	var sb strings.Builder
	for i, p := range pages {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s  %s  %s", p.TargetID, p.Title, p.URL)
	}
	return sb.String()
}
