package cli

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/grantcarthew/cdpctl/internal/cdp"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show client and browser versions",
	Long:  "Prints the cdpctl version and the product and protocol version reported by the browser.",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, client *cdp.Client, _ logrus.FieldLogger) error {
		info, err := client.Version(ctx)
		if err != nil {
			return err
		}
		data := map[string]any{
			"client":  Version,
			"browser": info,
		}
		text := fmt.Sprintf("cdpctl %s\n%s (protocol %s)", Version, info.Product, info.ProtocolVersion)
		return outputSuccess(data, text)
	})
}
