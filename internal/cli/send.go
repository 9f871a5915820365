package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/grantcarthew/cdpctl/internal/cdp"
)

var sendCmd = &cobra.Command{
	Use:   "send <method> [params-json]",
	Short: "Send a raw protocol command",
	Long: `Sends a protocol command and prints its result.
Without --session or --attach the command targets the browser itself.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().String("session", "", "Session id to scope the command to")
	sendCmd.Flags().Bool("attach", false, "Attach to a page first and scope the command to it")
	sendCmd.Flags().String("target", "", "Target id used with --attach (default first page)")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	method := args[0]
	var params json.RawMessage
	if len(args) == 2 {
		if !json.Valid([]byte(args[1])) {
			return outputError(fmt.Errorf("params is not valid JSON: %s", args[1]))
		}
		params = json.RawMessage(args[1])
	}

	sessionID, _ := cmd.Flags().GetString("session")
	attach, _ := cmd.Flags().GetBool("attach")

	return withClient(cmd, func(ctx context.Context, client *cdp.Client, log logrus.FieldLogger) error {
		if attach {
			targetID, _ := cmd.Flags().GetString("target")
			id, err := attachPage(ctx, client, targetID)
			if err != nil {
				return err
			}
			sessionID = id
		}

		var p any
		if params != nil {
			p = params
		}
		result, err := client.SendToSession(ctx, sessionID, method, p)
		if err != nil {
			return err
		}
		return outputSuccess(result, string(result))
	})
}
