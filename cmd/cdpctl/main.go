package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/grantcarthew/cdpctl/internal/cli"
	"github.com/grantcarthew/cdpctl/internal/endpoint"
)

// formatCobraError converts verbose Cobra errors to user-friendly messages.
func formatCobraError(err error) string {
	msg := err.Error()

	// "unknown command "x" for "cdpctl"" -> "unknown command "x""
	if strings.HasPrefix(msg, "unknown command") {
		if i := strings.Index(msg, " for "); i > 0 {
			msg = msg[:i]
		}
	}

	return endpoint.Redact(msg)
}

func main() {
	if err := cli.Execute(); err != nil {
		// Print error if not already printed by command handler
		if !cli.IsPrintedError(err) {
			msg := formatCobraError(err)
			if cli.JSONOutput {
				resp := map[string]any{
					"ok":    false,
					"error": msg,
				}
				_ = json.NewEncoder(os.Stderr).Encode(resp)
			} else {
				fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
			}
		}
		os.Exit(1)
	}
}
