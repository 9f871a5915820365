package cli

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"
)

var evalCmd = &cobra.Command{
	Use:   "eval <expression>",
	Short: "Evaluate JavaScript in a page",
	Long:  "Evaluates a JavaScript expression in a page, awaiting promises, and prints the result by value.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runEval,
}

var frameEvalCmd = &cobra.Command{
	Use:   "frame-eval <frame-id> <expression>",
	Short: "Evaluate JavaScript in an isolated world of a frame",
	Long:  "Creates an isolated execution context bound to the frame and evaluates the expression there.",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runFrameEval,
}

func init() {
	evalCmd.Flags().String("target", "", "Target id (default first page)")
	frameEvalCmd.Flags().String("target", "", "Target id (default first page)")
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(frameEvalCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	// Join all args to form the expression (allows shell-friendly use without quotes)
	expression := strings.Join(args, " ")

	return withPage(cmd, func(p *pageRun) error {
		value, err := p.client.Evaluate(p.ctx, p.sessionID, expression)
		if err != nil {
			return err
		}
		return outputValue(value)
	})
}

func runFrameEval(cmd *cobra.Command, args []string) error {
	frameID := args[0]
	expression := strings.Join(args[1:], " ")

	return withPage(cmd, func(p *pageRun) error {
		value, err := p.client.EvaluateInFrame(p.ctx, p.sessionID, frameID, expression)
		if err != nil {
			return err
		}
		return outputValue(value)
	})
}

// outputValue prints an evaluation result. A nil value is undefined.
func outputValue(value json.RawMessage) error {
	if JSONOutput {
		resp := map[string]any{"ok": true}
		if value != nil {
			resp["value"] = value
		}
		return outputJSON(stdout, resp)
	}
	if value == nil {
		return outputSuccess(nil, "undefined")
	}

	// Strings print bare; everything else as JSON.
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return outputSuccess(nil, s)
	}
	return outputSuccess(nil, string(value))
}
