package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/grantcarthew/cdpctl/internal/cdp"
)

var framesCmd = &cobra.Command{
	Use:   "frames",
	Short: "List the frames of a page",
	Long:  "Prints the frame tree of a page, one frame per line, or the raw tree with --raw.",
	Args:  cobra.NoArgs,
	RunE:  runFrames,
}

func init() {
	framesCmd.Flags().String("target", "", "Target id (default first page)")
	framesCmd.Flags().Bool("raw", false, "Print the frame tree as returned by the browser")
	rootCmd.AddCommand(framesCmd)
}

func runFrames(cmd *cobra.Command, args []string) error {
	raw, _ := cmd.Flags().GetBool("raw")

	return withPage(cmd, func(p *pageRun) error {
		tree, err := p.client.FrameTree(p.ctx, p.sessionID)
		if err != nil {
			return err
		}
		if raw {
			return outputSuccess(tree, string(tree))
		}

		frames, err := cdp.FlattenFrames(tree)
		if err != nil {
			return err
		}
		return outputSuccess(frames, formatFrames(frames))
	})
}

// formatFrames renders one frame per line, indenting child frames.
func formatFrames(frames []cdp.Frame) string {
	depth := make(map[string]int, len(frames))
	var sb strings.Builder
	for i, f := range frames {
		d := 0
		if f.ParentID != "" {
			d = depth[f.ParentID] + 1
		}
		depth[f.ID] = d

		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s%s  %s", strings.Repeat("  ", d), f.ID, f.URL)
		if f.Name != "" {
			fmt.Fprintf(&sb, "  (%s)", f.Name)
		}
	}
	return sb.String()
}
