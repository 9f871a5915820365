package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/grantcarthew/cdpctl/internal/config"
	"github.com/grantcarthew/cdpctl/internal/endpoint"
)

// Version is set at build time.
var Version = "dev"

// Debug enables verbose debug output.
var Debug bool

// JSONOutput enables JSON output format (default is text).
var JSONOutput bool

// NoColor disables color output.
var NoColor bool

// stdout and stderr are replaced in tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// errPrinted marks errors already written by outputError.
var errPrinted = errors.New("error already printed")

var rootCmd = &cobra.Command{
	Use:           "cdpctl",
	Short:         "Minimal Chrome DevTools Protocol client",
	Long:          "cdpctl connects to a remote debugging endpoint over a single WebSocket and runs protocol commands against its pages.",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&Debug, "debug", false, "Enable verbose debug output")
	flags.BoolVar(&JSONOutput, "json", false, "Output in JSON format (default is text)")
	flags.BoolVar(&NoColor, "no-color", false, "Disable color output")
	flags.StringP("endpoint", "e", "", "Debugging endpoint (ws://, wss://, http:// or https://); env CDP_ENDPOINT")
	flags.String("config", "", "YAML config file")
	flags.Duration("connect-timeout", 0, "Connect timeout (default 10s)")
	flags.DurationP("timeout", "t", 0, "Per-command timeout (default 30s)")
	flags.Duration("deadline", 0, "Abort the whole run after this duration (0 disables)")
	flags.Bool("no-dns-check", false, "Skip resolving the endpoint host before connecting")
	flags.StringArrayP("header", "H", nil, "Extra handshake header as \"Name: value\" (repeatable)")
	rootCmd.SetVersionTemplate("cdpctl version {{.Version}}\n")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// IsPrintedError reports whether err has already been written to stderr.
func IsPrintedError(err error) bool {
	return errors.Is(err, errPrinted)
}

// loadConfig merges the config file, environment and command-line flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()

	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	if flags.Changed("endpoint") {
		cfg.Endpoint, _ = flags.GetString("endpoint")
	}
	if flags.Changed("connect-timeout") {
		cfg.ConnectTimeout, _ = flags.GetDuration("connect-timeout")
	}
	if flags.Changed("timeout") {
		cfg.CommandTimeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("no-dns-check") {
		skip, _ := flags.GetBool("no-dns-check")
		cfg.CheckDNS = !skip
	}
	if flags.Changed("header") {
		headers, _ := flags.GetStringArray("header")
		cfg.Headers = append(cfg.Headers, headers...)
	}
	if Debug {
		cfg.Debug = true
	}

	if cfg.Endpoint == "" {
		return config.Config{}, errors.New("no endpoint: pass --endpoint or set CDP_ENDPOINT")
	}
	return cfg, cfg.Validate()
}

// newLogger returns the stderr logger used for debug tracing.
func newLogger(debug bool) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(stderr)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:   !shouldUseColor(),
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	l.SetLevel(logrus.WarnLevel)
	if debug {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

// resetFlags restores every flag of cmd and its parents to its default.
// Commands run more than once in one process (tests) rely on it.
func resetFlags(cmd *cobra.Command) {
	reset := func(flags *pflag.FlagSet) {
		flags.VisitAll(func(f *pflag.Flag) {
			defVal := f.DefValue
			if defVal == "[]" {
				defVal = ""
			}
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				_ = sv.Replace(nil)
			} else {
				_ = f.Value.Set(defVal)
			}
			f.Changed = false
		})
	}

	reset(cmd.Flags())
	reset(cmd.PersistentFlags())
	for parent := cmd.Parent(); parent != nil; parent = parent.Parent() {
		reset(parent.PersistentFlags())
	}

	Debug = false
	JSONOutput = false
	NoColor = false
}

// isStdoutTTY returns true if stdout is a terminal.
func isStdoutTTY() bool {
	f, ok := stdout.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// outputJSON writes a JSON value to the given writer.
// Pretty prints if stdout is a TTY, compact otherwise.
func outputJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	if isStdoutTTY() {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(data)
}

// outputSuccess writes a successful response to stdout.
// In text mode, text is printed as is, or "OK" when empty.
func outputSuccess(data any, text string) error {
	if JSONOutput {
		resp := map[string]any{
			"ok": true,
		}
		if data != nil {
			resp["data"] = data
		}
		return outputJSON(stdout, resp)
	}

	if text == "" {
		if shouldUseColor() {
			color.New(color.FgGreen).Fprintln(stdout, "OK")
		} else {
			fmt.Fprintln(stdout, "OK")
		}
		return nil
	}
	_, err := fmt.Fprintln(stdout, text)
	return err
}

// outputError writes a redacted error to stderr and returns an error
// marked as printed.
func outputError(err error) error {
	msg := endpoint.Redact(err.Error())
	if JSONOutput {
		resp := map[string]any{
			"ok":    false,
			"error": msg,
		}
		if kind := endpoint.KindOf(err); kind != endpoint.KindUnknown {
			resp["kind"] = kind.String()
		}
		outputJSON(stderr, resp)
	} else if shouldUseColor() {
		color.New(color.FgRed).Fprint(stderr, "Error:")
		fmt.Fprintf(stderr, " %s\n", msg)
	} else {
		fmt.Fprintf(stderr, "Error: %s\n", msg)
	}
	return fmt.Errorf("%w: %s", errPrinted, msg)
}

// shouldUseColor determines if color output should be used based on flags and environment.
func shouldUseColor() bool {
	if JSONOutput || NoColor {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := stderr.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
