// pinpad is a terminal PIN keypad for the field-ops console. It resolves a
// shareable login link, verifies the PIN against the API and walks the session
// through forced rotation and expiry checks.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/fieldops-console/internal/clock"
	"github.com/spec-kit/fieldops-console/internal/console"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		server    string
		rawLink   string
		timeout   time.Duration
		staleness int
		logOutput string
	)
	flagSet := pflag.NewFlagSet("pinpad", pflag.ContinueOnError)
	flagSet.StringVar(&server, "server", "http://127.0.0.1:8080", "base URL of the field-ops API")
	flagSet.StringVar(&rawLink, "link", "", "login link, /{tenant}/{staff} or /staff/{tenantId}")
	flagSet.DurationVar(&timeout, "timeout", 10*time.Second, "per-request timeout")
	flagSet.IntVar(&staleness, "stale-months", console.DefaultStaleMonths, "PIN age that triggers the expiry redirect")
	flagSet.StringVar(&logOutput, "log-output", "", "write JSON logs to this file")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if rawLink == "" && flagSet.NArg() == 1 {
		rawLink = flagSet.Arg(0)
	}
	link, err := console.ParseLink(rawLink)
	if err != nil {
		return err
	}

	logger, err := newLogger(logOutput)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	remote := console.NewHTTPRemote(server, timeout, logger)
	app := newConsole(remote, clock.Real(), staleness, logger)
	program := tea.NewProgram(newModel(ctx, link, app), tea.WithAltScreen())
	_, err = program.Run()
	return err
}

// newLogger writes to logOutput when set. The terminal belongs to the keypad,
// so without a file logs are discarded.
func newLogger(logOutput string) (*zap.Logger, error) {
	if logOutput == "" {
		return zap.NewNop(), nil
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{logOutput}
	cfg.ErrorOutputPaths = []string{logOutput}
	return cfg.Build()
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `pinpad signs a staff member in with their PIN.

Usage:
  pinpad [flags] [link]

Examples:
  pinpad --link /ACME/JD01
  pinpad --server https://ops.example.com /staff/3f1c0b0e-8d7f-4f5e-9a55-0c1d2e3f4a5b

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
