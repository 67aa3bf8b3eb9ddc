// Package main provides the uiaudit binary entry point.
// uiaudit extracts the user-facing controls of an HTML page, asks a
// text-generation backend whether each one complies with a policy, and
// writes a compliance report.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	// Register LLM providers via init()
	_ "github.com/c360studio/uiaudit/llm/providers"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "uiaudit"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "UI compliance auditor",
		Long: `uiaudit checks the labels, inputs, selects, options and buttons of an
HTML page against a compliance policy. Each element is judged by a
text-generation backend (Hugging Face, Ollama or an OpenAI-compatible
chat API) and the verdicts are written as an HTML, Markdown or JSON report.

Configuration is layered: built-in defaults, ~/.config/uiaudit/config.yaml,
uiaudit.yaml in the current or a parent directory, --config, then flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogger(g.logLevel)
		},
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		checkCmd(g),
		watchCmd(g),
		extractCmd(g),
		promptCmd(g),
		configCmd(g),
	)

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

// setupLogger installs a text handler on stderr at the requested level.
func setupLogger(logLevel string) {
	level := slog.LevelWarn
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}
