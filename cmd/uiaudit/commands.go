package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/uiaudit/adjudicator"
	"github.com/c360studio/uiaudit/config"
	"github.com/c360studio/uiaudit/extract"
	"github.com/c360studio/uiaudit/source"
	"github.com/c360studio/uiaudit/watch"
)

// auditFlags are the config overrides accepted by check and watch.
type auditFlags struct {
	output      string
	format      string
	template    string
	policy      string
	provider    string
	url         string
	model       string
	concurrency int
	lineAware   bool
	private     bool
	natsURL     string
	metricsFile string
}

func (f *auditFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.output, "output", "o", "", "Report file, or report directory for a multi-page glob")
	fs.StringVarP(&f.format, "format", "f", "", "Report format (html, markdown, json)")
	fs.StringVar(&f.template, "template", "", "Custom HTML report template")
	fs.StringVarP(&f.policy, "policy", "p", "", "Policy file (JSON or YAML)")
	fs.StringVar(&f.provider, "provider", "", "Backend provider (huggingface, ollama, openai)")
	fs.StringVar(&f.url, "url", "", "Backend base URL")
	fs.StringVarP(&f.model, "model", "m", "", "Backend model")
	fs.IntVarP(&f.concurrency, "concurrency", "j", 0, "Maximum in-flight backend requests")
	fs.BoolVar(&f.lineAware, "line-aware", false, "Record line numbers and parent tags")
	fs.BoolVar(&f.private, "allow-private", false, "Allow fetching http:// and private-network page URLs")
	fs.StringVar(&f.natsURL, "nats-url", "", "Publish verdicts to this NATS server")
	fs.StringVar(&f.metricsFile, "metrics-textfile", "", "Write Prometheus metrics to this file")
}

// override builds a partial Config holding only what was set on the command line.
func (f *auditFlags) override(args []string) *config.Config {
	o := &config.Config{
		Output:      f.output,
		Format:      f.format,
		Template:    f.template,
		Policy:      f.policy,
		Concurrency: f.concurrency,
		Backend: config.BackendConfig{
			Provider: f.provider,
			URL:      f.url,
			Model:    f.model,
		},
	}
	if len(args) > 0 {
		o.Input = args[0]
	}
	if f.lineAware {
		o.Extract = extract.LineAwareOptions()
	}
	o.Fetch.AllowPrivate = f.private
	o.NATS.URL = f.natsURL
	o.Metrics.Textfile = f.metricsFile
	return o
}

func checkCmd(g *globalFlags) *cobra.Command {
	f := &auditFlags{}

	cmd := &cobra.Command{
		Use:   "check [input]",
		Short: "Audit a page, or every page matching a glob, and write the report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g, f.override(args))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(cfg, slog.Default())
			if err != nil {
				return err
			}
			defer a.close()

			_, err = a.check(ctx, cmd.OutOrStdout())
			return err
		},
	}
	f.register(cmd)
	return cmd
}

func watchCmd(g *globalFlags) *cobra.Command {
	f := &auditFlags{}

	cmd := &cobra.Command{
		Use:   "watch [input]",
		Short: "Audit, then re-audit whenever the inputs or the policy change",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g, f.override(args))
			if err != nil {
				return err
			}
			if source.IsURL(cfg.Input) {
				return fmt.Errorf("watch needs local input files, got URL %s", cfg.Input)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(cfg, slog.Default())
			if err != nil {
				return err
			}
			defer a.close()

			w, err := watch.New(watch.Config{
				Patterns:      []string{cfg.Input},
				Files:         []string{cfg.Policy, g.configPath},
				DebounceDelay: cfg.Watch.Debounce,
				Logger:        slog.Default(),
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (Ctrl+C to stop)\n", cfg.Input)
			return w.Run(ctx, rerun(a, cmd))
		},
	}
	f.register(cmd)
	return cmd
}

// rerun returns the watch callback. Changes that touch only reports this
// command wrote itself are ignored.
func rerun(a *app, cmd *cobra.Command) watch.RunFunc {
	outputs := make(map[string]bool)

	return func(ctx context.Context, changed []string) error {
		if len(changed) > 0 && allIn(changed, outputs) {
			return nil
		}
		results, err := a.check(ctx, cmd.OutOrStdout())
		for _, res := range results {
			outputs[filepath.Clean(res.Output)] = true
		}
		return err
	}
}

func allIn(paths []string, set map[string]bool) bool {
	for _, p := range paths {
		if !set[filepath.Clean(p)] {
			return false
		}
	}
	return true
}

func extractCmd(g *globalFlags) *cobra.Command {
	var (
		asJSON    bool
		lineAware bool
	)

	cmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "List the elements that would be audited",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, input, err := inspectConfig(g, args, lineAware)
			if err != nil {
				return err
			}

			elements, err := readElements(cmd.Context(), cfg, input)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if elements == nil {
					elements = []extract.Element{}
				}
				return enc.Encode(elements)
			}

			fmt.Fprintln(out, elementTable(elements))
			fmt.Fprintf(out, "%d elements\n", len(elements))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print elements as JSON")
	cmd.Flags().BoolVar(&lineAware, "line-aware", false, "Record line numbers and parent tags")
	return cmd
}

func elementTable(elements []extract.Element) string {
	rows := make([][]string, 0, len(elements))
	for i, el := range elements {
		line := ""
		if el.LineNumber > 0 {
			line = strconv.Itoa(el.LineNumber)
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), el.Type, el.Text, line, el.ParentTag})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "Type", "Text", "Line", "Parent").
		Rows(rows...).
		String()
}

func promptCmd(g *globalFlags) *cobra.Command {
	var (
		policyPath string
		lineAware  bool
	)

	cmd := &cobra.Command{
		Use:   "prompt [file]",
		Short: "Print the prompt that would be sent for each element",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, input, err := inspectConfig(g, args, lineAware)
			if err != nil {
				return err
			}
			if policyPath != "" {
				cfg.Policy = policyPath
			}

			pol, err := loadPolicy(cfg)
			if err != nil {
				return err
			}
			elements, err := readElements(cmd.Context(), cfg, input)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, el := range elements {
				fmt.Fprintf(out, "--- element %d (%s) ---\n", i+1, el.Type)
				fmt.Fprintln(out, adjudicator.BuildPrompt(el, pol))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&policyPath, "policy", "p", "", "Policy file (JSON or YAML)")
	cmd.Flags().BoolVar(&lineAware, "line-aware", false, "Record line numbers and parent tags")
	return cmd
}

// inspectConfig loads config for the read-only commands and picks the input file.
func inspectConfig(g *globalFlags, args []string, lineAware bool) (*config.Config, string, error) {
	override := &config.Config{}
	if lineAware {
		override.Extract = extract.LineAwareOptions()
	}
	cfg, err := loadConfig(g, override)
	if err != nil {
		return nil, "", err
	}

	input := cfg.Input
	if len(args) > 0 {
		input = args[0]
	}
	return cfg, input, nil
}

// readElements loads the page at input, a file or URL, and extracts its elements.
func readElements(ctx context.Context, cfg *config.Config, input string) ([]extract.Element, error) {
	page, err := cfg.Fetcher().Read(ctx, input)
	if err != nil {
		return nil, err
	}
	elements, err := extract.Extract(page, cfg.Extract)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", input, err)
	}
	return elements, nil
}

func configCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the user config file with defaults if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.NewLoader(slog.Default()).EnsureUserConfig()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g, nil)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	return cmd
}
