// Command querykit renders plan documents into SQL for every supported
// dialect, applies them to live databases, inspects schemas, infers tables
// from CSV samples and bulk-loads CSV files.
//
//	querykit dialects
//	querykit render plan.yaml --dialect pgsql --params
//	querykit render plan.yaml --all
//	querykit apply plan.yaml --config querykit.yaml
//	querykit inspect tables
//	querykit inspect describe users
//	querykit probe users.csv --normalize
//	querykit load users.csv --table users --create
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"querykit/internal/config"
	"querykit/internal/metrics"
	"querykit/internal/metrics/datadog"
	"querykit/internal/metrics/prompush"
	"querykit/internal/storage"

	// every backend is linked in; the config picks one.
	_ "querykit/internal/storage/all"
)

const defaultPushgatewayURL = "http://localhost:9091"

// annotation keys read by the root pre-run.
const (
	// annotNoConnection marks commands that work without a dialect or DSN.
	annotNoConnection = "querykit/no-connection"
)

// app carries the state shared by all subcommands of one invocation.
type app struct {
	cfgPath  string
	dialect  string
	dsn      string
	validate bool

	cfg     config.Config
	log     *slog.Logger
	restore func()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "querykit",
		Short:        "Multi-dialect SQL query and schema builder",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown(cmd)
		},
	}
	f := root.PersistentFlags()
	f.StringVar(&a.cfgPath, "config", "", "config file (.json, .yaml or .yml)")
	f.StringVar(&a.dialect, "dialect", "", "dialect name or alias; overrides the config and "+config.EnvDialect)
	f.StringVar(&a.dsn, "dsn", "", "database DSN; overrides the config and "+config.EnvDSN)
	f.BoolVar(&a.validate, "validate", false, "validate the configuration and exit")

	root.AddCommand(
		newDialectsCmd(),
		newRenderCmd(a),
		newApplyCmd(a),
		newInspectCmd(a),
		newLoadCmd(a),
		newProbeCmd(a),
	)
	return root
}

// setup reads and validates the config, builds the logger and installs the
// metrics backend.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.ReadFile(a.cfgPath)
	if err != nil {
		return err
	}
	if a.dialect != "" {
		cfg.Dialect = a.dialect
	}
	if a.dsn != "" {
		cfg.DSN = a.dsn
	}

	issues := config.Validate(cfg)
	if cmd.Annotations[annotNoConnection] != "" {
		issues = withoutConnectionIssues(cfg, issues)
	}
	stderr := cmd.ErrOrStderr()
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return fmt.Errorf("configuration is invalid: %s", orDefaults(a.cfgPath))
	}
	if a.validate {
		fmt.Fprintf(cmd.OutOrStdout(), "configuration is valid: %s\n", orDefaults(a.cfgPath))
		// Skip the command itself.
		cmd.RunE = func(*cobra.Command, []string) error { return nil }
		return nil
	}

	log, err := cfg.Log.NewLogger(stderr)
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, log
	a.restore = a.installMetrics(cmd.Context())
	return nil
}

func (a *app) teardown(cmd *cobra.Command) error {
	if a.restore == nil {
		return nil
	}
	if err := metrics.Flush(); err != nil {
		a.log.WarnContext(cmd.Context(), "metrics: flush error", "err", err)
	}
	a.restore()
	a.restore = nil
	return nil
}

// installMetrics selects the backend named by the config. Failures leave
// metrics disabled. The returned func reinstates the previous backend.
func (a *app) installMetrics(ctx context.Context) func() {
	m := a.cfg.Metrics
	var (
		b   metrics.Backend
		err error
	)
	switch m.Backend {
	case "pushgateway":
		url := m.URL
		if url == "" {
			url = defaultPushgatewayURL
		}
		b, err = prompush.NewBackend(m.Job, url)
		if err == nil {
			a.log.InfoContext(ctx, "metrics: enabled", "backend", m.Backend, "url", url, "job", m.Job)
		}
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{Addr: m.URL, Namespace: m.Namespace, GlobalTags: m.Tags})
		if err == nil {
			a.log.InfoContext(ctx, "metrics: enabled", "backend", m.Backend, "addr", m.URL)
		}
	case "", "none":
		a.log.DebugContext(ctx, "metrics: disabled")
		return func() {}
	default:
		a.log.WarnContext(ctx, "metrics: unknown backend; metrics disabled", "backend", m.Backend)
		return func() {}
	}
	if err != nil {
		a.log.WarnContext(ctx, "metrics: init failed; metrics disabled", "backend", m.Backend, "err", err)
		return func() {}
	}
	prev := metrics.SetBackend(b)
	return func() { metrics.SetBackend(prev) }
}

// open connects to the configured database and instruments the handle.
func (a *app) open(ctx context.Context) (storage.Repository, error) {
	if strings.TrimSpace(a.cfg.DSN) == "" {
		return nil, fmt.Errorf("dsn is required (use --dsn, %s or the config file)", config.EnvDSN)
	}
	repo, err := storage.New(ctx, storage.Config{Kind: a.cfg.Dialect, DSN: a.cfg.DSN})
	if err != nil {
		return nil, err
	}
	return storage.Instrument(repo, a.log), nil
}

// withoutConnectionIssues drops dsn findings, and dialect findings when no
// dialect was given at all.
func withoutConnectionIssues(cfg config.Config, issues []config.Issue) []config.Issue {
	out := issues[:0:0]
	for _, iss := range issues {
		switch {
		case iss.Path == "dsn":
			continue
		case iss.Path == "dialect" && strings.TrimSpace(cfg.Dialect) == "":
			continue
		}
		out = append(out, iss)
	}
	return out
}

func orDefaults(path string) string {
	if path == "" {
		return "(defaults)"
	}
	return path
}

func closeQuietly(c io.Closer) { _ = c.Close() }
