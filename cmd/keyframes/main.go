// Package main provides the CLI entry point for keyframes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/five82/keyframes"
	"github.com/five82/keyframes/internal/config"
	"github.com/five82/keyframes/internal/logging"
	"github.com/five82/keyframes/internal/metrics"
	"github.com/five82/keyframes/internal/reporter"
)

const (
	appName    = "keyframes"
	appVersion = "0.1.0"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	outputDir       string
	logDir          string
	verbose         bool
	jsonOutput      bool
	noLog           bool
	metricsTextfile string
	eventsFile      string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           appName,
		Short:         "Extract representative keyframes from videos",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.outputDir, "output", "o", config.DefaultOutputDir, "Artifact root for sessions")
	pf.StringVarP(&g.logDir, "log-dir", "l", "", "Log directory (defaults to OUTPUT/logs)")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "Enable verbose output for troubleshooting")
	pf.BoolVar(&g.jsonOutput, "json", false, "Emit progress as newline-delimited JSON")
	pf.BoolVar(&g.noLog, "no-log", false, "Disable log file creation")
	pf.StringVar(&g.metricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file on exit")
	pf.StringVar(&g.eventsFile, "events-file", "", "Also append JSON progress events to this file")

	root.AddCommand(
		newExtractCmd(g),
		newDedupeCmd(g),
		newDeleteCmd(g),
		newShowCmd(g),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, appVersion)
		},
	}
}

// runtime holds what every command needs once flags are parsed.
type runtime struct {
	cfg      *config.Config
	engine   *keyframes.Engine
	reporter reporter.Reporter
	metrics  *metrics.Metrics
	log      *logging.RunLog
	events   *os.File
	flags    *globalFlags
}

// setup loads configuration (defaults, then environment, then flags),
// opens the run log and builds the engine. apply copies command flags onto
// the configuration.
func setup(cmd *cobra.Command, g *globalFlags, apply func(*config.Config) error) (*runtime, error) {
	cfg := config.NewConfig("")
	if err := config.LoadEnv(cfg); err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("output") || cfg.OutputDir == "" {
		cfg.OutputDir = g.outputDir
	}
	if apply != nil {
		if err := apply(cfg); err != nil {
			return nil, err
		}
	}

	logDir := g.logDir
	if logDir == "" {
		logDir = cfg.LogDir
	}
	if logDir == "" {
		logDir = filepath.Join(cfg.OutputDir, "logs")
	}
	runLog, err := logging.Setup(logDir, g.verbose, g.noLog)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}

	var rep reporter.Reporter
	if g.jsonOutput {
		rep = reporter.NewJSONReporter()
	} else {
		rep = reporter.NewTerminalReporter(g.verbose)
	}
	var events *os.File
	if g.eventsFile != "" {
		events, err = os.OpenFile(g.eventsFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			_ = runLog.Close()
			return nil, fmt.Errorf("failed to open events file: %w", err)
		}
		rep = reporter.NewCompositeReporter(rep, reporter.NewJSONReporterWithWriter(events))
	}
	if path := runLog.FilePath(); path != "" {
		rep.Verbose(fmt.Sprintf("Log file: %s", path))
	}

	m := metrics.New(nil)
	engine, err := keyframes.New(
		keyframes.WithConfig(cfg),
		keyframes.WithReporter(rep),
		keyframes.WithMetrics(m),
	)
	if err != nil {
		_ = runLog.Close()
		if events != nil {
			_ = events.Close()
		}
		return nil, err
	}

	logging.Info("configuration",
		"output", cfg.OutputDir,
		"method", cfg.Method,
		"minio", cfg.UseMinIO(),
		"judge", cfg.JudgeEnabled())

	return &runtime{cfg: cfg, engine: engine, reporter: rep, metrics: m, log: runLog, events: events, flags: g}, nil
}

// close flushes metrics and the run log.
func (r *runtime) close() {
	if r.flags.metricsTextfile != "" {
		if err := r.metrics.WriteTextfile(r.flags.metricsTextfile); err != nil {
			logging.Warn("failed to write metrics", "path", r.flags.metricsTextfile, "error", err)
		}
	}
	if r.events != nil {
		_ = r.events.Close()
	}
	_ = r.log.Close()
}
