// Package main is the entry point for the polite crawler CLI.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/polite-crawler/polite/internal/config"
	"github.com/polite-crawler/polite/internal/engine"
	"github.com/polite-crawler/polite/internal/report"
	"github.com/polite-crawler/polite/internal/storage"
	"github.com/polite-crawler/polite/internal/urlutil"
)

// version is set at build time via -ldflags.
var version = "dev"

var verbosity int

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, config.ErrInvalid) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "polite",
		Short:         "A polite, resumable, domain-scoped web crawler",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity")

	// Usage errors are configuration errors.
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", config.ErrInvalid, err)
	})

	root.AddCommand(newCrawlCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("polite version %s\n", version)
		},
	})
	return root
}

func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the configured start URLs and write one JSON record per page",
		RunE:  runCrawl,
	}

	f := cmd.Flags()
	f.StringSlice("start", nil, "start URL (repeatable, required)")
	f.StringSlice("allowed-domain", nil, "domain to stay within (default: hosts of the start URLs)")
	f.Int("max-pages", 200, "global page cap")
	f.Int("max-depth", 2, "maximum link depth from any seed")
	f.Int("concurrency", 8, "number of worker goroutines")
	f.Int("max-connections", 16, "HTTP connection pool size per host")
	f.Float64("delay", 0.5, "per-host politeness delay in seconds")
	f.Float64("timeout", 15, "HTTP read timeout in seconds")
	f.String("user-agent", config.DefaultUserAgent, "User-Agent header")
	f.String("out", "crawl.jsonl", "JSONL output path")
	f.Bool("ignore-robots", false, "skip robots.txt checks")
	f.String("sqlite", "", "SQLite database path (enables persistence)")
	f.Bool("resume", false, "resume from the persisted frontier (requires --sqlite)")
	f.Float64("metrics-interval", 10, "seconds between perf log lines (0 disables)")
	f.Float64("rps", 0, "aggregate requests-per-second ceiling (0 disables)")
	f.Int("prometheus-port", 0, "port for the Prometheus /metrics endpoint (0 disables)")

	return cmd
}

// bindFlags wires flags into viper so POLITE_* environment variables can
// supply values for flags the user did not set.
func bindFlags(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("POLITE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	return v, nil
}

func buildCrawlConfig(v *viper.Viper) (*config.CrawlConfig, error) {
	cfg := config.DefaultConfig()
	cfg.StartURLs = v.GetStringSlice("start")
	cfg.AllowedDomains = v.GetStringSlice("allowed-domain")
	cfg.MaxPages = v.GetInt("max-pages")
	cfg.MaxDepth = v.GetInt("max-depth")
	cfg.Concurrency = v.GetInt("concurrency")
	cfg.MaxConnections = v.GetInt("max-connections")
	cfg.Delay = secondsToDuration(v.GetFloat64("delay"))
	cfg.Timeout = secondsToDuration(v.GetFloat64("timeout"))
	cfg.UserAgent = v.GetString("user-agent")
	cfg.ObeyRobots = !v.GetBool("ignore-robots")
	cfg.OutputPath = v.GetString("out")
	cfg.SQLitePath = v.GetString("sqlite")
	cfg.Resume = v.GetBool("resume")
	cfg.MetricsInterval = secondsToDuration(v.GetFloat64("metrics-interval"))
	cfg.GlobalRPS = v.GetFloat64("rps")
	cfg.PrometheusPort = v.GetInt("prometheus-port")

	// Default scope: the hosts of the seeds.
	if len(cfg.AllowedDomains) == 0 {
		for _, u := range urlutil.NormalizeStart(cfg.StartURLs) {
			if h := urlutil.Host(u); h != "" {
				cfg.AllowedDomains = append(cfg.AllowedDomains, h)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func runCrawl(cmd *cobra.Command, args []string) error {
	v, err := bindFlags(cmd)
	if err != nil {
		return err
	}
	cfg, err := buildCrawlConfig(v)
	if err != nil {
		return err
	}

	log, err := buildLogger(verbosity)
	if err != nil {
		return err
	}
	defer log.Sync()

	crawler, err := engine.New(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return crawler.Run(ctx)
}

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export crawled pages from the SQLite database",
		RunE:  runReport,
	}

	f := cmd.Flags()
	f.String("sqlite", "", "SQLite database path (required)")
	f.String("format", "csv", "export format: csv, xlsx, or json")
	f.String("out", "", "output path (required)")
	f.Int("max-rows", 0, "limit exported rows (0 = unlimited)")

	return cmd
}

func runReport(cmd *cobra.Command, args []string) error {
	v, err := bindFlags(cmd)
	if err != nil {
		return err
	}

	dbPath := v.GetString("sqlite")
	outPath := v.GetString("out")
	if dbPath == "" {
		return fmt.Errorf("%w: --sqlite is required", config.ErrInvalid)
	}
	if outPath == "" {
		return fmt.Errorf("%w: --out is required", config.ErrInvalid)
	}
	format, err := report.ParseFormat(v.GetString("format"))
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}

	store, err := storage.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	rep, err := report.Build(store)
	if err != nil {
		return err
	}
	exporter := report.NewExporter(&report.ExportOptions{
		Format:   format,
		FilePath: outPath,
		MaxRows:  v.GetInt("max-rows"),
	})
	if err := exporter.Export(rep); err != nil {
		return err
	}
	fmt.Printf("Exported %d pages to %s\n", len(rep.Rows), outPath)
	return nil
}

// buildLogger returns a console logger: warn by default, info with -v,
// debug with -vv.
func buildLogger(verbosity int) (*zap.Logger, error) {
	var level zapcore.Level
	switch {
	case verbosity >= 2:
		level = zapcore.DebugLevel
	case verbosity == 1:
		level = zapcore.InfoLevel
	default:
		level = zapcore.WarnLevel
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	zc.DisableStacktrace = true
	return zc.Build()
}
