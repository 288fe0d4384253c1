package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/digimosa/hawk-scan/internal/allowlist"
	"github.com/digimosa/hawk-scan/internal/config"
	"github.com/digimosa/hawk-scan/internal/extractor"
	"github.com/digimosa/hawk-scan/internal/fingerprint"
	"github.com/digimosa/hawk-scan/internal/logging"
	"github.com/digimosa/hawk-scan/internal/matcher"
	"github.com/digimosa/hawk-scan/internal/notify"
	"github.com/digimosa/hawk-scan/internal/ocr"
	"github.com/digimosa/hawk-scan/internal/scanner"
	"github.com/digimosa/hawk-scan/internal/severity"
	"github.com/digimosa/hawk-scan/internal/sources"
	"github.com/digimosa/hawk-scan/internal/storage"
	"github.com/digimosa/hawk-scan/internal/suppress"
)

var colorRed = color.New(color.FgRed, color.Bold)

func main() {
	if err := rootCmd().Execute(); err != nil {
		colorRed.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cfg := config.DefaultConfig()
	commands := append(sources.Kinds(), "all")

	cmd := &cobra.Command{
		Use:       "scanner [" + strings.Join(commands, "|") + "]",
		Short:     "Scan data sources for PII and secrets",
		Args:      cobra.ExactValidArgs(1),
		ValidArgs: commands,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), cfg, args[0])
		},
		SilenceUsage: true,
	}

	f := cmd.PersistentFlags()
	f.StringVar(&cfg.ConnectionPath, "connection", cfg.ConnectionPath, "Path to the connection file")
	f.StringVar(&cfg.FingerprintPath, "fingerprint", cfg.FingerprintPath, `Path to a fingerprint file, or "builtin" (default: download)`)
	f.StringVar(&cfg.JSONPath, "json", "", "Write results to this JSON file instead of printing tables")
	f.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	f.BoolVar(&cfg.Quiet, "shutup", false, "Suppress the banner")
	f.IntVar(&cfg.Workers, "workers", cfg.Workers, "Number of concurrent workers")
	f.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the SQLite database holding history and alert hashes")
	f.StringVar(&cfg.AllowlistPath, "allowlist", cfg.AllowlistPath, "Path to the allowlist file")
	f.StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "Directory for downloaded remote objects")
	f.StringVar(&cfg.LogFile, "log-file", "", "Also write JSON logs to this file")

	cmd.AddCommand(allowCmd(cfg), historyCmd(cfg))
	return cmd
}

func runScan(ctx context.Context, cfg *config.Config, command string) error {
	log := logging.New(cfg.Debug, cfg.LogFile)
	if !cfg.Quiet {
		printBanner()
	}

	conn, err := config.LoadConnection(cfg.ConnectionPath)
	if err != nil {
		var cerr *config.ConfigError
		if errors.As(err, &cerr) {
			colorRed.Fprintf(os.Stderr, "[CRITICAL] %v\n", cerr)
			os.Exit(1)
		}
		return err
	}
	cfg.Connection = conn

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	set, err := loadFingerprints(ctx, cfg)
	if err != nil {
		return err
	}
	log.WithField("patterns", set.Len()).Info("Fingerprints loaded")

	rules, err := severity.Compile(conn.Notify.SeverityRules)
	if err != nil {
		return err
	}

	allow, err := allowlist.Load(cfg.AllowlistPath)
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	dispatcher, err := newDispatcher(conn.Notify, store, log)
	if err != nil {
		return err
	}

	ex := extractor.New(cfg.Extractor,
		extractor.WithOCR(ocr.NewTesseract()),
		extractor.WithFrameSource(extractor.FFmpegFrames{}),
		extractor.WithLogger(log),
	)
	pipeline := scanner.NewPipeline(ex, matcher.New(set, conn.Notify.Redacted), allow)
	s := scanner.New(cfg, pipeline, rules,
		scanner.WithStore(store),
		scanner.WithDispatcher(dispatcher),
		scanner.WithLogger(log),
	)

	kinds, err := s.Sources(command)
	if err != nil {
		return err
	}

	start := time.Now()
	report, err := s.Run(ctx, kinds)
	if err != nil {
		return err
	}
	log.WithField("duration", time.Since(start).Round(time.Millisecond)).Info("Scan complete")

	if cfg.JSONPath != "" {
		if err := report.SaveJSON(cfg.JSONPath); err != nil {
			return fmt.Errorf("error saving JSON report: %w", err)
		}
		fmt.Printf("JSON report saved to: %s\n", cfg.JSONPath)
		return nil
	}
	return report.Render(os.Stdout)
}

func loadFingerprints(ctx context.Context, cfg *config.Config) (*fingerprint.Set, error) {
	if cfg.FingerprintPath == fingerprint.BuiltinName {
		return fingerprint.Builtin(), nil
	}
	return fingerprint.Load(ctx, fingerprint.Options{
		Path:     cfg.FingerprintPath,
		SavePath: cfg.FingerprintSavePath,
	})
}

func newDispatcher(n config.Notify, store *storage.Store, log logrus.FieldLogger) (*notify.Dispatcher, error) {
	client := &http.Client{Timeout: 30 * time.Second}

	var notifiers []notify.Notifier
	if n.Slack != nil && n.Slack.WebhookURL != "" {
		slack, err := notify.NewSlack(n.Slack.WebhookURL, client)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, slack)
	}
	if n.Jira != nil && n.Jira.ServerURL != "" {
		jira, err := notify.NewJira(*n.Jira, store, client, log)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, jira)
	}
	return notify.NewDispatcher(suppress.New(n.SuppressDuplicates, store), log, notifiers...), nil
}

func allowCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "allow <value>...",
		Short: "Add values to the allowlist so they are never reported",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := allowlist.Load(cfg.AllowlistPath)
			if err != nil {
				return err
			}
			for _, v := range args {
				if err := list.Add(v); err != nil {
					return err
				}
			}
			fmt.Printf("Allowlist %s now holds %d values\n", cfg.AllowlistPath, list.Len())
			return nil
		},
	}
}

func historyCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "history [run-id]",
		Short: "List past scans, or the findings of one scan",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storage.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer tw.Flush()

			if len(args) == 1 {
				scan, err := store.GetScanByRunID(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "SOURCE\tPROFILE\tPATTERN\tMATCHES\tSEVERITY\tLOCATION")
				for _, f := range scan.Findings {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", f.DataSource, f.Profile, f.PatternName, f.Matches, f.Severity, f.Location)
				}
				return nil
			}

			scans, err := store.GetAllScans()
			if err != nil {
				return err
			}
			fmt.Fprintln(tw, "RUN\tSOURCES\tSTATUS\tSTARTED\tFINDINGS")
			for _, s := range scans {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", s.RunID, s.Sources, s.Status, s.StartTime.Format(time.RFC3339), s.TotalFindings)
			}
			return nil
		},
	}
}

func printBanner() {
	color.New(color.FgCyan, color.Bold).Println("hawk-scan: find PII and secrets across your data sources")
}
