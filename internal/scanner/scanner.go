package scanner

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/digimosa/hawk-scan/internal/config"
	"github.com/digimosa/hawk-scan/internal/logging"
	"github.com/digimosa/hawk-scan/internal/notify"
	"github.com/digimosa/hawk-scan/internal/reporting"
	"github.com/digimosa/hawk-scan/internal/severity"
	"github.com/digimosa/hawk-scan/internal/sources"
	"github.com/digimosa/hawk-scan/internal/storage"
)

// Scanner handles the orchestration of a scan run
type Scanner struct {
	cfg        *config.Config
	pipeline   *Pipeline
	rules      *severity.RuleSet
	dispatcher *notify.Dispatcher
	store      *storage.Store
	log        logrus.FieldLogger
}

type Option func(*Scanner)

// WithStore records the run in scan history.
func WithStore(store *storage.Store) Option {
	return func(s *Scanner) { s.store = store }
}

// WithDispatcher notifies about findings after grouping.
func WithDispatcher(d *notify.Dispatcher) Option {
	return func(s *Scanner) { s.dispatcher = d }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Scanner) { s.log = log }
}

func New(cfg *config.Config, pipeline *Pipeline, rules *severity.RuleSet, opts ...Option) *Scanner {
	if rules == nil {
		rules = severity.Default()
	}
	s := &Scanner{cfg: cfg, pipeline: pipeline, rules: rules, log: logging.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sources resolves a command into the source kinds to run. "all" selects
// every configured kind.
func (s *Scanner) Sources(command string) ([]string, error) {
	if command == "all" {
		return s.cfg.Connection.Sources.Kinds(), nil
	}
	if !sources.Supported(command) {
		return nil, fmt.Errorf("command %q is not supported", command)
	}
	return []string{command}, nil
}

// Run scans every kind, then groups, rates and dispatches the findings.
// Per-item and per-profile failures are logged and never abort the run.
func (s *Scanner) Run(ctx context.Context, kinds []string) (*reporting.Report, error) {
	for _, kind := range kinds {
		if !sources.Supported(kind) {
			return nil, fmt.Errorf("source %q is not supported", kind)
		}
	}

	conn := s.cfg.Connection
	runID := uuid.NewString()
	log := s.log.WithField("run", runID)
	report := reporting.NewReport(runID, kinds)

	var scan *storage.ScanModel
	if s.store != nil {
		var err error
		if scan, err = s.store.CreateScan(runID, kinds); err != nil {
			log.WithError(err).Warn("Failed to create scan record")
		}
	}

	ceiling := 0
	if conn.Options.QuickExit {
		ceiling = conn.Options.MaxMatches
		log.WithField("max_matches", ceiling).Info("Quick exit enabled")
	}
	pool := NewPool(s.cfg.Workers, ceiling)
	env := &sources.Env{
		Scanner:  s.pipeline,
		Pool:     pool,
		CacheDir: s.cfg.CacheDir,
		Log:      log,
	}

	for _, kind := range kinds {
		if pool.Stopped() || ctx.Err() != nil {
			break
		}
		if err := sources.Run(ctx, kind, env, conn.Sources); err != nil {
			log.WithError(err).WithField("source", kind).Error("Source failed")
		}
	}
	findings := pool.Wait()
	env.Close()
	if pool.Stopped() {
		log.WithField("findings", len(findings)).Info("Quick exit: match ceiling reached")
	}

	groups := GroupResults(findings, s.rules)
	report.Finalize(groups)

	if s.dispatcher != nil && s.dispatcher.Enabled() {
		sent := 0
		for _, g := range groups {
			sent += s.dispatcher.Dispatch(ctx, g.Findings)
		}
		log.WithField("sent", sent).Info("Notifications dispatched")
	}

	if scan != nil {
		status := "Completed"
		if ctx.Err() != nil {
			status = "Cancelled"
		}
		if err := s.store.SaveFindings(scan.ID, report.Findings()); err != nil {
			log.WithError(err).Warn("Failed to store findings")
		}
		if err := s.store.CompleteScan(scan, status, int64(report.Summary.TotalFindings)); err != nil {
			log.WithError(err).Warn("Failed to complete scan record")
		}
	}
	return report, nil
}
