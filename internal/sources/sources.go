// Package sources enumerates items from configured data sources and hands
// them to the scan pipeline.
package sources

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/digimosa/hawk-scan/internal/config"
	"github.com/digimosa/hawk-scan/internal/models"
)

// Scanner turns one payload into match records.
type Scanner interface {
	ScanFile(ctx context.Context, path, dataSource string) []models.MatchRecord
	ScanText(text, dataSource string) []models.MatchRecord
}

// Task scans one item and returns its findings.
type Task func(ctx context.Context) []models.Finding

// Submitter runs tasks on a bounded pool. Submit blocks while the pool is
// full and returns false once no more work is accepted.
type Submitter interface {
	Submit(ctx context.Context, t Task) bool
}

// Env is what every connector runs with.
type Env struct {
	Scanner  Scanner
	Pool     Submitter
	CacheDir string
	Log      logrus.FieldLogger

	mu      sync.Mutex
	closers []func()
}

// Defer registers fn to run from Close, after every submitted task has
// finished. Clients used by tasks are released this way.
func (env *Env) Defer(fn func()) {
	env.mu.Lock()
	defer env.mu.Unlock()
	env.closers = append(env.closers, fn)
}

// Close runs deferred functions in reverse order.
func (env *Env) Close() {
	env.mu.Lock()
	closers := env.closers
	env.closers = nil
	env.mu.Unlock()
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}

// ConnectorError is a profile that could not be scanned. It is logged and
// the run continues with the other profiles.
type ConnectorError struct {
	Source  string
	Profile string
	Err     error
}

func (e *ConnectorError) Error() string {
	return fmt.Sprintf("%s profile %s: %v", e.Source, e.Profile, e.Err)
}

func (e *ConnectorError) Unwrap() error { return e.Err }

// RateLimitError is a throttled API call.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

type runner func(ctx context.Context, env *Env, src config.Sources)

var registry = map[string]runner{
	models.SourceFS:         func(ctx context.Context, env *Env, src config.Sources) { runFS(ctx, env, src.FS) },
	models.SourceText:       func(ctx context.Context, env *Env, src config.Sources) { runText(ctx, env, src.Text) },
	models.SourceS3:         func(ctx context.Context, env *Env, src config.Sources) { runS3(ctx, env, src.S3) },
	models.SourceGCS:        func(ctx context.Context, env *Env, src config.Sources) { runGCS(ctx, env, models.SourceGCS, src.GCS) },
	models.SourceFirebase:   func(ctx context.Context, env *Env, src config.Sources) { runGCS(ctx, env, models.SourceFirebase, src.Firebase) },
	models.SourcePostgreSQL: func(ctx context.Context, env *Env, src config.Sources) { runPostgres(ctx, env, src.PostgreSQL) },
	models.SourceMySQL:      func(ctx context.Context, env *Env, src config.Sources) { runMySQL(ctx, env, src.MySQL) },
	models.SourceMongoDB:    func(ctx context.Context, env *Env, src config.Sources) { runMongoDB(ctx, env, src.MongoDB) },
	models.SourceCouchDB:    func(ctx context.Context, env *Env, src config.Sources) { runCouchDB(ctx, env, src.CouchDB) },
	models.SourceRedis:      func(ctx context.Context, env *Env, src config.Sources) { runRedis(ctx, env, src.Redis) },
	models.SourceSlack:      func(ctx context.Context, env *Env, src config.Sources) { runSlack(ctx, env, src.Slack) },
	models.SourceGDrive:     func(ctx context.Context, env *Env, src config.Sources) { runDrive(ctx, env, models.SourceGDrive, src.GDrive) },
	models.SourceWorkspace:  func(ctx context.Context, env *Env, src config.Sources) { runDrive(ctx, env, models.SourceWorkspace, src.Workspace) },
}

// Supported reports whether kind names a known source.
func Supported(kind string) bool {
	_, ok := registry[kind]
	return ok
}

// Kinds lists the known sources.
func Kinds() []string {
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Run enumerates every profile of kind. Profile failures are logged as
// ConnectorError; only an unknown kind is returned as an error.
func Run(ctx context.Context, kind string, env *Env, src config.Sources) error {
	run, ok := registry[kind]
	if !ok {
		return fmt.Errorf("source %q is not supported", kind)
	}
	env.Log.WithField("source", kind).Info("Running checks")
	run(ctx, env, src)
	return nil
}

func (env *Env) fail(source, profile string, err error) {
	env.Log.WithError(&ConnectorError{Source: source, Profile: profile, Err: err}).
		WithFields(logrus.Fields{"source": source, "profile": profile}).
		Error("Profile failed")
}

func findings(recs []models.MatchRecord, profile string, decorate func(*models.Finding)) []models.Finding {
	if len(recs) == 0 {
		return nil
	}
	out := make([]models.Finding, 0, len(recs))
	for _, rec := range recs {
		f := models.NewFinding(rec, profile)
		if decorate != nil {
			decorate(&f)
		}
		out = append(out, f)
	}
	return out
}

func profileNames[P any](profiles map[string]P) []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
