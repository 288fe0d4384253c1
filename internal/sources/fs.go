package sources

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/digimosa/hawk-scan/internal/config"
	"github.com/digimosa/hawk-scan/internal/exclusion"
	"github.com/digimosa/hawk-scan/internal/models"
)

// LocalHost is the host recorded for filesystem findings.
const LocalHost = "This PC"

func runFS(ctx context.Context, env *Env, profiles map[string]config.FSProfile) {
	for _, name := range profileNames(profiles) {
		p := profiles[name]
		if err := scanFS(ctx, env, name, p); err != nil {
			env.fail(models.SourceFS, name, err)
		}
	}
}

func scanFS(ctx context.Context, env *Env, profile string, p config.FSProfile) error {
	if p.Path == "" {
		return fmt.Errorf("path is required")
	}
	info, err := os.Stat(p.Path)
	if err != nil {
		return err
	}
	env.Log.WithField("profile", profile).WithField("path", p.Path).Info("Scanning filesystem")

	filter := exclusion.NewFilter(p.ExcludeExtensions, p.ExcludePatterns)
	if !info.IsDir() {
		if filter.File(info.Name()) {
			return nil
		}
		env.Pool.Submit(ctx, fsTask(env, profile, p.Path))
		return nil
	}

	return exclusion.Walk(p.Path, filter, env.Log, func(path string) error {
		if !env.Pool.Submit(ctx, fsTask(env, profile, path)) {
			return fs.SkipAll
		}
		return nil
	})
}

func fsTask(env *Env, profile, path string) Task {
	return func(ctx context.Context) []models.Finding {
		recs := env.Scanner.ScanFile(ctx, path, models.SourceFS)
		if len(recs) == 0 {
			return nil
		}
		meta := fileData(path)
		return findings(recs, profile, func(f *models.Finding) {
			f.Host = LocalHost
			f.FilePath = path
			f.FileData = meta
		})
	}
}

// fileData reports owner and timestamps; fields it cannot read stay empty.
func fileData(path string) *models.FileData {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	owner, created := ownerAndCreated(info)
	return &models.FileData{
		Creator:      owner,
		CreatedTime:  formatTime(created),
		ModifiedTime: formatTime(info.ModTime()),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
