package sources

import (
	"context"

	"github.com/digimosa/hawk-scan/internal/config"
	"github.com/digimosa/hawk-scan/internal/models"
)

func runText(ctx context.Context, env *Env, profiles map[string]config.TextProfile) {
	for _, name := range profileNames(profiles) {
		p := profiles[name]
		if p.Text == "" {
			env.Log.WithField("profile", name).Debug("Empty text profile")
			continue
		}
		profile := name
		if !env.Pool.Submit(ctx, func(context.Context) []models.Finding {
			return findings(env.Scanner.ScanText(p.Text, models.SourceText), profile, nil)
		}) {
			return
		}
	}
}
