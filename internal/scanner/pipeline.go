package scanner

import (
	"context"

	"github.com/digimosa/hawk-scan/internal/allowlist"
	"github.com/digimosa/hawk-scan/internal/extractor"
	"github.com/digimosa/hawk-scan/internal/matcher"
	"github.com/digimosa/hawk-scan/internal/models"
)

// Pipeline turns a payload into match records: extract, then match with
// allowlisted values left out. The allowlist sees raw values, so it holds
// with redaction on.
type Pipeline struct {
	extractor *extractor.Extractor
	engine    *matcher.Engine
	allow     *allowlist.List
}

func NewPipeline(ex *extractor.Extractor, engine *matcher.Engine, allow *allowlist.List) *Pipeline {
	return &Pipeline{extractor: ex, engine: engine, allow: allow}
}

// ScanFile extracts path and matches its text. Extraction failures scan
// as empty text.
func (p *Pipeline) ScanFile(ctx context.Context, path, dataSource string) []models.MatchRecord {
	return p.ScanText(p.extractor.Text(ctx, path), dataSource)
}

func (p *Pipeline) ScanText(text, dataSource string) []models.MatchRecord {
	return p.engine.ScanFunc(text, dataSource, p.allow.Contains)
}
