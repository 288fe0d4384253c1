package scanner

import (
	"sort"
	"strings"

	"github.com/digimosa/hawk-scan/internal/models"
	"github.com/digimosa/hawk-scan/internal/reporting"
	"github.com/digimosa/hawk-scan/internal/severity"
	"github.com/digimosa/hawk-scan/internal/sources"
)

var sourceOrder = []string{
	models.SourceFS,
	models.SourceText,
	models.SourceS3,
	models.SourceGCS,
	models.SourceFirebase,
	models.SourcePostgreSQL,
	models.SourceMySQL,
	models.SourceMongoDB,
	models.SourceCouchDB,
	models.SourceRedis,
	models.SourceSlack,
	models.SourceGDrive,
	models.SourceWorkspace,
}

// GroupResults assigns severity to every finding and groups them by data
// source. Groups and findings come out in a stable order whatever order
// the workers finished in.
func GroupResults(findings []models.Finding, rules *severity.RuleSet) []reporting.Group {
	if rules == nil {
		rules = severity.Default()
	}
	bySource := map[string][]models.Finding{}
	for _, f := range findings {
		f = cleanup(rules.Evaluate(f))
		bySource[f.DataSource] = append(bySource[f.DataSource], f)
	}

	var groups []reporting.Group
	for _, src := range sourceOrder {
		if fs, ok := bySource[src]; ok {
			groups = append(groups, reporting.Group{Source: src, Findings: sortFindings(fs)})
			delete(bySource, src)
		}
	}
	rest := make([]string, 0, len(bySource))
	for src := range bySource {
		rest = append(rest, src)
	}
	sort.Strings(rest)
	for _, src := range rest {
		groups = append(groups, reporting.Group{Source: src, Findings: sortFindings(bySource[src])})
	}
	return groups
}

func sortFindings(fs []models.Finding) []models.Finding {
	sort.SliceStable(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		if a.Profile != b.Profile {
			return a.Profile < b.Profile
		}
		if la, lb := a.Location(), b.Location(); la != lb {
			return la < lb
		}
		return a.PatternName < b.PatternName
	})
	return fs
}

func cleanup(f models.Finding) models.Finding {
	f.FileName = strings.TrimSuffix(f.FileName, sources.ExportSuffix)
	f.FilePath = strings.TrimSuffix(f.FilePath, sources.ExportSuffix)
	return f
}
