package reporting

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digimosa/hawk-scan/internal/models"
)

func sampleReport() *Report {
	r := NewReport("run-1", []string{"fs", "postgresql"})
	r.Finalize([]Group{
		{Source: models.SourceFS, Findings: []models.Finding{{
			MatchRecord: models.MatchRecord{PatternName: "email", Matches: []string{"a@b.com", "c@d.com"}, SampleText: "contact:\na@b.com", DataSource: models.SourceFS},
			Profile:     "home",
			FilePath:    "/srv/a.txt",
			Severity:    "Low",
		}}},
		{Source: models.SourcePostgreSQL, Findings: []models.Finding{{
			MatchRecord: models.MatchRecord{PatternName: "iban", Matches: []string{"DE89370400440532013000"}, DataSource: models.SourcePostgreSQL},
			Profile:     "prod",
			Host:        "db:5432",
			Database:    "app",
			Table:       "users",
			Column:      "notes",
			Severity:    "Low",
		}}},
	})
	return r
}

func TestFinalize(t *testing.T) {
	r := sampleReport()
	assert.Equal(t, 2, r.Summary.TotalFindings)
	assert.False(t, r.Summary.EndTime.Before(r.Summary.StartTime))
	assert.Len(t, r.Findings(), 2)
}

func TestSaveJSON_Grouped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, sampleReport().SaveJSON(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got map[string][]map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got["fs"], 1)
	assert.Equal(t, "email", got["fs"][0]["pattern_name"])
	assert.Equal(t, "/srv/a.txt", got["fs"][0]["file_path"])
	assert.Equal(t, "Low", got["postgresql"][0]["severity"])
	assert.NotContains(t, got["fs"][0], "bucket")
}

func TestRender(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	require.NoError(t, sampleReport().Render(&buf))

	out := buf.String()
	assert.Contains(t, out, "Total 1 findings in fs")
	assert.Contains(t, out, "File Path")
	assert.Contains(t, out, "Host > Database > Table.Column")
	assert.Contains(t, out, "db:5432 > app > users.notes")
	assert.Contains(t, out, "a@b.com, c@d.com")
	assert.Contains(t, out, "contact: a@b.com")
}

func TestRender_Empty(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	r := NewReport("run-2", nil)
	r.Finalize(nil)
	require.NoError(t, r.Render(&buf))
	assert.Contains(t, buf.String(), "No sensitive data found.")
}
