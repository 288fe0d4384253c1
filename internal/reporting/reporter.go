package reporting

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/digimosa/hawk-scan/internal/models"
)

// Group is the findings of one data source.
type Group struct {
	Source   string
	Findings []models.Finding
}

type Report struct {
	Summary models.ScanSummary
	Groups  []Group
}

func NewReport(id string, sources []string) *Report {
	return &Report{
		Summary: models.ScanSummary{
			ID:        id,
			Sources:   sources,
			StartTime: time.Now(),
		},
	}
}

// Finalize stamps the end time and totals.
func (r *Report) Finalize(groups []Group) {
	r.Groups = groups
	r.Summary.EndTime = time.Now()
	r.Summary.Duration = r.Summary.EndTime.Sub(r.Summary.StartTime)
	r.Summary.TotalFindings = len(r.Findings())
}

// Findings flattens the groups in display order.
func (r *Report) Findings() []models.Finding {
	var out []models.Finding
	for _, g := range r.Groups {
		out = append(out, g.Findings...)
	}
	return out
}

// Grouped maps each data source to its findings, the shape of the JSON export.
func (r *Report) Grouped() map[string][]models.Finding {
	out := make(map[string][]models.Finding, len(r.Groups))
	for _, g := range r.Groups {
		out[g.Source] = g.Findings
	}
	return out
}

func (r *Report) WriteJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "    ")
	return encoder.Encode(r.Grouped())
}

func (r *Report) SaveJSON(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()
	return r.WriteJSON(file)
}
