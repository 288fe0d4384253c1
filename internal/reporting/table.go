package reporting

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/digimosa/hawk-scan/internal/models"
)

var (
	titleColor = color.New(color.FgBlue, color.Bold)
	noneColor  = color.New(color.FgGreen)
)

// locationHeader names the location column of a source, "" for none.
func locationHeader(source string) string {
	switch source {
	case models.SourceS3, models.SourceGCS, models.SourceFirebase:
		return "Bucket > File Path"
	case models.SourcePostgreSQL, models.SourceMySQL:
		return "Host > Database > Table.Column"
	case models.SourceMongoDB:
		return "Host > Database > Collection.Field"
	case models.SourceCouchDB:
		return "Host > Database > Document.Field"
	case models.SourceRedis:
		return "Host > Key"
	case models.SourceGDrive:
		return "Drive > File Path"
	case models.SourceWorkspace:
		return "User > File Path"
	case models.SourceSlack:
		return "Channel Name > Message Link"
	case models.SourceFS:
		return "File Path"
	}
	return ""
}

// Render writes one table per data source.
func (r *Report) Render(w io.Writer) error {
	if len(r.Groups) == 0 {
		noneColor.Fprintln(w, "No sensitive data found.")
		return nil
	}

	for _, g := range r.Groups {
		titleColor.Fprintf(w, "\nTotal %d findings in %s\n", len(g.Findings), g.Source)

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		loc := locationHeader(g.Source)

		header := []string{"Sl. No.", "Vulnerable Profile"}
		if loc != "" {
			header = append(header, loc)
		}
		header = append(header, "Pattern Name", "Total Exposed", "Exposed Values", "Sample Text", "Severity")
		fmt.Fprintln(tw, strings.Join(header, "\t"))

		for i, f := range g.Findings {
			row := []string{strconv.Itoa(i + 1), f.Profile}
			if loc != "" {
				row = append(row, f.Location())
			}
			row = append(row,
				f.PatternName,
				strconv.Itoa(len(f.Matches)),
				models.ExposedValues(f.Matches),
				oneLine(f.SampleText),
				f.Severity,
			)
			fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
