package sources

import (
	"encoding/json"
	"reflect"
	"sort"

	"github.com/digimosa/hawk-scan/internal/models"
)

// documentFindings matches every non-empty top-level field of doc.
// Nested values are matched in their JSON form.
func documentFindings(sc Scanner, source, profile string, doc map[string]any, decorate func(f *models.Finding, field string)) []models.Finding {
	fields := make([]string, 0, len(doc))
	for k := range doc {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	var out []models.Finding
	for _, field := range fields {
		text := fieldText(doc[field])
		if text == "" {
			continue
		}
		out = append(out, findings(sc.ScanText(text, source), profile, func(f *models.Finding) {
			decorate(f, field)
		})...)
	}
	return out
}

func fieldText(v any) string {
	if _, raw := v.([]byte); !raw && v != nil {
		switch reflect.TypeOf(v).Kind() {
		case reflect.Map, reflect.Slice:
			if b, err := json.Marshal(v); err == nil {
				return string(b)
			}
		}
	}
	return cellText(v)
}
