package matcher

import (
	"strings"
	"unicode/utf8"

	"github.com/digimosa/hawk-scan/internal/fingerprint"
	"github.com/digimosa/hawk-scan/internal/models"
)

// SampleLength is the number of leading characters kept as sample text.
const SampleLength = 50

// Engine runs a fingerprint set against text payloads. It holds no mutable
// state and may be shared by all workers.
type Engine struct {
	rules  []fingerprint.Rule
	redact bool
}

// New creates an engine. redact masks matched values and sample text.
func New(set *fingerprint.Set, redact bool) *Engine {
	return &Engine{rules: set.Rules(), redact: redact}
}

// Scan returns one record per fingerprint that matches text at least once.
// Matched values are trimmed and deduplicated in first-seen order.
func (e *Engine) Scan(text, dataSource string) []models.MatchRecord {
	return e.ScanFunc(text, dataSource, nil)
}

// ScanFunc is Scan with values for which skip returns true left out. skip
// sees the raw value, before any redaction; a fingerprint left with no
// values yields no record.
func (e *Engine) ScanFunc(text, dataSource string, skip func(string) bool) []models.MatchRecord {
	if text == "" {
		return nil
	}

	var records []models.MatchRecord
	for _, rule := range e.rules {
		values := findAll(rule, text, skip)
		if len(values) == 0 {
			continue
		}

		sample := sample(text)
		if e.redact {
			for i := range values {
				values[i] = Redact(values[i])
			}
			sample = Redact(sample)
		}

		records = append(records, models.MatchRecord{
			PatternName: rule.Name,
			Matches:     values,
			SampleText:  sample,
			DataSource:  dataSource,
		})
	}
	return records
}

// findAll follows findall semantics: with exactly one capture group the
// group text is reported, otherwise the whole match. A match that trims to
// "" is still a value.
func findAll(rule fingerprint.Rule, text string, skip func(string) bool) []string {
	group := 0
	if rule.Pattern.NumSubexp() == 1 {
		group = 1
	}

	seen := make(map[string]struct{})
	var values []string
	for _, m := range rule.Pattern.FindAllStringSubmatch(text, -1) {
		v := strings.TrimSpace(m[group])
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		if skip != nil && skip(v) {
			continue
		}
		values = append(values, v)
	}
	return values
}

func sample(text string) string {
	if utf8.RuneCountInString(text) <= SampleLength {
		return text
	}
	return string([]rune(text)[:SampleLength])
}

// Redact masks the middle half of s with '*'. Strings shorter than three
// characters are returned unchanged.
func Redact(s string) string {
	runes := []rune(s)
	n := len(runes)
	if n < 3 {
		return s
	}

	count := n / 2
	start := n/2 - count/2
	end := n/2 + count/2
	for i := start; i < end; i++ {
		runes[i] = '*'
	}
	return string(runes)
}
