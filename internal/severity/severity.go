// Package severity classifies findings with ordered boolean rules.
package severity

import (
	"fmt"
	"reflect"
	"regexp"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"gopkg.in/yaml.v3"

	"github.com/digimosa/hawk-scan/internal/models"
)

const (
	Unknown            = "unknown"
	UnknownDescription = "No matching rule found."
)

// Entry is one configured predicate under a severity label.
type Entry struct {
	Label       string `yaml:"-"`
	Query       string `yaml:"query"`
	Description string `yaml:"description"`
}

// Entries is the declaration-ordered rule list. In YAML it is a mapping
// of label to a list of {query, description}.
type Entries []Entry

func (e *Entries) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("severity rules: expected a mapping, got %s", node.Tag)
	}
	var out Entries
	for i := 0; i+1 < len(node.Content); i += 2 {
		label := node.Content[i].Value
		var preds []Entry
		if err := node.Content[i+1].Decode(&preds); err != nil {
			return fmt.Errorf("severity rules %q: %w", label, err)
		}
		for _, p := range preds {
			p.Label = label
			out = append(out, p)
		}
	}
	*e = out
	return nil
}

// RuleError reports a predicate that failed to compile.
type RuleError struct {
	Label string
	Query string
	Err   error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("severity rule %s (%q): %v", e.Label, e.Query, e.Err)
}

func (e *RuleError) Unwrap() error { return e.Err }

type rule struct {
	Entry
	program *vm.Program
}

// RuleSet is read-only after Compile and safe for concurrent use.
type RuleSet struct {
	rules []rule
}

// DefaultEntries buckets findings by match count.
func DefaultEntries() Entries {
	return Entries{
		{Label: "Highest", Query: "length(matches) > 20", Description: "More than 20 matches found"},
		{Label: "High", Query: "length(matches) > 10", Description: "More than 10 matches found"},
		{Label: "Medium", Query: "length(matches) > 5", Description: "More than 5 matches found"},
		{Label: "Low", Query: "length(matches) <= 5", Description: "5 or fewer matches found"},
	}
}

// Default returns the compiled default rule set.
func Default() *RuleSet {
	rs, err := Compile(DefaultEntries())
	if err != nil {
		panic(err)
	}
	return rs
}

// Compile builds a rule set. An empty list yields the defaults.
func Compile(entries Entries) (*RuleSet, error) {
	if len(entries) == 0 {
		entries = DefaultEntries()
	}
	rs := &RuleSet{rules: make([]rule, 0, len(entries))}
	for _, e := range entries {
		program, err := expr.Compile(normalize(e.Query),
			expr.Env(env(models.Finding{})),
			expr.AsBool(),
			lengthFunc,
		)
		if err != nil {
			return nil, &RuleError{Label: e.Label, Query: e.Query, Err: err}
		}
		rs.rules = append(rs.rules, rule{Entry: e, program: program})
	}
	return rs, nil
}

// Evaluate returns a copy of f carrying the label and description of the
// first predicate that holds. Nothing else on the finding changes.
func (rs *RuleSet) Evaluate(f models.Finding) models.Finding {
	vars := env(f)
	for _, r := range rs.rules {
		out, err := expr.Run(r.program, vars)
		if err != nil {
			continue
		}
		if ok, _ := out.(bool); ok {
			f.Severity = r.Label
			f.SeverityDescription = r.Description
			return f
		}
	}
	f.Severity = Unknown
	f.SeverityDescription = UnknownDescription
	return f
}

// backtick literals as written in JMESPath-style rule files
var literal = regexp.MustCompile("`([^`]*)`")

func normalize(query string) string {
	return literal.ReplaceAllString(query, "$1")
}

func env(f models.Finding) map[string]any {
	matches := f.Matches
	if matches == nil {
		matches = []string{}
	}
	return map[string]any{
		"matches":      matches,
		"pattern_name": f.PatternName,
		"data_source":  f.DataSource,
		"profile":      f.Profile,
		"sample_text":  f.SampleText,
		"file_path":    f.FilePath,
		"bucket":       f.Bucket,
		"host":         f.Host,
		"database":     f.Database,
		"table":        f.Table,
		"column":       f.Column,
		"channel_name": f.ChannelName,
	}
}

var lengthFunc = expr.Function("length",
	func(params ...any) (any, error) {
		v := reflect.ValueOf(params[0])
		switch v.Kind() {
		case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
			return v.Len(), nil
		}
		return nil, fmt.Errorf("length: unsupported type %T", params[0])
	},
	new(func([]string) int),
	new(func(string) int),
)
