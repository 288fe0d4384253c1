// Package fingerprint loads the named regular expressions every payload is
// matched against.
package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultURL is fetched when no fingerprint file is configured.
const DefaultURL = "https://github.com/rohitcoder/hawk-eye/raw/main/fingerprint.yml"

// ConfigError reports a fingerprint source that cannot be read or parsed.
type ConfigError struct {
	Source string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("fingerprint config %s: %v", e.Source, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// PatternCompileError names the fingerprint whose expression is invalid.
type PatternCompileError struct {
	Name    string
	Pattern string
	Err     error
}

func (e *PatternCompileError) Error() string {
	return fmt.Sprintf("fingerprint %q: invalid pattern %q: %v", e.Name, e.Pattern, e.Err)
}

func (e *PatternCompileError) Unwrap() error { return e.Err }

// Rule is a compiled fingerprint.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// Entry is an uncompiled name/expression pair.
type Entry struct {
	Name    string
	Pattern string
}

// Set is an immutable, ordered collection of rules. It is safe for
// concurrent use.
type Set struct {
	rules []Rule
}

// Rules returns the rules in declaration order.
func (s *Set) Rules() []Rule {
	if s == nil {
		return nil
	}
	return s.rules
}

// Len reports the number of rules.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// Compile builds a Set from entries. Every expression is compiled case
// insensitively; the first failure aborts the whole load.
func Compile(entries []Entry) (*Set, error) {
	seen := make(map[string]bool, len(entries))
	set := &Set{rules: make([]Rule, 0, len(entries))}
	for _, e := range entries {
		if seen[e.Name] {
			return nil, &ConfigError{Source: "inline", Err: fmt.Errorf("duplicate fingerprint name %q", e.Name)}
		}
		seen[e.Name] = true

		re, err := regexp.Compile("(?i)" + e.Pattern)
		if err != nil {
			return nil, &PatternCompileError{Name: e.Name, Pattern: e.Pattern, Err: err}
		}
		set.rules = append(set.rules, Rule{Name: e.Name, Pattern: re})
	}
	return set, nil
}

// Parse decodes a YAML mapping of name to expression, keeping file order.
func Parse(data []byte) (*Set, error) {
	entries, err := parseEntries(data)
	if err != nil {
		return nil, err
	}
	return Compile(entries)
}

func parseEntries(data []byte) ([]Entry, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigError{Source: "yaml", Err: err}
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &ConfigError{Source: "yaml", Err: errors.New("fingerprints must be a mapping of name to pattern")}
	}

	entries := make([]Entry, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			return nil, &ConfigError{Source: "yaml", Err: fmt.Errorf("line %d: pattern for %q must be a string", val.Line, key.Value)}
		}
		entries = append(entries, Entry{Name: key.Value, Pattern: val.Value})
	}
	return entries, nil
}

// LoadFile reads and compiles a fingerprint file.
func LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Source: path, Err: err}
	}
	return Parse(data)
}

// Options selects where fingerprints come from.
type Options struct {
	// Path of a local fingerprint file. Empty means fetch URL.
	Path string
	// URL of the default set, DefaultURL when empty.
	URL string
	// SavePath receives a copy of the downloaded set when non-empty.
	SavePath string
	Client   *http.Client
}

// Load resolves fingerprints from a local file, or downloads the default
// set when no path is given. There is no fallback: any failure is fatal.
func Load(ctx context.Context, opts Options) (*Set, error) {
	if opts.Path != "" {
		return LoadFile(opts.Path)
	}

	url := opts.URL
	if url == "" {
		url = DefaultURL
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	data, err := fetch(ctx, client, url)
	if err != nil {
		return nil, &ConfigError{Source: url, Err: err}
	}
	set, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if opts.SavePath != "" {
		if err := os.WriteFile(opts.SavePath, data, 0644); err != nil {
			return nil, &ConfigError{Source: opts.SavePath, Err: err}
		}
	}
	return set, nil
}

func fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
