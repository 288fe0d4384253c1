// Package allowlist holds literal values that are never reported.
package allowlist

import (
	"bufio"
	"os"
	"strings"
	"sync"
)

// List is a set of allowed values, optionally backed by a file with one
// value per line. Lines starting with # are comments.
type List struct {
	mu    sync.RWMutex
	items map[string]bool
	path  string
}

// Load reads the allowlist at path. A missing file yields an empty list
// that Add will create.
func Load(path string) (*List, error) {
	l := &List{
		items: make(map[string]bool),
		path:  path,
	}
	if path == "" {
		return l, nil
	}
	if err := l.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}
	return l, nil
}

// New returns an in-memory list.
func New(values ...string) *List {
	l := &List{items: make(map[string]bool)}
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			l.items[v] = true
		}
	}
	return l
}

func (l *List) load() error {
	file, err := os.Open(l.path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			l.items[line] = true
		}
	}
	return scanner.Err()
}

func (l *List) Len() int {
	if l == nil {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Contains checks if the value is allowlisted.
func (l *List) Contains(value string) bool {
	if l == nil {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.items[strings.TrimSpace(value)]
}

// Add allowlists value and appends it to the backing file, if any.
func (l *List) Add(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.items[value] {
		return nil
	}
	l.items[value] = true
	if l.path == "" {
		return nil
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteString(value + "\n")
	return err
}
