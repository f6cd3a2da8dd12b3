// Package categories keeps the ordered list of expense category labels and
// persists it to a JSON file.
package categories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Sentinel is the label that triggers free-text category entry. It is always
// present and always last.
const Sentinel = "Other"

// DefaultLabels is used whenever the file cannot be read or parsed.
var DefaultLabels = []string{
	"Vegetables", "Fruits", "Dairy Products", "Egg", "House Grocery",
	"Snacks", "Tea/coffee", "Juice", "Petrol", Sentinel,
}

type Store struct {
	mu     sync.Mutex
	path   string
	labels []string
}

// Load reads the category file at path. Missing or corrupt files fall back to
// DefaultLabels without returning an error.
func Load(path string) *Store {
	s := &Store{path: path}
	labels, err := readFile(path)
	if err != nil {
		slog.Debug("Using default categories", "path", path, "error", err)
		labels = DefaultLabels
	}
	s.labels = normalize(labels)
	return s
}

// New returns an in-memory store seeded with labels. An empty path disables
// persistence.
func New(path string, labels []string) *Store {
	return &Store{path: path, labels: normalize(labels)}
}

// List returns a copy of the labels in display order.
func (s *Store) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.labels...)
}

// Contains reports whether label is known (exact, case-sensitive match).
func (s *Store) Contains(label string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return indexOf(s.labels, label) >= 0
}

// Sentinel returns the free-text trigger label.
func (s *Store) Sentinel() string {
	return Sentinel
}

// AddIfAbsent inserts label just before the sentinel and rewrites the file.
// It reports whether the list changed. On a write failure the in-memory list
// is left as it was.
func (s *Store) AddIfAbsent(label string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if label == "" || indexOf(s.labels, label) >= 0 {
		return false, nil
	}
	next := make([]string, 0, len(s.labels)+1)
	next = append(next, s.labels[:len(s.labels)-1]...)
	next = append(next, label, Sentinel)

	if err := s.persist(next); err != nil {
		return false, err
	}
	s.labels = next
	return true, nil
}

func (s *Store) persist(labels []string) error {
	if s.path == "" {
		return nil
	}
	data, err := json.Marshal(labels)
	if err != nil {
		return fmt.Errorf("encode categories: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".categories-*.json")
	if err != nil {
		return fmt.Errorf("create temp categories file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write categories: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close categories file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace categories file %s: %w", s.path, err)
	}
	return nil
}

func readFile(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("no categories file configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var labels []string
	if err := json.Unmarshal(data, &labels); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("%s holds no categories", path)
	}
	return labels, nil
}

// normalize drops blanks and duplicates and moves the sentinel to the end.
func normalize(in []string) []string {
	seen := map[string]struct{}{Sentinel: {}}
	out := make([]string, 0, len(in)+1)
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return append(out, Sentinel)
}

func indexOf(labels []string, label string) int {
	for i, v := range labels {
		if v == label {
			return i
		}
	}
	return -1
}
