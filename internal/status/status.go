// Package status keeps the last pass summary of every record type, in
// memory and in a YAML status file read by `sfsync status`.
package status

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bianoble/sfsync/internal/engine"
)

// File is the on-disk status document.
type File struct {
	Version   int                           `yaml:"version"`
	UpdatedAt time.Time                     `yaml:"updated_at"`
	Records   map[string]*engine.RunSummary `yaml:"records"`
}

// Sorted returns the summaries ordered by record type.
func (f *File) Sorted() []*engine.RunSummary {
	out := make([]*engine.RunSummary, 0, len(f.Records))
	for _, s := range f.Records {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordType < out[j].RecordType })
	return out
}

// Load reads and validates a status file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading status file %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing status file %s: %w", path, err)
	}

	if errs := Validate(&f); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	return &f, nil
}

// Save writes a status file atomically using a temp file and rename.
func Save(path string, f *File) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshaling status file: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing temp status file %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming temp status file to %s: %w", path, err)
	}

	return nil
}

// ValidationError holds multiple validation failures.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("status file validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Validate checks a status File for semantic correctness.
func Validate(f *File) []string {
	var errs []string

	if f.Version != 1 {
		errs = append(errs, fmt.Sprintf("unsupported version %d — only version 1 is supported", f.Version))
	}
	for name, s := range f.Records {
		if s == nil {
			errs = append(errs, fmt.Sprintf("record '%s': empty summary", name))
			continue
		}
		if s.RecordType != name {
			errs = append(errs, fmt.Sprintf("record '%s': summary belongs to '%s'", name, s.RecordType))
		}
		switch s.Status {
		case engine.StatusCompleted, engine.StatusAborted:
		default:
			errs = append(errs, fmt.Sprintf("record '%s': unknown status '%s'", name, s.Status))
		}
	}

	return errs
}

// Memory keeps the last summary per record type. It implements
// engine.SummarySink and is safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	byType map[string]*engine.RunSummary
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{byType: make(map[string]*engine.RunSummary)}
}

// Record implements engine.SummarySink.
func (m *Memory) Record(ctx context.Context, s *engine.RunSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byType[s.RecordType] = s
}

// Last returns the most recent summary of every record type.
func (m *Memory) Last() []*engine.RunSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f := File{Records: m.byType}
	return f.Sorted()
}

// FileSink persists every summary into the status file at Path.
// Write failures are logged; they never affect the pass.
type FileSink struct {
	Path   string
	Logger *slog.Logger

	mu  sync.Mutex
	now func() time.Time
}

// Record implements engine.SummarySink. Dry runs are not persisted.
func (s *FileSink) Record(ctx context.Context, sum *engine.RunSummary) {
	if sum.DryRun {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := Load(s.Path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger().Warn("status file unreadable, starting fresh", "path", s.Path, "error", err)
		}
		f = &File{Version: 1}
	}
	if f.Records == nil {
		f.Records = make(map[string]*engine.RunSummary)
	}
	f.Records[sum.RecordType] = sum
	f.UpdatedAt = s.clock()()

	if err := Save(s.Path, f); err != nil {
		s.logger().Error("writing status file", "path", s.Path, "error", err)
	}
}

func (s *FileSink) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *FileSink) clock() func() time.Time {
	if s.now != nil {
		return s.now
	}
	return time.Now
}
