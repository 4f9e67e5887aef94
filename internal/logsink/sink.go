// Package logsink appends batched mobile-client log records to per-source
// files. Each accepted batch is flushed to disk so a crash loses at most the
// unflushed batch.
package logsink

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultSources are the source tags the gateway accepts out of the box.
var DefaultSources = []string{"scanai", "posai"}

// Record is one log line from a mobile client.
type Record struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink owns one append-only file per source tag. A single mutex serializes
// all writers.
type Sink struct {
	mu    sync.Mutex
	files map[string]*os.File
}

// New opens (or creates) one append file per source under dir.
func New(dir string, sources ...string) (*Sink, error) {
	if len(sources) == 0 {
		sources = DefaultSources
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logsink: create dir: %w", err)
	}

	s := &Sink{files: make(map[string]*os.File, len(sources))}
	for _, src := range sources {
		f, err := os.OpenFile(filepath.Join(dir, src+".log"),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("logsink: open %s: %w", src, err)
		}
		s.files[src] = f
	}
	return s, nil
}

// Append writes a batch for one source and syncs the file. Unknown source
// tags are discarded with a warning; that is not an error to the caller.
func (s *Sink) Append(source string, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[source]
	if !ok {
		slog.Warn("logsink: unknown source, batch discarded", "source", source, "records", len(records))
		return nil
	}

	for _, r := range records {
		ts := r.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		line := fmt.Sprintf("[%s] [%s] %s\n", ts.UTC().Format(time.RFC3339), r.Level, r.Message)
		if _, err := f.WriteString(line); err != nil {
			return fmt.Errorf("logsink: write %s: %w", source, err)
		}
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("logsink: sync %s: %w", source, err)
	}
	return nil
}

// Close closes all sink files.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.files {
		f.Close()
	}
	s.files = map[string]*os.File{}
}
