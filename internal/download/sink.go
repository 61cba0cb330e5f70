// Package download hands produced files to the user: into a directory for the
// CLI, into memory for the HTTP API and tests.
package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spherical/file-converter/internal/domain"
	"github.com/spherical/file-converter/internal/observability"
)

// SinkFunc adapts a function to domain.Sink
type SinkFunc func(ctx context.Context, file domain.OutputFile) error

// Deliver calls f
func (f SinkFunc) Deliver(ctx context.Context, file domain.OutputFile) error {
	return f(ctx, file)
}

// DirSink writes every delivered file into a directory. A file becomes
// visible under its final name only once fully written.
type DirSink struct {
	dir    string
	logger *observability.Logger

	mu      sync.Mutex
	written []string
}

// NewDirSink creates the directory if needed
func NewDirSink(dir string, logger *observability.Logger) (*DirSink, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, domain.IOError(fmt.Sprintf("cannot create output directory %s", dir), err)
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &DirSink{dir: dir, logger: logger.WithComponent("download")}, nil
}

// Deliver writes file into the directory, replacing any file of the same name
func (s *DirSink) Deliver(ctx context.Context, file domain.OutputFile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name := filepath.Base(file.Name)
	if name == "." || name == string(filepath.Separator) {
		return domain.ValidationError("output file has no name", nil)
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*.part")
	if err != nil {
		return domain.IOError("cannot create temporary file", err).WithFile(name)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(file.Data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return domain.IOError("cannot write file", err).WithFile(name)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return domain.IOError("cannot write file", err).WithFile(name)
	}

	target := filepath.Join(s.dir, name)
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return domain.IOError("cannot move file into place", err).WithFile(name)
	}

	s.mu.Lock()
	s.written = append(s.written, target)
	s.mu.Unlock()

	s.logger.Info().Str("path", target).Int("bytes", file.Size()).Msg("File saved")
	return nil
}

// Written lists the paths written so far in delivery order
func (s *DirSink) Written() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.written...)
}

// MemorySink collects delivered files in delivery order
type MemorySink struct {
	mu    sync.Mutex
	files []domain.OutputFile
}

// NewMemorySink creates an empty in-memory sink
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Deliver appends file
func (s *MemorySink) Deliver(ctx context.Context, file domain.OutputFile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append(s.files, file)
	return nil
}

// Files returns a copy of the delivered files
func (s *MemorySink) Files() []domain.OutputFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.OutputFile(nil), s.files...)
}

// Len returns the number of delivered files
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}
