// Package sandbox provides the disposable loading context for one
// extraction call. A Sandbox owns in-memory copies of every image it
// loads and resolves dependencies from a single probe directory. Closing
// it drops every image and forces reclamation, so the originating files
// can be rebuilt or deleted immediately afterwards.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/V0v1kkk/DotNetMetadataMcpServer/internal/cil"
)

// Sandbox is an exclusively owned loading context. It is not safe for
// concurrent use; each extraction call creates its own.
type Sandbox struct {
	id      string
	baseDir string
	log     *zap.Logger

	primary   *cil.Image
	images    map[string]*cil.Image // keyed by lower-cased assembly simple name
	symbols   map[string][]byte     // side-car pdb bytes, same keys
	processed map[string]struct{}   // per-call artifact dedup, lower-cased cleaned paths
	closed    bool
}

// New creates a sandbox probing the given base directory for dependencies.
func New(baseDir string, log *zap.Logger) *Sandbox {
	if log == nil {
		log = zap.NewNop()
	}
	id := uuid.NewString()
	return &Sandbox{
		id:        id,
		baseDir:   baseDir,
		log:       log.With(zap.String("sandbox", id)),
		images:    make(map[string]*cil.Image),
		symbols:   make(map[string][]byte),
		processed: make(map[string]struct{}),
	}
}

// ID returns the sandbox identity used in log correlation.
func (s *Sandbox) ID() string { return s.id }

// Primary returns the primary image, or nil before LoadPrimary succeeds.
func (s *Sandbox) Primary() *cil.Image { return s.primary }

// MarkProcessed records an artifact path and reports whether it had
// already been processed within this call. Comparison is case-insensitive.
func (s *Sandbox) MarkProcessed(path string) bool {
	key := strings.ToLower(filepath.Clean(path))
	if _, ok := s.processed[key]; ok {
		return true
	}
	s.processed[key] = struct{}{}
	return false
}

// LoadPrimary loads the primary artifact. The file bytes (and the
// side-car .pdb bytes when present) are read fully into memory before
// parsing; no descriptor on either file is retained.
func (s *Sandbox) LoadPrimary(path string) (*cil.Image, error) {
	if s.closed {
		return nil, fmt.Errorf("sandbox: closed")
	}
	img, err := s.loadFile(path)
	if err != nil {
		return nil, err
	}
	s.primary = img
	s.log.Debug("primary image loaded",
		zap.String("path", path),
		zap.String("assembly", img.Name))
	return img, nil
}

// Resolve is the on-demand dependency hook: it probes the base directory
// for a same-named image and loads it with the same in-memory technique.
// An unresolvable dependency returns (nil, false) rather than an error;
// callers omit whatever required it.
func (s *Sandbox) Resolve(name string) (*cil.Image, bool) {
	if s.closed || name == "" {
		return nil, false
	}
	key := strings.ToLower(name)
	if img, ok := s.images[key]; ok {
		return img, true
	}
	for _, ext := range []string{".dll", ".exe"} {
		path := filepath.Join(s.baseDir, name+ext)
		img, err := s.loadFile(path)
		if err == nil {
			return img, true
		}
		if !os.IsNotExist(err) {
			s.log.Debug("dependency probe failed",
				zap.String("dependency", name),
				zap.String("path", path),
				zap.Error(err))
		}
	}
	s.log.Debug("dependency unresolved", zap.String("dependency", name))
	return nil, false
}

func (s *Sandbox) loadFile(path string) (*cil.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := cil.LoadImage(data)
	if err != nil {
		return nil, fmt.Errorf("sandbox: loading %s: %w", path, err)
	}
	name := img.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	key := strings.ToLower(name)
	s.images[key] = img

	pdb := strings.TrimSuffix(path, filepath.Ext(path)) + ".pdb"
	if sym, err := os.ReadFile(pdb); err == nil {
		s.symbols[key] = sym
	}
	return img, nil
}

// Close detaches the dependency hook, drops every loaded image and runs
// two back-to-back reclamation passes so buffers are released before
// control returns. Safe to call more than once.
func (s *Sandbox) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.primary = nil
	s.images = nil
	s.symbols = nil
	s.processed = nil
	runtime.GC()
	runtime.GC()
	s.log.Debug("sandbox released")
}
