package pages

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/joseph-ayodele/docextract/internal/common"
)

// Config is populated once at startup and injected into the Normalizer.
type Config struct {
	Renderer    string // "pdftoppm" (default) or "fitz"
	Pdftoppm    string // binary name, default "pdftoppm"
	PopplerPath string // optional directory holding the poppler binaries
	DPI         int    // default 300
	MaxPages    int    // 0 = no cap
	TempDir     string // parent of the scoped scratch dirs; "" = os.TempDir()
}

// ConfigFrom maps the process configuration onto the normalizer's.
func ConfigFrom(c common.PagesConfig) Config {
	return Config{
		Renderer:    c.Renderer,
		PopplerPath: c.PopplerPath,
		DPI:         c.DPI,
		MaxPages:    c.MaxPages,
		TempDir:     c.TempDir,
	}
}

func (c Config) pdftoppmPath() string {
	if c.PopplerPath == "" {
		return c.Pdftoppm
	}
	return filepath.Join(c.PopplerPath, c.Pdftoppm)
}

// PageImage is one bitmap page ready for the vision model.
type PageImage struct {
	Index    int // 0-based page order
	Path     string
	MIMEType string
	Width    int
	Height   int
	Enhanced bool
}

// Options select how a document is normalized.
type Options struct {
	Profile Profile
	Raw     bool // images: hand back the source file untouched
}

// Set owns the pages of one extraction run and the scratch directory they live in.
type Set struct {
	Pages []PageImage

	dir    string
	logger *slog.Logger
	once   sync.Once
}

// Len returns the number of pages.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Pages)
}

// Dir is the scratch directory, empty when nothing was written.
func (s *Set) Dir() string {
	if s == nil {
		return ""
	}
	return s.dir
}

// Cleanup removes the scratch directory. Safe to call more than once.
func (s *Set) Cleanup() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.dir == "" {
			return
		}
		if err := os.RemoveAll(s.dir); err != nil {
			s.logger.Warn("pages.cleanup.failed", "dir", s.dir, "error", err)
			return
		}
		s.logger.Debug("pages.cleanup.ok", "dir", s.dir)
	})
}
