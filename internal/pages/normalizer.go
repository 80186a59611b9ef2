package pages

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
)

// Normalizer turns a source document into page images.
type Normalizer struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

// Option customizes a Normalizer.
type Option func(*Normalizer)

// WithRunner replaces the external command runner (tests).
func WithRunner(r Runner) Option {
	return func(n *Normalizer) {
		if r != nil {
			n.runner = r
		}
	}
}

func NewNormalizer(cfg Config, logger *slog.Logger, opts ...Option) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Renderer == "" {
		cfg.Renderer = "pdftoppm"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	n := &Normalizer{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Normalize converts path into an ordered page Set. The caller must defer
// Set.Cleanup. On error nothing is left on disk and the error wraps
// common.ErrConversion.
func (n *Normalizer) Normalize(ctx context.Context, path string, opts Options) (*Set, error) {
	start := time.Now()
	if opts.Profile.Name == "" {
		opts.Profile = Standard
	}

	switch constants.MapExtToFormat(filepath.Ext(path)) {
	case constants.PDF:
		set, err := n.normalizePDF(ctx, path, opts.Profile)
		if err != nil {
			n.logger.Error("pages.normalize.failed", "path", path, "error", err)
			return nil, common.ConversionError("render "+filepath.Base(path), err)
		}
		n.logger.Info("pages.normalize.ok",
			"path", path,
			"format", constants.PDF,
			"pages", set.Len(),
			"profile", opts.Profile.Name,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return set, nil
	case constants.IMAGE:
		set, err := n.normalizeImage(path, opts)
		if err != nil {
			n.logger.Error("pages.normalize.failed", "path", path, "error", err)
			return nil, common.ConversionError("decode "+filepath.Base(path), err)
		}
		n.logger.Info("pages.normalize.ok",
			"path", path,
			"format", constants.IMAGE,
			"raw", opts.Raw,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return set, nil
	default:
		return nil, common.ConversionError("unsupported file type "+filepath.Ext(path),
			common.NewAppError(common.CodeInvalidInput, path, common.ErrInvalidInput))
	}
}

func (n *Normalizer) newSet(dir string) *Set {
	return &Set{dir: dir, logger: n.logger}
}

func (n *Normalizer) renderer() renderer {
	if n.cfg.Renderer == "fitz" {
		return fitzRenderer{dpi: n.cfg.DPI}
	}
	return pdftoppmRenderer{runner: n.runner, bin: n.cfg.pdftoppmPath(), dpi: n.cfg.DPI}
}

func (n *Normalizer) normalizePDF(ctx context.Context, path string, p Profile) (_ *Set, err error) {
	total, err := inspectPDF(path)
	if err != nil {
		return nil, err
	}
	want := total
	if n.cfg.MaxPages > 0 && want > n.cfg.MaxPages {
		want = n.cfg.MaxPages
	}

	dir, err := os.MkdirTemp(n.cfg.TempDir, "dx-pages-*")
	if err != nil {
		return nil, err
	}
	set := n.newSet(dir)
	defer func() {
		if err != nil {
			set.Cleanup()
		}
	}()

	files, err := n.renderer().render(ctx, path, dir, want)
	if err != nil {
		return nil, err
	}
	if len(files) > want {
		files = files[:want]
	}
	if len(files) == 0 {
		return nil, errors.New("no pages rendered")
	}
	if len(files) != want {
		n.logger.Warn("pages.render.count_mismatch", "path", path, "expected", want, "rendered", len(files))
	}

	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := imaging.Open(f)
		if err != nil {
			return nil, fmt.Errorf("decode page %d: %w", i+1, err)
		}
		out := Enhance(img, p)
		if err := writePNG(f, out); err != nil {
			return nil, fmt.Errorf("write page %d: %w", i+1, err)
		}
		set.Pages = append(set.Pages, PageImage{
			Index:    i,
			Path:     f,
			MIMEType: "image/png",
			Width:    out.Rect.Dx(),
			Height:   out.Rect.Dy(),
			Enhanced: true,
		})
	}
	return set, nil
}

func (n *Normalizer) normalizeImage(path string, opts Options) (_ *Set, err error) {
	if opts.Raw {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		cfg, _, err := image.DecodeConfig(f)
		if err != nil {
			return nil, fmt.Errorf("decode image header: %w", err)
		}
		set := n.newSet("")
		set.Pages = []PageImage{{
			Index:    0,
			Path:     path,
			MIMEType: constants.MIMEType(filepath.Ext(path)),
			Width:    cfg.Width,
			Height:   cfg.Height,
		}}
		return set, nil
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp(n.cfg.TempDir, "dx-pages-*")
	if err != nil {
		return nil, err
	}
	set := n.newSet(dir)
	defer func() {
		if err != nil {
			set.Cleanup()
		}
	}()

	out := Enhance(img, opts.Profile)
	p := filepath.Join(dir, "page-001.png")
	if err := writePNG(p, out); err != nil {
		return nil, err
	}
	set.Pages = []PageImage{{
		Index:    0,
		Path:     p,
		MIMEType: "image/png",
		Width:    out.Rect.Dx(),
		Height:   out.Rect.Dy(),
		Enhanced: true,
	}}
	return set, nil
}
