package pages

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// renderer turns the pages of a PDF into image files inside dir.
type renderer interface {
	render(ctx context.Context, path, dir string, pages int) ([]string, error)
}

type pdftoppmRenderer struct {
	runner Runner
	bin    string
	dpi    int
}

func (r pdftoppmRenderer) render(ctx context.Context, path, dir string, pages int) ([]string, error) {
	prefix := filepath.Join(dir, "page")
	// pdftoppm -r 300 -png [-f 1 -l N] <in.pdf> <dir/page>
	args := []string{"-r", strconv.Itoa(r.dpi), "-png"}
	if pages > 0 {
		args = append(args, "-f", "1", "-l", strconv.Itoa(pages))
	}
	args = append(args, path, prefix)

	_, errb, err := r.runner.Run(ctx, r.bin, args...)
	if err != nil {
		if msg := strings.TrimSpace(string(errb)); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", r.bin, err, truncate(msg, 512))
		}
		return nil, fmt.Errorf("%s: %w", r.bin, err)
	}

	// prefix-1.png, prefix-2.png ... (zero padded to the widest page number)
	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

type fitzRenderer struct {
	dpi int
}

func (r fitzRenderer) render(ctx context.Context, path, dir string, pages int) ([]string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	if pages > 0 && pages < n {
		n = pages
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := doc.ImageDPI(i, float64(r.dpi))
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", i+1, err)
		}
		p := filepath.Join(dir, fmt.Sprintf("page-%03d.png", i+1))
		if err := writePNG(p, img); err != nil {
			return nil, fmt.Errorf("write page %d: %w", i+1, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func writePNG(path string, img image.Image) error {
	return imaging.Save(img, path, imaging.PNGCompressionLevel(png.BestSpeed))
}

var pdfcpuInit sync.Once

// inspectPDF validates the file leniently and returns its page count.
func inspectPDF(path string) (int, error) {
	pdfcpuInit.Do(func() {
		// keep pdfcpu from creating a user config directory
		model.ConfigPath = "disable"
	})
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(path, conf); err != nil {
		return 0, fmt.Errorf("validate pdf: %w", err)
	}
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("count pages: %w", err)
	}
	return n, nil
}
