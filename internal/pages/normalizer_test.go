package pages

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/testutil"
)

func newTestNormalizer(t *testing.T, runner Runner, maxPages int) (*Normalizer, string) {
	t.Helper()
	scratch := t.TempDir()
	n := NewNormalizer(Config{TempDir: scratch, MaxPages: maxPages}, nil, WithRunner(runner))
	return n, scratch
}

func TestNormalizePDFRendersEnhancedPagesInOrder(t *testing.T) {
	src := testutil.WritePDF(t, t.TempDir(), 3)
	fake := &testutil.FakePdftoppm{T: t}
	n, scratch := newTestNormalizer(t, fake, 0)

	set, err := n.Normalize(context.Background(), src, Options{})
	require.NoError(t, err)
	require.Equal(t, 3, set.Len())

	for i, p := range set.Pages {
		assert.Equal(t, i, p.Index)
		assert.True(t, p.Enhanced)
		assert.Equal(t, "image/png", p.MIMEType)
		assert.Equal(t, 64, p.Width)
		assert.FileExists(t, p.Path)
	}

	require.Len(t, fake.Calls, 1)
	call := fake.Calls[0]
	assert.Equal(t, "pdftoppm", call[0])
	assert.Contains(t, call, "300")
	assert.Contains(t, call, "-l")

	set.Cleanup()
	set.Cleanup()
	assert.NoDirExists(t, set.Dir())
	entries, _ := os.ReadDir(scratch)
	assert.Empty(t, entries)
}

func TestNormalizePDFHonoursMaxPages(t *testing.T) {
	src := testutil.WritePDF(t, t.TempDir(), 4)
	fake := &testutil.FakePdftoppm{T: t}
	n, _ := newTestNormalizer(t, fake, 2)

	set, err := n.Normalize(context.Background(), src, Options{Profile: Table})
	require.NoError(t, err)
	defer set.Cleanup()
	assert.Equal(t, 2, set.Len())
}

func TestNormalizePDFPopplerPath(t *testing.T) {
	src := testutil.WritePDF(t, t.TempDir(), 1)
	fake := &testutil.FakePdftoppm{T: t}
	n := NewNormalizer(Config{TempDir: t.TempDir(), PopplerPath: "/opt/poppler/bin"}, nil, WithRunner(fake))

	set, err := n.Normalize(context.Background(), src, Options{})
	require.NoError(t, err)
	defer set.Cleanup()
	assert.Equal(t, filepath.Join("/opt/poppler/bin", "pdftoppm"), fake.Calls[0][0])
}

func TestNormalizePDFRendererFailureIsConversionFailure(t *testing.T) {
	src := testutil.WritePDF(t, t.TempDir(), 2)
	fake := &testutil.FakePdftoppm{T: t, Err: errors.New("exec: not found"), Stderr: "pdftoppm: command not found"}
	n, scratch := newTestNormalizer(t, fake, 0)

	set, err := n.Normalize(context.Background(), src, Options{})
	require.Error(t, err)
	assert.Nil(t, set)
	assert.True(t, errors.Is(err, common.ErrConversion))

	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, common.CodeConversion, appErr.Code)

	entries, _ := os.ReadDir(scratch)
	assert.Empty(t, entries, "scratch dir must be removed on failure")
}

func TestNormalizePDFNoPagesRendered(t *testing.T) {
	src := testutil.WritePDF(t, t.TempDir(), 1)
	n, scratch := newTestNormalizer(t, runnerFunc(func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		return nil, nil, nil
	}), 0)

	_, err := n.Normalize(context.Background(), src, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrConversion))
	entries, _ := os.ReadDir(scratch)
	assert.Empty(t, entries)
}

func TestNormalizeCorruptPDF(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(src, []byte("not a pdf"), 0o644))
	n, _ := newTestNormalizer(t, &testutil.FakePdftoppm{T: t, Pages: 1}, 0)

	_, err := n.Normalize(context.Background(), src, Options{})
	assert.True(t, errors.Is(err, common.ErrConversion))
}

func TestNormalizeImageRawKeepsSource(t *testing.T) {
	src := testutil.WritePNG(t, filepath.Join(t.TempDir(), "table.png"), 40, 30)
	n, _ := newTestNormalizer(t, nil, 0)

	set, err := n.Normalize(context.Background(), src, Options{Raw: true})
	require.NoError(t, err)
	defer set.Cleanup()

	require.Equal(t, 1, set.Len())
	assert.Equal(t, src, set.Pages[0].Path)
	assert.False(t, set.Pages[0].Enhanced)
	assert.Equal(t, 40, set.Pages[0].Width)
	assert.Empty(t, set.Dir())
}

func TestNormalizeImageEnhanced(t *testing.T) {
	src := testutil.WritePNG(t, filepath.Join(t.TempDir(), "scan.png"), 40, 30)
	n, _ := newTestNormalizer(t, nil, 0)

	set, err := n.Normalize(context.Background(), src, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())
	assert.NotEqual(t, src, set.Pages[0].Path)
	assert.True(t, set.Pages[0].Enhanced)

	set.Cleanup()
	assert.NoFileExists(t, set.Pages[0].Path)
	assert.FileExists(t, src)
}

func TestNormalizeUnsupportedExtension(t *testing.T) {
	n, _ := newTestNormalizer(t, nil, 0)
	_, err := n.Normalize(context.Background(), "notes.txt", Options{})
	assert.True(t, errors.Is(err, common.ErrConversion))
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

type runnerFunc func(ctx context.Context, name string, args ...string) ([]byte, []byte, error)

func (f runnerFunc) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	return f(ctx, name, args...)
}
