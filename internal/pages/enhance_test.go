package pages

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/docextract/internal/testutil"
)

func TestEnhanceProducesBinaryImageOfSameSize(t *testing.T) {
	for _, p := range []Profile{Standard, Table} {
		t.Run(p.Name, func(t *testing.T) {
			out := Enhance(testutil.Scan(120, 90), p)
			assert.Equal(t, 120, out.Rect.Dx())
			assert.Equal(t, 90, out.Rect.Dy())
			for _, v := range out.Pix {
				if v != 0 && v != 255 {
					t.Fatalf("pixel %d is not binary", v)
				}
			}
		})
	}
}

func TestEnhanceKeepsDarkBarDark(t *testing.T) {
	out := Enhance(testutil.Scan(120, 90), Standard)
	// the bar's left edge sits on a bright background
	assert.Equal(t, uint8(0), out.GrayAt(26, 36).Y)
	assert.Equal(t, uint8(255), out.GrayAt(5, 5).Y)
}

func TestTileCoords(t *testing.T) {
	i0, i1, w := tileCoords(0, 10, 4)
	assert.Equal(t, 0, i0)
	assert.Equal(t, 0, i1)
	assert.Zero(t, w)

	i0, i1, w = tileCoords(15, 10, 4)
	assert.Equal(t, 1, i0)
	assert.Equal(t, 2, i1)
	assert.InDelta(t, 0.05, w, 1e-9)

	i0, i1, _ = tileCoords(39, 10, 4)
	assert.Equal(t, 3, i0)
	assert.Equal(t, 3, i1)
}

func TestEnhanceEmptyImage(t *testing.T) {
	out := Enhance(testutil.Scan(0, 0), Standard)
	assert.Equal(t, 0, out.Rect.Dx())
}
