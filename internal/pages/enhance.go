package pages

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Profile tunes the scan enhancement pass.
type Profile struct {
	Name         string
	ClipLimit    float64 // CLAHE histogram clip, relative to a flat histogram
	Grid         int     // CLAHE tiles per axis
	BlockSize    int     // adaptive threshold neighbourhood (odd)
	C            float64 // subtracted from the local mean
	DenoiseSigma float64 // 0 disables denoising
}

var (
	// Standard suits forms and free text.
	Standard = Profile{Name: "standard", ClipLimit: 2.0, Grid: 8, BlockSize: 15, C: 10, DenoiseSigma: 1.0}
	// Table keeps thin ruling lines: smaller neighbourhood, weaker smoothing.
	Table = Profile{Name: "table", ClipLimit: 1.5, Grid: 8, BlockSize: 9, C: 5, DenoiseSigma: 0.4}
)

// Enhance converts img to grayscale then applies local contrast equalization,
// adaptive binarization and denoising, in that order.
func Enhance(img image.Image, p Profile) *image.Gray {
	g := toGray(img)
	if g.Rect.Dx() == 0 || g.Rect.Dy() == 0 {
		return g
	}
	g = clahe(g, p.ClipLimit, p.Grid)
	g = adaptiveThreshold(g, p.BlockSize, p.C)
	if p.DenoiseSigma > 0 {
		g = denoise(g, p.DenoiseSigma)
	}
	return g
}

func toGray(img image.Image) *image.Gray {
	n := imaging.Grayscale(img)
	w, h := n.Rect.Dx(), n.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Pix[y*out.Stride+x] = n.Pix[y*n.Stride+x*4]
		}
	}
	return out
}

func clahe(src *image.Gray, clip float64, grid int) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	if grid < 1 {
		grid = 1
	}
	tw := (w + grid - 1) / grid
	th := (h + grid - 1) / grid
	gx := (w + tw - 1) / tw
	gy := (h + th - 1) / th

	luts := make([][256]uint8, gx*gy)
	for ty := 0; ty < gy; ty++ {
		for tx := 0; tx < gx; tx++ {
			x0, y0 := tx*tw, ty*th
			x1, y1 := min(x0+tw, w), min(y0+th, h)

			var hist [256]int
			n := 0
			for y := y0; y < y1; y++ {
				row := src.Pix[y*src.Stride:]
				for x := x0; x < x1; x++ {
					hist[row[x]]++
					n++
				}
			}

			limit := int(clip * float64(n) / 256)
			if limit < 1 {
				limit = 1
			}
			excess := 0
			for i := range hist {
				if hist[i] > limit {
					excess += hist[i] - limit
					hist[i] = limit
				}
			}
			inc, rem := excess/256, excess%256
			for i := range hist {
				hist[i] += inc
				if i < rem {
					hist[i]++
				}
			}

			lut := &luts[ty*gx+tx]
			cdf := 0
			for i := range hist {
				cdf += hist[i]
				lut[i] = uint8(min(255, cdf*255/n))
			}
		}
	}

	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		ty0, ty1, wy := tileCoords(y, th, gy)
		for x := 0; x < w; x++ {
			tx0, tx1, wx := tileCoords(x, tw, gx)
			v := src.Pix[y*src.Stride+x]
			top := (1-wx)*float64(luts[ty0*gx+tx0][v]) + wx*float64(luts[ty0*gx+tx1][v])
			bot := (1-wx)*float64(luts[ty1*gx+tx0][v]) + wx*float64(luts[ty1*gx+tx1][v])
			dst.Pix[y*dst.Stride+x] = uint8(math.Round((1-wy)*top + wy*bot))
		}
	}
	return dst
}

// tileCoords returns the two tile indices surrounding pixel p along one axis
// and the interpolation weight of the second.
func tileCoords(p, size, n int) (int, int, float64) {
	f := (float64(p)+0.5)/float64(size) - 0.5
	i0 := int(math.Floor(f))
	w := f - float64(i0)
	i1 := i0 + 1
	if i0 < 0 {
		return 0, 0, 0
	}
	if i1 > n-1 {
		return n - 1, n - 1, 0
	}
	return i0, i1, w
}

// adaptiveThreshold binarizes against the local mean minus c.
func adaptiveThreshold(src *image.Gray, block int, c float64) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	if block < 3 {
		block = 3
	}
	half := block / 2

	stride := w + 1
	integral := make([]int64, stride*(h+1))
	for y := 0; y < h; y++ {
		var rowSum int64
		for x := 0; x < w; x++ {
			rowSum += int64(src.Pix[y*src.Stride+x])
			integral[(y+1)*stride+x+1] = integral[y*stride+x+1] + rowSum
		}
	}

	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		y0, y1 := max(0, y-half), min(h-1, y+half)
		for x := 0; x < w; x++ {
			x0, x1 := max(0, x-half), min(w-1, x+half)
			sum := integral[(y1+1)*stride+x1+1] - integral[y0*stride+x1+1] - integral[(y1+1)*stride+x0] + integral[y0*stride+x0]
			area := int64((y1 - y0 + 1) * (x1 - x0 + 1))
			mean := float64(sum) / float64(area)
			if float64(src.Pix[y*src.Stride+x]) > mean-c {
				dst.Pix[y*dst.Stride+x] = 255
			}
		}
	}
	return dst
}

// denoise smooths isolated specks away and re-binarizes.
func denoise(src *image.Gray, sigma float64) *image.Gray {
	blurred := toGray(imaging.Blur(src, sigma))
	for i, v := range blurred.Pix {
		if v >= 128 {
			blurred.Pix[i] = 255
		} else {
			blurred.Pix[i] = 0
		}
	}
	return blurred
}
