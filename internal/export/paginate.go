package export

import "math"

// Layout is the placement of one captured image across PDF pages. All
// lengths are in the PDF unit (millimetres).
type Layout struct {
	PageWidth   float64
	PageHeight  float64
	ImageWidth  float64
	ImageHeight float64
	// Offsets holds the vertical position of the image on each page:
	// 0, -PageHeight, -2*PageHeight, ...
	Offsets []float64
}

// Pages is the number of pages in the layout.
func (l Layout) Pages() int { return len(l.Offsets) }

// Paginate fits a pxW × pxH capture to the page width and slices it into
// page-height windows. The result has one page when the scaled image fits and
// ceil(scaledHeight/pageH) pages otherwise. Overflow smaller than one source
// pixel is ignored so pixel rounding never adds a sliver page.
func Paginate(pxW, pxH int, pageW, pageH float64) Layout {
	l := Layout{PageWidth: pageW, PageHeight: pageH, ImageWidth: pageW}
	if pxW <= 0 || pxH <= 0 || pageW <= 0 || pageH <= 0 {
		l.Offsets = []float64{0}
		return l
	}
	l.ImageHeight = float64(pxH) * pageW / float64(pxW)

	slack := pageW / float64(pxW)
	n := 1
	if l.ImageHeight > pageH+slack {
		n = int(math.Ceil((l.ImageHeight - slack) / pageH))
	}
	l.Offsets = make([]float64, n)
	for i := range l.Offsets {
		l.Offsets[i] = -float64(i) * pageH
	}
	return l
}
