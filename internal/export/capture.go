// Package export turns a rendered receipt into a downloadable PDF.
//
// The pipeline has three steps: Capture rasterizes the document at a fixed
// scale, Paginate slices the image into page-height windows, and Assemble
// places the same PNG on every page at a cumulative negative offset. The PDF
// carries no text layer; every page is an image.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/go-fonts/dejavu/dejavusans"
	"github.com/go-fonts/dejavu/dejavusansbold"
	"github.com/go-text/typesetting/di"
	tsfont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/font/opentype"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/tbourn/go-donation-tracker/internal/i18n"
	"github.com/tbourn/go-donation-tracker/internal/receipt"
)

// MinScale is the lowest capture scale accepted; smaller values are raised.
const MinScale = 2.0

// pxPerMM is the CSS reference density (96 dpi) at scale 1.
const pxPerMM = 96.0 / 25.4

// ErrNoCaptureSource is returned when there is no document to capture.
var ErrNoCaptureSource = errors.New("no receipt document to capture")

// Rasterizer draws receipt documents onto RGBA images. Text is shaped with
// HarfBuzz, so Arabic letters take their joined contextual forms.
type Rasterizer struct {
	mu      sync.Mutex
	regular *tsfont.Face
	bold    *tsfont.Face
	seg     shaping.Segmenter
	shaper  shaping.HarfbuzzShaper
}

// NewRasterizer loads DejaVu Sans, which covers Latin and Arabic. When
// fontPath is set, that TrueType/OpenType file is used for all text instead.
func NewRasterizer(fontPath string) (*Rasterizer, error) {
	r := &Rasterizer{}
	if fontPath != "" {
		raw, err := os.ReadFile(fontPath)
		if err != nil {
			return nil, fmt.Errorf("read font: %w", err)
		}
		f, err := tsfont.ParseTTF(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("parse font %s: %w", fontPath, err)
		}
		r.regular, r.bold = f, f
		return r, nil
	}
	var err error
	if r.regular, err = tsfont.ParseTTF(bytes.NewReader(dejavusans.TTF)); err != nil {
		return nil, err
	}
	if r.bold, err = tsfont.ParseTTF(bytes.NewReader(dejavusansbold.TTF)); err != nil {
		return nil, err
	}
	return r, nil
}

// HasGlyph reports whether the regular face maps ch to a glyph.
func (r *Rasterizer) HasGlyph(ch rune) bool {
	_, ok := r.regular.NominalGlyph(ch)
	return ok
}

// PixelSize returns the capture dimensions of a widthMM × heightMM page.
func PixelSize(widthMM, heightMM, scale float64) (int, int) {
	return int(math.Round(widthMM * pxPerMM * scale)), int(math.Round(heightMM * pxPerMM * scale))
}

// Capture draws doc onto a white canvas at scale (raised to MinScale).
func (r *Rasterizer) Capture(doc *receipt.Document, scale float64) (*image.RGBA, error) {
	if doc == nil || doc.WidthMM <= 0 || doc.HeightMM <= 0 {
		return nil, ErrNoCaptureSource
	}
	if scale < MinScale {
		scale = MinScale
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	w, h := PixelSize(doc.WidthMM, doc.HeightMM, scale)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	px := pxPerMM * scale
	dpi := 96 * scale
	ink := image.NewUniform(color.Black)
	dir := di.DirectionLTR
	if doc.Direction == i18n.RTL {
		dir = di.DirectionRTL
	}

	for _, b := range doc.Blocks {
		if b.Role == receipt.RoleRule {
			thick := int(math.Max(1, scale))
			y := int(b.Y * px)
			rect := image.Rect(int(b.X*px), y, int((b.X+b.Width)*px), y+thick)
			draw.Draw(img, rect, ink, image.Point{}, draw.Src)
			continue
		}
		text := b.Logical()
		if text == "" {
			continue
		}
		face := r.regular
		if b.Role == receipt.RoleTitle || b.Role == receipt.RoleOrganization {
			face = r.bold
		}
		sizePx := int(math.Round(b.SizePt * dpi / 72))
		ln := r.shape(text, face, sizePx, dir)

		x := b.X * px
		adv := float64(ln.width) / 64
		switch b.Align {
		case receipt.AlignCenter:
			x -= adv / 2
		case receipt.AlignRight:
			x -= adv
		}
		drawLine(img, ink, ln, float32(x), float32(b.Y*px))
	}
	return img, nil
}

// shapedLine is one block of text shaped into runs in visual order.
type shapedLine struct {
	runs    []shaping.Output
	width   fixed.Int26_6
	ascent  fixed.Int26_6
	descent fixed.Int26_6 // negative below the baseline
}

type singleFace struct{ face *tsfont.Face }

func (f singleFace) ResolveFace(rune) *tsfont.Face { return f.face }

func (r *Rasterizer) shape(text string, face *tsfont.Face, sizePx int, dir di.Direction) shapedLine {
	runes := []rune(text)
	in := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: dir,
		Face:      face,
		Size:      fixed.I(sizePx),
	}
	var ln shapedLine
	for _, run := range r.seg.Split(in, singleFace{face}) {
		out := r.shaper.Shape(run)
		ln.runs = append(ln.runs, out)
		ln.width += out.Advance
		if out.LineBounds.Ascent > ln.ascent {
			ln.ascent = out.LineBounds.Ascent
		}
		if out.LineBounds.Descent < ln.descent {
			ln.descent = out.LineBounds.Descent
		}
	}
	visualOrder(dir, ln.runs)
	return ln
}

// visualOrder sorts logical runs left to right. Runs against the paragraph
// direction are reversed as a group.
func visualOrder(dir di.Direction, runs []shaping.Output) {
	rtl := dir.Progression() == di.TowardTopLeft
	swap := func(sub []shaping.Output) {
		for i, j := 0, len(sub)-1; i < j; i, j = i+1, j-1 {
			sub[i].VisualIndex, sub[j].VisualIndex = sub[j].VisualIndex, sub[i].VisualIndex
		}
	}
	start := -1
	for i := range runs {
		pos := i
		if rtl {
			pos = len(runs) - 1 - i
		}
		runs[i].VisualIndex = int32(pos)
		if runs[i].Direction.Progression() == dir.Progression() {
			if start != -1 {
				swap(runs[start:i])
				start = -1
			}
		} else if start == -1 {
			start = i
		}
	}
	if start != -1 {
		swap(runs[start:])
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].VisualIndex < runs[j].VisualIndex })
}

// drawLine fills the glyph outlines of ln with its pen starting at (x, baseline).
func drawLine(img *image.RGBA, ink image.Image, ln shapedLine, x, baseline float32) {
	pad := float64(ln.ascent-ln.descent) / 64 / 4
	rect := image.Rect(
		int(math.Floor(float64(x)-pad)),
		int(math.Floor(float64(baseline)-float64(ln.ascent)/64-pad)),
		int(math.Ceil(float64(x)+float64(ln.width)/64+pad)),
		int(math.Ceil(float64(baseline)-float64(ln.descent)/64+pad)),
	).Intersect(img.Bounds())
	if rect.Empty() {
		return
	}
	z := vector.NewRasterizer(rect.Dx(), rect.Dy())
	ox, oy := float32(rect.Min.X), float32(rect.Min.Y)
	for _, run := range ln.runs {
		scale := float32(run.Size.Round()) / float32(run.Face.Upem())
		for _, g := range run.Glyphs {
			if outline, ok := run.Face.GlyphData(g.GlyphID).(tsfont.GlyphOutline); ok {
				gx := x + toFloat(g.XOffset) - ox
				gy := baseline - toFloat(g.YOffset) - oy
				addOutline(z, outline, scale, gx, gy)
			}
			x += toFloat(g.XAdvance)
		}
	}
	z.Draw(img, rect, ink, image.Point{})
}

// addOutline appends a glyph outline (font units, Y up) to z at pen (x, y).
func addOutline(z *vector.Rasterizer, o tsfont.GlyphOutline, scale, x, y float32) {
	pt := func(p opentype.SegmentPoint) (float32, float32) {
		return x + p.X*scale, y - p.Y*scale
	}
	open := false
	for _, s := range o.Segments {
		switch s.Op {
		case opentype.SegmentOpMoveTo:
			if open {
				z.ClosePath()
			}
			z.MoveTo(pt(s.Args[0]))
			open = true
		case opentype.SegmentOpLineTo:
			z.LineTo(pt(s.Args[0]))
		case opentype.SegmentOpQuadTo:
			bx, by := pt(s.Args[0])
			cx, cy := pt(s.Args[1])
			z.QuadTo(bx, by, cx, cy)
		case opentype.SegmentOpCubeTo:
			bx, by := pt(s.Args[0])
			cx, cy := pt(s.Args[1])
			dx, dy := pt(s.Args[2])
			z.CubeTo(bx, by, cx, cy, dx, dy)
		}
	}
	if open {
		z.ClosePath()
	}
}

func toFloat(v fixed.Int26_6) float32 { return float32(v) / 64 }
