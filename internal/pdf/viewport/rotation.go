package viewport

import (
	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/rect"

	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
)

// Rotation is the clockwise display rotation of a page (the /Rotate entry)
type Rotation int

const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

// NormalizeRotation folds a /Rotate value into one of the four supported
// rotations. Values that are not a multiple of 90 degrade to Rotate0 and
// report ok=false.
func NormalizeRotation(degrees int) (r Rotation, ok bool) {
	if degrees%90 != 0 {
		return Rotate0, false
	}
	d := ((degrees % 360) + 360) % 360
	return Rotation(d), true
}

// SwapsAxes reports whether the displayed page is the natural page turned
// on its side.
func (r Rotation) SwapsAxes() bool {
	return r == Rotate90 || r == Rotate270
}

// PageGeometry is the part of a PDF page the mapper needs. Box is the
// visible region of the page in user space (CropBox, falling back to
// MediaBox).
type PageGeometry struct {
	Box      rect.Rect
	Rotation Rotation
}

// NaturalWidth is the width of the page box before rotation
func (g PageGeometry) NaturalWidth() float64 {
	return g.Box.Dx()
}

// NaturalHeight is the height of the page box before rotation
func (g PageGeometry) NaturalHeight() float64 {
	return g.Box.Dy()
}

// Effective returns the size of the page as displayed
func (g PageGeometry) Effective() geometry.Dims {
	if g.Rotation.SwapsAxes() {
		return geometry.Dims{Width: g.NaturalHeight(), Height: g.NaturalWidth()}
	}
	return geometry.Dims{Width: g.NaturalWidth(), Height: g.NaturalHeight()}
}

// DisplayToUser maps displayed page points (top-left origin, y growing
// downwards, in points) to PDF user space.
//
// The viewer turns the page clockwise by the rotation angle. Inverting that
// turn for a W x H page box gives, before translating to the box origin:
//
//	  0: (u, v) -> (u, H-v)
//	 90: (u, v) -> (v, u)
//	180: (u, v) -> (W-u, v)
//	270: (u, v) -> (W-v, H-u)
func (g PageGeometry) DisplayToUser() matrix.Matrix {
	w, h := g.NaturalWidth(), g.NaturalHeight()

	var m matrix.Matrix
	switch g.Rotation {
	case Rotate90:
		m = matrix.Matrix{0, 1, 1, 0, 0, 0}
	case Rotate180:
		m = matrix.Matrix{-1, 0, 0, 1, w, 0}
	case Rotate270:
		m = matrix.Matrix{0, -1, -1, 0, w, h}
	default:
		m = matrix.Matrix{1, 0, 0, -1, 0, h}
	}
	return m.Mul(matrix.Translate(g.Box.LLx, g.Box.LLy))
}

// ElementRotation is the counter-clockwise angle, in degrees, at which an
// element has to be drawn in user space to read upright once the viewer
// applies the page rotation.
func (r Rotation) ElementRotation() int {
	return int(r)
}
