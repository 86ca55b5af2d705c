// Package viewport converts canonical field geometry into drawing
// coordinates on a concrete PDF page. Percentages are relative to the page
// as displayed (rotation applied, top-left origin); drawing happens in PDF
// user space (bottom-left origin, page box before rotation).
package viewport

import (
	"fmt"
	"math"

	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/vec"

	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
	pdferrors "github.com/a3tai/mcp-pdf-signer/internal/pdf/errors"
)

// Mapper maps between the editing viewport and PDF page space
type Mapper struct {
	referenceWidth float64
}

// NewMapper creates a mapper for the given reference render width
func NewMapper(referenceWidth float64) (*Mapper, error) {
	if !(referenceWidth > 0) || math.IsInf(referenceWidth, 0) {
		return nil, pdferrors.New(pdferrors.ErrorTypeInvalidGeometry,
			fmt.Sprintf("reference width must be positive and finite, got %g", referenceWidth))
	}
	return &Mapper{referenceWidth: referenceWidth}, nil
}

// ReferenceWidth returns the viewport width the mapper was built for
func (m *Mapper) ReferenceWidth() float64 {
	return m.referenceWidth
}

// Scale is the number of PDF points per visual pixel on the given page
func (m *Mapper) Scale(page PageGeometry) float64 {
	return page.Effective().Width / m.referenceWidth
}

// ToDocument converts a point in visual pixels at the reference width into
// PDF user space.
func (m *Mapper) ToDocument(page PageGeometry, visual vec.Vec2) vec.Vec2 {
	s := m.Scale(page)
	return m.visualToUser(page, s).Apply(visual)
}

// ToVisual is the inverse of ToDocument
func (m *Mapper) ToVisual(page PageGeometry, doc vec.Vec2) vec.Vec2 {
	s := m.Scale(page)
	return invert(m.visualToUser(page, s)).Apply(doc)
}

func (m *Mapper) visualToUser(page PageGeometry, scale float64) matrix.Matrix {
	return matrix.Scale(scale, scale).Mul(page.DisplayToUser())
}

// Placement is where and how a single field is drawn
type Placement struct {
	PageNumber int
	Rotation   Rotation

	// Left, Top, Width and Height describe the field on the displayed page,
	// in points, top-left origin.
	Left   float64
	Top    float64
	Width  float64
	Height float64

	// Transform maps element space (points, origin at the element's
	// bottom-left corner, y up, as the element reads on screen) into PDF
	// user space.
	Transform matrix.Matrix

	// Origin is the user space position of the element's bottom-left corner
	Origin vec.Vec2

	// ElementRotation is the counter-clockwise angle the element is drawn at
	ElementRotation int
}

// ImageMatrix maps the unit square of an image XObject onto the field
func (p Placement) ImageMatrix() matrix.Matrix {
	return matrix.Scale(p.Width, p.Height).Mul(p.Transform)
}

// TextMatrix is Transform with the origin moved to the element's top-left
// corner, which is where a single line of text hangs from.
func (p Placement) TextMatrix() matrix.Matrix {
	return matrix.Translate(0, p.Height).Mul(p.Transform)
}

// Place computes the placement of a field on a page. aspect is the
// width/height ratio of the source image for image values and zero for
// everything else.
func (m *Mapper) Place(page PageGeometry, field geometry.Field, aspect float64) Placement {
	eff := page.Effective()
	pos := geometry.ClampPosition(field.Position)
	left := pos.XPct / 100 * eff.Width
	top := pos.YPct / 100 * eff.Height
	w, h := m.elementSize(page, field, aspect)

	// element space -> displayed page (y flipped, anchored at the bottom-left
	// corner of the field) -> user space
	element := matrix.Matrix{1, 0, 0, -1, left, top + h}
	t := element.Mul(page.DisplayToUser())

	return Placement{
		PageNumber:      field.PageNumber,
		Rotation:        page.Rotation,
		Left:            left,
		Top:             top,
		Width:           w,
		Height:          h,
		Transform:       t,
		Origin:          t.Apply(vec.Vec2{}),
		ElementRotation: page.Rotation.ElementRotation(),
	}
}

// elementSize resolves the drawn size in points. Explicit percentages win;
// otherwise the kind's default visual size is scaled from the reference
// viewport. Images keep their aspect ratio unless both dimensions are given.
func (m *Mapper) elementSize(page PageGeometry, field geometry.Field, aspect float64) (float64, float64) {
	eff := page.Effective()
	scale := m.Scale(page)
	def := geometry.DefaultVisualSize(field.Kind)
	size := geometry.UsableSize(field.Size)

	switch {
	case size.Explicit():
		return *size.WidthPct / 100 * eff.Width, *size.HeightPct / 100 * eff.Height
	case aspect > 0 && size.WidthPct != nil:
		w := *size.WidthPct / 100 * eff.Width
		return w, w / aspect
	case aspect > 0 && size.HeightPct != nil:
		h := *size.HeightPct / 100 * eff.Height
		return h * aspect, h
	case aspect > 0:
		h := def.Height * scale
		return h * aspect, h
	}

	w, h := def.Width*scale, def.Height*scale
	if size.WidthPct != nil {
		w = *size.WidthPct / 100 * eff.Width
	}
	if size.HeightPct != nil {
		h = *size.HeightPct / 100 * eff.Height
	}
	return w, h
}

func invert(m matrix.Matrix) matrix.Matrix {
	det := m[0]*m[3] - m[1]*m[2]
	return matrix.Matrix{
		m[3] / det, -m[1] / det,
		-m[2] / det, m[0] / det,
		(m[2]*m[5] - m[3]*m[4]) / det,
		(m[1]*m[4] - m[0]*m[5]) / det,
	}
}
