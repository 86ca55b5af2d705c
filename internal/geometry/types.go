// Package geometry holds the canonical, resolution-independent description of
// where a field sits on a page. Positions and sizes are percentages of the
// rendered page, measured from the top-left corner of an un-rotated rendering
// at the page's natural aspect ratio. Pixel values never leave this package's
// callers' presentation layer.
package geometry

import (
	"fmt"
	"math"
	"strings"

	pdferrors "github.com/a3tai/mcp-pdf-signer/internal/pdf/errors"
)

// DefaultReferenceWidth is the width, in display units, of the editing
// viewport shared by the preparer and signer views. It is part of the wire
// contract between the placement UI and the embedding engine and cannot be
// recovered from the PDF itself.
const DefaultReferenceWidth = 600.0

// Kind identifies what a field represents
type Kind string

const (
	KindSignature Kind = "signature"
	KindInitial   Kind = "initial"
	KindStamp     Kind = "stamp"
	KindDate      Kind = "date"
	KindCheckbox  Kind = "checkbox"
	KindText      Kind = "text"
	KindName      Kind = "name"
	KindEmail     Kind = "email"
	KindCompany   Kind = "company"
	KindTitle     Kind = "title"
)

// Kinds lists every known field kind in display order
var Kinds = []Kind{
	KindSignature, KindInitial, KindStamp, KindDate, KindCheckbox,
	KindText, KindName, KindEmail, KindCompany, KindTitle,
}

// ParseKind converts a user supplied string into a Kind
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", pdferrors.New(pdferrors.ErrorTypeInvalidGeometry,
			fmt.Sprintf("unknown field kind %q", s))
	}
	return k, nil
}

// Valid reports whether k is one of the known kinds
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// IsImage reports whether fields of this kind are resolved to a raster image
func (k Kind) IsImage() bool {
	return k == KindSignature || k == KindInitial || k == KindStamp
}

// Point is a position in visual pixels, top-left origin
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Dims is the width and height of a rendering
type Dims struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Position is the top-left corner of a field in percent of the page size
type Position struct {
	XPct float64 `json:"x_pct" yaml:"x_pct"`
	YPct float64 `json:"y_pct" yaml:"y_pct"`
}

// Size is an optional field size in percent of the page size. A nil
// dimension means the kind-specific default is used.
type Size struct {
	WidthPct  *float64 `json:"width_pct,omitempty" yaml:"width_pct,omitempty"`
	HeightPct *float64 `json:"height_pct,omitempty" yaml:"height_pct,omitempty"`
}

// Explicit reports whether both dimensions are set
func (s Size) Explicit() bool {
	return s.WidthPct != nil && s.HeightPct != nil
}

// Field is a placeable element on a document
type Field struct {
	ID         string   `json:"id" yaml:"id"`
	Kind       Kind     `json:"kind" yaml:"kind"`
	PageNumber int      `json:"page" yaml:"page"`
	Position   Position `json:"position" yaml:"position"`
	Size       Size     `json:"size,omitempty" yaml:"size,omitempty"`
}

// Validate checks the invariants of a field definition
func (f Field) Validate() error {
	if !f.Kind.Valid() {
		return f.invalid(fmt.Sprintf("unknown field kind %q", f.Kind))
	}
	if f.PageNumber < 1 {
		return f.invalid(fmt.Sprintf("page number must be >= 1, got %d", f.PageNumber))
	}
	if !inPercentRange(f.Position.XPct) || !inPercentRange(f.Position.YPct) {
		return f.invalid(fmt.Sprintf("position (%g%%, %g%%) outside [0,100]",
			f.Position.XPct, f.Position.YPct))
	}
	if v := f.Size.WidthPct; v != nil && !inSizeRange(*v) {
		return f.invalid(fmt.Sprintf("width %g%% outside (0,100]", *v))
	}
	if v := f.Size.HeightPct; v != nil && !inSizeRange(*v) {
		return f.invalid(fmt.Sprintf("height %g%% outside (0,100]", *v))
	}
	return nil
}

func (f Field) invalid(msg string) error {
	return pdferrors.New(pdferrors.ErrorTypeInvalidGeometry, msg).WithField(f.ID).WithPage(f.PageNumber)
}

func inPercentRange(v float64) bool {
	return finite(v) && v >= 0 && v <= 100
}

func inSizeRange(v float64) bool {
	return finite(v) && v > 0 && v <= 100
}

// finite reports whether v is neither NaN nor infinite
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Pct is a convenience for building optional sizes
func Pct(v float64) *float64 {
	return &v
}
