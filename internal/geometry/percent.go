package geometry

import (
	"fmt"
	"math"

	pdferrors "github.com/a3tai/mcp-pdf-signer/internal/pdf/errors"
)

// Default visual sizes at the reference render width
var (
	checkboxVisualSize = Dims{Width: 40, Height: 40}
	fieldVisualSize    = Dims{Width: 120, Height: 50}
)

// ToPercent converts a pixel position measured against a known rendering
// into percentages of that rendering.
func ToPercent(p Point, rendered Dims) (Position, error) {
	if err := checkDims(rendered); err != nil {
		return Position{}, err
	}
	if !finite(p.X) || !finite(p.Y) {
		return Position{}, pdferrors.New(pdferrors.ErrorTypeInvalidGeometry,
			fmt.Sprintf("point (%g, %g) is not finite", p.X, p.Y))
	}
	return Position{
		XPct: p.X / rendered.Width * 100,
		YPct: p.Y / rendered.Height * 100,
	}, nil
}

// FromPercent re-hydrates a pixel position for a rendering of the given size
func FromPercent(pos Position, rendered Dims) (Point, error) {
	if err := checkDims(rendered); err != nil {
		return Point{}, err
	}
	if !finite(pos.XPct) || !finite(pos.YPct) {
		return Point{}, pdferrors.New(pdferrors.ErrorTypeInvalidGeometry,
			fmt.Sprintf("position (%g%%, %g%%) is not finite", pos.XPct, pos.YPct))
	}
	return Point{
		X: pos.XPct / 100 * rendered.Width,
		Y: pos.YPct / 100 * rendered.Height,
	}, nil
}

// SizeToPercent converts pixel dimensions into a Size relative to a rendering
func SizeToPercent(size, rendered Dims) (Size, error) {
	if err := checkDims(rendered); err != nil {
		return Size{}, err
	}
	if !finite(size.Width) || !finite(size.Height) || size.Width <= 0 || size.Height <= 0 {
		return Size{}, pdferrors.New(pdferrors.ErrorTypeInvalidGeometry,
			fmt.Sprintf("field size must be positive, got %gx%g", size.Width, size.Height))
	}
	return Size{
		WidthPct:  Pct(size.Width / rendered.Width * 100),
		HeightPct: Pct(size.Height / rendered.Height * 100),
	}, nil
}

// DefaultVisualSize returns the size of a freshly placed field, in visual
// pixels at the reference render width.
func DefaultVisualSize(kind Kind) Dims {
	if kind == KindCheckbox {
		return checkboxVisualSize
	}
	return fieldVisualSize
}

// DefaultSizePercent expresses the default size of a kind as percentages of
// a rendering, so the size stays stable when the page is later shown at a
// different width.
func DefaultSizePercent(kind Kind, rendered Dims, referenceWidth float64) (Size, error) {
	if referenceWidth <= 0 {
		return Size{}, pdferrors.New(pdferrors.ErrorTypeInvalidGeometry,
			fmt.Sprintf("reference width must be positive, got %g", referenceWidth))
	}
	if err := checkDims(rendered); err != nil {
		return Size{}, err
	}
	visual := DefaultVisualSize(kind)
	scale := rendered.Width / referenceWidth
	return SizeToPercent(Dims{Width: visual.Width * scale, Height: visual.Height * scale}, rendered)
}

// ClampPosition forces both percentages into [0,100]
func ClampPosition(pos Position) Position {
	return Position{XPct: clampPct(pos.XPct), YPct: clampPct(pos.YPct)}
}

// UsableSize drops the dimensions of s that are not finite percentages in
// (0,100], so the kind default applies to them
func UsableSize(s Size) Size {
	out := s
	if out.WidthPct != nil && !inSizeRange(*out.WidthPct) {
		out.WidthPct = nil
	}
	if out.HeightPct != nil && !inSizeRange(*out.HeightPct) {
		out.HeightPct = nil
	}
	return out
}

func clampPct(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

func checkDims(d Dims) error {
	if !finite(d.Width) || !finite(d.Height) || d.Width <= 0 || d.Height <= 0 {
		return pdferrors.New(pdferrors.ErrorTypeInvalidGeometry,
			fmt.Sprintf("rendered dimensions must be positive and finite, got %gx%g", d.Width, d.Height))
	}
	return nil
}
