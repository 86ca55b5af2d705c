package viewport

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"

	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
	pdferrors "github.com/a3tai/mcp-pdf-signer/internal/pdf/errors"
)

var approx = cmpopts.EquateApprox(0, 1e-6)

func letter(r Rotation) PageGeometry {
	return PageGeometry{Box: rect.Rect{LLx: 0, LLy: 0, URx: 612, URy: 792}, Rotation: r}
}

func newMapper(t *testing.T) *Mapper {
	t.Helper()
	m, err := NewMapper(geometry.DefaultReferenceWidth)
	require.NoError(t, err)
	return m
}

func signatureAt(x, y float64) geometry.Field {
	return geometry.Field{
		ID:         "sig",
		Kind:       geometry.KindSignature,
		PageNumber: 1,
		Position:   geometry.Position{XPct: x, YPct: y},
	}
}

func TestNewMapper_InvalidWidth(t *testing.T) {
	for _, w := range []float64{0, -600, math.NaN(), math.Inf(1)} {
		_, err := NewMapper(w)
		assert.ErrorIs(t, err, pdferrors.ErrInvalidGeometry, "width %g", w)
	}
}

func TestPlace_LetterRotation0(t *testing.T) {
	m := newMapper(t)

	// a 200x50 image: aspect 4, drawn 50 visual pixels high
	p := m.Place(letter(Rotate0), signatureAt(10, 10), 4)

	assert.InDelta(t, 61.2, p.Origin.X, 1)
	assert.InDelta(t, 792-(0.1*792+51), p.Origin.Y, 1)
	assert.InDelta(t, 663, p.Origin.Y, 1.25)
	assert.InDelta(t, 51, p.Height, 1e-9)
	assert.InDelta(t, 204, p.Width, 1e-9)
	assert.Equal(t, 0, p.ElementRotation)

	want := matrix.Matrix{204, 0, 0, 51, 61.2, 661.8}
	if diff := cmp.Diff(want, p.ImageMatrix(), approx); diff != "" {
		t.Errorf("image matrix mismatch (-want +got):\n%s", diff)
	}
}

func TestPlace_TopLeftCorner(t *testing.T) {
	m := newMapper(t)
	p := m.Place(letter(Rotate0), signatureAt(0, 0), 2)

	topLeft := p.Transform.Apply(vec.Vec2{X: 0, Y: p.Height})
	assert.InDelta(t, 0, topLeft.X, 1)
	assert.InDelta(t, 792, topLeft.Y, 1)
}

func TestPlace_LetterRotation90(t *testing.T) {
	m := newMapper(t)
	page := letter(Rotate90)

	p := m.Place(page, signatureAt(10, 10), 4)

	// displayed page is 792 wide and 612 high
	assert.InDelta(t, 79.2, p.Left, 1e-9)
	assert.InDelta(t, 61.2, p.Top, 1e-9)
	assert.InDelta(t, 66, p.Height, 1e-9)
	assert.InDelta(t, 264, p.Width, 1e-9)
	assert.Equal(t, 90, p.ElementRotation)

	// axes swap: the field's top-left corner lands at (top, left)
	topLeft := p.Transform.Apply(vec.Vec2{X: 0, Y: p.Height})
	assert.InDelta(t, p.Top, topLeft.X, 1e-9)
	assert.InDelta(t, p.Left, topLeft.Y, 1e-9)

	// drawn turned 90 degrees counter-clockwise
	want := matrix.Matrix{0, 1, -1, 0, 61.2 + 66, 79.2}
	if diff := cmp.Diff(want, p.Transform, approx); diff != "" {
		t.Errorf("transform mismatch (-want +got):\n%s", diff)
	}
}

func TestPlace_AllRotationsLandOnDisplayedRect(t *testing.T) {
	m := newMapper(t)
	box := rect.Rect{LLx: 10, LLy: 20, URx: 622, URy: 812}
	field := signatureAt(25, 40)
	field.Size = geometry.Size{WidthPct: geometry.Pct(30), HeightPct: geometry.Pct(8)}

	for _, r := range []Rotation{Rotate0, Rotate90, Rotate180, Rotate270} {
		page := PageGeometry{Box: box, Rotation: r}
		p := m.Place(page, field, 0)
		back := invert(page.DisplayToUser())

		corners := []struct{ local, displayed vec.Vec2 }{
			{vec.Vec2{X: 0, Y: 0}, vec.Vec2{X: p.Left, Y: p.Top + p.Height}},
			{vec.Vec2{X: 0, Y: p.Height}, vec.Vec2{X: p.Left, Y: p.Top}},
			{vec.Vec2{X: p.Width, Y: 0}, vec.Vec2{X: p.Left + p.Width, Y: p.Top + p.Height}},
			{vec.Vec2{X: p.Width, Y: p.Height}, vec.Vec2{X: p.Left + p.Width, Y: p.Top}},
		}
		for _, c := range corners {
			user := p.Transform.Apply(c.local)
			assert.True(t, inBox(user, box), "rotation %d: %v outside page box", r, user)
			if diff := cmp.Diff(c.displayed, back.Apply(user), approx); diff != "" {
				t.Errorf("rotation %d corner %v (-want +got):\n%s", r, c.local, diff)
			}
		}
	}
}

func TestPlace_ElementSize(t *testing.T) {
	m := newMapper(t)
	page := letter(Rotate0) // scale 1.02

	tests := []struct {
		name         string
		kind         geometry.Kind
		size         geometry.Size
		aspect       float64
		wantW, wantH float64
	}{
		{"text default", geometry.KindText, geometry.Size{}, 0, 122.4, 51},
		{"checkbox default", geometry.KindCheckbox, geometry.Size{}, 0, 40.8, 40.8},
		{"image default keeps aspect", geometry.KindSignature, geometry.Size{}, 3, 153, 51},
		{"explicit size ignores aspect", geometry.KindSignature,
			geometry.Size{WidthPct: geometry.Pct(50), HeightPct: geometry.Pct(10)}, 3, 306, 79.2},
		{"width only derives height", geometry.KindInitial,
			geometry.Size{WidthPct: geometry.Pct(10)}, 2, 61.2, 30.6},
		{"height only derives width", geometry.KindStamp,
			geometry.Size{HeightPct: geometry.Pct(10)}, 0.5, 39.6, 79.2},
		{"text width only", geometry.KindName,
			geometry.Size{WidthPct: geometry.Pct(50)}, 0, 306, 51},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := signatureAt(0, 0)
			f.Kind = tt.kind
			f.Size = tt.size
			p := m.Place(page, f, tt.aspect)
			assert.InDelta(t, tt.wantW, p.Width, 1e-9)
			assert.InDelta(t, tt.wantH, p.Height, 1e-9)
		})
	}
}

func TestPlace_AspectRatioPreserved(t *testing.T) {
	m := newMapper(t)
	for _, r := range []Rotation{Rotate0, Rotate90, Rotate180, Rotate270} {
		p := m.Place(letter(r), signatureAt(50, 50), 640.0/180.0)
		assert.InEpsilon(t, 640.0/180.0, p.Width/p.Height, 0.01, "rotation %d", r)
	}
}

func TestPlace_ClampsOutOfRangePosition(t *testing.T) {
	m := newMapper(t)
	p := m.Place(letter(Rotate0), signatureAt(-10, 150), 1)
	assert.Equal(t, 0.0, p.Left)
	assert.Equal(t, 792.0, p.Top)
}

func TestNormalizeRotation(t *testing.T) {
	tests := []struct {
		in     int
		want   Rotation
		wantOK bool
	}{
		{0, Rotate0, true},
		{90, Rotate90, true},
		{-90, Rotate270, true},
		{450, Rotate90, true},
		{-180, Rotate180, true},
		{45, Rotate0, false},
	}
	for _, tt := range tests {
		got, ok := NormalizeRotation(tt.in)
		assert.Equal(t, tt.want, got, "rotation %d", tt.in)
		assert.Equal(t, tt.wantOK, ok, "rotation %d", tt.in)
	}
}

func TestPageGeometry_Effective(t *testing.T) {
	assert.Equal(t, geometry.Dims{Width: 612, Height: 792}, letter(Rotate0).Effective())
	assert.Equal(t, geometry.Dims{Width: 792, Height: 612}, letter(Rotate90).Effective())
	assert.Equal(t, geometry.Dims{Width: 612, Height: 792}, letter(Rotate180).Effective())
	assert.Equal(t, geometry.Dims{Width: 792, Height: 612}, letter(Rotate270).Effective())
}

func TestMapper_ToDocumentRoundTrip(t *testing.T) {
	m := newMapper(t)
	page := PageGeometry{Box: rect.Rect{LLx: 5, LLy: 5, URx: 617, URy: 797}, Rotation: Rotate0}

	origin := m.ToDocument(page, vec.Vec2{})
	assert.InDelta(t, 5, origin.X, 1e-9)
	assert.InDelta(t, 797, origin.Y, 1e-9)

	for _, r := range []Rotation{Rotate0, Rotate90, Rotate180, Rotate270} {
		page.Rotation = r
		v := vec.Vec2{X: 123.4, Y: 321.5}
		back := m.ToVisual(page, m.ToDocument(page, v))
		if diff := cmp.Diff(v, back, approx); diff != "" {
			t.Errorf("rotation %d round trip (-want +got):\n%s", r, diff)
		}
	}
}

func inBox(p vec.Vec2, b rect.Rect) bool {
	const eps = 1e-6
	return p.X >= b.LLx-eps && p.X <= b.URx+eps && p.Y >= b.LLy-eps && p.Y <= b.URy+eps
}
