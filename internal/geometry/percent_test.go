package geometry

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pdferrors "github.com/a3tai/mcp-pdf-signer/internal/pdf/errors"
)

func TestToPercent(t *testing.T) {
	pos, err := ToPercent(Point{X: 60, Y: 77.6}, Dims{Width: 600, Height: 776})
	require.NoError(t, err)

	want := Position{XPct: 10, YPct: 10}
	if diff := cmp.Diff(want, pos, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("ToPercent() mismatch (-want +got):\n%s", diff)
	}
}

func TestToPercent_InvalidDims(t *testing.T) {
	tests := []struct {
		name string
		dims Dims
	}{
		{"zero width", Dims{Width: 0, Height: 100}},
		{"zero height", Dims{Width: 100, Height: 0}},
		{"negative width", Dims{Width: -600, Height: 800}},
		{"NaN width", Dims{Width: math.NaN(), Height: 800}},
		{"infinite height", Dims{Width: 600, Height: math.Inf(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToPercent(Point{X: 1, Y: 1}, tt.dims)
			assert.True(t, errors.Is(err, pdferrors.ErrInvalidGeometry), "got %v", err)

			_, err = FromPercent(Position{XPct: 1, YPct: 1}, tt.dims)
			assert.True(t, errors.Is(err, pdferrors.ErrInvalidGeometry), "got %v", err)
		})
	}
}

func TestPercentRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		d := Dims{Width: 1 + rng.Float64()*2000, Height: 1 + rng.Float64()*2000}
		p := Point{X: rng.Float64() * d.Width, Y: rng.Float64() * d.Height}

		pos, err := ToPercent(p, d)
		require.NoError(t, err)
		got, err := FromPercent(pos, d)
		require.NoError(t, err)

		// 0.01% of the rendering size
		if diff := cmp.Diff(p, got, cmpopts.EquateApprox(0, d.Width*1e-4+d.Height*1e-4)); diff != "" {
			t.Fatalf("round trip for %v at %v (-want +got):\n%s", p, d, diff)
		}
	}
}

func TestFromPercent_DifferentRenderingWidth(t *testing.T) {
	pos, err := ToPercent(Point{X: 150, Y: 200}, Dims{Width: 600, Height: 800})
	require.NoError(t, err)

	got, err := FromPercent(pos, Dims{Width: 900, Height: 1200})
	require.NoError(t, err)
	assert.InDelta(t, 225, got.X, 1e-9)
	assert.InDelta(t, 300, got.Y, 1e-9)
}

func TestDefaultSizePercent(t *testing.T) {
	at600, err := DefaultSizePercent(KindCheckbox, Dims{Width: 600, Height: 776}, DefaultReferenceWidth)
	require.NoError(t, err)
	at1200, err := DefaultSizePercent(KindCheckbox, Dims{Width: 1200, Height: 1552}, DefaultReferenceWidth)
	require.NoError(t, err)

	// the same page at twice the width yields the same percentages
	if diff := cmp.Diff(at600, at1200, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("default size not stable across widths (-600 +1200):\n%s", diff)
	}
	assert.InDelta(t, 40.0/600*100, *at600.WidthPct, 1e-9)

	sig, err := DefaultSizePercent(KindSignature, Dims{Width: 600, Height: 776}, DefaultReferenceWidth)
	require.NoError(t, err)
	assert.InDelta(t, 20, *sig.WidthPct, 1e-9)
	assert.InDelta(t, 50.0/776*100, *sig.HeightPct, 1e-9)

	_, err = DefaultSizePercent(KindText, Dims{Width: 600, Height: 776}, 0)
	assert.ErrorIs(t, err, pdferrors.ErrInvalidGeometry)
}

func TestSizeToPercent(t *testing.T) {
	size, err := SizeToPercent(Dims{Width: 120, Height: 50}, Dims{Width: 600, Height: 500})
	require.NoError(t, err)
	assert.InDelta(t, 20, *size.WidthPct, 1e-9)
	assert.InDelta(t, 10, *size.HeightPct, 1e-9)
	assert.True(t, size.Explicit())

	_, err = SizeToPercent(Dims{Width: 0, Height: 50}, Dims{Width: 600, Height: 500})
	assert.ErrorIs(t, err, pdferrors.ErrInvalidGeometry)

	_, err = SizeToPercent(Dims{Width: math.NaN(), Height: 50}, Dims{Width: 600, Height: 500})
	assert.ErrorIs(t, err, pdferrors.ErrInvalidGeometry)
}

func TestPercent_NonFiniteCoordinates(t *testing.T) {
	dims := Dims{Width: 600, Height: 776}

	_, err := ToPercent(Point{X: math.NaN(), Y: 1}, dims)
	assert.ErrorIs(t, err, pdferrors.ErrInvalidGeometry)

	_, err = FromPercent(Position{XPct: 10, YPct: math.Inf(1)}, dims)
	assert.ErrorIs(t, err, pdferrors.ErrInvalidGeometry)
}

func TestClampPosition(t *testing.T) {
	assert.Equal(t, Position{XPct: 0, YPct: 100}, ClampPosition(Position{XPct: -3, YPct: 140}))
	assert.Equal(t, Position{XPct: 12.5, YPct: 50}, ClampPosition(Position{XPct: 12.5, YPct: 50}))
	assert.Equal(t, Position{XPct: 0, YPct: 100}, ClampPosition(Position{XPct: math.NaN(), YPct: math.Inf(1)}))
}

func TestUsableSize(t *testing.T) {
	got := UsableSize(Size{WidthPct: Pct(math.NaN()), HeightPct: Pct(8)})
	assert.Nil(t, got.WidthPct)
	require.NotNil(t, got.HeightPct)
	assert.Equal(t, 8.0, *got.HeightPct)

	got = UsableSize(Size{WidthPct: Pct(0), HeightPct: Pct(math.Inf(1))})
	assert.False(t, got.Explicit())
	assert.Nil(t, got.HeightPct)
}

func TestDefaultVisualSize(t *testing.T) {
	assert.Equal(t, Dims{Width: 40, Height: 40}, DefaultVisualSize(KindCheckbox))
	for _, k := range Kinds {
		if k == KindCheckbox {
			continue
		}
		assert.Equal(t, Dims{Width: 120, Height: 50}, DefaultVisualSize(k), "kind %s", k)
	}
}
