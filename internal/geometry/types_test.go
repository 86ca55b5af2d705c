package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pdferrors "github.com/a3tai/mcp-pdf-signer/internal/pdf/errors"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Signature ")
	require.NoError(t, err)
	assert.Equal(t, KindSignature, k)

	_, err = ParseKind("watermark")
	assert.ErrorIs(t, err, pdferrors.ErrInvalidGeometry)
}

func TestKind_IsImage(t *testing.T) {
	images := map[Kind]bool{KindSignature: true, KindInitial: true, KindStamp: true}
	for _, k := range Kinds {
		assert.Equal(t, images[k], k.IsImage(), "kind %s", k)
	}
}

func TestField_Validate(t *testing.T) {
	valid := Field{ID: "f1", Kind: KindText, PageNumber: 1, Position: Position{XPct: 0, YPct: 100}}

	tests := []struct {
		name    string
		mutate  func(f *Field)
		wantErr bool
	}{
		{"valid", func(f *Field) {}, false},
		{"unknown kind", func(f *Field) { f.Kind = "banner" }, true},
		{"page zero", func(f *Field) { f.PageNumber = 0 }, true},
		{"x above 100", func(f *Field) { f.Position.XPct = 100.5 }, true},
		{"y negative", func(f *Field) { f.Position.YPct = -1 }, true},
		{"zero width", func(f *Field) { f.Size.WidthPct = Pct(0) }, true},
		{"height above 100", func(f *Field) { f.Size.HeightPct = Pct(101) }, true},
		{"explicit size", func(f *Field) { f.Size = Size{WidthPct: Pct(20), HeightPct: Pct(5)} }, false},
		{"NaN width", func(f *Field) { f.Size.WidthPct = Pct(math.NaN()) }, true},
		{"NaN height", func(f *Field) { f.Size.HeightPct = Pct(math.NaN()) }, true},
		{"infinite width", func(f *Field) { f.Size.WidthPct = Pct(math.Inf(1)) }, true},
		{"NaN x", func(f *Field) { f.Position.XPct = math.NaN() }, true},
		{"negative infinite y", func(f *Field) { f.Position.YPct = math.Inf(-1) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid
			tt.mutate(&f)
			err := f.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, pdferrors.ErrInvalidGeometry)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
