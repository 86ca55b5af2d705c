package embed

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pdferrors "github.com/a3tai/mcp-pdf-signer/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/pdftest"
)

func TestDecodeDataURL(t *testing.T) {
	png := pdftest.PNG(200, 50, false)
	jpg := pdftest.JPEG(30, 60)

	tests := []struct {
		name       string
		input      string
		wantFormat string
		wantW      int
		wantH      int
	}{
		{"png data url", pdftest.DataURL("image/png", png), FormatPNG, 200, 50},
		{"jpeg data url", pdftest.DataURL("image/jpeg", jpg), FormatJPEG, 30, 60},
		{"jpg alias", pdftest.DataURL("image/jpg", jpg), FormatJPEG, 30, 60},
		{"upper case mime", pdftest.DataURL("IMAGE/PNG", png), FormatPNG, 200, 50},
		{"bare base64 png", base64.StdEncoding.EncodeToString(png), FormatPNG, 200, 50},
		{"bare base64 jpeg", base64.StdEncoding.EncodeToString(jpg), FormatJPEG, 30, 60},
		{"unpadded base64", base64.RawStdEncoding.EncodeToString(png), FormatPNG, 200, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := DecodeDataURL(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFormat, img.Format)
			assert.Equal(t, tt.wantW, img.Width)
			assert.Equal(t, tt.wantH, img.Height)
		})
	}
}

func TestDecodeDataURL_Unsupported(t *testing.T) {
	png := pdftest.PNG(4, 4, false)

	tests := []struct {
		name  string
		input string
	}{
		{"gif mime", "data:image/gif;base64,R0lGODlhAQABAAAAACw="},
		{"svg mime", "data:image/svg+xml;base64,PHN2Zy8+"},
		{"no comma", "data:image/png;base64"},
		{"not base64", "data:image/png;base64,!!!"},
		{"unknown bytes", base64.StdEncoding.EncodeToString([]byte("GIF89a not an image"))},
		{"mime mismatch", pdftest.DataURL("image/jpeg", png)},
		{"truncated png", pdftest.DataURL("image/png", png[:20])},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDataURL(tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, pdferrors.ErrUnsupportedImageFormat)
		})
	}
}

func TestImage_Alpha(t *testing.T) {
	opaque, err := DecodeImage(pdftest.PNG(8, 8, false))
	require.NoError(t, err)
	assert.False(t, opaque.HasAlpha())

	rgb, alpha := opaque.samples()
	assert.Len(t, rgb, 8*8*3)
	assert.Nil(t, alpha)

	transparent, err := DecodeImage(pdftest.PNG(8, 8, true))
	require.NoError(t, err)
	assert.True(t, transparent.HasAlpha())

	rgb, alpha = transparent.samples()
	assert.Len(t, rgb, 8*8*3)
	require.Len(t, alpha, 8*8)
	assert.Equal(t, byte(0), alpha[0])
	assert.Equal(t, byte(255), alpha[7])
}

func TestImage_Aspect(t *testing.T) {
	img, err := DecodeImage(pdftest.PNG(200, 50, false))
	require.NoError(t, err)
	assert.InDelta(t, 4.0, img.Aspect(), 1e-9)
}
