package embed

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"net/url"
	"strings"

	"golang.org/x/image/draw"

	pdferrors "github.com/a3tai/mcp-pdf-signer/internal/pdf/errors"
)

// Image formats accepted for image fields
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
)

var (
	pngMagic  = []byte("\x89PNG\r\n\x1a\n")
	jpegMagic = []byte{0xff, 0xd8, 0xff}
)

// Image is a decoded raster value for a signature, initial or stamp field
type Image struct {
	Format string
	Width  int
	Height int

	img image.Image
	raw []byte
}

// Aspect returns width/height of the source image
func (i *Image) Aspect() float64 {
	return float64(i.Width) / float64(i.Height)
}

// HasAlpha reports whether any pixel is not fully opaque
func (i *Image) HasAlpha() bool {
	if i.Format == FormatJPEG {
		return false
	}
	b := i.img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := i.img.At(x, y).RGBA(); a != 0xffff {
				return true
			}
		}
	}
	return false
}

// samples returns the image as 8 bit RGB samples and, when the image is not
// opaque, 8 bit alpha samples.
func (i *Image) samples() (rgb []byte, alpha []byte) {
	b := i.img.Bounds()
	nrgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), i.img, b.Min, draw.Src)

	hasAlpha := i.HasAlpha()
	n := b.Dx() * b.Dy()
	rgb = make([]byte, 0, n*3)
	if hasAlpha {
		alpha = make([]byte, 0, n)
	}
	for p := 0; p < len(nrgba.Pix); p += 4 {
		rgb = append(rgb, nrgba.Pix[p], nrgba.Pix[p+1], nrgba.Pix[p+2])
		if hasAlpha {
			alpha = append(alpha, nrgba.Pix[p+3])
		}
	}
	return rgb, alpha
}

// DecodeDataURL decodes a base64 data URL holding a PNG or JPEG image.
// Input without the "data:" prefix is treated as raw base64 and the format
// is taken from the image header.
func DecodeDataURL(s string) (*Image, error) {
	s = strings.TrimSpace(s)

	mime := ""
	payload := s
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return nil, unsupported("malformed data URL")
		}
		header := s[len("data:"):comma]
		payload = s[comma+1:]

		parts := strings.Split(header, ";")
		mime = strings.ToLower(parts[0])
		if parts[len(parts)-1] != "base64" {
			unescaped, err := url.PathUnescape(payload)
			if err != nil {
				return nil, unsupported("malformed data URL payload")
			}
			return decodeImage(mime, []byte(unescaped))
		}
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(payload); err != nil {
			return nil, pdferrors.Wrap(pdferrors.ErrorTypeUnsupportedImageFormat,
				"image value is not valid base64", err)
		}
	}
	return decodeImage(mime, data)
}

// DecodeImage decodes raw PNG or JPEG bytes
func DecodeImage(data []byte) (*Image, error) {
	return decodeImage("", data)
}

func decodeImage(mime string, data []byte) (*Image, error) {
	format, err := sniffFormat(mime, data)
	if err != nil {
		return nil, err
	}

	var img image.Image
	switch format {
	case FormatPNG:
		img, err = png.Decode(bytes.NewReader(data))
	case FormatJPEG:
		img, err = jpeg.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeUnsupportedImageFormat,
			fmt.Sprintf("failed to decode %s image", format), err)
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, unsupported("image has no pixels")
	}

	im := &Image{Format: format, Width: b.Dx(), Height: b.Dy(), img: img}
	if format == FormatJPEG {
		im.raw = data
	}
	return im, nil
}

func sniffFormat(mime string, data []byte) (string, error) {
	switch mime {
	case "image/png":
		return FormatPNG, nil
	case "image/jpeg", "image/jpg":
		return FormatJPEG, nil
	case "":
	default:
		return "", unsupported(fmt.Sprintf("image type %q is not supported", mime))
	}

	switch {
	case bytes.HasPrefix(data, pngMagic):
		return FormatPNG, nil
	case bytes.HasPrefix(data, jpegMagic):
		return FormatJPEG, nil
	}
	return "", unsupported("image is neither PNG nor JPEG")
}

func unsupported(msg string) error {
	return pdferrors.New(pdferrors.ErrorTypeUnsupportedImageFormat, msg)
}
