// Package embed burns resolved field values into PDF page content. Every
// Embed call is a pure transform over byte buffers: the input is parsed,
// one field is drawn and a new buffer is serialized.
package embed

import (
	"errors"
	"log"
	"strings"

	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
	pdferrors "github.com/a3tai/mcp-pdf-signer/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/viewport"
)

// DefaultFontSize is used when a text field does not carry a font size
const DefaultFontSize = 12.0

// Engine draws field values onto PDF pages
type Engine struct {
	mapper   *viewport.Mapper
	fontSize float64
	images   *ImageCache
}

// NewEngine creates an engine that places fields with mapper. A
// non-positive fontSize selects DefaultFontSize.
func NewEngine(mapper *viewport.Mapper, fontSize float64) *Engine {
	if fontSize <= 0 {
		fontSize = DefaultFontSize
	}
	return &Engine{mapper: mapper, fontSize: fontSize, images: NewImageCache(0)}
}

// Mapper returns the viewport mapper used for placement
func (e *Engine) Mapper() *viewport.Mapper {
	return e.mapper
}

// FontSize returns the default font size for text fields
func (e *Engine) FontSize() float64 {
	return e.fontSize
}

// DecodeImage decodes a PNG or JPEG data URL, reusing earlier decodes of
// the same value
func (e *Engine) DecodeImage(dataURL string) (*Image, error) {
	return e.images.Decode(dataURL)
}

// ImageCacheStats reports decoded image cache usage
func (e *Engine) ImageCacheStats() CacheStats {
	return e.images.Stats()
}

// EmbedImage draws a PNG or JPEG data URL into field.
//
// An undecodable image or unreadable PDF returns the input buffer with the
// error. A missing page returns a re-serialized copy of the input with a
// PageIndexOutOfRange error that callers treat as a skip.
func (e *Engine) EmbedImage(pdf []byte, dataURL string, field geometry.Field) ([]byte, error) {
	img, err := e.DecodeImage(dataURL)
	if err != nil {
		return pdf, annotate(err, field)
	}
	return e.apply(pdf, field, func(doc *Document) error {
		return e.PlaceImage(doc, img, field)
	})
}

// EmbedText draws a single line of text into field. A non-positive
// fontSize selects the engine default.
func (e *Engine) EmbedText(pdf []byte, text string, field geometry.Field, fontSize float64) ([]byte, error) {
	return e.apply(pdf, field, func(doc *Document) error {
		return e.PlaceText(doc, text, field, fontSize)
	})
}

// EmbedMark draws a check mark into field
func (e *Engine) EmbedMark(pdf []byte, field geometry.Field) ([]byte, error) {
	return e.apply(pdf, field, func(doc *Document) error {
		return e.PlaceMark(doc, field)
	})
}

func (e *Engine) apply(pdf []byte, field geometry.Field, draw func(*Document) error) ([]byte, error) {
	doc, err := Open(pdf)
	if err != nil {
		return pdf, annotate(err, field)
	}

	if err := draw(doc); err != nil {
		err = annotate(err, field)
		if !errors.Is(err, pdferrors.ErrPageIndexOutOfRange) {
			return pdf, err
		}
		out, werr := doc.Bytes()
		if werr != nil {
			return pdf, annotate(werr, field)
		}
		return out, err
	}

	out, err := doc.Bytes()
	if err != nil {
		return pdf, annotate(err, field)
	}
	return out, nil
}

// PlaceImage draws img into field on an open document
func (e *Engine) PlaceImage(doc *Document, img *Image, field geometry.Field) error {
	page, err := doc.PageGeometry(field.PageNumber)
	if err != nil {
		return err
	}
	p := e.mapper.Place(page, field, img.Aspect())
	return doc.DrawImage(field.PageNumber, img, p)
}

// PlaceText draws text into field on an open document. Empty text draws
// nothing.
func (e *Engine) PlaceText(doc *Document, text string, field geometry.Field, fontSize float64) error {
	page, err := doc.PageGeometry(field.PageNumber)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		log.Printf("Field %s has no text, nothing drawn", field.ID)
		return nil
	}
	if fontSize <= 0 {
		fontSize = e.fontSize
	}
	p := e.mapper.Place(page, field, 0)
	return doc.DrawText(field.PageNumber, text, fontSize, p)
}

// PlaceMark draws a check mark into field on an open document
func (e *Engine) PlaceMark(doc *Document, field geometry.Field) error {
	page, err := doc.PageGeometry(field.PageNumber)
	if err != nil {
		return err
	}
	p := e.mapper.Place(page, field, 0)
	return doc.DrawMark(field.PageNumber, p)
}

// annotate records the field on a StampError
func annotate(err error, field geometry.Field) error {
	var se *pdferrors.StampError
	if errors.As(err, &se) {
		se.WithField(field.ID)
		if se.PageNumber == 0 {
			se.WithPage(field.PageNumber)
		}
	}
	return err
}
