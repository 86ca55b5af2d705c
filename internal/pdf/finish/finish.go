// Package finish applies every resolved field of a document in order and
// produces the finished PDF.
package finish

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/embed"
	pdferrors "github.com/a3tai/mcp-pdf-signer/internal/pdf/errors"
)

// DefaultDateLayout formats date fields that carry no value
const DefaultDateLayout = "01/02/2006"

// Value is the resolved content of one field
type Value struct {
	// Image is a PNG or JPEG data URL for signature, initial and stamp fields
	Image string `json:"image,omitempty"`
	// Text is drawn for date, text, name, email, company and title fields
	Text    string `json:"text,omitempty"`
	Checked bool   `json:"checked,omitempty"`
	// FontSize in points, zero for the engine default
	FontSize float64 `json:"font_size,omitempty"`
}

// Item is a field together with its value
type Item struct {
	Field geometry.Field `json:"field"`
	Value Value          `json:"value"`
}

// Result is the outcome of a finishing run
type Result struct {
	PDF      []byte
	Applied  []string
	Skipped  []string
	Warnings *pdferrors.ErrorCollection
}

// FinishError aborts a finishing run. Checkpoint holds the last buffer that
// had every field before Index applied; in batch mode nothing is serialized
// before the end, so it is the input.
type FinishError struct {
	Index      int
	FieldID    string
	Err        error
	Checkpoint []byte
}

func (e *FinishError) Error() string {
	return fmt.Sprintf("finishing stopped at field %d (%s): %v", e.Index, e.FieldID, e.Err)
}

func (e *FinishError) Unwrap() error {
	return e.Err
}

// Finisher folds items over a document with an embed.Engine
type Finisher struct {
	engine     *embed.Engine
	dateLayout string
	batch      bool
	now        func() time.Time
}

// Option configures a Finisher
type Option func(*Finisher)

// WithBatch loads the document once and serializes once instead of
// reloading it for every field.
func WithBatch(batch bool) Option {
	return func(f *Finisher) { f.batch = batch }
}

// WithDateLayout sets the Go time layout for empty date fields
func WithDateLayout(layout string) Option {
	return func(f *Finisher) {
		if layout != "" {
			f.dateLayout = layout
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(f *Finisher) { f.now = now }
}

// New creates a Finisher
func New(engine *embed.Engine, opts ...Option) *Finisher {
	f := &Finisher{
		engine:     engine,
		dateLayout: DefaultDateLayout,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// DateLayout returns the layout used for empty date fields
func (f *Finisher) DateLayout() string {
	return f.dateLayout
}

// Batch reports whether the document is loaded once per run
func (f *Finisher) Batch() bool {
	return f.batch
}

// Finish applies items to pdf in order. Later items are drawn on top of
// earlier ones. Fields on missing pages are skipped with a warning; any
// other failure aborts with a *FinishError. ctx is checked between fields.
func (f *Finisher) Finish(ctx context.Context, pdf []byte, items []Item) (*Result, error) {
	if f.batch {
		return f.finishBatch(ctx, pdf, items)
	}

	result := &Result{Warnings: pdferrors.NewErrorCollection()}
	buf := pdf

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, &FinishError{Index: i, FieldID: item.Field.ID, Err: err, Checkpoint: buf}
		}

		next, err := f.embed(buf, item)
		if err != nil {
			if f.skip(result, item, err) {
				continue
			}
			return nil, &FinishError{Index: i, FieldID: item.Field.ID, Err: err, Checkpoint: buf}
		}

		buf = next
		result.Applied = append(result.Applied, item.Field.ID)
	}

	// an empty run still yields a freshly serialized document
	if len(result.Applied) == 0 {
		doc, err := embed.Open(pdf)
		if err != nil {
			return nil, &FinishError{Index: 0, Err: err, Checkpoint: pdf}
		}
		if buf, err = doc.Bytes(); err != nil {
			return nil, &FinishError{Index: 0, Err: err, Checkpoint: pdf}
		}
	}

	result.PDF = buf
	return result, nil
}

func (f *Finisher) embed(buf []byte, item Item) ([]byte, error) {
	field, v := item.Field, item.Value

	switch {
	case field.Kind.IsImage():
		if v.Image == "" {
			return buf, missingImage(field)
		}
		return f.engine.EmbedImage(buf, v.Image, field)
	case field.Kind == geometry.KindCheckbox:
		if !v.Checked {
			return f.engine.EmbedText(buf, "", field, v.FontSize)
		}
		return f.engine.EmbedMark(buf, field)
	default:
		return f.engine.EmbedText(buf, f.text(item), field, v.FontSize)
	}
}

func (f *Finisher) finishBatch(ctx context.Context, pdf []byte, items []Item) (*Result, error) {
	result := &Result{Warnings: pdferrors.NewErrorCollection()}

	doc, err := embed.Open(pdf)
	if err != nil {
		return nil, &FinishError{Index: 0, Err: err, Checkpoint: pdf}
	}

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, &FinishError{Index: i, FieldID: item.Field.ID, Err: err, Checkpoint: pdf}
		}

		if err := f.place(doc, item); err != nil {
			if f.skip(result, item, err) {
				continue
			}
			return nil, &FinishError{Index: i, FieldID: item.Field.ID, Err: err, Checkpoint: pdf}
		}
		result.Applied = append(result.Applied, item.Field.ID)
	}

	out, err := doc.Bytes()
	if err != nil {
		return nil, &FinishError{Index: len(items), Err: err, Checkpoint: pdf}
	}
	result.PDF = out
	return result, nil
}

func (f *Finisher) place(doc *embed.Document, item Item) error {
	field, v := item.Field, item.Value

	var err error
	switch {
	case field.Kind.IsImage():
		if v.Image == "" {
			return missingImage(field)
		}
		var img *embed.Image
		if img, err = f.engine.DecodeImage(v.Image); err == nil {
			err = f.engine.PlaceImage(doc, img, field)
		}
	case field.Kind == geometry.KindCheckbox:
		if !v.Checked {
			_, err = doc.PageGeometry(field.PageNumber)
		} else {
			err = f.engine.PlaceMark(doc, field)
		}
	default:
		err = f.engine.PlaceText(doc, f.text(item), field, v.FontSize)
	}

	if err != nil {
		var se *pdferrors.StampError
		if errors.As(err, &se) {
			se.WithField(field.ID)
		}
	}
	return err
}

// text resolves the string drawn for a text-like field
func (f *Finisher) text(item Item) string {
	if item.Field.Kind == geometry.KindDate && item.Value.Text == "" {
		return f.now().Format(f.dateLayout)
	}
	return item.Value.Text
}

// skip records a recoverable error and reports whether the run continues
func (f *Finisher) skip(result *Result, item Item, err error) bool {
	if !errors.Is(err, pdferrors.ErrPageIndexOutOfRange) {
		return false
	}

	log.Printf("Warning: skipping field %s: %v", item.Field.ID, err)
	result.Skipped = append(result.Skipped, item.Field.ID)

	var se *pdferrors.StampError
	if errors.As(err, &se) {
		result.Warnings.Add(se)
	}
	return true
}

func missingImage(field geometry.Field) error {
	return pdferrors.New(pdferrors.ErrorTypeUnsupportedImageFormat,
		fmt.Sprintf("%s field has no image value", field.Kind)).
		WithField(field.ID).
		WithPage(field.PageNumber)
}
