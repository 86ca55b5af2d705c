package finish

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/embed"
	pdferrors "github.com/a3tai/mcp-pdf-signer/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/pdftest"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/viewport"
)

var fixedNow = func() time.Time {
	return time.Date(2026, time.October, 16, 9, 30, 0, 0, time.UTC)
}

func newFinisher(t *testing.T, opts ...Option) *Finisher {
	t.Helper()
	m, err := viewport.NewMapper(geometry.DefaultReferenceWidth)
	require.NoError(t, err)
	return New(embed.NewEngine(m, 12), append([]Option{WithClock(fixedNow)}, opts...)...)
}

func item(id string, kind geometry.Kind, page int, x, y float64, v Value) Item {
	return Item{
		Field: geometry.Field{
			ID:         id,
			Kind:       kind,
			PageNumber: page,
			Position:   geometry.Position{XPct: x, YPct: y},
		},
		Value: v,
	}
}

func signatureValue() Value {
	return Value{Image: pdftest.DataURL("image/png", pdftest.PNG(200, 50, true))}
}

func content(t *testing.T, data []byte, page int) string {
	t.Helper()
	doc, err := embed.Open(data)
	require.NoError(t, err)
	c, err := doc.PageContent(page)
	require.NoError(t, err)
	return string(c)
}

func sampleItems() []Item {
	return []Item{
		item("sig", geometry.KindSignature, 1, 10, 80, signatureValue()),
		item("name", geometry.KindName, 1, 10, 70, Value{Text: "Jane Doe"}),
		item("date", geometry.KindDate, 1, 60, 80, Value{}),
		item("agree", geometry.KindCheckbox, 2, 5, 5, Value{Checked: true}),
		item("skip", geometry.KindCheckbox, 2, 5, 15, Value{}),
	}
}

func TestFinish_AppliesAllFields(t *testing.T) {
	f := newFinisher(t)

	res, err := f.Finish(context.Background(), pdftest.LetterPDF(2), sampleItems())
	require.NoError(t, err)

	assert.Equal(t, []string{"sig", "name", "date", "agree", "skip"}, res.Applied)
	assert.Empty(t, res.Skipped)

	page1 := content(t, res.PDF, 1)
	assert.Contains(t, page1, "/SgIm1 Do")
	assert.Contains(t, page1, "(Jane Doe) Tj")
	assert.Contains(t, page1, "(10/16/2026) Tj")

	page2 := content(t, res.PDF, 2)
	assert.Equal(t, 1, strings.Count(page2, "\nS\n"))
}

func TestFinish_BatchMatchesFold(t *testing.T) {
	in := pdftest.LetterPDF(2)

	fold, err := newFinisher(t).Finish(context.Background(), in, sampleItems())
	require.NoError(t, err)
	batch, err := newFinisher(t, WithBatch(true)).Finish(context.Background(), in, sampleItems())
	require.NoError(t, err)

	assert.Equal(t, fold.Applied, batch.Applied)
	for page := 1; page <= 2; page++ {
		assert.Equal(t, content(t, fold.PDF, page), content(t, batch.PDF, page), "page %d", page)
	}
}

func TestFinish_SkipsMissingPages(t *testing.T) {
	for _, batch := range []bool{false, true} {
		f := newFinisher(t, WithBatch(batch))
		items := []Item{
			item("a", geometry.KindText, 1, 10, 10, Value{Text: "kept"}),
			item("b", geometry.KindSignature, 5, 10, 10, signatureValue()),
			item("c", geometry.KindText, 1, 10, 40, Value{Text: "also kept"}),
		}

		res, err := f.Finish(context.Background(), pdftest.LetterPDF(1), items)
		require.NoError(t, err, "batch=%v", batch)

		assert.Equal(t, []string{"a", "c"}, res.Applied)
		assert.Equal(t, []string{"b"}, res.Skipped)
		_, warnings := res.Warnings.Count()
		assert.Equal(t, 1, warnings)
		assert.Equal(t, "b", res.Warnings.Warnings[0].FieldID)

		c := content(t, res.PDF, 1)
		assert.Contains(t, c, "(kept) Tj")
		assert.Contains(t, c, "(also kept) Tj")
	}
}

func TestFinish_AllSkippedStillSerializes(t *testing.T) {
	f := newFinisher(t)
	in := pdftest.LetterPDF(1)

	res, err := f.Finish(context.Background(), in, []Item{
		item("x", geometry.KindText, 9, 10, 10, Value{Text: "nowhere"}),
	})
	require.NoError(t, err)
	assert.NotEqual(t, in, res.PDF)
	assert.Equal(t, content(t, in, 1), content(t, res.PDF, 1))
}

func TestFinish_UnsupportedImageAborts(t *testing.T) {
	f := newFinisher(t)
	items := []Item{
		item("first", geometry.KindText, 1, 10, 10, Value{Text: "done"}),
		item("bad", geometry.KindStamp, 1, 10, 30, Value{Image: "data:image/gif;base64,R0lGODlh"}),
		item("never", geometry.KindText, 1, 10, 50, Value{Text: "never"}),
	}

	_, err := f.Finish(context.Background(), pdftest.LetterPDF(1), items)
	require.Error(t, err)
	assert.ErrorIs(t, err, pdferrors.ErrUnsupportedImageFormat)

	var fe *FinishError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 1, fe.Index)
	assert.Equal(t, "bad", fe.FieldID)
	assert.Contains(t, content(t, fe.Checkpoint, 1), "(done) Tj")
}

func TestFinish_MissingImageValueAborts(t *testing.T) {
	f := newFinisher(t, WithBatch(true))
	in := pdftest.LetterPDF(1)

	_, err := f.Finish(context.Background(), in, []Item{
		item("sig", geometry.KindSignature, 1, 10, 10, Value{}),
	})

	var fe *FinishError
	require.ErrorAs(t, err, &fe)
	assert.ErrorIs(t, err, pdferrors.ErrUnsupportedImageFormat)
	assert.Equal(t, in, fe.Checkpoint)
}

func TestFinish_CodecError(t *testing.T) {
	in := []byte("not a pdf at all")
	for _, batch := range []bool{false, true} {
		_, err := newFinisher(t, WithBatch(batch)).Finish(context.Background(), in, []Item{
			item("a", geometry.KindText, 1, 10, 10, Value{Text: "x"}),
		})

		var fe *FinishError
		require.ErrorAs(t, err, &fe, "batch=%v", batch)
		assert.ErrorIs(t, err, pdferrors.ErrCodec)
		assert.Equal(t, 0, fe.Index)
		assert.Equal(t, in, fe.Checkpoint)
	}
}

func TestFinish_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newFinisher(t).Finish(ctx, pdftest.LetterPDF(1), sampleItems())

	var fe *FinishError
	require.ErrorAs(t, err, &fe)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, fe.Index)
}

func TestFinish_DateLayout(t *testing.T) {
	f := newFinisher(t, WithDateLayout("2006-01-02"))
	res, err := f.Finish(context.Background(), pdftest.LetterPDF(1), []Item{
		item("d", geometry.KindDate, 1, 10, 10, Value{}),
		item("e", geometry.KindDate, 1, 10, 30, Value{Text: "tomorrow"}),
	})
	require.NoError(t, err)

	c := content(t, res.PDF, 1)
	assert.Contains(t, c, "(2026-10-16) Tj")
	assert.Contains(t, c, "(tomorrow) Tj")
}

func TestFinish_FontSize(t *testing.T) {
	f := newFinisher(t)
	res, err := f.Finish(context.Background(), pdftest.LetterPDF(1), []Item{
		item("t", geometry.KindTitle, 1, 10, 10, Value{Text: "CEO", FontSize: 20}),
	})
	require.NoError(t, err)
	assert.Contains(t, content(t, res.PDF, 1), " 20 Tf\n")
}
