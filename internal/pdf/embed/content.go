package embed

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"seehuhn.de/go/geom/matrix"
)

// helveticaAscent is the ascender of Helvetica in text space units
const helveticaAscent = 0.718

// contentWriter accumulates content stream operators
type contentWriter struct {
	buf bytes.Buffer
}

func (w *contentWriter) op(operator string, operands ...string) {
	for _, o := range operands {
		w.buf.WriteString(o)
		w.buf.WriteByte(' ')
	}
	w.buf.WriteString(operator)
	w.buf.WriteByte('\n')
}

func (w *contentWriter) save()    { w.op("q") }
func (w *contentWriter) restore() { w.op("Q") }

func (w *contentWriter) concat(m matrix.Matrix) {
	w.op("cm", nums(m[:]...)...)
}

func (w *contentWriter) Bytes() []byte {
	return w.buf.Bytes()
}

// imageOps draws an image XObject through the given unit square matrix
func imageOps(name string, m matrix.Matrix) []byte {
	var w contentWriter
	w.save()
	w.concat(m)
	w.op("Do", "/"+name)
	w.restore()
	return w.Bytes()
}

// textOps draws a single line of text hanging from the origin of m
func textOps(font string, size float64, text string, m matrix.Matrix) []byte {
	var w contentWriter
	w.save()
	w.concat(m)
	w.op("g", "0")
	w.op("BT")
	w.op("Tf", "/"+font, num(size))
	w.op("Td", "0", num(-helveticaAscent*size))
	w.op("Tj", pdfString(encodeWinAnsi(text)))
	w.op("ET")
	w.restore()
	return w.Bytes()
}

// markOps strokes a check mark filling a width x height box in element
// space.
func markOps(m matrix.Matrix, width, height float64) []byte {
	var w contentWriter
	w.save()
	w.concat(m)
	w.op("G", "0")
	w.op("w", num(math.Min(width, height)*0.1))
	w.op("J", "1")
	w.op("j", "1")
	w.op("m", num(0.15*width), num(0.5*height))
	w.op("l", num(0.4*width), num(0.2*height))
	w.op("l", num(0.85*width), num(0.85*height))
	w.op("S")
	w.restore()
	return w.Bytes()
}

// encodeWinAnsi converts text to WinAnsiEncoding. Characters outside the
// encoding become '?' and line breaks become spaces.
func encodeWinAnsi(s string) []byte {
	enc := charmap.Windows1252
	out := make([]byte, 0, len(s))
	for _, r := range s {
		switch r {
		case '\r', '\n', '\t':
			r = ' '
		}
		b, ok := enc.EncodeRune(r)
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}
	return out
}

// pdfString writes b as a literal string
func pdfString(b []byte) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, c := range b {
		switch {
		case c == '(' || c == ')' || c == '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c < 0x20 || c > 0x7e:
			fmt.Fprintf(&sb, "\\%03o", c)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte(')')
	return sb.String()
}

func num(f float64) string {
	f = math.Round(f*10000) / 10000
	if f == 0 {
		f = 0 // no negative zero
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func nums(fs ...float64) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = num(f)
	}
	return out
}
