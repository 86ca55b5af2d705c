// Package pdftest builds small, well-formed PDF documents and images for
// tests. Documents are written by hand with a classic cross-reference table
// so that every reader in the repository can open them.
package pdftest

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Page describes one page of a generated document
type Page struct {
	Width   float64
	Height  float64
	OffsetX float64
	OffsetY float64
	Rotate  int
	// CropBox, when set, is written as [llx lly urx ury]
	CropBox []float64
	// Content replaces the default "Page n" text
	Content string
}

// Doc is a generated document. Rotate on the document is written to the
// page tree root and inherited by every page that does not set its own.
type Doc struct {
	Pages  []Page
	Rotate int
	// InheritResources moves the resource dictionary to the page tree root
	InheritResources bool
	// SharedResources makes every page reference one indirect resource
	// dictionary
	SharedResources bool
}

// Letter returns a US Letter page with the given rotation
func Letter(rotate int) Page {
	return Page{Width: 612, Height: 792, Rotate: rotate}
}

// LetterPDF returns a document of n US Letter pages
func LetterPDF(n int) []byte {
	pages := make([]Page, n)
	for i := range pages {
		pages[i] = Letter(0)
	}
	return Build(pages...)
}

// Build returns a document containing the given pages
func Build(pages ...Page) []byte {
	return Doc{Pages: pages}.Bytes()
}

// Bytes serializes the document
func (d Doc) Bytes() []byte {
	// 1 catalog, 2 page tree, 3 font, optionally shared resources, then a
	// page and a content stream per page
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	resources := "<< /Font << /F1 3 0 R >> >>"
	if d.SharedResources {
		objs = append(objs, resources)
		resources = fmt.Sprintf("%d 0 R", len(objs))
	}

	kids := make([]string, 0, len(d.Pages))
	for i, p := range d.Pages {
		pageNr := len(objs) + 1
		kids = append(kids, fmt.Sprintf("%d 0 R", pageNr))

		content := p.Content
		if content == "" {
			content = fmt.Sprintf("BT /F1 12 Tf 72 72 Td (Page %d) Tj ET", i+1)
		}

		var page strings.Builder
		fmt.Fprintf(&page, "<< /Type /Page /Parent 2 0 R /MediaBox [%s %s %s %s]",
			num(p.OffsetX), num(p.OffsetY), num(p.OffsetX+p.Width), num(p.OffsetY+p.Height))
		if len(p.CropBox) == 4 {
			fmt.Fprintf(&page, " /CropBox [%s %s %s %s]",
				num(p.CropBox[0]), num(p.CropBox[1]), num(p.CropBox[2]), num(p.CropBox[3]))
		}
		if p.Rotate != 0 {
			fmt.Fprintf(&page, " /Rotate %d", p.Rotate)
		}
		if !d.InheritResources {
			fmt.Fprintf(&page, " /Resources %s", resources)
		}
		fmt.Fprintf(&page, " /Contents %d 0 R >>", pageNr+1)

		objs = append(objs,
			page.String(),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	tree := fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d", strings.Join(kids, " "), len(d.Pages))
	if d.Rotate != 0 {
		tree += fmt.Sprintf(" /Rotate %d", d.Rotate)
	}
	if d.InheritResources {
		tree += " /Resources " + resources
	}
	objs[1] = tree + " >>"

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)

	return buf.Bytes()
}

// WriteFile writes data into dir and returns the path
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// PNG returns an encoded w x h PNG. With alpha set the left half is
// transparent.
func PNG(w, h int, alpha bool) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := uint8(255)
			if alpha && x < w/2 {
				a = 0
			}
			img.SetNRGBA(x, y, color.NRGBA{R: 20, G: 40, B: 160, A: a})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// JPEG returns an encoded w x h JPEG
func JPEG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// DataURL wraps data in a base64 data URL with the given MIME type
func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func num(f float64) string {
	return fmt.Sprintf("%g", f)
}
