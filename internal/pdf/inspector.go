package pdf

import (
	"fmt"
	"log"

	"github.com/ledongthuc/pdf"
	"seehuhn.de/go/geom/rect"

	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
	pdferrors "github.com/a3tai/mcp-pdf-signer/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/viewport"
)

// maxTreeDepth bounds the walk up the page tree when resolving inherited
// page attributes
const maxTreeDepth = 32

// Inspector reads page geometry without modifying the document
type Inspector struct {
	mapper *viewport.Mapper
}

// NewInspector creates an inspector reporting scales for mapper
func NewInspector(mapper *viewport.Mapper) *Inspector {
	return &Inspector{mapper: mapper}
}

// PageGeometry reports page boxes and rotation for one page, or for every
// page when req.Page is zero.
func (i *Inspector) PageGeometry(req PDFPageGeometryRequest) (result *PDFPageGeometryResult, err error) {
	defer pdferrors.Recover(&err, "reading page tree")

	f, r, err := pdf.Open(req.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	count := r.NumPage()
	result = &PDFPageGeometryResult{
		Path:           req.Path,
		PageCount:      count,
		ReferenceWidth: i.mapper.ReferenceWidth(),
	}

	first, last := 1, count
	if req.Page != 0 {
		if req.Page < 1 || req.Page > count {
			return nil, fmt.Errorf("page %d out of range (document has %d pages)", req.Page, count)
		}
		first, last = req.Page, req.Page
	}

	for n := first; n <= last; n++ {
		info, err := i.pageInfo(r.Page(n), n)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", n, err)
		}
		result.Pages = append(result.Pages, info)
	}
	return result, nil
}

func (i *Inspector) pageInfo(page pdf.Page, n int) (PageGeometryInfo, error) {
	if page.V.IsNull() {
		return PageGeometryInfo{}, fmt.Errorf("page object not found")
	}

	mediaValue := inherited(page.V, "MediaBox")
	if mediaValue.IsNull() {
		return PageGeometryInfo{}, fmt.Errorf("no MediaBox")
	}
	media, err := parseBox(mediaValue)
	if err != nil {
		return PageGeometryInfo{}, fmt.Errorf("invalid MediaBox: %w", err)
	}

	info := PageGeometryInfo{Number: n, MediaBox: media}
	visible := media
	if cropValue := inherited(page.V, "CropBox"); !cropValue.IsNull() {
		if crop, err := parseBox(cropValue); err == nil {
			info.CropBox = &crop
			visible = crop
		} else {
			log.Printf("Warning: ignoring invalid CropBox on page %d: %v", n, err)
		}
	}

	degrees := int(inherited(page.V, "Rotate").Int64())
	rotation, ok := viewport.NormalizeRotation(degrees)
	if !ok {
		log.Printf("Warning: page %d has unsupported rotation %d, treating it as 0", n, degrees)
	}
	info.Rotation = int(rotation)

	geom := viewport.PageGeometry{
		Box:      rect.Rect{LLx: visible.LLx, LLy: visible.LLy, URx: visible.URx, URy: visible.URy},
		Rotation: rotation,
	}
	eff := geom.Effective()
	info.EffectiveWidth = eff.Width
	info.EffectiveHeight = eff.Height
	info.Scale = i.mapper.Scale(geom)
	info.ReferenceHeight = eff.Height / info.Scale

	reference := geometry.Dims{Width: i.mapper.ReferenceWidth(), Height: info.ReferenceHeight}
	if info.DefaultFieldSize, err = geometry.DefaultSizePercent(geometry.KindSignature, reference, reference.Width); err != nil {
		return PageGeometryInfo{}, err
	}
	if info.DefaultCheckboxSize, err = geometry.DefaultSizePercent(geometry.KindCheckbox, reference, reference.Width); err != nil {
		return PageGeometryInfo{}, err
	}
	return info, nil
}

// inherited looks key up on the page and then on its ancestors
func inherited(v pdf.Value, key string) pdf.Value {
	for depth := 0; depth < maxTreeDepth && !v.IsNull(); depth++ {
		if val := v.Key(key); !val.IsNull() {
			return val
		}
		v = v.Key("Parent")
	}
	return pdf.Value{}
}

func parseBox(v pdf.Value) (Box, error) {
	if v.Kind() != pdf.Array {
		return Box{}, fmt.Errorf("not an array: %v", v.Kind())
	}
	if v.Len() != 4 {
		return Box{}, fmt.Errorf("array length %d, expected 4", v.Len())
	}

	var coords [4]float64
	for i := range coords {
		val := v.Index(i)
		switch val.Kind() {
		case pdf.Integer:
			coords[i] = float64(val.Int64())
		case pdf.Real:
			coords[i] = val.Float64()
		default:
			return Box{}, fmt.Errorf("coordinate %d is %v", i, val.Kind())
		}
	}

	// normalize boxes given by any two opposite corners
	box := Box{
		LLx: min(coords[0], coords[2]),
		LLy: min(coords[1], coords[3]),
		URx: max(coords[0], coords[2]),
		URy: max(coords[1], coords[3]),
	}
	if box.URx == box.LLx || box.URy == box.LLy {
		return Box{}, fmt.Errorf("empty box %v", coords)
	}
	return box, nil
}
