package embed

import (
	"bytes"
	"fmt"
	"image"
	"log"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/filter"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"seehuhn.de/go/geom/rect"

	pdferrors "github.com/a3tai/mcp-pdf-signer/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/viewport"
)

// wrapKey marks the content stream that opens the q/Q pair around a page's
// original content. Its presence means the page was already wrapped.
const wrapKey = "SignerWrap"

// Document is a PDF loaded for drawing. It is not safe for concurrent use.
type Document struct {
	ctx     *model.Context
	font    *types.IndirectRef
	written []byte
}

// Open parses a PDF. The input slice is copied and never modified.
func Open(pdf []byte) (doc *Document, err error) {
	defer pdferrors.Recover(&err, "reading PDF")

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false

	src := append([]byte(nil), pdf...)
	ctx, err := api.ReadContext(bytes.NewReader(src), conf)
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeCodec, "failed to read PDF", err)
	}

	if err := ctx.EnsurePageCount(); err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeCodec, "failed to count pages", err)
	}

	return &Document{ctx: ctx}, nil
}

// PageCount returns the number of pages
func (d *Document) PageCount() int {
	return d.ctx.PageCount
}

func (d *Document) checkPage(n int) error {
	if n < 1 || n > d.ctx.PageCount {
		return pdferrors.New(pdferrors.ErrorTypePageIndexOutOfRange,
			fmt.Sprintf("page %d does not exist (document has %d pages)", n, d.ctx.PageCount)).
			WithPage(n)
	}
	return nil
}

func (d *Document) page(n int) (types.Dict, *model.InheritedPageAttrs, error) {
	if err := d.checkPage(n); err != nil {
		return nil, nil, err
	}
	if d.written != nil {
		return nil, nil, pdferrors.New(pdferrors.ErrorTypeCodec, "document was already serialized")
	}

	pageDict, _, inh, err := d.ctx.PageDict(n, false)
	if err != nil {
		return nil, nil, pdferrors.Wrap(pdferrors.ErrorTypeCodec,
			fmt.Sprintf("failed to load page %d", n), err).WithPage(n)
	}
	if pageDict == nil || inh == nil {
		return nil, nil, pdferrors.New(pdferrors.ErrorTypeCodec,
			fmt.Sprintf("page %d has no page dictionary", n)).WithPage(n)
	}
	return pageDict, inh, nil
}

// PageGeometry reads the visible box and rotation of page n (1-based)
func (d *Document) PageGeometry(n int) (viewport.PageGeometry, error) {
	_, inh, err := d.page(n)
	if err != nil {
		return viewport.PageGeometry{}, err
	}

	box := inh.MediaBox
	if inh.CropBox != nil {
		box = inh.CropBox
	}
	if box == nil {
		return viewport.PageGeometry{}, pdferrors.New(pdferrors.ErrorTypeCodec,
			fmt.Sprintf("page %d has no MediaBox", n)).WithPage(n)
	}

	rot, ok := viewport.NormalizeRotation(inh.Rotate)
	if !ok {
		log.Printf("Warning: page %d has unsupported rotation %d, treating it as 0", n, inh.Rotate)
	}

	return viewport.PageGeometry{
		Box: rect.Rect{
			LLx: min(box.LL.X, box.UR.X),
			LLy: min(box.LL.Y, box.UR.Y),
			URx: max(box.LL.X, box.UR.X),
			URy: max(box.LL.Y, box.UR.Y),
		},
		Rotation: rot,
	}, nil
}

// DrawImage draws img on page n at the given placement
func (d *Document) DrawImage(n int, img *Image, p viewport.Placement) error {
	pageDict, _, err := d.page(n)
	if err != nil {
		return err
	}

	ref, err := d.imageObject(img)
	if err != nil {
		return err
	}

	name, err := d.addResource(pageDict, "XObject", "SgIm", ref)
	if err != nil {
		return err
	}

	return d.appendContent(pageDict, imageOps(name, p.ImageMatrix()))
}

// DrawText draws a single line of Helvetica text hanging from the top-left
// corner of the placement.
func (d *Document) DrawText(n int, text string, fontSize float64, p viewport.Placement) error {
	pageDict, _, err := d.page(n)
	if err != nil {
		return err
	}

	font, err := d.helvetica()
	if err != nil {
		return err
	}

	name, err := d.addResource(pageDict, "Font", "SgF", font)
	if err != nil {
		return err
	}

	return d.appendContent(pageDict, textOps(name, fontSize, text, p.TextMatrix()))
}

// DrawMark draws a check mark filling the placement
func (d *Document) DrawMark(n int, p viewport.Placement) error {
	pageDict, _, err := d.page(n)
	if err != nil {
		return err
	}
	return d.appendContent(pageDict, markOps(p.Transform, p.Width, p.Height))
}

// PageContent returns the decoded content streams of page n, concatenated
func (d *Document) PageContent(n int) ([]byte, error) {
	pageDict, _, err := d.page(n)
	if err != nil {
		return nil, err
	}

	streams, err := d.contents(pageDict)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for _, obj := range streams {
		sd, err := d.streamDict(obj)
		if err != nil {
			return nil, err
		}
		if err := sd.Decode(); err != nil {
			return nil, pdferrors.Wrap(pdferrors.ErrorTypeCodec, "failed to decode content stream", err)
		}
		buf.Write(sd.Content)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// Bytes serializes the document. After the first call the document is
// frozen and further calls return the same bytes.
func (d *Document) Bytes() (out []byte, err error) {
	defer pdferrors.Recover(&err, "writing PDF")

	if d.written != nil {
		return d.written, nil
	}

	var buf bytes.Buffer
	if err := api.WriteContext(d.ctx, &buf); err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeCodec, "failed to write PDF", err)
	}
	d.written = buf.Bytes()
	return d.written, nil
}

// contents returns the page's content stream references in order
func (d *Document) contents(pageDict types.Dict) (types.Array, error) {
	obj, found := pageDict.Find("Contents")
	if !found || obj == nil {
		return nil, nil
	}

	o, err := d.ctx.Dereference(obj)
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeCodec, "failed to resolve page contents", err)
	}

	switch v := o.(type) {
	case types.Array:
		return append(types.Array(nil), v...), nil
	case types.StreamDict:
		if _, ok := obj.(types.IndirectRef); ok {
			return types.Array{obj}, nil
		}
		ref, err := d.ctx.IndRefForNewObject(v)
		if err != nil {
			return nil, pdferrors.Wrap(pdferrors.ErrorTypeCodec, "failed to store page contents", err)
		}
		return types.Array{*ref}, nil
	case nil:
		return nil, nil
	default:
		return nil, pdferrors.New(pdferrors.ErrorTypeCodec,
			fmt.Sprintf("unexpected page contents of type %T", o))
	}
}

func (d *Document) streamDict(obj types.Object) (types.StreamDict, error) {
	o, err := d.ctx.Dereference(obj)
	if err != nil {
		return types.StreamDict{}, pdferrors.Wrap(pdferrors.ErrorTypeCodec, "failed to resolve content stream", err)
	}
	sd, ok := o.(types.StreamDict)
	if !ok {
		return types.StreamDict{}, pdferrors.New(pdferrors.ErrorTypeCodec,
			fmt.Sprintf("content entry is %T, not a stream", o))
	}
	return sd, nil
}

func (d *Document) isWrapped(obj types.Object) bool {
	sd, err := d.streamDict(obj)
	if err != nil {
		return false
	}
	b := sd.BooleanEntry(wrapKey)
	return b != nil && *b
}

// appendContent adds ops as a new content stream at the end of the page.
// The page's existing content is wrapped in q/Q the first time so the new
// operators start from the default graphics state.
func (d *Document) appendContent(pageDict types.Dict, ops []byte) error {
	contents, err := d.contents(pageDict)
	if err != nil {
		return err
	}

	if len(contents) > 0 && !d.isWrapped(contents[0]) {
		open, err := d.newStream(types.Dict{wrapKey: types.Boolean(true)}, []byte("q\n"))
		if err != nil {
			return err
		}
		closing, err := d.newStream(types.NewDict(), []byte("Q\n"))
		if err != nil {
			return err
		}
		contents = append(append(types.Array{*open}, contents...), *closing)
	}

	ref, err := d.newStream(types.NewDict(), ops)
	if err != nil {
		return err
	}
	pageDict.Update("Contents", append(contents, *ref))
	return nil
}

// newStream stores a Flate compressed stream and returns its reference
func (d *Document) newStream(dict types.Dict, content []byte) (*types.IndirectRef, error) {
	sd := types.StreamDict{
		Dict:           dict,
		Content:        content,
		FilterPipeline: []types.PDFFilter{{Name: filter.Flate}},
	}
	sd.InsertName("Filter", filter.Flate)

	if err := sd.Encode(); err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeCodec, "failed to compress stream", err)
	}
	return d.store(sd)
}

func (d *Document) store(obj types.Object) (*types.IndirectRef, error) {
	ref, err := d.ctx.IndRefForNewObject(obj)
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeCodec, "failed to add object", err)
	}
	return ref, nil
}

// resources returns a resource dictionary owned by the page. Resources the
// page shares with others, by reference or by inheritance, are copied
// first so new entries never reach sibling pages.
func (d *Document) resources(pageDict types.Dict) (types.Dict, error) {
	if obj, found := pageDict.Find("Resources"); found {
		res, err := d.ctx.DereferenceDict(obj)
		if err != nil {
			return nil, pdferrors.Wrap(pdferrors.ErrorTypeCodec, "failed to resolve page resources", err)
		}
		if res != nil {
			if _, shared := obj.(types.IndirectRef); shared {
				res = copyDict(res)
				pageDict.Update("Resources", res)
			}
			return res, nil
		}
	}

	inherited, err := d.inheritedResources(pageDict)
	if err != nil {
		return nil, err
	}
	res := copyDict(inherited)
	pageDict.Update("Resources", res)
	return res, nil
}

// copyDict returns a shallow copy of src. A nil src yields an empty dict.
func copyDict(src types.Dict) types.Dict {
	dst := types.NewDict()
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (d *Document) inheritedResources(pageDict types.Dict) (types.Dict, error) {
	node := pageDict
	for depth := 0; depth < 64; depth++ {
		parent, found := node.Find("Parent")
		if !found {
			return nil, nil
		}
		dict, err := d.ctx.DereferenceDict(parent)
		if err != nil || dict == nil {
			return nil, pdferrors.Wrap(pdferrors.ErrorTypeCodec, "failed to resolve page tree", err)
		}
		if obj, found := dict.Find("Resources"); found {
			return d.ctx.DereferenceDict(obj)
		}
		node = dict
	}
	return nil, nil
}

// addResource registers ref under a fresh name in the given resource
// category of the page and returns the name.
func (d *Document) addResource(pageDict types.Dict, category, prefix string, ref *types.IndirectRef) (string, error) {
	res, err := d.resources(pageDict)
	if err != nil {
		return "", err
	}

	// the category dict may still be shared with other pages, so entries
	// go into a page-local copy
	var shared types.Dict
	if obj, found := res.Find(category); found {
		if shared, err = d.ctx.DereferenceDict(obj); err != nil {
			return "", pdferrors.Wrap(pdferrors.ErrorTypeCodec,
				fmt.Sprintf("failed to resolve %s resources", category), err)
		}
	}
	sub := copyDict(shared)
	res.Update(category, sub)

	for i := 1; ; i++ {
		name := fmt.Sprintf("%s%d", prefix, i)
		if _, taken := sub.Find(name); !taken {
			sub.Insert(name, *ref)
			return name, nil
		}
	}
}

func (d *Document) helvetica() (*types.IndirectRef, error) {
	if d.font != nil {
		return d.font, nil
	}
	ref, err := d.store(types.Dict{
		"Type":     types.Name("Font"),
		"Subtype":  types.Name("Type1"),
		"BaseFont": types.Name("Helvetica"),
		"Encoding": types.Name("WinAnsiEncoding"),
	})
	if err != nil {
		return nil, err
	}
	d.font = ref
	return ref, nil
}

// imageObject stores img as an image XObject. Baseline JPEGs are embedded
// as is; everything else becomes Flate compressed RGB with an optional
// soft mask.
func (d *Document) imageObject(img *Image) (*types.IndirectRef, error) {
	dict := types.Dict{
		"Type":             types.Name("XObject"),
		"Subtype":          types.Name("Image"),
		"Width":            types.Integer(img.Width),
		"Height":           types.Integer(img.Height),
		"BitsPerComponent": types.Integer(8),
	}

	if img.Format == FormatJPEG && len(img.raw) > 0 {
		switch img.img.(type) {
		case *image.YCbCr:
			dict["ColorSpace"] = types.Name("DeviceRGB")
			return d.rawStream(dict, filter.DCT, img.raw)
		case *image.Gray:
			dict["ColorSpace"] = types.Name("DeviceGray")
			return d.rawStream(dict, filter.DCT, img.raw)
		}
	}

	rgb, alpha := img.samples()
	dict["ColorSpace"] = types.Name("DeviceRGB")
	if alpha != nil {
		smask, err := d.newStream(types.Dict{
			"Type":             types.Name("XObject"),
			"Subtype":          types.Name("Image"),
			"Width":            types.Integer(img.Width),
			"Height":           types.Integer(img.Height),
			"ColorSpace":       types.Name("DeviceGray"),
			"BitsPerComponent": types.Integer(8),
		}, alpha)
		if err != nil {
			return nil, err
		}
		dict["SMask"] = *smask
	}
	return d.newStream(dict, rgb)
}

// rawStream stores already encoded data
func (d *Document) rawStream(dict types.Dict, filterName string, data []byte) (*types.IndirectRef, error) {
	length := int64(len(data))
	dict.InsertName("Filter", filterName)
	dict.Update("Length", types.Integer(length))
	sd := types.StreamDict{
		Dict:           dict,
		StreamLength:   &length,
		FilterPipeline: []types.PDFFilter{{Name: filterName}},
		Raw:            data,
	}
	return d.store(sd)
}
