package pdf

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/embed"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/finish"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/security"
)

// signedSuffix is inserted before the extension of the input file when no
// output path is given
const signedSuffix = ".signed"

// Service handles PDF file operations by orchestrating the signing components
type Service struct {
	maxFileSize   int64
	validator     *Validator
	inspector     *Inspector
	engine        *embed.Engine
	finisher      *finish.Finisher
	pathValidator *security.PathValidator
	serverInfo    *PDFServerInfo

	// one lock per output file so two runs never write the same document
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewService creates a new PDF service with all components
func NewService(maxFileSize int64, configuredDirectory string, engine *embed.Engine,
	opts ...finish.Option,
) (*Service, error) {
	pathValidator, err := security.NewPathValidator(configuredDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}

	s := &Service{
		maxFileSize:   maxFileSize,
		validator:     NewValidator(maxFileSize),
		inspector:     NewInspector(engine.Mapper()),
		engine:        engine,
		finisher:      finish.New(engine, opts...),
		pathValidator: pathValidator,
		locks:         make(map[string]*sync.Mutex),
	}
	s.serverInfo = NewPDFServerInfo(s)
	return s, nil
}

// PDFValidateFile performs validation on a PDF file
func (s *Service) PDFValidateFile(req PDFValidateFileRequest) (*PDFValidateFileResult, error) {
	path, err := s.pathValidator.NormalizePath(req.Path)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	req.Path = path
	return s.validator.ValidateFile(req)
}

// PDFPageGeometry reports page boxes, rotation and placement scale
func (s *Service) PDFPageGeometry(req PDFPageGeometryRequest) (*PDFPageGeometryResult, error) {
	path, err := s.pathValidator.NormalizePath(req.Path)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	if _, err := s.validator.validatePDFFile(path); err != nil {
		return nil, err
	}
	req.Path = path
	return s.inspector.PageGeometry(req)
}

// PDFEmbedImage draws one image field and writes the result
func (s *Service) PDFEmbedImage(ctx context.Context, req PDFEmbedImageRequest) (*PDFEmbedResult, error) {
	if !req.Field.Kind.IsImage() {
		return nil, fmt.Errorf("field kind %q does not take an image", req.Field.Kind)
	}
	item := finish.Item{Field: req.Field, Value: finish.Value{Image: req.Image}}
	return s.run(ctx, req.Path, req.OutputPath, []finish.Item{item})
}

// PDFEmbedText draws one text-like or checkbox field and writes the result
func (s *Service) PDFEmbedText(ctx context.Context, req PDFEmbedTextRequest) (*PDFEmbedResult, error) {
	if req.Field.Kind.IsImage() {
		return nil, fmt.Errorf("field kind %q takes an image, not text", req.Field.Kind)
	}

	value := finish.Value{Text: req.Text, FontSize: req.FontSize}
	if req.Field.Kind == geometry.KindCheckbox {
		value = finish.Value{Checked: finish.ParseChecked(req.Text)}
	}
	item := finish.Item{Field: req.Field, Value: value}
	return s.run(ctx, req.Path, req.OutputPath, []finish.Item{item})
}

// PDFFinish applies every item in order and writes the finished document
func (s *Service) PDFFinish(ctx context.Context, req PDFFinishRequest) (*PDFEmbedResult, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("no fields to apply")
	}
	return s.run(ctx, req.Path, req.OutputPath, req.Items)
}

// PDFToPercent converts a pixel position in a rendering into percentages
func (s *Service) PDFToPercent(req PDFToPercentRequest) (*PDFToPercentResult, error) {
	pos, err := geometry.ToPercent(req.Point, req.Rendered)
	if err != nil {
		return nil, err
	}
	return &PDFToPercentResult{Position: pos}, nil
}

// PDFFromPercent converts percentages into a pixel position in a rendering
func (s *Service) PDFFromPercent(req PDFFromPercentRequest) (*PDFFromPercentResult, error) {
	pt, err := geometry.FromPercent(req.Position, req.Rendered)
	if err != nil {
		return nil, err
	}
	return &PDFFromPercentResult{Point: pt}, nil
}

// PDFServerInfo returns server settings, tools and the signable files in
// defaultDirectory
func (s *Service) PDFServerInfo(ctx context.Context, _ PDFServerInfoRequest, serverName, version,
	defaultDirectory string,
) (*PDFServerInfoResult, error) {
	return s.serverInfo.GetServerInfo(ctx, serverName, version, defaultDirectory)
}

// GetMaxFileSize returns the maximum file size limit
func (s *Service) GetMaxFileSize() int64 {
	return s.maxFileSize
}

// IsValidPDF performs a quick validation check on a file
func (s *Service) IsValidPDF(filePath string) bool {
	return s.validator.IsValidPDF(filePath)
}

// GetSupportedImageFormats returns the image types accepted for image fields
func (s *Service) GetSupportedImageFormats() []string {
	return []string{"image/png", "image/jpeg"}
}

func (s *Service) run(ctx context.Context, inputPath, outputPath string, items []finish.Item) (*PDFEmbedResult, error) {
	for _, item := range items {
		if err := item.Field.Validate(); err != nil {
			return nil, err
		}
	}

	in, err := s.pathValidator.NormalizePath(inputPath)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	if outputPath == "" {
		outputPath = DefaultOutputPath(in)
	}
	out, err := s.pathValidator.ValidateOutputPath(outputPath)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}

	unlock := s.lock(out)
	defer unlock()

	data, err := s.readInput(in)
	if err != nil {
		return nil, err
	}

	res, err := s.finisher.Finish(ctx, data, items)
	if err != nil {
		var fe *finish.FinishError
		if errors.As(err, &fe) {
			log.Printf("Finishing %s stopped at field %d (%s): %v", in, fe.Index, fe.FieldID, fe.Err)
		}
		return nil, err
	}

	if err := writeAtomic(out, res.PDF); err != nil {
		return nil, err
	}
	s.serverInfo.Invalidate(out)

	result := &PDFEmbedResult{
		Path:       in,
		OutputPath: out,
		Applied:    res.Applied,
		Skipped:    res.Skipped,
		Size:       int64(len(res.PDF)),
	}
	for _, w := range res.Warnings.Warnings {
		result.Warnings = append(result.Warnings, w.Error())
	}
	if result.Applied == nil {
		result.Applied = []string{}
	}
	result.Message = fmt.Sprintf("applied %d field(s), skipped %d", len(res.Applied), len(res.Skipped))
	return result, nil
}

func (s *Service) readInput(path string) ([]byte, error) {
	if _, err := s.validator.validatePDFFile(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}
	return data, nil
}

func (s *Service) lock(path string) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[path]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[path] = mu
	}
	s.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// DefaultOutputPath is the path a finished copy of input is written to when
// the caller does not name one
func DefaultOutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + signedSuffix + ext
}

// writeAtomic writes data next to path and renames it into place so
// readers never observe a partially written document
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".pdf-signer-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to set output permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}
