package pdf

import (
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	pdferrors "github.com/a3tai/mcp-pdf-signer/internal/pdf/errors"
)

// Validator checks that a file can be used as a signing input
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a validator with the given size limit
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{maxFileSize: maxFileSize}
}

// ValidateFile reports whether the file is a readable PDF. Validation
// problems are part of the result, not errors.
func (v *Validator) ValidateFile(req PDFValidateFileRequest) (*PDFValidateFileResult, error) {
	result := &PDFValidateFileResult{Path: req.Path}

	pages, err := v.validatePDFFile(req.Path)
	if err != nil {
		result.Message = err.Error()
		return result, nil //nolint:nilerr // the validation error is the result
	}

	result.Valid = true
	result.Pages = pages
	result.Message = fmt.Sprintf("valid PDF with %d page(s)", pages)
	return result, nil
}

// IsValidPDF is a shorthand for ValidateFile
func (v *Validator) IsValidPDF(filePath string) bool {
	_, err := v.validatePDFFile(filePath)
	return err == nil
}

// ValidateFileInfo checks the file without opening it
func (v *Validator) ValidateFileInfo(filePath string, info os.FileInfo) error {
	switch {
	case info.IsDir():
		return fmt.Errorf("path is a directory, not a file: %s", filePath)
	case !strings.HasSuffix(strings.ToLower(filePath), ".pdf"):
		return fmt.Errorf("file is not a PDF: %s", filePath)
	case info.Size() == 0:
		return fmt.Errorf("file is empty: %s", filePath)
	case info.Size() > v.maxFileSize:
		return fmt.Errorf("file too large: %d bytes (max: %d bytes)", info.Size(), v.maxFileSize)
	}
	return nil
}

func (v *Validator) validatePDFFile(filePath string) (pages int, err error) {
	if filePath == "" {
		return 0, fmt.Errorf("path cannot be empty")
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return 0, fmt.Errorf("file does not exist: %s", filePath)
	}
	if err != nil {
		return 0, fmt.Errorf("cannot access file: %w", err)
	}

	if err := v.ValidateFileInfo(filePath, info); err != nil {
		return 0, err
	}

	defer pdferrors.Recover(&err, "reading "+filePath)

	f, r, err := pdf.Open(filePath)
	if err != nil {
		return 0, fmt.Errorf("invalid PDF file: %w", err)
	}
	defer f.Close()

	pages = r.NumPage()
	if pages == 0 {
		return 0, fmt.Errorf("PDF has no pages: %s", filePath)
	}
	return pages, nil
}
