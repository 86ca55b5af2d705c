package pdf

import (
	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/finish"
)

// FileInfo represents information about a PDF file
type FileInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

// Request Types

// PDFValidateFileRequest represents a request to validate a PDF file
type PDFValidateFileRequest struct {
	Path string `json:"path"`
}

// PDFPageGeometryRequest asks for the page boxes of one page, or of every
// page when Page is zero
type PDFPageGeometryRequest struct {
	Path string `json:"path"`
	Page int    `json:"page,omitempty"`
}

// PDFEmbedImageRequest draws one signature, initial or stamp image
type PDFEmbedImageRequest struct {
	Path       string         `json:"path"`
	OutputPath string         `json:"output_path,omitempty"`
	Field      geometry.Field `json:"field"`
	// Image is a PNG or JPEG data URL
	Image string `json:"image"`
}

// PDFEmbedTextRequest draws one text-like field. For checkbox fields Text
// is read as the checked state.
type PDFEmbedTextRequest struct {
	Path       string         `json:"path"`
	OutputPath string         `json:"output_path,omitempty"`
	Field      geometry.Field `json:"field"`
	Text       string         `json:"text"`
	FontSize   float64        `json:"font_size,omitempty"`
}

// PDFFinishRequest applies a list of resolved fields in order
type PDFFinishRequest struct {
	Path       string        `json:"path"`
	OutputPath string        `json:"output_path,omitempty"`
	Items      []finish.Item `json:"items"`
}

// PDFToPercentRequest converts a pixel position in a rendering to percentages
type PDFToPercentRequest struct {
	Point    geometry.Point `json:"point"`
	Rendered geometry.Dims  `json:"rendered"`
}

// PDFFromPercentRequest converts percentages back to a pixel position
type PDFFromPercentRequest struct {
	Position geometry.Position `json:"position"`
	Rendered geometry.Dims     `json:"rendered"`
}

// PDFServerInfoRequest represents a request to get server information and capabilities
type PDFServerInfoRequest struct {
	// No parameters needed for server info
}

// Response Types

// PDFValidateFileResult represents the result of a PDF validation operation
type PDFValidateFileResult struct {
	Valid   bool   `json:"valid"`
	Path    string `json:"path"`
	Pages   int    `json:"pages,omitempty"`
	Message string `json:"message,omitempty"`
}

// Box is a page box in PDF user space
type Box struct {
	LLx float64 `json:"llx"`
	LLy float64 `json:"lly"`
	URx float64 `json:"urx"`
	URy float64 `json:"ury"`
}

// PageGeometryInfo describes one page as the placement code sees it
type PageGeometryInfo struct {
	Number   int  `json:"number"`
	MediaBox Box  `json:"media_box"`
	CropBox  *Box `json:"crop_box,omitempty"`
	Rotation int  `json:"rotation"`
	// EffectiveWidth and EffectiveHeight are the displayed size in points
	EffectiveWidth  float64 `json:"effective_width"`
	EffectiveHeight float64 `json:"effective_height"`
	// Scale is the number of points one reference viewport pixel covers
	Scale float64 `json:"scale"`
	// ReferenceHeight is the page height in reference viewport pixels
	ReferenceHeight float64 `json:"reference_height"`
	// DefaultFieldSize and DefaultCheckboxSize are the sizes fields get
	// when placed without one, as percentages of this page
	DefaultFieldSize    geometry.Size `json:"default_field_size"`
	DefaultCheckboxSize geometry.Size `json:"default_checkbox_size"`
}

// PDFPageGeometryResult lists page geometry for a document
type PDFPageGeometryResult struct {
	Path           string             `json:"path"`
	PageCount      int                `json:"page_count"`
	ReferenceWidth float64            `json:"reference_width"`
	Pages          []PageGeometryInfo `json:"pages"`
}

// PDFEmbedResult is returned by the embed and finish operations
type PDFEmbedResult struct {
	Path       string   `json:"path"`
	OutputPath string   `json:"output_path"`
	Applied    []string `json:"applied"`
	Skipped    []string `json:"skipped,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	Size       int64    `json:"size"`
	Message    string   `json:"message"`
}

// PDFToPercentResult holds the converted position
type PDFToPercentResult struct {
	Position geometry.Position `json:"position"`
}

// PDFFromPercentResult holds the converted pixel position
type PDFFromPercentResult struct {
	Point geometry.Point `json:"point"`
}

// PDFServerInfoResult represents server information and usage guidance
type PDFServerInfoResult struct {
	ServerName        string     `json:"server_name"`
	Version           string     `json:"version"`
	DefaultDirectory  string     `json:"default_directory"`
	MaxFileSize       int64      `json:"max_file_size"`
	ReferenceWidth    float64    `json:"reference_width"`
	DefaultFontSize   float64    `json:"default_font_size"`
	DateLayout        string     `json:"date_layout"`
	BatchMode         bool       `json:"batch_mode"`
	FieldKinds        []string   `json:"field_kinds"`
	AvailableTools    []ToolInfo `json:"available_tools"`
	DirectoryContents []FileInfo `json:"directory_contents"`
	UsageGuidance     string     `json:"usage_guidance"`
	SupportedFormats  []string               `json:"supported_formats"`
	CacheStats        map[string]interface{} `json:"cache_stats"`
}

// ToolInfo represents information about an available tool
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Usage       string `json:"usage"`
	Parameters  string `json:"parameters"`
}
