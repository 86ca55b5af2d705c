package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/mcp-pdf-signer/internal/config"
	"github.com/a3tai/mcp-pdf-signer/internal/descriptions"
	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf"
	pdferrors "github.com/a3tai/mcp-pdf-signer/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/finish"
)

// Server represents the MCP server instance
type Server struct {
	config     *config.Config
	pdfService *pdf.Service
	mcpServer  *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, pdfService *pdf.Service) (*Server, error) {
	if pdfService == nil {
		return nil, fmt.Errorf("pdfService cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // We don't support dynamic tool capabilities
	)

	s := &Server{
		config:     cfg,
		pdfService: pdfService,
		mcpServer:  mcpServer,
	}

	s.registerTools()

	return s, nil
}

// fieldOptions are the parameters shared by the single-field tools
func fieldOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the PDF file (absolute or relative to the working directory)"),
		),
		mcp.WithString("output_path",
			mcp.Description("Where to write the result (defaults to <name>.signed.pdf next to the input)"),
		),
		mcp.WithString("kind",
			mcp.Required(),
			mcp.Description("Field kind: signature, initial, stamp, date, checkbox, text, name, email, company or title"),
		),
		mcp.WithNumber("page",
			mcp.Required(),
			mcp.Description("1-based page number"),
		),
		mcp.WithNumber("x_pct",
			mcp.Required(),
			mcp.Description("Left edge in percent of the displayed page width"),
		),
		mcp.WithNumber("y_pct",
			mcp.Required(),
			mcp.Description("Top edge in percent of the displayed page height, from the top"),
		),
		mcp.WithNumber("width_pct",
			mcp.Description("Field width in percent of the displayed page width"),
		),
		mcp.WithNumber("height_pct",
			mcp.Description("Field height in percent of the displayed page height"),
		),
		mcp.WithString("id",
			mcp.Description("Field identifier reported back in the result"),
		),
	}
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	embedImageOpts := append([]mcp.ToolOption{
		mcp.WithDescription(descriptions.GetToolDescription("pdf_embed_image")),
		mcp.WithString("image",
			mcp.Required(),
			mcp.Description("PNG or JPEG image as a data URL (data:image/png;base64,...)"),
		),
	}, fieldOptions()...)
	s.mcpServer.AddTool(mcp.NewTool("pdf_embed_image", embedImageOpts...), s.handlePDFEmbedImage)

	embedTextOpts := append([]mcp.ToolOption{
		mcp.WithDescription(descriptions.GetToolDescription("pdf_embed_text")),
		mcp.WithString("text",
			mcp.Description("Text to draw; for checkboxes 'true' or 'false'; empty dates become today"),
		),
		mcp.WithNumber("font_size",
			mcp.Description("Font size in points"),
		),
	}, fieldOptions()...)
	s.mcpServer.AddTool(mcp.NewTool("pdf_embed_text", embedTextOpts...), s.handlePDFEmbedText)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_finish",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_finish")),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the PDF file"),
		),
		mcp.WithString("output_path",
			mcp.Description("Where to write the result (defaults to <name>.signed.pdf next to the input)"),
		),
		mcp.WithString("fields",
			mcp.Required(),
			mcp.Description(`JSON array of items: [{"field": {"id", "kind", "page", "position": {"x_pct", "y_pct"}, `+
				`"size": {"width_pct", "height_pct"}}, "value": {"image" | "text" | "checked", "font_size"}}]`),
		),
	), s.handlePDFFinish)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_page_geometry",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_page_geometry")),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the PDF file"),
		),
		mcp.WithNumber("page",
			mcp.Description("1-based page number (all pages if omitted)"),
		),
	), s.handlePDFPageGeometry)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_to_percent",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_to_percent")),
		mcp.WithNumber("x", mcp.Required(), mcp.Description("Pixels from the left edge of the rendering")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Pixels from the top edge of the rendering")),
		mcp.WithNumber("width", mcp.Required(), mcp.Description("Rendered page width in pixels")),
		mcp.WithNumber("height", mcp.Required(), mcp.Description("Rendered page height in pixels")),
	), s.handlePDFToPercent)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_from_percent",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_from_percent")),
		mcp.WithNumber("x_pct", mcp.Required(), mcp.Description("Left edge in percent")),
		mcp.WithNumber("y_pct", mcp.Required(), mcp.Description("Top edge in percent")),
		mcp.WithNumber("width", mcp.Required(), mcp.Description("Rendered page width in pixels")),
		mcp.WithNumber("height", mcp.Required(), mcp.Description("Rendered page height in pixels")),
	), s.handlePDFFromPercent)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_validate_file",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_validate_file")),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the PDF file"),
		),
	), s.handlePDFValidateFile)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_server_info",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_server_info")),
	), s.handlePDFServerInfo)
}

// Argument helpers

// requireNumber reads a required numeric argument
func requireNumber(args map[string]any, key string) (float64, error) {
	v, ok, err := optionalNumber(args, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("required argument %q not found", key)
	}
	return v, nil
}

// optionalNumber reads a numeric argument that may be absent. JSON numbers
// arrive as float64; numeric strings are accepted too. NaN and infinities
// are rejected.
func optionalNumber(args map[string]any, key string) (float64, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, false, nil
	}

	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case string:
		if strings.TrimSpace(v) == "" {
			return 0, false, nil
		}
		if _, err := fmt.Sscan(v, &f); err != nil {
			return 0, false, fmt.Errorf("argument %q is not a number: %q", key, v)
		}
	default:
		return 0, false, fmt.Errorf("argument %q is not a number", key)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, fmt.Errorf("argument %q must be a finite number, got %v", key, raw)
	}
	return f, true, nil
}

func optionalString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// fieldFromArgs builds the field described by the shared field parameters
func fieldFromArgs(request mcp.CallToolRequest) (geometry.Field, error) {
	args := request.GetArguments()

	kindArg, err := request.RequireString("kind")
	if err != nil {
		return geometry.Field{}, err
	}
	kind, err := geometry.ParseKind(kindArg)
	if err != nil {
		return geometry.Field{}, err
	}

	page, err := requireNumber(args, "page")
	if err != nil {
		return geometry.Field{}, err
	}
	// reject fractional pages rather than truncating them
	if page != math.Trunc(page) {
		return geometry.Field{}, pdferrors.New(pdferrors.ErrorTypeInvalidGeometry,
			fmt.Sprintf("page must be a whole number, got %g", page))
	}
	x, err := requireNumber(args, "x_pct")
	if err != nil {
		return geometry.Field{}, err
	}
	y, err := requireNumber(args, "y_pct")
	if err != nil {
		return geometry.Field{}, err
	}

	field := geometry.Field{
		ID:         optionalString(args, "id"),
		Kind:       kind,
		PageNumber: int(page),
		Position:   geometry.Position{XPct: x, YPct: y},
	}
	if field.ID == "" {
		field.ID = uuid.NewString()
	}

	if w, ok, err := optionalNumber(args, "width_pct"); err != nil {
		return geometry.Field{}, err
	} else if ok {
		field.Size.WidthPct = geometry.Pct(w)
	}
	if h, ok, err := optionalNumber(args, "height_pct"); err != nil {
		return geometry.Field{}, err
	} else if ok {
		field.Size.HeightPct = geometry.Pct(h)
	}

	return field, field.Validate()
}

// Handler functions
func (s *Server) handlePDFEmbedImage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	image, err := request.RequireString("image")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	field, err := fieldFromArgs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.PDFEmbedImage(ctx, pdf.PDFEmbedImageRequest{
		Path:       path,
		OutputPath: optionalString(request.GetArguments(), "output_path"),
		Field:      field,
		Image:      image,
	})
	if err != nil {
		return mcp.NewToolResultError(formatEmbedError(err)), nil
	}

	return mcp.NewToolResultText(s.formatPDFEmbedResult(result)), nil
}

func (s *Server) handlePDFEmbedText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	field, err := fieldFromArgs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	args := request.GetArguments()
	fontSize, _, err := optionalNumber(args, "font_size")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.PDFEmbedText(ctx, pdf.PDFEmbedTextRequest{
		Path:       path,
		OutputPath: optionalString(args, "output_path"),
		Field:      field,
		Text:       optionalString(args, "text"),
		FontSize:   fontSize,
	})
	if err != nil {
		return mcp.NewToolResultError(formatEmbedError(err)), nil
	}

	return mcp.NewToolResultText(s.formatPDFEmbedResult(result)), nil
}

func (s *Server) handlePDFFinish(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	args := request.GetArguments()
	items, err := parseItems(args["fields"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.PDFFinish(ctx, pdf.PDFFinishRequest{
		Path:       path,
		OutputPath: optionalString(args, "output_path"),
		Items:      items,
	})
	if err != nil {
		return mcp.NewToolResultError(formatEmbedError(err)), nil
	}

	return mcp.NewToolResultText(s.formatPDFEmbedResult(result)), nil
}

// parseItems accepts the fields argument as a JSON string or as an already
// decoded array
func parseItems(raw any) ([]finish.Item, error) {
	var data []byte
	switch v := raw.(type) {
	case nil:
		return nil, fmt.Errorf("required argument %q not found", "fields")
	case string:
		data = []byte(v)
	default:
		var err error
		if data, err = json.Marshal(v); err != nil {
			return nil, fmt.Errorf("invalid fields: %w", err)
		}
	}

	var items []finish.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("invalid fields: %w", err)
	}
	for i := range items {
		if items[i].Field.ID == "" {
			items[i].Field.ID = uuid.NewString()
		}
	}
	return items, nil
}

func (s *Server) handlePDFPageGeometry(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	page, _, err := optionalNumber(request.GetArguments(), "page")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.PDFPageGeometry(pdf.PDFPageGeometryRequest{Path: path, Page: int(page)})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatPDFPageGeometryResult(result)), nil
}

func (s *Server) handlePDFToPercent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nums, err := requireNumbers(request.GetArguments(), "x", "y", "width", "height")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.PDFToPercent(pdf.PDFToPercentRequest{
		Point:    geometry.Point{X: nums[0], Y: nums[1]},
		Rendered: geometry.Dims{Width: nums[2], Height: nums[3]},
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("x_pct: %.4f\ny_pct: %.4f",
		result.Position.XPct, result.Position.YPct)), nil
}

func (s *Server) handlePDFFromPercent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nums, err := requireNumbers(request.GetArguments(), "x_pct", "y_pct", "width", "height")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.PDFFromPercent(pdf.PDFFromPercentRequest{
		Position: geometry.Position{XPct: nums[0], YPct: nums[1]},
		Rendered: geometry.Dims{Width: nums[2], Height: nums[3]},
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("x: %.2f\ny: %.2f", result.Point.X, result.Point.Y)), nil
}

func requireNumbers(args map[string]any, keys ...string) ([]float64, error) {
	out := make([]float64, len(keys))
	for i, key := range keys {
		v, err := requireNumber(args, key)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *Server) handlePDFValidateFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := pdf.PDFValidateFileRequest{Path: path}
	result, err := s.pdfService.PDFValidateFile(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var responseText string
	if result.Valid {
		responseText = fmt.Sprintf("PDF file %s is valid and readable (%d pages)", result.Path, result.Pages)
	} else {
		responseText = fmt.Sprintf("PDF validation failed for %s: %s", result.Path, result.Message)
	}

	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handlePDFServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := pdf.PDFServerInfoRequest{}
	result, err := s.pdfService.PDFServerInfo(ctx, req, s.config.ServerName, s.config.Version, s.config.PDFDirectory)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	responseText := s.formatPDFServerInfoResult(result)
	return mcp.NewToolResultText(responseText), nil
}

// Formatting methods

// formatEmbedError adds the field position of an aborted finishing run
func formatEmbedError(err error) string {
	var fe *finish.FinishError
	if errors.As(err, &fe) {
		return fmt.Sprintf("field %d (%s) could not be applied, no output written: %v", fe.Index+1, fe.FieldID, fe.Err)
	}
	return err.Error()
}

func (s *Server) formatPDFEmbedResult(result *pdf.PDFEmbedResult) string {
	text := fmt.Sprintf("Wrote %s (%d bytes)\n", result.OutputPath, result.Size)
	text += fmt.Sprintf("Source: %s\n", result.Path)
	text += fmt.Sprintf("Applied: %d field(s)", len(result.Applied))
	if len(result.Applied) > 0 {
		text += ": " + strings.Join(result.Applied, ", ")
	}
	text += "\n"

	if len(result.Skipped) > 0 {
		text += fmt.Sprintf("\n⚠️  Skipped %d field(s) on missing pages: %s\n",
			len(result.Skipped), strings.Join(result.Skipped, ", "))
		for _, w := range result.Warnings {
			text += fmt.Sprintf("   - %s\n", w)
		}
	}

	return text
}

func (s *Server) formatPDFPageGeometryResult(result *pdf.PDFPageGeometryResult) string {
	text := fmt.Sprintf("Page geometry for: %s\n", result.Path)
	text += fmt.Sprintf("Pages: %d\n", result.PageCount)
	text += fmt.Sprintf("Reference viewport width: %g px\n", result.ReferenceWidth)

	for _, p := range result.Pages {
		text += fmt.Sprintf("\nPage %d:\n", p.Number)
		text += fmt.Sprintf("  MediaBox: [%g %g %g %g]\n", p.MediaBox.LLx, p.MediaBox.LLy, p.MediaBox.URx, p.MediaBox.URy)
		if p.CropBox != nil {
			text += fmt.Sprintf("  CropBox: [%g %g %g %g]\n", p.CropBox.LLx, p.CropBox.LLy, p.CropBox.URx, p.CropBox.URy)
		}
		text += fmt.Sprintf("  Rotation: %d\n", p.Rotation)
		text += fmt.Sprintf("  Displayed size: %g x %g pt\n", p.EffectiveWidth, p.EffectiveHeight)
		text += fmt.Sprintf("  Scale: %.4f pt per viewport pixel (viewport height %.1f px)\n", p.Scale, p.ReferenceHeight)
		text += fmt.Sprintf("  Default field size: %s\n", formatSize(p.DefaultFieldSize))
		text += fmt.Sprintf("  Default checkbox size: %s\n", formatSize(p.DefaultCheckboxSize))
	}

	return text
}

func formatSize(size geometry.Size) string {
	if !size.Explicit() {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%% x %.2f%%", *size.WidthPct, *size.HeightPct)
}

func (s *Server) formatPDFServerInfoResult(result *pdf.PDFServerInfoResult) string {
	text := fmt.Sprintf("📋 %s v%s - Server Information\n", result.ServerName, result.Version)
	text += fmt.Sprintf("📁 Default Directory: %s\n", result.DefaultDirectory)
	text += fmt.Sprintf("📏 Max File Size: %d MB\n", result.MaxFileSize/(1024*1024))
	text += fmt.Sprintf("🖥️  Reference Viewport Width: %g px\n", result.ReferenceWidth)
	text += fmt.Sprintf("🔤 Default Font Size: %g pt\n", result.DefaultFontSize)
	text += fmt.Sprintf("📅 Date Layout: %s\n", result.DateLayout)
	text += fmt.Sprintf("🏷️  Field Kinds: %s\n\n", strings.Join(result.FieldKinds, ", "))

	if len(result.DirectoryContents) > 0 {
		text += fmt.Sprintf("📂 Directory Contents (%d PDF files found):\n", len(result.DirectoryContents))
		for i, file := range result.DirectoryContents {
			if i >= 10 { // Limit to first 10 files for readability
				text += fmt.Sprintf("   ... and %d more files\n", len(result.DirectoryContents)-10)
				break
			}
			text += fmt.Sprintf("   %d. %s (%d bytes)\n", i+1, file.Name, file.Size)
		}
		text += "\n"
	} else {
		text += "📂 Directory Contents: No PDF files found in default directory\n\n"
	}

	text += "🛠️  Available Tools:\n"
	for _, tool := range result.AvailableTools {
		text += fmt.Sprintf("\n• %s\n", tool.Name)
		text += fmt.Sprintf("  Usage: %s\n", tool.Usage)
		text += fmt.Sprintf("  Parameters: %s\n", tool.Parameters)
	}

	if len(result.SupportedFormats) > 0 {
		text += "\n🖼️  Supported Image Formats:\n"
		for _, format := range result.SupportedFormats {
			text += fmt.Sprintf("  • %s\n", format)
		}
	}

	text += "\n" + result.UsageGuidance

	return text
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode runs the server in stdio mode
func (s *Server) runStdioMode(_ context.Context) error {
	if s.config.IsDebug() {
		log.Printf("Starting PDF signer MCP server in stdio mode")
		log.Printf("PDF directory: %s", s.config.PDFDirectory)
	}

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves MCP over HTTP with server-sent events until ctx is
// cancelled
func (s *Server) runServerMode(ctx context.Context) error {
	addr := s.config.Address()
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+addr))

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting PDF signer MCP server on %s", addr)
		errCh <- sse.Start(addr)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to serve http: %w", err)
	case <-ctx.Done():
		if err := sse.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("failed to shut down http server: %w", err)
		}
		return nil
	}
}
