package pdf

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/a3tai/mcp-pdf-signer/internal/descriptions"
	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
)

// DirectoryCache keeps recent listings of signable PDFs per directory
type DirectoryCache struct {
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
}

type cacheEntry struct {
	files   []FileInfo
	scanned time.Time
}

// NewDirectoryCache creates a new directory cache with specified TTL
func NewDirectoryCache(ttl time.Duration) *DirectoryCache {
	return &DirectoryCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached listing of dir if it has not expired
func (c *DirectoryCache) Get(dir string) ([]FileInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[dir]
	if !ok || c.now().Sub(entry.scanned) > c.ttl {
		return nil, false
	}
	return entry.files, true
}

// Set stores the listing of dir
func (c *DirectoryCache) Set(dir string, files []FileInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[dir] = cacheEntry{files: files, scanned: c.now()}
}

// Invalidate drops the listing of dir. Called after a document was written.
func (c *DirectoryCache) Invalidate(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, dir)
}

// InvalidatePath drops every cached listing whose scan root contains path.
// Scans are recursive, so a file written into a subdirectory changes the
// listing of each ancestor root.
func (c *DirectoryCache) InvalidatePath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for dir := range c.entries {
		real, err := filepath.EvalSymlinks(dir)
		if err != nil {
			real = dir
		}
		if within(dir, path) || within(real, path) {
			delete(c.entries, dir)
		}
	}
}

// within reports whether path is dir or lies below it
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Clear removes expired entries
func (c *DirectoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for dir, entry := range c.entries {
		if c.now().Sub(entry.scanned) > c.ttl {
			delete(c.entries, dir)
		}
	}
}

// Len returns the number of cached listings, expired ones included
func (c *DirectoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// DirectoryScanner lists PDF files below a directory within fixed limits
type DirectoryScanner struct {
	maxDepth  int
	fileLimit int
	timeLimit time.Duration
}

// NewDirectoryScanner creates a scanner. Zero limits are unlimited.
func NewDirectoryScanner(maxDepth, fileLimit int, timeLimit time.Duration) *DirectoryScanner {
	return &DirectoryScanner{maxDepth: maxDepth, fileLimit: fileLimit, timeLimit: timeLimit}
}

// errScanLimit stops the walk once a limit is reached
var errScanLimit = fmt.Errorf("scan limit reached")

// Scan walks root and returns the PDF files found. Hidden entries and
// symlinks are skipped. The second result reports whether a limit cut the
// listing short.
func (s *DirectoryScanner) Scan(ctx context.Context, root string) ([]FileInfo, bool, error) {
	start := time.Now()
	files := []FileInfo{}
	truncated := false

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable entries are left out of the listing
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.timeLimit > 0 && time.Since(start) > s.timeLimit {
			truncated = true
			return errScanLimit
		}

		if path == root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || d.Type()&os.ModeSymlink != 0 {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			rel, _ := filepath.Rel(root, path)
			if s.maxDepth > 0 && strings.Count(rel, string(filepath.Separator))+1 >= s.maxDepth {
				return fs.SkipDir
			}
			return nil
		}

		if !strings.EqualFold(filepath.Ext(d.Name()), ".pdf") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, FileInfo{
			Path:         path,
			Name:         d.Name(),
			Size:         info.Size(),
			ModifiedTime: info.ModTime().Format("2006-01-02 15:04:05"),
		})
		if s.fileLimit > 0 && len(files) >= s.fileLimit {
			truncated = true
			return errScanLimit
		}
		return nil
	})
	if err == errScanLimit {
		err = nil
	}
	return files, truncated, err
}

// PDFServerInfo builds the pdf_server_info response
type PDFServerInfo struct {
	cache   *DirectoryCache
	scanner *DirectoryScanner
	service *Service
}

// NewPDFServerInfo creates a server info handler with a five minute
// listing cache and a scan limited to 5 levels, 100 files and 3 seconds.
func NewPDFServerInfo(service *Service) *PDFServerInfo {
	return &PDFServerInfo{
		cache:   NewDirectoryCache(5 * time.Minute),
		scanner: NewDirectoryScanner(5, 100, 3*time.Second),
		service: service,
	}
}

// GetServerInfo reports capabilities, stamping settings and the PDF files in
// the working directory
func (p *PDFServerInfo) GetServerInfo(ctx context.Context, serverName, version, defaultDirectory string) (*PDFServerInfoResult, error) {
	dir := defaultDirectory
	if err := p.service.pathValidator.ValidateDirectory(dir); err != nil {
		dir = p.service.pathValidator.GetConfiguredDirectory()
	}

	p.ClearCache()
	files, ok := p.cache.Get(dir)
	if !ok {
		scanCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		var err error
		files, _, err = p.scanner.Scan(scanCtx, dir)
		if err != nil {
			files = []FileInfo{}
		} else {
			p.cache.Set(dir, files)
		}
	}

	kinds := make([]string, 0, len(geometry.Kinds))
	for _, k := range geometry.Kinds {
		kinds = append(kinds, string(k))
	}

	return &PDFServerInfoResult{
		ServerName:        serverName,
		Version:           version,
		DefaultDirectory:  dir,
		MaxFileSize:       p.service.GetMaxFileSize(),
		ReferenceWidth:    p.service.engine.Mapper().ReferenceWidth(),
		DefaultFontSize:   p.service.engine.FontSize(),
		DateLayout:        p.service.finisher.DateLayout(),
		BatchMode:         p.service.finisher.Batch(),
		FieldKinds:        kinds,
		AvailableTools:    p.getAvailableTools(),
		DirectoryContents: files,
		UsageGuidance:     p.getUsageGuidance(),
		SupportedFormats:  p.service.GetSupportedImageFormats(),
		CacheStats:        p.GetCacheStats(),
	}, nil
}

// Invalidate drops the cached listings that include path
func (p *PDFServerInfo) Invalidate(path string) {
	p.cache.InvalidatePath(path)
}

func (p *PDFServerInfo) getAvailableTools() []ToolInfo {
	const fieldParams = "page (required): 1-based page number, x_pct/y_pct (required): top-left corner " +
		"in percent of the displayed page, width_pct/height_pct (optional): field size in percent, " +
		"id (optional): field identifier"
	paths := "path (required): PDF to sign (absolute or relative to the working directory), " +
		"output_path (optional): defaults to <name>.signed.pdf"

	return []ToolInfo{
		{
			Name:        "pdf_embed_image",
			Description: descriptions.GetToolDescription("pdf_embed_image"),
			Usage:       "Use this tool to burn a signature, initial or stamp image into a page.",
			Parameters:  paths + ", kind (required): signature, initial or stamp, image (required): PNG or JPEG data URL, " + fieldParams,
		},
		{
			Name:        "pdf_embed_text",
			Description: descriptions.GetToolDescription("pdf_embed_text"),
			Usage:       "Use this tool to write a date, name, email, company, title, text or checkbox field.",
			Parameters:  paths + ", kind (required), text (optional): empty dates become today, font_size (optional), " + fieldParams,
		},
		{
			Name:        "pdf_finish",
			Description: descriptions.GetToolDescription("pdf_finish"),
			Usage:       "Use this tool to apply all fields of a signing session at once.",
			Parameters:  paths + ", fields (required): JSON array of {field, value} items",
		},
		{
			Name:        "pdf_page_geometry",
			Description: descriptions.GetToolDescription("pdf_page_geometry"),
			Usage:       "Use this tool to see page sizes, rotation and the viewport scale before placing fields.",
			Parameters:  "path (required), page (optional): 1-based page, all pages if omitted",
		},
		{
			Name:        "pdf_to_percent",
			Description: descriptions.GetToolDescription("pdf_to_percent"),
			Usage:       "Use this tool to convert a pixel position in a page rendering into percentages.",
			Parameters:  "x, y (required): pixels from the top-left corner, width, height (required): rendering size",
		},
		{
			Name:        "pdf_from_percent",
			Description: descriptions.GetToolDescription("pdf_from_percent"),
			Usage:       "Use this tool to convert percentages back into pixels for a rendering.",
			Parameters:  "x_pct, y_pct (required), width, height (required): rendering size",
		},
		{
			Name:        "pdf_validate_file",
			Description: descriptions.GetToolDescription("pdf_validate_file"),
			Usage:       "Use this tool to check that a file is a readable PDF before signing it.",
			Parameters:  "path (required): Full path to the PDF file (supports both absolute and relative paths)",
		},
		{
			Name:        "pdf_server_info",
			Description: descriptions.GetToolDescription("pdf_server_info"),
			Usage:       "Use this tool to get server settings and the PDF files available for signing.",
			Parameters:  "No parameters required",
		},
	}
}

func (p *PDFServerInfo) getUsageGuidance() string {
	maxFileSizeMB := p.service.maxFileSize / (1024 * 1024)

	return fmt.Sprintf(`PDF Signer MCP Server Usage Guide:

1. DISCOVER:
   - Use 'pdf_server_info' to see the working directory and the PDF files in it
   - Use 'pdf_validate_file' to check a document before signing

2. PLACE FIELDS:
   - Positions are percentages of the page as displayed (rotation applied), measured
     from the top-left corner
   - Use 'pdf_to_percent' to convert pixel positions from a rendering of any width
   - Use 'pdf_page_geometry' to see page sizes, rotation and the viewport scale
   - Default field sizes assume a %.0f pixel wide viewport

3. EMBED VALUES:
   - 'pdf_embed_image' for signature, initial and stamp fields (PNG or JPEG data URLs)
   - 'pdf_embed_text' for date, text, name, email, company, title and checkbox fields
   - 'pdf_finish' to apply a whole session in order; later fields are drawn on top

IMPORTANT NOTES:
- Fields on pages the document does not have are skipped and reported
- An unusable image aborts the run and no output is written
- Text is drawn in Helvetica; characters outside WinAnsi become '?'
- The input file is never modified; output defaults to <name>.signed.pdf
- The server can handle files up to %dMB`,
		p.service.engine.Mapper().ReferenceWidth(), maxFileSizeMB)
}

// ClearCache clears expired cache entries
func (p *PDFServerInfo) ClearCache() {
	p.cache.Clear()
}

// GetCacheStats returns directory listing and decoded image cache statistics
func (p *PDFServerInfo) GetCacheStats() map[string]interface{} {
	images := p.service.engine.ImageCacheStats()
	return map[string]interface{}{
		"total_entries":      p.cache.Len(),
		"cache_ttl_minutes":  p.cache.ttl.Minutes(),
		"image_cache_hits":   images.Hits,
		"image_cache_misses": images.Misses,
		"image_cache_size":   images.Size,
	}
}
