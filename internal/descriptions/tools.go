package descriptions

import "sort"

// Tool descriptions with practical examples and workflows

const (
	PDFEmbedImageDescription = `Burn a signature, initial or stamp image into a PDF page.

**When to use:** A signer has drawn or uploaded their signature and it has to become part of the page content.

**Why it's useful:** Places the image from resolution-independent percentages, keeps the image's aspect ratio and turns it upright on rotated pages.

**Examples:**
• Sign a contract: "Embed the signature PNG at x_pct=10, y_pct=85 on page 3 of contract.pdf"
• Initial every page: "Embed initials.png at the bottom right of each page"
• Company stamp: "Stamp seal.jpg on the last page of invoice.pdf with width_pct=20"

**Common workflows:**
1. Single signature: pdf_page_geometry → pdf_embed_image → hand out the output file
2. Many fields: collect values → pdf_finish in one call

**Best practices:** Use data URLs with image/png or image/jpeg. Positions are percentages of the page as displayed, measured from its top-left corner.`

	PDFEmbedTextDescription = `Write a single line of text into a PDF page.

**When to use:** Date, name, email, company, title or free text fields have been filled in.

**Why it's useful:** Draws Helvetica text whose top edge meets the field's top edge, independent of page size and rotation.

**Examples:**
• Date a signature: "Write today's date at x_pct=60, y_pct=85 on page 3"
• Fill in the signer's name: "Write 'Jane Doe' under the signature line"

**Common workflows:**
1. pdf_embed_image for the signature → pdf_embed_text for the printed name and date

**Best practices:** Text is a single line in WinAnsi encoding; characters outside it are replaced with '?'.`

	PDFFinishDescription = `Apply every field of a signing session to a PDF in one operation.

**When to use:** All field values are resolved and the final document should be produced.

**Why it's useful:** Applies fields in order (later fields are drawn on top), skips fields on pages that do not exist and fails as a whole when an image cannot be used.

**Examples:**
• Finish a contract: "Apply signature, initials, date and checkbox fields to contract.pdf"

**Common workflows:**
1. pdf_validate_file → pdf_finish → pdf_validate_file on the output

**Best practices:** Pass fields as a JSON array. Date fields without a value receive the current date. Skipped fields are listed in the result.`

	PDFPageGeometryDescription = `Report page boxes, rotation and placement scale of a PDF.

**When to use:** Before placing fields, or to debug where a field landed.

**Why it's useful:** Shows the displayed (rotation adjusted) page size that field percentages refer to and how many points one viewport pixel covers.

**Examples:**
• Inspect a landscape scan: "Show the geometry of page 1 of scan.pdf"

**Best practices:** Omit the page to list every page.`

	PDFToPercentDescription = `Convert a pixel position in a rendered page into field percentages.

**When to use:** A placement UI reports positions in pixels of its rendering.

**Why it's useful:** Percentages stay valid for any rendering width, so a field placed on a small preview lands in the same spot on the PDF.

**Examples:**
• "Pixel (60, 80) on a 600x776 rendering → x_pct=10, y_pct=10.31"`

	PDFFromPercentDescription = `Convert field percentages back into a pixel position for a rendering.

**When to use:** Drawing existing fields on top of a page preview of any size.

**Examples:**
• "x_pct=10, y_pct=10 on a 1200x1553 rendering → (120, 155.3)"`

	PDFValidateFileDescription = `Verify that a file is a readable PDF before signing it.

**When to use:** Before embedding into an uploaded file, and to check a finished document.

**Why it's useful:** Catches missing, empty, oversized and corrupt files with a clear message instead of a failed signing run.

**Best practices:** Run it on both the input and the output of pdf_finish in automated workflows.`

	PDFServerInfoDescription = `Get server capabilities, stamping settings and the PDF files available for signing.

**When to use:** At the start of a session to discover the working directory and the reference viewport width.

**Best practices:** The reference width must match the width of the viewport the fields were placed in.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	"pdf_embed_image":   PDFEmbedImageDescription,
	"pdf_embed_text":    PDFEmbedTextDescription,
	"pdf_finish":        PDFFinishDescription,
	"pdf_page_geometry": PDFPageGeometryDescription,
	"pdf_to_percent":    PDFToPercentDescription,
	"pdf_from_percent":  PDFFromPercentDescription,
	"pdf_validate_file": PDFValidateFileDescription,
	"pdf_server_info":   PDFServerInfoDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns the names of all described tools, sorted
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
