package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/embed"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/finish"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/viewport"
)

// options holds the parsed command line
type options struct {
	input          string
	manifest       string
	out            string
	batch          bool
	referenceWidth float64
	dateLayout     string
	fontSize       float64
	format         string
	verbose        bool
}

// summary is printed after a run
type summary struct {
	Input   string   `json:"input"`
	Output  string   `json:"output"`
	Applied []string `json:"applied"`
	Skipped []string `json:"skipped,omitempty"`
	Size    int      `json:"size"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n\n", err)
		printUsage(stderr)
		return 2
	}

	log.SetOutput(io.Discard)
	if opts.verbose {
		log.SetOutput(stderr)
	}

	res, err := stamp(ctx, opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if err := printSummary(stdout, opts.format, res); err != nil {
		fmt.Fprintf(stderr, "Error outputting results: %v\n", err)
		return 1
	}
	return 0
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := pflag.NewFlagSet("pdf_stamp", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(stderr) }

	fs.StringVarP(&opts.manifest, "manifest", "m", "", "YAML or JSON file listing the fields and their values")
	fs.StringVarP(&opts.out, "out", "o", "", "Output PDF (default: <input>.signed.pdf)")
	fs.BoolVar(&opts.batch, "batch", false, "Load the document once instead of once per field")
	fs.Float64Var(&opts.referenceWidth, "reference-width", geometry.DefaultReferenceWidth,
		"Width in pixels of the viewport the fields were placed in")
	fs.StringVar(&opts.dateLayout, "date-layout", "", "Go time layout for date fields without a value")
	fs.Float64Var(&opts.fontSize, "font-size", embed.DefaultFontSize, "Default font size in points")
	fs.StringVar(&opts.format, "format", "text", "Summary format: text, json")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "Log skipped fields and other warnings")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if fs.NArg() != 1 {
		return nil, fmt.Errorf("exactly one input PDF required")
	}
	opts.input = fs.Arg(0)
	if opts.manifest == "" {
		return nil, fmt.Errorf("--manifest is required")
	}
	if opts.format != "text" && opts.format != "json" {
		return nil, fmt.Errorf("unknown format %q", opts.format)
	}

	// the manifest may carry its own settings; explicit flags win
	if !fs.Changed("reference-width") {
		opts.referenceWidth = 0
	}
	return opts, nil
}

func stamp(ctx context.Context, opts *options) (*summary, error) {
	manifest, err := finish.LoadManifest(opts.manifest)
	if err != nil {
		return nil, err
	}
	items, err := manifest.Items(filepath.Dir(opts.manifest))
	if err != nil {
		return nil, err
	}

	width := opts.referenceWidth
	if width == 0 {
		width = manifest.ReferenceWidth
	}
	if width == 0 {
		width = geometry.DefaultReferenceWidth
	}
	mapper, err := viewport.NewMapper(width)
	if err != nil {
		return nil, err
	}

	layout := opts.dateLayout
	if layout == "" {
		layout = manifest.DateLayout
	}

	finisher := finish.New(embed.NewEngine(mapper, opts.fontSize),
		finish.WithBatch(opts.batch),
		finish.WithDateLayout(layout),
	)

	input, err := os.ReadFile(opts.input)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	res, err := finisher.Finish(ctx, input, items)
	if err != nil {
		return nil, err
	}
	for _, id := range res.Skipped {
		log.Printf("skipped field %s: page does not exist", id)
	}

	out := opts.out
	if out == "" {
		out = pdf.DefaultOutputPath(opts.input)
	}
	if err := os.WriteFile(out, res.PDF, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write output: %w", err)
	}

	return &summary{
		Input:   opts.input,
		Output:  out,
		Applied: res.Applied,
		Skipped: res.Skipped,
		Size:    len(res.PDF),
	}, nil
}

func printSummary(w io.Writer, format string, s *summary) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	fmt.Fprintf(w, "Wrote %s (%d bytes)\n", s.Output, s.Size)
	fmt.Fprintf(w, "Applied %d field(s)", len(s.Applied))
	if len(s.Applied) > 0 {
		fmt.Fprintf(w, ": %s", strings.Join(s.Applied, ", "))
	}
	fmt.Fprintln(w)
	if len(s.Skipped) > 0 {
		fmt.Fprintf(w, "Skipped %d field(s) on missing pages: %s\n", len(s.Skipped), strings.Join(s.Skipped, ", "))
	}
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  pdf_stamp --manifest fields.yaml [options] input.pdf")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "OPTIONS:")
	fmt.Fprintln(w, "  -m, --manifest         Fields and values to apply (YAML or JSON)")
	fmt.Fprintln(w, "  -o, --out              Output PDF (default: <input>.signed.pdf)")
	fmt.Fprintln(w, "      --batch            Load the document once instead of once per field")
	fmt.Fprintln(w, "      --reference-width  Placement viewport width in pixels (default: manifest or 600)")
	fmt.Fprintln(w, "      --date-layout      Go time layout for empty date fields (default: manifest or 01/02/2006)")
	fmt.Fprintln(w, "      --font-size        Default font size in points (default: 12)")
	fmt.Fprintln(w, "      --format           Summary format: text, json")
	fmt.Fprintln(w, "  -v, --verbose          Log warnings to stderr")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "EXAMPLE MANIFEST:")
	fmt.Fprintln(w, "  fields:")
	fmt.Fprintln(w, "    - {id: sig, kind: signature, page: 1, x: 10, y: 80, value: signature.png}")
	fmt.Fprintln(w, "    - {id: date, kind: date, page: 1, x: 60, y: 80}")
}
