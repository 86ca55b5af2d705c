package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/a3tai/mcp-pdf-signer/internal/config"
	"github.com/a3tai/mcp-pdf-signer/internal/mcp"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/embed"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/finish"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/viewport"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging configures logging based on the server mode
func setupLogging(cfg *config.Config) {
	if cfg.IsStdioMode() {
		// stdout carries the MCP protocol, so logs go to stderr
		log.SetOutput(os.Stderr)
		// Silence logging entirely unless debug is enabled
		if !cfg.IsDebug() {
			log.SetOutput(io.Discard)
		}
	} else {
		// In server mode, log with file and line for more detail
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}
}

// buildServer wires the stamping engine, PDF service and MCP server from cfg
func buildServer(cfg *config.Config) (*mcp.Server, error) {
	// The mapper converts percentages into points against the reference viewport
	mapper, err := viewport.NewMapper(cfg.ReferenceWidth)
	if err != nil {
		return nil, fmt.Errorf("invalid reference width: %w", err)
	}
	engine := embed.NewEngine(mapper, cfg.FontSize)

	// Create PDF service confined to the configured directory
	pdfService, err := pdf.NewService(cfg.MaxFileSize, cfg.PDFDirectory, engine,
		finish.WithBatch(cfg.Batch),
		finish.WithDateLayout(cfg.DateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF service: %w", err)
	}

	// Create MCP server
	return mcp.NewServer(cfg, pdfService)
}

// runServerMode handles server mode execution with signal handling
func runServerMode(ctx context.Context, cancel context.CancelFunc, server *mcp.Server) {
	// Set up signal handling for graceful shutdown
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	// Run the SSE server in the background
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Run(ctx)
	}()

	// Wait for a shutdown signal or a server error
	select {
	case sig := <-signalCh:
		log.Printf("Received signal: %s", sig)
		log.Println("Initiating graceful shutdown...")
		cancel()

		// Wait for the server to finish shutting down
		if err := <-serverErrCh; err != nil {
			log.Printf("Server shutdown with error: %v", err)
			os.Exit(1)
		}

	case err := <-serverErrCh:
		if err != nil {
			log.Printf("Server error: %v", err)
			os.Exit(1)
		}
	}

	log.Println("Server stopped successfully")
}

// runStdioMode handles stdio mode execution. The parent process controls
// our lifecycle; we exit when stdin is closed.
func runStdioMode(ctx context.Context, server *mcp.Server) {
	// Run until the client closes stdin or the transport fails
	if err := server.Run(ctx); err != nil {
		log.Printf("Server error: %v", err)
		os.Exit(1)
	}
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	// Load configuration from flags and environment
	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging based on mode
	setupLogging(cfg)

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}

	if cfg.IsDebug() {
		log.Printf("Starting with configuration: %s", cfg.String())
	}

	// Wire the engine, service and MCP server
	server, err := buildServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle different modes
	if cfg.IsServerMode() {
		runServerMode(ctx, cancel, server)
	} else {
		runStdioMode(ctx, server)
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("MCP PDF Signer\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
