package mcp

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-signer/internal/pdf/pdftest"
)

// TestSigningSession walks a document through the tools in the order a
// signing client calls them
func TestSigningSession(t *testing.T) {
	dir := t.TempDir()
	path := pdftest.WriteFile(t, dir, "lease.pdf", pdftest.Build(pdftest.Letter(0), pdftest.Letter(90)))
	server := newTestServer(t, dir)
	ctx := context.Background()

	result, err := server.handlePDFValidateFile(ctx, call(map[string]interface{}{"path": path}))
	require.NoError(t, err)
	require.Contains(t, extractTextFromResult(result), "valid and readable")

	// a click at (120, 80) in a 600 px wide preview of page 2
	result, err = server.handlePDFToPercent(ctx, call(map[string]interface{}{
		"x": float64(120), "y": float64(80), "width": float64(600), "height": float64(463.64),
	}))
	require.NoError(t, err)
	require.Contains(t, extractTextFromResult(result), "x_pct: 20.0000")

	items := fmt.Sprintf(`[
		{"field": {"id": "sig", "kind": "signature", "page": 2, "position": {"x_pct": 20, "y_pct": 17.25}},
		 "value": {"image": %q}},
		{"field": {"id": "name", "kind": "name", "page": 1, "position": {"x_pct": 10, "y_pct": 80}},
		 "value": {"text": "Jane Doe"}},
		{"field": {"id": "date", "kind": "date", "page": 1, "position": {"x_pct": 60, "y_pct": 80}}},
		{"field": {"id": "extra", "kind": "initial", "page": 3, "position": {"x_pct": 5, "y_pct": 95}},
		 "value": {"image": %q}}
	]`,
		pdftest.DataURL("image/png", pdftest.PNG(150, 50, true)),
		pdftest.DataURL("image/jpeg", pdftest.JPEG(40, 40)))

	result, err = server.handlePDFFinish(ctx, call(map[string]interface{}{
		"path":        path,
		"output_path": "lease-final.pdf",
		"fields":      items,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractTextFromResult(result))

	text := extractTextFromResult(result)
	assert.Contains(t, text, "Applied: 3 field(s): sig, name, date")
	assert.Contains(t, text, "Skipped 1 field(s) on missing pages: extra")

	out := filepath.Join(dir, "lease-final.pdf")
	f, r, err := pdf.Open(out)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, 2, r.NumPage())
	assert.Equal(t, int64(90), r.Page(2).V.Key("Rotate").Int64())
}

func TestServerRunServerMode(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	server := newTestServer(t, t.TempDir())
	server.config.Mode = "server"
	server.config.Port = port

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after cancellation")
	}
}
