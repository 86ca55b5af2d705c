package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPathValidator(t *testing.T) {
	_, err := NewPathValidator("")
	assert.Error(t, err)

	v, err := NewPathValidator("/non/existent/path")
	require.NoError(t, err)
	assert.Equal(t, "/non/existent/path", v.GetConfiguredDirectory())
}

func TestPathValidator_ValidatePath(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "signed"), 0o755))

	v, err := NewPathValidator(dir)
	require.NoError(t, err)

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"file in directory", filepath.Join(dir, "contract.pdf"), false},
		{"file in subdirectory", filepath.Join(dir, "signed", "contract.pdf"), false},
		{"directory itself", dir, false},
		{"missing nested output", filepath.Join(dir, "new", "deep", "out.pdf"), false},
		{"other directory", filepath.Join(outside, "contract.pdf"), true},
		{"traversal", filepath.Join(dir, "..", filepath.Base(outside), "x.pdf"), true},
		{"prefix sibling", dir + "-evil/contract.pdf", true},
		{"empty", "", true},
		{"null byte", filepath.Join(dir, "a\x00.pdf"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidatePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPathValidator_Symlinks(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()

	target := filepath.Join(outside, "secret.pdf")
	require.NoError(t, os.WriteFile(target, []byte("%PDF-1.4"), 0o644))

	link := filepath.Join(dir, "link.pdf")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	linkedDir := filepath.Join(dir, "elsewhere")
	require.NoError(t, os.Symlink(outside, linkedDir))

	v, err := NewPathValidator(dir)
	require.NoError(t, err)

	assert.Error(t, v.ValidatePath(link))
	assert.Error(t, v.ValidatePath(filepath.Join(linkedDir, "new.pdf")))
}

func TestPathValidator_MissingDirectoryAcceptsAll(t *testing.T) {
	v, err := NewPathValidator(filepath.Join(t.TempDir(), "not-yet"))
	require.NoError(t, err)

	ok, err := v.IsPathWithinDirectory("/etc/passwd")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPathValidator_NormalizePath(t *testing.T) {
	dir := t.TempDir()
	v, err := NewPathValidator(dir)
	require.NoError(t, err)

	got, err := v.NormalizePath("contract.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "contract.pdf"), got)

	got, err = v.NormalizePath(filepath.Join(dir, "a", "..", "b.pdf"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "b.pdf"), got)

	_, err = v.NormalizePath("../escape.pdf")
	assert.Error(t, err)

	_, err = v.NormalizePath("")
	assert.Error(t, err)
}

func TestPathValidator_ValidateOutputPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "out.pdf"), 0o755))

	v, err := NewPathValidator(dir)
	require.NoError(t, err)

	got, err := v.ValidateOutputPath("signed/contract.signed.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "signed", "contract.signed.pdf"), got)

	_, err = v.ValidateOutputPath("contract.txt")
	assert.Error(t, err)

	_, err = v.ValidateOutputPath("out.pdf")
	assert.Error(t, err)

	_, err = v.ValidateOutputPath("/tmp/../etc/x.pdf")
	assert.Error(t, err)
}

func TestPathValidator_ValidateDirectory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "inbox")
	require.NoError(t, os.Mkdir(sub, 0o755))
	file := filepath.Join(dir, "a.pdf")
	require.NoError(t, os.WriteFile(file, []byte("%PDF"), 0o644))

	v, err := NewPathValidator(dir)
	require.NoError(t, err)

	assert.NoError(t, v.ValidateDirectory(dir))
	assert.NoError(t, v.ValidateDirectory(sub))
	assert.Error(t, v.ValidateDirectory(file))
	assert.Error(t, v.ValidateDirectory(filepath.Join(dir, "missing")))
	assert.Error(t, v.ValidateDirectory(t.TempDir()))
}
