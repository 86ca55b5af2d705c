// Package security confines file access to the configured PDF directory.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator keeps input and output paths inside the configured directory
type PathValidator struct {
	configuredDirectory string
}

// NewPathValidator creates a validator rooted at configuredDirectory. The
// directory does not have to exist yet.
func NewPathValidator(configuredDirectory string) (*PathValidator, error) {
	if configuredDirectory == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}
	return &PathValidator{configuredDirectory: configuredDirectory}, nil
}

// GetConfiguredDirectory returns the directory paths are confined to
func (v *PathValidator) GetConfiguredDirectory() string {
	return v.configuredDirectory
}

// ValidatePath checks that path is inside the configured directory
func (v *PathValidator) ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("path contains a null byte")
	}

	within, err := v.IsPathWithinDirectory(path)
	if err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}
	if !within {
		return fmt.Errorf("path is outside configured directory: %s", path)
	}
	return nil
}

// ValidateDirectory checks that dir is an existing directory inside the
// configured directory
func (v *PathValidator) ValidateDirectory(dir string) error {
	if err := v.ValidatePath(dir); err != nil {
		return err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot access directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", dir)
	}
	return nil
}

// IsPathWithinDirectory reports whether path, with symlinks resolved, lies
// inside the configured directory. While the directory does not exist every
// path is accepted.
func (v *PathValidator) IsPathWithinDirectory(path string) (bool, error) {
	if _, err := os.Stat(v.configuredDirectory); os.IsNotExist(err) {
		return true, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path: %w", err)
	}
	absDir, err := filepath.Abs(v.configuredDirectory)
	if err != nil {
		return false, fmt.Errorf("failed to resolve configured directory: %w", err)
	}

	dirs := []string{filepath.Clean(absDir)}
	if real, err := filepath.EvalSymlinks(absDir); err == nil && real != dirs[0] {
		dirs = append(dirs, real)
	}

	candidates := []string{filepath.Clean(absPath)}
	if real, err := resolveExisting(absPath); err == nil && real != candidates[0] {
		candidates = append(candidates, real)
	}

	for _, c := range candidates {
		if !withinAny(c, dirs) {
			return false, nil
		}
	}
	return true, nil
}

// NormalizePath resolves a path relative to the configured directory and
// validates it.
func (v *PathValidator) NormalizePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	path = strings.ReplaceAll(path, "\x00", "")

	if !filepath.IsAbs(path) {
		path = filepath.Join(v.configuredDirectory, path)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	if err := v.ValidatePath(absPath); err != nil {
		return "", err
	}
	return absPath, nil
}

// ValidateOutputPath checks a path a finished document will be written to.
// The file may not exist yet; it must not be a directory.
func (v *PathValidator) ValidateOutputPath(path string) (string, error) {
	absPath, err := v.NormalizePath(path)
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(filepath.Ext(absPath), ".pdf") {
		return "", fmt.Errorf("output path must end in .pdf: %s", path)
	}
	if info, err := os.Stat(absPath); err == nil && info.IsDir() {
		return "", fmt.Errorf("output path is a directory: %s", path)
	}
	return absPath, nil
}

// resolveExisting evaluates symlinks of the longest existing prefix of path
// and re-attaches the missing tail.
func resolveExisting(path string) (string, error) {
	path = filepath.Clean(path)
	tail := ""
	for {
		if real, err := filepath.EvalSymlinks(path); err == nil {
			return filepath.Join(real, tail), nil
		}
		parent := filepath.Dir(path)
		if parent == path {
			return "", fmt.Errorf("no existing prefix for %s", path)
		}
		tail = filepath.Join(filepath.Base(path), tail)
		path = parent
	}
}

func withinAny(path string, dirs []string) bool {
	for _, d := range dirs {
		if path == d || strings.HasPrefix(path, d+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
