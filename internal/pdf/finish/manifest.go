package finish

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
)

// Manifest lists the fields to burn into a document. It is read from YAML;
// JSON manifests parse the same way.
type Manifest struct {
	ReferenceWidth float64         `yaml:"reference_width,omitempty" json:"reference_width,omitempty"`
	DateLayout     string          `yaml:"date_layout,omitempty" json:"date_layout,omitempty"`
	Fields         []ManifestField `yaml:"fields" json:"fields"`
}

// ManifestField is one field entry. Value is a data URL or an image file
// path for image kinds, the text for text kinds and a boolean for
// checkboxes.
type ManifestField struct {
	ID       string   `yaml:"id,omitempty" json:"id,omitempty"`
	Kind     string   `yaml:"kind" json:"kind"`
	Page     int      `yaml:"page" json:"page"`
	X        float64  `yaml:"x" json:"x"`
	Y        float64  `yaml:"y" json:"y"`
	Width    *float64 `yaml:"width,omitempty" json:"width,omitempty"`
	Height   *float64 `yaml:"height,omitempty" json:"height,omitempty"`
	Value    string   `yaml:"value,omitempty" json:"value,omitempty"`
	FontSize float64  `yaml:"font_size,omitempty" json:"font_size,omitempty"`
}

// ParseManifest parses a YAML or JSON manifest
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if len(m.Fields) == 0 {
		return nil, fmt.Errorf("manifest has no fields")
	}
	return &m, nil
}

// LoadManifest reads and parses a manifest file
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifest(data)
}

// Items converts the manifest into finishing items. Relative image paths
// are resolved against baseDir. Fields without an ID get a random one.
func (m *Manifest) Items(baseDir string) ([]Item, error) {
	items := make([]Item, 0, len(m.Fields))

	for i, mf := range m.Fields {
		kind, err := geometry.ParseKind(mf.Kind)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i+1, err)
		}

		id := mf.ID
		if id == "" {
			id = uuid.NewString()
		}

		field := geometry.Field{
			ID:         id,
			Kind:       kind,
			PageNumber: mf.Page,
			Position:   geometry.Position{XPct: mf.X, YPct: mf.Y},
			Size:       geometry.Size{WidthPct: mf.Width, HeightPct: mf.Height},
		}
		if err := field.Validate(); err != nil {
			return nil, fmt.Errorf("field %d: %w", i+1, err)
		}

		value, err := resolveValue(kind, mf, baseDir)
		if err != nil {
			return nil, fmt.Errorf("field %d (%s): %w", i+1, id, err)
		}

		items = append(items, Item{Field: field, Value: value})
	}

	return items, nil
}

func resolveValue(kind geometry.Kind, mf ManifestField, baseDir string) (Value, error) {
	v := Value{FontSize: mf.FontSize}

	switch {
	case kind.IsImage():
		img, err := imageValue(mf.Value, baseDir)
		if err != nil {
			return v, err
		}
		v.Image = img
	case kind == geometry.KindCheckbox:
		v.Checked = ParseChecked(mf.Value)
	default:
		v.Text = mf.Value
	}
	return v, nil
}

// ParseChecked reads a checkbox value. Empty, "false", "no", "off" and "0"
// leave the box unchecked; anything else checks it.
func ParseChecked(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "false", "no", "off", "0":
		return false
	}
	return true
}

// imageValue passes data URLs through and inlines image files as base64.
// The image format is detected from the file header when drawn.
func imageValue(value, baseDir string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.HasPrefix(value, "data:") {
		return value, nil
	}

	path := value
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
