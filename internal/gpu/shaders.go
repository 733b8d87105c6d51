package gpu

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
)

// Embedded WGSL shader sources.

//go:embed shaders/gaussian_blur.wgsl
var gaussianBlurTemplate string

// GaussianBlurTemplate returns the built-in blur kernel template.
func GaussianBlurTemplate() string {
	return gaussianBlurTemplate
}

// LoadTemplate reads a kernel template from path. An empty path returns
// the built-in template.
func LoadTemplate(path string) (string, error) {
	if path == "" {
		return gaussianBlurTemplate, nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("gpu: read kernel template: %w", err)
	}
	return string(data), nil
}
