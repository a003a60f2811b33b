package scene

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tannerhall/assetview/internal/debug"
)

// Build parses the model file at path into a normalized scene. Only
// OBJ has a native parser; other model extensions return
// ErrUnsupportedFormat.
func Build(path string) (*Scene, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))

	switch ext {
	case "obj":
	default:
		return nil, fmt.Errorf("%w: .%s", ErrUnsupportedFormat, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mesh, err := ParseOBJ(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	s := &Scene{
		Root: &Node{
			Name: filepath.Base(path),
			Mesh: mesh,
		},
	}
	s.Normalize()

	debug.Log(debug.SCENE, "Build: %s vertices=%d edges=%d radius=%.3f",
		filepath.Base(path), len(mesh.Vertices), len(mesh.Edges), s.Radius)
	return s, nil
}
