// Package texture resolves a representative colormap image for a 3D
// model file. Resolution is a best-effort heuristic: exact-name matches
// beat keyword matches beat a first-image fallback.
package texture

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/tannerhall/assetview/internal/debug"
)

// textureDirNames are the canonical texture subdirectory names probed
// under the model's directory and its parent, in priority order.
var textureDirNames = []string{
	"Textures", "textures",
	"Materials", "materials",
	"Maps", "maps",
	"Images", "images",
}

// nameSuffixes are appended to the model's base name when probing for
// name-derived texture files.
var nameSuffixes = []string{
	"", "_diffuse", "_albedo", "_color", "_colormap", "_texture", "_map",
}

// genericNames are probed after the model-name variants.
var genericNames = []string{
	"diffuse", "albedo", "color", "texture", "base", "material", "map",
}

// imageExts are the texture formats considered, in probe order.
var imageExts = []string{"png", "jpg", "jpeg", "tga", "bmp"}

// Resolve finds the best candidate colormap texture for modelPath.
// Candidate directories are probed in priority order, first for exact
// filename matches derived from the model name, then by scoring every
// image file present. Returns false if no directory yields an image.
func Resolve(modelPath string) (string, bool) {
	dirs := candidateDirs(modelPath)
	base := strings.TrimSuffix(filepath.Base(modelPath), filepath.Ext(modelPath))

	debug.Log(debug.TEXTURE, "Resolve: model=%q base=%q dirs=%d", modelPath, base, len(dirs))

	// Phase one: exact filename probes, all directories in order.
	for _, dir := range dirs {
		if path, ok := probeNames(dir, base); ok {
			debug.Log(debug.TEXTURE, "Resolve: name match %q", path)
			return path, true
		}
	}

	// Phase two: score every image in each directory; within a
	// directory a positive top score wins, otherwise the first image
	// found serves as a last resort.
	for _, dir := range dirs {
		if path, ok := scanAndScore(dir, base); ok {
			debug.Log(debug.TEXTURE, "Resolve: scored match %q", path)
			return path, true
		}
	}

	debug.Log(debug.TEXTURE, "Resolve: no texture for %q", modelPath)
	return "", false
}

// candidateDirs orders the directories to search: the model's own
// directory, texture subdirectories beneath it, the parent directory,
// and texture subdirectories beneath the parent. Duplicates (e.g. at
// filesystem root) are dropped while preserving order.
func candidateDirs(modelPath string) []string {
	modelDir := filepath.Dir(modelPath)
	parent := filepath.Dir(modelDir)

	var dirs []string
	dirs = append(dirs, modelDir)
	for _, name := range textureDirNames {
		dirs = append(dirs, filepath.Join(modelDir, name))
	}
	dirs = append(dirs, parent)
	for _, name := range textureDirNames {
		dirs = append(dirs, filepath.Join(parent, name))
	}

	seen := make(map[string]bool, len(dirs))
	out := dirs[:0]
	for _, d := range dirs {
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

// probeNames stats candidate filenames inside dir: model-name variants
// with common suffixes first, then generic names, each across case
// variants and known image extensions. First hit wins.
func probeNames(dir, base string) (string, bool) {
	stems := make([]string, 0, 2*len(nameSuffixes)+2*len(genericNames))
	lower := strings.ToLower(base)
	for _, suffix := range nameSuffixes {
		stems = append(stems, base+suffix)
		if lower != base {
			stems = append(stems, lower+suffix)
		}
	}
	for _, name := range genericNames {
		stems = append(stems, name, strings.ToUpper(name[:1])+name[1:])
	}

	for _, stem := range stems {
		for _, ext := range imageExts {
			candidate := filepath.Join(dir, stem+"."+ext)
			if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
				return candidate, true
			}
		}
	}
	return "", false
}

// scanAndScore reads dir and scores every image file. A directory read
// error is treated as "no candidates here" so resolution can continue.
func scanAndScore(dir, base string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		debug.Log(debug.TEXTURE_SCAN, "scanAndScore: skipping %q: %v", dir, err)
		return "", false
	}

	bestPath := ""
	bestScore := 0
	firstImage := ""

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !isImageName(name) {
			continue
		}
		full := filepath.Join(dir, name)
		if firstImage == "" {
			firstImage = full
		}
		s := Score(name, base)
		debug.Log(debug.TEXTURE_SCAN, "scanAndScore: %q -> %d", name, s)
		if s > bestScore {
			bestScore = s
			bestPath = full
		}
	}

	if bestScore > 0 {
		return bestPath, true
	}
	if firstImage != "" {
		return firstImage, true
	}
	return "", false
}

func isImageName(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	for _, e := range imageExts {
		if ext == e {
			return true
		}
	}
	return false
}
