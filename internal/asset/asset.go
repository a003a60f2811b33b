// Package asset classifies files into semantic asset types and lists
// directories as asset records.
package asset

import (
	"path/filepath"
	"strings"
	"time"
)

// Type is the semantic category of a file, derived from its extension.
type Type string

const (
	Image    Type = "image"
	Model    Type = "model"
	Audio    Type = "audio"
	Video    Type = "video"
	Document Type = "document"
	Font     Type = "font"
	Folder   Type = "folder"
	Unknown  Type = "unknown"
)

// extTypes maps lowercase file extensions (without the dot) to asset types.
var extTypes = map[string]Type{
	// Images
	"png": Image, "jpg": Image, "jpeg": Image, "gif": Image,
	"bmp": Image, "tga": Image, "tif": Image, "tiff": Image,
	"webp": Image, "svg": Image, "ico": Image, "dds": Image,

	// 3D models
	"obj": Model, "fbx": Model, "gltf": Model, "glb": Model,
	"stl": Model, "dae": Model, "3ds": Model, "blend": Model,
	"ply": Model,

	// Audio
	"mp3": Audio, "wav": Audio, "ogg": Audio, "flac": Audio,
	"m4a": Audio, "aac": Audio,

	// Video
	"mp4": Video, "webm": Video, "mov": Video, "avi": Video,
	"mkv": Video, "ogv": Video,

	// Documents
	"txt": Document, "md": Document, "json": Document, "xml": Document,
	"yaml": Document, "yml": Document, "toml": Document, "csv": Document,
	"pdf": Document, "ini": Document, "cfg": Document, "log": Document,

	// Fonts
	"ttf": Font, "otf": Font, "woff": Font, "woff2": Font,
}

// Classify maps a file path to its asset type. Directories are the
// caller's concern; paths without a recognized extension are Unknown.
func Classify(path string) Type {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if t, ok := extTypes[ext]; ok {
		return t
	}
	return Unknown
}

// Ext returns the lowercase extension of path without the leading dot.
func Ext(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Record describes one filesystem entry, read fresh on every listing.
type Record struct {
	Name    string
	Path    string
	IsDir   bool
	Type    Type
	Size    int64
	ModTime time.Time
	Ext     string
}
