package thumb

import (
	"bytes"
	"image"
	"image/draw"
	"image/png"
	"os"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/tannerhall/assetview/internal/asset"
	"github.com/tannerhall/assetview/internal/debug"
	"github.com/tannerhall/assetview/internal/texture"
)

// generate renders thumbnail bytes for path at the given pixel size.
// It never fails: any read or decode problem degrades to a synthetic
// icon so one bad file cannot break a listing.
func generate(path string, typ asset.Type, size int) []byte {
	ext := asset.Ext(path)

	switch typ {
	case asset.Image:
		if ext == "svg" {
			// Vector images pass through unmodified.
			data, err := os.ReadFile(path)
			if err == nil {
				return data
			}
			debug.Log(debug.THUMB, "generate: svg read failed for %q: %v", path, err)
			return encodePNG(panelIcon(size, string(asset.Image), ext))
		}
		img, err := decodeImage(path)
		if err != nil {
			debug.Log(debug.THUMB, "generate: decode failed for %q: %v", path, err)
			return encodePNG(panelIcon(size, string(asset.Image), ext))
		}
		return encodePNG(letterbox(img, size))

	case asset.Model:
		return modelThumb(path, ext, size)

	case asset.Folder:
		return encodePNG(panelIcon(size, string(asset.Folder), ""))

	default:
		return encodePNG(panelIcon(size, string(typ), ext))
	}
}

// modelThumb builds a model preview from its resolved colormap: the
// texture letterboxed into the target box with a radial shade and the
// "3D" badge on top. Without a resolvable texture (or when decoding
// fails) it falls back to the stylized cube icon.
func modelThumb(path, ext string, size int) []byte {
	texPath, ok := texture.Resolve(path)
	if !ok {
		debug.Log(debug.THUMB, "modelThumb: no texture for %q, using cube icon", path)
		return encodePNG(cubeIcon(size, ext))
	}

	img, err := decodeImage(texPath)
	if err != nil {
		debug.Log(debug.THUMB, "modelThumb: texture decode failed for %q: %v", texPath, err)
		return encodePNG(cubeIcon(size, ext))
	}

	composite := letterbox(img, size)
	drawVignette(composite)
	drawBadge(composite)
	return encodePNG(composite)
}

// decodeImage opens and decodes any registered raster format.
func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}

// letterbox scales src down to fit within a size x size box preserving
// aspect ratio, centered on a transparent background.
func letterbox(src image.Image, size int) *image.RGBA {
	thumb := resize.Thumbnail(uint(size), uint(size), src, resize.Lanczos3)

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	tb := thumb.Bounds()
	offset := image.Pt((size-tb.Dx())/2, (size-tb.Dy())/2)
	draw.Draw(dst, tb.Add(offset), thumb, tb.Min, draw.Over)
	return dst
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		// Encoding an in-memory RGBA image only fails on a broken
		// writer; return a 1x1 transparent pixel rather than nil.
		debug.Log(debug.THUMB, "encodePNG: %v", err)
		var tiny bytes.Buffer
		_ = png.Encode(&tiny, image.NewRGBA(image.Rect(0, 0, 1, 1)))
		return tiny.Bytes()
	}
	return buf.Bytes()
}

// ContentType reports the MIME type of generated thumbnail bytes:
// everything is PNG except SVG passthrough.
func ContentType(data []byte) string {
	if len(data) >= 4 && data[0] == 0x89 && data[1] == 'P' && data[2] == 'N' && data[3] == 'G' {
		return "image/png"
	}
	return "image/svg+xml"
}
