package thumb

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tannerhall/assetview/internal/asset"
)

// writePNG writes a solid-color PNG of the given dimensions.
func writePNG(t *testing.T, path string, w, h int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode generated png: %v", err)
	}
	return img
}

func TestThumbnail_DimensionsAndLetterbox(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "wide.png")
	writePNG(t, src, 100, 50, color.RGBA{200, 10, 10, 255})

	svc := NewService(10)
	data, err := svc.Thumbnail(src, 64)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}

	img := decodePNG(t, data)
	b := img.Bounds()
	if b.Dx() != 64 || b.Dy() != 64 {
		t.Fatalf("expected 64x64 output, got %dx%d", b.Dx(), b.Dy())
	}

	// Wide source letterboxed: transparent rows above and below.
	if _, _, _, a := img.At(32, 2).RGBA(); a != 0 {
		t.Error("expected transparent letterbox at top")
	}
	if _, _, _, a := img.At(32, 32).RGBA(); a == 0 {
		t.Error("expected opaque content at center")
	}
}

func TestThumbnail_CacheHitSkipsGeneration(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.png")
	writePNG(t, src, 32, 32, color.RGBA{10, 200, 10, 255})

	svc := NewService(10)
	var calls int64
	svc.genFn = func(path string, typ asset.Type, size int) []byte {
		atomic.AddInt64(&calls, 1)
		return generate(path, typ, size)
	}

	first, err := svc.Thumbnail(src, 48)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	second, err := svc.Thumbnail(src, 48)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}

	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Errorf("expected 1 generation call, got %d", got)
	}
	if !bytes.Equal(first, second) {
		t.Error("expected byte-identical output on cache hit")
	}
}

func TestThumbnail_InvalidatedByModTime(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.png")
	writePNG(t, src, 32, 32, color.RGBA{10, 200, 10, 255})

	svc := NewService(10)
	var calls int64
	svc.genFn = func(path string, typ asset.Type, size int) []byte {
		atomic.AddInt64(&calls, 1)
		return generate(path, typ, size)
	}

	if _, err := svc.Thumbnail(src, 48); err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}

	// Rewrite the file and force a distinct mtime.
	writePNG(t, src, 32, 32, color.RGBA{10, 10, 200, 255})
	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(src, later, later); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if _, err := svc.Thumbnail(src, 48); err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}

	if got := atomic.LoadInt64(&calls); got != 2 {
		t.Errorf("expected regeneration after mtime change, got %d calls", got)
	}
}

func TestThumbnail_MissingFile(t *testing.T) {
	svc := NewService(10)
	if _, err := svc.Thumbnail(filepath.Join(t.TempDir(), "nope.png"), 48); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestThumbnail_CorruptImageFallsBack(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "broken.png")
	if err := os.WriteFile(src, []byte("not a png"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	svc := NewService(10)
	data, err := svc.Thumbnail(src, 48)
	if err != nil {
		t.Fatalf("Thumbnail should not fail for corrupt file: %v", err)
	}
	img := decodePNG(t, data)
	if img.Bounds().Dx() != 48 {
		t.Errorf("fallback icon: expected width 48, got %d", img.Bounds().Dx())
	}
}

func TestThumbnail_SVGPassthrough(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "icon.svg")
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg"/>`)
	if err := os.WriteFile(src, svg, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	svc := NewService(10)
	data, err := svc.Thumbnail(src, 48)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	if !bytes.Equal(data, svg) {
		t.Error("expected svg bytes passed through unmodified")
	}
	if ct := ContentType(data); ct != "image/svg+xml" {
		t.Errorf("expected svg content type, got %s", ct)
	}
}

func TestThumbnail_ModelCompositeUsesTexture(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "crate.obj")
	if err := os.WriteFile(model, []byte("v 0 0 0\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	writePNG(t, filepath.Join(dir, "crate.png"), 64, 64, color.RGBA{250, 250, 250, 255})

	svc := NewService(10)
	data, err := svc.Thumbnail(model, 64)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	img := decodePNG(t, data)
	if img.Bounds().Dx() != 64 {
		t.Fatalf("expected 64px composite, got %d", img.Bounds().Dx())
	}

	// The badge disc occupies the lower-right corner and is darker than
	// the near-white texture. Individual pixels there may land on the
	// white "3D" glyph, so scan the disc for any dark fill pixel.
	foundDark := false
	for y := 46; y < 62 && !foundDark; y++ {
		for x := 46; x < 62; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if r>>8 < 120 && g>>8 < 120 && b>>8 < 120 {
				foundDark = true
				break
			}
		}
	}
	if !foundDark {
		t.Error("expected dark 3D badge over texture in lower-right corner")
	}
}

func TestThumbnail_ModelWithoutTextureGetsCubeIcon(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "bare.obj")
	if err := os.WriteFile(model, []byte("v 0 0 0\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	svc := NewService(10)
	data, err := svc.Thumbnail(model, 64)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	decodePNG(t, data) // Must still be a valid raster
}

func TestFolderPreview_PrefersModel(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "aaa.png"), 32, 32, color.RGBA{1, 2, 3, 255})
	if err := os.WriteFile(filepath.Join(dir, "zzz.obj"), []byte("v 0 0 0\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	svc := NewService(10)
	var gotPath string
	svc.genFn = func(path string, typ asset.Type, size int) []byte {
		gotPath = path
		return generate(path, typ, size)
	}

	if _, err := svc.FolderPreview(dir, 48); err != nil {
		t.Fatalf("FolderPreview: %v", err)
	}
	if filepath.Base(gotPath) != "zzz.obj" {
		t.Errorf("expected model preferred for folder preview, generated from %s", gotPath)
	}
}

func TestFolderPreview_EmptyFolderPanel(t *testing.T) {
	dir := t.TempDir()

	svc := NewService(10)
	data, err := svc.FolderPreview(dir, 48)
	if err != nil {
		t.Fatalf("FolderPreview: %v", err)
	}
	decodePNG(t, data)
}

func TestCache_BoundAndFIFOOrder(t *testing.T) {
	c := NewCache(100)

	key := func(i int) Key {
		return Key{Path: fmt.Sprintf("/x/%d.png", i), Size: 64, ModTime: int64(i)}
	}

	for i := 0; i < 150; i++ {
		c.Put(key(i), []byte{byte(i)})
	}

	if c.Len() != 100 {
		t.Fatalf("expected exactly 100 resident entries, got %d", c.Len())
	}

	// The 50 oldest-inserted keys must be gone, the rest resident.
	for i := 0; i < 50; i++ {
		if _, ok := c.Get(key(i)); ok {
			t.Errorf("key %d should have been evicted", i)
		}
	}
	for i := 50; i < 150; i++ {
		if _, ok := c.Get(key(i)); !ok {
			t.Errorf("key %d should be resident", i)
		}
	}
}

func TestCache_AccessDoesNotRefreshPosition(t *testing.T) {
	c := NewCache(2)

	a := Key{Path: "/a", Size: 1}
	b := Key{Path: "/b", Size: 1}
	d := Key{Path: "/d", Size: 1}

	c.Put(a, []byte("a"))
	c.Put(b, []byte("b"))

	// Touch the oldest entry; FIFO eviction must still drop it first.
	if _, ok := c.Get(a); !ok {
		t.Fatal("expected /a resident")
	}
	c.Put(d, []byte("d"))

	if _, ok := c.Get(a); ok {
		t.Error("insertion-order eviction should have dropped /a despite recent access")
	}
	if _, ok := c.Get(b); !ok {
		t.Error("expected /b resident")
	}
}
