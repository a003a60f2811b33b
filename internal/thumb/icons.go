package thumb

import (
	"image"
	"image/color"
	"image/draw"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// extColors keys the synthetic model-cube icon color on file extension
// so different formats are distinguishable at a glance.
var extColors = map[string]color.RGBA{
	"obj":   {0x4c, 0x8b, 0xf5, 0xff}, // blue
	"fbx":   {0xf5, 0x8b, 0x4c, 0xff}, // orange
	"gltf":  {0x4c, 0xf5, 0x9a, 0xff}, // green
	"glb":   {0x3d, 0xc9, 0x7e, 0xff},
	"stl":   {0xb0, 0x6c, 0xd9, 0xff}, // purple
	"dae":   {0xd9, 0xc4, 0x4c, 0xff}, // yellow
	"3ds":   {0xd9, 0x4c, 0x6a, 0xff}, // red
	"blend": {0xe8, 0x7d, 0x1e, 0xff},
	"ply":   {0x5c, 0xc8, 0xd9, 0xff}, // teal
}

// panelColors keys the flat type panels on asset type label.
var panelColors = map[string]color.RGBA{
	"audio":    {0x8e, 0x44, 0xad, 0xff},
	"video":    {0x27, 0x63, 0x8e, 0xff},
	"document": {0x5d, 0x6d, 0x7e, 0xff},
	"font":     {0x76, 0x5c, 0x3a, 0xff},
	"image":    {0x3a, 0x76, 0x5c, 0xff},
	"folder":   {0x92, 0x7b, 0x3c, 0xff},
	"unknown":  {0x55, 0x55, 0x55, 0xff},
}

func colorForExt(ext string) color.RGBA {
	if c, ok := extColors[ext]; ok {
		return c
	}
	return color.RGBA{0x6b, 0x6b, 0x7b, 0xff}
}

func colorForLabel(label string) color.RGBA {
	if c, ok := panelColors[label]; ok {
		return c
	}
	return panelColors["unknown"]
}

// shade scales a color's channels by f (0..1), keeping alpha.
func shade(c color.RGBA, f float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c.R) * f),
		G: uint8(float64(c.G) * f),
		B: uint8(float64(c.B) * f),
		A: c.A,
	}
}

// fillTriangle rasterizes a filled triangle with a bounding-box
// half-plane test. Good enough for icon-sized geometry.
func fillTriangle(dst *image.RGBA, p0, p1, p2 image.Point, c color.RGBA) {
	minX := min3(p0.X, p1.X, p2.X)
	maxX := max3(p0.X, p1.X, p2.X)
	minY := min3(p0.Y, p1.Y, p2.Y)
	maxY := max3(p0.Y, p1.Y, p2.Y)

	edge := func(a, b, p image.Point) int {
		return (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
	}
	area := edge(p0, p1, p2)
	if area == 0 {
		return
	}

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			p := image.Pt(x, y)
			w0 := edge(p0, p1, p)
			w1 := edge(p1, p2, p)
			w2 := edge(p2, p0, p)
			if area > 0 {
				if w0 >= 0 && w1 >= 0 && w2 >= 0 {
					dst.SetRGBA(x, y, c)
				}
			} else {
				if w0 <= 0 && w1 <= 0 && w2 <= 0 {
					dst.SetRGBA(x, y, c)
				}
			}
		}
	}
}

func fillQuad(dst *image.RGBA, p0, p1, p2, p3 image.Point, c color.RGBA) {
	fillTriangle(dst, p0, p1, p2, c)
	fillTriangle(dst, p0, p2, p3, c)
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func max3(a, b, c int) int {
	if b > a {
		a = b
	}
	if c > a {
		a = c
	}
	return a
}

// drawLabel renders text centered horizontally at baseline y.
func drawLabel(dst *image.RGBA, text string, y int, c color.RGBA) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P((dst.Bounds().Dx()-width)/2, y),
	}
	d.DrawString(text)
}

// drawBadge composites a filled circular "3D" marker into the lower
// right corner of dst.
func drawBadge(dst *image.RGBA) {
	size := dst.Bounds().Dx()
	r := size / 8
	if r < 9 {
		r = 9
	}
	cx := dst.Bounds().Max.X - r - 2
	cy := dst.Bounds().Max.Y - r - 2

	badge := color.RGBA{0x20, 0x20, 0x28, 0xe6}
	for y := -r; y <= r; y++ {
		for x := -r; x <= r; x++ {
			if x*x+y*y <= r*r {
				dst.SetRGBA(cx+x, cy+y, badge)
			}
		}
	}

	face := basicfont.Face7x13
	width := font.MeasureString(face, "3D").Ceil()
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.RGBA{0xff, 0xff, 0xff, 0xff}),
		Face: face,
		Dot:  fixed.P(cx-width/2, cy+4),
	}
	d.DrawString("3D")
}

// drawVignette multiplies a subtle radial darkening over dst so model
// composites read as previews rather than raw textures.
func drawVignette(dst *image.RGBA) {
	b := dst.Bounds()
	cx := float64(b.Dx()) / 2
	cy := float64(b.Dy()) / 2
	maxD := cx*cx + cy*cy

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dx := float64(x) - cx
			dy := float64(y) - cy
			// Up to 35% darkening at the corners.
			f := 1.0 - 0.35*(dx*dx+dy*dy)/maxD
			c := dst.RGBAAt(x, y)
			if c.A == 0 {
				continue
			}
			dst.SetRGBA(x, y, color.RGBA{
				R: uint8(float64(c.R) * f),
				G: uint8(float64(c.G) * f),
				B: uint8(float64(c.B) * f),
				A: c.A,
			})
		}
	}
}

// cubeIcon draws the stylized 3D-cube fallback for model files: an
// isometric cube colored by extension, the extension text beneath it,
// and the "3D" badge.
func cubeIcon(size int, ext string) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))

	bg := color.RGBA{0x1e, 0x1e, 0x26, 0xff}
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	base := colorForExt(ext)
	cx := size / 2
	cy := size*4/10 + 1
	h := size / 4 // Half-width of the cube silhouette

	top := image.Pt(cx, cy-h)
	right := image.Pt(cx+h, cy-h/2)
	left := image.Pt(cx-h, cy-h/2)
	bottom := image.Pt(cx, cy)
	lowLeft := image.Pt(cx-h, cy+h/2)
	lowRight := image.Pt(cx+h, cy+h/2)
	lowBottom := image.Pt(cx, cy+h)

	// Top face lightest, left face mid, right face darkest.
	fillQuad(img, top, right, bottom, left, shade(base, 1.0))
	fillQuad(img, left, bottom, lowBottom, lowLeft, shade(base, 0.72))
	fillQuad(img, bottom, right, lowRight, lowBottom, shade(base, 0.5))

	if ext != "" {
		drawLabel(img, strings.ToUpper(ext), size*3/4+4, color.RGBA{0xee, 0xee, 0xf2, 0xff})
	}
	drawBadge(img)

	return img
}

// panelIcon draws the flat fallback panel used for non-model,
// non-image assets: a colored tile with the type label.
func panelIcon(size int, label, ext string) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))

	base := colorForLabel(label)
	inset := size / 12
	panel := image.Rect(inset, inset, size-inset, size-inset)
	draw.Draw(img, panel, image.NewUniform(base), image.Point{}, draw.Src)

	// Header strip for contrast.
	header := image.Rect(inset, inset, size-inset, inset+size/5)
	draw.Draw(img, header, image.NewUniform(shade(base, 0.65)), image.Point{}, draw.Src)

	drawLabel(img, strings.ToUpper(label), size/2+2, color.RGBA{0xff, 0xff, 0xff, 0xff})
	if ext != "" {
		drawLabel(img, "."+ext, size/2+18, color.RGBA{0xd8, 0xd8, 0xd8, 0xff})
	}

	return img
}
