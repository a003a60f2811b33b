package scene

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

var (
	frameBackground = color.RGBA{0x16, 0x16, 0x1e, 0xff}
	wireColor       = color.RGBA{0x7a, 0xc4, 0xff, 0xff}
)

// RenderFrame rasterizes one turntable frame: the scene's wireframe
// rotated by angle radians about the Y axis, tilted by the camera
// pitch and perspective-projected onto a size x size image. When the
// scene carries a texture its average color tints the wireframe.
func RenderFrame(s *Scene, angle float64, size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(frameBackground), image.Point{}, draw.Src)

	if s == nil || s.Root == nil || s.Root.Mesh == nil {
		return img
	}
	mesh := s.Root.Mesh

	line := wireColor
	if s.Texture != nil {
		line = averageColor(s.Texture)
	}

	sinA, cosA := math.Sincos(angle)
	sinP, cosP := math.Sincos(s.Camera.Pitch)
	dist := s.Camera.Distance
	if dist <= 0 {
		dist = CameraDistanceFactor * ReferenceSize
	}
	focal := float64(size) / (2 * math.Tan(s.Camera.FOV/2))
	if s.Camera.FOV == 0 {
		focal = float64(size)
	}

	half := float64(size) / 2
	project := func(v Vec3) (image.Point, bool) {
		// Turntable spin about Y.
		x := v.X*cosA + v.Z*sinA
		z := -v.X*sinA + v.Z*cosA
		y := v.Y
		// Fixed camera tilt about X.
		y2 := y*cosP - z*sinP
		z2 := y*sinP + z*cosP
		// Camera sits at +dist on Z looking at the origin.
		depth := dist - z2
		if depth <= 0.01 {
			return image.Point{}, false
		}
		px := half + focal*x/depth
		py := half - focal*y2/depth
		return image.Pt(int(px+0.5), int(py+0.5)), true
	}

	for _, e := range mesh.Edges {
		a, aok := project(mesh.Vertices[e[0]])
		b, bok := project(mesh.Vertices[e[1]])
		if !aok || !bok {
			continue
		}
		drawLine(img, a, b, line)
	}

	// Lone point clouds (no faces) still show as dots.
	if len(mesh.Edges) == 0 {
		for _, v := range mesh.Vertices {
			if p, ok := project(v); ok {
				img.SetRGBA(p.X, p.Y, line)
			}
		}
	}

	return img
}

// drawLine rasterizes a clipped Bresenham segment.
func drawLine(img *image.RGBA, a, b image.Point, c color.RGBA) {
	bounds := img.Bounds()
	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	err := dx + dy

	x, y := a.X, a.Y
	for {
		if image.Pt(x, y).In(bounds) {
			img.SetRGBA(x, y, c)
		}
		if x == b.X && y == b.Y {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// averageColor samples the texture on a coarse grid.
func averageColor(img image.Image) color.RGBA {
	b := img.Bounds()
	if b.Empty() {
		return wireColor
	}
	step := b.Dx() / 16
	if step < 1 {
		step = 1
	}
	var r, g, bl, n uint64
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			r += uint64(cr >> 8)
			g += uint64(cg >> 8)
			bl += uint64(cb >> 8)
			n++
		}
	}
	if n == 0 {
		return wireColor
	}
	return color.RGBA{uint8(r / n), uint8(g / n), uint8(bl / n), 0xff}
}
