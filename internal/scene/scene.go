// Package scene builds and owns renderable 3D scenes for model
// previews: a minimal scene graph, a Wavefront OBJ parser, bounding
// volume normalization, and a software wireframe renderer.
package scene

import (
	"errors"
	"image"
	"math"

	"github.com/tannerhall/assetview/internal/debug"
)

// ErrUnsupportedFormat marks a model extension that is classified as a
// model but has no parser. It aborts a single load, never the queue.
var ErrUnsupportedFormat = errors.New("unsupported model format")

// ReferenceSize is the edge length a normalized model's largest
// dimension is scaled to.
const ReferenceSize = 2.0

// CameraDistanceFactor positions the camera relative to the bounding
// sphere radius so the whole model stays framed.
const CameraDistanceFactor = 1.8

// Vec3 is a point or direction in model space.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(f float64) Vec3 {
	return Vec3{v.X * f, v.Y * f, v.Z * f}
}

func (v Vec3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min, Max Vec3
}

func (b Bounds) Center() Vec3 {
	return Vec3{(b.Min.X + b.Max.X) / 2, (b.Min.Y + b.Max.Y) / 2, (b.Min.Z + b.Max.Z) / 2}
}

// MaxDimension returns the largest edge of the box.
func (b Bounds) MaxDimension() float64 {
	d := b.Max.Sub(b.Min)
	return math.Max(d.X, math.Max(d.Y, d.Z))
}

// SphereRadius returns the radius of the bounding sphere around the
// box center.
func (b Bounds) SphereRadius() float64 {
	return b.Max.Sub(b.Center()).Length()
}

// Mesh holds wireframe geometry: vertices and deduplicated edges.
type Mesh struct {
	Vertices []Vec3
	Edges    [][2]int
}

// ComputeBounds returns the axis-aligned bounding box of the mesh.
func (m *Mesh) ComputeBounds() Bounds {
	if len(m.Vertices) == 0 {
		return Bounds{}
	}
	b := Bounds{Min: m.Vertices[0], Max: m.Vertices[0]}
	for _, v := range m.Vertices[1:] {
		b.Min.X = math.Min(b.Min.X, v.X)
		b.Min.Y = math.Min(b.Min.Y, v.Y)
		b.Min.Z = math.Min(b.Min.Z, v.Z)
		b.Max.X = math.Max(b.Max.X, v.X)
		b.Max.Y = math.Max(b.Max.Y, v.Y)
		b.Max.Z = math.Max(b.Max.Z, v.Z)
	}
	return b
}

// Node is one element of the scene graph. Dispose releases its
// geometry and its children recursively.
type Node struct {
	Name     string
	Mesh     *Mesh
	Children []*Node

	disposed bool
}

// Dispose releases the node's resources. It is idempotent and never
// panics; child errors are contained.
func (n *Node) Dispose() {
	if n == nil || n.disposed {
		return
	}
	n.disposed = true
	for _, c := range n.Children {
		c.Dispose()
	}
	n.Children = nil
	if n.Mesh != nil {
		n.Mesh.Vertices = nil
		n.Mesh.Edges = nil
		n.Mesh = nil
	}
	debug.Log(debug.SCENE, "Node %q disposed", n.Name)
}

// Disposed reports whether Dispose has run.
func (n *Node) Disposed() bool { return n.disposed }

// Camera frames the normalized model from a fixed relative offset.
type Camera struct {
	Distance float64 // Along +Z after the fixed tilt
	Pitch    float64 // Downward tilt in radians
	FOV      float64 // Vertical field of view in radians
}

// Scene owns a parsed, normalized model ready for turntable rendering.
type Scene struct {
	Root    *Node
	Camera  Camera
	Texture image.Image // Optional colormap, nil renders untextured
	Radius  float64     // Bounding sphere radius after normalization
}

// Dispose tears the scene down: recursive node disposal plus dropping
// the texture reference. Idempotent.
func (s *Scene) Dispose() {
	if s == nil {
		return
	}
	s.Root.Dispose()
	s.Texture = nil
}

// Normalize recenters the mesh at the origin and scales it so its
// largest dimension equals ReferenceSize, then derives the camera
// offset from the bounding sphere.
func (s *Scene) Normalize() {
	mesh := s.Root.Mesh
	if mesh == nil || len(mesh.Vertices) == 0 {
		return
	}

	b := mesh.ComputeBounds()
	center := b.Center()
	maxDim := b.MaxDimension()
	scale := 1.0
	if maxDim > 0 {
		scale = ReferenceSize / maxDim
	}

	for i, v := range mesh.Vertices {
		mesh.Vertices[i] = v.Sub(center).Scale(scale)
	}

	s.Radius = mesh.ComputeBounds().SphereRadius()
	s.Camera = Camera{
		Distance: CameraDistanceFactor * s.Radius / math.Tan(defaultFOV/2),
		Pitch:    0.35,
		FOV:      defaultFOV,
	}
}

const defaultFOV = math.Pi / 4
