package scene

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseOBJ reads a Wavefront OBJ stream into a wireframe mesh.
// Vertex positions and face edges are kept; normals, texture
// coordinates, groups and materials are skipped. Polygon faces are
// accepted (each consecutive vertex pair contributes an edge) and
// negative indices resolve relative to the vertices seen so far.
func ParseOBJ(r io.Reader) (*Mesh, error) {
	mesh := &Mesh{}
	edgeSeen := make(map[[2]int]bool)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)

		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj line %d: malformed vertex", lineNo)
			}
			var v Vec3
			var err error
			if v.X, err = strconv.ParseFloat(fields[1], 64); err != nil {
				return nil, fmt.Errorf("obj line %d: %v", lineNo, err)
			}
			if v.Y, err = strconv.ParseFloat(fields[2], 64); err != nil {
				return nil, fmt.Errorf("obj line %d: %v", lineNo, err)
			}
			if v.Z, err = strconv.ParseFloat(fields[3], 64); err != nil {
				return nil, fmt.Errorf("obj line %d: %v", lineNo, err)
			}
			mesh.Vertices = append(mesh.Vertices, v)

		case "f":
			if len(fields) < 3 {
				return nil, fmt.Errorf("obj line %d: face needs at least 2 vertices", lineNo)
			}
			idx := make([]int, 0, len(fields)-1)
			for _, f := range fields[1:] {
				i, err := parseFaceIndex(f, len(mesh.Vertices))
				if err != nil {
					return nil, fmt.Errorf("obj line %d: %v", lineNo, err)
				}
				idx = append(idx, i)
			}
			for i := range idx {
				a, b := idx[i], idx[(i+1)%len(idx)]
				if a == b {
					continue
				}
				if a > b {
					a, b = b, a
				}
				key := [2]int{a, b}
				if !edgeSeen[key] {
					edgeSeen[key] = true
					mesh.Edges = append(mesh.Edges, key)
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(mesh.Vertices) == 0 {
		return nil, fmt.Errorf("obj: no vertices")
	}
	return mesh, nil
}

// parseFaceIndex resolves one face vertex reference ("7", "7/1/3",
// "-2") to a zero-based vertex index.
func parseFaceIndex(field string, vertexCount int) (int, error) {
	if slash := strings.IndexByte(field, '/'); slash >= 0 {
		field = field[:slash]
	}
	i, err := strconv.Atoi(field)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		i = vertexCount + i // Relative to vertices defined so far
	} else {
		i-- // OBJ indices are 1-based
	}
	if i < 0 || i >= vertexCount {
		return 0, fmt.Errorf("face index %s out of range", field)
	}
	return i, nil
}
