package gis

import (
	"fmt"
	"sort"

	"github.com/jonas-p/go-shp"
)

// d8 maps ESRI flow-direction codes to (row, col) steps
var d8 = map[int][2]int{
	1:   {0, 1},   // E
	2:   {1, 1},   // SE
	4:   {1, 0},   // S
	8:   {1, -1},  // SW
	16:  {0, -1},  // W
	32:  {-1, -1}, // NW
	64:  {-1, 0},  // N
	128: {-1, 1},  // NE
}

const unassigned int64 = -1

// LabelCatchments assigns every cell the reach ID of the first stream-link
// cell found by following flow directions downstream. Cells whose path leaves
// the grid, hits nodata, an invalid code or a cycle get no label (0).
func LabelCatchments(fdir, link *Grid) ([]int64, error) {
	if err := fdir.SameFrame(link); err != nil {
		return nil, fmt.Errorf("stream link grid does not match flow directions: %w", err)
	}

	n := fdir.NCols * fdir.NRows
	labels := make([]int64, n)
	for i, v := range link.Values {
		if !link.IsNoData(v) && v > 0 {
			labels[i] = int64(v)
		}
	}

	// visit stamps mark the cells of the path currently being traced
	stamp := make([]int, n)
	path := make([]int, 0, 64)
	for start := 0; start < n; start++ {
		if labels[start] != 0 {
			continue
		}

		path = path[:0]
		result := unassigned
		cur := start
		for {
			if labels[cur] != 0 {
				result = labels[cur]
				break
			}
			if stamp[cur] == start+1 {
				break
			}
			stamp[cur] = start + 1
			path = append(path, cur)

			next, ok := downstream(fdir, cur)
			if !ok {
				break
			}
			cur = next
		}

		for _, c := range path {
			labels[c] = result
		}
	}

	for i, l := range labels {
		if l == unassigned {
			labels[i] = 0
		}
	}
	return labels, nil
}

func downstream(fdir *Grid, cell int) (int, bool) {
	v := fdir.Values[cell]
	if fdir.IsNoData(v) {
		return 0, false
	}
	step, ok := d8[int(v)]
	if !ok || float64(int(v)) != v {
		return 0, false
	}
	row := cell/fdir.NCols + step[0]
	col := cell%fdir.NCols + step[1]
	if row < 0 || row >= fdir.NRows || col < 0 || col >= fdir.NCols {
		return 0, false
	}
	return row*fdir.NCols + col, true
}

// vertex is a cell corner in lattice coordinates, y growing downward
type vertex struct{ x, y int }

type edge struct {
	from, to vertex
}

func (e edge) dir() vertex {
	return vertex{e.to.x - e.from.x, e.to.y - e.from.y}
}

// Polygonize traces the outline of every labelled region of the grid frame.
// Features come out in ascending ID order; outer rings are clockwise and holes
// counter-clockwise, with collinear vertices merged.
func Polygonize(frame *Grid, labels []int64) []PolygonFeature {
	cells := make(map[int64][]int)
	for i, l := range labels {
		if l > 0 {
			cells[l] = append(cells[l], i)
		}
	}

	ids := make([]int64, 0, len(cells))
	for id := range cells {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })

	features := make([]PolygonFeature, 0, len(ids))
	for _, id := range ids {
		rings := traceRings(frame, labels, id, cells[id])
		features = append(features, PolygonFeature{ID: id, Rings: rings})
	}
	return features
}

func traceRings(frame *Grid, labels []int64, id int64, members []int) [][]shp.Point {
	inside := func(row, col int) bool {
		if row < 0 || row >= frame.NRows || col < 0 || col >= frame.NCols {
			return false
		}
		return labels[row*frame.NCols+col] == id
	}

	// boundary edges keep the region on their right
	var edges []edge
	for _, cell := range members {
		row, col := cell/frame.NCols, cell%frame.NCols
		tl, tr := vertex{col, row}, vertex{col + 1, row}
		bl, br := vertex{col, row + 1}, vertex{col + 1, row + 1}
		if !inside(row-1, col) {
			edges = append(edges, edge{tl, tr})
		}
		if !inside(row, col+1) {
			edges = append(edges, edge{tr, br})
		}
		if !inside(row+1, col) {
			edges = append(edges, edge{br, bl})
		}
		if !inside(row, col-1) {
			edges = append(edges, edge{bl, tl})
		}
	}

	outgoing := make(map[vertex][]int, len(edges))
	for i, e := range edges {
		outgoing[e.from] = append(outgoing[e.from], i)
	}
	used := make([]bool, len(edges))

	var outers, holes [][]shp.Point
	for startIdx := range edges {
		if used[startIdx] {
			continue
		}

		var ring []vertex
		cur := startIdx
		for {
			used[cur] = true
			ring = append(ring, edges[cur].from)
			next, ok := nextEdge(edges, outgoing, edges[cur])
			if !ok || used[next] {
				break
			}
			cur = next
		}

		ring = mergeCollinear(ring)
		points := toWorld(frame, ring)
		if signedArea(ring) > 0 {
			outers = append(outers, points)
		} else {
			holes = append(holes, points)
		}
	}
	return append(outers, holes...)
}

// nextEdge picks the edge leaving e's end, turning right first so that
// regions touching at a single corner become separate rings.
func nextEdge(edges []edge, outgoing map[vertex][]int, e edge) (int, bool) {
	d := e.dir()
	preference := []vertex{
		{-d.y, d.x}, // right
		d,           // straight
		{d.y, -d.x}, // left
	}
	candidates := outgoing[e.to]
	for _, want := range preference {
		for _, c := range candidates {
			if edges[c].dir() == want {
				return c, true
			}
		}
	}
	return 0, false
}

func mergeCollinear(ring []vertex) []vertex {
	n := len(ring)
	if n < 3 {
		return ring
	}
	out := make([]vertex, 0, n)
	for i := range ring {
		prev := ring[(i+n-1)%n]
		next := ring[(i+1)%n]
		in := vertex{sign(ring[i].x - prev.x), sign(ring[i].y - prev.y)}
		outDir := vertex{sign(next.x - ring[i].x), sign(next.y - ring[i].y)}
		if in != outDir {
			out = append(out, ring[i])
		}
	}
	return out
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// signedArea is twice the shoelace area in lattice coordinates; positive
// means clockwise once y points north.
func signedArea(ring []vertex) int {
	a := 0
	for i := range ring {
		j := (i + 1) % len(ring)
		a += ring[i].x*ring[j].y - ring[j].x*ring[i].y
	}
	return a
}

func toWorld(frame *Grid, ring []vertex) []shp.Point {
	points := make([]shp.Point, 0, len(ring)+1)
	for _, v := range ring {
		points = append(points, shp.Point{
			X: frame.XLL + float64(v.x)*frame.CellSize,
			Y: frame.YLL + float64(frame.NRows-v.y)*frame.CellSize,
		})
	}
	if len(points) > 0 {
		points = append(points, points[0])
	}
	return points
}
