// internal/service/cluster/index.go

package cluster

import (
	"fmt"
	"math"
	"sort"

	"github.com/apex/log"
	"github.com/dhconnelly/rtreego"
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"

	domain "roomscope/internal/domain/cluster"
	"roomscope/internal/domain/room"
	"roomscope/internal/domain/viewport"
	"roomscope/internal/service/geo"
)

const (
	dimensions     = 2
	pointTolerance = 1e-12
	unprocessed    = math.MaxInt32
	maxCellLevel   = 30
)

// Options controls how the index aggregates rooms
type Options struct {
	MinZoom   int
	MaxZoom   int
	MinPoints int
	Radius    float64 // aggregation distance in pixels at tile extent
	Extent    int
	NodeSize  int

	// BoundsPadding grows each side of a query by this fraction of the
	// viewport span so edge clusters do not flicker.
	BoundsPadding float64
}

// DefaultOptions returns the standard clustering parameters
func DefaultOptions() Options {
	return Options{
		MinZoom:       0,
		MaxZoom:       16,
		MinPoints:     2,
		Radius:        50,
		Extent:        512,
		NodeSize:      16,
		BoundsPadding: 0.5,
	}
}

func (o Options) withDefaults() Options {
	if o.MinZoom < 0 {
		o.MinZoom = 0
	}
	if o.MaxZoom <= 0 {
		o.MaxZoom = 16
	}
	if o.MaxZoom > 24 {
		o.MaxZoom = 24
	}
	if o.MinZoom > o.MaxZoom {
		o.MinZoom = o.MaxZoom
	}
	if o.MinPoints <= 0 {
		o.MinPoints = 2
	}
	if o.Radius <= 0 {
		o.Radius = 50
	}
	if o.Extent <= 0 {
		o.Extent = 512
	}
	if o.NodeSize < 4 {
		o.NodeSize = 16
	}
	if o.BoundsPadding < 0 {
		o.BoundsPadding = 0
	}
	return o
}

// node is either a room leaf or a cluster of nodes from the next zoom up
type node struct {
	id        int
	x, y      float64 // spherical mercator, [0, 1]
	lat, lng  float64
	zoom      int // last zoom this node was processed at
	origin    int // zoom the cluster was formed at
	numPoints int
	room      *room.Room
	children  []int
	bound     orb.Bound
	key       string
}

func (n *node) Bounds() *rtreego.Rect {
	return rtreego.Point{n.x, n.y}.ToRect(pointTolerance)
}

func (n *node) isLeaf() bool {
	return n.room != nil
}

// Index is an immutable, hierarchical greedy clustering of a room snapshot.
// Build a new Index to reflect a new snapshot.
type Index struct {
	opts   Options
	nodes  []*node
	trees  []*rtreego.Rtree
	keys   map[string]int
	leaves int
	logger log.Interface
}

// NewIndex builds an index over the rooms that have an id and finite coordinates
func NewIndex(rooms []room.Room, opts Options) *Index {
	return NewIndexWithLogger(rooms, opts, log.Log)
}

// NewIndexWithLogger is NewIndex with an explicit logger
func NewIndexWithLogger(rooms []room.Room, opts Options, logger log.Interface) *Index {
	opts = opts.withDefaults()

	idx := &Index{
		opts:   opts,
		trees:  make([]*rtreego.Rtree, opts.MaxZoom+2),
		keys:   make(map[string]int),
		logger: logger,
	}

	// Sorting keeps cluster membership stable for identical snapshots
	sorted := make([]room.Room, len(rooms))
	copy(sorted, rooms)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})

	level := make([]*node, 0, len(sorted))
	for i := range sorted {
		r := sorted[i]
		if r.ID == "" {
			continue
		}
		lat, lng, ok := r.Coordinates()
		if !ok {
			continue
		}

		n := &node{
			id:        len(idx.nodes),
			x:         lngX(lng),
			y:         latY(lat),
			lat:       lat,
			lng:       lng,
			zoom:      unprocessed,
			origin:    opts.MaxZoom + 1,
			numPoints: 1,
			room:      &r,
			bound:     orb.Point{lng, lat}.Bound(),
		}
		idx.nodes = append(idx.nodes, n)
		level = append(level, n)
	}
	idx.leaves = len(level)

	idx.trees[opts.MaxZoom+1] = idx.newTree(level)
	for z := opts.MaxZoom; z >= opts.MinZoom; z-- {
		level = idx.clusterLevel(level, z)
		idx.trees[z] = idx.newTree(level)
	}

	logger.WithFields(log.Fields{
		"rooms":    idx.leaves,
		"nodes":    len(idx.nodes),
		"clusters": len(idx.keys),
	}).Debug("spatial index built")

	return idx
}

// Len returns the number of indexed rooms
func (idx *Index) Len() int {
	return idx.leaves
}

// Options returns the effective options the index was built with
func (idx *Index) Options() Options {
	return idx.opts
}

func (idx *Index) newTree(level []*node) *rtreego.Rtree {
	tree := rtreego.NewTree(dimensions, idx.opts.NodeSize/2, idx.opts.NodeSize)
	for _, n := range level {
		tree.Insert(n)
	}
	return tree
}

// clusterLevel aggregates the nodes of zoom+1 into the nodes of zoom
func (idx *Index) clusterLevel(points []*node, zoom int) []*node {
	r := idx.opts.Radius / (float64(idx.opts.Extent) * math.Pow(2, float64(zoom)))
	tree := idx.trees[zoom+1]

	next := make([]*node, 0, len(points))
	for _, p := range points {
		if p.zoom <= zoom {
			continue
		}
		p.zoom = zoom

		var members []*node
		numPoints := p.numPoints
		for _, b := range within(tree, p.x, p.y, r) {
			if b.zoom <= zoom {
				continue
			}
			members = append(members, b)
			numPoints += b.numPoints
		}

		if numPoints > p.numPoints && numPoints >= idx.opts.MinPoints {
			wx := p.x * float64(p.numPoints)
			wy := p.y * float64(p.numPoints)
			c := &node{
				id:        len(idx.nodes),
				zoom:      unprocessed,
				origin:    zoom,
				numPoints: numPoints,
				children:  []int{p.id},
				bound:     p.bound,
			}
			for _, b := range members {
				b.zoom = zoom
				wx += b.x * float64(b.numPoints)
				wy += b.y * float64(b.numPoints)
				c.children = append(c.children, b.id)
				c.bound = c.bound.Union(b.bound)
			}

			c.x = wx / float64(numPoints)
			c.y = wy / float64(numPoints)
			c.lat = yLat(c.y)
			c.lng = xLng(c.x)
			c.key = idx.clusterKey(c)

			idx.nodes = append(idx.nodes, c)
			idx.keys[c.key] = c.id
			next = append(next, c)
			continue
		}

		next = append(next, p)
		if numPoints > 1 {
			for _, b := range members {
				b.zoom = zoom
				next = append(next, b)
			}
		}
	}

	return next
}

// clusterKey derives an external id from the quantized centroid and the
// point count, so identical clusters in rebuilt indexes share an id.
func (idx *Index) clusterKey(c *node) string {
	level := c.origin + 8
	if level > maxCellLevel {
		level = maxCellLevel
	}

	cell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(c.lat, c.lng)).Parent(level)
	key := fmt.Sprintf("z%d-%s-%d", c.origin, cell.ToToken(), c.numPoints)

	base := key
	for n := 1; ; n++ {
		if _, taken := idx.keys[key]; !taken {
			return key
		}
		key = fmt.Sprintf("%s-%d", base, n)
	}
}

// VisibleFeatures returns the clusters and rooms visible in bounds at zoom.
// Malformed entries are dropped before the result is returned.
func (idx *Index) VisibleFeatures(b viewport.Bounds, zoom float64) []domain.Feature {
	if math.IsNaN(zoom) || b.Validate() != nil {
		return nil
	}

	tree := idx.trees[idx.limitZoom(zoom)]
	if tree == nil {
		return nil
	}

	padded := geo.PadBounds(b, idx.opts.BoundsPadding)
	minLat := clamp(padded.South, -90, 90)
	maxLat := clamp(padded.North, -90, 90)

	var nodes []*node
	if padded.LngSpan() >= 360 {
		nodes = search(tree, -180, minLat, 180, maxLat)
	} else {
		minLng := wrapLng(padded.West)
		maxLng := wrapLng(padded.East)
		if minLng > maxLng {
			nodes = append(search(tree, minLng, minLat, 180, maxLat), search(tree, -180, minLat, maxLng, maxLat)...)
		} else {
			nodes = search(tree, minLng, minLat, maxLng, maxLat)
		}
	}

	features := make([]domain.Feature, 0, len(nodes))
	for _, n := range nodes {
		f := idx.toFeature(n)
		if !validFeature(f) {
			continue
		}
		features = append(features, f)
	}

	return features
}

// ExpansionZoom returns the zoom at which the cluster splits apart
func (idx *Index) ExpansionZoom(clusterID string) (int, error) {
	n, err := idx.cluster(clusterID)
	if err != nil {
		return 0, err
	}

	zoom := n.origin
	for zoom <= idx.opts.MaxZoom {
		zoom++
		if len(n.children) != 1 {
			break
		}
		child := idx.nodes[n.children[0]]
		if child.isLeaf() {
			break
		}
		n = child
	}

	return zoom, nil
}

// Leaves pages through the rooms underneath a cluster
func (idx *Index) Leaves(clusterID string, limit, offset int) ([]domain.Feature, error) {
	n, err := idx.cluster(clusterID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	leaves := make([]domain.Feature, 0, limit)
	skipped := 0
	idx.appendLeaves(n, &leaves, limit, offset, &skipped)
	return leaves, nil
}

func (idx *Index) appendLeaves(n *node, out *[]domain.Feature, limit, offset int, skipped *int) {
	for _, childID := range n.children {
		if len(*out) >= limit {
			return
		}

		child := idx.nodes[childID]
		if !child.isLeaf() {
			if *skipped+child.numPoints <= offset {
				*skipped += child.numPoints
				continue
			}
			idx.appendLeaves(child, out, limit, offset, skipped)
			continue
		}

		if *skipped < offset {
			*skipped++
			continue
		}
		*out = append(*out, idx.toFeature(child))
	}
}

func (idx *Index) cluster(clusterID string) (*node, error) {
	id, ok := idx.keys[clusterID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownCluster, clusterID)
	}
	return idx.nodes[id], nil
}

// limitZoom clamps before converting so huge or infinite zooms map to the
// finest level
func (idx *Index) limitZoom(zoom float64) int {
	z := math.Floor(zoom)
	if z < float64(idx.opts.MinZoom) {
		return idx.opts.MinZoom
	}
	if z > float64(idx.opts.MaxZoom+1) {
		return idx.opts.MaxZoom + 1
	}
	return int(z)
}

func (idx *Index) toFeature(n *node) domain.Feature {
	if n.isLeaf() {
		r := *n.room
		return domain.Feature{
			Kind:      domain.KindRoom,
			Latitude:  n.lat,
			Longitude: n.lng,
			RoomID:    r.ID,
			Room:      &r,
		}
	}

	expansion := viewport.FromBound(n.bound)
	return domain.Feature{
		Kind:            domain.KindCluster,
		Latitude:        n.lat,
		Longitude:       n.lng,
		ClusterID:       n.key,
		PointCount:      n.numPoints,
		ExpansionBounds: &expansion,
	}
}

// validFeature rejects non-finite positions and features missing the id
// their kind requires.
func validFeature(f domain.Feature) bool {
	if !finite(f.Latitude) || !finite(f.Longitude) {
		return false
	}

	switch f.Kind {
	case domain.KindCluster:
		return f.ClusterID != ""
	case domain.KindRoom:
		return f.RoomID != ""
	default:
		return false
	}
}

// within returns nodes whose projected distance from (x, y) is at most r
func within(tree *rtreego.Rtree, x, y, r float64) []*node {
	rect, err := rtreego.NewRect(rtreego.Point{x - r, y - r}, []float64{2 * r, 2 * r})
	if err != nil {
		return nil
	}

	var out []*node
	for _, s := range tree.SearchIntersect(rect) {
		n, ok := s.(*node)
		if !ok {
			continue
		}
		dx, dy := n.x-x, n.y-y
		if dx*dx+dy*dy <= r*r {
			out = append(out, n)
		}
	}
	return out
}

// search returns nodes inside a lng/lat rectangle
func search(tree *rtreego.Rtree, minLng, minLat, maxLng, maxLat float64) []*node {
	minX, maxX := lngX(minLng), lngX(maxLng)
	minY, maxY := latY(maxLat), latY(minLat)

	rect, err := rtreego.NewRect(
		rtreego.Point{minX - pointTolerance, minY - pointTolerance},
		[]float64{maxX - minX + 2*pointTolerance, maxY - minY + 2*pointTolerance},
	)
	if err != nil {
		return nil
	}

	var out []*node
	for _, s := range tree.SearchIntersect(rect) {
		n, ok := s.(*node)
		if !ok {
			continue
		}
		if n.x >= minX && n.x <= maxX && n.y >= minY && n.y <= maxY {
			out = append(out, n)
		}
	}
	return out
}

// Spherical mercator helpers

func lngX(lng float64) float64 {
	return lng/360 + 0.5
}

func latY(lat float64) float64 {
	sin := math.Sin(lat * math.Pi / 180)
	y := 0.5 - 0.25*math.Log((1+sin)/(1-sin))/math.Pi
	return clamp(y, 0, 1)
}

func xLng(x float64) float64 {
	return (x - 0.5) * 360
}

func yLat(y float64) float64 {
	y2 := (180 - y*360) * math.Pi / 180
	return 360*math.Atan(math.Exp(y2))/math.Pi - 90
}

func wrapLng(lng float64) float64 {
	if lng >= -180 && lng <= 180 {
		return lng
	}
	return math.Mod(math.Mod(lng+180, 360)+360, 360) - 180
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
