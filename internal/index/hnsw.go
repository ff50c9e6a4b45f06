package index

import (
	"container/heap"
	"math"
	"math/rand"
)

// hnswGraph is a Hierarchical Navigable Small World graph over unit-length
// vectors in cosine space. Insertion cost is superlinear but queries stay
// sublinear in corpus size, which is the trade the search path wants.
//
// The graph parameters mirror the pgvector index used by the PostgreSQL
// backend (m=16, ef_construction=64) so both backends have comparable
// recall characteristics.
//
// Deleted and replaced nodes are tombstoned: they keep serving as graph
// waypoints but are excluded from results. The owning shard rebuilds the
// graph when tombstones outnumber live nodes.
//
// Not safe for concurrent use; the owning Index serializes access.
type hnswGraph struct {
	m              int     // max links per node on upper layers
	mMax0          int     // max links on layer 0 (2*m)
	efConstruction int     // beam width during insertion
	efSearch       int     // default beam width during queries
	ml             float64 // level generation factor, 1/ln(m)

	nodes    []*hnswNode
	byKey    map[string]uint32
	entry    int64 // internal id of the entry point, -1 when empty
	maxLevel int
	rng      *rand.Rand

	tombstones int
}

type hnswNode struct {
	key     string
	vec     []float32 // unit length
	level   int
	links   [][]uint32 // neighbors per layer, links[0] is layer 0
	deleted bool
}

func newHNSWGraph(m, efConstruction, efSearch int, seed int64) *hnswGraph {
	if m <= 0 {
		m = 16
	}
	if efConstruction < m {
		efConstruction = 4 * m
	}
	if efSearch <= 0 {
		efSearch = efConstruction
	}
	return &hnswGraph{
		m:              m,
		mMax0:          2 * m,
		efConstruction: efConstruction,
		efSearch:       efSearch,
		ml:             1 / math.Log(float64(m)),
		byKey:          make(map[string]uint32),
		entry:          -1,
		rng:            rand.New(rand.NewSource(seed)),
	}
}

// cosDist is cosine distance for unit vectors: 1 - dot.
func cosDist(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return 1 - dot
}

// scored pairs an internal node id with its distance to the query.
type scored struct {
	id   uint32
	dist float64
}

// minHeap pops the closest candidate first.
type minHeap []scored

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(scored)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// maxHeap pops the farthest result first, bounding the result set at ef.
type maxHeap []scored

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x interface{}) { *h = append(*h, x.(scored)) }
func (h *maxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// randomLevel draws a node level from the standard HNSW geometric
// distribution.
func (g *hnswGraph) randomLevel() int {
	u := g.rng.Float64()
	for u == 0 {
		u = g.rng.Float64()
	}
	return int(math.Floor(-math.Log(u) * g.ml))
}

// Len returns the number of live (non-tombstoned) nodes.
func (g *hnswGraph) Len() int {
	return len(g.byKey)
}

// Insert adds a vector under key, replacing (tombstoning) any previous node
// with the same key.
func (g *hnswGraph) Insert(key string, vec []float32) {
	if old, ok := g.byKey[key]; ok {
		g.nodes[old].deleted = true
		g.tombstones++
		delete(g.byKey, key)
	}

	level := g.randomLevel()
	node := &hnswNode{
		key:   key,
		vec:   vec,
		level: level,
		links: make([][]uint32, level+1),
	}
	id := uint32(len(g.nodes))
	g.nodes = append(g.nodes, node)
	g.byKey[key] = id

	if g.entry < 0 {
		g.entry = int64(id)
		g.maxLevel = level
		return
	}

	ep := uint32(g.entry)

	// Greedy descent through the layers above the node's level.
	for lc := g.maxLevel; lc > level; lc-- {
		ep = g.greedyClosest(vec, ep, lc)
	}

	// Connect on each layer from min(level, maxLevel) down to 0.
	top := level
	if top > g.maxLevel {
		top = g.maxLevel
	}
	for lc := top; lc >= 0; lc-- {
		candidates := g.searchLayer(vec, ep, g.efConstruction, lc)

		capacity := g.m
		if lc == 0 {
			capacity = g.mMax0
		}

		neighbors := candidates
		if len(neighbors) > g.m {
			neighbors = neighbors[:g.m]
		}

		for _, nb := range neighbors {
			node.links[lc] = append(node.links[lc], nb.id)
			g.nodes[nb.id].links[lc] = append(g.nodes[nb.id].links[lc], id)
			g.pruneLinks(nb.id, lc, capacity)
		}

		if len(candidates) > 0 {
			ep = candidates[0].id
		}
	}

	if level > g.maxLevel {
		g.entry = int64(id)
		g.maxLevel = level
	}
}

// greedyClosest walks layer lc greedily toward the query, returning the
// locally closest node.
func (g *hnswGraph) greedyClosest(query []float32, ep uint32, lc int) uint32 {
	cur := ep
	curDist := cosDist(query, g.nodes[cur].vec)
	for {
		improved := false
		for _, nb := range g.nodes[cur].links[lc] {
			if d := cosDist(query, g.nodes[nb].vec); d < curDist {
				cur, curDist = nb, d
				improved = true
			}
		}
		if !improved {
			return cur
		}
	}
}

// searchLayer is the canonical HNSW beam search on a single layer.
// Returns up to ef candidates sorted ascending by distance. Tombstoned
// nodes participate as waypoints but are kept in the result so callers on
// layer 0 can filter them; intermediate layers only care about positions.
func (g *hnswGraph) searchLayer(query []float32, ep uint32, ef int, lc int) []scored {
	visited := map[uint32]bool{ep: true}

	epDist := cosDist(query, g.nodes[ep].vec)
	candidates := &minHeap{{ep, epDist}}
	results := &maxHeap{{ep, epDist}}

	for candidates.Len() > 0 {
		c := heap.Pop(candidates).(scored)
		if results.Len() >= ef && c.dist > (*results)[0].dist {
			break
		}
		for _, nb := range g.nodes[c.id].links[lc] {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			d := cosDist(query, g.nodes[nb].vec)
			if results.Len() < ef || d < (*results)[0].dist {
				heap.Push(candidates, scored{nb, d})
				heap.Push(results, scored{nb, d})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]scored, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(scored)
	}
	return out
}

// pruneLinks truncates a node's neighbor list on layer lc to capacity,
// keeping the closest neighbors.
func (g *hnswGraph) pruneLinks(id uint32, lc, capacity int) {
	links := g.nodes[id].links[lc]
	if len(links) <= capacity {
		return
	}

	ranked := make([]scored, 0, len(links))
	for _, nb := range links {
		ranked = append(ranked, scored{nb, cosDist(g.nodes[id].vec, g.nodes[nb].vec)})
	}
	h := minHeap(ranked)
	heap.Init(&h)

	kept := make([]uint32, 0, capacity)
	for len(kept) < capacity && h.Len() > 0 {
		kept = append(kept, heap.Pop(&h).(scored).id)
	}
	g.nodes[id].links[lc] = kept
}

// Search returns up to k live keys closest to the query, ascending by
// cosine distance. ef widens the layer-0 beam; values below k are raised
// to k.
func (g *hnswGraph) Search(query []float32, k, ef int) []scoredKey {
	if g.entry < 0 || k <= 0 {
		return nil
	}
	if ef < k {
		ef = k
	}
	if ef < g.efSearch {
		ef = g.efSearch
	}

	ep := uint32(g.entry)
	for lc := g.maxLevel; lc > 0; lc-- {
		ep = g.greedyClosest(query, ep, lc)
	}

	candidates := g.searchLayer(query, ep, ef, 0)

	out := make([]scoredKey, 0, k)
	for _, c := range candidates {
		node := g.nodes[c.id]
		if node.deleted {
			continue
		}
		out = append(out, scoredKey{node.key, c.dist})
		if len(out) == k {
			break
		}
	}
	return out
}

// scoredKey pairs a record key with its distance to the query.
type scoredKey struct {
	key  string
	dist float64
}
