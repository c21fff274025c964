package cover

// node is a cover-tree node holding one item.
type node struct {
	id       int
	level    int32
	children []*node
	// radius bounds the distance from the node's item to any descendant.
	radius   float64
}

func newNode(id int, level int32) *node {
	return &node{id: id, level: level}
}

// neighbor is a kNN candidate.
type neighbor struct {
	id       int
	distance float64
}

// neighbors is a max-heap on (distance, id); the root is the worst candidate.
type neighbors []neighbor

func (h neighbors) Len() int { return len(h) }
func (h neighbors) Less(i, j int) bool {
	if h[i].distance != h[j].distance {
		return h[i].distance > h[j].distance
	}
	return h[i].id > h[j].id
}
func (h neighbors) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *neighbors) Push(x any)  { *h = append(*h, x.(neighbor)) }
func (h *neighbors) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

type nodeItem struct {
	node       *node
	lb         float64
	centerDist float64
	// known is false when the distance to the node's item failed.
	known      bool
}

type nodeQueue []nodeItem

func (q nodeQueue) Len() int           { return len(q) }
func (q nodeQueue) Less(i, j int) bool { return q[i].lb < q[j].lb }
func (q nodeQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(x any)        { *q = append(*q, x.(nodeItem)) }
func (q *nodeQueue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}
