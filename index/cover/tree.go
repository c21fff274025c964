package cover

import (
	"container/heap"
	"fmt"
	"math"
	"sort"

	"github.com/viant/sqlite-loc/index"
	"github.com/viant/sqlite-loc/metric"
)

// DefaultBase is the level scaling factor of the tree.
const DefaultBase = 1.3

// Index is a cover tree over items of type T.
type Index[T any] struct {
	root        *node
	base        float64
	items       []T
	annotations []index.Annotation
	metric      metric.Metric[T]
	size        int
	skipped     int
}

// New returns an empty tree; base <= 1 selects DefaultBase.
func New[T any](base float64) *Index[T] {
	if base <= 1 {
		base = DefaultBase
	}
	return &Index[T]{base: base}
}

// Build inserts items in order. Items whose distance to a visited node cannot
// be computed are skipped; Skipped reports how many. annotator may be nil.
func (t *Index[T]) Build(items []T, m metric.Metric[T], annotator index.Annotator[T]) error {
	if m == nil {
		return fmt.Errorf("cover: metric is nil: %w", index.ErrInvalidArgument)
	}
	if t.base <= 1 {
		t.base = DefaultBase
	}
	t.root, t.size, t.skipped = nil, 0, 0
	t.metric = metric.Safe(m)
	t.items = append([]T(nil), items...)
	t.annotations = make([]index.Annotation, len(items))
	for id := range t.items {
		if annotator != nil {
			t.annotations[id] = annotator.Annotate(t.items[id])
		}
		if t.root == nil {
			t.root = newNode(id, 0)
			t.size++
			continue
		}
		if err := t.insert(id); err != nil {
			t.skipped++
			continue
		}
		t.size++
	}
	t.computeRadius(t.root)
	return nil
}

// Len returns the number of indexed items.
func (t *Index[T]) Len() int { return t.size }

// Skipped returns the number of items left out by Build.
func (t *Index[T]) Skipped() int { return t.skipped }

func (t *Index[T]) distance(a T, id int) (float64, error) {
	return t.metric.Distance(a, t.items[id])
}

func (t *Index[T]) insert(id int) error {
	point := t.items[id]
	n := t.root
	level := int32(0)
	for {
		baseLevel := math.Pow(t.base, float64(level))
		d, err := t.distance(point, n.id)
		if err != nil {
			return err
		}
		if d < baseLevel {
			var next *node
			for _, child := range n.children {
				cd, err := t.distance(point, child.id)
				if err != nil {
					return err
				}
				if cd < baseLevel {
					next = child
					break
				}
			}
			if next == nil {
				n.children = append(n.children, newNode(id, level-1))
				return nil
			}
			n = next
			level--
			continue
		}
		level++
		if level > n.level {
			root := newNode(id, level)
			root.children = append(root.children, t.root)
			t.root = root
			return nil
		}
	}
}

// computeRadius sets every node's radius to an upper bound of the distance
// to its descendants. An uncomputable edge makes the bound infinite.
func (t *Index[T]) computeRadius(n *node) float64 {
	if n == nil {
		return 0
	}
	n.radius = 0
	for _, child := range n.children {
		cr := t.computeRadius(child)
		d, err := t.distance(t.items[n.id], child.id)
		if err != nil {
			d = math.Inf(1)
		}
		n.radius = math.Max(n.radius, d+cr)
	}
	return n.radius
}

func (t *Index[T]) match(id int, d float64) index.Match[T] {
	return index.Match[T]{ID: id, Item: t.items[id], Distance: d, Ref: t.annotations[id].Ref}
}

func sortMatches[T any](out []index.Match[T]) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].ID < out[j].ID
	})
}

// KNearest runs a best-first search with a node priority queue. Ties are
// broken by input position.
func (t *Index[T]) KNearest(query T, k int, filter index.Filter) ([]index.Match[T], error) {
	if k <= 0 {
		return nil, fmt.Errorf("cover: k=%d: %w", k, index.ErrInvalidArgument)
	}
	if t.root == nil {
		return nil, nil
	}
	nh := &neighbors{}
	pq := &nodeQueue{}
	heap.Push(pq, t.visit(query, t.root))
	for pq.Len() > 0 {
		top := heap.Pop(pq).(nodeItem)
		if nh.Len() == k && top.lb > (*nh)[0].distance {
			break
		}
		if top.known && index.Accept(filter, &t.annotations[top.node.id]) {
			t.offer(nh, k, neighbor{id: top.node.id, distance: top.centerDist})
		}
		for _, child := range top.node.children {
			item := t.visit(query, child)
			if nh.Len() == k && item.lb > (*nh)[0].distance {
				continue
			}
			heap.Push(pq, item)
		}
	}
	out := make([]index.Match[T], nh.Len())
	for i, n := range *nh {
		out[i] = t.match(n.id, n.distance)
	}
	sortMatches(out)
	return out, nil
}

// offer keeps the k best candidates; at equal distance the lower id wins.
func (t *Index[T]) offer(nh *neighbors, k int, n neighbor) {
	if nh.Len() < k {
		heap.Push(nh, n)
		return
	}
	worst := (*nh)[0]
	if n.distance < worst.distance || (n.distance == worst.distance && n.id < worst.id) {
		(*nh)[0] = n
		heap.Fix(nh, 0)
	}
}

func (t *Index[T]) visit(query T, n *node) nodeItem {
	d, err := t.distance(query, n.id)
	if err != nil {
		return nodeItem{node: n, lb: math.Inf(-1)}
	}
	return nodeItem{node: n, lb: d - n.radius, centerDist: d, known: true}
}

// RangeQuery returns every accepted item within radius of query, ordered by
// distance.
func (t *Index[T]) RangeQuery(query T, radius float64, filter index.Filter) ([]index.Match[T], error) {
	if radius < 0 || math.IsNaN(radius) {
		return nil, fmt.Errorf("cover: radius %v: %w", radius, index.ErrInvalidArgument)
	}
	if t.root == nil {
		return nil, nil
	}
	var out []index.Match[T]
	stack := []nodeItem{t.visit(query, t.root)}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top.lb > radius {
			continue
		}
		if top.known && top.centerDist <= radius && index.Accept(filter, &t.annotations[top.node.id]) {
			out = append(out, t.match(top.node.id, top.centerDist))
		}
		for _, child := range top.node.children {
			stack = append(stack, t.visit(query, child))
		}
	}
	sortMatches(out)
	return out, nil
}

var _ index.Index[int] = (*Index[int])(nil)
