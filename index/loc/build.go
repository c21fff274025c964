package loc

import (
	"context"
	"fmt"

	"github.com/viant/sqlite-loc/index"
	"github.com/viant/sqlite-loc/internal/parallel"
	"github.com/viant/sqlite-loc/metric"
)

type assignment struct {
	cluster    int
	distance   float64
	annotation index.Annotation
	err        error
}

// Build indexes items under m. Items whose distance to every center fails
// are skipped and listed in Report; if nothing can be indexed a *BuildError
// is returned.
func Build[T any](ctx context.Context, items []T, m metric.Metric[T], opts ...Option) (*Index[T], error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("loc: no items: %w", ErrInvalidArgument)
	}
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	ids := make([]int, len(items))
	for i := range ids {
		ids[i] = i
	}
	return build(ctx, items, ids, m, o, BuildReport{Input: len(items)})
}

// BuildFrom normalises raw inputs in parallel and indexes the results. Inputs
// that fail to normalise are skipped and reported with ErrNormalization;
// member IDs refer to positions in raws.
func BuildFrom[R, T any](ctx context.Context, raws []R, normalize func(R) (T, error), m metric.Metric[T], opts ...Option) (*Index[T], error) {
	if len(raws) == 0 {
		return nil, fmt.Errorf("loc: no items: %w", ErrInvalidArgument)
	}
	if normalize == nil {
		return nil, fmt.Errorf("loc: normalize is nil: %w", ErrInvalidArgument)
	}
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	type normalized struct {
		item T
		err  error
	}
	results, err := parallel.Map(ctx, raws, o.workers, func(_ context.Context, _ int, raw R) (normalized, error) {
		item, err := safeNormalize(normalize, raw)
		return normalized{item: item, err: err}, nil
	})
	if err != nil {
		return nil, err
	}
	report := BuildReport{Input: len(raws)}
	items := make([]T, 0, len(raws))
	ids := make([]int, 0, len(raws))
	for i, r := range results {
		if r.err != nil {
			o.logger.Printf("loc: skipping item %d: %v", i, r.err)
			report.Skipped = append(report.Skipped, ItemError{ID: i, Kind: ErrNormalization, Err: r.err})
			continue
		}
		items = append(items, r.item)
		ids = append(ids, i)
	}
	if len(items) == 0 {
		return nil, &BuildError{Report: report}
	}
	return build(ctx, items, ids, m, o, report)
}

func safeNormalize[R, T any](normalize func(R) (T, error), raw R) (item T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return normalize(raw)
}

func build[T any](ctx context.Context, items []T, ids []int, m metric.Metric[T], o *options, report BuildReport) (*Index[T], error) {
	if m == nil {
		return nil, fmt.Errorf("loc: metric is nil: %w", ErrInvalidArgument)
	}
	annotator, err := annotatorFor[T](o)
	if err != nil {
		return nil, err
	}
	m = metric.Safe(m)

	n := len(items)
	count := n / o.centroidRatio
	if count < 1 {
		count = 1
	}
	centers := o.random().Perm(n)[:count]
	centerOf := make(map[int]int, count)
	clusters := make([]Cluster[T], count)
	for c, pos := range centers {
		centerOf[pos] = c
		clusters[c] = Cluster[T]{Center: items[pos], CenterID: ids[pos]}
	}

	assignments, err := parallel.Map(ctx, items, o.workers, func(_ context.Context, i int, item T) (assignment, error) {
		a := assignment{cluster: -1}
		if annotator != nil {
			a.annotation = annotator.Annotate(item)
		}
		if c, ok := centerOf[i]; ok {
			a.cluster = c
			return a, nil
		}
		for c := range clusters {
			d, err := m.Distance(item, clusters[c].Center)
			if err != nil {
				a.err = err
				continue
			}
			if a.cluster < 0 || d < a.distance {
				a.cluster, a.distance = c, d
			}
		}
		if a.cluster >= 0 {
			a.err = nil
		}
		return a, nil
	})
	if err != nil {
		return nil, err
	}

	indexed := 0
	for i, a := range assignments {
		if a.cluster < 0 {
			o.logger.Printf("loc: skipping item %d: %v", ids[i], a.err)
			report.Skipped = append(report.Skipped, ItemError{ID: ids[i], Kind: ErrMetric, Err: a.err})
			continue
		}
		clusters[a.cluster].insert(Member[T]{ID: ids[i], Item: items[i], Distance: a.distance, Annotation: a.annotation})
		indexed++
	}
	report.Indexed = indexed
	report.Clusters = len(clusters)
	return &Index[T]{
		clusters: clusters,
		metric:   m,
		k:        o.k,
		size:     indexed,
		workers:  o.workers,
		logger:   o.logger,
		report:   report,
	}, nil
}
