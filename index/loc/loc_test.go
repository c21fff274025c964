package loc

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"log"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"testing"

	"github.com/RoaringBitmap/roaring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/sqlite-loc/index"
	"github.com/viant/sqlite-loc/index/bruteforce"
	"github.com/viant/sqlite-loc/metric"
	"golang.org/x/crypto/blake2b"
)

type point struct {
	Name string
	X, Y float64
}

// manhattan over integer coordinates keeps every distance exact.
var manhattan = metric.Infallible(func(a, b point) float64 {
	return math.Abs(a.X-b.X) + math.Abs(a.Y-b.Y)
})

func scenario() []point {
	return []point{{Name: "A", X: 0}, {Name: "B", X: 1}, {Name: "C", X: 5}, {Name: "D", X: 6}}
}

func grid(r *rand.Rand, n int) []point {
	out := make([]point, n)
	for i := range out {
		out[i] = point{Name: strconv.Itoa(i), X: float64(r.IntN(100)), Y: float64(r.IntN(100))}
	}
	return out
}

func names(matches []index.Match[point]) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Item.Name
	}
	return out
}

func distances(matches []index.Match[point]) []float64 {
	out := make([]float64, len(matches))
	for i, m := range matches {
		out[i] = m.Distance
	}
	return out
}

func ids(matches []index.Match[point]) map[int]bool {
	out := make(map[int]bool, len(matches))
	for _, m := range matches {
		out[m.ID] = true
	}
	return out
}

func TestBuild_Scenario(t *testing.T) {
	ctx := context.Background()
	for seed := uint64(0); seed < 8; seed++ {
		idx, err := Build(ctx, scenario(), manhattan, WithCentroidRatio(2), WithSeed(seed))
		require.NoError(t, err)
		assert.Equal(t, 4, idx.Len())
		assert.Len(t, idx.Clusters(), 2)

		hits, err := idx.RangeQuery(point{Name: "A"}, 1.5, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B"}, names(hits))

		nn, err := idx.KNearest(point{Name: "A"}, 2, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B"}, names(nn))
		assert.Equal(t, []float64{0, 1}, distances(nn))

		exact, err := idx.RangeQuery(point{X: 5}, 0, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"C"}, names(exact))
	}
}

func TestBuild_Invariants(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	items := grid(r, 500)
	idx, err := Build(context.Background(), items, manhattan, WithCentroidRatio(16), WithSeed(7))
	require.NoError(t, err)
	assert.Len(t, idx.Clusters(), 500/16)

	seen := make(map[int]bool)
	for _, c := range idx.Clusters() {
		radius := 0.0
		centerSeen := false
		for i, m := range c.Members {
			if i > 0 {
				assert.LessOrEqual(t, c.Members[i-1].Distance, m.Distance)
			}
			d, err := manhattan.Distance(m.Item, c.Center)
			require.NoError(t, err)
			assert.Equal(t, d, m.Distance)
			for _, other := range idx.Clusters() {
				od, _ := manhattan.Distance(m.Item, other.Center)
				assert.LessOrEqual(t, m.Distance, od)
			}
			radius = math.Max(radius, m.Distance)
			assert.False(t, seen[m.ID], "item %d indexed twice", m.ID)
			seen[m.ID] = true
			if m.ID == c.CenterID {
				centerSeen = true
				assert.Equal(t, 0.0, m.Distance)
			}
		}
		assert.Equal(t, radius, c.Radius)
		assert.True(t, centerSeen)
	}
	assert.Len(t, seen, len(items))
	assert.Equal(t, len(items), idx.Report().Indexed)
}

func TestQueries_MatchBruteForce(t *testing.T) {
	ctx := context.Background()
	r := rand.New(rand.NewPCG(3, 4))
	items := grid(r, 400)
	oracle := &bruteforce.Index[point]{}
	require.NoError(t, oracle.Build(items, manhattan, nil))

	for _, ratio := range []int{1, 4, 32, 1000} {
		idx, err := Build(ctx, items, manhattan, WithCentroidRatio(ratio), WithSeed(uint64(ratio)))
		require.NoError(t, err)
		for q := 0; q < 25; q++ {
			query := point{X: float64(r.IntN(120) - 10), Y: float64(r.IntN(120) - 10)}
			for _, radius := range []float64{0, 3, 10, 25} {
				got, err := idx.RangeQuery(query, radius, nil)
				require.NoError(t, err)
				want, err := oracle.RangeQuery(query, radius, nil)
				require.NoError(t, err)
				assert.Equal(t, ids(want), ids(got), "ratio=%d radius=%v", ratio, radius)
				assert.Equal(t, distances(want), distances(got))
			}
			for _, k := range []int{1, 5, 17, 500} {
				got, err := idx.KNearest(query, k, nil)
				require.NoError(t, err)
				want, err := oracle.KNearest(query, k, nil)
				require.NoError(t, err)
				assert.Equal(t, distances(want), distances(got), "ratio=%d k=%d", ratio, k)
			}
		}
	}
}

func TestRangeQuery_Monotonic(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 6))
	idx, err := Build(context.Background(), grid(r, 200), manhattan, WithCentroidRatio(8), WithSeed(1))
	require.NoError(t, err)
	query := point{X: 50, Y: 50}
	prev := map[int]bool{}
	for _, radius := range []float64{0, 5, 10, 20, 40, 80, 200} {
		hits, err := idx.RangeQuery(query, radius, nil)
		require.NoError(t, err)
		cur := ids(hits)
		for id := range prev {
			assert.True(t, cur[id], "item %d lost when widening to %v", id, radius)
		}
		prev = cur
	}
	assert.Len(t, prev, 200)
}

func TestQueries_Idempotent(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 8))
	idx, err := Build(context.Background(), grid(r, 150), manhattan, WithCentroidRatio(8), WithSeed(2))
	require.NoError(t, err)
	query := point{X: 30, Y: 70}
	first, err := idx.KNearest(query, 10, nil)
	require.NoError(t, err)
	second, err := idx.KNearest(query, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuild_Deterministic(t *testing.T) {
	ctx := context.Background()
	r := rand.New(rand.NewPCG(9, 10))
	items := grid(r, 300)
	assignment := func(idx *Index[point]) map[int]int {
		out := make(map[int]int)
		for _, c := range idx.Clusters() {
			for _, m := range c.Members {
				out[m.ID] = c.CenterID
			}
		}
		return out
	}
	a, err := Build(ctx, items, manhattan, WithCentroidRatio(10), WithSeed(42), WithBuildParallelism(1))
	require.NoError(t, err)
	b, err := Build(ctx, items, manhattan, WithCentroidRatio(10), WithSeed(42), WithBuildParallelism(8))
	require.NoError(t, err)
	assert.Equal(t, assignment(a), assignment(b))

	c, err := Build(ctx, items, manhattan, WithCentroidRatio(10), WithRand(rand.New(rand.NewPCG(42, 42))))
	require.NoError(t, err)
	assert.Equal(t, assignment(a), assignment(c))
}

func TestKNearest_FewerThanK(t *testing.T) {
	idx, err := Build(context.Background(), scenario(), manhattan, WithCentroidRatio(2), WithSeed(1))
	require.NoError(t, err)
	nn, err := idx.KNearest(point{X: 2}, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "C", "D"}, names(nn))
}

func TestNearest_DefaultK(t *testing.T) {
	r := rand.New(rand.NewPCG(11, 12))
	idx, err := Build(context.Background(), grid(r, 100), manhattan, WithK(7), WithSeed(3))
	require.NoError(t, err)
	assert.Equal(t, 7, idx.DefaultK())
	nn, err := idx.Nearest(point{X: 10, Y: 10}, nil)
	require.NoError(t, err)
	assert.Len(t, nn, 7)
}

func TestInvalidArguments(t *testing.T) {
	ctx := context.Background()
	_, err := Build(ctx, []point{}, manhattan)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = Build(ctx, scenario(), manhattan, WithCentroidRatio(0))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = Build(ctx, scenario(), manhattan, WithK(0))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = Build[point](ctx, scenario(), nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = Build(ctx, scenario(), manhattan, WithAnnotator[string](index.AnnotatorFunc[string](func(string) index.Annotation {
		return index.Annotation{}
	})))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	idx, err := Build(ctx, scenario(), manhattan)
	require.NoError(t, err)
	_, err = idx.KNearest(point{}, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = idx.RangeQuery(point{}, -0.5, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = idx.RangeQuery(point{}, math.NaN(), nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = idx.BatchKNearest(ctx, []point{{}}, -1, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestBuildFrom_Lenient(t *testing.T) {
	raws := []string{"0", "x", "1", "", "5", "6"}
	parse := func(s string) (point, error) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return point{}, err
		}
		return point{Name: s, X: v}, nil
	}
	var logs bytes.Buffer
	idx, err := BuildFrom(context.Background(), raws, parse, manhattan,
		WithCentroidRatio(2), WithSeed(1), WithLogger(log.New(&logs, "", 0)))
	require.NoError(t, err)
	assert.Equal(t, 4, idx.Len())
	report := idx.Report()
	assert.Equal(t, 6, report.Input)
	assert.Equal(t, 2, report.Normalization())
	assert.Equal(t, []int{1, 3}, []int{report.Skipped[0].ID, report.Skipped[1].ID})
	assert.ErrorIs(t, report.Skipped[0], ErrNormalization)
	assert.Contains(t, logs.String(), "skipping item 1")

	hits, err := idx.RangeQuery(point{X: 0}, 1.5, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 0, hits[0].ID)
	assert.Equal(t, 2, hits[1].ID)
}

func TestBuildFrom_NoSurvivors(t *testing.T) {
	fail := func(string) (point, error) { return point{}, errors.New("bad") }
	_, err := BuildFrom(context.Background(), []string{"a", "b"}, fail, manhattan)
	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.ErrorIs(t, err, ErrNoSurvivors)
	assert.ErrorIs(t, err, ErrNormalization)
	assert.Len(t, buildErr.Report.Skipped, 2)
}

// flaky fails whenever either side is named "bad" and panics on "boom".
var flaky = metric.Func[point](func(a, b point) (float64, error) {
	if a.Name == "boom" || b.Name == "boom" {
		panic("boom")
	}
	if a.Name == "bad" || b.Name == "bad" {
		return 0, errors.New("bad point")
	}
	return math.Abs(a.X-b.X) + math.Abs(a.Y-b.Y), nil
})

func TestMetricFailures_Lenient(t *testing.T) {
	ctx := context.Background()
	items := []point{{Name: "a", X: 0}, {Name: "bad", X: 1}, {Name: "c", X: 2}, {Name: "boom", X: 3}, {Name: "e", X: 4}}
	// A single center that is a good item: "bad" and "boom" cannot be placed.
	for seed := uint64(0); seed < 32; seed++ {
		idx, err := Build[point](ctx, items, flaky, WithCentroidRatio(len(items)), WithSeed(seed))
		require.NoError(t, err)
		center := idx.Clusters()[0].Center.Name
		if center == "bad" || center == "boom" {
			// every other item fails against this center; only the center survives
			assert.Equal(t, 1, idx.Len())
			assert.Equal(t, 4, idx.Report().Metric())
			nn, err := idx.KNearest(point{X: 0}, 3, nil)
			require.NoError(t, err)
			assert.Empty(t, nn)
			hits, err := idx.RangeQuery(point{X: 0}, 100, nil)
			require.NoError(t, err)
			assert.Empty(t, hits)
			continue
		}
		assert.Equal(t, 3, idx.Len())
		assert.Equal(t, 2, idx.Report().Metric())
		nn, err := idx.KNearest(point{X: 0}, 5, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c", "e"}, names(nn))
		_, err = idx.KNearest(point{Name: "bad"}, 5, nil)
		require.NoError(t, err)
	}
}

func TestCountingMetric(t *testing.T) {
	r := rand.New(rand.NewPCG(13, 14))
	items := grid(r, 256)
	var observed int64
	counting := metric.NewCounting[point](manhattan, func() {})
	idx, err := Build[point](context.Background(), items, counting, WithCentroidRatio(16), WithSeed(5))
	require.NoError(t, err)
	centers := len(idx.Clusters())
	assert.Equal(t, int64((len(items)-centers)*centers), counting.Reset())

	_, err = idx.RangeQuery(point{X: 50, Y: 50}, 2, nil)
	require.NoError(t, err)
	observed = counting.Reset()
	assert.GreaterOrEqual(t, observed, int64(centers))
	assert.Less(t, observed, int64(centers+len(items)), "pruning should skip some members")
}

func TestFilters(t *testing.T) {
	ctx := context.Background()
	items := []point{{Name: "A", X: 0}, {Name: "B", X: 1}, {Name: "C", X: 5}, {Name: "D", X: 6}}
	annotator := index.AnnotatorFunc[point](func(p point) index.Annotation {
		keys := roaring.New()
		for _, r := range strings.ToLower(p.Name) {
			keys.Add(uint32(r))
		}
		if p.X > 0 {
			keys.Add('x')
		}
		return index.Annotation{
			Experimental: p.Name == "B" || p.Name == "D",
			Structure:    p.Name == "C" || p.Name == "D",
			Ref:          "ref-" + p.Name,
			Keys:         keys,
		}
	})
	var calls int
	counting := metric.NewCounting[point](manhattan, func() { calls++ })
	idx, err := Build[point](ctx, items, counting, WithCentroidRatio(2), WithSeed(1), WithAnnotator[point](annotator), WithBuildParallelism(1))
	require.NoError(t, err)

	nn, err := idx.KNearest(point{}, 4, &Constraints{RequireExperimental: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "D"}, names(nn))
	assert.Equal(t, "ref-B", nn[0].Ref)

	nn, err = idx.KNearest(point{}, 4, &Constraints{RequireExperimental: true, RequireStructure: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"D"}, names(nn))

	hits, err := idx.RangeQuery(point{}, 10, &Constraints{MustContain: roaring.BitmapOf('x')})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C", "D"}, names(hits))

	hits, err = idx.RangeQuery(point{}, 10, &Constraints{MustExclude: roaring.BitmapOf('c', 'd')})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, names(hits))

	// A filter that rejects everything only evaluates center distances.
	calls = 0
	hits, err = idx.RangeQuery(point{}, 10, FilterFunc(func(*Annotation) bool { return false }))
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Equal(t, len(idx.Clusters()), calls)
}

func TestBatchQueries(t *testing.T) {
	ctx := context.Background()
	r := rand.New(rand.NewPCG(15, 16))
	idx, err := Build(ctx, grid(r, 200), manhattan, WithCentroidRatio(10), WithSeed(6))
	require.NoError(t, err)
	queries := grid(r, 20)

	knn, err := idx.BatchKNearest(ctx, queries, 3, nil)
	require.NoError(t, err)
	within, err := idx.BatchRangeQuery(ctx, queries, 8, nil)
	require.NoError(t, err)
	require.Len(t, knn, len(queries))
	for i, q := range queries {
		want, err := idx.KNearest(q, 3, nil)
		require.NoError(t, err)
		assert.Equal(t, want, knn[i])
		wantRange, err := idx.RangeQuery(q, 8, nil)
		require.NoError(t, err)
		assert.Equal(t, wantRange, within[i])
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = idx.BatchKNearest(cancelled, queries, 3, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

type pointCodec struct{}

func (pointCodec) Encode(p point) ([]byte, error) {
	return []byte(p.Name + "," + strconv.FormatFloat(p.X, 'g', -1, 64) + "," + strconv.FormatFloat(p.Y, 'g', -1, 64)), nil
}

func (pointCodec) Decode(data []byte) (point, error) {
	parts := strings.Split(string(data), ",")
	if len(parts) != 3 {
		return point{}, errors.New("bad point")
	}
	x, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return point{}, err
	}
	y, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return point{}, err
	}
	return point{Name: parts[0], X: x, Y: y}, nil
}

func TestEncodeDecode(t *testing.T) {
	ctx := context.Background()
	r := rand.New(rand.NewPCG(17, 18))
	items := grid(r, 120)
	annotator := index.AnnotatorFunc[point](func(p point) index.Annotation {
		return index.Annotation{Experimental: int(p.X)%2 == 0, Ref: p.Name, Keys: roaring.BitmapOf(uint32(p.Y))}
	})
	idx, err := Build(ctx, items, manhattan, WithCentroidRatio(12), WithSeed(8), WithK(9), WithAnnotator[point](annotator))
	require.NoError(t, err)

	blob, err := idx.Encode(pointCodec{})
	require.NoError(t, err)
	assert.True(t, IsBlob(blob))

	restored, err := Decode[point](blob, pointCodec{}, manhattan)
	require.NoError(t, err)
	assert.Equal(t, idx.Len(), restored.Len())
	assert.Equal(t, 9, restored.DefaultK())
	require.Len(t, restored.Clusters(), len(idx.Clusters()))
	for i, c := range idx.Clusters() {
		assert.Equal(t, c.Center, restored.Clusters()[i].Center)
		assert.Equal(t, c.Radius, restored.Clusters()[i].Radius)
	}

	filter := &Constraints{RequireExperimental: true}
	for _, q := range grid(r, 10) {
		want, err := idx.KNearest(q, 5, filter)
		require.NoError(t, err)
		got, err := restored.KNearest(q, 5, filter)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	corrupt := append([]byte(nil), blob...)
	corrupt[10] ^= 0xff
	_, err = Decode[point](corrupt, pointCodec{}, manhattan)
	assert.Error(t, err)
	_, err = Decode[point]([]byte("nope"), pointCodec{}, manhattan)
	assert.Error(t, err)
}

func TestDecode_RejectsForgedCounts(t *testing.T) {
	idx, err := Build(context.Background(), scenario(), manhattan, WithCentroidRatio(2), WithSeed(3))
	require.NoError(t, err)
	blob, err := idx.Encode(pointCodec{})
	require.NoError(t, err)
	body := blob[:len(blob)-blake2b.Size256]

	// reseal patches body and appends a valid checksum.
	reseal := func(patch func(b []byte) []byte) []byte {
		b := patch(append([]byte(nil), body...))
		sum := blake2b.Sum256(b)
		return append(b, sum[:]...)
	}
	putU32 := func(off int, v uint32) func([]byte) []byte {
		return func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[off:], v)
			return b
		}
	}

	testCases := []struct {
		description string
		blob        []byte
		truncated   bool
	}{
		{description: "cluster count", blob: reseal(putU32(12, math.MaxUint32)), truncated: true},
		{description: "member count", blob: reseal(putU32(28, math.MaxUint32)), truncated: true},
		{description: "size header", blob: reseal(putU32(8, uint32(idx.Len()+1)))},
		{description: "trailing bytes", blob: reseal(func(b []byte) []byte { return append(b, 0) })},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			_, err := Decode[point](tc.blob, pointCodec{}, manhattan)
			require.Error(t, err)
			if tc.truncated {
				assert.ErrorIs(t, err, errTruncated)
			}
		})
	}

	restored, err := Decode[point](reseal(func(b []byte) []byte { return b }), pointCodec{}, manhattan)
	require.NoError(t, err)
	assert.Equal(t, idx.Len(), restored.Len())
}

func TestParsed(t *testing.T) {
	parse := func(s string) (point, error) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return point{}, err
		}
		return point{Name: s, X: v}, nil
	}
	idx, err := BuildFrom(context.Background(), []string{"0", "1", "5", "6"}, parse, manhattan, WithCentroidRatio(2), WithSeed(4))
	require.NoError(t, err)
	p := Parsed[string, point]{Index: idx, Normalize: parse}

	nn, err := p.KNearest("0", 2, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1"}, names(nn))

	hits, err := p.RangeQuery("5.5", 0.5, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5}, distances(hits))

	_, err = p.KNearest("abc", 2, nil)
	assert.ErrorIs(t, err, ErrInvalidQuery)
	_, err = p.RangeQuery("abc", 1, nil)
	assert.ErrorIs(t, err, ErrInvalidQuery)
	_, err = p.KNearest("abc", 0, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
