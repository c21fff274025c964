package loc

import (
	"fmt"
	"io"
	"log"
	"math/rand/v2"

	"github.com/viant/sqlite-loc/index"
)

const (
	// DefaultCentroidRatio is the default number of items per center.
	DefaultCentroidRatio = 32
	// DefaultK is the default neighbour count used by Nearest.
	DefaultK = 50
)

type options struct {
	centroidRatio int
	k             int
	workers       int
	seed          *uint64
	rng           *rand.Rand
	logger        *log.Logger
	annotator     any
}

// Option configures Build, BuildFrom and Decode.
type Option func(*options)

// WithCentroidRatio sets the number of items per center; one center is
// sampled for every ratio items, with a minimum of one.
func WithCentroidRatio(ratio int) Option { return func(o *options) { o.centroidRatio = ratio } }

// WithK sets the default neighbour count used by Nearest.
func WithK(k int) Option { return func(o *options) { o.k = k } }

// WithBuildParallelism bounds the worker count of build and batch queries.
// Values <= 0 mean GOMAXPROCS.
func WithBuildParallelism(n int) Option { return func(o *options) { o.workers = n } }

// WithSeed makes center selection reproducible.
func WithSeed(seed uint64) Option { return func(o *options) { o.seed = &seed } }

// WithRand supplies the random source used for center selection. It takes
// precedence over WithSeed.
func WithRand(r *rand.Rand) Option { return func(o *options) { o.rng = r } }

// WithLogger sets the logger that receives per-item build and query
// failures. By default they are discarded.
func WithLogger(l *log.Logger) Option { return func(o *options) { o.logger = l } }

// WithAnnotator attaches provenance to every item at build time. The
// annotator's item type must match the index item type and it must be safe
// for concurrent use.
func WithAnnotator[T any](a index.Annotator[T]) Option {
	return func(o *options) { o.annotator = a }
}

func newOptions(opts []Option) (*options, error) {
	o := &options{centroidRatio: DefaultCentroidRatio, k: DefaultK}
	for _, opt := range opts {
		opt(o)
	}
	if o.centroidRatio < 1 {
		return nil, fmt.Errorf("loc: centroid ratio %d: %w", o.centroidRatio, ErrInvalidArgument)
	}
	if o.k < 1 {
		return nil, fmt.Errorf("loc: k=%d: %w", o.k, ErrInvalidArgument)
	}
	if o.logger == nil {
		o.logger = log.New(io.Discard, "", 0)
	}
	return o, nil
}

func (o *options) random() *rand.Rand {
	switch {
	case o.rng != nil:
		return o.rng
	case o.seed != nil:
		return rand.New(rand.NewPCG(*o.seed, *o.seed))
	default:
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
}

func annotatorFor[T any](o *options) (index.Annotator[T], error) {
	if o.annotator == nil {
		return nil, nil
	}
	a, ok := o.annotator.(index.Annotator[T])
	if !ok {
		var zero T
		return nil, fmt.Errorf("loc: annotator %T does not accept %T: %w", o.annotator, zero, ErrInvalidArgument)
	}
	return a, nil
}
