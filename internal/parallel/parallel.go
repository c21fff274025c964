// Package parallel provides a bounded, order-preserving parallel map used by
// index construction and batch queries.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// chunksPerWorker controls how finely the input is split so that slow items
// do not leave other workers idle.
const chunksPerWorker = 4

// Workers resolves a requested worker count; values <= 0 mean GOMAXPROCS.
func Workers(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

// Map applies fn to every element of in using at most workers goroutines and
// returns the outputs in input order. The first error returned by fn cancels
// the remaining work and is returned. Per-item failures that should not abort
// the whole map must be carried inside O instead.
func Map[I, O any](ctx context.Context, in []I, workers int, fn func(ctx context.Context, i int, v I) (O, error)) ([]O, error) {
	out := make([]O, len(in))
	if len(in) == 0 {
		return out, nil
	}
	workers = Workers(workers)
	if workers > len(in) {
		workers = len(in)
	}
	chunk := len(in) / (workers * chunksPerWorker)
	if chunk < 1 {
		chunk = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < len(in); start += chunk {
		if gctx.Err() != nil {
			break
		}
		lo, hi := start, start+chunk
		if hi > len(in) {
			hi = len(in)
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				o, err := fn(gctx, i, in[i])
				if err != nil {
					return err
				}
				out[i] = o
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
