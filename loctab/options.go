package loctab

import (
	"runtime"
	"strconv"
	"strings"

	"github.com/viant/sqlite-loc/index/loc"
)

// Index kinds selectable with the index= module argument.
const (
	indexLoc   = "loc"
	indexBrute = "brute"
	indexCover = "cover"
	indexAuto  = "auto"
)

type tableOptions struct {
	ratio      int
	k          int
	seed       *uint64
	parallel   int
	provenance bool
	kind       string
	coverBase  float64
}

// resolveKind picks the index built for a dataset of n rows. auto scans
// datasets smaller than one cluster and clusters the rest.
func (o tableOptions) resolveKind(n int) string {
	switch o.kind {
	case indexBrute, indexCover:
		return o.kind
	case indexAuto:
		ratio := o.ratio
		if ratio <= 0 {
			ratio = loc.DefaultCentroidRatio
		}
		if n < ratio {
			return indexBrute
		}
	}
	return indexLoc
}

// persisted reports whether indexes of this table may be stored as blobs.
func (o tableOptions) persisted() bool {
	return o.kind != indexBrute && o.kind != indexCover
}

func (o tableOptions) defaultK() int {
	if o.k > 0 {
		return o.k
	}
	return loc.DefaultK
}

func (o tableOptions) indexOptions() []loc.Option {
	opts := []loc.Option{loc.WithLogger(logger())}
	if o.ratio > 0 {
		opts = append(opts, loc.WithCentroidRatio(o.ratio))
	}
	if o.k > 0 {
		opts = append(opts, loc.WithK(o.k))
	}
	if o.seed != nil {
		opts = append(opts, loc.WithSeed(*o.seed))
	}
	if o.parallel > 0 {
		opts = append(opts, loc.WithBuildParallelism(o.parallel))
	}
	return opts
}

// parseTableOptions reads key=value module arguments. Unknown keys and
// malformed values are ignored.
func parseTableOptions(args []string) tableOptions {
	var opts tableOptions
	for _, raw := range args {
		parts := strings.SplitN(strings.TrimSpace(raw), "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(parts[0]))
		val := strings.Trim(strings.TrimSpace(parts[1]), `'"`)
		switch key {
		case "ratio", "centroid_ratio":
			if n, err := strconv.Atoi(val); err == nil && n > 0 {
				opts.ratio = n
			}
		case "k":
			if n, err := strconv.Atoi(val); err == nil && n > 0 {
				opts.k = n
			}
		case "seed":
			if n, err := strconv.ParseUint(val, 10, 64); err == nil {
				opts.seed = &n
			}
		case "parallel":
			switch lower := strings.ToLower(val); lower {
			case "", "0", "off":
				opts.parallel = 1
			case "auto":
				opts.parallel = runtime.GOMAXPROCS(0)
			default:
				if n, err := strconv.Atoi(lower); err == nil && n > 0 {
					opts.parallel = n
				}
			}
		case "index":
			switch lower := strings.ToLower(val); lower {
			case indexLoc, indexBrute, indexCover, indexAuto:
				opts.kind = lower
			}
		case "cover_base":
			if f, err := strconv.ParseFloat(val, 64); err == nil && f > 1 {
				opts.coverBase = f
			}
		case "provenance":
			opts.provenance, _ = strconv.ParseBool(val)
			if strings.EqualFold(val, "on") {
				opts.provenance = true
			}
		}
	}
	return opts
}
