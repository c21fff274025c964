package loc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/viant/sqlite-loc/index"
)

var (
	// ErrInvalidArgument reports malformed build or query parameters.
	ErrInvalidArgument = index.ErrInvalidArgument
	// ErrInvalidQuery reports a query that cannot be normalised.
	ErrInvalidQuery = index.ErrInvalidQuery
	// ErrNormalization marks an item that failed to normalise during build.
	ErrNormalization = errors.New("loc: normalization failed")
	// ErrMetric marks an item whose distance to every center failed.
	ErrMetric = errors.New("loc: metric computation failed")
	// ErrNoSurvivors is returned when no item could be placed in a cluster.
	ErrNoSurvivors = errors.New("loc: no items survived build")
)

// ItemError records a single item skipped during build.
type ItemError struct {
	// ID is the position of the item in the build input.
	ID int
	// Kind is ErrNormalization or ErrMetric.
	Kind error
	Err  error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("item %d: %v: %v", e.ID, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the underlying cause to errors.Is.
func (e ItemError) Unwrap() []error { return []error{e.Kind, e.Err} }

// BuildReport summarises a build.
type BuildReport struct {
	Input    int
	Indexed  int
	Clusters int
	Skipped  []ItemError
}

// Normalization returns the number of items skipped because they failed to
// normalise.
func (r BuildReport) Normalization() int { return r.count(ErrNormalization) }

// Metric returns the number of items skipped because no center distance
// could be computed.
func (r BuildReport) Metric() int { return r.count(ErrMetric) }

func (r BuildReport) count(kind error) int {
	n := 0
	for _, s := range r.Skipped {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

// BuildError is returned when a build produced no usable index.
type BuildError struct {
	Report BuildReport
}

func (e *BuildError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "loc: build failed: %d of %d items skipped", len(e.Report.Skipped), e.Report.Input)
	if n := len(e.Report.Skipped); n > 0 {
		fmt.Fprintf(&sb, " (first: %v)", e.Report.Skipped[0])
	}
	return sb.String()
}

// Unwrap makes errors.Is(err, ErrNoSurvivors) hold, along with the kinds of
// the recorded failures.
func (e *BuildError) Unwrap() []error {
	out := []error{ErrNoSurvivors}
	if e.Report.Normalization() > 0 {
		out = append(out, ErrNormalization)
	}
	if e.Report.Metric() > 0 {
		out = append(out, ErrMetric)
	}
	return out
}
