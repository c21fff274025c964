package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/viant/sqlite-loc/composition"
	"github.com/viant/sqlite-loc/index"
	"github.com/viant/sqlite-loc/index/loc"
	"github.com/viant/sqlite-loc/metric"
	"github.com/viant/sqlite-loc/store"
)

func newBuildCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Load formulas and build the dataset index",
		Long: `Load formulas from --input (one "id formula" or "formula" per line, '#'
comments allowed) into the formula table, then build and persist the index of
the dataset. Without --input the rows already stored are indexed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, _ := cmd.Flags().GetString("input")
			return a.runBuild(cmd.Context(), input)
		},
	}
	cmd.Flags().String("input", "", "formula file ('-' for stdin)")
	return cmd
}

func (a *app) runBuild(ctx context.Context, input string) error {
	s, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	if input != "" {
		r := io.Reader(os.Stdin)
		if input != "-" {
			f, err := os.Open(input)
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}
		rows, err := readItems(r, a.cfg.Dataset)
		if err != nil {
			return err
		}
		if err := s.items.Upsert(ctx, rows...); err != nil {
			return err
		}
	}
	idx, err := s.build(ctx)
	if err != nil {
		return err
	}
	report := idx.Report()
	fmt.Fprintf(a.out, "indexed %d of %d formulas in %d clusters (dataset %s)\n", report.Indexed, report.Input, report.Clusters, a.cfg.Dataset)
	for _, skipped := range report.Skipped {
		fmt.Fprintf(a.out, "skipped %s\n", skipped.Error())
	}
	return nil
}

// readItems parses "id formula" or "formula" lines; ids default to the line
// number.
func readItems(r io.Reader, dataset string) ([]store.Item, error) {
	var out []store.Item
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		item := store.Item{DatasetID: dataset, ID: strconv.Itoa(line), Formula: text}
		if fields := strings.Fields(text); len(fields) == 2 {
			item.ID, item.Formula = fields[0], fields[1]
		}
		out = append(out, item)
	}
	return out, scanner.Err()
}

// queryFlags holds the result filter flags shared by the query commands.
type queryFlags struct {
	experimental bool
	structure    bool
	contains     []string
	excludes     []string
}

func (q *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&q.experimental, "experimental", false, "only formulas from experimental databases")
	cmd.Flags().BoolVar(&q.structure, "structure", false, "only formulas with structures")
	cmd.Flags().StringSliceVar(&q.contains, "contains", nil, "elements every result must contain")
	cmd.Flags().StringSliceVar(&q.excludes, "exclude", nil, "elements no result may contain")
}

// filter returns nil when no flag restricts results.
func (q *queryFlags) filter() (loc.Filter, error) {
	if !q.experimental && !q.structure && len(q.contains) == 0 && len(q.excludes) == 0 {
		return nil, nil
	}
	c := &loc.Constraints{RequireExperimental: q.experimental, RequireStructure: q.structure}
	var err error
	if len(q.contains) > 0 {
		if c.MustContain, err = composition.KeySet(q.contains...); err != nil {
			return nil, err
		}
	}
	if len(q.excludes) > 0 {
		if c.MustExclude, err = composition.KeySet(q.excludes...); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func newNearestCmd(a *app) *cobra.Command {
	var q queryFlags
	cmd := &cobra.Command{
		Use:   "nearest FORMULA",
		Short: "Find the k formulas nearest to FORMULA",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k := a.cfg.K
			if cmd.Flags().Changed("k") {
				k, _ = cmd.Flags().GetInt("k")
			}
			return a.runQuery(cmd.Context(), &q, func(p loc.Parsed[string, material], f loc.Filter) ([]index.Match[material], error) {
				return p.KNearest(args[0], k, f)
			})
		},
	}
	cmd.Flags().Int("k", 0, "number of neighbours (default from config)")
	q.register(cmd)
	return cmd
}

func newWithinCmd(a *app) *cobra.Command {
	var q queryFlags
	cmd := &cobra.Command{
		Use:   "within FORMULA",
		Short: "Find every formula within --radius of FORMULA",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			radius := a.cfg.Radius
			if cmd.Flags().Changed("radius") {
				radius, _ = cmd.Flags().GetFloat64("radius")
			}
			return a.runQuery(cmd.Context(), &q, func(p loc.Parsed[string, material], f loc.Filter) ([]index.Match[material], error) {
				return p.RangeQuery(args[0], radius, f)
			})
		},
	}
	cmd.Flags().Float64("radius", 0, "search radius (default from config)")
	q.register(cmd)
	return cmd
}

type queryFunc func(loc.Parsed[string, material], loc.Filter) ([]index.Match[material], error)

func (a *app) runQuery(ctx context.Context, q *queryFlags, run queryFunc) error {
	filter, err := q.filter()
	if err != nil {
		return err
	}
	s, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	counting := metric.NewCounting[material](materialMetric, nil)
	idx, err := s.load(ctx, counting)
	if err != nil {
		return err
	}
	counting.Reset()
	matches, err := run(loc.Parsed[string, material]{Index: idx, Normalize: parseQuery}, filter)
	if err != nil {
		return err
	}
	a.logger.Printf("%d results, %d distance computations over %d formulas", len(matches), counting.Count(), idx.Len())

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFORMULA\tDISTANCE\tREF")
	for _, m := range matches {
		fmt.Fprintf(w, "%s\t%s\t%.6f\t%s\n", m.Item.ID, m.Item.Formula, m.Distance, m.Ref)
	}
	return w.Flush()
}
