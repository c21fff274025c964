package main

import (
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"

	"github.com/viant/sqlite-loc/config"
)

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "loc",
		Short: "List-of-Clusters similarity search over chemical formulas",
		Long: `loc builds List-of-Clusters metric indexes over chemical formulas stored
in SQLite and answers exact k-nearest-neighbour and range queries.

Settings come from --config (YAML), .env, LOC_* environment variables and
flags, in increasing order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.configure(cmd)
		},
	}
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "YAML config file")
	flags.String("db", "", "SQLite database path")
	flags.String("table", "", "formula table")
	flags.String("dataset", "", "dataset id")
	flags.String("blob-store", "", "index blob store: sqlite or badger")
	flags.String("badger-dir", "", "Badger directory (in-memory when empty)")
	flags.String("catalog", "", "YAML provenance catalog")
	flags.Bool("verbose", false, "log build and query details")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "loc v%s (%s)\n", version, commit)
		},
	})
	rootCmd.AddCommand(newBuildCmd(a), newNearestCmd(a), newWithinCmd(a))
	return rootCmd
}

// configure loads the configuration and applies flags that were set.
func (a *app) configure(cmd *cobra.Command) error {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	for name, field := range map[string]*string{
		"db":         &cfg.Database,
		"table":      &cfg.Table,
		"dataset":    &cfg.Dataset,
		"blob-store": &cfg.BlobStore,
		"badger-dir": &cfg.BadgerDir,
		"catalog":    &cfg.Catalog,
	} {
		if flags.Changed(name) {
			*field, _ = flags.GetString(name)
		}
	}
	if flags.Changed("verbose") {
		cfg.Verbose, _ = flags.GetBool("verbose")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.out = cmd.OutOrStdout()
	a.logger = log.New(io.Discard, "", 0)
	if cfg.Verbose {
		a.logger = log.New(cmd.ErrOrStderr(), "loc: ", log.LstdFlags)
	}
	return nil
}
