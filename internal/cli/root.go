// Package cli builds the dbclone command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/dbclone/dbclone/internal/config"
	"github.com/dbclone/dbclone/internal/events"
	"github.com/dbclone/dbclone/internal/log"
	"github.com/dbclone/dbclone/internal/pgtools"
	"github.com/dbclone/dbclone/internal/store"
)

// app holds the wired collaborators shared by all subcommands. Assembled in
// the root PersistentPreRunE so every RunE can rely on it.
type app struct {
	cfg     *config.Config
	store   *store.Store
	bus     *events.Bus
	locator *pgtools.Locator
}

var (
	a app

	flagConfig  string
	flagVerbose bool
	flagDebug   bool
)

// RootCmd is the main entry point invoked from cmd/dbclone.
var RootCmd = &cobra.Command{
	Use:           "dbclone",
	Short:         "Clone, back up and clean PostgreSQL databases via pg_dump/psql/pg_restore",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		// flags win over config file values
		verbose := flagVerbose || cfg.Logging.Verbose
		debug := flagDebug || cfg.Logging.Debug
		log.Setup(debug, verbose)

		st, err := store.Open(cfg.DataDir)
		if err != nil {
			return err
		}

		a = app{
			cfg:     cfg,
			store:   st,
			bus:     events.NewBus(),
			locator: pgtools.NewLocator(cfg.ToolOverrides()),
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if a.bus != nil {
			_ = a.bus.Close()
		}
	},
}

// Execute parses flags and runs the selected command.
func Execute() error { return RootCmd.Execute() }

func init() {
	pf := RootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Config file path (default <data dir>/config.yaml)")
	pf.BoolVar(&flagVerbose, "verbose", false, "Verbose output")
	pf.BoolVar(&flagDebug, "debug", false, "Enable debug trace output")
}
