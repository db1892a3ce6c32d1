package cli

import (
	"fmt"
	"os"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dbclone/dbclone/internal/events"
	"github.com/dbclone/dbclone/internal/pgexec"
	"github.com/dbclone/dbclone/internal/schema"
	"github.com/dbclone/dbclone/internal/util/signalctx"
)

var schemaFlags struct {
	profile string
	schemas []string
	tables  []string
	output  string
	plain   bool

	noComments    bool
	noIndexes     bool
	noConstraints bool
	noTriggers    bool
	noSequences   bool
	noTypes       bool
	noFunctions   bool
	noViews       bool
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Export a filtered schema-only dump",
	RunE: func(cmd *cobra.Command, args []string) error {
		prof, err := resolveProfile(schemaFlags.profile)
		if err != nil {
			return err
		}

		filter := schema.AllIncluded()
		filter.IncludeComments = !schemaFlags.noComments
		filter.IncludeIndexes = !schemaFlags.noIndexes
		filter.IncludeConstraints = !schemaFlags.noConstraints
		filter.IncludeTriggers = !schemaFlags.noTriggers
		filter.IncludeSequences = !schemaFlags.noSequences
		filter.IncludeTypes = !schemaFlags.noTypes
		filter.IncludeFunctions = !schemaFlags.noFunctions
		filter.IncludeViews = !schemaFlags.noViews

		exporter := &schema.Exporter{
			Profiles: a.store,
			Locator:  a.locator,
			Runner:   pgexec.ExecRunner{},
			Bus:      a.bus,
		}

		ctx, cancel, _ := signalctx.WithSignals(cmd.Context())
		defer cancel()

		// with no output file the SQL goes to stdout, so keep stdout clean
		toStdout := schemaFlags.output == ""

		var progCh, logCh <-chan *message.Message
		if !toStdout {
			progCh, logCh, err = subscribeRun(ctx, events.TopicSchemaProgress, events.TopicSchemaLog)
			if err != nil {
				return err
			}
		}

		run, err := exporter.Start(ctx, schema.ExportOptions{
			ProfileID:     prof.ID,
			Schemas:       schemaFlags.schemas,
			Tables:        schemaFlags.tables,
			FilterOptions: filter,
			OutputPath:    schemaFlags.output,
		})
		if err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		if !toStdout {
			g.Go(func() error {
				_, err := renderRun(gctx, "schema", progCh, logCh, schemaFlags.plain)
				return err
			})
		}
		g.Go(func() error {
			select {
			case <-run.Done():
				return run.Err()
			case <-gctx.Done():
				run.Cancel()
				<-run.Done()
				return run.Err()
			}
		})
		if err := g.Wait(); err != nil {
			return err
		}

		if toStdout {
			fmt.Fprint(os.Stdout, run.SQL())
			if run.Excluded() > 0 {
				fmt.Fprintf(os.Stderr, "excluded %d statements\n", run.Excluded())
			}
		} else {
			fmt.Printf("schema written to %s (%d statements excluded)\n", schemaFlags.output, run.Excluded())
		}
		return nil
	},
}

func init() {
	f := schemaCmd.Flags()
	f.StringVar(&schemaFlags.profile, "profile", "", "Profile name or id to export from")
	f.StringArrayVar(&schemaFlags.schemas, "schema", nil, "Schema to include (repeatable, default all)")
	f.StringArrayVar(&schemaFlags.tables, "table", nil, "Table to include (repeatable, default all)")
	f.StringVarP(&schemaFlags.output, "output", "o", "", "Output file (default stdout)")
	f.BoolVar(&schemaFlags.plain, "plain", false, "Line-oriented output instead of a progress bar")

	f.BoolVar(&schemaFlags.noComments, "no-comments", false, "Strip COMMENT ON statements")
	f.BoolVar(&schemaFlags.noIndexes, "no-indexes", false, "Strip CREATE [UNIQUE] INDEX statements")
	f.BoolVar(&schemaFlags.noConstraints, "no-constraints", false, "Strip table and foreign-key constraints")
	f.BoolVar(&schemaFlags.noTriggers, "no-triggers", false, "Strip CREATE TRIGGER statements")
	f.BoolVar(&schemaFlags.noSequences, "no-sequences", false, "Strip sequences and setval calls")
	f.BoolVar(&schemaFlags.noTypes, "no-types", false, "Strip CREATE TYPE statements")
	f.BoolVar(&schemaFlags.noFunctions, "no-functions", false, "Strip functions and procedures")
	f.BoolVar(&schemaFlags.noViews, "no-views", false, "Strip CREATE VIEW statements")

	_ = schemaCmd.MarkFlagRequired("profile")
	RootCmd.AddCommand(schemaCmd)
}
