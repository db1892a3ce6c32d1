package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dbclone/dbclone/internal/clone"
	"github.com/dbclone/dbclone/internal/events"
	"github.com/dbclone/dbclone/internal/pgexec"
	"github.com/dbclone/dbclone/internal/profile"
	"github.com/dbclone/dbclone/internal/util/signalctx"
)

var cloneFlags struct {
	source    string
	dest      string
	cloneType string
	clean     bool
	backup    bool
	exclude   []string
	saved     string
	saveAs    string
	plain     bool
}

var cloneCmd = &cobra.Command{
	Use:   "clone",
	Short: "Clone a source database into a destination",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := buildCloneOptions()
		if err != nil {
			return err
		}

		if cloneFlags.saveAs != "" {
			op := profile.NewSavedOperation(cloneFlags.saveAs, opts.SourceID, opts.DestinationID,
				opts.CleanDestination, opts.CreateBackup, string(opts.CloneType))
			if err := a.store.AddSavedOperation(op); err != nil {
				return err
			}
			fmt.Printf("saved operation %q\n", cloneFlags.saveAs)
		}

		orch := &clone.Orchestrator{
			Profiles:     a.store,
			History:      a.store,
			Locator:      a.locator,
			Runner:       pgexec.ExecRunner{},
			Classifier:   pgexec.Heuristic{},
			Bus:          a.bus,
			TempDir:      a.cfg.TempDir,
			BackupsDir:   a.cfg.BackupsDir,
			MinFreeBytes: a.cfg.MinFreeTempMB * 1024 * 1024,
			Jobs:         a.cfg.RestoreJobs,
		}

		ctx, cancel, _ := signalctx.WithSignals(cmd.Context())
		defer cancel()

		progCh, logCh, err := subscribeRun(ctx, events.TopicCloneProgress, events.TopicCloneLog)
		if err != nil {
			return err
		}

		run, err := orch.Start(ctx, opts)
		if err != nil {
			return err
		}
		fmt.Printf("clone started, run id %s\n", run.ID)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			final, err := renderRun(gctx, "clone", progCh, logCh, cloneFlags.plain)
			if err != nil {
				return err
			}
			if final.IsError {
				return fmt.Errorf("clone failed: %s", final.Message)
			}
			return nil
		})

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
		fmt.Printf("clone finished, run id %s (see 'dbclone history show %s')\n", run.ID, run.ID)
		return nil
	},
}

func buildCloneOptions() (clone.Options, error) {
	if cloneFlags.saved != "" {
		op, err := a.store.SavedOperationByName(cloneFlags.saved)
		if err != nil {
			return clone.Options{}, err
		}
		ct, err := clone.ParseCloneType(op.CloneType)
		if err != nil {
			return clone.Options{}, err
		}
		return clone.Options{
			SourceID:         op.SourceID,
			DestinationID:    op.DestinationID,
			CleanDestination: op.CleanDestination,
			CreateBackup:     op.CreateBackup,
			CloneType:        ct,
			ExcludeTables:    cloneFlags.exclude,
		}, nil
	}

	source, err := resolveProfile(cloneFlags.source)
	if err != nil {
		return clone.Options{}, err
	}
	dest, err := resolveProfile(cloneFlags.dest)
	if err != nil {
		return clone.Options{}, err
	}
	ct, err := clone.ParseCloneType(cloneFlags.cloneType)
	if err != nil {
		return clone.Options{}, err
	}
	return clone.Options{
		SourceID:         source.ID,
		DestinationID:    dest.ID,
		CleanDestination: cloneFlags.clean,
		CreateBackup:     cloneFlags.backup,
		CloneType:        ct,
		ExcludeTables:    cloneFlags.exclude,
	}, nil
}

func init() {
	f := cloneCmd.Flags()
	f.StringVar(&cloneFlags.source, "source", "", "Source profile name or id")
	f.StringVar(&cloneFlags.dest, "dest", "", "Destination profile name or id")
	f.StringVar(&cloneFlags.cloneType, "type", "both", "Clone type: structure|data|both")
	f.BoolVar(&cloneFlags.clean, "clean", false, "Clean destination before restore")
	f.BoolVar(&cloneFlags.backup, "backup", false, "Back up destination before any destructive step")
	f.StringArrayVar(&cloneFlags.exclude, "exclude-table", nil, "Table to exclude from the dump (repeatable)")
	f.StringVar(&cloneFlags.saved, "saved", "", "Replay a saved operation by name")
	f.StringVar(&cloneFlags.saveAs, "save-as", "", "Save these parameters as a named operation")
	f.BoolVar(&cloneFlags.plain, "plain", false, "Line-oriented output instead of a progress bar")

	cloneCmd.MarkFlagsMutuallyExclusive("saved", "source")
	RootCmd.AddCommand(cloneCmd)
}
