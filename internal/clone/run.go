package clone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Run is the caller-visible handle for one background clone. A run cannot be
// retried; cancellation kills the current tool via the exec context and the
// history entry is finalized as cancelled.
type Run struct {
	ID string

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Done closes when the run has finished and its history entry is persisted.
func (r *Run) Done() <-chan struct{} { return r.done }

// Err returns the terminal error, nil on success. Valid after Done closes.
func (r *Run) Err() error { return r.err }

// Cancel aborts the run.
func (r *Run) Cancel() { r.cancel() }

// Start validates the request and launches the clone in the background. It
// returns immediately with the run handle; the handle ID doubles as the
// history entry id. Validation failures (unknown profile, missing tool)
// abort before any destructive action and never create a history entry.
func (o *Orchestrator) Start(ctx context.Context, opts Options) (*Run, error) {
	if _, err := ParseCloneType(string(opts.CloneType)); err != nil {
		return nil, err
	}
	source, err := o.Profiles.ProfileByID(opts.SourceID)
	if err != nil {
		return nil, fmt.Errorf("source profile: %w", err)
	}
	destination, err := o.Profiles.ProfileByID(opts.DestinationID)
	if err != nil {
		return nil, fmt.Errorf("destination profile: %w", err)
	}
	tools, err := o.locateTools()
	if err != nil {
		return nil, err
	}

	entry := NewHistoryEntry(source, destination, opts.CloneType)
	runCtx, cancel := context.WithCancel(ctx)
	run := &Run{ID: entry.ID, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(run.done)
		defer cancel()

		err := o.execute(runCtx, tools, source, destination, opts, entry)
		switch {
		case err == nil:
			entry.Complete(StatusSuccess, "")
			o.emitProgress(CompletedProgress("Clone completed successfully!"))
		case errors.Is(err, context.Canceled) || runCtx.Err() != nil:
			entry.Complete(StatusCancelled, "clone cancelled")
			o.emitProgress(ErrorProgress("Clone cancelled"))
		default:
			entry.Complete(StatusError, err.Error())
			o.emitProgress(ErrorProgress(err.Error()))
		}
		run.err = err

		if perr := o.History.AppendHistory(*entry); perr != nil {
			slog.Error("persist history entry", "id", entry.ID, "err", perr)
		}
	}()

	return run, nil
}
