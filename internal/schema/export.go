package schema

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/dbclone/dbclone/internal/clone"
	"github.com/dbclone/dbclone/internal/events"
	"github.com/dbclone/dbclone/internal/pgexec"
	"github.com/dbclone/dbclone/internal/pgtools"
	"github.com/dbclone/dbclone/internal/profile"
)

// ExportOptions describes one schema export request.
type ExportOptions struct {
	ProfileID string   `json:"profileId"`
	Schemas   []string `json:"schemas"` // -n selections, empty means all
	Tables    []string `json:"tables"`  // -t selections, empty means all
	FilterOptions
	OutputPath string `json:"outputPath"` // "" keeps the result in memory only
}

// ProfileSource resolves profile references; satisfied by *store.Store.
type ProfileSource interface {
	ProfileByID(id string) (profile.ConnectionProfile, error)
}

// ToolLocator resolves tool executables; satisfied by *pgtools.Locator.
type ToolLocator interface {
	Locate(tool string) (string, error)
}

// Exporter runs schema-only dumps and applies the statement filter.
type Exporter struct {
	Profiles ProfileSource
	Locator  ToolLocator
	Runner   pgexec.Runner
	Bus      *events.Bus
}

// Run is the handle for one background export.
type Run struct {
	ID string

	cancel context.CancelFunc
	done   chan struct{}

	err      error
	sql      string
	excluded int
}

// Done closes when the export finishes.
func (r *Run) Done() <-chan struct{} { return r.done }

// Err returns the terminal error, nil on success. Valid after Done closes.
func (r *Run) Err() error { return r.err }

// SQL returns the filtered schema text. Valid after Done closes.
func (r *Run) SQL() string { return r.sql }

// Excluded returns how many statements the filter removed.
func (r *Run) Excluded() int { return r.excluded }

// Cancel aborts the export; the running pg_dump is killed via its context.
func (r *Run) Cancel() { r.cancel() }

// Start validates the request and launches the export in the background,
// returning immediately with a run handle.
func (e *Exporter) Start(ctx context.Context, opts ExportOptions) (*Run, error) {
	prof, err := e.Profiles.ProfileByID(opts.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("resolve profile: %w", err)
	}
	pgDump, err := e.Locator.Locate(pgtools.PgDump)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	run := &Run{
		ID:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(run.done)
		defer cancel()
		sql, excluded, err := e.export(runCtx, pgDump, prof, opts)
		run.sql, run.excluded, run.err = sql, excluded, err
	}()

	return run, nil
}

func (e *Exporter) export(ctx context.Context, pgDump string, prof profile.ConnectionProfile, opts ExportOptions) (string, int, error) {
	progress := func(stage string, pct int, msg string) {
		e.Bus.Publish(events.TopicSchemaProgress, clone.NewProgress(stage, pct, msg))
	}
	logLine := func(line string) {
		e.Bus.PublishLog(events.TopicSchemaLog, line)
	}
	fail := func(err error) (string, int, error) {
		e.Bus.Publish(events.TopicSchemaProgress, clone.ErrorProgress(err.Error()))
		return "", 0, err
	}

	progress("preparing", 10, "Preparing schema export...")
	logLine(fmt.Sprintf("[INFO] Starting schema export from '%s'", prof.Name))
	logLine(fmt.Sprintf("[INFO] Database: %s:%d/%s", prof.Host, prof.Port, prof.Database))

	progress("dumping", 30, "Extracting database schema...")
	logLine("[INFO] Dumping schema only (no data)...")

	args := []string{"-d", prof.ConnInfo(), "--schema-only", "-Fp"}
	for _, s := range opts.Schemas {
		args = append(args, "-n", s)
	}
	for _, t := range opts.Tables {
		args = append(args, "-t", t)
	}

	res := e.Runner.Run(ctx, pgexec.Command{Bin: pgDump, Args: args, Env: prof.Env()})
	if !res.Launched() {
		return fail(fmt.Errorf("launch pg_dump: %w", res.Err))
	}
	if res.ExitCode != 0 {
		stderr := string(res.Stderr)
		logLine(fmt.Sprintf("[ERROR] Schema dump failed: %s", stderr))
		return fail(fmt.Errorf("schema dump failed: %s", stderr))
	}

	dump := string(res.Stdout)
	logLine(fmt.Sprintf("[SUCCESS] Schema extracted (%.2f KB)", float64(len(dump))/1024.0))

	progress("filtering", 60, "Filtering schema statements...")
	filtered, excluded := Filter(dump, opts.FilterOptions)
	if excluded > 0 {
		logLine(fmt.Sprintf("[INFO] Excluded %d statements by filter", excluded))
	}

	if opts.OutputPath != "" {
		if err := os.WriteFile(opts.OutputPath, []byte(filtered), 0o600); err != nil {
			return fail(fmt.Errorf("write schema file: %w", err))
		}
		logLine(fmt.Sprintf("[SUCCESS] Schema written to %s", opts.OutputPath))
	}

	e.Bus.Publish(events.TopicSchemaProgress, clone.CompletedProgress("Schema export completed"))
	logLine("[INFO] Schema export completed")
	return filtered, excluded, nil
}
