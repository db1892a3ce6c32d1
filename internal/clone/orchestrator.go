// Package clone implements the staged pipeline that turns a clone request
// into an ordered sequence of pg_dump/psql/pg_restore invocations, classifies
// their output, streams progress events and records durable run history.
package clone

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dbclone/dbclone/internal/events"
	"github.com/dbclone/dbclone/internal/pgexec"
	"github.com/dbclone/dbclone/internal/profile"
	"github.com/dbclone/dbclone/internal/util/disk"
)

// ProfileSource resolves profile references; satisfied by *store.Store.
type ProfileSource interface {
	ProfileByID(id string) (profile.ConnectionProfile, error)
}

// ToolLocator resolves the three client tools; satisfied by *pgtools.Locator.
type ToolLocator interface {
	LocateAll() (pgDump, psql, pgRestore string, err error)
}

// Orchestrator wires the collaborators of the clone pipeline. All
// collaborator fields are required; TempDir, Jobs and MinFreeBytes may be
// left zero to fall back to the system temp dir, the CPU-derived job count
// and no space check respectively.
type Orchestrator struct {
	Profiles   ProfileSource
	History    HistoryStore
	Locator    ToolLocator
	Runner     pgexec.Runner
	Classifier pgexec.Classifier
	Bus        *events.Bus

	TempDir    string // dump scratch space, default os.TempDir()
	BackupsDir string // where backup-stage dumps land

	// MinFreeBytes triggers a non-fatal warning during Preparing when the
	// temp filesystem has less free space.
	MinFreeBytes uint64

	// Jobs overrides the CPU-derived pg_restore parallelism when > 0.
	Jobs int
}

type toolSet struct {
	pgDump    string
	psql      string
	pgRestore string
}

func (o *Orchestrator) locateTools() (toolSet, error) {
	dump, psql, restore, err := o.Locator.LocateAll()
	if err != nil {
		return toolSet{}, err
	}
	return toolSet{pgDump: dump, psql: psql, pgRestore: restore}, nil
}

func (o *Orchestrator) emitProgress(p Progress) {
	o.Bus.Publish(events.TopicCloneProgress, p)
}

func (o *Orchestrator) tempDir() string {
	if o.TempDir != "" {
		return o.TempDir
	}
	return os.TempDir()
}

func (o *Orchestrator) jobs() int {
	if o.Jobs > 0 {
		return clampJobs(o.Jobs)
	}
	return ParallelJobs()
}

// execute runs all stages in strict sequence. Any returned error aborts the
// run; remaining stages are skipped.
func (o *Orchestrator) execute(ctx context.Context, tools toolSet, source, destination profile.ConnectionProfile, opts Options, entry *HistoryEntry) error {
	addLog := func(line string) {
		o.Bus.PublishLog(events.TopicCloneLog, line)
		entry.AddLog(line)
	}

	// Stage: Preparing
	o.emitProgress(NewProgress("preparing", 5, "Preparing clone operation..."))
	addLog(fmt.Sprintf("[INFO] Starting clone from '%s' to '%s'", source.Name, destination.Name))
	addLog(fmt.Sprintf("[INFO] Clone type: %s", opts.CloneType))
	o.probeTempSpace(addLog)

	// Stage: Backup (best-effort)
	if opts.CreateBackup {
		o.emitProgress(NewProgress("backup", 15, "Creating backup of destination..."))
		if err := o.backupDestination(ctx, tools, destination, addLog); err != nil {
			return err
		}
	}

	// Stage: Cleaning (best-effort)
	if opts.CleanDestination {
		if err := o.cleanDestination(ctx, tools, destination, opts.CloneType, addLog); err != nil {
			return err
		}
	}

	// Stage: Dumping
	o.emitProgress(NewProgress("dumping", 40, "Dumping source database..."))
	dumpPath, err := o.dumpSource(ctx, tools, source, opts, addLog)
	if err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(dumpPath); err != nil && !os.IsNotExist(err) {
			slog.Warn("remove dump file", "path", dumpPath, "err", err)
		}
	}()

	// Stage: Restoring
	if err := o.restoreDestination(ctx, tools, destination, opts.CloneType, dumpPath, addLog); err != nil {
		return err
	}

	// Stage: Verifying (informational, never aborts)
	o.emitProgress(NewProgress("verifying", 90, "Verifying clone..."))
	addLog("[INFO] Verifying clone...")
	count := o.verifyDestination(ctx, tools, destination, addLog)
	addLog(fmt.Sprintf("[SUCCESS] Verification complete. Tables in destination: %d", count))

	return nil
}

// probeTempSpace checks free space on the dump scratch filesystem; low space
// is a warning, never an abort.
func (o *Orchestrator) probeTempSpace(addLog func(string)) {
	if o.MinFreeBytes == 0 {
		return
	}
	if err := disk.EnsureSpace(o.tempDir(), o.MinFreeBytes); err != nil {
		addLog(fmt.Sprintf("[WARNING] %v", err))
	}
}

func (o *Orchestrator) backupDestination(ctx context.Context, tools toolSet, destination profile.ConnectionProfile, addLog func(string)) error {
	addLog("[INFO] Creating backup of destination database...")

	name := fmt.Sprintf("%s_backup_%s.sql", destination.Database, time.Now().Format("20060102_150405"))
	if err := os.MkdirAll(o.BackupsDir, 0o755); err != nil {
		return fmt.Errorf("create backups dir: %w", err)
	}
	backupPath := filepath.Join(o.BackupsDir, name)

	res := o.Runner.Run(ctx, pgexec.Command{
		Bin:  tools.pgDump,
		Args: []string{"-d", destination.ConnInfo(), "-f", backupPath},
		Env:  destination.Env(),
	})
	if !res.Launched() {
		return fmt.Errorf("launch backup pg_dump: %w", res.Err)
	}

	v := o.Classifier.Classify(tools.pgDump, pgexec.StageBackup, res)
	if v.Outcome == pgexec.Success {
		addLog(fmt.Sprintf("[SUCCESS] Backup created: %s", backupPath))
	} else {
		addLog(fmt.Sprintf("[WARNING] Backup warning: %s", v.Message))
	}
	return nil
}

// cleanDestination empties the destination. Data-only clones truncate so the
// schema the subsequent data restore needs stays in place; structure/both
// clones drop tables entirely.
func (o *Orchestrator) cleanDestination(ctx context.Context, tools toolSet, destination profile.ConnectionProfile, ct CloneType, addLog func(string)) error {
	query := dropTablesSQL
	if ct == Data {
		query = truncateTablesSQL
		o.emitProgress(NewProgress("cleaning", 25, "Truncating destination tables..."))
		addLog("[INFO] Truncating destination tables (preserving structure)...")
	} else {
		o.emitProgress(NewProgress("cleaning", 25, "Cleaning destination database..."))
		addLog("[INFO] Dropping destination tables...")
	}

	res := o.Runner.Run(ctx, pgexec.Command{
		Bin:  tools.psql,
		Args: []string{"-d", destination.ConnInfo(), "-c", query},
		Env:  destination.Env(),
	})
	if !res.Launched() {
		return fmt.Errorf("launch clean psql: %w", res.Err)
	}

	v := o.Classifier.Classify(tools.psql, pgexec.StageClean, res)
	switch {
	case v.Outcome == pgexec.Success && ct == Data:
		addLog("[SUCCESS] Destination tables truncated")
	case v.Outcome == pgexec.Success:
		addLog("[SUCCESS] Destination database cleaned")
	default:
		addLog(fmt.Sprintf("[WARNING] Clean warning: %s", v.Message))
	}
	return nil
}

// dumpSource exports the source database into a uniquely named temp file and
// returns its path. Format follows UseCustomFormat: custom archives enable
// the parallel pg_restore branch, plain SQL feeds the psql branch.
func (o *Orchestrator) dumpSource(ctx context.Context, tools toolSet, source profile.ConnectionProfile, opts Options, addLog func(string)) (string, error) {
	useCustom := UseCustomFormat(opts.CloneType)
	if useCustom {
		addLog("[INFO] Using custom format with parallel restore...")
		addLog(fmt.Sprintf("[INFO] Will use %d parallel jobs for restore", o.jobs()))
	} else {
		addLog("[INFO] Using plain SQL format for data-only clone...")
	}

	args := []string{"-d", source.ConnInfo()}
	if useCustom {
		// light compression, faster over remote links
		args = append(args, "-Fc", "-Z", "1")
	} else {
		args = append(args, "-Fp")
	}

	switch opts.CloneType {
	case Structure:
		args = append(args, "--schema-only")
		addLog("[INFO] Dumping schema only")
	case Data:
		args = append(args, "--data-only", "--disable-triggers")
		addLog("[INFO] Dumping data only")
	case Both:
		addLog("[INFO] Dumping schema and data")
	}

	for _, table := range opts.ExcludeTables {
		args = append(args, "--exclude-table", table)
		addLog(fmt.Sprintf("[INFO] Excluding table: %s", table))
	}

	ext := "sql"
	if useCustom {
		ext = "dump"
	}
	dumpPath := filepath.Join(o.tempDir(), fmt.Sprintf("pg_clone_%s.%s", uuid.NewString(), ext))
	args = append(args, "-f", dumpPath)

	start := time.Now()
	res := o.Runner.Run(ctx, pgexec.Command{Bin: tools.pgDump, Args: args, Env: source.Env()})
	if !res.Launched() {
		return "", fmt.Errorf("launch pg_dump: %w", res.Err)
	}

	v := o.Classifier.Classify(tools.pgDump, pgexec.StageDump, res)
	if v.Outcome == pgexec.Fatal {
		addLog(fmt.Sprintf("[ERROR] Dump failed: %s", v.Message))
		_ = os.Remove(dumpPath)
		return "", fmt.Errorf("failed to dump source database: %s", v.Message)
	}

	addLog(fmt.Sprintf("[SUCCESS] Source database dumped in %.1fs", time.Since(start).Seconds()))
	if info, err := os.Stat(dumpPath); err == nil {
		addLog(fmt.Sprintf("[INFO] Dump file size: %.2f MB", float64(info.Size())/1024.0/1024.0))
	}
	return dumpPath, nil
}

func (o *Orchestrator) restoreDestination(ctx context.Context, tools toolSet, destination profile.ConnectionProfile, ct CloneType, dumpPath string, addLog func(string)) error {
	start := time.Now()

	if UseCustomFormat(ct) {
		if err := o.restoreCustom(ctx, tools, destination, dumpPath, addLog); err != nil {
			return err
		}
	} else {
		if err := o.restorePlain(ctx, tools, destination, dumpPath, addLog); err != nil {
			return err
		}
	}

	addLog(fmt.Sprintf("[SUCCESS] Database restored in %.1fs", time.Since(start).Seconds()))
	return nil
}

// restoreCustom replays a custom-format archive with pg_restore -j.
func (o *Orchestrator) restoreCustom(ctx context.Context, tools toolSet, destination profile.ConnectionProfile, dumpPath string, addLog func(string)) error {
	jobs := o.jobs()
	o.emitProgress(NewProgress("restoring", 70, fmt.Sprintf("Restoring with %d parallel jobs...", jobs)))
	addLog(fmt.Sprintf("[INFO] Restoring with pg_restore (%d parallel jobs)...", jobs))

	res := o.Runner.Run(ctx, pgexec.Command{
		Bin: tools.pgRestore,
		Args: []string{
			"-d", destination.ConnInfo(),
			"-j", strconv.Itoa(jobs),
			"--no-owner", "--no-privileges",
			"-v",
			dumpPath,
		},
		Env: destination.Env(),
	})
	if !res.Launched() {
		return fmt.Errorf("launch pg_restore: %w", res.Err)
	}

	v := o.Classifier.Classify(tools.pgRestore, pgexec.StageRestore, res)
	switch v.Outcome {
	case pgexec.Fatal:
		addLog(fmt.Sprintf("[ERROR] Restore errors: %s", v.Message))
		return fmt.Errorf("failed to restore to destination: %s", v.Message)
	case pgexec.SuccessWithWarnings:
		if v.Warnings > 0 {
			addLog(fmt.Sprintf("[WARNING] Restore completed with %d warnings", v.Warnings))
		}
	}
	return nil
}

// restorePlain wraps a plain-SQL dump in session tuning settings and replays
// it with psql. The augmented script is always removed afterwards.
func (o *Orchestrator) restorePlain(ctx context.Context, tools toolSet, destination profile.ConnectionProfile, dumpPath string, addLog func(string)) error {
	o.emitProgress(NewProgress("restoring", 70, "Restoring data..."))
	addLog("[INFO] Restoring with psql (optimized settings)...")

	body, err := os.ReadFile(dumpPath)
	if err != nil {
		return fmt.Errorf("read dump file: %w", err)
	}

	scriptPath := filepath.Join(o.tempDir(), fmt.Sprintf("pg_clone_optimized_%s.sql", uuid.NewString()))
	script := restorePreamble + string(body) + restorePostamble
	if err := os.WriteFile(scriptPath, []byte(script), 0o600); err != nil {
		return fmt.Errorf("write optimized script: %w", err)
	}
	defer func() {
		if err := os.Remove(scriptPath); err != nil {
			slog.Warn("remove optimized script", "path", scriptPath, "err", err)
		}
	}()

	res := o.Runner.Run(ctx, pgexec.Command{
		Bin:  tools.psql,
		Args: []string{"-d", destination.ConnInfo(), "-f", scriptPath},
		Env:  destination.Env(),
	})
	if !res.Launched() {
		return fmt.Errorf("launch psql restore: %w", res.Err)
	}

	v := o.Classifier.Classify(tools.psql, pgexec.StageRestore, res)
	switch v.Outcome {
	case pgexec.Fatal:
		addLog(fmt.Sprintf("[ERROR] Restore errors: %s", v.Message))
		return fmt.Errorf("failed to restore to destination: %s", v.Message)
	case pgexec.SuccessWithWarnings:
		addLog(fmt.Sprintf("[WARNING] Restore warnings: %s", v.Message))
	}
	return nil
}

// verifyDestination counts base tables in the destination's public schema.
// Indeterminate output is coerced to 0 with a logged warning; verification
// never fails a run.
func (o *Orchestrator) verifyDestination(ctx context.Context, tools toolSet, destination profile.ConnectionProfile, addLog func(string)) int {
	res := o.Runner.Run(ctx, pgexec.Command{
		Bin:  tools.psql,
		Args: []string{"-d", destination.ConnInfo(), "-t", "-c", verifyTableCountSQL},
		Env:  destination.Env(),
	})
	if !res.Launched() || res.ExitCode != 0 {
		addLog("[WARNING] Verification query failed; table count indeterminate")
		return 0
	}
	count, err := strconv.Atoi(strings.TrimSpace(string(res.Stdout)))
	if err != nil {
		addLog("[WARNING] Verification output unparsable; table count indeterminate")
		return 0
	}
	return count
}
