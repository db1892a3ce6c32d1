package clone

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dbclone/dbclone/internal/events"
	"github.com/dbclone/dbclone/internal/pgexec"
	"github.com/dbclone/dbclone/internal/profile"
)

// fakeRunner scripts tool behavior per binary name and records every call in
// order. Unscripted binaries succeed with exit 0. A pg_dump call with -f
// writes a small dump file so the restore branch has something to read.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []pgexec.Command
	results map[string]pgexec.Result
	blockOn string // binary that waits for ctx cancellation
}

func (f *fakeRunner) Run(ctx context.Context, cmd pgexec.Command) pgexec.Result {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.mu.Unlock()

	if f.blockOn == cmd.Bin {
		<-ctx.Done()
		return pgexec.Result{Cmd: cmd.Bin, ExitCode: -1, Err: ctx.Err()}
	}

	if cmd.Bin == "pg_dump" {
		for i, a := range cmd.Args {
			if a == "-f" && i+1 < len(cmd.Args) {
				_ = os.WriteFile(cmd.Args[i+1], []byte("-- fake dump\n"), 0o600)
			}
		}
	}

	if res, ok := f.results[cmd.Bin]; ok {
		res.Cmd = cmd.Bin
		res.Args = cmd.Args
		return res
	}
	return pgexec.Result{Cmd: cmd.Bin, Args: cmd.Args, Stdout: []byte("3\n"), ExitCode: 0}
}

func (f *fakeRunner) callsFor(bin string) []pgexec.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []pgexec.Command
	for _, c := range f.calls {
		if c.Bin == bin {
			out = append(out, c)
		}
	}
	return out
}

type fakeProfiles map[string]profile.ConnectionProfile

func (f fakeProfiles) ProfileByID(id string) (profile.ConnectionProfile, error) {
	p, ok := f[id]
	if !ok {
		return profile.ConnectionProfile{}, fmt.Errorf("profile %s: not found", id)
	}
	return p, nil
}

type fakeHistory struct {
	mu      sync.Mutex
	entries []HistoryEntry
}

func (f *fakeHistory) AppendHistory(e HistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeHistory) last(t *testing.T) HistoryEntry {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.entries) == 0 {
		t.Fatalf("no history entry persisted")
	}
	return f.entries[len(f.entries)-1]
}

type fakeLocator struct{ err error }

func (f fakeLocator) LocateAll() (string, string, string, error) {
	if f.err != nil {
		return "", "", "", f.err
	}
	return "pg_dump", "psql", "pg_restore", nil
}

func testProfiles() fakeProfiles {
	src := profile.New("Alpha", "src-host", 5432, "appdb", "u", "pw", false)
	src.ID = "src"
	dst := profile.New("Beta", "dst-host", 5432, "appdb", "u", "pw", false)
	dst.ID = "dst"
	return fakeProfiles{"src": src, "dst": dst}
}

func newTestOrchestrator(t *testing.T, runner pgexec.Runner) (*Orchestrator, *fakeHistory, *events.Bus) {
	t.Helper()
	bus := events.NewBus()
	t.Cleanup(func() { _ = bus.Close() })
	hist := &fakeHistory{}
	o := &Orchestrator{
		Profiles:   testProfiles(),
		History:    hist,
		Locator:    fakeLocator{},
		Runner:     runner,
		Classifier: pgexec.Heuristic{},
		Bus:        bus,
		TempDir:    t.TempDir(),
		BackupsDir: t.TempDir(),
		Jobs:       4,
	}
	return o, hist, bus
}

func waitRun(t *testing.T, run *Run) {
	t.Helper()
	select {
	case <-run.Done():
	case <-time.After(10 * time.Second):
		t.Fatalf("run did not finish")
	}
}

func hasArgPair(args []string, flag, value string) bool {
	for i, a := range args {
		if a == flag && i+1 < len(args) && args[i+1] == value {
			return true
		}
	}
	return false
}

func TestDataCloneScenario(t *testing.T) {
	runner := &fakeRunner{}
	o, hist, bus := newTestOrchestrator(t, runner)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	progressCh, err := bus.Subscribe(ctx, events.TopicCloneProgress)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	run, err := o.Start(ctx, Options{
		SourceID:         "src",
		DestinationID:    "dst",
		CleanDestination: true,
		CreateBackup:     false,
		CloneType:        Data,
		ExcludeTables:    []string{"audit_log"},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitRun(t, run)
	if run.Err() != nil {
		t.Fatalf("run failed: %v", run.Err())
	}

	// progress sequence: preparing(5) cleaning(25) dumping(40) restoring(70)
	// verifying(90) completed(100); no backup stage
	var stages []string
	var percents []int
	for len(stages) < 6 {
		select {
		case msg := <-progressCh:
			p, err := events.Decode[Progress](msg)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			stages = append(stages, p.Stage)
			percents = append(percents, p.Progress)
		case <-time.After(5 * time.Second):
			t.Fatalf("progress stream stalled after %v", stages)
		}
	}
	wantStages := []string{"preparing", "cleaning", "dumping", "restoring", "verifying", "completed"}
	wantPercents := []int{5, 25, 40, 70, 90, 100}
	for i := range wantStages {
		if stages[i] != wantStages[i] || percents[i] != wantPercents[i] {
			t.Fatalf("stage %d = %s(%d), want %s(%d)", i, stages[i], percents[i], wantStages[i], wantPercents[i])
		}
	}

	// cleaning used truncate, never drop
	cleanCalls := runner.callsFor("psql")
	if len(cleanCalls) == 0 {
		t.Fatalf("psql never invoked")
	}
	cleanSQL := cleanCalls[0].Args[len(cleanCalls[0].Args)-1]
	if !strings.Contains(cleanSQL, "TRUNCATE TABLE") || strings.Contains(cleanSQL, "DROP TABLE") {
		t.Fatalf("data clone cleaning must truncate, got: %s", cleanSQL)
	}

	// dump used plain format with data-only flags and the exclusion
	dumps := runner.callsFor("pg_dump")
	if len(dumps) != 1 {
		t.Fatalf("pg_dump called %d times, want 1", len(dumps))
	}
	dargs := dumps[0].Args
	for _, want := range []string{"-Fp", "--data-only", "--disable-triggers"} {
		found := false
		for _, a := range dargs {
			if a == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("dump args missing %s: %v", want, dargs)
		}
	}
	if !hasArgPair(dargs, "--exclude-table", "audit_log") {
		t.Fatalf("dump args missing table exclusion: %v", dargs)
	}

	// restore went through the psql tuning-wrapper branch, not pg_restore
	if len(runner.callsFor("pg_restore")) != 0 {
		t.Fatalf("pg_restore used for a data-only clone")
	}
	var sawScriptRestore bool
	for _, c := range runner.callsFor("psql") {
		for _, a := range c.Args {
			if a == "-f" {
				sawScriptRestore = true
			}
		}
	}
	if !sawScriptRestore {
		t.Fatalf("psql script restore not invoked")
	}

	// credentials in env, never argv
	for _, c := range runner.calls {
		for _, a := range c.Args {
			if strings.Contains(a, "pw") {
				t.Fatalf("password leaked into argv: %v", c.Args)
			}
		}
	}

	entry := hist.last(t)
	if entry.ID != run.ID {
		t.Fatalf("history id %s != run id %s", entry.ID, run.ID)
	}
	if entry.Status != StatusSuccess || entry.CloneType != Data {
		t.Fatalf("entry = %s/%s, want success/data", entry.Status, entry.CloneType)
	}
	if entry.CompletedAt == nil || entry.CompletedAt.Before(entry.StartedAt) {
		t.Fatalf("completedAt not set or before startedAt")
	}
	if entry.Duration == nil || *entry.Duration < 0 {
		t.Fatalf("duration missing")
	}
}

func TestStructureCloneUsesDropAndParallelRestore(t *testing.T) {
	runner := &fakeRunner{}
	o, hist, _ := newTestOrchestrator(t, runner)

	run, err := o.Start(context.Background(), Options{
		SourceID:         "src",
		DestinationID:    "dst",
		CleanDestination: true,
		CloneType:        Structure,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitRun(t, run)
	if run.Err() != nil {
		t.Fatalf("run failed: %v", run.Err())
	}

	cleanSQL := runner.callsFor("psql")[0].Args[len(runner.callsFor("psql")[0].Args)-1]
	if !strings.Contains(cleanSQL, "DROP TABLE IF EXISTS") || strings.Contains(cleanSQL, "TRUNCATE") {
		t.Fatalf("structure clone cleaning must drop, got: %s", cleanSQL)
	}

	dargs := runner.callsFor("pg_dump")[0].Args
	var custom, schemaOnly bool
	for _, a := range dargs {
		if a == "-Fc" {
			custom = true
		}
		if a == "--schema-only" {
			schemaOnly = true
		}
	}
	if !custom || !schemaOnly {
		t.Fatalf("dump args missing -Fc/--schema-only: %v", dargs)
	}

	restores := runner.callsFor("pg_restore")
	if len(restores) != 1 {
		t.Fatalf("pg_restore called %d times, want 1", len(restores))
	}
	if !hasArgPair(restores[0].Args, "-j", "4") {
		t.Fatalf("pg_restore missing -j 4: %v", restores[0].Args)
	}

	if hist.last(t).Status != StatusSuccess {
		t.Fatalf("status = %s", hist.last(t).Status)
	}
}

func TestBackupStageRunsWhenRequested(t *testing.T) {
	runner := &fakeRunner{}
	o, _, _ := newTestOrchestrator(t, runner)

	run, err := o.Start(context.Background(), Options{
		SourceID:      "src",
		DestinationID: "dst",
		CreateBackup:  true,
		CloneType:     Both,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitRun(t, run)

	dumps := runner.callsFor("pg_dump")
	if len(dumps) != 2 {
		t.Fatalf("pg_dump called %d times, want 2 (backup + dump)", len(dumps))
	}
	// the backup dump targets the destination
	if !hasArgPair(dumps[0].Args, "-d", "host=dst-host port=5432 dbname=appdb user=u") {
		t.Fatalf("backup not aimed at destination: %v", dumps[0].Args)
	}
}

func TestFailingDumpAbortsRun(t *testing.T) {
	runner := &fakeRunner{results: map[string]pgexec.Result{
		"pg_dump": {ExitCode: 1, Stderr: []byte("pg_dump: error: connection to server failed")},
	}}
	o, hist, _ := newTestOrchestrator(t, runner)

	run, err := o.Start(context.Background(), Options{
		SourceID:      "src",
		DestinationID: "dst",
		CloneType:     Both,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitRun(t, run)
	if run.Err() == nil {
		t.Fatalf("run succeeded despite failing dump")
	}

	entry := hist.last(t)
	if entry.Status != StatusError {
		t.Fatalf("status = %s, want error", entry.Status)
	}
	if entry.ErrorMessage == "" {
		t.Fatalf("errorMessage empty")
	}
	for _, l := range entry.Logs {
		if strings.Contains(l, "Restoring") || strings.Contains(l, "Verifying") {
			t.Fatalf("log after fatal dump: %q", l)
		}
	}
	if len(runner.callsFor("pg_restore")) != 0 {
		t.Fatalf("restore ran after fatal dump")
	}
}

func TestRestoreWarningsAreNonFatal(t *testing.T) {
	runner := &fakeRunner{results: map[string]pgexec.Result{
		"pg_restore": {
			ExitCode: 1,
			Stderr:   []byte("pg_restore: warning: errors ignored on restore: 3\npg_restore: warning: no owner\n"),
		},
	}}
	o, hist, _ := newTestOrchestrator(t, runner)

	run, err := o.Start(context.Background(), Options{
		SourceID:      "src",
		DestinationID: "dst",
		CloneType:     Both,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitRun(t, run)
	if run.Err() != nil {
		t.Fatalf("warning-only restore failed the run: %v", run.Err())
	}

	entry := hist.last(t)
	if entry.Status != StatusSuccess {
		t.Fatalf("status = %s, want success", entry.Status)
	}
	var warned bool
	for _, l := range entry.Logs {
		if strings.Contains(l, "Restore completed with 2 warnings") {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("warning count line missing from logs: %v", entry.Logs)
	}
}

func TestStartRejectsUnknownProfile(t *testing.T) {
	runner := &fakeRunner{}
	o, hist, _ := newTestOrchestrator(t, runner)

	if _, err := o.Start(context.Background(), Options{
		SourceID:      "missing",
		DestinationID: "dst",
		CloneType:     Both,
	}); err == nil {
		t.Fatalf("unknown source accepted")
	}
	if len(runner.calls) != 0 {
		t.Fatalf("tools invoked before validation passed")
	}
	hist.mu.Lock()
	defer hist.mu.Unlock()
	if len(hist.entries) != 0 {
		t.Fatalf("history entry created for rejected request")
	}
}

func TestStartRejectsMissingTool(t *testing.T) {
	runner := &fakeRunner{}
	o, _, _ := newTestOrchestrator(t, runner)
	o.Locator = fakeLocator{err: errors.New("pg_restore not found")}

	if _, err := o.Start(context.Background(), Options{
		SourceID:      "src",
		DestinationID: "dst",
		CloneType:     Both,
	}); err == nil {
		t.Fatalf("missing tool accepted")
	}
}

func TestStartRejectsBadCloneType(t *testing.T) {
	runner := &fakeRunner{}
	o, _, _ := newTestOrchestrator(t, runner)

	if _, err := o.Start(context.Background(), Options{
		SourceID:      "src",
		DestinationID: "dst",
		CloneType:     "everything",
	}); err == nil {
		t.Fatalf("invalid clone type accepted")
	}
}

func TestCancelFinalizesAsCancelled(t *testing.T) {
	runner := &fakeRunner{blockOn: "pg_dump"}
	o, hist, _ := newTestOrchestrator(t, runner)

	run, err := o.Start(context.Background(), Options{
		SourceID:      "src",
		DestinationID: "dst",
		CloneType:     Both,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	run.Cancel()
	waitRun(t, run)

	if hist.last(t).Status != StatusCancelled {
		t.Fatalf("status = %s, want cancelled", hist.last(t).Status)
	}
}

func TestVerifyCoercesUnparsableCountToZero(t *testing.T) {
	runner := &fakeRunner{results: map[string]pgexec.Result{
		"psql": {ExitCode: 0, Stdout: []byte("not-a-number")},
	}}
	o, hist, _ := newTestOrchestrator(t, runner)

	run, err := o.Start(context.Background(), Options{
		SourceID:      "src",
		DestinationID: "dst",
		CloneType:     Data,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitRun(t, run)
	if run.Err() != nil {
		t.Fatalf("indeterminate verification failed the run: %v", run.Err())
	}

	entry := hist.last(t)
	var indeterminate, finalLine bool
	for _, l := range entry.Logs {
		if strings.Contains(l, "indeterminate") {
			indeterminate = true
		}
		if strings.Contains(l, "Tables in destination: 0") {
			finalLine = true
		}
	}
	if !indeterminate || !finalLine {
		t.Fatalf("verification logs wrong: %v", entry.Logs)
	}
}

func TestLowTempSpaceWarnsOnly(t *testing.T) {
	runner := &fakeRunner{}
	o, hist, _ := newTestOrchestrator(t, runner)
	o.MinFreeBytes = ^uint64(0) // no filesystem satisfies this

	run, err := o.Start(context.Background(), Options{
		SourceID:      "src",
		DestinationID: "dst",
		CloneType:     Both,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitRun(t, run)
	if run.Err() != nil {
		t.Fatalf("low temp space aborted the run: %v", run.Err())
	}

	entry := hist.last(t)
	if entry.Status != StatusSuccess {
		t.Fatalf("status = %s, want success", entry.Status)
	}
	var warned bool
	for _, l := range entry.Logs {
		if strings.Contains(l, "[WARNING]") && strings.Contains(l, "insufficient space") {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("no low-space warning in logs: %v", entry.Logs)
	}
}
