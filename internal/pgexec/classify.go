package pgexec

import "strings"

// Stage identifies which pipeline step produced a tool result. Classification
// policy differs per stage, not just per tool.
type Stage string

const (
	StageBackup  Stage = "backup"
	StageClean   Stage = "clean"
	StageDump    Stage = "dump"
	StageRestore Stage = "restore"
)

// Outcome is the classified interpretation of a tool result.
type Outcome int

const (
	// Success means the stage finished cleanly.
	Success Outcome = iota
	// SuccessWithWarnings means the tool reported problems that do not
	// invalidate the result.
	SuccessWithWarnings
	// Fatal means the stage failed and the run must abort.
	Fatal
)

// Verdict carries the outcome plus supporting detail for the run log.
type Verdict struct {
	Outcome  Outcome
	Warnings int    // warning occurrences counted in stderr
	Message  string // tool diagnostic text, verbatim
}

// Classifier turns an exit status and stderr text into a Verdict for a given
// tool and stage. It is an interface so the substring heuristic can later be
// swapped for structured diagnostic parsing without touching the
// orchestrator.
type Classifier interface {
	Classify(tool string, stage Stage, res Result) Verdict
}

// Heuristic is the default Classifier. Policy:
//
//   - zero exit is Success everywhere;
//   - non-zero exit on dump is always Fatal;
//   - non-zero exit on restore is Fatal only when stderr carries an error
//     indicator that is not a recognized warning prefix for the tool,
//     otherwise SuccessWithWarnings with a warning count;
//   - non-zero exit on backup/clean is downgraded to SuccessWithWarnings;
//     those stages are best-effort safety nets, the clone can proceed.
type Heuristic struct{}

func (Heuristic) Classify(tool string, stage Stage, res Result) Verdict {
	stderr := string(res.Stderr)
	if res.ExitCode == 0 {
		return Verdict{Outcome: Success}
	}

	switch stage {
	case StageDump:
		return Verdict{Outcome: Fatal, Message: stderr}
	case StageRestore:
		if restoreIsFatal(tool, stderr) {
			return Verdict{Outcome: Fatal, Message: stderr}
		}
		return Verdict{
			Outcome:  SuccessWithWarnings,
			Warnings: strings.Count(stderr, "warning"),
			Message:  stderr,
		}
	default: // backup, clean
		return Verdict{Outcome: SuccessWithWarnings, Message: stderr}
	}
}

// restoreIsFatal decides whether restore stderr indicates a genuine error.
// pg_restore prefixes non-fatal diagnostics with "pg_restore: warning"; psql
// prints upper-case ERROR lines only for real statement failures.
func restoreIsFatal(tool, stderr string) bool {
	if strings.Contains(tool, "pg_restore") {
		return strings.Contains(strings.ToLower(stderr), "error") &&
			!strings.Contains(stderr, "pg_restore: warning")
	}
	return strings.Contains(stderr, "ERROR")
}
