package clone

import "runtime"

const (
	minRestoreJobs = 2
	maxRestoreJobs = 8
)

// ParallelJobs derives the pg_restore -j degree from the host CPU count,
// clamped to [2, 8]. Below 2 a parallel restore offers nothing over serial;
// above 8 it starts competing with the server's connection limit.
func ParallelJobs() int {
	return clampJobs(runtime.NumCPU())
}

func clampJobs(n int) int {
	if n < minRestoreJobs {
		return minRestoreJobs
	}
	if n > maxRestoreJobs {
		return maxRestoreJobs
	}
	return n
}

// UseCustomFormat reports whether the dump should use the custom compressed
// archive format. Data-only clones use plain SQL: pg_restore --data-only is
// unreliable against pre-existing tables, while a psql script restores fine
// and allows session tuning around the dump body.
func UseCustomFormat(ct CloneType) bool {
	return ct != Data
}
