package clone

import "testing"

func TestClampJobs(t *testing.T) {
	cases := []struct {
		cpus, want int
	}{
		{0, 2},
		{1, 2},
		{2, 2},
		{4, 4},
		{8, 8},
		{16, 8},
		{1024, 8},
	}
	for _, c := range cases {
		if got := clampJobs(c.cpus); got != c.want {
			t.Fatalf("clampJobs(%d) = %d, want %d", c.cpus, got, c.want)
		}
	}
}

func TestParallelJobsWithinBounds(t *testing.T) {
	j := ParallelJobs()
	if j < 2 || j > 8 {
		t.Fatalf("ParallelJobs() = %d, outside [2,8]", j)
	}
}

func TestUseCustomFormat(t *testing.T) {
	if UseCustomFormat(Data) {
		t.Fatalf("data-only clone must use plain format")
	}
	if !UseCustomFormat(Structure) {
		t.Fatalf("structure clone must use custom format")
	}
	if !UseCustomFormat(Both) {
		t.Fatalf("both clone must use custom format")
	}
}
