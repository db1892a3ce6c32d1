package pgtools

import (
	"errors"
	"testing"
)

func TestLocateOverrideWins(t *testing.T) {
	l := NewLocator(map[string]string{PgDump: "/opt/pg/bin/pg_dump"})
	l.verify = func(string) bool { return true }

	p, err := l.Locate(PgDump)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if p != "/opt/pg/bin/pg_dump" {
		t.Fatalf("override ignored, got %q", p)
	}
}

func TestLocateBrokenOverride(t *testing.T) {
	l := NewLocator(map[string]string{Psql: "/does/not/exist/psql"})
	l.verify = func(string) bool { return false }

	_, err := l.Locate(Psql)
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("want NotFoundError, got %v", err)
	}
	if nf.Tool != Psql {
		t.Fatalf("error names %q, want %q", nf.Tool, Psql)
	}
}

func TestLocateNotFound(t *testing.T) {
	l := NewLocator(nil)
	l.verify = func(string) bool { return false }

	_, err := l.Locate("pg_restore")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("want NotFoundError, got %v", err)
	}
}

func TestLocateAllFailsOnFirstMissing(t *testing.T) {
	l := NewLocator(map[string]string{
		PgDump:    "/bin/fake_pg_dump",
		Psql:      "/bin/fake_psql",
		PgRestore: "/bin/fake_pg_restore",
	})
	seen := map[string]bool{}
	l.verify = func(p string) bool {
		seen[p] = true
		return p != "/bin/fake_psql"
	}

	_, _, _, err := l.LocateAll()
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Tool != Psql {
		t.Fatalf("want psql NotFoundError, got %v", err)
	}
	if seen["/bin/fake_pg_restore"] {
		t.Fatalf("pg_restore probed after psql already failed")
	}
}
