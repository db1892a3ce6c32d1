package profile

import (
	"strings"
	"testing"
)

func TestConnInfoOmitsPassword(t *testing.T) {
	p := New("prod", "db.example.com", 5433, "app", "alice", "s3cret", true)
	ci := p.ConnInfo()
	want := "host=db.example.com port=5433 dbname=app user=alice"
	if ci != want {
		t.Fatalf("conninfo mismatch\nwant %q\n got %q", want, ci)
	}
	if strings.Contains(ci, "s3cret") {
		t.Fatalf("password leaked into conninfo: %q", ci)
	}
}

func TestEnvSSLMode(t *testing.T) {
	ssl := New("a", "h", 5432, "d", "u", "pw", true)
	noSSL := New("b", "h", 5432, "d", "u", "pw", false)

	find := func(env []string, key string) string {
		for _, kv := range env {
			if strings.HasPrefix(kv, key+"=") {
				return strings.TrimPrefix(kv, key+"=")
			}
		}
		return ""
	}

	if got := find(ssl.Env(), "PGSSLMODE"); got != "require" {
		t.Fatalf("ssl profile PGSSLMODE = %q, want require", got)
	}
	if got := find(noSSL.Env(), "PGSSLMODE"); got != "prefer" {
		t.Fatalf("non-ssl profile PGSSLMODE = %q, want prefer", got)
	}
	if got := find(ssl.Env(), "PGPASSWORD"); got != "pw" {
		t.Fatalf("PGPASSWORD = %q, want pw", got)
	}
}

func TestValidate(t *testing.T) {
	ok := New("n", "h", 5432, "d", "u", "", false)
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid profile rejected: %v", err)
	}

	bad := ok
	bad.Port = 70000
	if err := bad.Validate(); err == nil {
		t.Fatalf("port 70000 accepted")
	}

	bad = ok
	bad.Host = ""
	if err := bad.Validate(); err == nil {
		t.Fatalf("empty host accepted")
	}
}
