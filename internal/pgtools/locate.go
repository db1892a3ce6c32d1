// Package pgtools resolves the pg_dump, psql and pg_restore executables.
// Resolution order: explicit override, PATH, then platform-known PostgreSQL
// installation directories.
package pgtools

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
)

const (
	PgDump    = "pg_dump"
	Psql      = "psql"
	PgRestore = "pg_restore"
)

// NotFoundError names the tool that could not be resolved.
type NotFoundError struct {
	Tool string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: install the PostgreSQL client tools or set a path override", e.Tool)
}

// Locator resolves tool paths. Overrides map a tool name to an absolute path
// and win over any search.
type Locator struct {
	Overrides map[string]string

	// verify confirms a candidate actually runs; replaced in tests.
	verify func(path string) bool
}

// NewLocator builds a locator with the given overrides (may be nil).
func NewLocator(overrides map[string]string) *Locator {
	return &Locator{
		Overrides: overrides,
		verify:    runsVersion,
	}
}

// Locate returns the executable path for tool or a *NotFoundError.
func (l *Locator) Locate(tool string) (string, error) {
	if p, ok := l.Overrides[tool]; ok && p != "" {
		if l.verify(p) {
			return p, nil
		}
		return "", fmt.Errorf("%s override %q does not run: %w", tool, p, &NotFoundError{Tool: tool})
	}

	if p, err := exec.LookPath(tool); err == nil && l.verify(p) {
		return p, nil
	}

	name := tool
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	for _, dir := range knownInstallDirs() {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil && l.verify(p) {
			return p, nil
		}
	}
	return "", &NotFoundError{Tool: tool}
}

// LocateAll resolves the three tools the clone pipeline needs, failing on the
// first one missing.
func (l *Locator) LocateAll() (dump, psql, restore string, err error) {
	if dump, err = l.Locate(PgDump); err != nil {
		return "", "", "", err
	}
	if psql, err = l.Locate(Psql); err != nil {
		return "", "", "", err
	}
	if restore, err = l.Locate(PgRestore); err != nil {
		return "", "", "", err
	}
	return dump, psql, restore, nil
}

// ClientVersion returns the psql version banner, e.g. "psql (PostgreSQL) 16.1".
func (l *Locator) ClientVersion() (string, error) {
	psql, err := l.Locate(Psql)
	if err != nil {
		return "", err
	}
	out, err := exec.Command(psql, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("%s --version: %w", psql, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func runsVersion(path string) bool {
	return exec.Command(path, "--version").Run() == nil
}

// knownInstallDirs lists bin directories of common PostgreSQL installations
// for the current platform. Windows versions are ordered newest first.
func knownInstallDirs() []string {
	if runtime.GOOS == "windows" {
		return windowsInstallDirs([]string{
			`C:\Program Files\PostgreSQL`,
			`C:\Program Files (x86)\PostgreSQL`,
		})
	}
	return []string{
		"/usr/bin",
		"/usr/local/bin",
		"/opt/homebrew/bin",
		"/usr/local/pgsql/bin",
	}
}

// windowsInstallDirs scans <base>\<major>\bin directories and sorts them by
// version descending so the newest client is preferred.
func windowsInstallDirs(bases []string) []string {
	type verDir struct {
		ver int
		dir string
	}
	var found []verDir
	for _, base := range bases {
		entries, err := os.ReadDir(base)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			ver, err := strconv.Atoi(e.Name())
			if err != nil {
				continue
			}
			bin := filepath.Join(base, e.Name(), "bin")
			if _, err := os.Stat(bin); err == nil {
				found = append(found, verDir{ver: ver, dir: bin})
			}
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].ver > found[j].ver })
	dirs := make([]string, len(found))
	for i, f := range found {
		dirs[i] = f.dir
	}
	return dirs
}
