// Package store persists profiles, tags, saved operations and clone history
// in a single JSON file. Every read-modify-write cycle is serialized through
// an in-process mutex plus an OS file lock, so two completing runs cannot
// lose each other's history update.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofrs/flock"
	"github.com/samber/lo"

	"github.com/dbclone/dbclone/internal/clone"
	"github.com/dbclone/dbclone/internal/profile"
)

const (
	dataFileName = "db-clone-data.json"
	lockFileName = "db-clone-data.lock"

	// historyCap is the retention limit: most recent first, oldest evicted.
	historyCap = 50
)

// ErrNotFound is returned when a lookup by id or name matches nothing.
var ErrNotFound = errors.New("not found")

// AppData is the serialized shape of the data file.
type AppData struct {
	Profiles        []profile.ConnectionProfile `json:"profiles"`
	History         []clone.HistoryEntry        `json:"history"`
	Tags            []profile.Tag               `json:"tags"`
	SavedOperations []profile.SavedOperation    `json:"saved_operations"`
}

// Store owns the data file. Safe for concurrent use.
type Store struct {
	path string
	mu   sync.Mutex
	fl   *flock.Flock
}

// Open prepares a store under dataDir, creating the directory if needed.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{
		path: filepath.Join(dataDir, dataFileName),
		fl:   flock.New(filepath.Join(dataDir, lockFileName)),
	}, nil
}

// Path returns the data file location.
func (s *Store) Path() string { return s.path }

func (s *Store) load() (AppData, error) {
	var d AppData
	content, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return d, nil
	}
	if err != nil {
		return d, fmt.Errorf("read %s: %w", s.path, err)
	}
	if err := json.Unmarshal(content, &d); err != nil {
		return d, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return d, nil
}

func (s *Store) save(d AppData) error {
	content, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize app data: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// update runs fn under both locks with the current data and persists the
// result when fn succeeds.
func (s *Store) update(fn func(d *AppData) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fl.Lock(); err != nil {
		return fmt.Errorf("acquire file lock: %w", err)
	}
	defer func() { _ = s.fl.Unlock() }()

	d, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(&d); err != nil {
		return err
	}
	return s.save(d)
}

// view runs fn with a read snapshot.
func (s *Store) view(fn func(d AppData) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.load()
	if err != nil {
		return err
	}
	return fn(d)
}

// --- profiles ---

// Profiles lists all saved connection profiles.
func (s *Store) Profiles() ([]profile.ConnectionProfile, error) {
	var out []profile.ConnectionProfile
	err := s.view(func(d AppData) error {
		out = d.Profiles
		return nil
	})
	return out, err
}

// ProfileByID looks up one profile.
func (s *Store) ProfileByID(id string) (profile.ConnectionProfile, error) {
	var out profile.ConnectionProfile
	err := s.view(func(d AppData) error {
		p, ok := lo.Find(d.Profiles, func(p profile.ConnectionProfile) bool { return p.ID == id })
		if !ok {
			return fmt.Errorf("profile %s: %w", id, ErrNotFound)
		}
		out = p
		return nil
	})
	return out, err
}

// ProfileByName looks up one profile by its display name.
func (s *Store) ProfileByName(name string) (profile.ConnectionProfile, error) {
	var out profile.ConnectionProfile
	err := s.view(func(d AppData) error {
		p, ok := lo.Find(d.Profiles, func(p profile.ConnectionProfile) bool { return p.Name == name })
		if !ok {
			return fmt.Errorf("profile %q: %w", name, ErrNotFound)
		}
		out = p
		return nil
	})
	return out, err
}

// AddProfile appends a new profile.
func (s *Store) AddProfile(p profile.ConnectionProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return s.update(func(d *AppData) error {
		if lo.ContainsBy(d.Profiles, func(q profile.ConnectionProfile) bool { return q.Name == p.Name }) {
			return fmt.Errorf("profile %q already exists", p.Name)
		}
		d.Profiles = append(d.Profiles, p)
		return nil
	})
}

// UpdateProfile replaces the stored profile with the same id, bumping
// UpdatedAt.
func (s *Store) UpdateProfile(p profile.ConnectionProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return s.update(func(d *AppData) error {
		_, i, ok := lo.FindIndexOf(d.Profiles, func(q profile.ConnectionProfile) bool { return q.ID == p.ID })
		if !ok {
			return fmt.Errorf("profile %s: %w", p.ID, ErrNotFound)
		}
		p.UpdatedAt = time.Now().UTC()
		p.CreatedAt = d.Profiles[i].CreatedAt
		d.Profiles[i] = p
		return nil
	})
}

// DeleteProfile removes a profile by id.
func (s *Store) DeleteProfile(id string) error {
	return s.update(func(d *AppData) error {
		kept := lo.Reject(d.Profiles, func(p profile.ConnectionProfile, _ int) bool { return p.ID == id })
		if len(kept) == len(d.Profiles) {
			return fmt.Errorf("profile %s: %w", id, ErrNotFound)
		}
		d.Profiles = kept
		return nil
	})
}

// --- tags ---

// Tags lists all tags.
func (s *Store) Tags() ([]profile.Tag, error) {
	var out []profile.Tag
	err := s.view(func(d AppData) error {
		out = d.Tags
		return nil
	})
	return out, err
}

// AddTag appends a new tag.
func (s *Store) AddTag(t profile.Tag) error {
	return s.update(func(d *AppData) error {
		d.Tags = append(d.Tags, t)
		return nil
	})
}

// UpdateTag replaces the tag with the same id.
func (s *Store) UpdateTag(t profile.Tag) error {
	return s.update(func(d *AppData) error {
		for i := range d.Tags {
			if d.Tags[i].ID == t.ID {
				d.Tags[i] = t
				return nil
			}
		}
		return fmt.Errorf("tag %s: %w", t.ID, ErrNotFound)
	})
}

// DeleteTag removes a tag and detaches it from any profile referencing it.
func (s *Store) DeleteTag(id string) error {
	return s.update(func(d *AppData) error {
		kept := lo.Reject(d.Tags, func(t profile.Tag, _ int) bool { return t.ID == id })
		if len(kept) == len(d.Tags) {
			return fmt.Errorf("tag %s: %w", id, ErrNotFound)
		}
		d.Tags = kept
		for i := range d.Profiles {
			if d.Profiles[i].TagID == id {
				d.Profiles[i].TagID = ""
			}
		}
		return nil
	})
}

// --- saved operations ---

// SavedOperations lists all saved clone parameter sets.
func (s *Store) SavedOperations() ([]profile.SavedOperation, error) {
	var out []profile.SavedOperation
	err := s.view(func(d AppData) error {
		out = d.SavedOperations
		return nil
	})
	return out, err
}

// SavedOperationByName finds a saved operation by name.
func (s *Store) SavedOperationByName(name string) (profile.SavedOperation, error) {
	var out profile.SavedOperation
	err := s.view(func(d AppData) error {
		op, ok := lo.Find(d.SavedOperations, func(o profile.SavedOperation) bool { return o.Name == name })
		if !ok {
			return fmt.Errorf("saved operation %q: %w", name, ErrNotFound)
		}
		out = op
		return nil
	})
	return out, err
}

// AddSavedOperation appends a saved operation.
func (s *Store) AddSavedOperation(op profile.SavedOperation) error {
	return s.update(func(d *AppData) error {
		if lo.ContainsBy(d.SavedOperations, func(o profile.SavedOperation) bool { return o.Name == op.Name }) {
			return fmt.Errorf("saved operation %q already exists", op.Name)
		}
		d.SavedOperations = append(d.SavedOperations, op)
		return nil
	})
}

// DeleteSavedOperation removes a saved operation by id.
func (s *Store) DeleteSavedOperation(id string) error {
	return s.update(func(d *AppData) error {
		kept := lo.Reject(d.SavedOperations, func(o profile.SavedOperation, _ int) bool { return o.ID == id })
		if len(kept) == len(d.SavedOperations) {
			return fmt.Errorf("saved operation %s: %w", id, ErrNotFound)
		}
		d.SavedOperations = kept
		return nil
	})
}

// --- history ---

// History returns all retained entries, most recent first.
func (s *Store) History() ([]clone.HistoryEntry, error) {
	var out []clone.HistoryEntry
	err := s.view(func(d AppData) error {
		out = d.History
		return nil
	})
	return out, err
}

// HistoryEntryByID looks up one run record.
func (s *Store) HistoryEntryByID(id string) (clone.HistoryEntry, error) {
	var out clone.HistoryEntry
	err := s.view(func(d AppData) error {
		e, ok := lo.Find(d.History, func(e clone.HistoryEntry) bool { return e.ID == id })
		if !ok {
			return fmt.Errorf("history entry %s: %w", id, ErrNotFound)
		}
		out = e
		return nil
	})
	return out, err
}

// AppendHistory prepends a finalized entry and truncates retention to the
// cap. Implements clone.HistoryStore.
func (s *Store) AppendHistory(entry clone.HistoryEntry) error {
	return s.update(func(d *AppData) error {
		d.History = append([]clone.HistoryEntry{entry}, d.History...)
		if len(d.History) > historyCap {
			d.History = d.History[:historyCap]
		}
		return nil
	})
}

// ClearHistory removes all retained entries.
func (s *Store) ClearHistory() error {
	return s.update(func(d *AppData) error {
		d.History = nil
		return nil
	})
}
