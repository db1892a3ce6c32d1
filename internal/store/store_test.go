package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dbclone/dbclone/internal/clone"
	"github.com/dbclone/dbclone/internal/profile"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func TestProfileCRUD(t *testing.T) {
	s := newStore(t)

	p := profile.New("prod", "db1", 5432, "app", "alice", "pw", false)
	if err := s.AddProfile(p); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AddProfile(p); err == nil {
		t.Fatalf("duplicate name accepted")
	}

	got, err := s.ProfileByID(p.ID)
	if err != nil {
		t.Fatalf("by id: %v", err)
	}
	if got.Name != "prod" || got.Host != "db1" {
		t.Fatalf("unexpected profile: %+v", got)
	}

	got.Host = "db2"
	if err := s.UpdateProfile(got); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = s.ProfileByID(p.ID)
	if got.Host != "db2" {
		t.Fatalf("update not persisted: %+v", got)
	}
	if !got.UpdatedAt.After(got.CreatedAt) && !got.UpdatedAt.Equal(got.CreatedAt) {
		t.Fatalf("updatedAt went backwards")
	}

	if err := s.DeleteProfile(p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.ProfileByID(p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound after delete, got %v", err)
	}
}

func TestProfileByName(t *testing.T) {
	s := newStore(t)
	p := profile.New("staging", "h", 5432, "d", "u", "", false)
	if err := s.AddProfile(p); err != nil {
		t.Fatalf("add: %v", err)
	}
	got, err := s.ProfileByName("staging")
	if err != nil {
		t.Fatalf("by name: %v", err)
	}
	if got.ID != p.ID {
		t.Fatalf("wrong profile: %+v", got)
	}
	if _, err := s.ProfileByName("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestUpdateTag(t *testing.T) {
	s := newStore(t)

	tag := profile.NewTag("critical", "#ff0000")
	if err := s.AddTag(tag); err != nil {
		t.Fatalf("add tag: %v", err)
	}

	tag.Name = "urgent"
	tag.Color = "#cc0000"
	if err := s.UpdateTag(tag); err != nil {
		t.Fatalf("update: %v", err)
	}

	tags, err := s.Tags()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "urgent" || tags[0].Color != "#cc0000" {
		t.Fatalf("update not persisted: %+v", tags)
	}

	ghost := profile.NewTag("ghost", "#000000")
	if err := s.UpdateTag(ghost); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound for unknown tag, got %v", err)
	}
}

func TestDeleteTagDetachesProfiles(t *testing.T) {
	s := newStore(t)

	tag := profile.NewTag("critical", "#ff0000")
	if err := s.AddTag(tag); err != nil {
		t.Fatalf("add tag: %v", err)
	}
	p := profile.New("prod", "h", 5432, "d", "u", "", false)
	p.TagID = tag.ID
	if err := s.AddProfile(p); err != nil {
		t.Fatalf("add profile: %v", err)
	}

	if err := s.DeleteTag(tag.ID); err != nil {
		t.Fatalf("delete tag: %v", err)
	}
	got, _ := s.ProfileByID(p.ID)
	if got.TagID != "" {
		t.Fatalf("profile still references deleted tag %q", got.TagID)
	}
}

func TestHistoryRetentionCap(t *testing.T) {
	s := newStore(t)
	src := profile.New("a", "h", 5432, "d", "u", "", false)
	dst := profile.New("b", "h", 5432, "d", "u", "", false)

	var firstID string
	for i := 0; i < 55; i++ {
		e := clone.NewHistoryEntry(src, dst, clone.Both)
		e.AddLog(fmt.Sprintf("run %d", i))
		if i == 0 {
			firstID = e.ID
		}
		if err := s.AppendHistory(*e); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	hist, err := s.History()
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 50 {
		t.Fatalf("history length = %d, want 50", len(hist))
	}
	// newest first: the last appended entry leads, the first five are evicted
	if hist[0].Logs[0] != "run 54" {
		t.Fatalf("head entry = %v, want run 54", hist[0].Logs)
	}
	if _, err := s.HistoryEntryByID(firstID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("oldest entry not evicted: %v", err)
	}
}

func TestClearHistory(t *testing.T) {
	s := newStore(t)
	src := profile.New("a", "h", 5432, "d", "u", "", false)
	dst := profile.New("b", "h", 5432, "d", "u", "", false)
	if err := s.AppendHistory(*clone.NewHistoryEntry(src, dst, clone.Data)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.ClearHistory(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	hist, _ := s.History()
	if len(hist) != 0 {
		t.Fatalf("history not cleared: %d entries", len(hist))
	}
}

func TestConcurrentAppendsLoseNothing(t *testing.T) {
	s := newStore(t)
	src := profile.New("a", "h", 5432, "d", "u", "", false)
	dst := profile.New("b", "h", 5432, "d", "u", "", false)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.AppendHistory(*clone.NewHistoryEntry(src, dst, clone.Both))
		}()
	}
	wg.Wait()

	hist, err := s.History()
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != n {
		t.Fatalf("lost updates: %d entries, want %d", len(hist), n)
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	s := newStore(t)
	profiles, err := s.Profiles()
	if err != nil {
		t.Fatalf("profiles: %v", err)
	}
	if len(profiles) != 0 {
		t.Fatalf("expected empty store")
	}
}
