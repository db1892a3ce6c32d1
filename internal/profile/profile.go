package profile

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConnectionProfile describes one saved PostgreSQL endpoint. Core code treats
// profiles as read-only; only the profile CRUD layer mutates them.
type ConnectionProfile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Host      string    `json:"host"`
	Port      int       `json:"port"`
	Database  string    `json:"database"`
	User      string    `json:"user"`
	Password  string    `json:"password"`
	SSL       bool      `json:"ssl"`
	TagID     string    `json:"tagId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// New creates a profile with a fresh id and timestamps.
func New(name, host string, port int, database, user, password string, ssl bool) ConnectionProfile {
	now := time.Now().UTC()
	return ConnectionProfile{
		ID:        uuid.NewString(),
		Name:      name,
		Host:      host,
		Port:      port,
		Database:  database,
		User:      user,
		Password:  password,
		SSL:       ssl,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ConnInfo returns a libpq keyword/value connection string without the
// password. Credentials travel via Env() so they never appear in argv.
func (p ConnectionProfile) ConnInfo() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s", p.Host, p.Port, p.Database, p.User)
}

// URL returns a postgres:// DSN suitable for pgx.
func (p ConnectionProfile) URL() string {
	ssl := "prefer"
	if p.SSL {
		ssl = "require"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", p.User, p.Password, p.Host, p.Port, p.Database, ssl)
}

// Env returns the environment variables handed to pg_dump/psql/pg_restore.
// PGSSLMODE is "require" when the profile demands SSL, "prefer" otherwise.
func (p ConnectionProfile) Env() []string {
	ssl := "prefer"
	if p.SSL {
		ssl = "require"
	}
	return []string{
		"PGPASSWORD=" + p.Password,
		"PGSSLMODE=" + ssl,
	}
}

// Validate reports the first structural problem with the profile.
func (p ConnectionProfile) Validate() error {
	switch {
	case p.Name == "":
		return fmt.Errorf("profile name is empty")
	case p.Host == "":
		return fmt.Errorf("profile host is empty")
	case p.Port <= 0 || p.Port > 65535:
		return fmt.Errorf("profile port %d out of range", p.Port)
	case p.Database == "":
		return fmt.Errorf("profile database is empty")
	case p.User == "":
		return fmt.Errorf("profile user is empty")
	}
	return nil
}

// Tag groups profiles under a named color label.
type Tag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"` // hex, #RRGGBB
}

// NewTag creates a tag with a fresh id.
func NewTag(name, color string) Tag {
	return Tag{ID: uuid.NewString(), Name: name, Color: color}
}

// SavedOperation is a named, reusable set of clone parameters.
type SavedOperation struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	SourceID         string    `json:"sourceId"`
	DestinationID    string    `json:"destinationId"`
	CleanDestination bool      `json:"cleanDestination"`
	CreateBackup     bool      `json:"createBackup"`
	CloneType        string    `json:"cloneType"`
	CreatedAt        time.Time `json:"createdAt"`
}

// NewSavedOperation creates a saved operation with a fresh id.
func NewSavedOperation(name, sourceID, destinationID string, clean, backup bool, cloneType string) SavedOperation {
	return SavedOperation{
		ID:               uuid.NewString(),
		Name:             name,
		SourceID:         sourceID,
		DestinationID:    destinationID,
		CleanDestination: clean,
		CreateBackup:     backup,
		CloneType:        cloneType,
		CreatedAt:        time.Now().UTC(),
	}
}
