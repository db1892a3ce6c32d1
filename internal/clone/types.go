package clone

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dbclone/dbclone/internal/profile"
)

// CloneType selects which part of the source database is transferred.
type CloneType string

const (
	// Structure transfers schema definitions only.
	Structure CloneType = "structure"
	// Data transfers table contents only; destination schema must exist.
	Data CloneType = "data"
	// Both transfers schema and data.
	Both CloneType = "both"
)

// ParseCloneType validates a user-supplied clone type string.
func ParseCloneType(s string) (CloneType, error) {
	switch CloneType(s) {
	case Structure, Data, Both:
		return CloneType(s), nil
	}
	return "", fmt.Errorf("unknown clone type %q (want structure, data or both)", s)
}

// Status is the terminal outcome of a run.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// Options describes one clone request. Immutable for the duration of a run.
type Options struct {
	SourceID         string    `json:"sourceId"`
	DestinationID    string    `json:"destinationId"`
	CleanDestination bool      `json:"cleanDestination"`
	CreateBackup     bool      `json:"createBackup"`
	CloneType        CloneType `json:"cloneType"`
	ExcludeTables    []string  `json:"excludeTables"`
}

// Progress is emitted on the clone-progress topic before each stage and at
// terminal states.
type Progress struct {
	Stage      string `json:"stage"`
	Progress   int    `json:"progress"`
	Message    string `json:"message"`
	IsComplete bool   `json:"isComplete"`
	IsError    bool   `json:"isError"`
}

// NewProgress builds a non-terminal progress event.
func NewProgress(stage string, percent int, message string) Progress {
	return Progress{Stage: stage, Progress: percent, Message: message}
}

// CompletedProgress is the terminal success event (100%).
func CompletedProgress(message string) Progress {
	return Progress{Stage: "completed", Progress: 100, Message: message, IsComplete: true}
}

// ErrorProgress is the terminal failure event. Progress resets to 0 by
// convention to signal abnormal termination.
func ErrorProgress(message string) Progress {
	return Progress{Stage: "error", Progress: 0, Message: message, IsComplete: true, IsError: true}
}

// HistoryEntry is the durable record of one run. It is created optimistic
// (status success, no completion time) and finalized exactly once.
type HistoryEntry struct {
	ID              string     `json:"id"`
	SourceID        string     `json:"sourceId"`
	SourceName      string     `json:"sourceName"`
	DestinationID   string     `json:"destinationId"`
	DestinationName string     `json:"destinationName"`
	CloneType       CloneType  `json:"cloneType"`
	Status          Status     `json:"status"`
	StartedAt       time.Time  `json:"startedAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	Duration        *int64     `json:"duration,omitempty"` // whole seconds
	ErrorMessage    string     `json:"errorMessage,omitempty"`
	Logs            []string   `json:"logs"`
}

// NewHistoryEntry creates the optimistic record at run start.
func NewHistoryEntry(source, destination profile.ConnectionProfile, ct CloneType) *HistoryEntry {
	return &HistoryEntry{
		ID:              uuid.NewString(),
		SourceID:        source.ID,
		SourceName:      source.Name,
		DestinationID:   destination.ID,
		DestinationName: destination.Name,
		CloneType:       ct,
		Status:          StatusSuccess,
		StartedAt:       time.Now().UTC(),
	}
}

// Complete finalizes the entry with a status and optional error message.
func (e *HistoryEntry) Complete(status Status, errMsg string) {
	now := time.Now().UTC()
	e.CompletedAt = &now
	secs := int64(now.Sub(e.StartedAt).Seconds())
	e.Duration = &secs
	e.Status = status
	e.ErrorMessage = errMsg
}

// AddLog appends one line to the run log.
func (e *HistoryEntry) AddLog(line string) {
	e.Logs = append(e.Logs, line)
}

// HistoryStore is the persistence collaborator: it owns serialization of
// concurrent run completions.
type HistoryStore interface {
	// AppendHistory prepends the entry and truncates the collection to the
	// retention cap.
	AppendHistory(entry HistoryEntry) error
}
