package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by point lookups when no row matches.
// Mutations racing a delete (MarkReminded, SetEventID) do NOT return it;
// they are benign no-ops.
var ErrNotFound = errors.New("record not found")

type Status string

const (
	// StatusInbox marks a task that carried no recognizable date or time.
	StatusInbox Status = "inbox"
	// StatusScheduled marks a task created with a date or time token.
	StatusScheduled Status = "scheduled"
	// StatusPending is the legacy default kept for rows imported from
	// earlier installations.
	StatusPending Status = "pending"
)

type Task struct {
	ID          int64
	UserID      int64
	Description string
	// Due is the absolute due instant in UTC, nil for inbox tasks.
	Due *time.Time
	// RemindAt is minutes before Due, not an absolute instant.
	// Meaningless (and never set) without Due.
	RemindAt *int
	// Duration is the task length in minutes.
	Duration *int
	Status   Status
	Reminded bool
	// EventID is the remote calendar event mirrored from this task.
	EventID *string
}

// TaskDraft is the create descriptor produced by the intake pipeline.
type TaskDraft struct {
	Description string
	Due         *time.Time
	RemindAt    *int
	Duration    *int
	Status      Status
}

type User struct {
	ID         int64
	TelegramID int64
	Name       string
	// Timezone is a fixed ±HH:MM offset string.
	Timezone string

	AccessToken  *string
	RefreshToken *string
	TokenExpiry  *time.Time
}

// Credentials is a complete calendar authorization.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Credentials returns the user's calendar authorization, reporting false
// when any field is absent ("not connected").
func (u User) Credentials() (Credentials, bool) {
	if u.AccessToken == nil || u.RefreshToken == nil || u.TokenExpiry == nil {
		return Credentials{}, false
	}
	return Credentials{
		AccessToken:  *u.AccessToken,
		RefreshToken: *u.RefreshToken,
		Expiry:       *u.TokenExpiry,
	}, true
}

// Store is the persistence API used by the intake pipeline and the
// reminder scheduler. The store is the sole serialization point between
// them: every mutation is atomic and visible to the next call.
type Store interface {
	CreateTask(ctx context.Context, userID int64, d TaskDraft) (Task, error)
	TaskByID(ctx context.Context, id int64) (Task, error)
	TasksByUser(ctx context.Context, userID int64) ([]Task, error)
	// DeleteTask removes the task; deleting a missing task is a no-op.
	DeleteTask(ctx context.Context, id int64) error
	// SetEventID records the remote calendar event mirrored from the task.
	SetEventID(ctx context.Context, id int64, eventID string) error
	// MarkReminded flips the monotonic reminded flag. Idempotent; a
	// missing row (deleted mid-poll) is a no-op.
	MarkReminded(ctx context.Context, id int64) error
	// DueForReminder returns tasks inside their reminder eligibility
	// window at now: due and remindAt set, not yet reminded, and
	// due-remindAt <= now < due.
	DueForReminder(ctx context.Context, now time.Time) ([]Task, error)

	GetOrCreateUser(ctx context.Context, telegramID int64, name string) (User, error)
	UserByID(ctx context.Context, id int64) (User, error)
	SetTimezone(ctx context.Context, userID int64, tz string) error
	SetCredentials(ctx context.Context, userID int64, c Credentials) error
	ClearCredentials(ctx context.Context, userID int64) error

	Close() error
}
