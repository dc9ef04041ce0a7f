// Package calendar mirrors local tasks to a remote calendar.
//
// Each synced task maps to exactly one remote event. The mirror is
// at-most-once and non-transactional: a failed create leaves the task
// unsynced, a failed update or delete leaves the remote event stale but is
// never rolled back. The caller owns persistence of the returned event id
// and all user-facing messaging.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmhodges/clock"

	"github.com/sadrozzy/Assistant-AI/internal/storage"
	"github.com/sadrozzy/Assistant-AI/pkg/logx"
)

// ErrNoCredentials is the expected outcome for users who never connected
// the calendar. No remote call is attempted.
var ErrNoCredentials = errors.New("calendar not connected")

// SyncError wraps a transport or auth failure talking to the remote.
type SyncError struct {
	Op  string // "create", "update" or "delete"
	Err error
}

func (e *SyncError) Error() string { return fmt.Sprintf("calendar sync %s: %v", e.Op, e.Err) }
func (e *SyncError) Unwrap() error { return e.Err }

type Reconciler struct {
	remote Remote
	clk    clock.Clock
	log    logx.Logger
}

func NewReconciler(remote Remote, clk clock.Clock, log logx.Logger) *Reconciler {
	if clk == nil {
		clk = clock.New()
	}
	return &Reconciler{remote: remote, clk: clk, log: log}
}

// SyncCreate mirrors a freshly created task to a new remote event and
// returns its id. The caller persists the id onto the task; the
// reconciler never writes to storage itself.
func (r *Reconciler) SyncCreate(ctx context.Context, user storage.User, task storage.Task) (string, error) {
	creds, ok := user.Credentials()
	if !ok {
		return "", ErrNoCredentials
	}

	start := r.clk.Now().UTC()
	if task.Due != nil {
		start = *task.Due
	}
	// Without a duration the event ends where it starts; the remote
	// always receives a well-formed start/end pair.
	end := start
	if task.Duration != nil {
		end = start.Add(time.Duration(*task.Duration) * time.Minute)
	}

	id, err := r.remote.InsertEvent(ctx, creds, Event{
		Summary:         task.Description,
		Start:           start,
		End:             end,
		ReminderMinutes: task.RemindAt,
	})
	if err != nil {
		r.log.Warn("calendar create failed",
			logx.Int64("user_id", user.ID), logx.Int64("task_id", task.ID), logx.Err(err))
		return "", &SyncError{Op: "create", Err: err}
	}
	r.log.Debug("calendar event created",
		logx.Int64("user_id", user.ID), logx.Int64("task_id", task.ID), logx.String("event_id", id))
	return id, nil
}

// SyncUpdate applies a partial update to the remote event; fields omitted
// from the patch are left untouched.
func (r *Reconciler) SyncUpdate(ctx context.Context, user storage.User, eventID string, patch EventPatch) error {
	creds, ok := user.Credentials()
	if !ok {
		return ErrNoCredentials
	}
	if err := r.remote.PatchEvent(ctx, creds, eventID, patch); err != nil {
		r.log.Warn("calendar update failed",
			logx.Int64("user_id", user.ID), logx.String("event_id", eventID), logx.Err(err))
		return &SyncError{Op: "update", Err: err}
	}
	return nil
}

// SyncDelete removes the remote event. Best-effort: only invoked for
// tasks that carry an event id.
func (r *Reconciler) SyncDelete(ctx context.Context, user storage.User, eventID string) error {
	creds, ok := user.Credentials()
	if !ok {
		return ErrNoCredentials
	}
	if err := r.remote.DeleteEvent(ctx, creds, eventID); err != nil {
		r.log.Warn("calendar delete failed",
			logx.Int64("user_id", user.ID), logx.String("event_id", eventID), logx.Err(err))
		return &SyncError{Op: "delete", Err: err}
	}
	return nil
}
