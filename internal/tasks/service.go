// Package tasks glues the intake pipeline together: extract tokens,
// resolve the due instant, persist, then mirror to the calendar.
//
// The task is always persisted before any calendar sync is attempted, so
// it exists locally even if the remote mirror never completes.
package tasks

import (
	"context"
	"errors"
	"strings"

	"github.com/jmhodges/clock"

	"github.com/sadrozzy/Assistant-AI/internal/calendar"
	"github.com/sadrozzy/Assistant-AI/internal/schedule"
	"github.com/sadrozzy/Assistant-AI/internal/storage"
	"github.com/sadrozzy/Assistant-AI/internal/taskparse"
	"github.com/sadrozzy/Assistant-AI/pkg/logx"
)

// SyncStatus describes what happened to the calendar mirror of a create.
type SyncStatus int

const (
	// SyncSkipped: no due instant or no calendar remote configured.
	SyncSkipped SyncStatus = iota
	// SyncDone: remote event created and its id persisted.
	SyncDone
	// SyncNoCredentials: user never connected the calendar.
	SyncNoCredentials
	// SyncFailed: remote call failed; the task stays unsynced.
	SyncFailed
)

type CreateResult struct {
	Task storage.Task
	Sync SyncStatus
}

type Service struct {
	store storage.Store
	rec   *calendar.Reconciler // nil when calendar sync is not configured
	clk   clock.Clock
	log   logx.Logger
}

func NewService(store storage.Store, rec *calendar.Reconciler, clk clock.Clock, log logx.Logger) *Service {
	if clk == nil {
		clk = clock.New()
	}
	return &Service{store: store, rec: rec, clk: clk, log: log}
}

// Create runs the full intake pipeline for one message.
func (s *Service) Create(ctx context.Context, user storage.User, text string) (CreateResult, error) {
	tok := taskparse.Parse(text)
	res := schedule.Resolve(tok, user.Timezone, s.clk.Now())

	desc := tok.Clean
	if desc == "" {
		desc = strings.TrimSpace(text)
	}
	status := storage.StatusInbox
	if tok.HasSchedule() {
		status = storage.StatusScheduled
	}

	task, err := s.store.CreateTask(ctx, user.ID, storage.TaskDraft{
		Description: desc,
		Due:         res.Due,
		RemindAt:    res.RemindAt,
		Duration:    tok.Duration,
		Status:      status,
	})
	if err != nil {
		return CreateResult{}, err
	}
	s.log.Debug("task created",
		logx.Int64("user_id", user.ID), logx.Int64("task_id", task.ID),
		logx.String("status", string(task.Status)))

	out := CreateResult{Task: task, Sync: SyncSkipped}
	if task.Due == nil || s.rec == nil {
		return out, nil
	}

	eventID, err := s.rec.SyncCreate(ctx, user, task)
	switch {
	case err == nil:
		if err := s.store.SetEventID(ctx, task.ID, eventID); err != nil {
			// The remote event exists either way; losing the write-back
			// only costs us the delete mirror later.
			s.log.Warn("event id write-back failed",
				logx.Int64("task_id", task.ID), logx.Err(err))
		} else {
			out.Task.EventID = &eventID
		}
		out.Sync = SyncDone
	case errors.Is(err, calendar.ErrNoCredentials):
		out.Sync = SyncNoCredentials
	default:
		// Already logged by the reconciler; creation itself succeeded.
		out.Sync = SyncFailed
	}
	return out, nil
}

// List returns the user's tasks in creation order.
func (s *Service) List(ctx context.Context, user storage.User) ([]storage.Task, error) {
	return s.store.TasksByUser(ctx, user.ID)
}

// Delete removes the user's task and, when it was mirrored, the remote
// event (best-effort; a failed remote delete is logged and swallowed).
func (s *Service) Delete(ctx context.Context, user storage.User, taskID int64) error {
	task, err := s.store.TaskByID(ctx, taskID)
	if err != nil {
		return err
	}
	if task.UserID != user.ID {
		return storage.ErrNotFound
	}
	if err := s.store.DeleteTask(ctx, taskID); err != nil {
		return err
	}
	if task.EventID != nil && s.rec != nil {
		if err := s.rec.SyncDelete(ctx, user, *task.EventID); err != nil && !errors.Is(err, calendar.ErrNoCredentials) {
			s.log.Warn("remote event cleanup failed",
				logx.Int64("task_id", taskID), logx.String("event_id", *task.EventID), logx.Err(err))
		}
	}
	return nil
}
