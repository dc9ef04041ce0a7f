// Package reminder runs the polling loop that delivers due reminders.
//
// Every interval the scheduler asks the store for tasks inside their
// eligibility window and drives notification plus the reminded state
// transition exactly once per task. Failures are contained per task: a
// failed send leaves the task unreminded and eligible for the next poll,
// until the due instant passes and the window closes for good.
package reminder

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jmhodges/clock"
	"github.com/robfig/cron/v3"

	"github.com/sadrozzy/Assistant-AI/internal/notify"
	"github.com/sadrozzy/Assistant-AI/internal/storage"
	"github.com/sadrozzy/Assistant-AI/pkg/logx"
)

// Store is the slice of the task store the scheduler needs.
type Store interface {
	DueForReminder(ctx context.Context, now time.Time) ([]storage.Task, error)
	UserByID(ctx context.Context, id int64) (storage.User, error)
	MarkReminded(ctx context.Context, id int64) error
}

type Scheduler struct {
	store  Store
	sender notify.Sender
	clk    clock.Clock
	log    logx.Logger

	mu       sync.Mutex
	interval time.Duration
	c        *cron.Cron
	runCtx   context.Context
}

func New(store Store, sender notify.Sender, interval time.Duration, clk clock.Clock, log logx.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{
		store:    store,
		sender:   sender,
		clk:      clk,
		interval: interval,
		log:      log,
	}
}

// Start launches the poll loop. Polls fire every interval counted from the
// previous poll's start; a poll still in flight is skipped rather than
// overlapped.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	s.runCtx = ctx

	c := cron.New(cron.WithChain(
		cron.Recover(s.cronLogger()),
		cron.SkipIfStillRunning(s.cronLogger()),
	))
	if _, err := c.AddFunc("@every "+s.interval.String(), func() { s.Poll(s.runCtx) }); err != nil {
		return err
	}
	c.Start()
	s.c = c
	s.log.Info("reminder scheduler started", logx.Duration("interval", s.interval))
	return nil
}

// Stop halts the loop and waits for an in-flight poll to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.log.Info("reminder scheduler stopped")
}

// Apply changes the poll interval, restarting the loop if it is running.
func (s *Scheduler) Apply(interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.mu.Lock()
	same := interval == s.interval
	s.interval = interval
	running := s.c != nil
	ctx := s.runCtx
	s.mu.Unlock()

	if same || !running {
		return
	}
	s.Stop()
	if err := s.Start(ctx); err != nil {
		s.log.Error("reminder scheduler restart failed", logx.Err(err))
	}
}

// Poll runs a single scan. The current instant is captured once up front:
// tasks created mid-poll wait for the next cycle.
func (s *Scheduler) Poll(ctx context.Context) {
	now := s.clk.Now().UTC()

	tasks, err := s.store.DueForReminder(ctx, now)
	if err != nil {
		s.log.Error("reminder query failed", logx.Err(err))
		return
	}
	if len(tasks) == 0 {
		return
	}
	s.log.Debug("reminder poll", logx.Time("now", now), logx.Int("eligible", len(tasks)))

	for _, task := range tasks {
		if ctx.Err() != nil {
			return
		}
		s.remind(ctx, task)
	}
}

func (s *Scheduler) remind(ctx context.Context, task storage.Task) {
	user, err := s.store.UserByID(ctx, task.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Owner deleted between the query and now; nothing to deliver.
			return
		}
		s.log.Warn("reminder user lookup failed",
			logx.Int64("task_id", task.ID), logx.Int64("user_id", task.UserID), logx.Err(err))
		return
	}
	if user.TelegramID == 0 {
		return
	}

	if err := s.sender.Send(ctx, user.TelegramID, "⏰ Напоминание: "+task.Description); err != nil {
		// Not marked: the task stays eligible and is retried on the next
		// poll, but only until its due instant passes.
		s.log.Warn("reminder dispatch failed", logx.Int64("task_id", task.ID), logx.Err(err))
		return
	}
	if err := s.store.MarkReminded(ctx, task.ID); err != nil {
		// A row deleted mid-poll is already a no-op inside the store;
		// anything else is worth a log line but never stops the poll.
		s.log.Warn("mark reminded failed", logx.Int64("task_id", task.ID), logx.Err(err))
	}
}

func (s *Scheduler) cronLogger() cron.Logger {
	return cronLogAdapter{log: s.log}
}

type cronLogAdapter struct{ log logx.Logger }

func (a cronLogAdapter) Info(msg string, kv ...interface{}) {
	a.log.Debug("cron: "+msg, logx.Any("kv", kv))
}

func (a cronLogAdapter) Error(err error, msg string, kv ...interface{}) {
	a.log.Error("cron: "+msg, logx.Err(err), logx.Any("kv", kv))
}
