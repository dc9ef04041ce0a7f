package telegram

import (
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/stretchr/testify/require"

	"github.com/sadrozzy/Assistant-AI/internal/storage"
	"github.com/sadrozzy/Assistant-AI/internal/tasks"
)

func TestStateTrackerRoundTrip(t *testing.T) {
	fc := clock.NewFake()
	tr := newStateTracker(fc)

	require.Equal(t, stateNone, tr.get(1))

	tr.set(1, stateAwaitingAuthCode)
	require.Equal(t, stateAwaitingAuthCode, tr.get(1))
	require.Equal(t, stateNone, tr.get(2))

	tr.clear(1)
	require.Equal(t, stateNone, tr.get(1))
}

func TestStateTrackerExpires(t *testing.T) {
	fc := clock.NewFake()
	tr := newStateTracker(fc)

	tr.set(7, stateAwaitingTimezone)
	fc.Add(statePromptTTL - time.Second)
	require.Equal(t, stateAwaitingTimezone, tr.get(7))

	fc.Add(2 * time.Second)
	require.Equal(t, stateNone, tr.get(7))
}

func TestStateTrackerSetNoneClears(t *testing.T) {
	tr := newStateTracker(nil)
	tr.set(3, stateAwaitingAuthCode)
	tr.set(3, stateNone)
	require.Equal(t, stateNone, tr.get(3))
}

func TestIntakeReply(t *testing.T) {
	res := tasks.CreateResult{Task: storage.Task{Description: "купить молоко"}}

	res.Sync = tasks.SyncSkipped
	require.Equal(t, "Задача добавлена: купить молоко", intakeReply(res))

	res.Sync = tasks.SyncDone
	require.Contains(t, intakeReply(res), "Событие создано")

	res.Sync = tasks.SyncNoCredentials
	require.Contains(t, intakeReply(res), "не подключён")

	res.Sync = tasks.SyncFailed
	require.Contains(t, intakeReply(res), "проверьте авторизацию")
}

func TestFormatTasksShowsDueInUserZone(t *testing.T) {
	due := time.Date(2026, 9, 2, 11, 0, 0, 0, time.UTC)
	list := []storage.Task{
		{ID: 1, Description: "встреча с командой", Status: storage.StatusScheduled, Due: &due},
		{ID: 2, Description: "buy milk", Status: storage.StatusInbox},
	}
	got := formatTasks(list, "+03:00")
	require.Equal(t, "1. встреча с командой (scheduled) — 02.09 14:00\n2. buy milk (inbox)", got)
}
