package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadrozzy/Assistant-AI/internal/storage"
	"github.com/sadrozzy/Assistant-AI/pkg/logx"
)

type fakeRemote struct {
	inserts int
	patches int
	deletes int

	lastEvent Event
	lastPatch EventPatch
	insertID  string
	err       error
}

func (f *fakeRemote) InsertEvent(_ context.Context, _ storage.Credentials, ev Event) (string, error) {
	f.inserts++
	f.lastEvent = ev
	return f.insertID, f.err
}

func (f *fakeRemote) PatchEvent(_ context.Context, _ storage.Credentials, _ string, patch EventPatch) error {
	f.patches++
	f.lastPatch = patch
	return f.err
}

func (f *fakeRemote) DeleteEvent(_ context.Context, _ storage.Credentials, _ string) error {
	f.deletes++
	return f.err
}

func connectedUser() storage.User {
	at, rt := "at", "rt"
	exp := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	return storage.User{ID: 1, AccessToken: &at, RefreshToken: &rt, TokenExpiry: &exp}
}

func TestSyncCreateRequiresCompleteCredentials(t *testing.T) {
	ctx := context.Background()
	due := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	task := storage.Task{ID: 7, Description: "call John", Due: &due}

	at, rt := "at", "rt"
	exp := time.Now()
	partial := []storage.User{
		{},
		{AccessToken: &at},
		{AccessToken: &at, RefreshToken: &rt},
		{RefreshToken: &rt, TokenExpiry: &exp},
	}
	for i, user := range partial {
		remote := &fakeRemote{insertID: "evt"}
		r := NewReconciler(remote, nil, logx.Nop())
		_, err := r.SyncCreate(ctx, user, task)
		require.ErrorIs(t, err, ErrNoCredentials, "case %d", i)
		assert.Zero(t, remote.inserts, "case %d: no remote call may be attempted", i)
	}
}

func TestSyncCreateBuildsEvent(t *testing.T) {
	ctx := context.Background()
	due := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	dur := 90
	remind := 15
	task := storage.Task{
		ID:          7,
		Description: "call John",
		Due:         &due,
		Duration:    &dur,
		RemindAt:    &remind,
	}

	remote := &fakeRemote{insertID: "evt-1"}
	r := NewReconciler(remote, nil, logx.Nop())

	id, err := r.SyncCreate(ctx, connectedUser(), task)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", id)
	assert.Equal(t, 1, remote.inserts)
	assert.Equal(t, "call John", remote.lastEvent.Summary)
	assert.True(t, remote.lastEvent.Start.Equal(due))
	assert.True(t, remote.lastEvent.End.Equal(due.Add(90*time.Minute)))
	require.NotNil(t, remote.lastEvent.ReminderMinutes)
	assert.Equal(t, 15, *remote.lastEvent.ReminderMinutes)
}

func TestSyncCreateZeroLengthEventWithoutDuration(t *testing.T) {
	ctx := context.Background()
	due := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	task := storage.Task{ID: 7, Description: "ping", Due: &due}

	remote := &fakeRemote{insertID: "evt-1"}
	r := NewReconciler(remote, nil, logx.Nop())

	_, err := r.SyncCreate(ctx, connectedUser(), task)
	require.NoError(t, err)
	assert.True(t, remote.lastEvent.End.Equal(remote.lastEvent.Start),
		"duration-less tasks become instant events, end == start")
	assert.Nil(t, remote.lastEvent.ReminderMinutes,
		"absent reminder keeps the remote default policy")
}

func TestSyncCreateUndatedTaskUsesInjectedClock(t *testing.T) {
	ctx := context.Background()
	task := storage.Task{ID: 7, Description: "someday"}

	fc := clock.NewFake()
	fc.Set(time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC))
	remote := &fakeRemote{insertID: "evt-1"}
	r := NewReconciler(remote, fc, logx.Nop())

	_, err := r.SyncCreate(ctx, connectedUser(), task)
	require.NoError(t, err)
	assert.True(t, remote.lastEvent.Start.Equal(fc.Now().UTC()),
		"undated tasks anchor at the clock's now")
	assert.True(t, remote.lastEvent.End.Equal(remote.lastEvent.Start))
}

func TestSyncCreateWrapsRemoteFailure(t *testing.T) {
	ctx := context.Background()
	due := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	task := storage.Task{ID: 7, Description: "x", Due: &due}

	cause := errors.New("boom")
	remote := &fakeRemote{err: cause}
	r := NewReconciler(remote, nil, logx.Nop())

	_, err := r.SyncCreate(ctx, connectedUser(), task)
	var syncErr *SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, "create", syncErr.Op)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, remote.inserts, "exactly one attempt, no retry")
}

func TestSyncUpdatePartialPatch(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{}
	r := NewReconciler(remote, nil, logx.Nop())

	summary := "renamed"
	err := r.SyncUpdate(ctx, connectedUser(), "evt-1", EventPatch{Summary: &summary})
	require.NoError(t, err)
	assert.Equal(t, 1, remote.patches)
	require.NotNil(t, remote.lastPatch.Summary)
	assert.Nil(t, remote.lastPatch.Start, "omitted fields stay untouched")

	err = r.SyncUpdate(ctx, storage.User{}, "evt-1", EventPatch{})
	require.ErrorIs(t, err, ErrNoCredentials)
	assert.Equal(t, 1, remote.patches)
}

func TestSyncDelete(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{}
	r := NewReconciler(remote, nil, logx.Nop())

	require.NoError(t, r.SyncDelete(ctx, connectedUser(), "evt-1"))
	assert.Equal(t, 1, remote.deletes)

	require.ErrorIs(t, r.SyncDelete(ctx, storage.User{}, "evt-1"), ErrNoCredentials)
	assert.Equal(t, 1, remote.deletes)
}
