package tasks

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/stretchr/testify/require"

	"github.com/sadrozzy/Assistant-AI/internal/calendar"
	"github.com/sadrozzy/Assistant-AI/internal/storage"
	"github.com/sadrozzy/Assistant-AI/pkg/logx"
)

type fakeRemote struct {
	inserted []calendar.Event
	deleted  []string
	insertID string
	fail     error
}

func (f *fakeRemote) InsertEvent(ctx context.Context, creds storage.Credentials, ev calendar.Event) (string, error) {
	if f.fail != nil {
		return "", f.fail
	}
	f.inserted = append(f.inserted, ev)
	return f.insertID, nil
}

func (f *fakeRemote) PatchEvent(ctx context.Context, creds storage.Credentials, eventID string, patch calendar.EventPatch) error {
	return f.fail
}

func (f *fakeRemote) DeleteEvent(ctx context.Context, creds storage.Credentials, eventID string) error {
	if f.fail != nil {
		return f.fail
	}
	f.deleted = append(f.deleted, eventID)
	return nil
}

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	st, err := storage.Open(context.Background(), storage.Config{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "tasks.db"),
	}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func connectedUser(t *testing.T, ctx context.Context, st storage.Store) storage.User {
	t.Helper()
	u, err := st.GetOrCreateUser(ctx, 100, "Alice")
	require.NoError(t, err)
	require.NoError(t, st.SetCredentials(ctx, u.ID, storage.Credentials{
		AccessToken:  "at",
		RefreshToken: "rt",
		Expiry:       time.Now().Add(time.Hour),
	}))
	u, err = st.UserByID(ctx, u.ID)
	require.NoError(t, err)
	return u
}

func TestCreateScheduledSyncsAndStoresEventID(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	user := connectedUser(t, ctx, st)

	remote := &fakeRemote{insertID: "evt-1"}
	fc := clock.NewFake()
	fc.Set(time.Date(2026, 9, 1, 6, 0, 0, 0, time.UTC))
	svc := NewService(st, calendar.NewReconciler(remote, nil, logx.Nop()), fc, logx.Nop())

	res, err := svc.Create(ctx, user, "завтра 14:00 встреча с командой 2ч !30м")
	require.NoError(t, err)
	require.Equal(t, SyncDone, res.Sync)
	require.Equal(t, storage.StatusScheduled, res.Task.Status)
	require.NotNil(t, res.Task.Due)
	require.Equal(t, "встреча с командой", res.Task.Description)
	require.Len(t, remote.inserted, 1)

	stored, err := st.TaskByID(ctx, res.Task.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.EventID)
	require.Equal(t, "evt-1", *stored.EventID)
}

func TestCreateInboxSkipsSync(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	user := connectedUser(t, ctx, st)

	remote := &fakeRemote{insertID: "evt-1"}
	svc := NewService(st, calendar.NewReconciler(remote, nil, logx.Nop()), clock.New(), logx.Nop())

	res, err := svc.Create(ctx, user, "buy milk")
	require.NoError(t, err)
	require.Equal(t, SyncSkipped, res.Sync)
	require.Equal(t, storage.StatusInbox, res.Task.Status)
	require.Nil(t, res.Task.Due)
	require.Empty(t, remote.inserted)
}

func TestCreateWithoutCredentialsStillPersists(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	user, err := st.GetOrCreateUser(ctx, 200, "Bob")
	require.NoError(t, err)

	remote := &fakeRemote{insertID: "evt-1"}
	fc := clock.NewFake()
	fc.Set(time.Date(2026, 9, 1, 6, 0, 0, 0, time.UTC))
	svc := NewService(st, calendar.NewReconciler(remote, nil, logx.Nop()), fc, logx.Nop())

	res, err := svc.Create(ctx, user, "завтра 14:00 call mom")
	require.NoError(t, err)
	require.Equal(t, SyncNoCredentials, res.Sync)
	require.Empty(t, remote.inserted)

	stored, err := st.TaskByID(ctx, res.Task.ID)
	require.NoError(t, err)
	require.Nil(t, stored.EventID)
	require.NotNil(t, stored.Due)
}

func TestCreateSurvivesRemoteFailure(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	user := connectedUser(t, ctx, st)

	remote := &fakeRemote{fail: errors.New("boom")}
	fc := clock.NewFake()
	fc.Set(time.Date(2026, 9, 1, 6, 0, 0, 0, time.UTC))
	svc := NewService(st, calendar.NewReconciler(remote, nil, logx.Nop()), fc, logx.Nop())

	res, err := svc.Create(ctx, user, "завтра 14:00 dentist")
	require.NoError(t, err)
	require.Equal(t, SyncFailed, res.Sync)

	stored, err := st.TaskByID(ctx, res.Task.ID)
	require.NoError(t, err)
	require.Nil(t, stored.EventID)
}

func TestCreateNoReconcilerConfigured(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	user := connectedUser(t, ctx, st)

	fc := clock.NewFake()
	fc.Set(time.Date(2026, 9, 1, 6, 0, 0, 0, time.UTC))
	svc := NewService(st, nil, fc, logx.Nop())

	res, err := svc.Create(ctx, user, "завтра 14:00 dentist")
	require.NoError(t, err)
	require.Equal(t, SyncSkipped, res.Sync)
}

func TestDeleteMirrorsRemoteRemoval(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	user := connectedUser(t, ctx, st)

	remote := &fakeRemote{insertID: "evt-del"}
	fc := clock.NewFake()
	fc.Set(time.Date(2026, 9, 1, 6, 0, 0, 0, time.UTC))
	svc := NewService(st, calendar.NewReconciler(remote, nil, logx.Nop()), fc, logx.Nop())

	res, err := svc.Create(ctx, user, "завтра 14:00 review")
	require.NoError(t, err)
	require.Equal(t, SyncDone, res.Sync)

	require.NoError(t, svc.Delete(ctx, user, res.Task.ID))
	require.Equal(t, []string{"evt-del"}, remote.deleted)

	_, err = st.TaskByID(ctx, res.Task.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteForeignTaskRejected(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	owner, err := st.GetOrCreateUser(ctx, 300, "Owner")
	require.NoError(t, err)
	other, err := st.GetOrCreateUser(ctx, 301, "Other")
	require.NoError(t, err)

	svc := NewService(st, nil, clock.New(), logx.Nop())
	res, err := svc.Create(ctx, owner, "private note")
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, other, res.Task.ID), storage.ErrNotFound)

	_, err = st.TaskByID(ctx, res.Task.ID)
	require.NoError(t, err)
}

func TestCreateTokenOnlyMessageKeepsOriginalText(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	user, err := st.GetOrCreateUser(ctx, 400, "Eve")
	require.NoError(t, err)

	fc := clock.NewFake()
	fc.Set(time.Date(2026, 9, 1, 6, 0, 0, 0, time.UTC))
	svc := NewService(st, nil, fc, logx.Nop())

	res, err := svc.Create(ctx, user, "завтра 14:00")
	require.NoError(t, err)
	require.Equal(t, "завтра 14:00", res.Task.Description)
	require.Equal(t, storage.StatusScheduled, res.Task.Status)
}
