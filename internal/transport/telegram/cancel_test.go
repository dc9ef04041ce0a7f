package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sadrozzy/Assistant-AI/internal/transcribe"
	"github.com/sadrozzy/Assistant-AI/pkg/logx"
)

func TestCancelTrackerAbortsTrackedContext(t *testing.T) {
	tr := newCancelTracker()

	ctx, release := tr.track(1, context.Background())
	defer release()

	require.False(t, tr.cancel(2), "other users are untouched")
	require.NoError(t, ctx.Err())

	require.True(t, tr.cancel(1))
	require.ErrorIs(t, ctx.Err(), context.Canceled)
	require.False(t, tr.cancel(1), "entry is gone after cancel")
}

func TestCancelTrackerNewWorkSupersedesOld(t *testing.T) {
	tr := newCancelTracker()

	first, rel1 := tr.track(1, context.Background())
	defer rel1()
	second, rel2 := tr.track(1, context.Background())
	defer rel2()

	require.ErrorIs(t, first.Err(), context.Canceled)
	require.NoError(t, second.Err())
}

func TestCancelTrackerReleaseKeepsSuccessor(t *testing.T) {
	tr := newCancelTracker()

	_, rel1 := tr.track(1, context.Background())
	second, rel2 := tr.track(1, context.Background())
	defer rel2()

	// The superseded handler unwinds after its successor started. Its
	// release must not drop the successor's entry.
	rel1()
	require.True(t, tr.cancel(1))
	require.ErrorIs(t, second.Err(), context.Canceled)
}

func TestCancelAbortsInFlightTranscription(t *testing.T) {
	// The job never completes, so only user cancellation can end the poll.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/upload":
			json.NewEncoder(w).Encode(map[string]string{"upload_url": "u"})
		case r.URL.Path == "/transcript" && r.Method == http.MethodPost:
			json.NewEncoder(w).Encode(map[string]string{"id": "tr-1", "status": "queued"})
		default:
			json.NewEncoder(w).Encode(map[string]string{"id": "tr-1", "status": "processing"})
		}
	}))
	defer srv.Close()

	tr := newCancelTracker()
	ctx, release := tr.track(9, context.Background())
	defer release()

	a := transcribe.NewAssemblyAI("k", logx.Nop(),
		transcribe.WithBaseURL(srv.URL), transcribe.WithPollInterval(5*time.Millisecond))

	done := make(chan error, 1)
	go func() {
		_, err := a.Transcribe(ctx, []byte{1})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.True(t, tr.cancel(9))

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("transcription did not stop after cancel")
	}
}
