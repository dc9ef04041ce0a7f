package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sadrozzy/Assistant-AI/pkg/logx"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalYAML = `
telegram:
  token: "123:abc"
`

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), minimalYAML)
	m := NewManager(path, logx.Nop())

	cfg, err := m.Load()
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Storage.Driver)
	require.Equal(t, "./assistant.db", cfg.Storage.Path)
	require.Equal(t, "info", cfg.Logging.Level)
	require.True(t, cfg.Logging.Console)
	require.Equal(t, DefaultReminderInterval, cfg.ReminderInterval())
	require.Same(t, cfg, m.Get())
}

func TestParseRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, t.TempDir(), minimalYAML+`
remnder:
  enabled: true
`)
	m := NewManager(path, logx.Nop())
	_, err := m.Parse()
	require.ErrorContains(t, err, "remnder")
}

func TestParseRejectsMissingToken(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
logging:
  level: debug
`)
	m := NewManager(path, logx.Nop())
	_, err := m.Parse()
	require.ErrorContains(t, err, "telegram.token")
}

func TestParseRejectsPartialGoogleConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), minimalYAML+`
google:
  client_id: "id"
`)
	m := NewManager(path, logx.Nop())
	_, err := m.Parse()
	require.ErrorContains(t, err, "must be set together")
}

func TestParseRejectsPostgresWithoutDSN(t *testing.T) {
	path := writeConfig(t, t.TempDir(), minimalYAML+`
storage:
  driver: postgres
`)
	m := NewManager(path, logx.Nop())
	_, err := m.Parse()
	require.ErrorContains(t, err, "storage.dsn")
}

func TestParseRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, t.TempDir(), minimalYAML+`
reminder:
  enabled: true
  interval: "soon"
`)
	m := NewManager(path, logx.Nop())
	_, err := m.Parse()
	require.ErrorContains(t, err, "reminder.interval")
}

func TestDurationField(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		def  time.Duration
		want time.Duration
		err  string
	}{
		{name: "value wins over default", raw: "90s", def: time.Minute, want: 90 * time.Second},
		{name: "empty takes default", raw: "", def: time.Minute, want: time.Minute},
		{name: "blank takes default", raw: "  ", def: time.Minute, want: time.Minute},
		{name: "zero takes default", raw: "0s", def: time.Minute, want: time.Minute},
		{name: "garbage rejected", raw: "soon", err: "cannot parse"},
		{name: "negative rejected", raw: "-5s", err: "negative"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DurationField("reminder.interval", tc.raw, tc.def)
			if tc.err != "" {
				require.ErrorContains(t, err, "reminder.interval")
				require.ErrorContains(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestWatchPublishesValidChangeAndKeepsConfigOnBadOne(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, minimalYAML)
	m := NewManager(path, logx.Nop())
	_, err := m.Load()
	require.NoError(t, err)

	sub := m.Subscribe(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()
	// Give the watcher a beat to register before the first write.
	time.Sleep(100 * time.Millisecond)

	writeConfig(t, dir, minimalYAML+`
reminder:
  enabled: true
  interval: "30s"
`)
	select {
	case cfg := <-sub:
		require.Equal(t, 30*time.Second, cfg.ReminderInterval())
	case <-time.After(3 * time.Second):
		t.Fatal("no config published after valid change")
	}

	// A broken write must not clobber the committed config.
	writeConfig(t, dir, "telegram: [")
	time.Sleep(500 * time.Millisecond)
	require.Equal(t, 30*time.Second, m.Get().ReminderInterval())

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
