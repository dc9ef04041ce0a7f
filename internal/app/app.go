// Package app wires the assistant together: config, logging, storage,
// the Telegram front end, calendar sync, and the reminder loop.
package app

import (
	"context"
	"strings"
	"time"

	"github.com/jmhodges/clock"

	"github.com/sadrozzy/Assistant-AI/internal/calendar"
	"github.com/sadrozzy/Assistant-AI/internal/config"
	"github.com/sadrozzy/Assistant-AI/internal/googleauth"
	"github.com/sadrozzy/Assistant-AI/internal/notify"
	"github.com/sadrozzy/Assistant-AI/internal/reminder"
	"github.com/sadrozzy/Assistant-AI/internal/runtime/supervisor"
	"github.com/sadrozzy/Assistant-AI/internal/storage"
	"github.com/sadrozzy/Assistant-AI/internal/tasks"
	"github.com/sadrozzy/Assistant-AI/internal/transcribe"
	"github.com/sadrozzy/Assistant-AI/internal/transport/telegram"
	"github.com/sadrozzy/Assistant-AI/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	store storage.Store

	bot   *telegram.Bot
	sched *reminder.Scheduler

	reminderEnabled bool
}

func New(ctx context.Context, cfgPath string) (*App, error) {
	bootLog := logx.NewConsole("INFO")

	cfgm := config.NewManager(cfgPath, bootLog.With(logx.String("comp", "config")))
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	busyTimeout, err := config.DurationField("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(ctx, storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		DSN:         cfg.Storage.DSN,
		BusyTimeout: busyTimeout,
	}, logs.Logger().With(logx.String("comp", "storage")))
	if err != nil {
		logs.Close()
		return nil, err
	}
	log.Info("storage opened", logx.String("driver", cfg.Storage.Driver))

	clk := clock.New()

	auth := googleauth.New(googleauth.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURI:  cfg.Google.RedirectURI,
	})
	var rec *calendar.Reconciler
	if auth.Enabled() {
		remote := calendar.NewGoogleClient()
		rec = calendar.NewReconciler(remote, clk, logs.Logger().With(logx.String("comp", "calendar")))
		log.Info("calendar sync enabled")
	}

	var trans transcribe.Transcriber
	if strings.TrimSpace(cfg.Voice.AssemblyAIKey) != "" {
		trans = transcribe.NewAssemblyAI(cfg.Voice.AssemblyAIKey,
			logs.Logger().With(logx.String("comp", "transcribe")))
		log.Info("voice transcription enabled")
	}

	svc := tasks.NewService(store, rec, clk, logs.Logger().With(logx.String("comp", "tasks")))

	pollTimeout, err := config.DurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		store.Close()
		logs.Close()
		return nil, err
	}
	bot, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
		TempDir:     cfg.Voice.TempDir,
	}, svc, store, auth, trans, clk, logs.Logger().With(logx.String("comp", "telegram")))
	if err != nil {
		store.Close()
		logs.Close()
		return nil, err
	}

	notifier := notify.New(bot, 0, logs.Logger().With(logx.String("comp", "notify")))
	sched := reminder.New(store, notifier, cfg.ReminderInterval(), clk,
		logs.Logger().With(logx.String("comp", "reminder")))

	return &App{
		cfgm:            cfgm,
		log:             log,
		logs:            logs,
		store:           store,
		bot:             bot,
		sched:           sched,
		reminderEnabled: cfg.Reminder.Enabled,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true),
	)

	a.bot.Start(a.sup.Context())
	if a.reminderEnabled {
		if err := a.sched.Start(a.sup.Context()); err != nil {
			return err
		}
	}

	// The watcher survives transient fsnotify failures (e.g. the config
	// directory being re-created during deploys).
	a.sup.GoRestart("config.watch", time.Second, 30*time.Second, func(ctx context.Context) error {
		return a.cfgm.Watch(ctx)
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case cfg, ok := <-sub:
				if !ok {
					return nil
				}
				a.applyReload(cfg)
			}
		}
	})

	a.log.Info("started")
	return nil
}

// applyReload carries the hot-reloadable parts of a fresh config into the
// running services. Storage and transport changes need a restart.
func (a *App) applyReload(cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	if cfg.Reminder.Enabled {
		a.sched.Apply(cfg.ReminderInterval())
		// No-op when already running; starts the loop when reminders
		// were toggled on by this reload.
		if err := a.sched.Start(a.sup.Context()); err != nil {
			a.log.Error("reminder scheduler start failed", logx.Err(err))
		}
	} else {
		a.sched.Stop()
	}
	a.log.Info("config reloaded")
}

// Done is closed when the supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Stop(ctx context.Context) error {
	a.sched.Stop()
	a.bot.Stop()

	var err error
	if a.sup != nil {
		err = a.sup.Stop(ctx)
	}
	if cerr := a.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	a.logs.Close()
	return err
}
