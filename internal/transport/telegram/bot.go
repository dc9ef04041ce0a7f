// Package telegram is the chat front end: it turns Telegram updates into
// task intake, settings changes, and Google authorization, and carries
// reminder deliveries back out.
package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jmhodges/clock"
	tele "gopkg.in/telebot.v4"

	"github.com/sadrozzy/Assistant-AI/internal/googleauth"
	"github.com/sadrozzy/Assistant-AI/internal/storage"
	"github.com/sadrozzy/Assistant-AI/internal/tasks"
	"github.com/sadrozzy/Assistant-AI/internal/transcribe"
	"github.com/sadrozzy/Assistant-AI/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
	// TempDir holds downloaded voice files while they are transcribed.
	// Empty means the system temp directory.
	TempDir string
}

// handlerTimeout bounds one update's worth of work. Voice messages get
// more time because transcription polls a remote job.
const (
	handlerTimeout = 30 * time.Second
	voiceTimeout   = 3 * time.Minute
)

type Bot struct {
	bot     *tele.Bot
	tasks   *tasks.Service
	store   storage.Store
	auth    *googleauth.Provider
	trans   transcribe.Transcriber // nil disables voice intake
	states  *stateTracker
	cancels *cancelTracker
	tempDir string
	log     logx.Logger

	runMu   sync.Mutex
	running bool
	runCtx  context.Context
	cancel  context.CancelFunc
}

func New(cfg Config, svc *tasks.Service, store storage.Store, auth *googleauth.Provider, trans transcribe.Transcriber, clk clock.Clock, log logx.Logger) (*Bot, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	tb, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	b := &Bot{
		bot:     tb,
		tasks:   svc,
		store:   store,
		auth:    auth,
		trans:   trans,
		states:  newStateTracker(clk),
		cancels: newCancelTracker(),
		tempDir: cfg.TempDir,
		log:     log,
	}
	b.registerHandlers()
	return b, nil
}

// Start launches the long-poll loop. It returns immediately; the loop
// stops when ctx is cancelled or Stop is called.
func (b *Bot) Start(ctx context.Context) {
	b.runMu.Lock()
	defer b.runMu.Unlock()
	if b.running {
		return
	}
	b.running = true
	b.runCtx, b.cancel = context.WithCancel(ctx)

	go func() {
		<-b.runCtx.Done()
		b.bot.Stop()
	}()
	go func() {
		b.log.Info("polling started")
		b.bot.Start()
		b.log.Info("polling stopped")
	}()
}

func (b *Bot) Stop() {
	b.runMu.Lock()
	defer b.runMu.Unlock()
	if !b.running {
		return
	}
	b.running = false
	b.cancel()
}

// SendText delivers a plain message to a chat. This is the outbound
// side used by the notification service.
func (b *Bot) SendText(ctx context.Context, chatID int64, text string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	_, err := b.bot.Send(&tele.Chat{ID: chatID}, text)
	return err
}

// handlerCtx derives a per-update context from the run context, so
// in-flight handlers unwind during shutdown.
func (b *Bot) handlerCtx(timeout time.Duration) (context.Context, context.CancelFunc) {
	b.runMu.Lock()
	base := b.runCtx
	b.runMu.Unlock()
	if base == nil {
		base = context.Background()
	}
	return context.WithTimeout(base, timeout)
}

// resolveUser upserts the sender. Every handler goes through this so a
// user row always exists before any task or settings operation.
func (b *Bot) resolveUser(ctx context.Context, c tele.Context) (storage.User, error) {
	sender := c.Sender()
	if sender == nil {
		return storage.User{}, errors.New("update without sender")
	}
	name := strings.TrimSpace(strings.TrimSpace(sender.FirstName) + " " + strings.TrimSpace(sender.LastName))
	return b.store.GetOrCreateUser(ctx, sender.ID, name)
}
