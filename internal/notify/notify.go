// Package notify delivers user-facing notifications.
//
// The scheduler treats delivery as fire-and-forget beyond error logging;
// a failed send simply leaves the task eligible for the next poll.
package notify

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/sadrozzy/Assistant-AI/pkg/logx"
)

// Adapter is the underlying chat transport.
type Adapter interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Sender is what the reminder scheduler consumes.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Service rate-limits sends so reminder bursts don't trip the transport's
// flood control.
type Service struct {
	adapter Adapter
	limiter *rate.Limiter
	log     logx.Logger
}

func New(adapter Adapter, ratePerSec int, log logx.Logger) *Service {
	if ratePerSec <= 0 {
		ratePerSec = 3
	}
	return &Service{
		adapter: adapter,
		// Burst = rate per sec, so short spikes don't block too hard.
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		log:     log,
	}
}

func (s *Service) Send(ctx context.Context, chatID int64, text string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	err := s.adapter.SendText(ctx, chatID, text)
	if err != nil {
		s.log.Warn("notification send failed", logx.Int64("chat_id", chatID), logx.Err(err))
	} else {
		s.log.Debug("notification sent", logx.Int64("chat_id", chatID))
	}
	return err
}
