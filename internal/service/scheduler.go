package service

import (
	"context"
	"log/slog"
	"time"
)

// StartExpiryScheduler runs a background loop that expires stale active
// turns at the given interval (hourly when interval <= 0). It blocks
// until the context is cancelled, so it should be launched in a
// separate goroutine. One sweep also runs immediately at startup to
// catch turns that went stale while the server was down.
func (s *TurnService) StartExpiryScheduler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("Turn expiry scheduler started", "interval", interval)
	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Turn expiry scheduler stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *TurnService) sweep(ctx context.Context) {
	if _, err := s.ExpireOldTurns(ctx); err != nil {
		slog.Error("Turn expiry sweep failed", "error", err)
	}
}
