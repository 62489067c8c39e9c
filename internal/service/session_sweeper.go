package service

import (
	"context"
	"sync"
	"time"

	"github.com/lshigami/testcert/config"
	"github.com/rs/zerolog/log"
)

// SessionSweeper runs CleanupExpired on a fixed interval. A missed tick only
// delays cleanup: every session access re-checks the deadline.
type SessionSweeper struct {
	sessions TestSessionService
	interval time.Duration
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewSessionSweeper(sessions TestSessionService, cfg *config.Config) *SessionSweeper {
	return &SessionSweeper{sessions: sessions, interval: cfg.Session.SweepInterval}
}

func (w *SessionSweeper) Start() {
	if w.interval <= 0 {
		log.Warn().Msg("Session sweep interval is not positive, sweeper disabled")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := w.sessions.CleanupExpired(ctx); err != nil {
					log.Error().Err(err).Msg("Session sweep failed")
				}
			}
		}
	}()
	log.Info().Dur("interval", w.interval).Msg("Session sweeper started")
}

func (w *SessionSweeper) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	w.wg.Wait()
	log.Info().Msg("Session sweeper stopped")
}
