// Package sweeper periodically resolves idle sessions the client never
// explicitly closed (spec §4.6).
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/connexus-ai/ragbox-backend/internal/domain"
	"github.com/connexus-ai/ragbox-backend/internal/metering"
	"github.com/connexus-ai/ragbox-backend/internal/observability"
	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

const (
	sweepInterval      = 5 * time.Minute
	defaultIdleTimeout = 30 * time.Minute
)

// Sweeper finds sessions that have sat active past the idle threshold and
// resolves them, flushing their metering counters as a timeout.
type Sweeper struct {
	sessions    ports.SessionStore
	usage       *metering.Usage
	idleTimeout time.Duration
	stopCh      chan struct{}
	metrics     *observability.Metrics
}

// New creates a Sweeper. idleTimeout <= 0 falls back to the documented
// 30-minute default. metrics may be nil.
func New(sessions ports.SessionStore, usage *metering.Usage, idleTimeout time.Duration, metrics *observability.Metrics) *Sweeper {
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}
	return &Sweeper{
		sessions:    sessions,
		usage:       usage,
		idleTimeout: idleTimeout,
		stopCh:      make(chan struct{}),
		metrics:     metrics,
	}
}

// Run blocks, sweeping every sweepInterval until ctx is cancelled or Stop
// is called. Intended to be launched in its own goroutine at server start.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Stop halts the sweep loop.
func (s *Sweeper) Stop() {
	close(s.stopCh)
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.idleTimeout).Unix()

	sessions, err := s.sessions.ListActiveOlderThan(ctx, cutoff)
	if err != nil {
		slog.Error("sweeper.sweep: list active sessions failed", "error", err)
		return
	}

	for _, sess := range sessions {
		if err := s.closeIdle(ctx, sess); err != nil {
			slog.Error("sweeper.sweep: close idle session failed", "session_id", sess.ID, "error", err)
		}
	}
}

func (s *Sweeper) closeIdle(ctx context.Context, sess *domain.Session) error {
	if err := s.sessions.UpdateStatus(ctx, sess.ID, domain.SessionResolved, ""); err != nil {
		return err
	}
	if err := s.usage.CloseSession(ctx, sess.ID, sess.TenantID, metering.EventTimeout); err != nil {
		return err
	}
	s.metrics.IncrementSweeperSessionsClosed()
	return nil
}
