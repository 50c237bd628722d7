package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/apptremind/remindctl/internal/session"
)

const (
	defaultKeepalive = time.Minute
	maxBackoff       = 5 * time.Minute
)

// hydrator is the part of session.Facade the keepalive needs.
type hydrator interface {
	Hydrate(ctx context.Context) (session.Identity, bool)
	Snapshot() session.Snapshot
}

// StartKeepalive launches a background goroutine that re-hydrates the session
// at a fixed cadence, backing off while lookups fail. It returns immediately.
// A rejected session is not retried faster; the next tick simply finds no pair.
func StartKeepalive(ctx context.Context, sess hydrator, interval time.Duration, log zerolog.Logger) {
	if interval <= 0 {
		interval = defaultKeepalive
	}
	go func() {
		timer := time.NewTimer(interval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}

			_, ok := sess.Hydrate(ctx)
			snap := sess.Snapshot()
			wait := calculateBackoff(snap.ConsecutiveFailures, interval)
			if snap.ConsecutiveFailures > 0 {
				log.Warn().
					Err(snap.LastError).
					Int("failures", snap.ConsecutiveFailures).
					Dur("next", wait).
					Msg("keepalive failed")
			} else {
				log.Debug().Bool("signed_in", ok).Msg("keepalive")
			}
			timer.Reset(wait)
		}
	}()
}

// calculateBackoff doubles base per consecutive failure, capped at maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	wait := base
	for i := 0; i < failures; i++ {
		wait *= 2
		if wait >= maxBackoff {
			return maxBackoff
		}
	}
	return wait
}
