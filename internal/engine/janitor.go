package engine

import (
	"context"
	"log"
	"time"
)

// Janitor reclaims abandoned sessions: active sessions idle past the
// staleness window are hard-deleted the same way a host close would,
// cascading to participants and responses.
type Janitor struct {
	engine   *Engine
	maxIdle  time.Duration
	interval time.Duration
}

func NewJanitor(e *Engine, maxIdle, interval time.Duration) *Janitor {
	return &Janitor{engine: e, maxIdle: maxIdle, interval: interval}
}

// Run sweeps until the context is canceled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := j.Sweep(ctx); err != nil {
				log.Printf("janitor sweep: %v", err)
			} else if n > 0 {
				log.Printf("janitor reclaimed %d stale session(s)", n)
			}
		}
	}
}

// Sweep deletes stale sessions once and reports how many were reclaimed.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	sessions, err := j.engine.store.ListSessions(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := j.engine.now().Add(-j.maxIdle)
	reclaimed := 0
	for _, sess := range sessions {
		if sess.LastActivityAt.After(cutoff) {
			continue
		}
		if err := j.engine.store.DeleteSession(ctx, sess.ID); err != nil {
			log.Printf("janitor delete session %s: %v", sess.ID, err)
			continue
		}
		j.engine.releaseLive(ctx, sess)
		reclaimed++
	}
	return reclaimed, nil
}
