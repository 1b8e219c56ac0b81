package room

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// RunJanitor removes idle rooms every interval until ctx is done. A room is
// idle when nobody is connected and nothing happened for idleTTL.
func (r *Registry) RunJanitor(ctx context.Context, interval, idleTTL time.Duration) {
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Dur("idle_ttl", idleTTL).Msg("room janitor started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("room janitor stopped")
			return
		case <-ticker.Chan():
			if n := r.Sweep(idleTTL); n > 0 {
				log.Info().Int("removed", n).Int("remaining", r.Len()).Msg("removed idle rooms")
			}
		}
	}
}

// Sweep removes idle rooms once and returns how many were removed.
func (r *Registry) Sweep(idleTTL time.Duration) int {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for code, rm := range r.rooms {
		rm.mu.Lock()
		if rm.connectedCount() == 0 && now.Sub(rm.lastActive) >= idleTTL {
			rm.cancelTimer()
			delete(r.rooms, code)
			removed++
			log.Debug().Str("room_code", code).Msg("room torn down")
		}
		rm.mu.Unlock()
	}
	return removed
}
