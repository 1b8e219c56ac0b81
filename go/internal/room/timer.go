package room

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// countdown is the bookkeeping for a room's single expiry timer. gen is
// bumped on every cancel so a timer that fires after being replaced is
// ignored.
type countdown struct {
	timer    clockwork.Timer
	stop     chan struct{}
	deadline time.Time
	gen      uint64
}

// rearm makes the armed timer match the engine deadline. Caller holds mu.
func (rm *Room) rearm() {
	deadline, ok := rm.engine.Deadline()
	if !ok || rm.unavailable {
		rm.cancelTimer()
		return
	}
	if rm.countdown.timer != nil && rm.countdown.deadline.Equal(deadline) {
		return
	}
	rm.cancelTimer()

	d := deadline.Sub(rm.reg.clock.Now())
	if d < 0 {
		d = 0
	}
	gen := rm.countdown.gen
	timer := rm.reg.clock.NewTimer(d)
	stop := make(chan struct{})
	rm.countdown.timer = timer
	rm.countdown.stop = stop
	rm.countdown.deadline = deadline

	go func() {
		select {
		case <-timer.Chan():
			rm.expire(gen)
		case <-stop:
		}
	}()

	log.Debug().
		Str("room_code", rm.code).
		Time("deadline", deadline).
		Dur("duration", d).
		Uint64("generation", gen).
		Msg("countdown armed")
}

// cancelTimer stops the armed timer, if any. Caller holds mu.
func (rm *Room) cancelTimer() {
	if rm.countdown.timer == nil {
		return
	}
	stopAndDrainTimer(rm.countdown.timer)
	close(rm.countdown.stop)
	rm.countdown = countdown{gen: rm.countdown.gen + 1}
	log.Debug().Str("room_code", rm.code).Msg("countdown cancelled")
}

// expire resolves the current lot when the timer of generation gen fires.
func (rm *Room) expire(gen uint64) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if gen != rm.countdown.gen || rm.countdown.timer == nil || rm.unavailable {
		log.Debug().Str("room_code", rm.code).Uint64("generation", gen).Msg("stale countdown ignored")
		return
	}
	rm.countdown = countdown{gen: gen + 1}

	if !rm.engine.Expired() {
		rm.rearm()
		return
	}
	res, ok := rm.engine.ResolveLot()
	if !ok {
		return
	}
	rm.commit(rm.resolved(res, false)...)
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
