// This file is part of FM2KNet.
//
// FM2KNet is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// FM2KNet is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with FM2KNet.  If not, see <https://www.gnu.org/licenses/>.

// Package limiter provides a rough and ready way of limiting events to a fixed
// rate.
//
// A new Limiter can be created with:
//
//	lim := limiter.NewLimiter(time.Second / 100)
//	defer lim.Stop()
//
// Operations can then be stalled with the Wait() function. For example:
//
//	for {
//		lim.Wait()
//		runFrame()
//	}
//
// The duration can be changed at any time with SetDuration(). The change
// takes effect from the next tick.
package limiter

import (
	"sync/atomic"
	"time"
)

// Limiter will trigger every duration.
type Limiter struct {
	duration atomic.Int64

	tick chan bool
	quit chan bool
}

// NewLimiter is the preferred method of initialisation for the Limiter type.
func NewLimiter(duration time.Duration) *Limiter {
	lim := &Limiter{
		tick: make(chan bool),
		quit: make(chan bool),
	}
	lim.SetDuration(duration)

	// run ticker concurrently
	go func() {
		adjusted := lim.Duration()
		t := time.Now()
		for {
			select {
			case lim.tick <- true:
			case <-lim.quit:
				return
			}

			d := lim.Duration()
			time.Sleep(adjusted)
			nt := time.Now()

			// correct for oversleeping. the adjustment is reset if the
			// duration has changed or the correction has run away
			adjusted -= nt.Sub(t) - d
			if adjusted < 0 || adjusted > d*2 {
				adjusted = d
			}
			t = nt
		}
	}()

	return lim
}

// SetDuration changes the duration between ticks.
func (lim *Limiter) SetDuration(duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	lim.duration.Store(int64(duration))
}

// Duration returns the current duration between ticks.
func (lim *Limiter) Duration() time.Duration {
	return time.Duration(lim.duration.Load())
}

// Wait will block until trigger.
func (lim *Limiter) Wait() {
	<-lim.tick
}

// HasWaited will return true if time has already elapsed and false it it is
// still yet to happen.
func (lim *Limiter) HasWaited() bool {
	select {
	case <-lim.tick:
		return true
	default:
		// default case means that the channel receiving case doesn't block
		return false
	}
}

// Stop the ticker goroutine. The Limiter should not be used after Stop().
func (lim *Limiter) Stop() {
	close(lim.quit)
}
