package mcpengine

import (
	"sync"
	"time"
)

// keepalive runs a sliding idle window over the engine connection.
// When nothing is in flight for the full timeout, onIdle fires once.
type keepalive struct {
	mu       sync.Mutex
	timer    *time.Timer
	timerID  uint64
	inFlight int
	timeout  time.Duration
	onIdle   func()
}

func newKeepalive(timeout time.Duration, onIdle func()) *keepalive {
	return &keepalive{timeout: timeout, onIdle: onIdle}
}

// begin marks the start of an engine call and cancels any pending idle timer,
// so a long prediction is never evicted mid-call.
func (k *keepalive) begin() {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.stopTimerLocked()
	k.inFlight++
}

// end marks completion of an engine call. The idle timer starts only after
// the final in-flight call completes.
func (k *keepalive) end() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.inFlight > 1 {
		k.inFlight--
		return
	}
	k.inFlight = 0

	if k.timeout <= 0 {
		return
	}
	k.stopTimerLocked()
	k.timerID++
	id := k.timerID
	k.timer = time.AfterFunc(k.timeout, func() {
		k.expire(id)
	})
}

func (k *keepalive) expire(id uint64) {
	k.mu.Lock()
	if k.timer == nil || k.timerID != id || k.inFlight > 0 {
		k.mu.Unlock()
		return
	}
	k.timer = nil
	onIdle := k.onIdle
	k.mu.Unlock()

	if onIdle != nil {
		onIdle()
	}
}

func (k *keepalive) stopTimerLocked() {
	if k.timer != nil {
		k.timer.Stop()
		k.timer = nil
	}
}

// stop cancels the idle timer.
func (k *keepalive) stop() {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.stopTimerLocked()
	k.inFlight = 0
}
