package relay

import (
	"sync"
	"time"
)

// Detector ends a session after prolonged silence. The timer arms when a
// turn completes and disarms whenever speech activity is seen.
type Detector struct {
	timeout time.Duration

	mu        sync.Mutex
	timer     *time.Timer
	onSilence func()
}

func NewDetector(timeout time.Duration) *Detector {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Detector{timeout: timeout}
}

func (d *Detector) OnSilence(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onSilence = callback
}

// OnActivity disarms the silence timer.
func (d *Detector) OnActivity() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// OnTurnEnded arms the silence timer.
func (d *Detector) OnTurnEnded() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.timeout, func() {
		d.mu.Lock()
		callback := d.onSilence
		d.timer = nil
		d.mu.Unlock()

		if callback != nil {
			callback()
		}
	})
}

// Cancel disarms the timer without firing.
func (d *Detector) Cancel() {
	d.OnActivity()
}
