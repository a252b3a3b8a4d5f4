package hw

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// DefaultWatchdogTimeout matches the 500 ms hardware watchdog of the sensor.
const DefaultWatchdogTimeout = 500 * time.Millisecond

// SoftWatchdog closes its Expired channel when not kicked within the
// timeout. Expiry stands for a hardware reset: the owner must discard all
// device state and cold start.
type SoftWatchdog struct {
	timeout time.Duration
	now     func() time.Time
	last    atomic.Int64
	kicks   atomic.Uint64
	once    sync.Once
	expired chan struct{}
}

// NewSoftWatchdog creates an armed watchdog. The first kick is due within
// timeout of creation.
func NewSoftWatchdog(timeout time.Duration, now func() time.Time) *SoftWatchdog {
	if now == nil {
		now = time.Now
	}
	w := &SoftWatchdog{
		timeout: timeout,
		now:     now,
		expired: make(chan struct{}),
	}
	w.last.Store(now().UnixNano())
	return w
}

// Kick restarts the timeout.
func (w *SoftWatchdog) Kick() {
	w.last.Store(w.now().UnixNano())
	w.kicks.Inc()
}

// Kicks returns the number of kicks since creation.
func (w *SoftWatchdog) Kicks() uint64 {
	return w.kicks.Load()
}

// Expired is closed once the watchdog fires.
func (w *SoftWatchdog) Expired() <-chan struct{} {
	return w.expired
}

// Check fires the watchdog if the timeout has elapsed and reports whether
// it has fired.
func (w *SoftWatchdog) Check() bool {
	if w.now().Sub(time.Unix(0, w.last.Load())) > w.timeout {
		w.once.Do(func() { close(w.expired) })
	}
	select {
	case <-w.expired:
		return true
	default:
		return false
	}
}

// Run polls Check until the watchdog fires or ctx is cancelled.
func (w *SoftWatchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.timeout / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.Check() {
				return
			}
		}
	}
}

// DevWatchdog kicks a Linux watchdog device. Closing it writes the magic
// character so the kernel disarms the timer.
type DevWatchdog struct {
	f    *os.File
	errs errorLog
}

// OpenDevWatchdog opens a watchdog device such as /dev/watchdog.
func OpenDevWatchdog(path string) (*DevWatchdog, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open watchdog %s: %w", path, err)
	}
	return &DevWatchdog{f: f}, nil
}

func (w *DevWatchdog) Kick() {
	_, err := w.f.Write([]byte{0})
	w.errs.note("watchdog kick", err)
}

func (w *DevWatchdog) Close() error {
	if _, err := w.f.Write([]byte("V")); err != nil {
		w.f.Close()
		return fmt.Errorf("disarm watchdog: %w", err)
	}
	return w.f.Close()
}
