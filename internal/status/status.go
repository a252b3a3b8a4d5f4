// Package status provides a thread-safe status tracker for the irsensor daemon.
// It is read by the HTTP handlers, the websocket feed and heartbeat publishing.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/irsensor/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Backend            string
	Broker             string
	HTTPAddr           string
	InterruptHz        int
	CyclesAveraged     int
	FanSamplesAveraged int
	LoopMs             int64
	DebounceMs         int64
	HeartbeatMs        int64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	// Reported (debounced) state.
	Level     logic.Level
	Fan       bool
	Baselined bool
	Counts    logic.EventCounts

	// Raw state from the most recent foreground step.
	Tick         uint16
	Sums         logic.Sums
	RawLevel     logic.Level
	FanSums      logic.FanSums
	FanDiff      uint16
	FanReason    logic.FanReason
	Hold         int
	Differential bool

	Variant       string
	Running       bool
	Restarts      int
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the reported level and fan, baseline status, and event counts.
func (t *Tracker) Update(level logic.Level, fan, baselined bool, counts logic.EventCounts) {
	t.mu.Lock()
	t.snap.Level = level
	t.snap.Fan = fan
	t.snap.Baselined = baselined
	t.snap.Counts = counts
	t.mu.Unlock()
}

// Observe records the raw result of a foreground step. Fan fields are
// only replaced when the step carried a fan check.
func (t *Tracker) Observe(res logic.StepResult) {
	t.mu.Lock()
	t.snap.Tick = res.Tick
	t.snap.Sums = res.Sums
	t.snap.RawLevel = res.Level
	t.snap.Differential = res.Differential
	if f := res.Fan; f != nil {
		t.snap.FanSums = f.Sums
		t.snap.FanDiff = f.Diff
		t.snap.Hold = f.Hold
		if f.Changed {
			t.snap.FanReason = f.Reason
		}
	}
	t.mu.Unlock()
}

// SetDevice records the board variant and whether the scheduler is running.
func (t *Tracker) SetDevice(variant logic.Variant, running bool) {
	t.mu.Lock()
	t.snap.Variant = variant.String()
	t.snap.Running = running
	t.mu.Unlock()
}

// AddRestart counts a watchdog restart.
func (t *Tracker) AddRestart() {
	t.mu.Lock()
	t.snap.Restarts++
	t.snap.Running = false
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
