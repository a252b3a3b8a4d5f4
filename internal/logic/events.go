// Package logic contains the sensor core: the phase scheduler that runs in
// interrupt context, the foreground sensor and fan controllers, and the
// cold-start calibration. It never sleeps or reads the clock; hardware is
// reached through package hw and time is injected by the caller.
package logic

import "time"

// EventType represents a reportable transition.
type EventType string

const (
	EventLevelOff         EventType = "LEVEL_OFF"
	EventLevelApproaching EventType = "LEVEL_APPROACHING"
	EventLevelOn          EventType = "LEVEL_ON"
	EventLevelSaturated   EventType = "LEVEL_SATURATED"
	EventFanOn            EventType = "FAN_ON"
	EventFanOff           EventType = "FAN_OFF"
)

// Event represents a transition to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Level     Level
	Fan       bool
	Reason    FanReason // set on fan events
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Off         int
	Approaching int
	On          int
	Saturated   int
	FanOn       int
	FanOff      int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Level     Level
	Fan       bool
	Counts    EventCounts
}

func levelEvent(l Level) EventType {
	switch l {
	case LevelApproaching:
		return EventLevelApproaching
	case LevelOn:
		return EventLevelOn
	case LevelSaturated:
		return EventLevelSaturated
	}
	return EventLevelOff
}

// Detector turns foreground steps into debounced events for reporting.
// The output lines follow every step; only the published view is
// debounced, so a level must hold for the debounce duration to be
// reported. Fan transitions are reported as they happen since the fan
// controller already enforces a minimum run time.
type Detector struct {
	debounceDuration time.Duration
	baselined        bool
	stable           Level
	pending          Level
	pendingSince     time.Time
	fan              bool
	startTime        time.Time
	eventCounts      EventCounts
	lastHeartbeat    time.Time
}

// NewDetector creates a transition detector with the given debounce duration.
// The startTime is used for calculating uptime in heartbeat events.
func NewDetector(debounceDuration time.Duration, startTime time.Time) *Detector {
	return &Detector{
		debounceDuration: debounceDuration,
		startTime:        startTime,
		lastHeartbeat:    startTime,
	}
}

// Process takes a step result and returns any events that should be emitted.
// Events are only returned after a baseline level has been established.
func (d *Detector) Process(res StepResult, now time.Time) []Event {
	var events []Event

	if lvl, ok := d.processLevel(res.Level, now); ok {
		events = append(events, Event{Timestamp: now, Type: levelEvent(lvl), Level: lvl, Fan: d.fan})
	}

	if res.Fan != nil && res.Fan.On != d.fan {
		d.fan = res.Fan.On
		if d.baselined {
			typ := EventFanOff
			if d.fan {
				typ = EventFanOn
			}
			events = append(events, Event{Timestamp: now, Type: typ, Level: d.stable, Fan: d.fan, Reason: res.Fan.Reason})
		}
	}

	for _, e := range events {
		switch e.Type {
		case EventLevelOff:
			d.eventCounts.Off++
		case EventLevelApproaching:
			d.eventCounts.Approaching++
		case EventLevelOn:
			d.eventCounts.On++
		case EventLevelSaturated:
			d.eventCounts.Saturated++
		case EventFanOn:
			d.eventCounts.FanOn++
		case EventFanOff:
			d.eventCounts.FanOff++
		}
	}
	return events
}

// processLevel debounces the level. It reports a transition of the stable
// level, never the first baseline.
func (d *Detector) processLevel(lvl Level, now time.Time) (Level, bool) {
	if d.baselined && lvl == d.stable {
		d.pending = ""
		return "", false
	}

	if d.pending != lvl {
		d.pending = lvl
		d.pendingSince = now
		if d.debounceDuration > 0 {
			return "", false
		}
	}

	if now.Sub(d.pendingSince) < d.debounceDuration {
		return "", false
	}

	d.pending = ""
	d.stable = lvl
	if !d.baselined {
		d.baselined = true
		return "", false
	}
	return lvl, true
}

// IsBaselined returns whether the detector has established a baseline.
func (d *Detector) IsBaselined() bool {
	return d.baselined
}

// CurrentState returns the reported level and fan state.
func (d *Detector) CurrentState() (Level, bool) {
	return d.stable, d.fan
}

// Counts returns the number of events emitted so far.
func (d *Detector) Counts() EventCounts {
	return d.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if not yet baselined, if the
// interval has not elapsed, or if interval is <= 0 (disabled).
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if !d.baselined {
		return nil
	}

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Level:     d.stable,
		Fan:       d.fan,
		Counts:    d.eventCounts,
	}
}
