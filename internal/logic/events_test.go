package logic

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func step(l Level) StepResult {
	return StepResult{Level: l}
}

func fanStep(l Level, on bool, reason FanReason) StepResult {
	return StepResult{Level: l, Fan: &FanDecision{On: on, Changed: true, Reason: reason}}
}

func setupBaselinedDetector(t *testing.T, l Level) *Detector {
	t.Helper()
	d := NewDetector(250*time.Millisecond, t0)
	d.Process(step(l), t0)
	if events := d.Process(step(l), t0.Add(250*time.Millisecond)); len(events) != 0 {
		t.Fatalf("expected no events at baseline, got %d", len(events))
	}
	if !d.IsBaselined() {
		t.Fatal("detector not baselined")
	}
	return d
}

func TestNewDetector(t *testing.T) {
	d := NewDetector(250*time.Millisecond, t0)
	if d == nil {
		t.Fatal("NewDetector returned nil")
	}
	if d.baselined {
		t.Error("new detector should not be baselined")
	}
	if !d.lastHeartbeat.Equal(t0) {
		t.Errorf("expected lastHeartbeat %v, got %v", t0, d.lastHeartbeat)
	}
}

func TestBaselineEstablishment(t *testing.T) {
	d := NewDetector(250*time.Millisecond, t0)

	if events := d.Process(step(LevelOff), t0); len(events) != 0 {
		t.Errorf("expected no events during baseline, got %d", len(events))
	}
	d.Process(step(LevelOff), t0.Add(200*time.Millisecond))
	if d.IsBaselined() {
		t.Error("should not be baselined before debounce period")
	}

	if events := d.Process(step(LevelOff), t0.Add(250*time.Millisecond)); len(events) != 0 {
		t.Errorf("expected no events at baseline establishment, got %d", len(events))
	}
	if !d.IsBaselined() {
		t.Error("should be baselined after debounce period")
	}
	if lvl, _ := d.CurrentState(); lvl != LevelOff {
		t.Errorf("expected OFF, got %s", lvl)
	}
}

func TestBaselineResetOnChange(t *testing.T) {
	d := NewDetector(250*time.Millisecond, t0)
	d.Process(step(LevelOn), t0)
	d.Process(step(LevelOff), t0.Add(100*time.Millisecond))

	d.Process(step(LevelOff), t0.Add(250*time.Millisecond))
	if d.IsBaselined() {
		t.Error("timer should restart on change")
	}

	d.Process(step(LevelOff), t0.Add(350*time.Millisecond))
	if !d.IsBaselined() {
		t.Error("should be baselined after debounce from state change")
	}
}

func TestLevelTransition(t *testing.T) {
	tests := []struct {
		from, to Level
		want     EventType
	}{
		{LevelOff, LevelApproaching, EventLevelApproaching},
		{LevelApproaching, LevelOn, EventLevelOn},
		{LevelOn, LevelSaturated, EventLevelSaturated},
		{LevelSaturated, LevelOff, EventLevelOff},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			d := setupBaselinedDetector(t, tt.from)
			now := t0.Add(time.Minute)

			if events := d.Process(step(tt.to), now); len(events) != 0 {
				t.Fatalf("expected no events before debounce, got %d", len(events))
			}
			events := d.Process(step(tt.to), now.Add(250*time.Millisecond))
			if len(events) != 1 {
				t.Fatalf("expected 1 event, got %d", len(events))
			}
			if events[0].Type != tt.want {
				t.Errorf("expected %s, got %s", tt.want, events[0].Type)
			}
			if events[0].Level != tt.to {
				t.Errorf("expected level %s, got %s", tt.to, events[0].Level)
			}
			if !events[0].Timestamp.Equal(now.Add(250 * time.Millisecond)) {
				t.Errorf("unexpected timestamp %v", events[0].Timestamp)
			}
		})
	}
}

func TestBounceShorterThanDebounce(t *testing.T) {
	d := setupBaselinedDetector(t, LevelOff)
	now := t0.Add(time.Minute)

	d.Process(step(LevelOn), now)
	d.Process(step(LevelOff), now.Add(100*time.Millisecond))
	events := d.Process(step(LevelOff), now.Add(400*time.Millisecond))
	if len(events) != 0 {
		t.Errorf("bounce should not produce events, got %d", len(events))
	}
	if lvl, _ := d.CurrentState(); lvl != LevelOff {
		t.Errorf("expected OFF, got %s", lvl)
	}
}

func TestZeroDebounceReportsEveryChange(t *testing.T) {
	d := NewDetector(0, t0)
	d.Process(step(LevelOff), t0)
	if !d.IsBaselined() {
		t.Fatal("zero debounce should baseline on first step")
	}
	events := d.Process(step(LevelApproaching), t0)
	if len(events) != 1 || events[0].Type != EventLevelApproaching {
		t.Fatalf("expected APPROACHING event, got %+v", events)
	}
	events = d.Process(step(LevelOn), t0)
	if len(events) != 1 || events[0].Type != EventLevelOn {
		t.Fatalf("expected ON event, got %+v", events)
	}
}

func TestFanEvents(t *testing.T) {
	d := setupBaselinedDetector(t, LevelOff)
	now := t0.Add(time.Minute)

	events := d.Process(fanStep(LevelOff, true, FanReasonHot), now)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != EventFanOn || events[0].Reason != FanReasonHot || !events[0].Fan {
		t.Errorf("unexpected event %+v", events[0])
	}

	// Holding decisions do not repeat the event.
	if events := d.Process(fanStep(LevelOff, true, FanReasonHolding), now); len(events) != 0 {
		t.Errorf("expected no events, got %d", len(events))
	}

	events = d.Process(fanStep(LevelOff, false, FanReasonCooled), now.Add(2*time.Second))
	if len(events) != 1 || events[0].Type != EventFanOff {
		t.Fatalf("expected FAN_OFF, got %+v", events)
	}
	if _, fan := d.CurrentState(); fan {
		t.Error("fan should be off")
	}
}

func TestFanBeforeBaselineIsTrackedNotReported(t *testing.T) {
	d := NewDetector(250*time.Millisecond, t0)
	if events := d.Process(fanStep(LevelOff, true, FanReasonDisconnected), t0); len(events) != 0 {
		t.Errorf("expected no events before baseline, got %d", len(events))
	}
	if _, fan := d.CurrentState(); !fan {
		t.Error("fan state should be tracked before baseline")
	}
}

func TestSimultaneousTransitions(t *testing.T) {
	d := setupBaselinedDetector(t, LevelOff)
	now := t0.Add(time.Minute)
	d.Process(step(LevelOn), now)

	events := d.Process(fanStep(LevelOn, true, FanReasonHot), now.Add(250*time.Millisecond))
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != EventLevelOn {
		t.Errorf("level event should come first, got %s", events[0].Type)
	}
	if events[1].Type != EventFanOn || events[1].Level != LevelOn {
		t.Errorf("unexpected fan event %+v", events[1])
	}
}

func TestEventCountsIncrementOnTransition(t *testing.T) {
	d := NewDetector(0, t0)
	d.Process(step(LevelOff), t0)
	d.Process(step(LevelOn), t0)
	d.Process(step(LevelOff), t0)
	d.Process(step(LevelOn), t0)
	d.Process(fanStep(LevelOn, true, FanReasonHot), t0)
	d.Process(fanStep(LevelOn, false, FanReasonCooled), t0)

	want := EventCounts{Off: 1, On: 2, FanOn: 1, FanOff: 1}
	if got := d.Counts(); got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestCheckHeartbeatDisabledWithZeroInterval(t *testing.T) {
	d := setupBaselinedDetector(t, LevelOff)
	if hb := d.CheckHeartbeat(t0.Add(time.Hour), 0); hb != nil {
		t.Error("expected nil heartbeat with zero interval")
	}
	if hb := d.CheckHeartbeat(t0.Add(time.Hour), -time.Second); hb != nil {
		t.Error("expected nil heartbeat with negative interval")
	}
}

func TestCheckHeartbeatBeforeBaseline(t *testing.T) {
	d := NewDetector(250*time.Millisecond, t0)
	if hb := d.CheckHeartbeat(t0.Add(time.Hour), time.Minute); hb != nil {
		t.Error("expected nil heartbeat before baseline")
	}
}

func TestCheckHeartbeatAtInterval(t *testing.T) {
	d := setupBaselinedDetector(t, LevelOn)

	if hb := d.CheckHeartbeat(t0.Add(59*time.Second), time.Minute); hb != nil {
		t.Error("expected nil heartbeat before interval")
	}
	hb := d.CheckHeartbeat(t0.Add(time.Minute), time.Minute)
	if hb == nil {
		t.Fatal("expected heartbeat at interval")
	}
	if hb.Uptime != time.Minute {
		t.Errorf("expected uptime 1m, got %v", hb.Uptime)
	}
	if hb.Level != LevelOn {
		t.Errorf("expected level ON, got %s", hb.Level)
	}

	// Interval restarts from the last heartbeat.
	if hb := d.CheckHeartbeat(t0.Add(90*time.Second), time.Minute); hb != nil {
		t.Error("expected nil heartbeat within new interval")
	}
	if hb := d.CheckHeartbeat(t0.Add(2*time.Minute), time.Minute); hb == nil {
		t.Error("expected second heartbeat")
	}
}

func TestHeartbeatContainsEventCounts(t *testing.T) {
	d := NewDetector(0, t0)
	d.Process(step(LevelOff), t0)
	d.Process(step(LevelSaturated), t0)
	d.Process(fanStep(LevelSaturated, true, FanReasonDisconnected), t0)

	hb := d.CheckHeartbeat(t0.Add(time.Minute), time.Minute)
	if hb == nil {
		t.Fatal("expected heartbeat")
	}
	if hb.Counts.Saturated != 1 || hb.Counts.FanOn != 1 {
		t.Errorf("unexpected counts %+v", hb.Counts)
	}
	if !hb.Fan {
		t.Error("expected fan on in heartbeat")
	}
}
