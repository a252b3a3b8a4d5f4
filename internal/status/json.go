package status

import (
	"encoding/json"
	"time"

	"github.com/chewxy/math32"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Level         string       `json:"level"`
	Fan           string       `json:"fan"`
	FanReason     string       `json:"fan_reason,omitempty"`
	Ready         bool         `json:"ready"`
	Running       bool         `json:"running"`
	Mode          string       `json:"mode"`
	Variant       string       `json:"variant"`
	Restarts      int          `json:"restarts"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Sensor        SensorJSON   `json:"sensor"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// SensorJSON carries the raw accumulator state of the last step.
type SensorJSON struct {
	Tick      uint16    `json:"tick"`
	RawLevel  string    `json:"raw_level"`
	Near      uint16    `json:"near"`
	Far       uint16    `json:"far"`
	Off       uint16    `json:"off"`
	FanActive uint16    `json:"fan_active"`
	FanOffset uint16    `json:"fan_offset"`
	FanDiff   uint16    `json:"fan_diff"`
	Hold      int       `json:"hold"`
	Means     MeansJSON `json:"means"`
}

// MeansJSON holds the sums divided by their window, one decimal place.
type MeansJSON struct {
	Near    float32 `json:"near"`
	Far     float32 `json:"far"`
	Off     float32 `json:"off"`
	FanDiff float32 `json:"fan_diff"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Off         int `json:"off"`
	Approaching int `json:"approaching"`
	On          int `json:"on"`
	Saturated   int `json:"saturated"`
	FanOn       int `json:"fan_on"`
	FanOff      int `json:"fan_off"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Backend            string `json:"backend"`
	Broker             string `json:"broker"`
	HTTPAddr           string `json:"http_addr"`
	InterruptHz        int    `json:"interrupt_hz"`
	CyclesAveraged     int    `json:"cycles_averaged"`
	FanSamplesAveraged int    `json:"fan_samples_averaged"`
	LoopMs             int64  `json:"loop_ms"`
	DebounceMs         int64  `json:"debounce_ms"`
	HeartbeatMs        int64  `json:"heartbeat_ms"`
}

// Mean divides a window sum by its size, rounded to one decimal place.
// A zero window yields zero.
func Mean(sum uint16, window int) float32 {
	if window <= 0 {
		return 0
	}
	return math32.Round(float32(sum)/float32(window)*10) / 10
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

func mode(differential bool) string {
	if differential {
		return "differential"
	}
	return "simple"
}

func buildInner(snap Snapshot) StatusInner {
	level := string(snap.Level)
	if level == "" {
		level = "UNKNOWN"
	}
	raw := string(snap.RawLevel)
	if raw == "" {
		raw = "UNKNOWN"
	}
	variant := snap.Variant
	if variant == "" {
		variant = "UNKNOWN"
	}
	cfg := snap.Config

	return StatusInner{
		Level:         level,
		Fan:           onOff(snap.Fan),
		FanReason:     string(snap.FanReason),
		Ready:         snap.Baselined,
		Running:       snap.Running,
		Mode:          mode(snap.Differential),
		Variant:       variant,
		Restarts:      snap.Restarts,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Sensor: SensorJSON{
			Tick:      snap.Tick,
			RawLevel:  raw,
			Near:      snap.Sums.Near,
			Far:       snap.Sums.Far,
			Off:       snap.Sums.Off,
			FanActive: snap.FanSums.Active,
			FanOffset: snap.FanSums.Offset,
			FanDiff:   snap.FanDiff,
			Hold:      snap.Hold,
			Means: MeansJSON{
				Near:    Mean(snap.Sums.Near, cfg.CyclesAveraged),
				Far:     Mean(snap.Sums.Far, cfg.CyclesAveraged),
				Off:     Mean(snap.Sums.Off, cfg.CyclesAveraged),
				FanDiff: Mean(snap.FanDiff, cfg.FanSamplesAveraged),
			},
		},
		MQTT: MQTTStatus{Connected: snap.MQTTConnected, Broker: cfg.Broker},
		Counts: CountsJSON{
			Off:         snap.Counts.Off,
			Approaching: snap.Counts.Approaching,
			On:          snap.Counts.On,
			Saturated:   snap.Counts.Saturated,
			FanOn:       snap.Counts.FanOn,
			FanOff:      snap.Counts.FanOff,
		},
		Config: ConfigJSON{
			Backend:            cfg.Backend,
			Broker:             cfg.Broker,
			HTTPAddr:           cfg.HTTPAddr,
			InterruptHz:        cfg.InterruptHz,
			CyclesAveraged:     cfg.CyclesAveraged,
			FanSamplesAveraged: cfg.FanSamplesAveraged,
			LoopMs:             cfg.LoopMs,
			DebounceMs:         cfg.DebounceMs,
			HeartbeatMs:        cfg.HeartbeatMs,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// Build returns the status document without event fields.
func Build(snap Snapshot) StatusJSON {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)
	return StatusJSON{Status: inner}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(Build(snap), "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	doc := Build(snap)
	doc.Status.Event = event
	doc.Status.Reason = reason

	data, _ := json.Marshal(doc)
	return data
}
