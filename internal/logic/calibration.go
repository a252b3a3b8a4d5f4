package logic

// Variant identifies the thermistor series resistor fitted to the board.
type Variant uint8

const (
	// Variant1K reads the thermistor differentially against a reference
	// with the bipolar x20 amplifier.
	Variant1K Variant = iota
	// Variant4K7 reads the thermistor single-ended at unity gain.
	Variant4K7
)

func (v Variant) String() string {
	if v == Variant1K {
		return "1K"
	}
	return "4K7"
}

// Per-sample thermistor thresholds. The fan turns on at or above On
// (about 42C), may turn off at or below Off (about 38C), and a difference
// below Connected means the thermistor is missing.
const (
	connected1K = 30
	off1K       = 340
	on1K        = 400

	connected4K7 = 7
	off4K7       = 78
	on4K7        = 92
)

// Calibration holds the fan thresholds, scaled to the fan window, and the
// values pre-loaded into the fan accumulators at cold start.
type Calibration struct {
	Variant   Variant
	Connected uint16
	Off       uint16
	On        uint16

	ReadingInit uint16
	OffsetInit  uint16
}

// NewCalibration derives the thresholds for a board variant. The pre-load
// sits exactly on the connected threshold so the fan stays off at power up.
func NewCalibration(v Variant, p Params) Calibration {
	n := uint16(p.FanSamplesAveraged)
	if v == Variant1K {
		return Calibration{
			Variant:     v,
			Connected:   connected1K * n,
			Off:         off1K * n,
			On:          on1K * n,
			OffsetInit:  512,
			ReadingInit: 512 - connected1K,
		}
	}
	return Calibration{
		Variant:     v,
		Connected:   connected4K7 * n,
		Off:         off4K7 * n,
		On:          on4K7 * n,
		OffsetInit:  1023,
		ReadingInit: 1023 - connected4K7,
	}
}
