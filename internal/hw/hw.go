// Package hw abstracts the sensor board: LED drive lines, the two output
// lines read by the printer controller, the fan switch, the two digital
// inputs, the multiplexed ADC, the interrupt timer and the watchdog.
// Real implementations drive Linux GPIO and an I2C ADC.
// The fake implementation allows testing without hardware.
package hw

import "fmt"

// Board drives the digital lines of the sensor.
type Board interface {
	SetNearLED(on bool)
	SetFarLED(on bool)

	// SetOutputLines drives the 13K (a) and 10K (b) divider lines.
	SetOutputLines(a, b bool)

	SetFan(on bool)
	Fan() bool

	// DifferentialMode samples the mode-select input.
	// High selects the differential algorithm, low the simple one.
	DifferentialMode() bool

	// Variant1K samples the series-resistor sense input.
	// High means a 1K thermistor series resistor, low means 4K7.
	Variant1K() bool

	Close() error
}

// ADC is a free-running converter whose conversions are started by the
// interrupt timer. Result returns the conversion that completed during the
// previous tick; Select takes effect for the next conversion.
type ADC interface {
	Result() uint16
	Select(m Mux)
	WaitSampleHold()
}

// Trigger is implemented by converters that need an explicit start signal
// at each timer event (hardware auto-trigger on the original part).
type Trigger interface {
	Trigger()
}

// Watchdog resets the device unless kicked periodically.
type Watchdog interface {
	Kick()
}

// Input is an analog input line.
type Input uint8

const (
	InputPhototransistor Input = iota
	InputThermistor
	InputReference
)

func (i Input) String() string {
	switch i {
	case InputPhototransistor:
		return "photo"
	case InputThermistor:
		return "therm"
	case InputReference:
		return "ref"
	}
	return fmt.Sprintf("input(%d)", uint8(i))
}

// Gain is the ADC amplifier setting.
type Gain uint8

const (
	Gain1  Gain = 1
	Gain20 Gain = 20
)

// Mux is a complete ADC input selection.
// Differential conversions are bipolar: 10-bit two's complement results.
type Mux struct {
	Pos          Input
	Neg          Input
	Differential bool
	Gain         Gain
}

var (
	MuxPhototransistor = Mux{Pos: InputPhototransistor, Gain: Gain1}
	MuxThermistor      = Mux{Pos: InputThermistor, Gain: Gain1}
	MuxThermistorDiff  = Mux{Pos: InputThermistor, Neg: InputReference, Differential: true, Gain: Gain20}
	MuxReferenceDiff   = Mux{Pos: InputReference, Neg: InputThermistor, Differential: true, Gain: Gain20}
)

func (m Mux) String() string {
	if m.Differential {
		return fmt.Sprintf("+%s-%s x%d", m.Pos, m.Neg, m.Gain)
	}
	return fmt.Sprintf("%s x%d", m.Pos, m.Gain)
}

// PinMap assigns GPIO line offsets (BCM numbering on a Raspberry Pi).
type PinMap struct {
	Chip    string
	NearLED int
	FarLED  []int // paralleled lines
	Out13K  int
	Out10K  int
	Fan     int
	Mode    int
	Variant int
}

// DefaultPinMap is the wiring of the reference adapter board.
func DefaultPinMap() PinMap {
	return PinMap{
		Chip:    "gpiochip0",
		NearLED: 17,
		FarLED:  []int{27, 22},
		Out13K:  23,
		Out10K:  24,
		Fan:     25,
		Mode:    5,
		Variant: 6,
	}
}
