package sim

import (
	"math"

	"github.com/sweeney/irsensor/internal/hw"
)

// Reflectance model constants. Peak counts are the photocurrent with the
// target touching the sensor; the decay lengths make the near LED fall off
// faster than the far one so their ratio tracks distance.
const (
	NearPeak  = 900.0
	NearDecay = 1.5 // mm
	FarPeak   = 400.0
	FarDecay  = 4.0 // mm
)

// Thermistor model constants: a 100k NTC with the beta model.
const (
	ThermistorR25  = 100e3
	ThermistorBeta = 4388.0
	kelvin         = 273.15

	series1K  = 1e3
	series4K7 = 4.7e3

	// Reference divider as a fraction of the supply on the 1K board.
	referenceFraction = 0.9995
)

const fullScale = 1023

// Photocurrent returns the phototransistor reading for a target at
// distanceMM with the given LEDs lit, on top of ambient counts.
func Photocurrent(distanceMM, ambient float64, nearOn, farOn bool) uint16 {
	d := math.Max(distanceMM, 0)
	v := ambient
	if nearOn {
		v += NearPeak * math.Exp(-d/NearDecay)
	}
	if farOn {
		v += FarPeak * math.Exp(-d/FarDecay)
	}
	return clamp(v)
}

// ThermistorOhms returns the thermistor resistance at tempC.
func ThermistorOhms(tempC float64) float64 {
	return ThermistorR25 * math.Exp(ThermistorBeta*(1/(tempC+kelvin)-1/(25+kelvin)))
}

// thermistorFraction is the thermistor node voltage as a fraction of the
// supply. A disconnected thermistor pulls the node to the supply.
func thermistorFraction(tempC, series float64, disconnected bool) float64 {
	if disconnected {
		return 1
	}
	r := ThermistorOhms(tempC)
	return r / (r + series)
}

// Conversion returns the ADC result for a mux selection. Single-ended
// results are 0..1023; differential results are 10-bit two's complement.
func Conversion(m hw.Mux, photo uint16, tempC float64, oneK, disconnected bool) uint16 {
	series := series4K7
	if oneK {
		series = series1K
	}
	input := func(in hw.Input) float64 {
		switch in {
		case hw.InputPhototransistor:
			return float64(photo) / fullScale
		case hw.InputThermistor:
			return thermistorFraction(tempC, series, disconnected)
		case hw.InputReference:
			return referenceFraction
		}
		return 0
	}

	if !m.Differential {
		return clamp(input(m.Pos) * float64(m.Gain) * fullScale)
	}
	v := math.Round((input(m.Pos) - input(m.Neg)) * float64(m.Gain) * 512)
	v = math.Max(-512, math.Min(511, v))
	return uint16(int16(v)) & 0x3ff
}

func clamp(v float64) uint16 {
	switch {
	case v <= 0:
		return 0
	case v >= fullScale:
		return fullScale
	}
	return uint16(math.Round(v))
}
