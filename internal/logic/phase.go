package logic

import "fmt"

// Phase is a scheduler step, the low four bits of the tick counter.
type Phase uint8

const (
	Phase0 Phase = iota
	Phase1
	Phase2
	Phase3
	Phase4
	Phase5
	Phase6
	Phase7
	Phase8
	Phase9
	Phase10
	Phase11
	Phase12
	Phase13
	Phase14
	Phase15

	NumPhases = 16
)

// PhaseOf returns the phase of a tick.
func PhaseOf(tick uint16) Phase {
	return Phase(tick & 0x0f)
}

// fanHalf reports which half of the fan measurement a tick belongs to.
// Bit 4 alternates every full cycle.
func fanHalf(tick uint16) bool {
	return tick&0x10 != 0
}

// Route names the accumulator that receives a tick's conversion result.
type Route uint8

const (
	RouteDiscard Route = iota
	RouteNear
	RouteFar
	RouteOff
	RouteFan // resolved to RouteFanActive or RouteFanOffset at run time
	RouteFanActive
	RouteFanOffset
)

var routeNames = [...]string{"discard", "near", "far", "off", "fan", "fan-active", "fan-offset"}

func (r Route) String() string {
	if int(r) < len(routeNames) {
		return routeNames[r]
	}
	return fmt.Sprintf("route(%d)", uint8(r))
}

// LEDAction is the LED change made after routing.
type LEDAction uint8

const (
	LEDKeep LEDAction = iota
	LEDFarOn
	LEDNearOnFarOff
	LEDNearOff
)

// MuxAction is the ADC input change made at the end of a tick.
type MuxAction uint8

const (
	MuxKeep MuxAction = iota
	MuxFan
	MuxPhoto
)

type phaseStep struct {
	route Route
	led   LEDAction
	mux   MuxAction
}

// phaseTable is the scheduler protocol. A conversion started at tick t is
// read at tick t+1 and samples the LED and mux state left by tick t-1, so
// each route names what was lit two phases earlier:
//
//	0         fan conversion; far LED on
//	1,4,7,10  LEDs-off baseline; far off, near on
//	2,5,8     far LED; near off
//	3,6,9     near LED; far on
//	11        far LED; near off; mux to thermistor
//	12        near LED
//	13,14     mux settling after the switch, discarded
//	15        discarded; mux back to the phototransistor
var phaseTable = [NumPhases]phaseStep{
	Phase0:  {RouteFan, LEDFarOn, MuxKeep},
	Phase1:  {RouteOff, LEDNearOnFarOff, MuxKeep},
	Phase2:  {RouteFar, LEDNearOff, MuxKeep},
	Phase3:  {RouteNear, LEDFarOn, MuxKeep},
	Phase4:  {RouteOff, LEDNearOnFarOff, MuxKeep},
	Phase5:  {RouteFar, LEDNearOff, MuxKeep},
	Phase6:  {RouteNear, LEDFarOn, MuxKeep},
	Phase7:  {RouteOff, LEDNearOnFarOff, MuxKeep},
	Phase8:  {RouteFar, LEDNearOff, MuxKeep},
	Phase9:  {RouteNear, LEDFarOn, MuxKeep},
	Phase10: {RouteOff, LEDNearOnFarOff, MuxKeep},
	Phase11: {RouteFar, LEDNearOff, MuxFan},
	Phase12: {RouteNear, LEDKeep, MuxKeep},
	Phase13: {RouteDiscard, LEDKeep, MuxKeep},
	Phase14: {RouteDiscard, LEDKeep, MuxKeep},
	Phase15: {RouteDiscard, LEDKeep, MuxPhoto},
}
