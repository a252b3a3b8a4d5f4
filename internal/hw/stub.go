//go:build !linux

package hw

import "go.uber.org/zap"

// CdevBoard is not available on non-Linux platforms.
type CdevBoard struct{ FakeBoard }

// NewCdevBoard returns an error on non-Linux platforms.
func NewCdevBoard(pins PinMap, log *zap.Logger) (*CdevBoard, error) {
	return nil, ErrNotSupported
}

// RpioBoard is not available on non-Linux platforms.
type RpioBoard struct{ FakeBoard }

// NewRpioBoard returns an error on non-Linux platforms.
func NewRpioBoard(pins PinMap) (*RpioBoard, error) {
	return nil, ErrNotSupported
}
