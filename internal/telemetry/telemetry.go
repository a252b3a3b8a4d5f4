// Package telemetry writes one CSV line per fan check to a serial port or
// any other writer:
//
//	tick,near,far,off,fanActive,fanOffset,level,fan
package telemetry

import (
	"fmt"
	"io"
	"strconv"
	"sync"

	"go.bug.st/serial"

	"github.com/sweeney/irsensor/internal/logic"
)

// DefaultBaudRate is used when no baud rate is configured.
const DefaultBaudRate = 115200

// Header names the CSV columns.
const Header = "tick,near,far,off,fanActive,fanOffset,level,fan"

// Sink receives foreground step results.
type Sink interface {
	Record(res logic.StepResult) error
	Close() error
}

// CSVSink formats fan-check steps as CSV lines. Steps without a fan check
// are ignored.
type CSVSink struct {
	mu  sync.Mutex
	w   io.Writer
	buf []byte
}

// NewCSVSink writes lines to w. If w is an io.Closer, Close closes it.
func NewCSVSink(w io.Writer) *CSVSink {
	return &CSVSink{w: w, buf: make([]byte, 0, 64)}
}

// OpenSerial opens a serial port for telemetry output.
func OpenSerial(port string, baud int) (*CSVSink, error) {
	if baud == 0 {
		baud = DefaultBaudRate
	}
	p, err := serial.Open(port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", port, err)
	}
	return NewCSVSink(p), nil
}

// Ports lists the serial ports present on the host.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}

// Record writes a line if res carries a fan check.
func (s *CSVSink) Record(res logic.StepResult) error {
	if res.Fan == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.buf[:0]
	b = strconv.AppendUint(b, uint64(res.Tick), 10)
	for _, v := range []uint16{res.Sums.Near, res.Sums.Far, res.Sums.Off, res.Fan.Sums.Active, res.Fan.Sums.Offset} {
		b = append(b, ',')
		b = strconv.AppendUint(b, uint64(v), 10)
	}
	b = append(b, ',')
	b = append(b, string(res.Level)...)
	if res.Fan.On {
		b = append(b, ",1\n"...)
	} else {
		b = append(b, ",0\n"...)
	}
	s.buf = b

	_, err := s.w.Write(b)
	return err
}

// Close closes the underlying writer if it is closable.
func (s *CSVSink) Close() error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Discard is a Sink that drops everything.
type Discard struct{}

// Record does nothing.
func (Discard) Record(logic.StepResult) error { return nil }

// Close does nothing.
func (Discard) Close() error { return nil }
