package hw

import (
	"sync"

	"go.uber.org/zap"
)

// errorLog reports hardware write failures without flooding the log: the
// scheduler touches the lines thousands of times a second.
type errorLog struct {
	log   *zap.Logger
	mu    sync.Mutex
	count map[string]uint64
}

func (e *errorLog) note(op string, err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	if e.count == nil {
		e.count = make(map[string]uint64)
	}
	e.count[op]++
	n := e.count[op]
	e.mu.Unlock()

	// 1, 2, 4, 8, ...
	if n&(n-1) == 0 && e.log != nil {
		e.log.Warn("hardware write failed", zap.String("op", op), zap.Uint64("count", n), zap.Error(err))
	}
}

// total returns the number of failures recorded for op.
func (e *errorLog) total(op string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count[op]
}
