// Package runtime supervises one sensor device after another: it cold
// starts the core on a board, delivers timer interrupts, paces the
// foreground loop and rebuilds everything when the watchdog fires. Step
// results are fanned out to MQTT, telemetry, the status tracker and the
// live feed.
package runtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/sweeney/irsensor/internal/hw"
	"github.com/sweeney/irsensor/internal/logic"
	"github.com/sweeney/irsensor/internal/mqtt"
	"github.com/sweeney/irsensor/internal/status"
	"github.com/sweeney/irsensor/internal/telemetry"
)

// ReasonWatchdog is the RESTART reason after a watchdog expiry.
const ReasonWatchdog = "WATCHDOG"

// DefaultStatusInterval is how often the live feed gets a status document.
const DefaultStatusInterval = 250 * time.Millisecond

// DefaultQueueSize bounds the output queue between the control loop and
// the publisher, telemetry and feed.
const DefaultQueueSize = 256

// Driver delivers timer interrupts until ctx is cancelled. hw.Timer is
// the production driver.
type Driver interface {
	Run(ctx context.Context, isr func())
}

// Feed receives live updates for connected clients.
type Feed interface {
	BroadcastEvent(e logic.Event)
	BroadcastStatus()
}

// Options holds the timing configuration.
type Options struct {
	Params          logic.Params
	Loop            time.Duration // foreground step period
	Debounce        time.Duration
	Heartbeat       time.Duration // 0 disables
	WatchdogTimeout time.Duration
	StatusInterval  time.Duration
	QueueSize       int // output queue length, oldest dropped when full
}

// Deps are the collaborators. Board, ADC, Publisher and Tracker are
// required; the rest are optional.
type Deps struct {
	Board     hw.Board
	ADC       hw.ADC
	Watchdog  hw.Watchdog // kernel watchdog kicked alongside the soft one
	Driver    Driver
	Publisher mqtt.Publisher
	Conn      mqtt.ConnectionStatus
	Tracker   *status.Tracker
	Sink      telemetry.Sink
	Feed      Feed
	Network   func() *status.NetworkInfo
	Now       func() time.Time
	Log       *zap.Logger
}

// Supervisor runs devices until its context is cancelled.
type Supervisor struct {
	opts Options
	d    Deps
	log  *zap.Logger

	detector   *logic.Detector
	lastStatus time.Time
	sinkFailed bool
	restarts   atomic.Int64
	out        *outbox
}

// New validates the options and fills defaults.
func New(o Options, d Deps) (*Supervisor, error) {
	if err := o.Params.Validate(); err != nil {
		return nil, err
	}
	if d.Board == nil || d.ADC == nil || d.Publisher == nil || d.Tracker == nil {
		return nil, errors.New("supervisor: board, adc, publisher and tracker are required")
	}
	if o.Loop <= 0 {
		o.Loop = time.Millisecond
	}
	if o.WatchdogTimeout <= 0 {
		o.WatchdogTimeout = hw.DefaultWatchdogTimeout
	}
	if o.StatusInterval <= 0 {
		o.StatusInterval = DefaultStatusInterval
	}
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	if d.Driver == nil {
		d.Driver = hw.NewTimer(o.Params.InterruptHz)
	}
	if d.Sink == nil {
		d.Sink = telemetry.Discard{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Supervisor{
		opts:     o,
		d:        d,
		log:      d.Log,
		detector: logic.NewDetector(o.Debounce, d.Now()),
		out:      newOutbox(o.QueueSize),
	}, nil
}

// Dropped returns the number of queued outputs discarded because the
// publisher, telemetry or feed fell behind.
func (s *Supervisor) Dropped() int64 {
	return s.out.dropped.Load()
}

// Restarts returns the number of watchdog restarts so far.
func (s *Supervisor) Restarts() int {
	return int(s.restarts.Load())
}

// Startup publishes the retained STARTUP event with a status snapshot.
func (s *Supervisor) Startup() {
	s.publishStatus(mqtt.EventStartup, "", true)
}

// Shutdown publishes the retained SHUTDOWN event.
func (s *Supervisor) Shutdown(reason string) {
	s.publishStatus(mqtt.EventShutdown, reason, true)
}

func (s *Supervisor) publishStatus(event, reason string, retained bool) {
	s.refreshMQTT()
	snap := s.d.Tracker.Snapshot()
	err := s.d.Publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		s.log.Warn("failed to publish system event", zap.String("event", event), zap.Error(err))
		return
	}
	s.log.Info("published system event", zap.String("event", event), zap.String("reason", reason))
}

// Run cold starts a device and runs it. When the watchdog fires the
// device is discarded, RESTART is published and a new one is built.
// Outputs are handed to a worker so network and serial I/O never delay
// the control loop. Run returns nil when ctx is cancelled, after the
// queued outputs have been delivered. It must be called only once.
func (s *Supervisor) Run(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.out.drain()
		close(done)
	}()
	defer func() {
		s.out.close()
		<-done
	}()

	for {
		expired, err := s.session(ctx)
		if err != nil {
			return err
		}
		if !expired {
			return nil
		}
		s.restarts.Inc()
		s.d.Tracker.AddRestart()
		s.log.Warn("watchdog expired, restarting", zap.Int64("restarts", s.restarts.Load()))
		s.out.post(func() { s.publishStatus(mqtt.EventRestart, ReasonWatchdog, false) })
	}
}

// session runs one device lifetime. It reports whether it ended because
// the watchdog fired.
func (s *Supervisor) session(ctx context.Context) (bool, error) {
	wd := hw.NewSoftWatchdog(s.opts.WatchdogTimeout, s.d.Now)
	var kick hw.Watchdog = wd
	if s.d.Watchdog != nil {
		kick = kickers{wd, s.d.Watchdog}
	}

	dev, err := logic.NewDevice(s.opts.Params, s.d.Board, s.d.ADC, kick, nil)
	if err != nil {
		return false, err
	}
	s.d.Tracker.SetDevice(dev.Variant(), false)
	s.log.Info("cold start",
		zap.Stringer("variant", dev.Variant()),
		zap.Bool("differential", s.d.Board.DifferentialMode()),
		zap.Int("interrupt_hz", s.opts.Params.InterruptHz))

	sctx, cancel := context.WithCancel(ctx)
	var expired atomic.Bool
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		s.d.Driver.Run(sctx, dev.Interrupt)
	}()
	go func() {
		defer wg.Done()
		wd.Run(sctx)
	}()
	go func() {
		defer wg.Done()
		select {
		case <-wd.Expired():
			expired.Store(true)
			cancel()
		case <-sctx.Done():
		}
	}()

	pace := time.NewTicker(s.opts.Loop)
	if err := dev.Settle(sctx, pace.C); err == nil {
		s.d.Tracker.SetDevice(dev.Variant(), true)
		s.log.Debug("settled", zap.Uint16("tick", dev.Sensor.Ticks()))
		dev.Sensor.Run(sctx, pace.C, s.observe)
	}
	pace.Stop()

	// The old device must stop touching the board before a new one is built.
	cancel()
	wg.Wait()

	if ctx.Err() != nil {
		return false, nil
	}
	return expired.Load(), nil
}

// observe runs on the control loop. It updates the detector and tracker
// in place and queues everything that does I/O.
func (s *Supervisor) observe(res logic.StepResult) {
	now := s.d.Now()

	if res.Fan != nil {
		s.out.post(func() { s.record(res) })
	}

	s.d.Tracker.Observe(res)
	if f := res.Fan; f != nil && f.Changed {
		s.log.Debug("fan switched",
			zap.Bool("on", f.On),
			zap.String("reason", string(f.Reason)),
			zap.Uint16("diff", f.Diff))
	}

	for _, e := range s.detector.Process(res, now) {
		s.log.Info("event",
			zap.String("type", string(e.Type)),
			zap.String("level", string(e.Level)),
			zap.Bool("fan", e.Fan),
			zap.String("reason", string(e.Reason)))
		s.out.post(func() { s.publish(e) })
	}

	level, fan := s.detector.CurrentState()
	s.d.Tracker.Update(level, fan, s.detector.IsBaselined(), s.detector.Counts())
	s.refreshMQTT()

	if hb := s.detector.CheckHeartbeat(now, s.opts.Heartbeat); hb != nil {
		s.log.Info("heartbeat",
			zap.Duration("uptime", hb.Uptime),
			zap.String("level", string(hb.Level)),
			zap.Bool("fan", hb.Fan),
			zap.Int("fan_on", hb.Counts.FanOn))
		s.out.post(s.heartbeat)
	}

	if s.d.Feed != nil && now.Sub(s.lastStatus) >= s.opts.StatusInterval {
		s.lastStatus = now
		s.out.post(s.d.Feed.BroadcastStatus)
	}
}

func (s *Supervisor) record(res logic.StepResult) {
	if err := s.d.Sink.Record(res); err != nil {
		if !s.sinkFailed {
			s.log.Warn("telemetry write failed", zap.Error(err))
		}
		s.sinkFailed = true
		return
	}
	s.sinkFailed = false
}

func (s *Supervisor) publish(e logic.Event) {
	if err := s.d.Publisher.Publish(e); err != nil {
		s.log.Warn("publish error", zap.Error(err))
	}
	s.refreshMQTT()
	if s.d.Feed != nil {
		s.d.Feed.BroadcastEvent(e)
	}
}

func (s *Supervisor) heartbeat() {
	if s.d.Network != nil {
		if n := s.d.Network(); n != nil {
			s.d.Tracker.SetNetwork(n)
		}
	}
	s.publishStatus(mqtt.EventHeartbeat, "", false)
}

func (s *Supervisor) refreshMQTT() {
	if s.d.Conn != nil {
		s.d.Tracker.SetMQTTConnected(s.d.Conn.IsConnected())
	}
}

// kickers kicks several watchdogs at once.
type kickers []hw.Watchdog

func (k kickers) Kick() {
	for _, w := range k {
		w.Kick()
	}
}

// outbox is a bounded queue of output jobs run by one worker. When the
// worker falls behind the oldest job is dropped, never the caller blocked.
type outbox struct {
	jobs    chan func()
	dropped atomic.Int64
}

func newOutbox(n int) *outbox {
	return &outbox{jobs: make(chan func(), n)}
}

func (o *outbox) post(job func()) {
	for {
		select {
		case o.jobs <- job:
			return
		default:
		}
		select {
		case <-o.jobs:
			o.dropped.Inc()
		default:
		}
	}
}

// drain runs jobs until the queue is closed and empty.
func (o *outbox) drain() {
	for job := range o.jobs {
		job()
	}
}

func (o *outbox) close() {
	close(o.jobs)
}
