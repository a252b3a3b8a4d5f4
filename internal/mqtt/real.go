package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/irsensor/internal/logic"
)

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	BufferSize int // messages kept while disconnected
	Logger     *zap.Logger
}

// RealPublisher publishes to an actual MQTT broker. Messages published
// while the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	topic  string
	log    *zap.Logger

	mu  sync.Mutex
	buf *ringBuffer
}

// willPayload is the last will, published by the broker if the daemon
// disappears without a clean shutdown.
func willPayload() []byte {
	p, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: EventShutdown, Reason: "MQTT_DISCONNECT"})
	return p
}

// NewRealPublisher creates a publisher connected to the given broker.
// The connection is retried in the background; a broker that is down at
// start-up is not an error.
func NewRealPublisher(o Options) *RealPublisher {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.ClientID == "" {
		o.ClientID = "irsensor"
	}
	p := &RealPublisher{
		topic: Topic,
		log:   o.Logger.Named("mqtt"),
		buf:   newRingBuffer(o.BufferSize),
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(TopicSystem, willPayload(), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.Warn("connection lost", zap.Error(err))
		})

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	pending := p.buf.drainAll()
	p.mu.Unlock()

	p.log.Info("connected", zap.Int("replay", len(pending)))
	for _, m := range pending {
		if err := p.send(m); err != nil {
			p.log.Warn("replay failed", zap.String("topic", m.topic), zap.Error(err))
		}
	}
	ev := SystemEvent{Timestamp: time.Now(), Event: EventReconnected}
	if payload, err := FormatSystemPayload(ev); err == nil {
		p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1})
	}
}

func (p *RealPublisher) send(m bufferedMsg) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return errors.New("publish timeout")
	}
	return token.Error()
}

// publish sends m, or buffers it while the connection is down.
func (p *RealPublisher) publish(m bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		first := p.buf.push(m)
		n := p.buf.len()
		p.mu.Unlock()
		if first {
			p.log.Warn("buffer full, dropping oldest", zap.Int("capacity", n))
		}
		return nil
	}
	return p.send(m)
}

// Publish sends a sensor event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	if err := p.publish(bufferedMsg{topic: p.topic, payload: payload}); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events
	m := bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained}
	if err := p.publish(m); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
