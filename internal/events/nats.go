package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
)

// ClientName identifies scanline connections on the NATS server.
const ClientName = "scanline"

// SubscriptionBuffer is how many undelivered diagnostics a subscription holds
// before newer ones are dropped.
const SubscriptionBuffer = 64

// connect dials NATS, retrying forever once connected so a bus restart does
// not end a long-running daemon or watch.
func connect(url string, opts ...nats.Option) (*nats.Conn, error) {
	defaults := []nats.Option{
		nats.Name(ClientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// NATSPublisher sends diagnostics as JSON, one subject per topic.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to the bus at url.
func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	nc, err := connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: nc}, nil
}

// Publish does not wait for the server; the client buffers while reconnecting.
func (p *NATSPublisher) Publish(_ context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", topic, err)
	}
	msg := &nats.Msg{Subject: topic, Data: data, Header: nats.Header{}}
	msg.Header.Set("Content-Type", "application/json")
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}

// Flush waits until the server has seen everything published so far.
func (p *NATSPublisher) Flush() error {
	return p.conn.Flush()
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// NATSSubscriber reads diagnostics back off the bus for `scan watch`.
type NATSSubscriber struct {
	conn    *nats.Conn
	dropped atomic.Uint64
}

// NewNATSSubscriber connects to the bus at url. Extra options, such as
// disconnect and reconnect handlers, are applied after the defaults.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	nc, err := connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NATSSubscriber{conn: nc}, nil
}

// Subscribe delivers messages on subjects matching pattern ("scan.>" for
// everything). The returned cancel function unsubscribes and closes the
// channel; it may be called more than once.
func (s *NATSSubscriber) Subscribe(pattern string) (<-chan Message, func(), error) {
	in := make(chan *nats.Msg, SubscriptionBuffer)
	sub, err := s.conn.ChanSubscribe(pattern, in)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribing to %s: %w", pattern, err)
	}
	// The subscription must reach the server before publishers on other
	// connections are routed to it.
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, nil, fmt.Errorf("registering subscription %s: %w", pattern, err)
	}

	out := make(chan Message, SubscriptionBuffer)
	done := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case m := <-in:
				select {
				case out <- Message{Topic: m.Subject, Data: m.Data}:
				default:
					s.dropped.Add(1)
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			_ = sub.Unsubscribe()
			close(done)
		})
	}
	return out, cancel, nil
}

// Dropped counts messages discarded because a reader fell behind.
func (s *NATSSubscriber) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
