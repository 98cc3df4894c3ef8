package events

import "encoding/json"

// Message is one diagnostic as read back off the bus.
type Message struct {
	Topic string
	Data  json.RawMessage
}

// Subscriber reads diagnostics published by a running daemon.
type Subscriber interface {
	// Subscribe delivers messages whose topic matches pattern until the
	// returned cancel function is called, which also closes the channel.
	Subscribe(pattern string) (<-chan Message, func(), error)
	Close() error
}
