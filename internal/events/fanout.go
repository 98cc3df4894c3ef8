package events

import (
	"context"
	"errors"
	"fmt"
)

// Fanout publishes every event to each of its publishers. A failing
// publisher does not stop delivery to the others.
type Fanout []Publisher

// NewFanout drops nil publishers. With no publishers left it returns a
// NoopPublisher.
func NewFanout(pubs ...Publisher) Publisher {
	var out Fanout
	for _, p := range pubs {
		if p != nil {
			out = append(out, p)
		}
	}
	switch len(out) {
	case 0:
		return &NoopPublisher{}
	case 1:
		return out[0]
	}
	return out
}

func (f Fanout) Publish(ctx context.Context, topic string, event any) error {
	var errs []error
	for i, p := range f {
		if err := p.Publish(ctx, topic, event); err != nil {
			errs = append(errs, fmt.Errorf("publisher %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
