// Package broadcast delivers score updates to viewers and downstream
// consumers once the store has accepted them.
package broadcast

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/crease/internal/domain/model"
	"github.com/okian/crease/pkg/metrics"
)

// Sink names used in metrics and logs.
const (
	SinkWebsocket = "websocket"
	SinkRedis     = "redis"
	SinkKafka     = "kafka"
)

// Publisher hands a score update to one delivery channel.
type Publisher interface {
	Publish(ctx context.Context, update model.ScoreUpdate) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, update model.ScoreUpdate) error

// Publish implements Publisher.
func (f PublisherFunc) Publish(ctx context.Context, update model.ScoreUpdate) error {
	return f(ctx, update)
}

// Nop discards updates.
var Nop Publisher = PublisherFunc(func(context.Context, model.ScoreUpdate) error { return nil })

// Sink is a named Publisher.
type Sink struct {
	Name      string
	Publisher Publisher
}

// Fanout publishes every update to all sinks. One failing sink does not stop
// the others; their errors are joined.
type Fanout struct {
	sinks []Sink
}

// NewFanout returns a Fanout over sinks, skipping nil publishers.
func NewFanout(sinks ...Sink) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		if s.Publisher != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Sinks returns the sink names in publish order.
func (f *Fanout) Sinks() []string {
	names := make([]string, len(f.sinks))
	for i, s := range f.sinks {
		names[i] = s.Name
	}
	return names
}

// Publish implements Publisher.
func (f *Fanout) Publish(ctx context.Context, update model.ScoreUpdate) error { //nolint:gocritic // hugeParam: updates travel by value
	var errs []error
	for _, s := range f.sinks {
		if err := s.Publisher.Publish(ctx, update); err != nil {
			metrics.RecordBroadcastError(s.Name)
			metrics.RecordErrorByComponent("broadcast", s.Name)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
			continue
		}
		metrics.RecordBroadcast(s.Name)
	}
	return errors.Join(errs...)
}
