// Package logsink writes bar updates to the structured log.
package logsink

import (
	"context"
	"time"

	marketv1 "github.com/muhammadchandra19/tickbar/internal/domain/market/v1"
	"github.com/muhammadchandra19/tickbar/pkg/logger"
)

// Sink is a stage.Sink logging every bar carried by an event, open or closed.
type Sink struct {
	log     logger.Interface
	streams map[string]struct{}
}

// New creates a Sink. With no streams every Bar stream of an event is logged.
func New(log logger.Interface, streams ...string) *Sink {
	s := &Sink{log: log}
	if len(streams) > 0 {
		s.streams = make(map[string]struct{}, len(streams))
		for _, name := range streams {
			s.streams[name] = struct{}{}
		}
	}
	return s
}

// Consume logs the bars of events.
func (s *Sink) Consume(ctx context.Context, events []marketv1.Event) error {
	for _, ev := range events {
		for _, name := range ev.Names() {
			if s.streams != nil {
				if _, ok := s.streams[name]; !ok {
					continue
				}
			}
			d, _ := ev.Get(name)
			bar, ok := d.(marketv1.Bar)
			if !ok {
				continue
			}
			s.log.InfoContext(ctx, "bar", fields(name, bar)...)
		}
	}
	return nil
}

func fields(stream string, b marketv1.Bar) []logger.Field {
	f := []logger.Field{
		logger.NewField("stream", stream),
		logger.NewField("time", b.Time.Format(time.RFC3339)),
		logger.NewField("open", b.Open),
		logger.NewField("high", b.High),
		logger.NewField("low", b.Low),
		logger.NewField("close", b.Close),
		logger.NewField("new_bar", b.NewBar),
		logger.NewField("new_market", b.NewMarket),
	}
	if b.Volume != nil {
		f = append(f, logger.NewField("volume", *b.Volume))
	}
	return f
}
