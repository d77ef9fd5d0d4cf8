// Package bar writes completed bars to QuestDB.
package bar

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	marketv1 "github.com/muhammadchandra19/tickbar/internal/domain/market/v1"
	"github.com/muhammadchandra19/tickbar/pkg/errors"
	"github.com/muhammadchandra19/tickbar/pkg/questdb"
)

const (
	defaultTable     = "bars"
	defaultBatchSize = 500
)

var columns = []string{"timestamp", "stream", "open", "high", "low", "close", "volume", "new_market"}

// Config configures a Sink.
type Config struct {
	Table     string   `yaml:"table"`
	BatchSize int      `yaml:"batch_size"`
	Streams   []string `yaml:"streams"`
}

// Sink is a stage.Sink persisting closed bars with COPY. Bars are buffered
// until BatchSize of them are pending. Close writes the rest, including the
// bars still open when the stream ended. Abort writes only the completed ones.
type Sink struct {
	client    questdb.QuestDBClient
	table     string
	batchSize int
	collector *marketv1.BarCollector
	pending   []marketv1.ClosedBar
}

// NewSink creates a Sink writing to cfg.Table through client.
func NewSink(client questdb.QuestDBClient, cfg Config) *Sink {
	if cfg.Table == "" {
		cfg.Table = defaultTable
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &Sink{
		client:    client,
		table:     cfg.Table,
		batchSize: cfg.BatchSize,
		collector: marketv1.NewBarCollector(cfg.Streams...),
	}
}

// Consume collects the bars closed by events and writes full batches.
func (s *Sink) Consume(ctx context.Context, events []marketv1.Event) error {
	for _, ev := range events {
		closed, err := s.collector.Collect(ev)
		if err != nil {
			return err
		}
		s.pending = append(s.pending, closed...)
	}

	for len(s.pending) >= s.batchSize {
		if err := s.write(ctx, s.pending[:s.batchSize]); err != nil {
			return err
		}
		s.pending = s.pending[s.batchSize:]
	}
	return nil
}

// Close writes every pending bar.
func (s *Sink) Close() error {
	s.pending = append(s.pending, s.collector.Flush()...)
	return s.writePending()
}

// Abort writes the pending bars that were completed before the failure. Bars
// still open are dropped.
func (s *Sink) Abort(error) error {
	return s.writePending()
}

func (s *Sink) writePending() error {
	if len(s.pending) == 0 {
		return nil
	}
	err := s.write(context.Background(), s.pending)
	s.pending = nil
	return err
}

func (s *Sink) write(ctx context.Context, bars []marketv1.ClosedBar) error {
	copied, err := s.client.CopyFrom(
		ctx,
		pgx.Identifier{s.table},
		columns,
		pgx.CopyFromSlice(len(bars), func(i int) ([]any, error) {
			b := bars[i]
			return []any{
				b.Bar.Time,
				b.Stream,
				b.Bar.Open,
				b.Bar.High,
				b.Bar.Low,
				b.Bar.Close,
				b.Bar.Volume,
				b.Bar.NewMarket,
			}, nil
		}),
	)
	if err != nil {
		return errors.NewTransportError(errors.TransportSinkFailure, err, fmt.Sprintf("copy %d bars into %s", len(bars), s.table))
	}
	if copied != int64(len(bars)) {
		return errors.NewTransportError(errors.TransportSinkFailure, nil, fmt.Sprintf("copied %d of %d bars into %s", copied, len(bars), s.table))
	}
	return nil
}
