// Package bar publishes completed bars to a Kafka topic.
package bar

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	marketv1 "github.com/muhammadchandra19/tickbar/internal/domain/market/v1"
	"github.com/muhammadchandra19/tickbar/pkg/errors"
	"github.com/muhammadchandra19/tickbar/pkg/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/multierr"
)

// Config is the Kafka writer configuration.
type Config struct {
	Brokers      []string      `env:"BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	Topic        string        `env:"TOPIC" envDefault:"bars"`
	BatchTimeout time.Duration `env:"BATCH_TIMEOUT" envDefault:"50ms"`
}

// NewWriter creates a kafka.Writer keyed by stream name, so the bars of one
// stream stay ordered within a partition.
func NewWriter(cfg Config) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           cfg.BatchTimeout,
		AllowAutoTopicCreation: true,
	}
}

// Message is the JSON payload of one bar.
type Message struct {
	Stream    string    `json:"stream"`
	Time      time.Time `json:"time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    *float64  `json:"volume,omitempty"`
	NewMarket bool      `json:"new_market"`
}

// Publisher is a stage.Sink sending every closed bar to Kafka.
type Publisher struct {
	writer    MessageWriter
	collector *marketv1.BarCollector
	log       logger.Interface
}

// NewPublisher creates a Publisher. With no streams every bar stream of the
// consumed events is published.
func NewPublisher(writer MessageWriter, log logger.Interface, streams ...string) *Publisher {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Publisher{
		writer:    writer,
		collector: marketv1.NewBarCollector(streams...),
		log:       log,
	}
}

// Consume publishes the bars closed by events in a single write.
func (p *Publisher) Consume(ctx context.Context, events []marketv1.Event) error {
	var closed []marketv1.ClosedBar
	for _, ev := range events {
		bars, err := p.collector.Collect(ev)
		if err != nil {
			return err
		}
		closed = append(closed, bars...)
	}
	return p.publish(ctx, closed)
}

// Close publishes the bars still open and closes the writer.
func (p *Publisher) Close() error {
	err := p.publish(context.Background(), p.collector.Flush())
	return multierr.Append(err, p.writer.Close())
}

// Abort closes the writer without publishing the bars still open.
func (p *Publisher) Abort(error) error {
	return p.writer.Close()
}

func (p *Publisher) publish(ctx context.Context, bars []marketv1.ClosedBar) error {
	if len(bars) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(bars))
	for _, b := range bars {
		value, err := json.Marshal(toMessage(b))
		if err != nil {
			return errors.NewTransportError(errors.TransportSinkFailure, err, fmt.Sprintf("encode bar of %s", b.Stream))
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(b.Stream),
			Value: value,
			Time:  b.Bar.Time,
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.log.ErrorContext(ctx, errors.TracerFromError(err), logger.NewField("bars", len(msgs)))
		return errors.NewTransportError(errors.TransportSinkFailure, err, fmt.Sprintf("publish %d bars", len(msgs)))
	}
	return nil
}

func toMessage(b marketv1.ClosedBar) Message {
	return Message{
		Stream:    b.Stream,
		Time:      b.Bar.Time,
		Open:      b.Bar.Open,
		High:      b.Bar.High,
		Low:       b.Bar.Low,
		Close:     b.Bar.Close,
		Volume:    b.Bar.Volume,
		NewMarket: b.Bar.NewMarket,
	}
}
