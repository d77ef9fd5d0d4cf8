package bar

import (
	"context"

	"github.com/segmentio/kafka-go"
)

//go:generate mockgen -source=interface.go -destination=mock/interface_mock.go -package=mock

// MessageWriter is the part of kafka.Writer used by the Publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
