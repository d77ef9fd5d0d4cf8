package stage

import (
	"context"

	marketv1 "github.com/muhammadchandra19/tickbar/internal/domain/market/v1"
)

//go:generate mockgen -source=interface.go -destination=mock/interface_mock.go -package=mock

// Source produces events for the head of a pipeline. Next returns io.EOF once
// the sequence is exhausted.
type Source interface {
	Next(ctx context.Context) (marketv1.Event, error)
}

// Processor transforms one event into another. It must be deterministic
// given its inputs and owned state.
type Processor interface {
	Process(event marketv1.Event) (marketv1.Event, error)
}

// Sink consumes batches of events at the tail of a pipeline.
type Sink interface {
	Consume(ctx context.Context, events []marketv1.Event) error
}

// Aborter is implemented by roles that must not finish their work when the
// stage terminates with a failure, for example a sink holding bars that are
// still open. Abort replaces Close in that case.
type Aborter interface {
	Abort(reason error) error
}
