package stage

import (
	marketv1 "github.com/muhammadchandra19/tickbar/internal/domain/market/v1"
)

// subscribeMsg registers a consumer on the producer side of a link.
type subscribeMsg struct {
	link     LinkID
	consumer *Stage
	opts     SubscriptionOptions
}

// subscribedMsg registers a producer on the consumer side of a link.
type subscribedMsg struct {
	link     LinkID
	producer *Stage
	opts     SubscriptionOptions
}

// askMsg grants the producer n more events on link.
type askMsg struct {
	link LinkID
	n    int
}

type eventsMsg struct {
	link   LinkID
	events []marketv1.Event
}

// producerCancelMsg tells a consumer that the producer of link is gone.
// A nil reason is a normal end of stream.
type producerCancelMsg struct {
	link   LinkID
	reason error
}

// consumerCancelMsg tells a producer that the consumer of link is gone.
type consumerCancelMsg struct {
	link LinkID
}

// stopMsg is posted by a stage to itself once it lost every producer.
type stopMsg struct{}

type manualAskMsg struct {
	link LinkID
	n    int
}

type manualCancelMsg struct {
	link LinkID
}
