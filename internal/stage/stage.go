// Package stage runs pipeline roles (sources, processors and sinks) as
// independent workers connected by demand-driven subscriptions.
//
// Every stage is a single goroutine that exclusively owns its registries of
// producer and consumer links. Stages talk only through messages posted to
// each other's mailbox. Losing every producer makes a stage drain what it
// already fetched and then stop, while losing every consumer stops it at once.
package stage

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sync/atomic"

	marketv1 "github.com/muhammadchandra19/tickbar/internal/domain/market/v1"
	"github.com/muhammadchandra19/tickbar/pkg/errors"
	"github.com/muhammadchandra19/tickbar/pkg/logger"
	"github.com/muhammadchandra19/tickbar/pkg/util"
	"github.com/oklog/ulid/v2"
	"go.uber.org/multierr"
)

// Role is the position of a stage in a pipeline.
type Role string

const (
	// RoleSource stages pull events from a Source and only produce.
	RoleSource Role = "source"
	// RoleProcessor stages consume, transform and produce.
	RoleProcessor Role = "processor"
	// RoleSink stages only consume.
	RoleSink Role = "sink"
)

// LinkID identifies one producer to consumer subscription.
type LinkID ulid.ULID

// String returns the ULID text form.
func (id LinkID) String() string {
	return ulid.ULID(id).String()
}

type upstream struct {
	stage       *Stage
	opts        SubscriptionOptions
	outstanding int
}

type downstream struct {
	stage  *Stage
	opts   SubscriptionOptions
	demand int
	buffer []marketv1.Event
}

// Stage wraps a role with the subscription protocol.
type Stage struct {
	name      string
	role      Role
	source    Source
	processor Processor
	sink      Sink

	log     logger.Interface
	metrics *Metrics

	mailbox *mailbox
	started atomic.Bool
	done    chan struct{}
	err     error

	// owned by the Run goroutine
	producers  map[LinkID]*upstream
	consumers  map[LinkID]*downstream
	failure    error
	tombstones map[LinkID]error
	stopping   bool
	exhausted  bool
	terminated bool
}

// NewSource creates a stage producing the events of src.
func NewSource(name string, src Source, opts ...Options) *Stage {
	s := newStage(name, RoleSource, opts)
	s.source = src
	return s
}

// NewProcessor creates a stage transforming events with p.
func NewProcessor(name string, p Processor, opts ...Options) *Stage {
	s := newStage(name, RoleProcessor, opts)
	s.processor = p
	return s
}

// NewSink creates a stage delivering events to sink.
func NewSink(name string, sink Sink, opts ...Options) *Stage {
	s := newStage(name, RoleSink, opts)
	s.sink = sink
	return s
}

func newStage(name string, role Role, opts []Options) *Stage {
	s := &Stage{
		name:       name,
		role:       role,
		mailbox:    newMailbox(),
		done:       make(chan struct{}),
		producers:  make(map[LinkID]*upstream),
		consumers:  make(map[LinkID]*downstream),
		tombstones: make(map[LinkID]error),
	}
	for _, opt := range opts {
		if opt.logger != nil {
			s.log = opt.logger
		}
		if opt.metrics != nil {
			s.metrics = opt.metrics
		}
	}
	if s.log == nil {
		s.log = logger.NewNopLogger()
	}
	s.log = s.log.WithFields(logger.NewField("stage", name), logger.NewField("role", string(role)))
	return s
}

// Name returns the stage name.
func (s *Stage) Name() string {
	return s.name
}

// Role returns the stage role.
func (s *Stage) Role() Role {
	return s.role
}

// Done is closed once the stage has terminated.
func (s *Stage) Done() <-chan struct{} {
	return s.done
}

// Err returns the termination reason. It is only meaningful after Done is closed.
func (s *Stage) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Subscribe links consumer to producer. The link becomes active once both
// stages run.
func Subscribe(consumer, producer *Stage, opts SubscriptionOptions) (LinkID, error) {
	if consumer == nil || producer == nil {
		return LinkID{}, errors.NewConfigError(errors.ConfigInvalidSubscription, "stage", "both stages are required")
	}
	if consumer == producer {
		return LinkID{}, errors.NewConfigError(errors.ConfigInvalidSubscription, "stage", fmt.Sprintf("stage %q cannot subscribe to itself", consumer.name))
	}
	if consumer.role == RoleSource {
		return LinkID{}, errors.NewConfigError(errors.ConfigInvalidSubscription, "consumer", fmt.Sprintf("source stage %q cannot consume", consumer.name))
	}
	if producer.role == RoleSink {
		return LinkID{}, errors.NewConfigError(errors.ConfigInvalidSubscription, "producer", fmt.Sprintf("sink stage %q cannot produce", producer.name))
	}
	if err := opts.Validate(); err != nil {
		return LinkID{}, err
	}
	opts = opts.withDefaults()

	id := LinkID(ulid.Make())
	if !producer.mailbox.post(subscribeMsg{link: id, consumer: consumer, opts: opts}) {
		return LinkID{}, errors.NewStateError(errors.StageTerminated, fmt.Sprintf("producer %q has terminated", producer.name))
	}
	if !consumer.mailbox.post(subscribedMsg{link: id, producer: producer, opts: opts}) {
		producer.mailbox.post(consumerCancelMsg{link: id})
		return LinkID{}, errors.NewStateError(errors.StageTerminated, fmt.Sprintf("consumer %q has terminated", consumer.name))
	}
	return id, nil
}

// Ask issues n events of demand on a producer link of s. It is how a
// controller drives links subscribed in Manual mode.
func (s *Stage) Ask(link LinkID, n int) error {
	if n <= 0 {
		return errors.NewConfigError(errors.ConfigInvalidOption, "demand", "demand must be positive")
	}
	if !s.mailbox.post(manualAskMsg{link: link, n: n}) {
		return errors.NewStateError(errors.StageTerminated, fmt.Sprintf("stage %q has terminated", s.name))
	}
	return nil
}

// Cancel tears down link from the side of s. Cancelling a producer link
// behaves as if that producer stopped, cancelling a consumer link as if the
// consumer went away.
func (s *Stage) Cancel(link LinkID) error {
	if !s.mailbox.post(manualCancelMsg{link: link}) {
		return errors.NewStateError(errors.StageTerminated, fmt.Sprintf("stage %q has terminated", s.name))
	}
	return nil
}

// Run processes the stage mailbox until the stage terminates and returns
// the termination reason. It must be called once.
func (s *Stage) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.NewStateError(errors.StageAlreadyRunning, fmt.Sprintf("stage %q is already running", s.name))
	}
	ctx = util.WithStage(ctx, s.name)
	s.log.InfoContext(ctx, "stage started")

	for !s.terminated {
		select {
		case <-ctx.Done():
			s.terminate(ctx, ctx.Err())
		case <-s.mailbox.ready:
			batch := s.mailbox.take()
			if err := ctx.Err(); err != nil {
				s.terminate(ctx, err)
				s.reject(batch)
				break
			}
			for i, msg := range batch {
				if s.terminated {
					s.reject(batch[i:])
					break
				}
				s.handle(ctx, msg)
			}
		}
	}
	return s.err
}

func (s *Stage) handle(ctx context.Context, msg any) {
	switch m := msg.(type) {
	case subscribeMsg:
		s.onConsumerSubscribed(ctx, m)
	case subscribedMsg:
		s.onProducerSubscribed(ctx, m)
	case askMsg:
		s.onAsk(ctx, m)
	case eventsMsg:
		s.onEvents(ctx, m)
	case producerCancelMsg:
		s.onProducerCancel(ctx, m)
	case consumerCancelMsg:
		s.onConsumerCancel(ctx, m)
	case stopMsg:
		s.onStop(ctx)
	case manualAskMsg:
		s.onManualAsk(ctx, m)
	case manualCancelMsg:
		s.onManualCancel(ctx, m)
	}
}

func (s *Stage) onConsumerSubscribed(ctx context.Context, m subscribeMsg) {
	if _, gone := s.tombstones[m.link]; gone {
		// the consumer cancelled before its subscription got here
		delete(s.tombstones, m.link)
		if len(s.consumers) == 0 {
			s.terminate(ctx, s.failure)
		}
		return
	}
	s.consumers[m.link] = &downstream{stage: m.consumer, opts: m.opts}
	s.log.DebugContext(ctx, "consumer subscribed",
		logger.NewField("link", m.link.String()),
		logger.NewField("consumer", m.consumer.name),
	)
}

func (s *Stage) onProducerSubscribed(ctx context.Context, m subscribedMsg) {
	if reason, gone := s.tombstones[m.link]; gone {
		delete(s.tombstones, m.link)
		if reason != nil && s.failure == nil {
			s.failure = reason
		}
		if len(s.producers) == 0 {
			s.scheduleStop(ctx)
		}
		return
	}
	s.producers[m.link] = &upstream{stage: m.producer, opts: m.opts}
	s.log.DebugContext(ctx, "producer subscribed",
		logger.NewField("link", m.link.String()),
		logger.NewField("producer", m.producer.name),
		logger.NewField("mode", string(m.opts.Mode)),
	)
	s.refill(ctx)
}

func (s *Stage) onAsk(ctx context.Context, m askMsg) {
	c, ok := s.consumers[m.link]
	if !ok {
		return
	}
	c.demand += m.n
	s.flush(c, m.link)

	switch s.role {
	case RoleSource:
		s.pull(ctx)
	case RoleProcessor:
		s.refill(ctx)
	}
	s.maybeFinish(ctx)
}

func (s *Stage) onEvents(ctx context.Context, m eventsMsg) {
	u, ok := s.producers[m.link]
	if !ok {
		s.metrics.addDropped(s.name, len(m.events))
		return
	}
	u.outstanding -= len(m.events)
	if u.outstanding < 0 {
		u.outstanding = 0
	}
	s.metrics.addIn(s.name, len(m.events))

	switch s.role {
	case RoleProcessor:
		out := make([]marketv1.Event, 0, len(m.events))
		for _, ev := range m.events {
			next, err := s.processor.Process(ev)
			if err != nil {
				// nothing from this batch is published
				s.fail(ctx, err)
				return
			}
			out = append(out, next)
		}
		s.dispatch(out)
	case RoleSink:
		if err := s.sink.Consume(ctx, m.events); err != nil {
			s.fail(ctx, err)
			return
		}
	}
	s.refill(ctx)
}

// onProducerCancel handles an upstream that stopped or failed.
func (s *Stage) onProducerCancel(ctx context.Context, m producerCancelMsg) {
	if _, ok := s.producers[m.link]; !ok {
		s.tombstones[m.link] = m.reason
		return
	}
	delete(s.producers, m.link)
	if m.reason != nil && s.failure == nil {
		s.failure = m.reason
	}
	s.log.DebugContext(ctx, "producer cancelled",
		logger.NewField("link", m.link.String()),
		logger.NewField("remaining", len(s.producers)),
	)

	if len(s.producers) == 0 {
		s.scheduleStop(ctx)
		return
	}
	s.refill(ctx)
}

// onConsumerCancel handles a downstream that went away.
func (s *Stage) onConsumerCancel(ctx context.Context, m consumerCancelMsg) {
	c, ok := s.consumers[m.link]
	if !ok {
		s.tombstones[m.link] = nil
		return
	}
	delete(s.consumers, m.link)
	s.metrics.addDropped(s.name, len(c.buffer))
	s.log.DebugContext(ctx, "consumer cancelled",
		logger.NewField("link", m.link.String()),
		logger.NewField("remaining", len(s.consumers)),
		logger.NewField("discarded", len(c.buffer)),
	)

	if len(s.consumers) == 0 {
		s.terminate(ctx, s.failure)
		return
	}
	s.maybeFinish(ctx)
}

// scheduleStop posts the stop to the stage itself so that everything
// already queued ahead of it is handled first.
func (s *Stage) scheduleStop(ctx context.Context) {
	s.log.DebugContext(ctx, "deferred stop scheduled")
	s.mailbox.post(stopMsg{})
}

func (s *Stage) onStop(ctx context.Context) {
	s.stopping = true
	if !s.buffersEmpty() {
		s.log.DebugContext(ctx, "draining before stop", logger.NewField("buffered", s.buffered()))
	}
	s.maybeFinish(ctx)
}

func (s *Stage) onManualAsk(ctx context.Context, m manualAskMsg) {
	u, ok := s.producers[m.link]
	if !ok {
		s.log.WarnContext(ctx, "demand on unknown producer link", logger.NewField("link", m.link.String()))
		return
	}
	s.ask(u, m.link, m.n)
}

func (s *Stage) onManualCancel(ctx context.Context, m manualCancelMsg) {
	if u, ok := s.producers[m.link]; ok {
		delete(s.producers, m.link)
		u.stage.mailbox.post(consumerCancelMsg{link: m.link})
		s.log.DebugContext(ctx, "producer link cancelled", logger.NewField("link", m.link.String()))
		if len(s.producers) == 0 {
			s.scheduleStop(ctx)
		}
		return
	}

	if c, ok := s.consumers[m.link]; ok {
		delete(s.consumers, m.link)
		s.metrics.addDropped(s.name, len(c.buffer))
		c.stage.mailbox.post(producerCancelMsg{link: m.link})
		s.log.DebugContext(ctx, "consumer link cancelled", logger.NewField("link", m.link.String()))
		if len(s.consumers) == 0 {
			s.terminate(ctx, s.failure)
		}
		return
	}

	s.log.WarnContext(ctx, "cancel on unknown link", logger.NewField("link", m.link.String()))
}

// refill issues automatic demand on producer links.
func (s *Stage) refill(ctx context.Context) {
	if s.stopping || s.terminated {
		return
	}

	switch s.role {
	case RoleSink:
		for id, u := range s.producers {
			if u.opts.Mode != Automatic || u.outstanding > u.opts.MinDemand {
				continue
			}
			s.ask(u, id, u.opts.MaxDemand-u.outstanding)
		}

	case RoleProcessor:
		budget := s.downstreamDemand()
		for _, u := range s.producers {
			budget -= u.outstanding
		}
		for id, u := range s.producers {
			if budget <= 0 {
				return
			}
			if u.opts.Mode != Automatic || u.outstanding > u.opts.MinDemand {
				continue
			}
			n := min(budget, u.opts.MaxDemand-u.outstanding)
			s.ask(u, id, n)
			budget -= n
		}
	}
}

func (s *Stage) ask(u *upstream, link LinkID, n int) {
	if n <= 0 {
		return
	}
	u.outstanding += n
	s.metrics.addDemand(s.name, n)
	u.stage.mailbox.post(askMsg{link: link, n: n})
}

// pull reads from the Source as much as the least demanding consumer can take.
func (s *Stage) pull(ctx context.Context) {
	if s.role != RoleSource || s.exhausted || s.terminated {
		return
	}
	n := s.downstreamDemand()
	if n <= 0 {
		return
	}

	batch := make([]marketv1.Event, 0, n)
	for len(batch) < n {
		ev, err := s.source.Next(ctx)
		if stderrors.Is(err, io.EOF) {
			s.exhausted = true
			s.log.DebugContext(ctx, "source exhausted")
			break
		}
		if err != nil {
			s.dispatch(batch)
			if errors.CategoryOf(err) == errors.CategoryUnknown && !stderrors.Is(err, context.Canceled) {
				err = errors.NewTransportError(errors.TransportSourceFailure, err, fmt.Sprintf("source %q failed", s.name))
			}
			s.fail(ctx, err)
			return
		}
		batch = append(batch, ev)
	}
	s.dispatch(batch)
}

// dispatch broadcasts events to every consumer.
func (s *Stage) dispatch(events []marketv1.Event) {
	if len(events) == 0 {
		return
	}
	for id, c := range s.consumers {
		dropped := c.enqueue(events)
		s.metrics.addDropped(s.name, dropped)
		s.flush(c, id)
	}
}

func (c *downstream) enqueue(events []marketv1.Event) int {
	size := c.opts.BufferSize
	if c.opts.BufferKeep == KeepFirst {
		space := size - len(c.buffer)
		if space <= 0 {
			return len(events)
		}
		if space >= len(events) {
			c.buffer = append(c.buffer, events...)
			return 0
		}
		c.buffer = append(c.buffer, events[:space]...)
		return len(events) - space
	}

	c.buffer = append(c.buffer, events...)
	overflow := len(c.buffer) - size
	if overflow <= 0 {
		return 0
	}
	kept := make([]marketv1.Event, size)
	copy(kept, c.buffer[overflow:])
	c.buffer = kept
	return overflow
}

// flush sends buffered events to c within its outstanding demand.
func (s *Stage) flush(c *downstream, link LinkID) {
	n := min(c.demand, len(c.buffer))
	if n == 0 {
		return
	}
	batch := make([]marketv1.Event, n)
	copy(batch, c.buffer[:n])
	c.buffer = c.buffer[n:]
	if len(c.buffer) == 0 {
		c.buffer = nil
	}
	c.demand -= n
	s.metrics.addOut(s.name, n)
	c.stage.mailbox.post(eventsMsg{link: link, events: batch})
}

// downstreamDemand is the number of events every consumer can take without
// buffering. Events are broadcast, so the slowest consumer bounds it.
func (s *Stage) downstreamDemand() int {
	least := -1
	for _, c := range s.consumers {
		free := max(c.demand-len(c.buffer), 0)
		if least < 0 || free < least {
			least = free
		}
	}
	return max(least, 0)
}

func (s *Stage) buffered() int {
	total := 0
	for _, c := range s.consumers {
		total += len(c.buffer)
	}
	return total
}

func (s *Stage) buffersEmpty() bool {
	return s.buffered() == 0
}

// maybeFinish terminates a stage that has no more input once it has
// delivered everything it holds.
func (s *Stage) maybeFinish(ctx context.Context) {
	if s.terminated || !(s.stopping || s.exhausted) {
		return
	}
	if s.buffersEmpty() {
		s.terminate(ctx, s.failure)
	}
}

func (s *Stage) fail(ctx context.Context, err error) {
	s.log.ErrorContext(ctx, errors.TracerFromError(err))
	s.terminate(ctx, err)
}

// terminate cancels every remaining link, closes the role and unblocks Run.
func (s *Stage) terminate(ctx context.Context, reason error) {
	if s.terminated {
		return
	}
	s.terminated = true

	for id, c := range s.consumers {
		s.metrics.addDropped(s.name, len(c.buffer))
		c.stage.mailbox.post(producerCancelMsg{link: id, reason: reason})
	}
	for id, u := range s.producers {
		u.stage.mailbox.post(consumerCancelMsg{link: id})
	}
	s.consumers = map[LinkID]*downstream{}
	s.producers = map[LinkID]*upstream{}

	s.err = multierr.Append(reason, s.closeRole(reason))
	s.reject(s.mailbox.close())
	if s.err != nil {
		s.log.WarnContext(ctx, "stage stopped with failure", logger.NewField("reason", s.err.Error()))
	} else {
		s.log.InfoContext(ctx, "stage stopped")
	}
	close(s.done)
}

// reject answers messages that arrive after termination so that no
// neighbour waits on a link that will never be served.
func (s *Stage) reject(msgs []any) {
	for _, msg := range msgs {
		switch m := msg.(type) {
		case subscribeMsg:
			m.consumer.mailbox.post(producerCancelMsg{link: m.link, reason: s.err})
		case subscribedMsg:
			m.producer.mailbox.post(consumerCancelMsg{link: m.link})
		case eventsMsg:
			s.metrics.addDropped(s.name, len(m.events))
		}
	}
}

// closeRole releases the role. A role that implements Aborter is aborted
// instead of closed when the stage ends with a failure.
func (s *Stage) closeRole(reason error) error {
	var role any
	switch s.role {
	case RoleSource:
		role = s.source
	case RoleProcessor:
		role = s.processor
	case RoleSink:
		role = s.sink
	}
	if aborter, ok := role.(Aborter); ok && reason != nil {
		return aborter.Abort(reason)
	}
	if closer, ok := role.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
