// Package pipeline assembles stages from a Definition and runs them.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/muhammadchandra19/tickbar/internal/datasource"
	csvtick "github.com/muhammadchandra19/tickbar/internal/infrastructure/csv/tick"
	kafkabar "github.com/muhammadchandra19/tickbar/internal/infrastructure/kafka/bar"
	"github.com/muhammadchandra19/tickbar/internal/infrastructure/logsink"
	"github.com/muhammadchandra19/tickbar/internal/infrastructure/memory"
	parquetbar "github.com/muhammadchandra19/tickbar/internal/infrastructure/parquet/bar"
	questdbbar "github.com/muhammadchandra19/tickbar/internal/infrastructure/questdb/bar"
	questdbtick "github.com/muhammadchandra19/tickbar/internal/infrastructure/questdb/tick"
	"github.com/muhammadchandra19/tickbar/internal/resampler"
	"github.com/muhammadchandra19/tickbar/internal/stage"
	"github.com/muhammadchandra19/tickbar/pkg/errors"
	"github.com/muhammadchandra19/tickbar/pkg/logger"
	"github.com/muhammadchandra19/tickbar/pkg/questdb"
	"github.com/muhammadchandra19/tickbar/pkg/util"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Deps holds the collaborators a definition may refer to. Only the ones its
// source and sinks use need to be set.
type Deps struct {
	Logger  logger.Interface
	Metrics *stage.Metrics
	QuestDB questdb.QuestDBClient
	// KafkaWriter returns a writer for topic. Each kafka sink gets its own.
	KafkaWriter func(topic string) kafkabar.MessageWriter
	// Stores are the memory sources, keyed by source name. They are set in
	// code and never filled by bootstrap.
	Stores map[string]*memory.Store
}

// Pipeline is a linear topology: a source, zero or more resamplers and the
// sinks fed by the last of them.
type Pipeline struct {
	log    logger.Interface
	stages []*stage.Stage
}

type builder struct {
	def  *Definition
	deps Deps
	opts []stage.Options
	// built collects the closable roles so a failed Build releases them.
	built []io.Closer
}

// Build creates and links every stage of def. A definition without sinks gets
// a log sink.
func Build(def *Definition, deps Deps) (*Pipeline, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}

	b := &builder{
		def:  def,
		deps: deps,
		opts: []stage.Options{stage.WithLogger(deps.Logger), stage.WithMetrics(deps.Metrics)},
	}
	p, err := b.build()
	if err != nil {
		for _, c := range b.built {
			err = multierr.Append(err, c.Close())
		}
		return nil, err
	}
	return p, nil
}

func (b *builder) build() (*Pipeline, error) {
	ds, err := b.source()
	if err != nil {
		return nil, err
	}
	stream := datasource.NewStream(ds)
	b.built = append(b.built, stream)

	head := stage.NewSource(b.def.Source.Name, stream, b.opts...)
	stages := []*stage.Stage{head}

	for _, cfg := range b.def.Resamplers {
		r, err := resampler.New(cfg)
		if err != nil {
			return nil, err
		}
		next := stage.NewProcessor(r.Output(), r, b.opts...)
		if _, err := stage.Subscribe(next, head, b.def.Subscription); err != nil {
			return nil, err
		}
		stages = append(stages, next)
		head = next
	}

	sinks := b.def.Sinks
	if len(sinks) == 0 {
		sinks = []SinkDefinition{{Kind: SinkLog}}
	}
	for i, def := range sinks {
		sink, err := b.sink(def)
		if err != nil {
			return nil, err
		}
		name := def.Name
		if name == "" {
			name = fmt.Sprintf("%s-%d", def.Kind, i)
		}
		tail := stage.NewSink(name, sink, b.opts...)
		if _, err := stage.Subscribe(tail, head, b.def.Subscription); err != nil {
			return nil, err
		}
		stages = append(stages, tail)
	}

	return &Pipeline{log: b.deps.Logger, stages: stages}, nil
}

func (b *builder) source() (datasource.DataSource, error) {
	src := b.def.Source
	switch src.Kind {
	case SourceCSV:
		return csvtick.NewSource(csvtick.Config{
			Name:       src.Name,
			Path:       src.CSV.Path,
			TimeFormat: src.CSV.TimeFormat,
			Location:   src.CSV.Location,
			Comma:      src.CSV.Comma,
		})

	case SourceQuestDB:
		if b.deps.QuestDB == nil {
			return nil, errors.NewConfigError(errors.ConfigMissingOption, "source.questdb", "questdb client is not configured")
		}
		loc := time.UTC
		if src.QuestDB.Location != "" {
			l, err := time.LoadLocation(src.QuestDB.Location)
			if err != nil {
				return nil, errors.NewConfigError(errors.ConfigInvalidOption, "source.questdb.location", err.Error())
			}
			loc = l
		}
		filter := questdbtick.Filter{Symbol: src.QuestDB.Symbol, From: src.QuestDB.From, To: src.QuestDB.To}
		return questdbtick.NewSource(b.deps.QuestDB, src.Name, filter, loc)

	case SourceMemory:
		store, ok := b.deps.Stores[src.Name]
		if !ok {
			return nil, errors.NewConfigError(errors.ConfigMissingOption, "source.name", fmt.Sprintf("no memory store named %q", src.Name))
		}
		return store, nil

	default:
		return nil, errors.NewConfigError(errors.ConfigInvalidOption, "source.kind", fmt.Sprintf("unknown source kind %q", src.Kind))
	}
}

func (b *builder) sink(def SinkDefinition) (stage.Sink, error) {
	switch def.Kind {
	case SinkLog:
		return logsink.New(b.deps.Logger, def.Streams...), nil

	case SinkQuestDB:
		if b.deps.QuestDB == nil {
			return nil, errors.NewConfigError(errors.ConfigMissingOption, "sinks.questdb", "questdb client is not configured")
		}
		return questdbbar.NewSink(b.deps.QuestDB, questdbbar.Config{
			Table:     def.QuestDB.Table,
			BatchSize: def.QuestDB.BatchSize,
			Streams:   def.Streams,
		}), nil

	case SinkKafka:
		if b.deps.KafkaWriter == nil {
			return nil, errors.NewConfigError(errors.ConfigMissingOption, "sinks.kafka", "kafka writer is not configured")
		}
		p := kafkabar.NewPublisher(b.deps.KafkaWriter(def.Kafka.Topic), b.deps.Logger, def.Streams...)
		b.built = append(b.built, p)
		return p, nil

	case SinkParquet:
		return parquetbar.NewFile(parquetbar.Config{Path: def.Parquet.Path, Streams: def.Streams})

	default:
		return nil, errors.NewConfigError(errors.ConfigInvalidOption, "sinks.kind", fmt.Sprintf("unknown sink kind %q", def.Kind))
	}
}

// Stages returns the stages in topological order, source first.
func (p *Pipeline) Stages() []*stage.Stage {
	return p.stages
}

// Run runs every stage until the pipeline drains and returns the first
// failure. A failing stage does not cancel the others; its failure travels
// over the links. A run id is attached to ctx unless it already has one.
func (p *Pipeline) Run(ctx context.Context) error {
	ctx = util.WithRunID(ctx, util.GetRunID(ctx))
	p.log.InfoContext(ctx, "pipeline started", logger.NewField("stages", len(p.stages)))

	var g errgroup.Group
	for _, s := range p.stages {
		g.Go(func() error {
			return s.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		p.log.ErrorContext(ctx, errors.TracerFromError(err))
		return err
	}
	p.log.InfoContext(ctx, "pipeline finished")
	return nil
}
