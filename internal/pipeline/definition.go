package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/muhammadchandra19/tickbar/internal/resampler"
	"github.com/muhammadchandra19/tickbar/internal/stage"
	"github.com/muhammadchandra19/tickbar/pkg/errors"
	"gopkg.in/yaml.v3"
)

// SourceKind selects the data source feeding a pipeline.
type SourceKind string

const (
	// SourceCSV reads a tick file.
	SourceCSV SourceKind = "csv"
	// SourceQuestDB reads the quotes table.
	SourceQuestDB SourceKind = "questdb"
	// SourceMemory reads a store registered in Deps.Stores. Only library
	// callers can register one; the tickbar command rejects it.
	SourceMemory SourceKind = "memory"
)

// SinkKind selects where bars are delivered.
type SinkKind string

const (
	// SinkLog logs every bar update.
	SinkLog SinkKind = "log"
	// SinkQuestDB writes closed bars to the bars table.
	SinkQuestDB SinkKind = "questdb"
	// SinkKafka publishes closed bars to a topic.
	SinkKafka SinkKind = "kafka"
	// SinkParquet writes closed bars to a file.
	SinkParquet SinkKind = "parquet"
)

// Definition describes a pipeline: one source, a chain of resamplers and
// the sinks subscribed to the end of the chain.
type Definition struct {
	Source       SourceDefinition          `yaml:"source"`
	Subscription stage.SubscriptionOptions `yaml:"subscription"`
	Resamplers   []resampler.Config        `yaml:"resamplers"`
	Sinks        []SinkDefinition          `yaml:"sinks"`
}

// SourceDefinition describes the source stage. Name is the stream the ticks
// are published under.
type SourceDefinition struct {
	Kind    SourceKind    `yaml:"kind"`
	Name    string        `yaml:"name"`
	CSV     CSVSource     `yaml:"csv"`
	QuestDB QuestDBSource `yaml:"questdb"`
}

// CSVSource locates a tick file.
type CSVSource struct {
	Path       string `yaml:"path"`
	TimeFormat string `yaml:"time_format"`
	Location   string `yaml:"location"`
	Comma      string `yaml:"comma"`
}

// QuestDBSource selects quotes of one symbol.
type QuestDBSource struct {
	Symbol   string     `yaml:"symbol"`
	From     *time.Time `yaml:"from"`
	To       *time.Time `yaml:"to"`
	Location string     `yaml:"location"`
}

// SinkDefinition describes one sink stage. Streams restricts the bar streams
// it handles; empty means every bar stream.
type SinkDefinition struct {
	Kind    SinkKind    `yaml:"kind"`
	Name    string      `yaml:"name"`
	Streams []string    `yaml:"streams"`
	QuestDB QuestDBSink `yaml:"questdb"`
	Kafka   KafkaSink   `yaml:"kafka"`
	Parquet ParquetSink `yaml:"parquet"`
}

// QuestDBSink configures the bars table writer.
type QuestDBSink struct {
	Table     string `yaml:"table"`
	BatchSize int    `yaml:"batch_size"`
}

// KafkaSink overrides the configured topic.
type KafkaSink struct {
	Topic string `yaml:"topic"`
}

// ParquetSink locates the output file.
type ParquetSink struct {
	Path string `yaml:"path"`
}

// LoadDefinition reads and validates the definition at path.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline file '%s': %w", path, err)
	}
	return ParseDefinition(data)
}

// ParseDefinition decodes and validates a YAML definition. Unknown keys are
// rejected.
func ParseDefinition(data []byte) (*Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var def Definition
	if err := dec.Decode(&def); err != nil {
		return nil, errors.NewConfigError(errors.ConfigInvalidOption, "", fmt.Sprintf("failed to parse pipeline definition: %v", err))
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks the whole definition and reports every problem at once.
// Each resampler must read the source stream or the output of an earlier
// resampler.
func (d *Definition) Validate() error {
	errs := errors.NewBaseError()

	errs.Merge(prefixed("source.", d.Source.validate()))
	errs.Merge(prefixed("subscription.", d.Subscription.Validate()))
	if d.Subscription.Mode == stage.Manual {
		errs.AddErrorDetails(errors.NewConfigError(
			errors.ConfigInvalidSubscription, "subscription.mode",
			"manual demand needs an external controller and cannot be used in a definition",
		))
	}

	streams := map[string]bool{}
	if d.Source.Name != "" {
		streams[d.Source.Name] = true
	}
	bars := map[string]bool{}
	for i, cfg := range d.Resamplers {
		prefix := fmt.Sprintf("resamplers[%d].", i)
		errs.Merge(prefixed(prefix, cfg.Validate()))

		if cfg.Data != "" && !streams[cfg.Data] {
			errs.AddErrorDetails(errors.NewConfigError(
				errors.ConfigInvalidOption, prefix+"data",
				fmt.Sprintf("data %q is not produced upstream", cfg.Data),
			))
		}
		out := cfg.OutputName()
		if streams[out] {
			errs.AddErrorDetails(errors.NewConfigError(
				errors.ConfigInvalidOption, prefix+"name",
				fmt.Sprintf("stream %q is already produced upstream", out),
			))
		}
		streams[out] = true
		bars[out] = true
	}

	for i, sink := range d.Sinks {
		errs.Merge(prefixed(fmt.Sprintf("sinks[%d].", i), sink.validate(bars)))
	}

	return errs.ErrorOrNil()
}

func (s SourceDefinition) validate() error {
	errs := errors.NewBaseError()
	if s.Name == "" {
		errs.AddErrorDetails(errors.NewConfigError(errors.ConfigMissingOption, "name", "source name is required"))
	}
	switch s.Kind {
	case SourceCSV:
		if s.CSV.Path == "" {
			errs.AddErrorDetails(errors.NewConfigError(errors.ConfigMissingOption, "csv.path", "csv path is required"))
		}
	case SourceQuestDB:
		if s.QuestDB.Symbol == "" {
			errs.AddErrorDetails(errors.NewConfigError(errors.ConfigMissingOption, "questdb.symbol", "questdb symbol is required"))
		}
	case SourceMemory:
	case "":
		errs.AddErrorDetails(errors.NewConfigError(errors.ConfigMissingOption, "kind", "source kind is required"))
	default:
		errs.AddErrorDetails(errors.NewConfigError(
			errors.ConfigInvalidOption, "kind",
			fmt.Sprintf("source kind %q must be one of csv, questdb, memory", s.Kind),
		))
	}
	return errs.ErrorOrNil()
}

func (s SinkDefinition) validate(bars map[string]bool) error {
	errs := errors.NewBaseError()
	switch s.Kind {
	case SinkLog, SinkQuestDB, SinkKafka:
	case SinkParquet:
		if s.Parquet.Path == "" {
			errs.AddErrorDetails(errors.NewConfigError(errors.ConfigMissingOption, "parquet.path", "parquet path is required"))
		}
	case "":
		errs.AddErrorDetails(errors.NewConfigError(errors.ConfigMissingOption, "kind", "sink kind is required"))
	default:
		errs.AddErrorDetails(errors.NewConfigError(
			errors.ConfigInvalidOption, "kind",
			fmt.Sprintf("sink kind %q must be one of log, questdb, kafka, parquet", s.Kind),
		))
	}
	for _, name := range s.Streams {
		if !bars[name] {
			errs.AddErrorDetails(errors.NewConfigError(
				errors.ConfigInvalidOption, "streams",
				fmt.Sprintf("stream %q is not a resampler output", name),
			))
		}
	}
	return errs.ErrorOrNil()
}

// prefixed qualifies the fields of a validation error.
func prefixed(prefix string, err error) error {
	if err == nil {
		return nil
	}
	base := errors.NewBaseError()
	base.Merge(err)
	base.PrependFields(prefix)
	return base
}
