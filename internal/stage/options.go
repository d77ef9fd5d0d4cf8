package stage

import (
	"fmt"

	"github.com/muhammadchandra19/tickbar/pkg/errors"
	"github.com/muhammadchandra19/tickbar/pkg/logger"
)

// BufferKeep is the overflow policy of a consumer buffer.
type BufferKeep string

const (
	// KeepLast drops the oldest buffered events on overflow.
	KeepLast BufferKeep = "last"
	// KeepFirst drops incoming events on overflow.
	KeepFirst BufferKeep = "first"
)

// DemandMode decides who issues demand on a producer link.
type DemandMode string

const (
	// Automatic lets the consumer stage ask for more input as it consumes.
	Automatic DemandMode = "automatic"
	// Manual leaves demand to an external controller calling Stage.Ask.
	Manual DemandMode = "manual"
)

const (
	defaultMaxDemand  = 1000
	defaultBufferSize = 10000
)

// SubscriptionOptions configures one producer to consumer link.
type SubscriptionOptions struct {
	MinDemand  int        `yaml:"min_demand"`
	MaxDemand  int        `yaml:"max_demand"`
	BufferSize int        `yaml:"buffer_size"`
	BufferKeep BufferKeep `yaml:"buffer_keep"`
	Mode       DemandMode `yaml:"mode"`
}

// DefaultSubscriptionOptions returns automatic demand of 500 to 1000 events
// with a 10000 event keep-last buffer.
func DefaultSubscriptionOptions() SubscriptionOptions {
	return SubscriptionOptions{}.withDefaults()
}

func (o SubscriptionOptions) withDefaults() SubscriptionOptions {
	if o.MaxDemand == 0 {
		o.MaxDemand = defaultMaxDemand
	}
	if o.MinDemand == 0 {
		o.MinDemand = o.MaxDemand / 2
	}
	if o.BufferSize == 0 {
		o.BufferSize = defaultBufferSize
	}
	if o.BufferKeep == "" {
		o.BufferKeep = KeepLast
	}
	if o.Mode == "" {
		o.Mode = Automatic
	}
	return o
}

// Validate checks the options once defaults are applied.
func (o SubscriptionOptions) Validate() error {
	o = o.withDefaults()
	errs := errors.NewBaseError()

	if o.MaxDemand < 1 {
		errs.AddErrorDetails(errors.NewConfigError(errors.ConfigInvalidSubscription, "max_demand", "max_demand must be positive"))
	}
	if o.MinDemand < 0 || o.MinDemand >= o.MaxDemand {
		errs.AddErrorDetails(errors.NewConfigError(
			errors.ConfigInvalidSubscription, "min_demand",
			fmt.Sprintf("min_demand %d must be in [0, max_demand)", o.MinDemand),
		))
	}
	if o.BufferSize < 1 {
		errs.AddErrorDetails(errors.NewConfigError(errors.ConfigInvalidSubscription, "buffer_size", "buffer_size must be positive"))
	}
	if o.BufferKeep != KeepFirst && o.BufferKeep != KeepLast {
		errs.AddErrorDetails(errors.NewConfigError(
			errors.ConfigInvalidSubscription, "buffer_keep",
			fmt.Sprintf("buffer_keep %q must be first or last", o.BufferKeep),
		))
	}
	if o.Mode != Automatic && o.Mode != Manual {
		errs.AddErrorDetails(errors.NewConfigError(
			errors.ConfigInvalidSubscription, "mode",
			fmt.Sprintf("mode %q must be automatic or manual", o.Mode),
		))
	}

	return errs.ErrorOrNil()
}

// Options holds construction options of a Stage.
type Options struct {
	logger  logger.Interface
	metrics *Metrics
}

// WithLogger sets the logger used for lifecycle and protocol logs.
func WithLogger(log logger.Interface) Options {
	return Options{logger: log}
}

// WithMetrics sets the collectors updated by the stage.
func WithMetrics(m *Metrics) Options {
	return Options{metrics: m}
}
