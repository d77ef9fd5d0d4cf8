package resampler

import (
	"fmt"
	"strings"
	"time"

	"github.com/muhammadchandra19/tickbar/internal/calendar"
	"github.com/muhammadchandra19/tickbar/pkg/errors"
	"github.com/muhammadchandra19/tickbar/pkg/timeframe"
)

// PriceType selects which quote side prices a bar.
type PriceType string

const (
	// PriceMid averages ask and bid, falling back to whichever side is present.
	PriceMid PriceType = "mid"
	// PriceBid reads the bid.
	PriceBid PriceType = "bid"
	// PriceAsk reads the ask.
	PriceAsk PriceType = "ask"
)

// Config is the user facing resampler configuration.
type Config struct {
	Data       string    `yaml:"data"`
	Timeframe  string    `yaml:"timeframe"`
	Name       string    `yaml:"name"`
	PriceType  PriceType `yaml:"price_type"`
	FakeVolume *bool     `yaml:"fake_volume"`
	MarketOpen string    `yaml:"market_open"`
	WeeklyOpen string    `yaml:"weekly_open"`
}

// settings is the validated form of Config.
type settings struct {
	input      string
	output     string
	timeframe  timeframe.TimeFrame
	priceType  PriceType
	fakeVolume bool
	marketOpen calendar.Clock
	weeklyOpen time.Weekday
}

// OutputName returns the configured output name or the default "<data>_<timeframe>".
func (c Config) OutputName() string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("%s_%s", c.Data, c.Timeframe)
}

// Validate checks every option and returns all problems at once.
func (c Config) Validate() error {
	_, err := c.settings()
	return err
}

func (c Config) settings() (settings, error) {
	errs := errors.NewBaseError()
	s := settings{
		input:      c.Data,
		output:     c.OutputName(),
		priceType:  PriceMid,
		fakeVolume: true,
		marketOpen: calendar.Midnight,
		weeklyOpen: time.Monday,
	}

	if c.Data == "" {
		errs.AddErrorDetails(errors.NewConfigError(errors.ConfigMissingOption, "data", "data is required"))
	}

	if c.Timeframe == "" {
		errs.AddErrorDetails(errors.NewConfigError(errors.ConfigMissingOption, "timeframe", "timeframe is required"))
	} else {
		tf, err := timeframe.Parse(c.Timeframe)
		errs.Merge(err)
		s.timeframe = tf
	}

	switch PriceType(strings.ToLower(string(c.PriceType))) {
	case "", PriceMid:
	case PriceBid:
		s.priceType = PriceBid
	case PriceAsk:
		s.priceType = PriceAsk
	default:
		errs.AddErrorDetails(errors.NewConfigError(
			errors.ConfigInvalidOption, "price_type",
			fmt.Sprintf("price_type %q must be one of mid, bid, ask", c.PriceType),
		))
	}

	if c.FakeVolume != nil {
		s.fakeVolume = *c.FakeVolume
	}

	if c.MarketOpen != "" {
		clock, err := calendar.ParseClock(c.MarketOpen)
		errs.Merge(err)
		s.marketOpen = clock
	}

	if c.WeeklyOpen != "" {
		wd, err := calendar.ParseWeekday(c.WeeklyOpen)
		errs.Merge(err)
		s.weeklyOpen = wd
	}

	return s, errs.ErrorOrNil()
}
