// Package resampler aggregates ticks of one stream into OHLCV bars of one timeframe.
package resampler

import (
	"fmt"
	"time"

	"github.com/muhammadchandra19/tickbar/internal/calendar"
	marketv1 "github.com/muhammadchandra19/tickbar/internal/domain/market/v1"
	"github.com/muhammadchandra19/tickbar/pkg/errors"
	"github.com/muhammadchandra19/tickbar/pkg/timeframe"
	"github.com/muhammadchandra19/tickbar/pkg/util"
)

type state int

const (
	stateEmpty state = iota
	stateAccumulating
)

// Resampler is a stateful transformer bound to one input stream and one timeframe.
// It is not safe for concurrent use; a pipeline stage owns it exclusively.
type Resampler struct {
	cfg settings

	state state
	bar   marketv1.Bar
	// count is the number of ticks folded into bar, used by tick timeframes.
	count int
	// end is the planned exclusive end of bar for time based timeframes.
	end time.Time
	// sessionEnd is the first market open after the tick that opened bar.
	sessionEnd time.Time
}

// New validates cfg and returns a Resampler in the empty state.
func New(cfg Config) (*Resampler, error) {
	s, err := cfg.settings()
	if err != nil {
		return nil, err
	}
	return &Resampler{cfg: s}, nil
}

// Input returns the name of the consumed tick stream.
func (r *Resampler) Input() string {
	return r.cfg.input
}

// Output returns the name the bars are written under.
func (r *Resampler) Output() string {
	return r.cfg.output
}

// Timeframe returns the bar period.
func (r *Resampler) Timeframe() timeframe.TimeFrame {
	return r.cfg.timeframe
}

// Process folds the tick carried by event into the current bar and returns a
// new event holding the bar under the output name. On error the resampler
// state is left unchanged.
func (r *Resampler) Process(event marketv1.Event) (marketv1.Event, error) {
	tick, err := event.Tick(r.cfg.input)
	if err != nil {
		return marketv1.Event{}, err
	}

	price, err := r.price(tick)
	if err != nil {
		return marketv1.Event{}, err
	}

	bar := r.step(tick.Time, price, r.volume(tick))
	return event.With(r.cfg.output, bar), nil
}

func (r *Resampler) step(t time.Time, price float64, volume *float64) marketv1.Bar {
	switch {
	case r.state == stateEmpty:
		r.open(t, price, volume, false)
		r.state = stateAccumulating
	case r.crossed(t):
		r.open(t, price, volume, !t.Before(r.sessionEnd))
	default:
		r.update(price, volume)
	}
	return r.bar.Clone()
}

func (r *Resampler) crossed(t time.Time) bool {
	if r.cfg.timeframe.IsTick() {
		// the session boundary wins over the counter
		return !t.Before(r.sessionEnd) || r.count >= r.cfg.timeframe.Multiplier
	}
	return !t.Before(r.end)
}

func (r *Resampler) open(t time.Time, price float64, volume *float64, newMarket bool) {
	start, end := r.bounds(t)
	r.bar = marketv1.Bar{
		Time:      start,
		Open:      price,
		High:      price,
		Low:       price,
		Close:     price,
		Volume:    util.CopyPtr(volume),
		NewBar:    true,
		NewMarket: newMarket,
	}
	r.count = 1
	r.end = end
	r.sessionEnd = calendar.NextOpen(t, r.cfg.marketOpen)
}

func (r *Resampler) update(price float64, volume *float64) {
	if price > r.bar.High {
		r.bar.High = price
	}
	if price < r.bar.Low {
		r.bar.Low = price
	}
	r.bar.Close = price
	r.bar.Volume = accumulate(r.bar.Volume, volume)
	r.bar.NewBar = false
	r.bar.NewMarket = false
	r.count++
}

// bounds returns the aligned start and planned end of the bar opened by a tick at t.
func (r *Resampler) bounds(t time.Time) (time.Time, time.Time) {
	tf := r.cfg.timeframe
	open := r.cfg.marketOpen

	switch tf.Unit {
	case timeframe.Second, timeframe.Minute, timeframe.Hour:
		aligned := alignInterval(t, tf)
		start := aligned
		if last := calendar.LastOpen(t, open); last.After(start) {
			start = last
		}
		end := aligned.Add(time.Duration(tf.Multiplier) * tf.Period())
		if next := calendar.NextOpen(t, open); next.Before(end) {
			end = next
		}
		return start, end

	case timeframe.Day:
		start := calendar.LastOpen(t, open)
		return start, start.AddDate(0, 0, tf.Multiplier)

	case timeframe.Week:
		session := calendar.LastOpen(t, open)
		start := open.On(calendar.StartOfWeek(session, r.cfg.weeklyOpen))
		return start, start.AddDate(0, 0, 7*tf.Multiplier)

	case timeframe.Month:
		session := calendar.LastOpen(t, open)
		start := open.On(calendar.StartOfMonth(session))
		return start, calendar.AddMonths(start, tf.Multiplier)

	default:
		return t, time.Time{}
	}
}

// alignInterval rounds t down to a multiple of the multiplier within its
// natural period and zeroes the finer fields. The finer fields are removed as
// elapsed time so that an hour repeated by a DST change keeps its offset.
func alignInterval(t time.Time, tf timeframe.TimeFrame) time.Time {
	h, mi, s := t.Clock()
	n := tf.Multiplier
	sub := time.Duration(t.Nanosecond())

	switch tf.Unit {
	case timeframe.Second:
		return t.Add(-sub - time.Duration(s%n)*time.Second)
	case timeframe.Minute:
		return t.Add(-sub - time.Duration(s)*time.Second - time.Duration(mi%n)*time.Minute)
	}

	hour := t.Add(-sub - time.Duration(s)*time.Second - time.Duration(mi)*time.Minute)
	aligned := hour.Add(-time.Duration(h%n) * time.Hour)
	if aligned.Hour() != h-h%n || aligned.Day() != t.Day() {
		// a DST change lies between the two wall clock hours
		y, mo, d := t.Date()
		return time.Date(y, mo, d, h-h%n, 0, 0, 0, t.Location())
	}
	return aligned
}

func (r *Resampler) price(tick marketv1.Tick) (float64, error) {
	switch r.cfg.priceType {
	case PriceBid:
		if tick.Bid == nil {
			return 0, r.missingPrice(tick, "bid")
		}
		return *tick.Bid, nil
	case PriceAsk:
		if tick.Ask == nil {
			return 0, r.missingPrice(tick, "ask")
		}
		return *tick.Ask, nil
	default:
		switch {
		case tick.Ask != nil && tick.Bid != nil:
			return (*tick.Ask + *tick.Bid) / 2, nil
		case tick.Ask != nil:
			return *tick.Ask, nil
		case tick.Bid != nil:
			return *tick.Bid, nil
		default:
			return 0, r.missingPrice(tick, "ask and bid")
		}
	}
}

func (r *Resampler) missingPrice(tick marketv1.Tick, fields string) error {
	return errors.NewDataContractError(
		errors.DataContractMissingPrice,
		r.cfg.input,
		fmt.Sprintf("tick at %s on %q has no %s for %s pricing", tick.Time.Format(time.RFC3339Nano), r.cfg.input, fields, r.cfg.priceType),
	)
}

func (r *Resampler) volume(tick marketv1.Tick) *float64 {
	switch {
	case tick.AskVolume != nil && tick.BidVolume != nil:
		return util.Ptr(*tick.AskVolume + *tick.BidVolume)
	case tick.AskVolume != nil:
		return util.Ptr(*tick.AskVolume)
	case tick.BidVolume != nil:
		return util.Ptr(*tick.BidVolume)
	case r.cfg.fakeVolume:
		return util.Ptr(1.0)
	default:
		return nil
	}
}

func accumulate(total, add *float64) *float64 {
	switch {
	case add == nil:
		return total
	case total == nil:
		return util.CopyPtr(add)
	default:
		return util.Ptr(*total + *add)
	}
}
