package marketv1

import (
	"time"

	"github.com/muhammadchandra19/tickbar/pkg/util"
)

// Kind identifies the variant held by a Data value.
type Kind string

const (
	// KindTick is a bid/ask quote.
	KindTick Kind = "tick"
	// KindBar is an OHLCV aggregate.
	KindBar Kind = "bar"
	// KindIndicator is a computed indicator value.
	KindIndicator Kind = "indicator"
	// KindScalar is a bare number.
	KindScalar Kind = "scalar"
)

// Data is a payload carried by an Event stream. The set of variants is closed:
// Tick, Bar, Indicator and Scalar.
type Data interface {
	Kind() Kind
	isData()
}

// Point is a Data variant anchored at an instant, as produced by data sources.
type Point interface {
	Data
	Timestamp() time.Time
}

// Tick is a single quote observation. Price and volume fields are independently optional.
type Tick struct {
	Time      time.Time
	Ask       *float64
	Bid       *float64
	AskVolume *float64
	BidVolume *float64
}

// Bar is an OHLCV aggregate. Time is the aligned opening instant of the bar.
type Bar struct {
	Time      time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    *float64
	NewBar    bool
	NewMarket bool
}

// Indicator is a single indicator reading.
type Indicator struct {
	Time  time.Time
	Value float64
}

// Scalar is a plain number attached to an event.
type Scalar float64

func (Tick) isData()      {}
func (Bar) isData()       {}
func (Indicator) isData() {}
func (Scalar) isData()    {}

// Kind implements Data.
func (Tick) Kind() Kind { return KindTick }

// Kind implements Data.
func (Bar) Kind() Kind { return KindBar }

// Kind implements Data.
func (Indicator) Kind() Kind { return KindIndicator }

// Kind implements Data.
func (Scalar) Kind() Kind { return KindScalar }

// Timestamp implements Point.
func (t Tick) Timestamp() time.Time { return t.Time }

// Timestamp implements Point.
func (b Bar) Timestamp() time.Time { return b.Time }

// Clone returns a copy of the tick that shares no pointers with t.
func (t Tick) Clone() Tick {
	return Tick{
		Time:      t.Time,
		Ask:       util.CopyPtr(t.Ask),
		Bid:       util.CopyPtr(t.Bid),
		AskVolume: util.CopyPtr(t.AskVolume),
		BidVolume: util.CopyPtr(t.BidVolume),
	}
}

// Clone returns a copy of the bar that shares no pointers with b.
func (b Bar) Clone() Bar {
	b.Volume = util.CopyPtr(b.Volume)
	return b
}
