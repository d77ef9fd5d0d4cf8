package resampler

import (
	"math/rand"
	"testing"
	"time"
	_ "time/tzdata"

	marketv1 "github.com/muhammadchandra19/tickbar/internal/domain/market/v1"
	"github.com/muhammadchandra19/tickbar/pkg/errors"
	"github.com/muhammadchandra19/tickbar/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stream = "eurusd"

func at(y int, m time.Month, d, h, mi, s int) time.Time {
	return time.Date(y, m, d, h, mi, s, 0, time.UTC)
}

func quote(t time.Time, ask, bid float64) marketv1.Tick {
	return marketv1.Tick{Time: t, Ask: util.Ptr(ask), Bid: util.Ptr(bid)}
}

func tickEvent(tick marketv1.Tick) marketv1.Event {
	return marketv1.NewEvent(tick.Time, "test", map[string]marketv1.Data{stream: tick})
}

func newResampler(t *testing.T, cfg Config) *Resampler {
	t.Helper()
	if cfg.Data == "" {
		cfg.Data = stream
	}
	r, err := New(cfg)
	require.NoError(t, err)
	return r
}

// feed runs every tick through r and returns the emitted bars.
func feed(t *testing.T, r *Resampler, ticks ...marketv1.Tick) []marketv1.Bar {
	t.Helper()
	bars := make([]marketv1.Bar, 0, len(ticks))
	for _, tick := range ticks {
		out, err := r.Process(tickEvent(tick))
		require.NoError(t, err)
		bar, err := out.Bar(r.Output())
		require.NoError(t, err)
		bars = append(bars, bar)
	}
	return bars
}

func TestResampler_IntervalScenario(t *testing.T) {
	r := newResampler(t, Config{Timeframe: "m5", MarketOpen: "00:00"})

	bars := feed(t, r,
		quote(at(2024, 3, 4, 10, 7, 30), 1.0852, 1.0850),
		quote(at(2024, 3, 4, 10, 8, 0), 1.0857, 1.0855),
		quote(at(2024, 3, 4, 10, 10, 0), 1.0860, 1.0858),
	)

	first := bars[0]
	assert.Equal(t, at(2024, 3, 4, 10, 5, 0), first.Time)
	assert.InDelta(t, 1.0851, first.Open, 1e-9)
	assert.InDelta(t, 1.0851, first.Close, 1e-9)
	assert.True(t, first.NewBar)
	assert.False(t, first.NewMarket)

	second := bars[1]
	assert.Equal(t, first.Time, second.Time)
	assert.InDelta(t, 1.0851, second.Open, 1e-9)
	assert.InDelta(t, 1.0856, second.High, 1e-9)
	assert.InDelta(t, 1.0851, second.Low, 1e-9)
	assert.InDelta(t, 1.0856, second.Close, 1e-9)
	assert.False(t, second.NewBar)
	assert.False(t, second.NewMarket)
	require.NotNil(t, second.Volume)
	assert.Equal(t, 2.0, *second.Volume)

	third := bars[2]
	assert.Equal(t, at(2024, 3, 4, 10, 10, 0), third.Time)
	assert.True(t, third.NewBar)
	assert.False(t, third.NewMarket)
	assert.Equal(t, 1.0, *third.Volume)
}

func TestResampler_TickScenario(t *testing.T) {
	r := newResampler(t, Config{Timeframe: "t3", MarketOpen: "09:00"})

	bars := feed(t, r,
		quote(at(2024, 3, 4, 8, 58, 0), 1.2, 1.0),
		quote(at(2024, 3, 4, 8, 59, 0), 1.4, 1.2),
		quote(at(2024, 3, 4, 9, 0, 0), 1.6, 1.4),
		quote(at(2024, 3, 4, 9, 1, 0), 1.6, 1.4),
		quote(at(2024, 3, 4, 9, 2, 0), 1.6, 1.4),
		quote(at(2024, 3, 4, 9, 3, 0), 1.6, 1.4),
	)

	assert.True(t, bars[0].NewBar)
	assert.False(t, bars[0].NewMarket)
	assert.Equal(t, at(2024, 3, 4, 8, 58, 0), bars[0].Time)

	assert.False(t, bars[1].NewBar)
	assert.Equal(t, bars[0].Time, bars[1].Time)
	assert.InDelta(t, 1.3, bars[1].Close, 1e-9)

	// the open forces a new bar before the counter reaches three
	assert.True(t, bars[2].NewBar)
	assert.True(t, bars[2].NewMarket)
	assert.Equal(t, at(2024, 3, 4, 9, 0, 0), bars[2].Time)

	assert.False(t, bars[3].NewBar)
	assert.False(t, bars[4].NewBar)

	// counter restarted at one on the forced split
	assert.True(t, bars[5].NewBar)
	assert.False(t, bars[5].NewMarket)
	assert.Equal(t, at(2024, 3, 4, 9, 3, 0), bars[5].Time)
}

func TestResampler_SingleTickBars(t *testing.T) {
	r := newResampler(t, Config{Timeframe: "t"})
	bars := feed(t, r,
		quote(at(2024, 3, 4, 23, 59, 0), 1, 1),
		quote(at(2024, 3, 4, 23, 59, 30), 1, 1),
		quote(at(2024, 3, 5, 0, 0, 0), 1, 1),
	)
	for _, bar := range bars {
		assert.True(t, bar.NewBar)
	}
	assert.False(t, bars[1].NewMarket)
	assert.True(t, bars[2].NewMarket)
}

func TestResampler_SubDayMarketOpenSplit(t *testing.T) {
	r := newResampler(t, Config{Timeframe: "m30", MarketOpen: "09:15"})

	bars := feed(t, r,
		quote(at(2024, 3, 4, 9, 5, 0), 1, 1),
		quote(at(2024, 3, 4, 9, 20, 0), 2, 2),
		quote(at(2024, 3, 4, 9, 29, 0), 3, 3),
		quote(at(2024, 3, 4, 9, 31, 0), 4, 4),
	)

	assert.Equal(t, at(2024, 3, 4, 9, 0, 0), bars[0].Time)

	assert.True(t, bars[1].NewBar)
	assert.True(t, bars[1].NewMarket)
	assert.Equal(t, at(2024, 3, 4, 9, 15, 0), bars[1].Time)

	assert.False(t, bars[2].NewBar)

	assert.True(t, bars[3].NewBar)
	assert.False(t, bars[3].NewMarket)
	assert.Equal(t, at(2024, 3, 4, 9, 30, 0), bars[3].Time)
}

func TestResampler_Alignment(t *testing.T) {
	testCases := []struct {
		name      string
		cfg       Config
		tick      time.Time
		wantStart time.Time
	}{
		{
			name:      "seconds within the minute",
			cfg:       Config{Timeframe: "s15"},
			tick:      time.Date(2024, 3, 4, 10, 7, 44, 123456789, time.UTC),
			wantStart: at(2024, 3, 4, 10, 7, 30),
		},
		{
			name:      "hours within the day",
			cfg:       Config{Timeframe: "h4"},
			tick:      at(2024, 3, 4, 15, 59, 59),
			wantStart: at(2024, 3, 4, 12, 0, 0),
		},
		{
			name:      "day at market open",
			cfg:       Config{Timeframe: "D", MarketOpen: "17:00"},
			tick:      at(2024, 3, 4, 18, 0, 0),
			wantStart: at(2024, 3, 4, 17, 0, 0),
		},
		{
			name:      "day before market open belongs to previous session",
			cfg:       Config{Timeframe: "D", MarketOpen: "17:00"},
			tick:      at(2024, 3, 4, 16, 0, 0),
			wantStart: at(2024, 3, 3, 17, 0, 0),
		},
		{
			name:      "week starting sunday",
			cfg:       Config{Timeframe: "W", WeeklyOpen: "sunday"},
			tick:      at(2024, 3, 6, 12, 0, 0),
			wantStart: at(2024, 3, 3, 0, 0, 0),
		},
		{
			name:      "month",
			cfg:       Config{Timeframe: "M", MarketOpen: "00:00:00"},
			tick:      at(2024, 2, 29, 23, 0, 0),
			wantStart: at(2024, 2, 1, 0, 0, 0),
		},
		{
			name:      "calendar bars use the tick location",
			cfg:       Config{Timeframe: "D"},
			tick:      time.Date(2024, 3, 4, 1, 0, 0, 0, time.FixedZone("EST", -5*3600)),
			wantStart: time.Date(2024, 3, 4, 0, 0, 0, 0, time.FixedZone("EST", -5*3600)),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := newResampler(t, tc.cfg)
			bars := feed(t, r, quote(tc.tick, 1, 1))
			assert.True(t, tc.wantStart.Equal(bars[0].Time), "got %s", bars[0].Time)
			assert.Equal(t, tc.wantStart.Location().String(), bars[0].Time.Location().String())
		})
	}
}

func TestResampler_MultiplierNotDividingTheHour(t *testing.T) {
	r := newResampler(t, Config{Timeframe: "m7", MarketOpen: "17:00"})

	bars := feed(t, r,
		quote(at(2024, 3, 4, 9, 56, 0), 1, 1),
		quote(at(2024, 3, 4, 10, 1, 0), 2, 2),
		quote(at(2024, 3, 4, 10, 3, 0), 3, 3),
		quote(at(2024, 3, 4, 10, 7, 0), 4, 4),
	)

	// the 09:56 bar keeps its seven minutes and runs to 10:03
	assert.Equal(t, at(2024, 3, 4, 9, 56, 0), bars[0].Time)
	assert.False(t, bars[1].NewBar)
	assert.Equal(t, bars[0].Time, bars[1].Time)

	// alignment restarts within the new hour
	assert.True(t, bars[2].NewBar)
	assert.Equal(t, at(2024, 3, 4, 10, 0, 0), bars[2].Time)
	assert.True(t, bars[3].NewBar)
	assert.Equal(t, at(2024, 3, 4, 10, 7, 0), bars[3].Time)
}

func TestResampler_RepeatedDSTHour(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 2024-11-03 01:00 to 02:00 happens twice in New York
	firstPass := time.Date(2024, 11, 3, 5, 30, 0, 0, time.UTC).In(ny)
	secondPass := time.Date(2024, 11, 3, 6, 10, 0, 0, time.UTC).In(ny)
	require.Equal(t, 1, firstPass.Hour())
	require.Equal(t, 1, secondPass.Hour())

	r := newResampler(t, Config{Timeframe: "h1", MarketOpen: "17:00"})
	bars := feed(t, r,
		quote(firstPass, 1, 1),
		quote(secondPass, 2, 2),
		quote(secondPass.Add(10*time.Minute), 3, 3),
		quote(secondPass.Add(20*time.Minute), 4, 4),
	)

	var opened []time.Time
	for _, bar := range bars {
		if bar.NewBar {
			opened = append(opened, bar.Time)
		}
	}
	require.Len(t, opened, 2)
	assert.True(t, opened[0].Equal(time.Date(2024, 11, 3, 5, 0, 0, 0, time.UTC)), "got %s", opened[0])
	assert.Equal(t, time.Hour, opened[1].Sub(opened[0]))
	assert.Equal(t, 4.0, bars[3].Close)
}

func TestResampler_CalendarRollover(t *testing.T) {
	testCases := []struct {
		name  string
		cfg   Config
		ticks []time.Time
		want  []marketv1.Bar
	}{
		{
			name:  "daily bars split at the open",
			cfg:   Config{Timeframe: "D", MarketOpen: "09:00"},
			ticks: []time.Time{at(2024, 3, 1, 8, 0, 0), at(2024, 3, 1, 10, 0, 0), at(2024, 3, 1, 23, 0, 0)},
			want: []marketv1.Bar{
				{Time: at(2024, 2, 29, 9, 0, 0), NewBar: true},
				{Time: at(2024, 3, 1, 9, 0, 0), NewBar: true, NewMarket: true},
				{Time: at(2024, 3, 1, 9, 0, 0)},
			},
		},
		{
			name:  "weekly bars",
			cfg:   Config{Timeframe: "W"},
			ticks: []time.Time{at(2024, 3, 6, 0, 0, 0), at(2024, 3, 10, 23, 0, 0), at(2024, 3, 11, 0, 0, 0)},
			want: []marketv1.Bar{
				{Time: at(2024, 3, 4, 0, 0, 0), NewBar: true},
				{Time: at(2024, 3, 4, 0, 0, 0)},
				{Time: at(2024, 3, 11, 0, 0, 0), NewBar: true, NewMarket: true},
			},
		},
		{
			name:  "two month bars across a year",
			cfg:   Config{Timeframe: "M2"},
			ticks: []time.Time{at(2023, 11, 30, 12, 0, 0), at(2023, 12, 31, 12, 0, 0), at(2024, 1, 1, 0, 0, 0)},
			want: []marketv1.Bar{
				{Time: at(2023, 11, 1, 0, 0, 0), NewBar: true},
				{Time: at(2023, 11, 1, 0, 0, 0)},
				{Time: at(2024, 1, 1, 0, 0, 0), NewBar: true, NewMarket: true},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := newResampler(t, tc.cfg)
			ticks := make([]marketv1.Tick, 0, len(tc.ticks))
			for _, ts := range tc.ticks {
				ticks = append(ticks, quote(ts, 1, 1))
			}
			bars := feed(t, r, ticks...)
			require.Len(t, bars, len(tc.want))
			for i, want := range tc.want {
				assert.Equal(t, want.Time, bars[i].Time, "bar %d", i)
				assert.Equal(t, want.NewBar, bars[i].NewBar, "bar %d", i)
				assert.Equal(t, want.NewMarket, bars[i].NewMarket, "bar %d", i)
			}
		})
	}
}

func TestResampler_PriceAndVolume(t *testing.T) {
	ts := at(2024, 3, 4, 10, 0, 0)

	testCases := []struct {
		name     string
		cfg      Config
		tick     marketv1.Tick
		assertFn func(t *testing.T, bar marketv1.Bar, err error)
	}{
		{
			name: "mid averages both sides",
			cfg:  Config{Timeframe: "m1"},
			tick: marketv1.Tick{Time: ts, Ask: util.Ptr(1.2), Bid: util.Ptr(1.0)},
			assertFn: func(t *testing.T, bar marketv1.Bar, err error) {
				require.NoError(t, err)
				assert.InDelta(t, 1.1, bar.Close, 1e-12)
			},
		},
		{
			name: "mid falls back to ask",
			cfg:  Config{Timeframe: "m1"},
			tick: marketv1.Tick{Time: ts, Ask: util.Ptr(1.2)},
			assertFn: func(t *testing.T, bar marketv1.Bar, err error) {
				require.NoError(t, err)
				assert.Equal(t, 1.2, bar.Close)
			},
		},
		{
			name: "mid falls back to bid",
			cfg:  Config{Timeframe: "m1"},
			tick: marketv1.Tick{Time: ts, Bid: util.Ptr(1.0)},
			assertFn: func(t *testing.T, bar marketv1.Bar, err error) {
				require.NoError(t, err)
				assert.Equal(t, 1.0, bar.Close)
			},
		},
		{
			name: "mid without any price",
			cfg:  Config{Timeframe: "m1"},
			tick: marketv1.Tick{Time: ts},
			assertFn: func(t *testing.T, _ marketv1.Bar, err error) {
				assert.True(t, errors.ErrorCodeEquals(err, errors.DataContractMissingPrice))
			},
		},
		{
			name: "bid mode does not fall back",
			cfg:  Config{Timeframe: "m1", PriceType: PriceBid},
			tick: marketv1.Tick{Time: ts, Ask: util.Ptr(1.2)},
			assertFn: func(t *testing.T, _ marketv1.Bar, err error) {
				assert.True(t, errors.ErrorCodeEquals(err, errors.DataContractMissingPrice))
			},
		},
		{
			name: "ask mode reads ask",
			cfg:  Config{Timeframe: "m1", PriceType: PriceAsk},
			tick: marketv1.Tick{Time: ts, Ask: util.Ptr(1.2), Bid: util.Ptr(1.0)},
			assertFn: func(t *testing.T, bar marketv1.Bar, err error) {
				require.NoError(t, err)
				assert.Equal(t, 1.2, bar.Close)
			},
		},
		{
			name: "volume sums both sides",
			cfg:  Config{Timeframe: "m1"},
			tick: marketv1.Tick{Time: ts, Ask: util.Ptr(1.0), AskVolume: util.Ptr(2.0), BidVolume: util.Ptr(3.0)},
			assertFn: func(t *testing.T, bar marketv1.Bar, err error) {
				require.NoError(t, err)
				require.NotNil(t, bar.Volume)
				assert.Equal(t, 5.0, *bar.Volume)
			},
		},
		{
			name: "volume uses the present side",
			cfg:  Config{Timeframe: "m1"},
			tick: marketv1.Tick{Time: ts, Ask: util.Ptr(1.0), BidVolume: util.Ptr(3.0)},
			assertFn: func(t *testing.T, bar marketv1.Bar, err error) {
				require.NoError(t, err)
				assert.Equal(t, 3.0, *bar.Volume)
			},
		},
		{
			name: "synthetic volume",
			cfg:  Config{Timeframe: "m1"},
			tick: marketv1.Tick{Time: ts, Ask: util.Ptr(1.0)},
			assertFn: func(t *testing.T, bar marketv1.Bar, err error) {
				require.NoError(t, err)
				require.NotNil(t, bar.Volume)
				assert.Equal(t, 1.0, *bar.Volume)
			},
		},
		{
			name: "absent volume without synthetic volume",
			cfg:  Config{Timeframe: "m1", FakeVolume: util.Ptr(false)},
			tick: marketv1.Tick{Time: ts, Ask: util.Ptr(1.0)},
			assertFn: func(t *testing.T, bar marketv1.Bar, err error) {
				require.NoError(t, err)
				assert.Nil(t, bar.Volume)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := newResampler(t, tc.cfg)
			out, err := r.Process(tickEvent(tc.tick))
			if err != nil {
				tc.assertFn(t, marketv1.Bar{}, err)
				return
			}
			bar, barErr := out.Bar(r.Output())
			require.NoError(t, barErr)
			tc.assertFn(t, bar, nil)
		})
	}
}

func TestResampler_VolumeAccumulation(t *testing.T) {
	r := newResampler(t, Config{Timeframe: "m5", FakeVolume: util.Ptr(false)})
	ts := at(2024, 3, 4, 10, 0, 0)

	bars := feed(t, r,
		marketv1.Tick{Time: ts, Ask: util.Ptr(1.0)},
		marketv1.Tick{Time: ts.Add(time.Second), Ask: util.Ptr(1.0)},
		marketv1.Tick{Time: ts.Add(2 * time.Second), Ask: util.Ptr(1.0), AskVolume: util.Ptr(2.0)},
		marketv1.Tick{Time: ts.Add(3 * time.Second), Ask: util.Ptr(1.0)},
		marketv1.Tick{Time: ts.Add(4 * time.Second), Ask: util.Ptr(1.0), BidVolume: util.Ptr(0.5)},
	)

	assert.Nil(t, bars[0].Volume)
	assert.Nil(t, bars[1].Volume)
	assert.Equal(t, 2.0, *bars[2].Volume)
	assert.Equal(t, 2.0, *bars[3].Volume)
	assert.Equal(t, 2.5, *bars[4].Volume)

	// emitted bars do not alias internal state
	*bars[2].Volume = 100
	assert.Equal(t, 2.5, *bars[4].Volume)
}

func TestResampler_OutputNaming(t *testing.T) {
	tick := quote(at(2024, 3, 4, 10, 0, 0), 1, 1)

	r := newResampler(t, Config{Timeframe: "m5"})
	assert.Equal(t, "eurusd_m5", r.Output())
	out, err := r.Process(tickEvent(tick))
	require.NoError(t, err)
	assert.Equal(t, []string{"eurusd", "eurusd_m5"}, out.Names())

	r = newResampler(t, Config{Timeframe: "m5", Name: stream})
	out, err = r.Process(tickEvent(tick))
	require.NoError(t, err)
	assert.Equal(t, []string{"eurusd"}, out.Names())
	_, err = out.Bar(stream)
	assert.NoError(t, err)
}

func TestResampler_DataContract(t *testing.T) {
	ts := at(2024, 3, 4, 10, 0, 0)
	r := newResampler(t, Config{Timeframe: "m5"})

	_, err := r.Process(marketv1.NewEvent(ts, "test", map[string]marketv1.Data{"other": quote(ts, 1, 1)}))
	assert.True(t, errors.ErrorCodeEquals(err, errors.DataContractMissingStream))

	_, err = r.Process(marketv1.NewEvent(ts, "test", map[string]marketv1.Data{stream: marketv1.Bar{Time: ts}}))
	assert.True(t, errors.ErrorCodeEquals(err, errors.DataContractWrongVariant))

	_, err = r.Process(tickEvent(marketv1.Tick{Time: ts}))
	assert.True(t, errors.IsCategory(err, errors.CategoryDataContract))

	// failures leave the resampler empty
	bars := feed(t, r, quote(ts.Add(time.Hour), 1, 1))
	assert.True(t, bars[0].NewBar)
	assert.False(t, bars[0].NewMarket)
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name     string
		cfg      Config
		assertFn func(t *testing.T, err error)
	}{
		{
			name: "valid",
			cfg:  Config{Data: stream, Timeframe: "h1", PriceType: "BID", MarketOpen: "22:00", WeeklyOpen: "sun"},
			assertFn: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name: "missing everything",
			cfg:  Config{},
			assertFn: func(t *testing.T, err error) {
				var base *errors.BaseError
				require.ErrorAs(t, err, &base)
				assert.Len(t, base.GetDetails(), 2)
				assert.True(t, base.IsAllCodeEqual(errors.ConfigMissingOption))
			},
		},
		{
			name: "invalid options",
			cfg:  Config{Data: stream, Timeframe: "z1", PriceType: "last", MarketOpen: "9am", WeeklyOpen: "funday"},
			assertFn: func(t *testing.T, err error) {
				var base *errors.BaseError
				require.ErrorAs(t, err, &base)
				assert.Len(t, base.GetDetails(), 4)
				assert.True(t, base.IsAnyCodeEqual(errors.ConfigInvalidTimeframe))
				assert.True(t, errors.IsCategory(err, errors.CategoryConfig))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.assertFn(t, tc.cfg.Validate())
			_, err := New(tc.cfg)
			assert.Equal(t, tc.cfg.Validate() == nil, err == nil)
		})
	}
}

// TestResampler_Invariants checks the bar flag invariants over random tick streams.
func TestResampler_Invariants(t *testing.T) {
	specs := []string{"t1", "t7", "s10", "m1", "m5", "h1", "h5", "D", "D2", "W", "M", "M3"}
	opens := []string{"00:00", "09:30", "17:00"}
	rng := rand.New(rand.NewSource(42))

	for _, spec := range specs {
		for _, open := range opens {
			t.Run(spec+"@"+open, func(t *testing.T) {
				r := newResampler(t, Config{Timeframe: spec, MarketOpen: open})
				ts := at(2024, 1, 28, 6, 0, 0)
				var ticks []marketv1.Tick
				for i := 0; i < 2000; i++ {
					step := time.Duration(rng.Int63n(int64(6*time.Hour))) + time.Millisecond
					if spec[0] == 't' || spec[0] == 's' || spec[0] == 'm' {
						step = time.Duration(rng.Int63n(int64(3*time.Minute))) + time.Millisecond
					}
					ts = ts.Add(step)
					ticks = append(ticks, quote(ts, 1+rng.Float64(), 1))
				}

				bars := feed(t, r, ticks...)
				assert.True(t, bars[0].NewBar)
				assert.False(t, bars[0].NewMarket)
				for i := 1; i < len(bars); i++ {
					prev, cur := bars[i-1], bars[i]
					require.False(t, cur.Time.Before(prev.Time), "bar %d goes back in time", i)
					if cur.Time.After(prev.Time) {
						require.True(t, cur.NewBar, "bar %d is later but not new", i)
					}
					if !cur.NewBar {
						require.Equal(t, prev.Time, cur.Time)
						require.False(t, cur.NewMarket)
						require.GreaterOrEqual(t, cur.High, prev.High)
						require.LessOrEqual(t, cur.Low, prev.Low)
					}
					if cur.NewMarket {
						require.True(t, cur.NewBar)
					}
					require.False(t, cur.Time.After(ticks[i].Time), "bar %d opens after its tick", i)
				}
			})
		}
	}
}
