package main

import (
	"encoding/csv"
	"io"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	marketv1 "github.com/muhammadchandra19/tickbar/internal/domain/market/v1"
	"github.com/muhammadchandra19/tickbar/pkg/util"
)

// walk describes a random walk of quotes.
type walk struct {
	start    time.Time
	count    int
	price    float64
	spread   float64
	step     float64
	interval time.Duration
	// volume is the upper bound of each side's volume. Zero leaves volumes empty.
	volume float64
}

// generate returns count quotes. Gaps between quotes are drawn in
// (0, 2*interval], and the mid price moves by at most step each time.
func generate(rng *rand.Rand, w walk) []marketv1.Tick {
	ticks := make([]marketv1.Tick, 0, w.count)
	at := w.start
	mid := w.price

	for i := 0; i < w.count; i++ {
		if i > 0 {
			at = at.Add(time.Duration(1 + rng.Int63n(int64(2*w.interval))))
			mid += (rng.Float64()*2 - 1) * w.step
			if mid <= w.spread {
				mid = w.price
			}
		}

		tick := marketv1.Tick{
			Time: at,
			Bid:  util.Ptr(round(mid-w.spread/2, 5)),
			Ask:  util.Ptr(round(mid+w.spread/2, 5)),
		}
		if w.volume > 0 {
			tick.BidVolume = util.Ptr(round(rng.Float64()*w.volume, 2))
			tick.AskVolume = util.Ptr(round(rng.Float64()*w.volume, 2))
		}
		ticks = append(ticks, tick)
	}

	return ticks
}

func round(v float64, digits int) float64 {
	p := math.Pow10(digits)
	return math.Round(v*p) / p
}

// writeCSV writes ticks in the layout read by the csv tick source, with
// RFC 3339 times.
func writeCSV(out io.Writer, ticks []marketv1.Tick) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"time", "ask", "bid", "ask_volume", "bid_volume"}); err != nil {
		return err
	}
	for _, t := range ticks {
		record := []string{
			t.Time.Format(time.RFC3339Nano),
			formatOptional(t.Ask),
			formatOptional(t.Bid),
			formatOptional(t.AskVolume),
			formatOptional(t.BidVolume),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

var quoteColumns = []string{"timestamp", "symbol", "ask", "bid", "ask_volume", "bid_volume"}

// quoteRows adapts ticks to a COPY source for the quotes table.
func quoteRows(symbol string, ticks []marketv1.Tick) pgx.CopyFromSource {
	return pgx.CopyFromSlice(len(ticks), func(i int) ([]any, error) {
		t := ticks[i]
		return []any{t.Time, symbol, t.Ask, t.Bid, t.AskVolume, t.BidVolume}, nil
	})
}
