package main

import (
	"context"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/muhammadchandra19/tickbar/internal/datasource"
	marketv1 "github.com/muhammadchandra19/tickbar/internal/domain/market/v1"
	csvtick "github.com/muhammadchandra19/tickbar/internal/infrastructure/csv/tick"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testWalk = walk{
	start:    time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	count:    500,
	price:    1.1,
	spread:   0.0002,
	step:     0.0001,
	interval: time.Second,
	volume:   5,
}

func TestGenerate(t *testing.T) {
	ticks := generate(rand.New(rand.NewSource(42)), testWalk)
	require.Len(t, ticks, testWalk.count)
	assert.True(t, ticks[0].Time.Equal(testWalk.start))

	for i, tick := range ticks {
		require.NotNil(t, tick.Ask)
		require.NotNil(t, tick.Bid)
		assert.Greater(t, *tick.Ask, *tick.Bid)
		assert.InDelta(t, testWalk.spread, *tick.Ask-*tick.Bid, 1e-9)
		require.NotNil(t, tick.AskVolume)
		assert.LessOrEqual(t, *tick.AskVolume, testWalk.volume)
		if i > 0 {
			assert.True(t, tick.Time.After(ticks[i-1].Time))
		}
	}

	again := generate(rand.New(rand.NewSource(42)), testWalk)
	assert.Equal(t, ticks, again)
}

func TestWriteCSV_ReadBackThroughTickSource(t *testing.T) {
	w := testWalk
	w.volume = 0
	ticks := generate(rand.New(rand.NewSource(7)), w)

	path := filepath.Join(t.TempDir(), "eurusd.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, writeCSV(f, ticks))
	require.NoError(t, f.Close())

	src, err := csvtick.NewSource(csvtick.Config{Name: "eurusd", Path: path})
	require.NoError(t, err)
	stream := datasource.NewStream(src)

	var got []marketv1.Tick
	for {
		ev, err := stream.Next(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		tick, err := ev.Tick("eurusd")
		require.NoError(t, err)
		got = append(got, tick)
	}

	require.Len(t, got, len(ticks))
	for i := range ticks {
		assert.True(t, ticks[i].Time.Equal(got[i].Time))
		assert.Equal(t, *ticks[i].Bid, *got[i].Bid)
		assert.Nil(t, got[i].AskVolume)
	}
}

func TestQuoteRows(t *testing.T) {
	ticks := generate(rand.New(rand.NewSource(1)), walk{start: testWalk.start, count: 2, price: 1.1, spread: 0.0002, step: 0.0001, interval: time.Second})
	src := quoteRows("EURUSD", ticks)

	var rows [][]any
	for src.Next() {
		values, err := src.Values()
		require.NoError(t, err)
		rows = append(rows, values)
	}
	require.NoError(t, src.Err())
	require.Len(t, rows, 2)
	assert.Len(t, rows[0], len(quoteColumns))
	assert.Equal(t, "EURUSD", rows[1][1])
}
