// Package bar stores completed bars in a Parquet file.
package bar

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	marketv1 "github.com/muhammadchandra19/tickbar/internal/domain/market/v1"
	"github.com/muhammadchandra19/tickbar/pkg/errors"
	"github.com/parquet-go/parquet-go"
)

// Row is the Parquet schema of a bar. Timestamp is in Unix milliseconds.
type Row struct {
	Stream    string   `parquet:"stream,dict"`
	Timestamp int64    `parquet:"timestamp"`
	Open      float64  `parquet:"open"`
	High      float64  `parquet:"high"`
	Low       float64  `parquet:"low"`
	Close     float64  `parquet:"close"`
	Volume    *float64 `parquet:"volume,optional"`
	NewMarket bool     `parquet:"new_market"`
}

// Config configures a File.
type Config struct {
	Path    string   `yaml:"path"`
	Streams []string `yaml:"streams"`
}

// File is a stage.Sink buffering closed bars in memory. The file is written
// once, when the sink is closed.
type File struct {
	path      string
	collector *marketv1.BarCollector
	rows      []Row
}

// NewFile creates a File sink.
func NewFile(cfg Config) (*File, error) {
	if cfg.Path == "" {
		return nil, errors.NewConfigError(errors.ConfigMissingOption, "path", "parquet file path is required")
	}
	return &File{path: cfg.Path, collector: marketv1.NewBarCollector(cfg.Streams...)}, nil
}

// Consume buffers the bars closed by events.
func (f *File) Consume(_ context.Context, events []marketv1.Event) error {
	for _, ev := range events {
		closed, err := f.collector.Collect(ev)
		if err != nil {
			return err
		}
		for _, b := range closed {
			f.rows = append(f.rows, toRow(b))
		}
	}
	return nil
}

// Close writes every buffered bar, including those still open.
func (f *File) Close() error {
	for _, b := range f.collector.Flush() {
		f.rows = append(f.rows, toRow(b))
	}
	return f.write()
}

// Abort writes the bars completed before the failure and drops the open ones.
func (f *File) Abort(error) error {
	return f.write()
}

func (f *File) write() error {
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.NewTransportError(errors.TransportSinkFailure, err, fmt.Sprintf("create directory of %s", f.path))
		}
	}
	if err := parquet.WriteFile(f.path, f.rows); err != nil {
		return errors.NewTransportError(errors.TransportSinkFailure, err, fmt.Sprintf("write %d bars to %s", len(f.rows), f.path))
	}
	f.rows = nil
	return nil
}

func toRow(b marketv1.ClosedBar) Row {
	return Row{
		Stream:    b.Stream,
		Timestamp: b.Bar.Time.UnixMilli(),
		Open:      b.Bar.Open,
		High:      b.Bar.High,
		Low:       b.Bar.Low,
		Close:     b.Bar.Close,
		Volume:    b.Bar.Volume,
		NewMarket: b.Bar.NewMarket,
	}
}
