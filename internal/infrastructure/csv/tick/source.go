// Package tick reads ticks from delimited text files.
package tick

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/muhammadchandra19/tickbar/internal/datasource"
	marketv1 "github.com/muhammadchandra19/tickbar/internal/domain/market/v1"
	"github.com/muhammadchandra19/tickbar/pkg/errors"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	// FormatRFC3339 parses RFC 3339 timestamps with optional fractional seconds.
	FormatRFC3339 = "rfc3339"
	// FormatUnix parses integer seconds since the epoch.
	FormatUnix = "unix"
	// FormatUnixMilli parses integer milliseconds since the epoch.
	FormatUnixMilli = "unix_ms"
)

const (
	columnTime      = "time"
	columnAsk       = "ask"
	columnBid       = "bid"
	columnAskVolume = "ask_volume"
	columnBidVolume = "bid_volume"
)

// Config describes one tick file.
type Config struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
	// TimeFormat is rfc3339 (default), unix, unix_ms or a Go time layout.
	TimeFormat string `yaml:"time_format"`
	// Location is the IANA zone ticks are expressed in. Defaults to UTC.
	Location string `yaml:"location"`
	Comma    string `yaml:"comma"`
}

// Source is a datasource.DataSource over a tick file. Each Produce reopens
// the file, so a source can be replayed.
type Source struct {
	name      string
	path      string
	comma     rune
	parseTime func(string) (time.Time, error)
}

var _ datasource.DataSource = (*Source)(nil)

// NewSource validates cfg and creates a Source. The file is not opened yet.
func NewSource(cfg Config) (*Source, error) {
	errs := errors.NewBaseError()
	if cfg.Name == "" {
		errs.AddErrorDetails(errors.NewConfigError(errors.ConfigMissingOption, "name", "tick source name is required"))
	}
	if cfg.Path == "" {
		errs.AddErrorDetails(errors.NewConfigError(errors.ConfigMissingOption, "path", "tick file path is required"))
	}

	loc := time.UTC
	if cfg.Location != "" {
		l, err := time.LoadLocation(cfg.Location)
		if err != nil {
			errs.AddErrorDetails(errors.NewConfigError(errors.ConfigInvalidOption, "location", err.Error()))
		} else {
			loc = l
		}
	}

	comma := ','
	if cfg.Comma != "" {
		runes := []rune(cfg.Comma)
		if len(runes) != 1 {
			errs.AddErrorDetails(errors.NewConfigError(errors.ConfigInvalidOption, "comma", fmt.Sprintf("comma %q must be a single character", cfg.Comma)))
		} else {
			comma = runes[0]
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return &Source{
		name:      cfg.Name,
		path:      cfg.Path,
		comma:     comma,
		parseTime: timeParser(cfg.TimeFormat, loc),
	}, nil
}

func timeParser(format string, loc *time.Location) func(string) (time.Time, error) {
	switch format {
	case "", FormatRFC3339:
		return func(s string) (time.Time, error) {
			t, err := time.Parse(time.RFC3339Nano, s)
			return t.In(loc), err
		}
	case FormatUnix:
		return func(s string) (time.Time, error) {
			v, err := strconv.ParseInt(s, 10, 64)
			return time.Unix(v, 0).In(loc), err
		}
	case FormatUnixMilli:
		return func(s string) (time.Time, error) {
			v, err := strconv.ParseInt(s, 10, 64)
			return time.UnixMilli(v).In(loc), err
		}
	default:
		return func(s string) (time.Time, error) {
			return time.ParseInLocation(format, s, loc)
		}
	}
}

// Name returns the stream name of the ticks.
func (s *Source) Name() string {
	return s.name
}

// Produce opens the file and reads its header.
func (s *Source) Produce(_ context.Context) (datasource.Cursor, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, errors.NewTransportError(errors.TransportSourceFailure, err, fmt.Sprintf("open tick file %s", s.path))
	}

	// UTF-16 files are only recognized by their byte order mark
	decoded := transform.NewReader(f, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	r := csv.NewReader(decoded)
	r.Comma = s.comma
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		_ = f.Close()
		if err == io.EOF {
			return nil, errors.NewConfigError(errors.ConfigMissingOption, columnTime, fmt.Sprintf("tick file %s has no header", s.path))
		}
		return nil, errors.NewTransportError(errors.TransportSourceFailure, err, fmt.Sprintf("read header of %s", s.path))
	}

	cols, err := mapColumns(header)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &cursor{source: s, file: f, reader: r, cols: cols}, nil
}

type columns struct {
	time, ask, bid, askVolume, bidVolume int
}

func mapColumns(header []string) (columns, error) {
	cols := columns{time: -1, ask: -1, bid: -1, askVolume: -1, bidVolume: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case columnTime:
			cols.time = i
		case columnAsk:
			cols.ask = i
		case columnBid:
			cols.bid = i
		case columnAskVolume:
			cols.askVolume = i
		case columnBidVolume:
			cols.bidVolume = i
		}
	}
	if cols.time < 0 {
		return cols, errors.NewConfigError(errors.ConfigMissingOption, columnTime, "tick file header has no time column")
	}
	return cols, nil
}

type cursor struct {
	source *Source
	file   *os.File
	reader *csv.Reader
	cols   columns
	point  marketv1.Tick
	err    error
}

func (c *cursor) Next() bool {
	if c.err != nil || c.file == nil {
		return false
	}

	record, err := c.reader.Read()
	if err == io.EOF {
		return false
	}
	if err != nil {
		c.err = errors.NewTransportError(errors.TransportSourceFailure, err, fmt.Sprintf("read %s", c.source.path))
		return false
	}

	tick, err := c.parse(record)
	if err != nil {
		line, _ := c.reader.FieldPos(0)
		c.err = errors.NewTransportError(errors.TransportSourceFailure, err, fmt.Sprintf("%s:%d: invalid tick", c.source.path, line))
		return false
	}
	c.point = tick
	return true
}

func (c *cursor) parse(record []string) (marketv1.Tick, error) {
	raw := field(record, c.cols.time)
	if raw == "" {
		return marketv1.Tick{}, fmt.Errorf("empty time")
	}
	at, err := c.source.parseTime(raw)
	if err != nil {
		return marketv1.Tick{}, err
	}

	tick := marketv1.Tick{Time: at}
	for _, f := range []struct {
		column int
		dst    **float64
	}{
		{c.cols.ask, &tick.Ask},
		{c.cols.bid, &tick.Bid},
		{c.cols.askVolume, &tick.AskVolume},
		{c.cols.bidVolume, &tick.BidVolume},
	} {
		raw := field(record, f.column)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return marketv1.Tick{}, err
		}
		*f.dst = &v
	}
	return tick, nil
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (c *cursor) Point() marketv1.Point {
	return c.point
}

func (c *cursor) Err() error {
	return c.err
}

func (c *cursor) Close() error {
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	return err
}
