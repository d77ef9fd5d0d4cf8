// Package tick reads recorded quotes from QuestDB.
package tick

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/muhammadchandra19/tickbar/internal/datasource"
	marketv1 "github.com/muhammadchandra19/tickbar/internal/domain/market/v1"
	"github.com/muhammadchandra19/tickbar/pkg/errors"
	"github.com/muhammadchandra19/tickbar/pkg/questdb"
)

// Filter selects the quotes of one symbol, optionally within [From, To).
type Filter struct {
	Symbol string     `yaml:"symbol"`
	From   *time.Time `yaml:"from"`
	To     *time.Time `yaml:"to"`
}

// Source is a datasource.DataSource over the quotes table.
type Source struct {
	client   questdb.QuestDBClient
	name     string
	filter   Filter
	location *time.Location
}

var _ datasource.DataSource = (*Source)(nil)

// NewSource creates a Source emitting ticks under name. Timestamps are
// converted to loc, or UTC when loc is nil.
func NewSource(client questdb.QuestDBClient, name string, filter Filter, loc *time.Location) (*Source, error) {
	errs := errors.NewBaseError()
	if name == "" {
		errs.AddErrorDetails(errors.NewConfigError(errors.ConfigMissingOption, "name", "tick source name is required"))
	}
	if filter.Symbol == "" {
		errs.AddErrorDetails(errors.NewConfigError(errors.ConfigMissingOption, "symbol", "symbol is required"))
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		errs.AddErrorDetails(errors.NewConfigError(errors.ConfigInvalidOption, "to", "to must be after from"))
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	if loc == nil {
		loc = time.UTC
	}
	return &Source{client: client, name: name, filter: filter, location: loc}, nil
}

// Name returns the stream name of the ticks.
func (s *Source) Name() string {
	return s.name
}

func (s *Source) query() (string, []any) {
	var query strings.Builder
	query.WriteString("SELECT timestamp, ask, bid, ask_volume, bid_volume FROM quotes WHERE symbol = $1")
	args := []any{s.filter.Symbol}

	if s.filter.From != nil {
		args = append(args, *s.filter.From)
		fmt.Fprintf(&query, " AND timestamp >= $%d", len(args))
	}
	if s.filter.To != nil {
		args = append(args, *s.filter.To)
		fmt.Fprintf(&query, " AND timestamp < $%d", len(args))
	}
	query.WriteString(" ORDER BY timestamp")
	return query.String(), args
}

// Produce runs the quote query. Rows are streamed as the cursor advances.
func (s *Source) Produce(ctx context.Context) (datasource.Cursor, error) {
	query, args := s.query()
	rows, err := s.client.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.NewTransportError(errors.TransportSourceFailure, err, fmt.Sprintf("query quotes of %s", s.filter.Symbol))
	}
	return &cursor{rows: rows, location: s.location}, nil
}

type cursor struct {
	rows     questdb.RowsInterface
	location *time.Location
	point    marketv1.Tick
	err      error
	closed   bool
}

func (c *cursor) Next() bool {
	if c.err != nil || c.closed || !c.rows.Next() {
		return false
	}

	var tick marketv1.Tick
	if err := c.rows.Scan(&tick.Time, &tick.Ask, &tick.Bid, &tick.AskVolume, &tick.BidVolume); err != nil {
		c.err = errors.NewTransportError(errors.TransportSourceFailure, err, "scan quote")
		return false
	}
	tick.Time = tick.Time.In(c.location)
	c.point = tick
	return true
}

func (c *cursor) Point() marketv1.Point {
	return c.point
}

func (c *cursor) Err() error {
	if c.err != nil {
		return c.err
	}
	if err := c.rows.Err(); err != nil {
		return errors.NewTransportError(errors.TransportSourceFailure, err, "read quotes")
	}
	return nil
}

func (c *cursor) Close() error {
	if !c.closed {
		c.closed = true
		c.rows.Close()
	}
	return nil
}
