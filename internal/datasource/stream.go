// Package datasource adapts finite point collections into pipeline sources.
package datasource

import (
	"context"
	"fmt"
	"io"
	"time"

	marketv1 "github.com/muhammadchandra19/tickbar/internal/domain/market/v1"
	"github.com/muhammadchandra19/tickbar/pkg/errors"
)

// Stream turns a DataSource into a stage.Source. Each point is emitted as an
// event holding that point under the data source name.
type Stream struct {
	ds     DataSource
	cursor Cursor
	last   time.Time
	count  int
	done   bool
}

// NewStream creates a Stream. The data source is not read until the first call to Next.
func NewStream(ds DataSource) *Stream {
	return &Stream{ds: ds}
}

// Next returns the next event, or io.EOF once the cursor is exhausted.
func (s *Stream) Next(ctx context.Context) (marketv1.Event, error) {
	if s.done {
		return marketv1.Event{}, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return marketv1.Event{}, err
	}

	if s.cursor == nil {
		cursor, err := s.ds.Produce(ctx)
		if err != nil {
			s.done = true
			return marketv1.Event{}, s.wrap(err)
		}
		s.cursor = cursor
	}

	if !s.cursor.Next() {
		err := s.cursor.Err()
		s.done = true
		if closeErr := s.close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return marketv1.Event{}, s.wrap(err)
		}
		return marketv1.Event{}, io.EOF
	}

	point := s.cursor.Point()
	at := point.Timestamp()
	if s.count > 0 && at.Before(s.last) {
		s.done = true
		_ = s.close()
		return marketv1.Event{}, errors.NewDataContractError(
			errors.DataContractUnordered, s.ds.Name(),
			fmt.Sprintf("point %d at %s is earlier than %s", s.count, at.Format(time.RFC3339Nano), s.last.Format(time.RFC3339Nano)),
		)
	}
	s.last = at
	s.count++

	name := s.ds.Name()
	return marketv1.NewEvent(at, name, map[string]marketv1.Data{name: point}), nil
}

// Close releases the cursor if it is still open.
func (s *Stream) Close() error {
	s.done = true
	return s.close()
}

func (s *Stream) close() error {
	if s.cursor == nil {
		return nil
	}
	cursor := s.cursor
	s.cursor = nil
	return cursor.Close()
}

func (s *Stream) wrap(err error) error {
	if errors.CategoryOf(err) != errors.CategoryUnknown {
		return err
	}
	return errors.NewTransportError(errors.TransportSourceFailure, err, fmt.Sprintf("data source %q failed", s.ds.Name()))
}
