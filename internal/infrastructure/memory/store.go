// Package memory holds point collections in process memory.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/muhammadchandra19/tickbar/internal/datasource"
	marketv1 "github.com/muhammadchandra19/tickbar/internal/domain/market/v1"
	"github.com/muhammadchandra19/tickbar/pkg/errors"
)

// Store is an immutable, time ordered collection of points. Any number of
// cursors may read it at once. Close is exclusive and fails while one is open.
type Store struct {
	name   string
	points []marketv1.Point

	mu     sync.RWMutex
	closed bool
}

var _ datasource.DataSource = (*Store)(nil)

// NewStore copies points into a new store. The points must be ordered by time.
func NewStore(name string, points []marketv1.Point) (*Store, error) {
	copied := make([]marketv1.Point, len(points))
	for i, p := range points {
		if i > 0 && p.Timestamp().Before(points[i-1].Timestamp()) {
			return nil, errors.NewDataContractError(
				errors.DataContractUnordered, name,
				fmt.Sprintf("point %d is earlier than point %d", i, i-1),
			)
		}
		copied[i] = clonePoint(p)
	}
	return &Store{name: name, points: copied}, nil
}

// Name returns the store name.
func (s *Store) Name() string {
	return s.name
}

// Len returns the number of points held.
func (s *Store) Len() int {
	return len(s.points)
}

// Produce opens a cursor over the whole store. The cursor holds a shared
// lock on the store until it is closed.
func (s *Store) Produce(_ context.Context) (datasource.Cursor, error) {
	if !s.mu.TryRLock() {
		return nil, errors.NewStateError(errors.StoreClosed, fmt.Sprintf("store %q is closing", s.name))
	}
	if s.closed {
		s.mu.RUnlock()
		return nil, errors.NewStateError(errors.StoreClosed, fmt.Sprintf("store %q is closed", s.name))
	}
	return &cursor{store: s, pos: -1}, nil
}

// Close releases the points. It fails with store_busy while a cursor is open.
func (s *Store) Close() error {
	if !s.mu.TryLock() {
		return errors.NewStateError(errors.StoreBusy, fmt.Sprintf("store %q has active readers", s.name))
	}
	defer s.mu.Unlock()
	s.closed = true
	s.points = nil
	return nil
}

type cursor struct {
	store *Store
	pos   int
	once  sync.Once
	done  bool
}

func (c *cursor) Next() bool {
	if c.done {
		return false
	}
	c.pos++
	if c.pos >= len(c.store.points) {
		c.done = true
		return false
	}
	return true
}

func (c *cursor) Point() marketv1.Point {
	if c.done || c.pos < 0 {
		return nil
	}
	return clonePoint(c.store.points[c.pos])
}

func (c *cursor) Err() error {
	return nil
}

func (c *cursor) Close() error {
	c.once.Do(func() {
		c.done = true
		c.store.mu.RUnlock()
	})
	return nil
}

func clonePoint(p marketv1.Point) marketv1.Point {
	switch v := p.(type) {
	case marketv1.Tick:
		return v.Clone()
	case marketv1.Bar:
		return v.Clone()
	default:
		return p
	}
}
