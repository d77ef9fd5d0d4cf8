package datasource

import (
	"context"

	marketv1 "github.com/muhammadchandra19/tickbar/internal/domain/market/v1"
)

//go:generate mockgen -source=interface.go -destination=mock/interface_mock.go -package=mock

// DataSource is a named, finite collection of time ordered points.
type DataSource interface {
	Name() string
	Produce(ctx context.Context) (Cursor, error)
}

// Cursor walks the points of a DataSource once, in non-decreasing time order.
// The usage follows pgx.Rows: call Next until it returns false, then check Err.
type Cursor interface {
	Next() bool
	Point() marketv1.Point
	Err() error
	Close() error
}
