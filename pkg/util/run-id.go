package util

import (
	"context"

	"github.com/google/uuid"
)

type key string

const (
	runIDKey = key("x-run-id")
	stageKey = key("stage")
)

// WithRunID returns a context carrying the pipeline run id.
// A new uuid-v4 is generated when id is empty.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = NewRunID()
	}
	return context.WithValue(ctx, runIDKey, id)
}

// GetRunID returns the run id from ctx, or an empty string.
func GetRunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

// NewRunID returns a uuid-v4 string to use as run id
func NewRunID() string {
	return uuid.NewString()
}

// WithStage returns a context with the name of the stage doing the work.
func WithStage(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, stageKey, name)
}

// GetStage returns the stage name from context
// will return empty string if not present
func GetStage(ctx context.Context) string {
	name, _ := ctx.Value(stageKey).(string)
	return name
}
