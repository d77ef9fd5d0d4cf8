package marketv1

import (
	"fmt"
	"sort"
	"time"

	"github.com/muhammadchandra19/tickbar/pkg/errors"
)

// Event is the envelope carrying named data streams through a pipeline.
// It is a value: every modification returns a new Event and leaves the
// receiver untouched.
type Event struct {
	Time   time.Time
	Source string
	data   map[string]Data
}

// NewEvent creates an Event holding a copy of data.
func NewEvent(at time.Time, source string, data map[string]Data) Event {
	copied := make(map[string]Data, len(data))
	for name, d := range data {
		copied[name] = d
	}
	return Event{Time: at, Source: source, data: copied}
}

// Get returns the stream stored under name.
func (e Event) Get(name string) (Data, bool) {
	d, ok := e.data[name]
	return d, ok
}

// With returns a copy of e where name holds d.
func (e Event) With(name string, d Data) Event {
	next := make(map[string]Data, len(e.data)+1)
	for k, v := range e.data {
		next[k] = v
	}
	next[name] = d
	return Event{Time: e.Time, Source: e.Source, data: next}
}

// Names returns the stream names held by e in sorted order.
func (e Event) Names() []string {
	names := make([]string, 0, len(e.data))
	for name := range e.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of streams held by e.
func (e Event) Len() int {
	return len(e.data)
}

// Tick returns the tick stored under name, or a data contract error when the
// stream is missing or holds another variant.
func (e Event) Tick(name string) (Tick, error) {
	d, err := e.lookup(name)
	if err != nil {
		return Tick{}, err
	}
	tick, ok := d.(Tick)
	if !ok {
		return Tick{}, wrongVariant(name, KindTick, d.Kind())
	}
	return tick, nil
}

// Bar returns the bar stored under name, or a data contract error when the
// stream is missing or holds another variant.
func (e Event) Bar(name string) (Bar, error) {
	d, err := e.lookup(name)
	if err != nil {
		return Bar{}, err
	}
	bar, ok := d.(Bar)
	if !ok {
		return Bar{}, wrongVariant(name, KindBar, d.Kind())
	}
	return bar, nil
}

func (e Event) lookup(name string) (Data, error) {
	d, ok := e.data[name]
	if !ok {
		return nil, errors.NewDataContractError(
			errors.DataContractMissingStream,
			name,
			fmt.Sprintf("stream %q is not present in event from %q", name, e.Source),
		)
	}
	return d, nil
}

func wrongVariant(name string, want, got Kind) error {
	return errors.NewDataContractError(
		errors.DataContractWrongVariant,
		name,
		fmt.Sprintf("stream %q holds a %s, expected a %s", name, got, want),
	)
}
