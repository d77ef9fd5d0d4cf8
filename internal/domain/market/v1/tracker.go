package marketv1

import (
	"sort"

	"github.com/muhammadchandra19/tickbar/pkg/util"
)

// BarTracker turns the stream of bar emissions of a resampler into the
// sequence of completed bars. A bar is complete once the next emission opens
// a new bar, or when the stream ends. Completed bars keep the flags of their
// opening emission.
type BarTracker struct {
	current *Bar
}

// Observe records an emission and returns the bar it closed, if any.
func (t *BarTracker) Observe(bar Bar) (Bar, bool) {
	if bar.NewBar || t.current == nil {
		closed, ok := t.Flush()
		opened := bar.Clone()
		t.current = &opened
		return closed, ok
	}

	t.current.High = bar.High
	t.current.Low = bar.Low
	t.current.Close = bar.Close
	t.current.Volume = util.CopyPtr(bar.Volume)
	return Bar{}, false
}

// Flush returns the bar still open, if any, and resets the tracker.
func (t *BarTracker) Flush() (Bar, bool) {
	if t.current == nil {
		return Bar{}, false
	}
	closed := *t.current
	t.current = nil
	return closed, true
}

// ClosedBar is a completed bar together with the stream it belongs to.
type ClosedBar struct {
	Stream string
	Bar    Bar
}

// BarCollector tracks every bar stream found in a sequence of events. When
// streams are given, only those are tracked.
type BarCollector struct {
	only     map[string]bool
	trackers map[string]*BarTracker
	order    []string
}

// NewBarCollector creates a collector for the given streams, or for every
// bar stream when none are given.
func NewBarCollector(streams ...string) *BarCollector {
	c := &BarCollector{trackers: make(map[string]*BarTracker)}
	if len(streams) > 0 {
		c.only = make(map[string]bool, len(streams))
		for _, s := range streams {
			c.only[s] = true
		}
	}
	return c
}

// Collect observes the bars of ev and returns the bars they closed. A
// configured stream missing from ev is a data contract error, and leaves
// every tracker untouched.
func (c *BarCollector) Collect(ev Event) ([]ClosedBar, error) {
	var closed []ClosedBar

	if c.only != nil {
		names := c.streamNames()
		bars := make([]Bar, len(names))
		for i, name := range names {
			bar, err := ev.Bar(name)
			if err != nil {
				return nil, err
			}
			bars[i] = bar
		}
		for i, name := range names {
			if b, ok := c.tracker(name).Observe(bars[i]); ok {
				closed = append(closed, ClosedBar{Stream: name, Bar: b})
			}
		}
		return closed, nil
	}

	for _, name := range ev.Names() {
		d, _ := ev.Get(name)
		bar, ok := d.(Bar)
		if !ok {
			continue
		}
		if b, ok := c.tracker(name).Observe(bar); ok {
			closed = append(closed, ClosedBar{Stream: name, Bar: b})
		}
	}
	return closed, nil
}

// Flush returns the bars still open, in the order their streams were first seen.
func (c *BarCollector) Flush() []ClosedBar {
	var closed []ClosedBar
	for _, name := range c.order {
		if b, ok := c.trackers[name].Flush(); ok {
			closed = append(closed, ClosedBar{Stream: name, Bar: b})
		}
	}
	return closed
}

func (c *BarCollector) streamNames() []string {
	names := make([]string, 0, len(c.only))
	for name := range c.only {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *BarCollector) tracker(name string) *BarTracker {
	t, ok := c.trackers[name]
	if !ok {
		t = &BarTracker{}
		c.trackers[name] = t
		c.order = append(c.order, name)
	}
	return t
}
