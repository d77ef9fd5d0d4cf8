package timeframe

import (
	"testing"
	"time"

	"github.com/muhammadchandra19/tickbar/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name     string
		spec     string
		assertFn func(t *testing.T, tf TimeFrame, err error)
	}{
		{
			name: "success: minutes",
			spec: "m5",
			assertFn: func(t *testing.T, tf TimeFrame, err error) {
				require.NoError(t, err)
				assert.Equal(t, TimeFrame{Unit: Minute, Multiplier: 5}, tf)
				assert.True(t, tf.IsInterval())
				assert.Equal(t, time.Minute, tf.Period())
			},
		},
		{
			name: "success: ticks with multiplier",
			spec: "t100",
			assertFn: func(t *testing.T, tf TimeFrame, err error) {
				require.NoError(t, err)
				assert.Equal(t, TimeFrame{Unit: Tick, Multiplier: 100}, tf)
				assert.True(t, tf.IsTick())
			},
		},
		{
			name: "success: tick shorthand",
			spec: "t",
			assertFn: func(t *testing.T, tf TimeFrame, err error) {
				require.NoError(t, err)
				assert.Equal(t, TimeFrame{Unit: Tick, Multiplier: 1}, tf)
			},
		},
		{
			name: "success: day shorthand",
			spec: "D",
			assertFn: func(t *testing.T, tf TimeFrame, err error) {
				require.NoError(t, err)
				assert.Equal(t, TimeFrame{Unit: Day, Multiplier: 1}, tf)
				assert.True(t, tf.IsCalendar())
				assert.Zero(t, tf.Period())
			},
		},
		{
			name: "success: week and month",
			spec: "W2",
			assertFn: func(t *testing.T, tf TimeFrame, err error) {
				require.NoError(t, err)
				assert.Equal(t, TimeFrame{Unit: Week, Multiplier: 2}, tf)
				assert.Equal(t, TimeFrame{Unit: Month, Multiplier: 1}, MustParse("M"))
			},
		},
		{
			name: "error: empty",
			spec: "",
			assertFn: func(t *testing.T, _ TimeFrame, err error) {
				assert.True(t, errors.ErrorCodeEquals(err, errors.ConfigInvalidTimeframe))
			},
		},
		{
			name: "error: unknown unit",
			spec: "x5",
			assertFn: func(t *testing.T, _ TimeFrame, err error) {
				assert.True(t, errors.ErrorCodeEquals(err, errors.ConfigInvalidTimeframe))
				assert.True(t, errors.IsCategory(err, errors.CategoryConfig))
			},
		},
		{
			name: "error: units are case sensitive",
			spec: "d1",
			assertFn: func(t *testing.T, _ TimeFrame, err error) {
				assert.Error(t, err)
			},
		},
		{
			name: "error: non numeric multiplier",
			spec: "m5x",
			assertFn: func(t *testing.T, _ TimeFrame, err error) {
				assert.True(t, errors.ErrorCodeEquals(err, errors.ConfigInvalidTimeframe))
			},
		},
		{
			name: "error: signed multiplier",
			spec: "m+5",
			assertFn: func(t *testing.T, _ TimeFrame, err error) {
				assert.Error(t, err)
			},
		},
		{
			name: "error: zero multiplier",
			spec: "h0",
			assertFn: func(t *testing.T, _ TimeFrame, err error) {
				assert.True(t, errors.ErrorCodeEquals(err, errors.ConfigInvalidTimeframe))
			},
		},
		{
			name: "error: zero multiplier on shorthand unit",
			spec: "D0",
			assertFn: func(t *testing.T, _ TimeFrame, err error) {
				assert.Error(t, err)
			},
		},
		{
			name: "error: interval without multiplier",
			spec: "m",
			assertFn: func(t *testing.T, _ TimeFrame, err error) {
				assert.True(t, errors.ErrorCodeEquals(err, errors.ConfigInvalidTimeframe))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tf, err := Parse(tc.spec)
			tc.assertFn(t, tf, err)
		})
	}
}

func TestTimeFrame_String(t *testing.T) {
	assert.Equal(t, "m5", MustParse("m5").String())
	assert.Equal(t, "D1", MustParse("D").String())
	assert.Equal(t, "week", Week.String())
	assert.Equal(t, "unknown", Unit("x").String())
	assert.Panics(t, func() { MustParse("q") })
}
