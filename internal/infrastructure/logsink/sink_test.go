package logsink

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	marketv1 "github.com/muhammadchandra19/tickbar/internal/domain/market/v1"
	"github.com/muhammadchandra19/tickbar/pkg/logger"
	"github.com/muhammadchandra19/tickbar/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSink_Consume(t *testing.T) {
	at := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	ev := marketv1.NewEvent(at, "csv", map[string]marketv1.Data{
		"eurusd":     marketv1.Tick{Time: at, Bid: util.Ptr(1.1)},
		"eurusd_m5":  marketv1.Bar{Time: at, Open: 1.1, High: 1.2, Low: 1.0, Close: 1.15, Volume: util.Ptr(3.0), NewBar: true},
		"eurusd_h1":  marketv1.Bar{Time: at, Open: 1.1, High: 1.2, Low: 1.0, Close: 1.15},
		"eurusd_rsi": marketv1.Indicator{Time: at, Value: 40},
	})

	testCases := []struct {
		name     string
		streams  []string
		assertFn func(t *testing.T, entries []map[string]any)
	}{
		{
			name: "logs every bar stream",
			assertFn: func(t *testing.T, entries []map[string]any) {
				require.Len(t, entries, 2)
				assert.Equal(t, "eurusd_h1", entries[0]["stream"])
				assert.NotContains(t, entries[0], "volume")
				assert.Equal(t, "eurusd_m5", entries[1]["stream"])
				assert.Equal(t, 3.0, entries[1]["volume"])
				assert.Equal(t, true, entries[1]["new_bar"])
				assert.Equal(t, "run-7", entries[1]["run_id"])
				assert.Equal(t, "2024-01-02T10:00:00Z", entries[1]["time"])
			},
		},
		{
			name:    "filters by stream",
			streams: []string{"eurusd_m5", "eurusd"},
			assertFn: func(t *testing.T, entries []map[string]any) {
				require.Len(t, entries, 1)
				assert.Equal(t, "eurusd_m5", entries[0]["stream"])
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bars.log")
			log, err := logger.NewLogger(logger.WithOutputPaths([]string{path}))
			require.NoError(t, err)

			ctx := util.WithRunID(context.Background(), "run-7")
			require.NoError(t, New(log, tc.streams...).Consume(ctx, []marketv1.Event{ev}))
			require.NoError(t, log.Sync())

			tc.assertFn(t, readEntries(t, path))
		})
	}
}

func readEntries(t *testing.T, path string) []map[string]any {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}
