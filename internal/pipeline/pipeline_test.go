package pipeline

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	marketv1 "github.com/muhammadchandra19/tickbar/internal/domain/market/v1"
	kafkabar "github.com/muhammadchandra19/tickbar/internal/infrastructure/kafka/bar"
	"github.com/muhammadchandra19/tickbar/internal/infrastructure/kafka/bar/mock"
	"github.com/muhammadchandra19/tickbar/internal/infrastructure/memory"
	parquetbar "github.com/muhammadchandra19/tickbar/internal/infrastructure/parquet/bar"
	"github.com/muhammadchandra19/tickbar/internal/resampler"
	"github.com/muhammadchandra19/tickbar/internal/stage"
	"github.com/muhammadchandra19/tickbar/pkg/errors"
	"github.com/muhammadchandra19/tickbar/pkg/util"
	"github.com/parquet-go/parquet-go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var open = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

// ticks returns n quotes 20 seconds apart with a rising mid price.
func ticks(n int) []marketv1.Point {
	out := make([]marketv1.Point, 0, n)
	for i := 0; i < n; i++ {
		p := 1.1 + float64(i)/1000
		out = append(out, marketv1.Tick{
			Time: open.Add(time.Duration(i) * 20 * time.Second),
			Bid:  util.Ptr(p),
			Ask:  util.Ptr(p + 0.0002),
		})
	}
	return out
}

func newStore(t *testing.T, points []marketv1.Point) map[string]*memory.Store {
	t.Helper()
	store, err := memory.NewStore("eurusd", points)
	require.NoError(t, err)
	return map[string]*memory.Store{"eurusd": store}
}

func runWithTimeout(t *testing.T, p *Pipeline) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.Run(ctx)
}

func TestPipeline_Run(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var (
		mu   sync.Mutex
		sent []kafka.Message
	)
	writer := mock.NewMockMessageWriter(ctrl)
	writer.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msgs ...kafka.Message) error {
			mu.Lock()
			defer mu.Unlock()
			sent = append(sent, msgs...)
			return nil
		}).AnyTimes()
	writer.EXPECT().Close().Return(nil).Times(1)

	var topics []string
	path := filepath.Join(t.TempDir(), "bars.parquet")
	def := &Definition{
		Source:       SourceDefinition{Kind: SourceMemory, Name: "eurusd"},
		Subscription: stage.SubscriptionOptions{MaxDemand: 4, BufferSize: 16},
		Resamplers: []resampler.Config{
			{Data: "eurusd", Timeframe: "m1"},
			{Data: "eurusd", Timeframe: "m2"},
		},
		Sinks: []SinkDefinition{
			{Kind: SinkParquet, Streams: []string{"eurusd_m1"}, Parquet: ParquetSink{Path: path}},
			{Kind: SinkKafka, Streams: []string{"eurusd_m2"}, Kafka: KafkaSink{Topic: "eurusd-bars"}},
			{Kind: SinkLog},
		},
	}

	p, err := Build(def, Deps{
		Stores: newStore(t, ticks(9)),
		KafkaWriter: func(topic string) kafkabar.MessageWriter {
			topics = append(topics, topic)
			return writer
		},
	})
	require.NoError(t, err)
	require.Len(t, p.Stages(), 6)
	assert.Equal(t, []string{"eurusd-bars"}, topics)

	require.NoError(t, runWithTimeout(t, p))

	rows, err := parquet.ReadFile[parquetbar.Row](path)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i, row := range rows {
		assert.Equal(t, "eurusd_m1", row.Stream)
		assert.Equal(t, open.Add(time.Duration(i)*time.Minute).UnixMilli(), row.Timestamp)
		require.NotNil(t, row.Volume)
		assert.Equal(t, 3.0, *row.Volume)
	}
	assert.InDelta(t, 1.1001, rows[0].Open, 1e-9)
	assert.InDelta(t, 1.1021, rows[0].Close, 1e-9)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, sent, 2)
	var first, last kafkabar.Message
	require.NoError(t, json.Unmarshal(sent[0].Value, &first))
	require.NoError(t, json.Unmarshal(sent[1].Value, &last))
	assert.Equal(t, "eurusd_m2", string(sent[0].Key))
	assert.True(t, first.Time.Equal(open))
	assert.True(t, last.Time.Equal(open.Add(2*time.Minute)))
	assert.Equal(t, 6.0, *first.Volume)
}

func TestPipeline_RunReportsFailure(t *testing.T) {
	points := ticks(3)
	points = append(points, marketv1.Tick{Time: open.Add(time.Minute)})

	def := &Definition{
		Source:     SourceDefinition{Kind: SourceMemory, Name: "eurusd"},
		Resamplers: []resampler.Config{{Data: "eurusd", Timeframe: "m1"}},
	}
	p, err := Build(def, Deps{Stores: newStore(t, points)})
	require.NoError(t, err)
	require.Len(t, p.Stages(), 3)

	err = runWithTimeout(t, p)
	assert.True(t, errors.ErrorCodeEquals(err, errors.DataContractMissingPrice))
	assert.True(t, errors.IsCategory(err, errors.CategoryDataContract))
}

func TestPipeline_FailureLeavesOpenBarsUnpublished(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	writer := mock.NewMockMessageWriter(ctrl)
	writer.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).Times(0)
	writer.EXPECT().Close().Return(nil).Times(1)

	// the first two quotes open an m5 bar, the third has no price
	points := []marketv1.Point{
		marketv1.Tick{Time: open, Bid: util.Ptr(1.1), Ask: util.Ptr(1.1002)},
		marketv1.Tick{Time: open.Add(time.Second), Bid: util.Ptr(1.2), Ask: util.Ptr(1.2002)},
		marketv1.Tick{Time: open.Add(2 * time.Second)},
	}
	def := &Definition{
		Source:       SourceDefinition{Kind: SourceMemory, Name: "eurusd"},
		Subscription: stage.SubscriptionOptions{MaxDemand: 2},
		Resamplers:   []resampler.Config{{Data: "eurusd", Timeframe: "m5"}},
		Sinks:        []SinkDefinition{{Kind: SinkKafka}},
	}
	p, err := Build(def, Deps{
		Stores:      newStore(t, points),
		KafkaWriter: func(string) kafkabar.MessageWriter { return writer },
	})
	require.NoError(t, err)

	err = runWithTimeout(t, p)
	assert.True(t, errors.ErrorCodeEquals(err, errors.DataContractMissingPrice))
}

func TestBuild_MissingDependencies(t *testing.T) {
	testCases := []struct {
		name  string
		def   *Definition
		field string
	}{
		{
			name:  "memory store",
			def:   &Definition{Source: SourceDefinition{Kind: SourceMemory, Name: "gbpusd"}},
			field: "source.name",
		},
		{
			name:  "questdb client for the source",
			def:   &Definition{Source: SourceDefinition{Kind: SourceQuestDB, Name: "eurusd", QuestDB: QuestDBSource{Symbol: "EURUSD"}}},
			field: "source.questdb",
		},
		{
			name: "questdb client for a sink",
			def: &Definition{
				Source: SourceDefinition{Kind: SourceMemory, Name: "eurusd"},
				Sinks:  []SinkDefinition{{Kind: SinkQuestDB}},
			},
			field: "sinks.questdb",
		},
		{
			name: "kafka writer",
			def: &Definition{
				Source: SourceDefinition{Kind: SourceMemory, Name: "eurusd"},
				Sinks:  []SinkDefinition{{Kind: SinkKafka}},
			},
			field: "sinks.kafka",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build(tc.def, Deps{Stores: newStore(t, ticks(1))})
			require.Error(t, err)
			assert.True(t, errors.ErrorCodeEquals(err, errors.ConfigMissingOption))
			assert.Equal(t, tc.field, asDetails(t, err).Field)
		})
	}
}

func TestBuild_ClosesBuiltSinksOnFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	writer := mock.NewMockMessageWriter(ctrl)
	writer.EXPECT().Close().Return(nil).Times(1)

	def := &Definition{
		Source: SourceDefinition{Kind: SourceMemory, Name: "eurusd"},
		Sinks:  []SinkDefinition{{Kind: SinkKafka}, {Kind: SinkQuestDB}},
	}
	_, err := Build(def, Deps{
		Stores:      newStore(t, ticks(1)),
		KafkaWriter: func(string) kafkabar.MessageWriter { return writer },
	})
	assert.True(t, errors.ErrorCodeEquals(err, errors.ConfigMissingOption))
}

func asDetails(t *testing.T, err error) *errors.ErrorDetails {
	t.Helper()
	var details *errors.ErrorDetails
	require.ErrorAs(t, err, &details)
	return details
}
