//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/river-gauge-etl/internal/adapter/kafka"
	"github.com/couchcryptid/river-gauge-etl/internal/adapter/reportfs"
	"github.com/couchcryptid/river-gauge-etl/internal/adapter/store"
	"github.com/couchcryptid/river-gauge-etl/internal/domain"
	"github.com/couchcryptid/river-gauge-etl/internal/observability"
	"github.com/couchcryptid/river-gauge-etl/internal/pipeline"
)

const testSinkTopic = "test-normalized-readings"

// publishedMessage holds a deserialized message read from the sink topic.
type publishedMessage struct {
	Record  domain.NormalizedRecord
	Key     string
	Headers map[string]string
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var rec domain.NormalizedRecord
	require.NoError(t, json.Unmarshal(msg.Value, &rec), "unmarshal sink message")

	return publishedMessage{Record: rec, Key: string(msg.Key), Headers: headers}
}

// TestPipelineEndToEnd wires inbox → normalizer → sqlite store → Kafka and
// verifies a sample report is loaded, published and archived exactly once.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	dir := t.TempDir()
	inboxDir := filepath.Join(dir, "json")
	archiveDir := filepath.Join(dir, "archive")
	stageFixture(t, inboxDir)

	st, err := store.Open(ctx, store.Options{
		Driver:    "sqlite",
		DSN:       filepath.Join(dir, "flood_db.sqlite"),
		Table:     "incidents_report",
		BatchSize: 2,
	}, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	basins, err := domain.LoadBasinMap(filepath.Join(fixtureDir, "river_basins.json"))
	require.NoError(t, err)
	colombo, err := time.LoadLocation("Asia/Colombo")
	require.NoError(t, err)
	opts := domain.DefaultOptions()
	opts.Location = colombo
	normalizer := domain.NewNormalizer(domain.NewGeoMapper(basins, nil), opts)

	writer := kafka.NewWriter([]string{broker}, testSinkTopic, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	inbox := reportfs.NewInbox(inboxDir, archiveDir, filepath.Join(dir, "rejected"), discardLogger())
	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(inbox, pipeline.NewTransformer(normalizer, discardLogger()), st, st, writer, discardLogger(), metrics)

	sum, err := p.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, pipeline.Summary{Loaded: 1, Records: 5}, sum)

	// Store contents.
	records, err := st.Records(ctx, store.RecordFilter{ReportDate: "20240529"})
	require.NoError(t, err)
	require.Len(t, records, 5)
	for _, rec := range records {
		assert.Equal(t, "20240529110000", rec.ReportTimestamp)
	}

	// Inbox drained, report archived.
	pending, err := inbox.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.FileExists(t, filepath.Join(archiveDir, "water_level_1716960600.json"))

	// Published messages.
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	byStation := make(map[string]publishedMessage, 5)
	for len(byStation) < 5 {
		pm := readPublished(ctx, t, consumer)
		byStation[pm.Key] = pm
	}

	kelani := byStation["Nagalagam Street"]
	assert.Equal(t, "20240529110000", kelani.Headers["report_timestamp"])
	assert.Equal(t, "1716960600", kelani.Headers["report_epoch"])
	assert.Equal(t, "rising", kelani.Headers["water_level_change_tag"])
	require.NotNil(t, kelani.Record.LastHourReportedWaterLevel)
	assert.Equal(t, 3.5, *kelani.Record.LastHourReportedWaterLevel)

	yaka := byStation["Yaka Wewa"]
	assert.Equal(t, "Mukunu Oya", yaka.Record.River)
	require.NotNil(t, yaka.Record.RiverBasin)
	assert.Equal(t, "Mi Oya", *yaka.Record.RiverBasin)

	// Re-delivering the same report is skipped, not duplicated.
	stageFixture(t, inboxDir)
	sum, err = p.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, pipeline.Summary{Skipped: 1}, sum)

	records, err = st.Records(ctx, store.RecordFilter{})
	require.NoError(t, err)
	assert.Len(t, records, 5)

	runs, err := st.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	statuses := []domain.RunStatus{runs[0].Status, runs[1].Status}
	assert.ElementsMatch(t, []domain.RunStatus{domain.RunLoaded, domain.RunSkipped}, statuses)
}
