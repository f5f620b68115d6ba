//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/catchment-etl/internal/adapter/filesystem"
	"github.com/couchcryptid/catchment-etl/internal/adapter/hydromodel"
	"github.com/couchcryptid/catchment-etl/internal/adapter/kafka"
	"github.com/couchcryptid/catchment-etl/internal/config"
	"github.com/couchcryptid/catchment-etl/internal/domain"
	"github.com/couchcryptid/catchment-etl/internal/observability"
	"github.com/couchcryptid/catchment-etl/internal/pipeline"
)

const testSinkTopic = "test-catchment-simulations"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("catchment-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// writeWaterYear writes one catchment file covering the default window plus a margin.
func writeWaterYear(t *testing.T, dir, name string) {
	t.Helper()
	var b strings.Builder
	b.WriteString("date,total_precipitation_sum,potential_evaporation_sum,streamflow,temperature_2m_mean\n")
	start := time.Date(2002, time.September, 25, 0, 0, 0, 0, time.UTC)
	for i := range 380 {
		d := start.AddDate(0, 0, i)
		q := fmt.Sprintf("%.2f", 0.5+float64(i%7)/10)
		if i%50 == 0 {
			q = ""
		}
		fmt.Fprintf(&b, "%s,%.2f,%.2f,%s,%.1f\n", d.Format(domain.DateLayout), float64(i%5), 1.1, q, 6+float64(i%20)/2)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(b.String()), 0o600))
}

// TestPipelineToKafka runs the batch pipeline over a data directory and reads
// every daily result back from the sink topic.
func TestPipelineToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	dataDir := t.TempDir()
	writeWaterYear(t, dataDir, "camelsgb_33024.csv")

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaSinkTopic: testSinkTopic}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	src, err := filesystem.NewSource(dataDir, "*.csv")
	require.NoError(t, err)
	normalizer, err := domain.NewNormalizer(dataDir)
	require.NoError(t, err)
	execs, err := hydromodel.Executors([]string{"hymod"})
	require.NoError(t, err)

	tfm := pipeline.NewTransformer(normalizer, execs, hydromodel.Params, 3, discardLogger())
	p := pipeline.New(src, tfm, writer, discardLogger(), observability.NewMetricsForTesting(), 1)
	require.NoError(t, p.Run(ctx))
	assert.Equal(t, []string{"camelsgb_33024"}, p.Processed())

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     testSinkTopic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()

	var results []domain.DailyResult
	for len(results) < 365 {
		msg, err := consumer.ReadMessage(readCtx)
		require.NoError(t, err, "read from sink topic")

		var r domain.DailyResult
		require.NoError(t, json.Unmarshal(msg.Value, &r), "unmarshal sink message")
		assert.Equal(t, kafka.MessageKey(r), string(msg.Key))
		results = append(results, r)
	}

	assert.Equal(t, "HyMod", results[0].Model)
	assert.Equal(t, "Oct-01-02", results[0].DisplayDate)
	assert.Equal(t, "Sep-30-03", results[364].DisplayDate)
}
