// Worker consumes usage events from Kafka, writes them to ClickHouse, and
// maintains per-org throughput aggregates. Optionally mirrors events to Loki.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"netra-apex/backend/internal/analytics"
	analyticsdomain "netra-apex/backend/internal/analytics/domain"
	"netra-apex/backend/internal/analytics/store"
	"netra-apex/backend/internal/config"
	"netra-apex/backend/internal/telemetry/loki"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config", zap.Error(err))
	}

	log, err := newLogger(cfg.Env)
	if err != nil {
		zap.NewExample().Fatal("logger", zap.Error(err))
	}
	defer log.Sync()

	brokers := cfg.UsageKafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("KAFKA_BROKERS is required for the analytics worker")
	}

	groupID := cfg.KafkaGroupID
	if groupID == "" {
		groupID = "netra-analytics-worker"
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          cfg.UsageKafkaTopic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var ch *store.Store
	if cfg.ClickHouseAddr != "" {
		ch, err = store.Open(ctx, cfg.ClickHouseAddr, cfg.ClickHouseDatabase, log)
		if err != nil {
			log.Fatal("clickhouse", zap.Error(err))
		}
		defer ch.Close()
	} else {
		log.Warn("CLICKHOUSE_ADDR not set, analytics writes disabled")
	}

	agg := analytics.NewAggregator(time.Minute)

	log.Info("analytics worker started",
		zap.Strings("brokers", brokers),
		zap.String("topic", cfg.UsageKafkaTopic),
		zap.String("group_id", groupID))

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			log.Error("kafka read", zap.Error(err))
			continue
		}

		event, err := analytics.DecodeEvent(msg.Value)
		if err != nil {
			log.Warn("dropping undecodable usage event",
				zap.Int64("offset", msg.Offset), zap.Error(err))
			continue
		}

		if ch != nil {
			writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := ch.InsertAgentEvents(writeCtx, []analyticsdomain.AgentEventRow{analytics.EventToRow(event)}); err != nil {
				log.Error("clickhouse insert", zap.String("event_id", event.ID), zap.Error(err))
			}
			flushWindows(writeCtx, ch, agg.Add(event), log)
			cancel()
		} else {
			agg.Add(event)
		}

		if cfg.LokiURL != "" {
			pushCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := loki.PushEventJSON(pushCtx, cfg.LokiURL, msg.Value); err != nil {
				log.Warn("loki push", zap.Error(err))
			}
			cancel()
		}
	}

	// Flush the partial window before exit so short-lived workers still report.
	if ch != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		flushWindows(flushCtx, ch, agg.Flush(), log)
		cancel()
	}
	log.Info("analytics worker stopped")
}

func flushWindows(ctx context.Context, ch *store.Store, windows []analyticsdomain.ThroughputMetrics, log *zap.Logger) {
	if len(windows) == 0 {
		return
	}
	if err := ch.InsertThroughputMetrics(ctx, windows); err != nil {
		log.Error("clickhouse throughput insert", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
