package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/mealbridge/rescue-service/internal/logger"
	"github.com/mealbridge/rescue-service/internal/repository"
)

// Reference consumer for the workflow events topic. A real deployment would
// hang notification dispatch (push/email/SMS) off these events; this one just
// logs them.
func main() {
	log := logger.New()
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	brokers := strings.Split(envOr("KAFKA_BROKERS", "localhost:9092"), ",")
	groupID := envOr("KAFKA_GROUP_ID", "workflow-events-consumer")

	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        brokers,
		GroupID:        groupID,
		Topic:          repository.TopicWorkflowEvents,
		MinBytes:       10e3,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		MaxWait:        3 * time.Second,
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Error("close kafka reader failed", zap.Error(err))
		}
	}()

	log.Info("consumer connected",
		zap.Strings("brokers", brokers),
		zap.String("topic", repository.TopicWorkflowEvents),
		zap.String("group_id", groupID))

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("consumer stopping")
				return
			}
			log.Error("read message failed", zap.Error(err))
			time.Sleep(5 * time.Second)
			continue
		}

		var event repository.TransitionEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			log.Warn("skipping malformed event",
				zap.Int64("offset", m.Offset), zap.Error(err))
			continue
		}

		log.Info("transition",
			zap.String("entity_type", event.EntityType),
			zap.String("entity_id", event.EntityID),
			zap.String("old_status", event.OldStatus),
			zap.String("new_status", event.NewStatus),
			zap.Time("at", event.Timestamp),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset))
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
