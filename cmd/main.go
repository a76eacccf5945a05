package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mealbridge/rescue-service/internal/cache"
	"github.com/mealbridge/rescue-service/internal/cascade"
	"github.com/mealbridge/rescue-service/internal/db"
	"github.com/mealbridge/rescue-service/internal/expiry"
	"github.com/mealbridge/rescue-service/internal/geocode"
	"github.com/mealbridge/rescue-service/internal/kafka"
	"github.com/mealbridge/rescue-service/internal/logger"
	"github.com/mealbridge/rescue-service/internal/rating"
	"github.com/mealbridge/rescue-service/internal/repository/postgresql"
	"github.com/mealbridge/rescue-service/internal/server"
	"github.com/mealbridge/rescue-service/internal/workflow"
)

const outboxMaxAttempts = 5

func main() {
	log := logger.New()
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	database, err := db.NewDb(ctx)
	if err != nil {
		log.Fatal("database init failed", zap.Error(err))
	}
	defer database.GetPool().Close()

	if err := db.RunMigrations(log); err != nil {
		log.Fatal("migrations failed", zap.Error(err))
	}

	if err := db.SeedAdminActor(ctx, database, log); err != nil {
		log.Fatal("seed admin actor failed", zap.Error(err))
	}

	donationRepo := postgresql.NewDonationRepo(database)
	claimRepo := postgresql.NewClaimRepo(database)
	taskRepo := postgresql.NewTaskRepo(database)
	eventRepo := postgresql.NewPickupEventRepo(database)
	feedbackRepo := postgresql.NewFeedbackRepo(database)
	actorRepo := postgresql.NewActorRepo(database)
	outboxRepo := postgresql.NewOutboxTaskRepo(outboxMaxAttempts)

	engineCfg := workflow.Config{
		DB:        database,
		Donations: donationRepo,
		Claims:    claimRepo,
		Tasks:     taskRepo,
		Events:    eventRepo,
		Feedback:  feedbackRepo,
		Actors:    actorRepo,
		Outbox:    outboxRepo,
		Logger:    log,
	}
	if geocoderURL := os.Getenv("GEOCODER_URL"); geocoderURL != "" {
		engineCfg.Geocoder = geocode.NewClient(geocoderURL)
	}
	engine := workflow.NewEngine(engineCfg)

	aggregator := rating.NewAggregator(rating.Config{
		Feedback: feedbackRepo,
		Actors:   actorRepo,
		Logger:   log,
	})

	cascades := cascade.NewManager(cascade.Config{
		Donations: donationRepo,
		Claims:    claimRepo,
		Tasks:     taskRepo,
		Events:    eventRepo,
		Feedback:  feedbackRepo,
		Actors:    actorRepo,
		Logger:    log,
	})

	sweeperCfg := expiry.Config{
		DB:        database,
		Donations: donationRepo,
		Claims:    claimRepo,
		Outbox:    outboxRepo,
		Logger:    log,
	}
	if raw := os.Getenv("SWEEP_INTERVAL"); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatal("invalid SWEEP_INTERVAL", zap.String("value", raw), zap.Error(err))
		}
		sweeperCfg.Interval = interval
	}
	sweeper := expiry.NewSweeper(sweeperCfg)

	var producer kafka.Producer
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		producer = kafka.NewWriterProducer(strings.Split(brokers, ","))
	} else {
		log.Info("KAFKA_BROKERS not set, transition events go to the log")
		producer = kafka.NewConsoleProducer(log)
	}
	publisher := kafka.NewPublisher(database, outboxRepo, producer,
		kafka.PublisherConfig{MaxAttempts: outboxMaxAttempts}, log)

	serverCfg := server.Config{
		Addr:        ":" + envOr("HTTP_PORT", "9000"),
		Workflow:    engine,
		Moderation:  aggregator,
		Cascades:    cascades,
		Credentials: actorRepo,
		Logger:      log,
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		donationCache, err := cache.NewDonationCache(redisAddr, log)
		if err != nil {
			log.Fatal("redis init failed", zap.Error(err))
		}
		defer func() { _ = donationCache.Close() }()
		serverCfg.Cache = donationCache
	}
	srv := server.New(serverCfg)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error {
		sweeper.Run(ctx)
		return nil
	})
	g.Go(func() error {
		publisher.Run(ctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatal("service exited with error", zap.Error(err))
	}
	log.Info("service stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
