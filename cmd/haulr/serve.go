package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"haulr/internal/config"
	httptransport "haulr/internal/http"
	"haulr/internal/infra"
	"haulr/internal/logger"
	"haulr/internal/modules/delivery"
	"haulr/internal/modules/driver"
	"haulr/internal/modules/location"
	"haulr/internal/modules/matching"
	"haulr/internal/modules/notification"
	"haulr/internal/modules/payout"
	"haulr/internal/modules/pricing"
	"haulr/internal/modules/realtime"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the notification workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log, err := logger.New("haulr", cfg.Log.Level)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	if cfg.Firebase.ProjectID == "" {
		return errors.New("firebase.project_id is required (HAULR_FIREBASE_PROJECT_ID)")
	}
	app, err := infra.NewFirebaseApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile, cfg.Firebase.DatabaseURL)
	if err != nil {
		return err
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, app)
	if err != nil {
		return err
	}

	db, err := infra.NewDB(ctx, cfg.DB.DSN, cfg.DB.MaxConns)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	var events realtime.Publisher = realtime.Nop{}
	var eventQueue *realtime.Queue
	if cfg.Rabbit.URL != "" {
		rabbit, err := infra.NewRabbit(cfg.Rabbit.URL, cfg.Rabbit.Exchange)
		if err != nil {
			return err
		}
		defer rabbit.Close()
		eventQueue = realtime.NewQueue(realtime.NewRabbitPublisher(rabbit.Channel, cfg.Rabbit.Exchange), cfg.Rabbit.QueueSize, log)
		events = eventQueue
	} else {
		log.Warn("rabbit.url not set, delivery events are not published")
	}

	var billing delivery.PayoutPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		w := infra.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.PayoutTopic)
		defer w.Close()
		billing = payout.NewPublisher(w)
	} else {
		log.Warn("kafka.brokers not set, payouts are recorded but not streamed")
	}

	inbox := notification.NewStore(db)
	gateways := []notification.Gateway{inbox}
	if cfg.Firebase.DatabaseURL != "" {
		push, err := notification.NewFirebasePushGateway(ctx, app, log)
		if err != nil {
			return err
		}
		gateways = append(gateways, push)
	}
	dispatcher := notification.NewDispatcher(cfg.Notification.QueueSize, cfg.Notification.Workers, log, gateways...)

	driverStore := driver.NewStore(db)
	positions := location.NewStore(redisClient)
	driverSvc := driver.NewService(driverStore, positions, log)

	engine := matching.NewEngine(matching.NewScorer(nil, cfg.Matching.TrafficFactor), cfg.Matching.Workers)
	matchingSvc := matching.NewService(engine, driverStore, positions, matching.NewStore(redisClient), log).
		WithSearchRadius(cfg.Matching.RadiusKm)

	deliverySvc := delivery.NewService(delivery.Deps{
		Store:      delivery.NewStore(db),
		Drivers:    driverStore,
		Tx:         infra.NewTxManager(db),
		Matcher:    matchingSvc,
		Engine:     engine,
		Pricing:    pricing.NewService(pricing.NewStore(db)),
		Notifier:   dispatcher,
		Events:     events,
		Billing:    billing,
		Log:        log,
		OfferCount: cfg.Matching.OfferCount,
	})

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Deliveries:    deliverySvc,
		Matching:      matchingSvc,
		Drivers:       driverSvc,
		Notifications: inbox,
		Verifier:      verifier,
		Log:           log,
	})
	server := httptransport.NewServer(cfg.HTTP.Addr, router, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dispatcher.Run(gctx)
		return nil
	})
	if eventQueue != nil {
		g.Go(func() error {
			eventQueue.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		return server.Run(gctx)
	})
	return g.Wait()
}
