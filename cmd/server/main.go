package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Chandu6562/chat-application/internal/broker/kafka"
	"github.com/Chandu6562/chat-application/internal/chat"
	"github.com/Chandu6562/chat-application/internal/config"
	"github.com/Chandu6562/chat-application/internal/database"
	"github.com/Chandu6562/chat-application/internal/livedoc"
	"github.com/Chandu6562/chat-application/internal/obs"
	"github.com/Chandu6562/chat-application/internal/repository"
	"github.com/Chandu6562/chat-application/internal/repository/memory"
	mongorepo "github.com/Chandu6562/chat-application/internal/repository/mongo"
	postgresrepo "github.com/Chandu6562/chat-application/internal/repository/postgres"
	redisfeed "github.com/Chandu6562/chat-application/internal/repository/redis"
	"github.com/Chandu6562/chat-application/internal/service"
	"github.com/Chandu6562/chat-application/internal/storage/s3"
	"github.com/Chandu6562/chat-application/internal/transport/http/handlers"
	"github.com/Chandu6562/chat-application/internal/transport/http/middleware"
	"github.com/Chandu6562/chat-application/internal/transport/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := obs.NewLogger(cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := obs.NewMetrics(registry)

	// Stores
	users, conversations, closeStore, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// Change feed
	var feed repository.ChangeFeed = livedoc.NewLocalFeed()
	if cfg.RedisURL != "" {
		rf, err := redisfeed.NewFeed(ctx, cfg.RedisURL, logger)
		if err != nil {
			return err
		}
		defer rf.Close()
		feed = rf
		logger.Info("using redis change feed")
	}

	docs := livedoc.New(conversations, feed, logger, metrics)

	// Journal
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, sarama.NewConfig())
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		defer producer.Close()
		journal := kafka.NewJournal(producer, cfg.KafkaTopic, logger)
		defer journal.Close()
		docs.SetJournal(journal)
		logger.Info("journaling conversation changes", "topic", cfg.KafkaTopic)
	}

	// Avatars
	var avatars service.AvatarStore = s3.NoopUploader{}
	if cfg.S3Endpoint != "" && cfg.S3Bucket != "" {
		client, err := s3.NewClient(s3.Options{
			Endpoint:       cfg.S3Endpoint,
			PublicEndpoint: cfg.S3PublicEndpoint,
			AccessKey:      cfg.S3AccessKey,
			SecretKey:      cfg.S3SecretKey,
			Bucket:         cfg.S3Bucket,
			UseSSL:         cfg.S3UseSSL,
		}, logger)
		if err != nil {
			return err
		}
		avatars = client
	}

	// Services
	authService := service.NewAuthService(users, cfg.JWTSecret, logger)
	userService := service.NewUserService(users, avatars, logger)
	convService := service.NewConversationService(docs, service.NewClock(nil), logger, metrics)

	// WebSocket
	hub := ws.NewHub(convService, docs, userService, logger, metrics, ws.Config{
		EventsPerSecond: cfg.WSEventsPerSecond,
		Burst:           cfg.WSEventBurst,
		Session:         chat.Options{ReceiptTimeout: cfg.ReadReceiptTimeout},
	})
	go hub.Run(ctx)
	notifier := ws.NewHubNotifier(hub)
	authService.SetNotifier(notifier)
	userService.SetNotifier(notifier)

	// Routes
	routes := handlers.Routes{
		Auth:          handlers.NewAuthHandler(authService, logger),
		Users:         handlers.NewUserHandler(userService, logger),
		Conversations: handlers.NewConversationHandler(convService, userService, logger),
		JWTSecret:     cfg.JWTSecret,
		WebSocket:     ws.ServeWS(hub, cfg.JWTSecret),
		Metrics:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	handler := middleware.RequestID(middleware.Logging(logger)(middleware.CORS(routes.Mux())))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", srv.Addr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStores connects the configured backend and returns its repositories
// with a matching close function.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.UserRepository, repository.ConversationRepository, func(), error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
	defer cancel()

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := database.Connect(connectCtx, cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := database.Migrate(connectCtx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		logger.Info("connected to postgres")
		return postgresrepo.NewUserRepo(pool), postgresrepo.NewConversationRepo(pool), pool.Close, nil

	case config.DriverMongo:
		client, err := mongorepo.New(connectCtx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := client.EnsureIndexes(connectCtx); err != nil {
			client.Close(context.Background())
			return nil, nil, nil, err
		}
		logger.Info("connected to mongo", "database", cfg.MongoDB)
		closeFn := func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			client.Close(closeCtx)
		}
		return mongorepo.NewUserRepo(client), mongorepo.NewConversationRepo(client), closeFn, nil

	default:
		logger.Warn("using in-memory store, data is lost on restart")
		return memory.NewUserRepo(), memory.NewConversationRepo(), func() {}, nil
	}
}
