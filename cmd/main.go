package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/weiawesome/wes-io-live/messenger-service/internal/cache"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/cassandra"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/config"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/events"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/handler"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/idcodec"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/projector"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/repository"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/service"
	"github.com/weiawesome/wes-io-live/messenger-service/pkg/log"
	"github.com/weiawesome/wes-io-live/messenger-service/pkg/pubsub"
)

func main() {
	configPath := "config"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log.Init(log.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ServiceName: "messenger-service"})
	l := log.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = log.WithLogger(ctx, l)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Storage
	var store *repository.Store
	switch cfg.Storage.Driver {
	case "memory":
		l.Warn().Msg("using in-memory storage, data is lost on exit")
		store = repository.NewMemoryStore().Store()
	case "cassandra", "":
		client, err := cassandra.NewClient(cfg.Cassandra, cassandra.WithObserver(cassandra.NewObserver(registry)))
		if err != nil {
			l.Fatal().Err(err).Msg("invalid cassandra config")
		}
		defer client.Close()

		if err := client.Connect(ctx); err != nil {
			l.Fatal().Err(err).Msg("failed to connect to cassandra")
		}
		if cfg.Cassandra.AutoMigrate {
			if err := client.EnsureSchema(ctx); err != nil {
				l.Fatal().Err(err).Msg("failed to apply cassandra schema")
			}
		}
		store = repository.NewCassandraStore(client)
	default:
		l.Fatal().Str("driver", cfg.Storage.Driver).Msg("unsupported storage driver")
	}

	opts := []service.Option{
		service.WithPagination(service.Pagination{
			DefaultLimit: cfg.Pagination.DefaultLimit,
			MaxLimit:     cfg.Pagination.MaxLimit,
			MaxPage:      cfg.Pagination.MaxPage,
		}),
	}

	// History cache
	if cfg.Cache.Enabled {
		historyCache, err := cache.NewRedisHistoryCache(cfg.Redis, cfg.Cache.Prefix)
		if err != nil {
			l.Fatal().Err(err).Msg("failed to create redis cache")
		}
		defer historyCache.Close()
		opts = append(opts, service.WithHistoryCache(historyCache, cfg.Cache.TTL))
	}

	// Event bus
	var bus pubsub.PubSub
	if cfg.Events.Enabled || cfg.Projector.Enabled {
		bus, err = pubsub.NewPubSub(cfg.PubSub)
		if err != nil {
			l.Fatal().Err(err).Str("driver", cfg.PubSub.Driver).Msg("failed to create pubsub")
		}
		defer bus.Close()
	}
	if cfg.Events.Enabled {
		opts = append(opts, service.WithPublisher(events.NewBusPublisher(bus)))
	}

	resolver := idcodec.NewResolver(store.Registry, store.Participants)
	directoryService := service.NewDirectoryService(store, resolver, opts...)
	feedService := service.NewFeedService(store, opts...)
	messageService := service.NewMessageService(store, resolver, directoryService, feedService, opts...)

	if cfg.Projector.Enabled {
		p := projector.New(bus, feedService)
		go func() {
			if err := p.Run(ctx); err != nil {
				l.Error().Err(err).Msg("feed projector exited")
			}
		}()
	}

	// Setup Gin router
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(log.GinMiddleware(l))

	handler.NewHandler(directoryService, messageService, feedService).RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		l.Info().Str("addr", addr).Str("storage", cfg.Storage.Driver).Msg("starting messenger-service")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	l.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error().Err(err).Msg("server forced to shutdown")
	}

	l.Info().Msg("server exited")
}
