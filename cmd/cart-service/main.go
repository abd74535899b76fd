package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/storefront-cart/internal/cache"
	"github.com/fjod/storefront-cart/internal/catalog"
	"github.com/fjod/storefront-cart/internal/config"
	"github.com/fjod/storefront-cart/internal/health"
	carthttp "github.com/fjod/storefront-cart/internal/http"
	"github.com/fjod/storefront-cart/internal/logger"
	"github.com/fjod/storefront-cart/internal/poller"
	"github.com/fjod/storefront-cart/internal/repository"
	"github.com/fjod/storefront-cart/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.L().Error("cart service stopped with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log := logger.L()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checker := health.NewChecker(grpchealth.NewServer(), cfg.HealthCheckInterval)

	var mongoDB *mongo.Database
	if cfg.NeedsMongo() {
		db, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return err
		}
		defer func() {
			dctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			_ = db.Client().Disconnect(dctx)
		}()
		mongoDB = db
		log.Info("connected to MongoDB", zap.String("database", cfg.MongoDBName))
	}

	repo, err := newRepository(ctx, cfg, mongoDB)
	if err != nil {
		return err
	}
	checker.Register("store", repo)

	productCatalog, closeCatalog, err := newCatalog(cfg, mongoDB, checker)
	if err != nil {
		return err
	}
	defer closeCatalog()

	var cartCache cache.CartCache = cache.Noop{}
	if cfg.CacheEnabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		redisCache := cache.NewRedisCache(redisClient)
		checker.Register("cache", redisCache)
		cartCache = redisCache
		log.Info("redis ping succeeded", zap.String("addr", cfg.RedisAddr))
	}

	svc := service.NewCartService(repo, productCatalog, cartCache)

	limiter := carthttp.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Run(ctx)
	go checker.Run(ctx)

	if len(cfg.KafkaBrokers) > 0 {
		p := poller.NewPoller(poller.NewKafkaReader(poller.Config{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			GroupID: cfg.KafkaGroupID,
		}), svc)
		defer p.Close()
		go p.Run(ctx)
		log.Info("order events consumer started", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: carthttp.NewRouter(carthttp.NewCartHandler(svc), carthttp.RouterConfig{
			RequestTimeout:     cfg.RequestTimeout,
			MaxRequestBodySize: cfg.MaxRequestBodySize,
			Limiter:            limiter,
			Ready:              checker.Check,
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port: %w", err)
	}
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthpb.RegisterHealthServer(grpcServer, checker.Server())
	reflection.Register(grpcServer)

	errCh := make(chan error, 2)
	go func() {
		log.Info("http server starting", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		log.Info("grpc health server starting", zap.String("port", cfg.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down cart service")
	case err = <-errCh:
		log.Error("server failed, shutting down", zap.Error(err))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Error("http server forced to shutdown", zap.Error(serr))
	}
	grpcServer.GracefulStop()

	log.Info("cart service stopped")
	return err
}

func newRepository(ctx context.Context, cfg *config.Config, db *mongo.Database) (repository.CartRepository, error) {
	if cfg.StoreBackend == "memory" {
		logger.L().Warn("using in-memory cart store, carts are lost on restart")
		return repository.NewMemoryRepository(), nil
	}

	repo := repository.NewMongoRepository(db)
	if err := repo.CreateIndexes(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

// newCatalog builds the configured backend behind a circuit breaker. The
// returned func releases the backend.
func newCatalog(cfg *config.Config, db *mongo.Database, checker *health.Checker) (catalog.Catalog, func(), error) {
	var (
		backend catalog.Catalog
		closeFn = func() {}
	)

	switch cfg.CatalogBackend {
	case "sqlite":
		sqlCatalog, err := catalog.NewSQLCatalog(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := sqlCatalog.RunMigrations(); err != nil {
			_ = sqlCatalog.Close()
			return nil, nil, err
		}
		checker.Register("catalog", sqlCatalog)
		backend = sqlCatalog
		closeFn = func() { _ = sqlCatalog.Close() }
	default:
		backend = catalog.NewMongoCatalog(db)
	}

	breaker := catalog.NewBreakerCatalog(backend, catalog.DefaultBreakerSettings(), func(name string, from, to gobreaker.State) {
		logger.L().Warn("catalog circuit breaker state changed",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	})
	return breaker, closeFn, nil
}
