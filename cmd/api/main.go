package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SambhavSinghChouhan-CN/canvas/internal/config"
	"github.com/SambhavSinghChouhan-CN/canvas/internal/domain/model"
	"github.com/SambhavSinghChouhan-CN/canvas/internal/handler"
	"github.com/SambhavSinghChouhan-CN/canvas/internal/infra/db"
	"github.com/SambhavSinghChouhan-CN/canvas/internal/infra/events"
	"github.com/SambhavSinghChouhan-CN/canvas/internal/infra/memory"
	"github.com/SambhavSinghChouhan-CN/canvas/internal/infra/ratelimit"
	infraRepo "github.com/SambhavSinghChouhan-CN/canvas/internal/infra/repository"
	"github.com/SambhavSinghChouhan-CN/canvas/internal/logging"
	"github.com/SambhavSinghChouhan-CN/canvas/internal/metrics"
	"github.com/SambhavSinghChouhan-CN/canvas/internal/repository"
	"github.com/SambhavSinghChouhan-CN/canvas/internal/server"
	"github.com/SambhavSinghChouhan-CN/canvas/internal/usecase"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func main() {
	//.env は任意（無ければ環境変数だけ）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("", "info")
		boot.Fatal().Err(err).Msg("load config")
	}

	log := logging.New(cfg.GoEnv, cfg.LogLevel)
	zerolog.DefaultContextLogger = &log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//ストレージ
	tx, ping, closeDB, err := openStorage(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open storage")
	}
	defer closeDB()

	//イベント
	publisher := events.New(cfg.KafkaBrokers, cfg.OrderEventsTopic)
	defer publisher.Close()

	m := metrics.New()
	clock := usecase.SystemClock{}

	//Usecase生成
	orderUC := usecase.NewOrderUsecase(
		tx,
		usecase.NewULIDOrderNumberGenerator(clock),
		clock,
		usecase.WithEventPublisher(publisher),
		usecase.WithOrderMetrics(m),
	)

	var limiterStore echomw.RateLimiterStore
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		limiterStore = ratelimit.NewRedisStore(rdb, cfg.RateLimitRPS, cfg.RateLimitBurst, log)
	}

	e := server.New(server.Options{
		Logger:         log,
		Metrics:        m,
		JWTSecret:      cfg.JWTSecret,
		RequestTimeout: cfg.RequestTimeout,
		RateLimitStore: limiterStore,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Orders:         handler.NewOrderHandler(orderUC),
		Health:         handler.NewHealthHandler(ping),
	})

	//Server起動
	go func() {
		log.Info().Str("addr", cfg.Addr()).Str("storage", cfg.StorageDriver).Msg("server starting")
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}

func openStorage(cfg config.Config, log zerolog.Logger) (repository.TransactionManager, handler.Pinger, func(), error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		store := memory.NewStore()
		seedProducts(store)
		log.Warn().Msg("using in-memory storage; data is lost on restart")
		return store, nil, func() {}, nil
	}

	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := db.Migrate(gormDB, log); err != nil {
		return nil, nil, nil, err
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, nil, nil, err
	}

	closeFn := func() {
		if err := sqlDB.Close(); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}
	return infraRepo.NewTxManagerGorm(gormDB), sqlDB.PingContext, closeFn, nil
}

// ローカル確認用の商品
func seedProducts(store *memory.Store) {
	store.AddProduct(model.Product{
		Name:     "Linen Cushion Cover",
		Slug:     "linen-cushion-cover",
		ImageURL: "/images/linen-cushion-cover.jpg",
		Price:    decimal.RequireFromString("24.00"),
		Discount: decimal.RequireFromString("4.00"),
		Stock:    50,
	})
	store.AddProduct(model.Product{
		Name:     "Ceramic Table Lamp",
		Slug:     "ceramic-table-lamp",
		ImageURL: "/images/ceramic-table-lamp.jpg",
		Price:    decimal.RequireFromString("89.90"),
		Discount: decimal.Zero,
		Stock:    10,
	})
	store.AddProduct(model.Product{
		Name:     "Woven Wall Hanging",
		Slug:     "woven-wall-hanging",
		ImageURL: "/images/woven-wall-hanging.jpg",
		Price:    decimal.RequireFromString("45.00"),
		Discount: decimal.RequireFromString("5.00"),
		Stock:    1,
	})
}
