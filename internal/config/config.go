package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/SambhavSinghChouhan-CN/canvas/internal/infra/db"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Configはアプリ全体の設定
type Config struct {
	Port  string // サーバーポート（8080）
	GoEnv string // dev/prod

	StorageDriver string    // postgres / memory
	DB            db.Config // DATABASE_URL か POSTGRES_*

	JWTSecret string // JWT署名シークレット

	LogLevel       string
	RequestTimeout time.Duration

	KafkaBrokers     string // カンマ区切り。空ならイベントは送らない
	OrderEventsTopic string

	RedisAddr      string // 空ならレート制限はメモリ
	RateLimitRPS   float64
	RateLimitBurst int
}

// Loadは環境変数
func Load() (Config, error) {
	cfg := Config{
		Port:  getenv("PORT", "8080"),
		GoEnv: os.Getenv("GO_ENV"),

		StorageDriver: strings.ToLower(getenv("STORAGE_DRIVER", StorageDriverPostgres)),

		JWTSecret: os.Getenv("JWT_SECRET"),

		LogLevel: getenv("LOG_LEVEL", "info"),

		KafkaBrokers:     os.Getenv("KAFKA_BROKERS"),
		OrderEventsTopic: getenv("ORDER_EVENTS_TOPIC", "order-events"),

		RedisAddr: os.Getenv("REDIS_ADDR"),
	}

	timeoutMS, err := atoiDefault("REQUEST_TIMEOUT_MS", 10000)
	if err != nil {
		return Config{}, err
	}
	cfg.RequestTimeout = time.Duration(timeoutMS) * time.Millisecond

	rps, err := atofDefault("RATE_LIMIT_RPS", 20)
	if err != nil {
		return Config{}, err
	}
	cfg.RateLimitRPS = rps

	burst, err := atoiDefault("RATE_LIMIT_BURST", 40)
	if err != nil {
		return Config{}, err
	}
	cfg.RateLimitBurst = burst

	//必須チェック
	if cfg.GoEnv == "" {
		return Config{}, fmt.Errorf("GO_ENV is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}

	switch cfg.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		dbCfg, err := loadDB()
		if err != nil {
			return Config{}, err
		}
		cfg.DB = dbCfg
	default:
		return Config{}, fmt.Errorf("STORAGE_DRIVER must be %q or %q", StorageDriverPostgres, StorageDriverMemory)
	}

	return cfg, nil
}

// DATABASE_URL があれば最優先で使う
func loadDB() (db.Config, error) {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return db.Config{URL: url}, nil
	}

	pgPort, err := mustAtoi("POSTGRES_PORT")
	if err != nil {
		return db.Config{}, err
	}

	c := db.Config{
		Host:     os.Getenv("POSTGRES_HOST"),
		Port:     pgPort,
		User:     os.Getenv("POSTGRES_USER"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		DBName:   os.Getenv("POSTGRES_DB"),
		SSLMode:  getenv("POSTGRES_SSLMODE", "disable"),
	}
	if c.User == "" {
		return db.Config{}, fmt.Errorf("POSTGRES_USER is required")
	}
	if c.Password == "" {
		return db.Config{}, fmt.Errorf("POSTGRES_PASSWORD is required")
	}
	if c.DBName == "" {
		return db.Config{}, fmt.Errorf("POSTGRES_DB is required")
	}
	if c.Host == "" {
		return db.Config{}, fmt.Errorf("POSTGRES_HOST is required")
	}
	return c, nil
}

// ":8080" 形式にする
func (c Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func (c Config) IsDev() bool {
	return c.GoEnv == "dev" || c.GoEnv == "development"
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func mustAtoi(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func atoiDefault(key string, def int) (int, error) {
	if os.Getenv(key) == "" {
		return def, nil
	}
	return mustAtoi(key)
}

func atofDefault(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return f, nil
}
