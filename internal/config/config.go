package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SurfaceNames 可通过环境变量覆盖参数的 feed 场景
var SurfaceNames = []string{"wall", "friends", "concerts", "ribbon", "explore"}

type Config struct {
	Env          string
	HTTPAddr     string
	MySQLDSN     string
	OTLPEndpoint string
	LogLevel     string
	LogFormat    string

	Redis RedisConfig
	Kafka KafkaConfig
	MinIO MinIOConfig
	JWT   JWTConfig
	SMTP  SMTPConfig
	Feed  FeedConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers        []string
	Topic          string
	OutboxInterval time.Duration
	OutboxBatch    int

	// 关注计数对账周期
	ReconcileInterval time.Duration
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	PublicURL string
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type FeedConfig struct {
	SessionTTL           time.Duration
	PrefetchMargin       int
	MaxSessionsPerClient int
	Surfaces             map[string]SurfaceOverride
}

// SurfaceOverride 零值表示沿用默认参数
type SurfaceOverride struct {
	PageSize int
	MediaCap int
	Window   int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", "local")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("MYSQL_DSN", "walcord:walcord@tcp(127.0.0.1:3306)/walcord?charset=utf8mb4&parseTime=True")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")

	v.SetDefault("REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("KAFKA_BROKERS", "127.0.0.1:9092")
	v.SetDefault("KAFKA_TOPIC", "walcord.social")
	v.SetDefault("OUTBOX_INTERVAL", "1s")
	v.SetDefault("OUTBOX_BATCH", 200)
	v.SetDefault("RECONCILE_INTERVAL", "10m")

	v.SetDefault("MINIO_ENDPOINT", "127.0.0.1:9000")
	v.SetDefault("MINIO_ACCESS_KEY", "")
	v.SetDefault("MINIO_SECRET_KEY", "")
	v.SetDefault("MINIO_BUCKET", "walcord-media")
	v.SetDefault("MINIO_REGION", "us-east-1")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("MINIO_PUBLIC_URL", "")

	v.SetDefault("JWT_ACCESS_SECRET", "walcord-access-secret")
	v.SetDefault("JWT_REFRESH_SECRET", "walcord-refresh-secret")
	v.SetDefault("JWT_ACCESS_TTL", "30m")
	v.SetDefault("JWT_REFRESH_TTL", "24h")

	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "Walcord <no-reply@walcord.app>")

	v.SetDefault("FEED_SESSION_TTL", "30m")
	v.SetDefault("FEED_PREFETCH_MARGIN", 600)
	v.SetDefault("FEED_MAX_SESSIONS_PER_CLIENT", 16)
}

// Load 依次读取默认值、可选的 walcord.yaml 和环境变量
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("walcord")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	v.AutomaticEnv()

	cfg := &Config{
		Env:          v.GetString("ENV"),
		HTTPAddr:     v.GetString("HTTP_ADDR"),
		MySQLDSN:     v.GetString("MYSQL_DSN"),
		OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		LogLevel:     v.GetString("LOG_LEVEL"),
		LogFormat:    v.GetString("LOG_FORMAT"),
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Kafka: KafkaConfig{
			Brokers:        splitList(v.GetString("KAFKA_BROKERS")),
			Topic:          v.GetString("KAFKA_TOPIC"),
			OutboxInterval: v.GetDuration("OUTBOX_INTERVAL"),
			OutboxBatch:    v.GetInt("OUTBOX_BATCH"),

			ReconcileInterval: v.GetDuration("RECONCILE_INTERVAL"),
		},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			Bucket:    v.GetString("MINIO_BUCKET"),
			Region:    v.GetString("MINIO_REGION"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			PublicURL: v.GetString("MINIO_PUBLIC_URL"),
		},
		JWT: JWTConfig{
			AccessSecret:  v.GetString("JWT_ACCESS_SECRET"),
			RefreshSecret: v.GetString("JWT_REFRESH_SECRET"),
			AccessTTL:     v.GetDuration("JWT_ACCESS_TTL"),
			RefreshTTL:    v.GetDuration("JWT_REFRESH_TTL"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetInt("SMTP_PORT"),
			Username: v.GetString("SMTP_USERNAME"),
			Password: v.GetString("SMTP_PASSWORD"),
			From:     v.GetString("SMTP_FROM"),
		},
		Feed: FeedConfig{
			SessionTTL:           v.GetDuration("FEED_SESSION_TTL"),
			PrefetchMargin:       v.GetInt("FEED_PREFETCH_MARGIN"),
			MaxSessionsPerClient: v.GetInt("FEED_MAX_SESSIONS_PER_CLIENT"),
			Surfaces:             make(map[string]SurfaceOverride, len(SurfaceNames)),
		},
	}

	for _, name := range SurfaceNames {
		prefix := "FEED_" + strings.ToUpper(name) + "_"
		o := SurfaceOverride{
			PageSize: v.GetInt(prefix + "PAGE_SIZE"),
			MediaCap: v.GetInt(prefix + "MEDIA_CAP"),
			Window:   v.GetInt(prefix + "WINDOW"),
		}
		if o != (SurfaceOverride{}) {
			cfg.Feed.Surfaces[name] = o
		}
	}

	if cfg.Env != "local" && cfg.JWT.AccessSecret == "walcord-access-secret" {
		return nil, errors.New("JWT_ACCESS_SECRET must be set outside local env")
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
