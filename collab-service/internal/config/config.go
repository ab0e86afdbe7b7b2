package config

import (
	"time"

	pkgconfig "github.com/weiawesome/artisans-live/pkg/config"
	"github.com/weiawesome/artisans-live/pkg/database"
)

type Config struct {
	Server       ServerConfig
	API          APIConfig
	WebSocket    WebSocketConfig
	Auth         AuthConfig
	Database     database.Config
	Redis        RedisConfig
	History      HistoryConfig
	Kafka        KafkaConfig
	Ledger       LedgerConfig
	Notification NotificationConfig
	IDGen        IDGenConfig `mapstructure:"idgen"`
	Log          LogConfig
}

// ServerConfig is the websocket listener.
type ServerConfig struct {
	Host             string
	Port             int
	AdvertiseAddress string `mapstructure:"advertise_address"`
}

// APIConfig is the REST listener.
type APIConfig struct {
	Host string
	Port int
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type RedisConfig struct {
	Enabled           bool
	Address           string
	Password          string
	DB                int
	PresencePrefix    string        `mapstructure:"presence_prefix"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	KeyTTL            time.Duration `mapstructure:"key_ttl"`
}

type HistoryConfig struct {
	Backend  string // memory, redis
	Capacity int
	Key      string
}

type KafkaConfig struct {
	Enabled    bool
	Brokers    string
	Topic      string
	Partitions int
}

type LedgerConfig struct {
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type NotificationConfig struct {
	FanOutLimit  int           `mapstructure:"fan_out_limit"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	ListLimit    int           `mapstructure:"list_limit"`
}

type IDGenConfig struct {
	NodeID int64 `mapstructure:"node_id"`
	Epoch  int64
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.advertise_address", "localhost:8090")
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8091)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 8192)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "artisans")
	v.SetDefault("auth.token_ttl", "15m")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "artisans")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.file_path", "./data/collab.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.slow_threshold", "200ms")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.presence_prefix", "collab:presence")
	v.SetDefault("redis.heartbeat_interval", "10s")
	v.SetDefault("redis.key_ttl", "30s")
	v.SetDefault("history.backend", "memory")
	v.SetDefault("history.capacity", 1000)
	v.SetDefault("history.key", "collab:history")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "collab-events")
	v.SetDefault("kafka.partitions", 8)
	v.SetDefault("ledger.write_timeout", "5s")
	v.SetDefault("notification.fan_out_limit", 16)
	v.SetDefault("notification.write_timeout", "5s")
	v.SetDefault("notification.list_limit", 50)
	v.SetDefault("idgen.node_id", 1)
	v.SetDefault("idgen.epoch", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// Override from environment
	if err := pkgconfig.BindEnvs(v, map[string]string{
		"server.port":              "PORT",
		"server.advertise_address": "ADVERTISE_ADDRESS",
		"api.port":                 "API_PORT",
		"auth.jwt_secret":          "JWT_SECRET",
		"database.driver":          "DB_DRIVER",
		"database.host":            "DB_HOST",
		"database.port":            "DB_PORT",
		"database.user":            "DB_USER",
		"database.password":        "DB_PASSWORD",
		"database.dbname":          "DB_NAME",
		"database.file_path":       "DB_FILE_PATH",
		"redis.enabled":            "REDIS_ENABLED",
		"redis.address":            "REDIS_ADDRESS",
		"redis.password":           "REDIS_PASSWORD",
		"history.backend":          "HISTORY_BACKEND",
		"kafka.enabled":            "KAFKA_ENABLED",
		"kafka.brokers":            "KAFKA_BROKERS",
		"kafka.topic":              "KAFKA_TOPIC",
		"idgen.node_id":            "NODE_ID",
		"log.level":                "LOG_LEVEL",
	}); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.WebSocket.PingInterval = pkgconfig.Duration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = pkgconfig.Duration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = pkgconfig.Duration(v, "websocket.write_wait", 10*time.Second)
	cfg.Auth.TokenTTL = pkgconfig.Duration(v, "auth.token_ttl", 15*time.Minute)
	cfg.Database.SlowThreshold = pkgconfig.Duration(v, "database.slow_threshold", 200*time.Millisecond)
	cfg.Redis.HeartbeatInterval = pkgconfig.Duration(v, "redis.heartbeat_interval", 10*time.Second)
	cfg.Redis.KeyTTL = pkgconfig.Duration(v, "redis.key_ttl", 30*time.Second)
	cfg.Ledger.WriteTimeout = pkgconfig.Duration(v, "ledger.write_timeout", 5*time.Second)
	cfg.Notification.WriteTimeout = pkgconfig.Duration(v, "notification.write_timeout", 5*time.Second)

	return &cfg, nil
}
