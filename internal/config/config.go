package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

type Config struct {
	Env             string
	HTTPAddr        string
	GRPCAddr        string
	StoreDriver     string
	MySQLDSN        string
	MySQLMaxOpen    int
	MySQLMaxIdle    int
	RedisAddr       string
	KafkaBrokers    []string
	KafkaTopic      string
	EventWorkers    int
	EventQueueSize  int
	ShutdownTimeout time.Duration
}

// Load reads the environment, optionally seeded from a .env file in the
// working directory. A missing .env is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "production")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":50051")
	v.SetDefault("STORE_DRIVER", StoreMySQL)
	v.SetDefault("MYSQL_DSN", "root:root@tcp(localhost:3306)/survivors?parseTime=true")
	v.SetDefault("MYSQL_MAX_OPEN_CONNS", 50)
	v.SetDefault("MYSQL_MAX_IDLE_CONNS", 25)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "trade-settled")
	v.SetDefault("EVENT_WORKERS", 4)
	v.SetDefault("EVENT_QUEUE_SIZE", 1024)
	v.SetDefault("SHUTDOWN_TIMEOUT", 10*time.Second)

	cfg := &Config{
		Env:             v.GetString("APP_ENV"),
		HTTPAddr:        v.GetString("HTTP_ADDR"),
		GRPCAddr:        v.GetString("GRPC_ADDR"),
		StoreDriver:     strings.ToLower(v.GetString("STORE_DRIVER")),
		MySQLDSN:        v.GetString("MYSQL_DSN"),
		MySQLMaxOpen:    v.GetInt("MYSQL_MAX_OPEN_CONNS"),
		MySQLMaxIdle:    v.GetInt("MYSQL_MAX_IDLE_CONNS"),
		RedisAddr:       v.GetString("REDIS_ADDR"),
		KafkaBrokers:    splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:      v.GetString("KAFKA_TOPIC"),
		EventWorkers:    v.GetInt("EVENT_WORKERS"),
		EventQueueSize:  v.GetInt("EVENT_QUEUE_SIZE"),
		ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
