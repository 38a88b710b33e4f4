package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string     `yaml:"env" env:"ENV" env-default:"local"`
	HTTP       HTTP       `yaml:"http"`
	MySQL      MySQL      `yaml:"mysql"`
	Redis      Redis      `yaml:"redis"`
	Reconciler Reconciler `yaml:"reconciler"`
	Settlement Settlement `yaml:"settlement"`
}

type HTTP struct {
	Port            string        `yaml:"port" env:"HTTP_PORT" env-default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"5s"`
}

type MySQL struct {
	DSN             string        `yaml:"dsn" env:"MYSQL_DSN" env-default:"root:root@tcp(localhost:3306)/mall?parseTime=true"`
	MaxOpenConns    int           `yaml:"max_open_conns" env-default:"50"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env-default:"25"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env-default:"5m"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	PoolSize int    `yaml:"pool_size" env-default:"100"`
}

type Reconciler struct {
	Workers   int `yaml:"workers" env:"RECONCILER_WORKERS" env-default:"10"`
	QueueSize int `yaml:"queue_size" env:"RECONCILER_QUEUE_SIZE" env-default:"10000"`
}

type Settlement struct {
	Hour int `yaml:"hour" env:"SETTLEMENT_HOUR" env-default:"2"`
}

// MustLoad reads the YAML file named by CONFIG_PATH when one exists,
// otherwise falls back to environment variables and defaults.
func MustLoad() *Config {
	var cfg Config

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if _, err := os.Stat(path); err != nil {
			log.Fatalf("config file does not exist: %v", err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			log.Fatalf("error reading config: %v", err)
		}
		return &cfg
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatalf("error reading config from env: %v", err)
	}
	return &cfg
}
