package config

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"

	"github.com/libris/circulation-service/circulation/internal/service/catalog"
	"github.com/libris/circulation-service/pkg/kafka"
	"github.com/libris/circulation-service/pkg/logger"
	"github.com/libris/circulation-service/pkg/postgres"
)

type HTTPServer struct {
	Host         string        `yaml:"host" envconfig:"CIRCULATION_HTTP_HOST"`
	Port         string        `yaml:"port" envconfig:"CIRCULATION_HTTP_PORT" default:"8080"`
	ReadTimeout  time.Duration `yaml:"readTimeout" envconfig:"HTTP_READ" default:"5s"`
	WriteTimeout time.Duration
}

type Config struct {
	Server              HTTPServer `yaml:"server"`
	Database            postgres.Config
	Kafka               kafka.Config
	Catalog             catalog.Config
	Log                 logger.Log    `yaml:"log"`
	JWTSecret           string        `envconfig:"JWT_SECRET" json:"-"`
	TrustGatewayHeaders bool          `envconfig:"AUTH_TRUST_GATEWAY" default:"false"`
	HoldWindow          time.Duration `envconfig:"RESERVATION_HOLD_WINDOW" default:"24h"`
}

var (
	once sync.Once
	cfg  Config
)

// NewConfig reads config from environment.
func NewConfig(ops ...Option) *Config {
	once.Do(func() {
		var config Config
		for _, op := range ops {
			op(&config)
		}
		err := envconfig.Process("", &config)
		if err != nil {
			log.Fatal("NewConfig ", err)
		}
		cfg = config
		printConfig(cfg)
	})

	return &cfg
}

func printConfig(cfg Config) {
	jscfg, _ := json.MarshalIndent(cfg, "", "	") //nolint:errcheck
	fmt.Println(string(jscfg))
}

type Option func(*Config)

func WithLogLevel(level zapcore.Level) Option {
	return func(c *Config) {
		c.Log.LogLevel = level
	}
}

func WithWriteTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Server.WriteTimeout = timeout
	}
}
