package internal

import (
	"fmt"
	"huddle/errors"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const (
	DriverBadger = "badger"
	DriverMySQL  = "mysql"
	DriverMongo  = "mongo"
)

type Config struct {
	LogLevel       string `env:"LOG_LEVEL,default=INFO"`
	StoreDriver    string `env:"STORE_DRIVER,default=badger"`
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	MySQLDSN       string `env:"MYSQL_DSN"`
	MongoURI       string `env:"MONGO_URI"`
	MongoDatabase  string `env:"MONGO_DATABASE,default=huddle"`

	Host              string        `env:"HOST,default=localhost"`
	Port              int           `env:"PORT,default=8080"`
	GrpcPort          int           `env:"GRPC_PORT,default=9090"`
	JwtSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	AllowedOrigins    string        `env:"ALLOWED_ORIGINS,default=*"`

	FetchTimeout           time.Duration `env:"FETCH_TIMEOUT,default=5s"`
	SinkTimeout            time.Duration `env:"SINK_TIMEOUT,default=100ms"`
	FeedBufferSize         int           `env:"FEED_BUFFER_SIZE,default=64"`
	ConnectionBufferSize   int           `env:"CONNECTION_BUFFER_SIZE,default=16"`
	ResubscribeBaseDelay   time.Duration `env:"RESUBSCRIBE_BASE_DELAY,default=500ms"`
	ResubscribeMaxDelay    time.Duration `env:"RESUBSCRIBE_MAX_DELAY,default=30s"`
	MaxResubscribeAttempts int           `env:"MAX_RESUBSCRIBE_ATTEMPTS,default=5"`
	MaxContentLength       int           `env:"MAX_CONTENT_LENGTH,default=2000"`
	HeartbeatInterval      time.Duration `env:"HEARTBEAT_INTERVAL,default=30s"`
}

// Load reads an optional .env file, then the environment.
// Variables already set in the environment win over the file.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && len(files) > 0 {
		return Config{}, fmt.Errorf("loading %v: %w", files, err)
	}
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	return config, config.validate()
}

func (c Config) validate() error {
	switch c.StoreDriver {
	case DriverBadger:
	case DriverMySQL:
		if c.MySQLDSN == "" {
			return fmt.Errorf("MYSQL_DSN is required with the %s driver", DriverMySQL)
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required with the %s driver", DriverMongo)
		}
	default:
		return fmt.Errorf("%w: %q", errors.ErrUnknownDriver, c.StoreDriver)
	}
	if c.MaxContentLength <= 0 {
		return fmt.Errorf("MAX_CONTENT_LENGTH must be positive, got %d", c.MaxContentLength)
	}
	return nil
}

func (c Config) Origins() []string {
	return strings.Split(c.AllowedOrigins, ",")
}
