package config

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name    string `envconfig:"APP_NAME" default:"BantuDesa"`
		Port    int    `envconfig:"PORT" default:"8080"`
		Env     string `envconfig:"APP_ENV" default:"development"`
		BaseURL string `envconfig:"BASE_URL" default:"http://localhost:8080"`
	}

	DB struct {
		Host      string        `envconfig:"DB_HOST" default:"localhost"`
		Port      int           `envconfig:"DB_PORT" default:"5432"`
		User      string        `envconfig:"DB_USER" default:"postgres"`
		Password  string        `envconfig:"DB_PASSWORD" default:""`
		Name      string        `envconfig:"DB_NAME" default:"bantudesa"`
		TxTimeout time.Duration `envconfig:"DB_TX_TIMEOUT" default:"5s"`
		Migrate   bool          `envconfig:"DB_MIGRATE" default:"true"`

		MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
		MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
		ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
	}

	Server struct {
		Timeout         time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
		ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
		WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
		ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
		CORSOrigins     []string      `envconfig:"CORS_ORIGINS" default:"*"`
	}

	Auth struct {
		Secret   string        `envconfig:"JWT_SECRET" default:"dev-secret-change-me"`
		Issuer   string        `envconfig:"JWT_ISSUER" default:"bantudesa"`
		TokenTTL time.Duration `envconfig:"JWT_TTL" default:"24h"`
	}

	Ledger struct {
		MinimumDonation     int64 `envconfig:"MIN_DONATION" default:"10000"`
		MaximumDonation     int64 `envconfig:"MAX_DONATION" default:"1000000000000"`
		DecisionMaxAttempts int   `envconfig:"DECISION_MAX_ATTEMPTS" default:"5"`
	}

	Storage struct {
		// Driver is postgres or memory.
		Driver string `envconfig:"STORAGE_DRIVER" default:"postgres"`
	}

	Blob struct {
		Dir      string `envconfig:"BLOB_DIR" default:"./data/proofs"`
		MaxBytes int64  `envconfig:"BLOB_MAX_BYTES" default:"5242880"`
		// ProofHosts are external hosts donors may link proofs from. Empty
		// means only proofs uploaded to this service are accepted.
		ProofHosts []string `envconfig:"PROOF_HOSTS"`
	}

	Redis struct {
		URL      string        `envconfig:"REDIS_URL"`
		CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"30s"`
	}

	Notify struct {
		// Driver is log, kafka or redis.
		Driver  string        `envconfig:"NOTIFY_DRIVER" default:"log"`
		Brokers []string      `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
		Topic   string        `envconfig:"KAFKA_TOPIC" default:"donation-events"`
		Stream  string        `envconfig:"REDIS_STREAM" default:"donation-events"`
		Timeout time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"5s"`
	}

	Log struct {
		Level  string `envconfig:"LOG_LEVEL" default:"info"`
		Format string `envconfig:"LOG_FORMAT" default:"text"`
	}

	TUI struct {
		ActorID string `envconfig:"TUI_ACTOR_ID"`
		LogFile string `envconfig:"TUI_LOG_FILE"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

// ActorID is the administrator identity recorded on decisions made from the
// console. A missing or malformed value yields uuid.Nil.
func (c *Config) ActorID() uuid.UUID {
	id, err := uuid.Parse(c.TUI.ActorID)
	if err != nil {
		return uuid.Nil
	}

	return id
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	switch cfg.Storage.Driver {
	case "postgres", "memory":
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	switch cfg.Notify.Driver {
	case "log", "kafka", "redis":
	default:
		return nil, fmt.Errorf("unknown notify driver %q", cfg.Notify.Driver)
	}

	return &cfg, nil
}
