// Package replicator parses replicator command flags and starts the
// replication runtime: the Kafka consumer feeding the engine plus the admin
// read surface.
package replicator

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/louisbranch/orderflow/internal/domain/event"
	entrypoint "github.com/louisbranch/orderflow/internal/platform/cmd"
	"github.com/louisbranch/orderflow/internal/remote"
	"github.com/louisbranch/orderflow/internal/replication"
	"github.com/louisbranch/orderflow/internal/storage"
	"github.com/louisbranch/orderflow/internal/storage/postgres"
	"github.com/louisbranch/orderflow/internal/storage/rediscache"
	"github.com/louisbranch/orderflow/internal/storage/sqlite"
	"github.com/louisbranch/orderflow/internal/transport/admin"
	"github.com/louisbranch/orderflow/internal/transport/kafka"
	"github.com/louisbranch/orderflow/internal/workflow"
)

// Storage backends selectable via ORDERFLOW_REPLICATOR_STORE.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config holds replicator command configuration.
type Config struct {
	Store       string `env:"ORDERFLOW_REPLICATOR_STORE" envDefault:"sqlite"`
	SQLitePath  string `env:"ORDERFLOW_REPLICATOR_SQLITE_PATH" envDefault:"orderflow.db"`
	PostgresDSN string `env:"ORDERFLOW_REPLICATOR_POSTGRES_DSN"`

	RedisAddr     string        `env:"ORDERFLOW_REPLICATOR_REDIS_ADDR"`
	RedisPassword string        `env:"ORDERFLOW_REPLICATOR_REDIS_PASSWORD"`
	RedisDB       int           `env:"ORDERFLOW_REPLICATOR_REDIS_DB"`
	StatusTTL     time.Duration `env:"ORDERFLOW_REPLICATOR_STATUS_TTL" envDefault:"24h"`

	KafkaBrokers []string `env:"ORDERFLOW_KAFKA_BROKERS"`
	EventsTopic  string   `env:"ORDERFLOW_KAFKA_EVENTS_TOPIC" envDefault:"orderflow.events"`
	StatusTopic  string   `env:"ORDERFLOW_KAFKA_STATUS_TOPIC" envDefault:"orderflow.status"`
	GroupID      string   `env:"ORDERFLOW_KAFKA_GROUP_ID" envDefault:"orderflow-replicator"`

	AdminAddr      string `env:"ORDERFLOW_REPLICATOR_ADMIN_ADDR" envDefault:":8080"`
	PaymentGateway string `env:"ORDERFLOW_PAYMENT_GATEWAY_URL"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Store, "store", cfg.Store, "Storage backend: sqlite or postgres")
	fs.StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "Path to the SQLite database file")
	fs.StringVar(&cfg.AdminAddr, "admin-addr", cfg.AdminAddr, "The admin HTTP listen address")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration is runnable.
func (cfg Config) Validate() error {
	switch cfg.Store {
	case StoreSQLite:
		if strings.TrimSpace(cfg.SQLitePath) == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case StorePostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return fmt.Errorf("postgres dsn is required")
		}
	default:
		return fmt.Errorf("unknown store %q, want %s or %s", cfg.Store, StoreSQLite, StorePostgres)
	}
	if len(cfg.KafkaBrokers) == 0 {
		return fmt.Errorf("at least one kafka broker is required")
	}
	return nil
}

type closableStore interface {
	storage.EventStore
	storage.EntityStore
}

func openStore(ctx context.Context, cfg Config) (closableStore, func(), error) {
	switch cfg.Store {
	case StorePostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				log.Printf("close sqlite store: %v", err)
			}
		}, nil
	}
}

// Run starts the replicator runtime.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceReplicator, func(ctx context.Context) error {
		store, closeStore, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		var cache storage.StatusCache
		if cfg.RedisAddr != "" {
			redisCache, err := rediscache.New(ctx, rediscache.Options{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
				TTL:      cfg.StatusTTL,
			})
			if err != nil {
				return err
			}
			defer func() {
				if err := redisCache.Close(); err != nil {
					log.Printf("close redis cache: %v", err)
				}
			}()
			cache = redisCache
		}

		eventWriter, err := kafka.NewEventWriter(cfg.KafkaBrokers, cfg.EventsTopic)
		if err != nil {
			return err
		}
		defer func() {
			if err := eventWriter.Close(); err != nil {
				log.Printf("close kafka event writer: %v", err)
			}
		}()
		// Saga events emitted by workflow actions go through the outbox so
		// each one is delivered back as its own replication trigger.
		outbox, err := kafka.NewOutbox(store, eventWriter)
		if err != nil {
			return err
		}

		deps := workflow.Deps{
			Entities:       store,
			Emitter:        event.NewEmitter(outbox),
			Remote:         remote.NewHTTPProxy(nil),
			PaymentGateway: cfg.PaymentGateway,
		}
		definitions, err := deps.Definitions()
		if err != nil {
			return err
		}
		engine, err := replication.NewEngine(store, store, definitions)
		if err != nil {
			return err
		}

		publisher, err := kafka.NewPublisher(cfg.KafkaBrokers, cfg.StatusTopic)
		if err != nil {
			return err
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Printf("close kafka publisher: %v", err)
			}
		}()

		processor, err := replication.NewProcessor(engine, store, cache, publisher, nil)
		if err != nil {
			return err
		}
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.EventsTopic, cfg.GroupID, processor)
		if err != nil {
			return err
		}
		defer func() {
			if err := consumer.Close(); err != nil {
				log.Printf("close kafka consumer: %v", err)
			}
		}()

		adminServer := &http.Server{
			Addr:    cfg.AdminAddr,
			Handler: admin.NewRouter(store, store, cache),
		}
		adminErr := make(chan error, 1)
		go func() {
			log.Printf("admin listening on %s", cfg.AdminAddr)
			if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				adminErr <- err
				return
			}
			adminErr <- nil
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := adminServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("admin shutdown: %v", err)
			}
		}()

		log.Printf("consuming %s from %s", cfg.EventsTopic, strings.Join(cfg.KafkaBrokers, ","))
		runErr := make(chan error, 1)
		go func() {
			runErr <- consumer.Run(ctx)
		}()

		select {
		case err := <-runErr:
			return err
		case err := <-adminErr:
			if err != nil {
				return fmt.Errorf("admin server: %w", err)
			}
			return <-runErr
		case <-ctx.Done():
			return <-runErr
		}
	})
}
