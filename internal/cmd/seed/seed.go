// Package seed parses seed command flags and loads demo aggregates into the
// replicator's storage: an active account, an open warehouse with stock, and
// one order ready to start its saga.
package seed

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/louisbranch/orderflow/internal/domain/account"
	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/domain/event"
	"github.com/louisbranch/orderflow/internal/domain/inventory"
	"github.com/louisbranch/orderflow/internal/domain/order"
	"github.com/louisbranch/orderflow/internal/domain/warehouse"
	entrypoint "github.com/louisbranch/orderflow/internal/platform/cmd"
	"github.com/louisbranch/orderflow/internal/storage"
	"github.com/louisbranch/orderflow/internal/storage/postgres"
	"github.com/louisbranch/orderflow/internal/storage/sqlite"
	"github.com/louisbranch/orderflow/internal/transport/kafka"
)

// Config holds seed command configuration.
type Config struct {
	Store       string `env:"ORDERFLOW_REPLICATOR_STORE" envDefault:"sqlite"`
	SQLitePath  string `env:"ORDERFLOW_REPLICATOR_SQLITE_PATH" envDefault:"orderflow.db"`
	PostgresDSN string `env:"ORDERFLOW_REPLICATOR_POSTGRES_DSN"`

	KafkaBrokers []string `env:"ORDERFLOW_KAFKA_BROKERS"`
	EventsTopic  string   `env:"ORDERFLOW_KAFKA_EVENTS_TOPIC" envDefault:"orderflow.events"`

	AccountEmail  string `env:"ORDERFLOW_SEED_ACCOUNT_EMAIL" envDefault:"demo@orderflow.dev"`
	WarehouseName string `env:"ORDERFLOW_SEED_WAREHOUSE" envDefault:"east-1"`
	SKU           string `env:"ORDERFLOW_SEED_SKU" envDefault:"sku-demo"`
	StockQuantity int64  `env:"ORDERFLOW_SEED_STOCK" envDefault:"100"`
	OrderQuantity int64  `env:"ORDERFLOW_SEED_ORDER_QUANTITY" envDefault:"2"`
	UnitPrice     int64  `env:"ORDERFLOW_SEED_UNIT_PRICE" envDefault:"1500"`
	InventoryURL  string `env:"ORDERFLOW_SEED_INVENTORY_URL"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Store, "store", cfg.Store, "Storage backend: sqlite or postgres")
	fs.StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "Path to the SQLite database file")
	fs.StringVar(&cfg.SKU, "sku", cfg.SKU, "SKU for the demo inventory and order")
	fs.Int64Var(&cfg.StockQuantity, "stock", cfg.StockQuantity, "Initial stock quantity")
	fs.StringVar(&cfg.InventoryURL, "inventory-url", cfg.InventoryURL, "Remote link for reservation commands")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type store interface {
	storage.EventStore
	storage.EntityStore
}

// Run seeds the configured store and, when brokers are configured, hands the
// order's creation event to the replicator via Kafka.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}

	var (
		st      store
		cleanup func()
	)
	switch cfg.Store {
	case "postgres":
		pgStore, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		st, cleanup = pgStore, pgStore.Close
	default:
		dbStore, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return err
		}
		st, cleanup = dbStore, func() {
			if err := dbStore.Close(); err != nil {
				log.Printf("close sqlite store: %v", err)
			}
		}
	}
	defer cleanup()

	seeded, err := seedAggregates(ctx, st, cfg)
	if err != nil {
		return err
	}

	if cfg.InventoryURL == "" {
		fmt.Fprintln(out, "warning: no inventory remote link set (-inventory-url); the reservation step will fail and compensate")
	}

	fmt.Fprintf(out, "account   %s\n", seeded.account.ID)
	fmt.Fprintf(out, "warehouse %s\n", seeded.warehouse.ID)
	fmt.Fprintf(out, "inventory %s\n", seeded.inventory.ID)
	fmt.Fprintf(out, "order     %s\n", seeded.order.ID)

	if len(cfg.KafkaBrokers) == 0 {
		fmt.Fprintf(out, "no kafka brokers configured; replicate event %s manually\n", seeded.trigger.ID)
		return nil
	}

	writer, err := kafka.NewEventWriter(cfg.KafkaBrokers, cfg.EventsTopic)
	if err != nil {
		return err
	}
	defer func() {
		if err := writer.Close(); err != nil {
			log.Printf("close kafka writer: %v", err)
		}
	}()
	if err := writer.WriteEvent(ctx, seeded.trigger); err != nil {
		return err
	}
	fmt.Fprintf(out, "published %s to %s\n", seeded.trigger.ID, cfg.EventsTopic)
	return nil
}

type seededAggregates struct {
	account   account.Account
	warehouse warehouse.Warehouse
	inventory inventory.Inventory
	order     order.Order
	trigger   event.Event
}

// seedAggregates writes demo aggregates with already-replayed history, so
// the replicator only ever consumes the order's creation event.
func seedAggregates(ctx context.Context, st store, cfg Config) (seededAggregates, error) {
	var seeded seededAggregates

	acct, err := account.Create(account.CreateInput{Email: cfg.AccountEmail, DisplayName: "Demo"}, nil, nil)
	if err != nil {
		return seeded, err
	}
	acct.Status = account.StatusActive
	if _, err := st.Put(ctx, acct); err != nil {
		return seeded, fmt.Errorf("store account: %w", err)
	}
	if err := appendHistory(ctx, st, acct.Ref(), nil,
		account.EventTypeCreated, account.EventTypeActivated); err != nil {
		return seeded, err
	}

	site, err := warehouse.Create(warehouse.CreateInput{Name: cfg.WarehouseName, Region: "us-east"}, nil, nil)
	if err != nil {
		return seeded, err
	}
	site.Status = warehouse.StatusOpen
	if _, err := st.Put(ctx, site); err != nil {
		return seeded, fmt.Errorf("store warehouse: %w", err)
	}
	if err := appendHistory(ctx, st, site.Ref(), nil,
		warehouse.EventTypeCreated, warehouse.EventTypeOpened); err != nil {
		return seeded, err
	}

	stock, err := inventory.Create(inventory.CreateInput{SKU: cfg.SKU, Quantity: cfg.StockQuantity}, nil, nil)
	if err != nil {
		return seeded, err
	}
	stock.WarehouseID = site.ID
	stock.Status = inventory.StatusAvailable
	if _, err := st.Put(ctx, stock); err != nil {
		return seeded, fmt.Errorf("store inventory: %w", err)
	}
	annotations := map[string]string{event.AnnotationWarehouseID: site.ID}
	if err := appendHistory(ctx, st, stock.Ref(), annotations,
		inventory.EventTypeCreated, inventory.EventTypeWarehouseConnected); err != nil {
		return seeded, err
	}

	ord, err := order.Create(order.CreateInput{
		AccountID: acct.ID,
		Items:     []order.LineItem{{SKU: cfg.SKU, Quantity: cfg.OrderQuantity, UnitPrice: cfg.UnitPrice}},
	}, nil, nil)
	if err != nil {
		return seeded, err
	}
	if _, err := st.Put(ctx, ord); err != nil {
		return seeded, fmt.Errorf("store order: %w", err)
	}
	trigger, err := st.Append(ctx, event.Event{
		Type:   order.EventTypeCreated,
		Entity: ord.Ref(),
		Annotations: map[string]string{
			event.AnnotationInventoryID: stock.ID,
			event.AnnotationRemote:      cfg.InventoryURL,
		},
	})
	if err != nil {
		return seeded, fmt.Errorf("append order creation: %w", err)
	}

	seeded.account = acct
	seeded.warehouse = site
	seeded.inventory = stock
	seeded.order = ord
	seeded.trigger = trigger
	return seeded, nil
}

func appendHistory(ctx context.Context, st store, ref entity.Ref, annotations map[string]string, types ...event.Type) error {
	base := time.Now().UTC().Add(-time.Minute)
	for i, eventType := range types {
		if _, err := st.Append(ctx, event.Event{
			Type:        eventType,
			Entity:      ref,
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
			Annotations: annotations,
		}); err != nil {
			return fmt.Errorf("append %s for %s: %w", eventType, ref, err)
		}
	}
	return nil
}
