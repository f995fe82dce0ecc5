// Command seed-db loads customers and inventory items from a JSON file into
// the database, creating the schema first if needed.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/cloud-kitchen/internal/postgres"
)

type seedFile struct {
	Customers []customerJSON `json:"customers"`
	Items     []itemJSON     `json:"inventory_items"`
}

type customerJSON struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type itemJSON struct {
	Name              string          `json:"name"`
	Quantity          int             `json:"quantity"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
}

func main() {
	var (
		databaseURL string
		seedPath    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/data.json", "path to seed JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath string) error {
	raw, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}

	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		return errors.Wrap(err, "parse seed file")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	now := time.Now().UTC()

	for _, c := range seed.Customers {
		_, err := pool.Exec(ctx,
			`INSERT INTO customers (id, name, email, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $4)
			 ON CONFLICT (email) DO NOTHING`,
			uuid.New().String(), c.Name, c.Email, now,
		)
		if err != nil {
			return errors.Wrapf(err, "seed customer %s", c.Email)
		}
	}
	slog.Info("customers seeded", slog.Int("count", len(seed.Customers)))

	for _, it := range seed.Items {
		_, err := pool.Exec(ctx,
			`INSERT INTO inventory_items (id, name, quantity, low_stock_threshold, unit_price, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $6)
			 ON CONFLICT (name) DO NOTHING`,
			uuid.New().String(), it.Name, it.Quantity, it.LowStockThreshold, it.UnitPrice, now,
		)
		if err != nil {
			return errors.Wrapf(err, "seed inventory item %s", it.Name)
		}
	}
	slog.Info("inventory items seeded", slog.Int("count", len(seed.Items)))

	return nil
}
