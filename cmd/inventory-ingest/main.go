// Command inventory-ingest bulk-loads inventory items from gzipped CSV
// supplier feeds. Each line is "name,quantity,low_stock_threshold,unit_price".
//
// Feeds overlap: the same item often appears in several files, or already
// sits in the table from seeding or a previous run. Ingest runs two passes.
// Pass 1 builds a bloom filter of item names per file, concurrently. Pass 2
// streams each file in order and routes every row by filter lookup: a name
// possibly seen before, in an earlier feed or earlier in the same file,
// falls back to a conflict-checked INSERT, while the rest are batched
// through COPY into a staging table and merged with ON CONFLICT DO NOTHING.
// Either path skips rows whose name already exists, so the unique constraint
// on name is the exact deduplication authority and re-runs are idempotent.
// Bloom false positives cost one slower statement, never a lost row.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/cloud-kitchen/internal/postgres"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	copyBatchSize = 5_000
)

type itemRow struct {
	name      string
	quantity  int
	threshold int
	price     decimal.Decimal
}

func main() {
	var databaseURL string

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		slog.Error("at least one feed file is required, e.g. inventory-ingest feed1.csv.gz feed2.csv.gz")
		os.Exit(1)
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, files); err != nil {
		slog.Error("inventory ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("inventory ingest completed successfully")
}

func run(ctx context.Context, databaseURL string, files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("pass 2: loading feeds")

	var fresh, dupes int
	for i, f := range files {
		nf, nd, err := loadFeed(ctx, pool, f, filters[:i])
		if err != nil {
			return errors.Wrapf(err, "load feed %s", f)
		}
		fresh += nf
		dupes += nd
		slog.Info("feed loaded",
			slog.String("file", f),
			slog.Int("fresh", nf),
			slog.Int("duplicate_candidates", nd),
		)
	}

	slog.Info("done", slog.Int("fresh_rows", fresh), slog.Int("duplicate_candidates", dupes))
	return nil
}

// buildBloomFilters scans every file concurrently and returns one filter of
// item names per file, in input order.
func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	grp, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		grp.Go(func() error {
			filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
			err := scanFeed(ctx, f, func(row itemRow) error {
				filter.AddString(row.name)
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "scan %s", f)
			}
			filters[i] = filter
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// loadFeed inserts one feed, routing rows by the filters. The batched path
// never touches inventory_items directly: it stages through a temp table and
// merges with ON CONFLICT DO NOTHING, so a name the filters missed but the
// table already holds is skipped instead of failing the COPY.
func loadFeed(ctx context.Context, pool *pgxpool.Pool, file string, earlier []*bloom.BloomFilter) (fresh, dupes int, err error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return 0, 0, errors.Wrap(err, "acquire connection")
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `CREATE TEMP TABLE staged_items (LIKE inventory_items INCLUDING DEFAULTS)`); err != nil {
		return 0, 0, errors.Wrap(err, "create staging table")
	}
	defer func() {
		// The temp table outlives this feed on the pooled session otherwise.
		_, _ = conn.Exec(context.WithoutCancel(ctx), `DROP TABLE IF EXISTS staged_items`)
	}()

	now := time.Now().UTC()
	batch := make([][]any, 0, copyBatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		_, err := conn.CopyFrom(ctx,
			pgx.Identifier{"staged_items"},
			[]string{"id", "name", "quantity", "low_stock_threshold", "unit_price", "created_at", "updated_at"},
			pgx.CopyFromRows(batch),
		)
		if err != nil {
			return errors.Wrap(err, "copy batch")
		}
		if _, err := conn.Exec(ctx, `INSERT INTO inventory_items SELECT * FROM staged_items ON CONFLICT (name) DO NOTHING`); err != nil {
			return errors.Wrap(err, "merge batch")
		}
		if _, err := conn.Exec(ctx, `TRUNCATE staged_items`); err != nil {
			return errors.Wrap(err, "reset staging table")
		}
		batch = batch[:0]
		return nil
	}

	current := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	err = scanFeed(ctx, file, func(row itemRow) error {
		if likelyDupe(earlier, current, row.name) {
			dupes++
			_, err := conn.Exec(ctx,
				`INSERT INTO inventory_items (id, name, quantity, low_stock_threshold, unit_price, created_at, updated_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $6)
				 ON CONFLICT (name) DO NOTHING`,
				uuid.New().String(), row.name, row.quantity, row.threshold, row.price, now,
			)
			return err
		}

		fresh++
		batch = append(batch, []any{
			uuid.New().String(), row.name, row.quantity, row.threshold, row.price, now, now,
		})
		if len(batch) >= copyBatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	if err := flush(); err != nil {
		return 0, 0, err
	}
	return fresh, dupes, nil
}

// likelyDupe reports whether name may have been seen before, in an earlier
// feed or earlier in the current one, and records it in the current filter.
func likelyDupe(earlier []*bloom.BloomFilter, current *bloom.BloomFilter, name string) bool {
	dupe := current.TestString(name)
	for _, f := range earlier {
		if dupe {
			break
		}
		dupe = f.TestString(name)
	}
	current.AddString(name)
	return dupe
}

// scanFeed streams a gzipped CSV feed line by line.
func scanFeed(ctx context.Context, file string, fn func(row itemRow) error) error {
	f, err := os.Open(file)
	if err != nil {
		return errors.Wrap(err, "open")
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrap(err, "gzip reader")
	}
	defer gz.Close()

	sc := bufio.NewScanner(gz)
	line := 0
	for sc.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}

		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		row, err := parseLine(text)
		if err != nil {
			return errors.Wrapf(err, "line %d", line)
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return sc.Err()
}

func parseLine(text string) (itemRow, error) {
	parts := strings.Split(text, ",")
	if len(parts) != 4 {
		return itemRow{}, errors.Errorf("expected 4 fields, got %d", len(parts))
	}

	qty, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || qty < 0 {
		return itemRow{}, errors.Errorf("bad quantity %q", parts[1])
	}
	threshold, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil || threshold < 0 {
		return itemRow{}, errors.Errorf("bad threshold %q", parts[2])
	}
	price, err := decimal.NewFromString(strings.TrimSpace(parts[3]))
	if err != nil || price.IsNegative() {
		return itemRow{}, errors.Errorf("bad price %q", parts[3])
	}

	return itemRow{
		name:      strings.TrimSpace(parts[0]),
		quantity:  qty,
		threshold: threshold,
		price:     price,
	}, nil
}
