// Command seed-db applies the schema and upserts a product catalog into
// PostgreSQL.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"

	"github.com/xenking/freshcart/internal/domain/product"
	"github.com/xenking/freshcart/internal/storage/postgres"
	"github.com/xenking/freshcart/internal/storage/seed"
)

func main() {
	var (
		databaseURL  string
		productsFile string
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "", "catalog JSON file, optionally .gz; the embedded catalog when empty")
	flag.Parse()

	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		if databaseURL == "" {
			databaseURL = os.Getenv("DATABASE_URL")
		}
		if databaseURL == "" {
			return errors.New("database URL is required: set --database-url or DATABASE_URL")
		}
		return run(ctx, lg, databaseURL, productsFile)
	})
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, productsFile string) error {
	products, err := loadProducts(lg, productsFile)
	if err != nil {
		return errors.Wrap(err, "load products")
	}

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	if err := postgres.NewProductRepository(pool).Upsert(ctx, products); err != nil {
		return errors.Wrap(err, "upsert products")
	}
	lg.Info("Seed completed", zap.Int("products", len(products)))
	return nil
}

func loadProducts(lg *zap.Logger, path string) ([]product.Product, error) {
	if path == "" {
		lg.Info("Using embedded catalog")
		return seed.Products()
	}

	lg.Info("Reading catalog file", zap.String("path", path))
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip")
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read")
	}
	return seed.Decode(data)
}
