// Command seed fills the catalog with generated products for local
// development. It talks to PostgreSQL directly through the product service,
// so the API does not need to be running.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"

	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/repository/postgres"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/migrations"
	pkgconfig "github.com/utafrali/storefront/pkg/config"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/logger"
)

type seedConfig struct {
	Products int    `env:"SEED_PRODUCTS" envDefault:"50"`
	Seed     uint64 `env:"SEED_RANDOM_SEED" envDefault:"42"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	var seedCfg seedConfig
	if err := pkgconfig.Load(&seedCfg); err != nil {
		slog.Error("failed to load seed config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Service:     "storefront-seed",
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, &cfg.Postgres, log)
	if err != nil {
		log.Error("failed to connect to postgres", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		log.Error("failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	products := service.NewProductService(postgres.NewProductRepository(pool), log)
	faker := gofakeit.New(seedCfg.Seed)

	created := 0
	for i := 0; i < seedCfg.Products; i++ {
		in := randomProduct(faker)
		if _, err := products.Create(ctx, in); err != nil {
			log.Warn("skipping product", slog.String("name", in.Name), slog.String("error", err.Error()))
			continue
		}
		created++
	}

	log.Info("seed completed", slog.Int("products", created))
}

func randomProduct(f *gofakeit.Faker) service.ProductInput {
	price := decimal.NewFromFloat(f.Price(2, 500)).Round(2)
	in := service.ProductInput{
		Name:        f.ProductName(),
		Description: f.ProductDescription(),
		Category:    f.ProductCategory(),
		Price:       price,
		Stock:       f.Number(0, 250),
	}
	// Roughly one product in four is on sale.
	if f.Number(1, 4) == 1 {
		discount := decimal.NewFromInt(int64(f.Number(5, 40))).Div(decimal.NewFromInt(100))
		in.SalePrice = decimal.NewNullDecimal(price.Sub(price.Mul(discount)).Round(2))
	}
	return in
}
