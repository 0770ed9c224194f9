// Command seed-db prepares the remote store: it seeds or resets the demo
// catalog, backfills legacy products and registers demo coupons and an admin
// API key.
package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"

	"github.com/xenking/storefront/db"
	appkg "github.com/xenking/storefront/internal/app"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/repository"
	"github.com/xenking/storefront/internal/seed"
	"github.com/xenking/storefront/internal/storage"
)

// Modes.
const (
	modeInitialize = "initialize"
	modeReset      = "reset"
	modeCheck      = "check"
	modeAddTest    = "add-test"
	modeBackfill   = "backfill"
)

type config struct {
	Mode         string `default:"initialize" usage:"initialize, reset, check, add-test or backfill" flag:"mode"`
	ProductsFile string `usage:"Catalog JSON file, optionally .gz (default: bundled demo catalog)" flag:"products-file"`
	APIKey       string `usage:"Admin API key to register (SHOP_SEED_API_KEY)" flag:"api-key"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (SHOP_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Store        appkg.StoreConfig
}

func loadConfig() (*config, error) {
	var cfg config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.Store.ApplyPlatformDefaults()
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("SHOP_SEED_API_KEY")
	}

	if cfg.Store.Backend == appkg.BackendMemory {
		return nil, errors.New("seeding the in-memory store has no effect: set SHOP_STORE_BACKEND to postgres or redis")
	}
	if err := cfg.Store.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := run(ctx, lg, cfg); err != nil {
			return errors.Wrapf(err, "seed %s", cfg.Mode)
		}
		lg.Info("Seed completed", zap.String("mode", cfg.Mode))
		return nil
	})
}

func run(ctx context.Context, lg *zap.Logger, cfg *config) error {
	catalog, err := readCatalog(cfg.ProductsFile)
	if err != nil {
		return err
	}

	store, closeStore, err := appkg.OpenStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	seeder := seed.NewSeeder(store, catalog)

	switch cfg.Mode {
	case modeInitialize:
		n, err := seeder.Initialize(ctx)
		if err != nil {
			return err
		}
		lg.Info("Products written", zap.Int("count", n))
		if err := seedCoupons(ctx, lg, store); err != nil {
			return err
		}
		return seedAPIKey(ctx, lg, store, cfg)
	case modeReset:
		n, err := seeder.Reset(ctx)
		if err != nil {
			return err
		}
		lg.Info("Catalog replaced", zap.Int("count", n))
		return nil
	case modeCheck:
		products, err := seeder.CheckProducts(ctx)
		if err != nil {
			return err
		}
		for _, p := range products {
			lg.Info("Product",
				zap.String("id", p.ID),
				zap.String("name", p.Name),
				zap.Stringer("price", p.Price),
				zap.Stringer("rating", p.Rating),
				zap.Int("reviews", len(p.Reviews)),
			)
		}
		lg.Info("Catalog checked", zap.Int("count", len(products)))
		return nil
	case modeAddTest:
		id, err := seeder.AddTestProduct(ctx)
		if err != nil {
			return err
		}
		lg.Info("Test product added", zap.String("id", id))
		return nil
	case modeBackfill:
		n, err := product.NewService(repository.NewProductRepository(store)).InitializeFields(ctx)
		if err != nil {
			return err
		}
		lg.Info("Products backfilled", zap.Int("count", n))
		return nil
	default:
		return errors.Errorf("unknown mode %q", cfg.Mode)
	}
}

// readCatalog parses path, or the bundled catalog when path is empty. Files
// ending in .gz are decompressed.
func readCatalog(path string) ([]storage.Record, error) {
	if path == "" {
		return seed.ParseCatalog(bytes.NewReader(db.SeedProducts))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open products file")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip stream")
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}

	catalog, err := seed.ParseCatalog(r)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return catalog, nil
}

func seedCoupons(ctx context.Context, lg *zap.Logger, store storage.Client) error {
	repo := repository.NewCouponRepository(store)
	for _, rule := range coupon.DemoRules() {
		if err := repo.Save(ctx, rule); err != nil {
			return errors.Wrapf(err, "save coupon %s", rule.Code)
		}
		lg.Info("Coupon saved", zap.String("code", rule.Code), zap.String("description", rule.Description))
	}
	return nil
}

func seedAPIKey(ctx context.Context, lg *zap.Logger, store storage.Client, cfg *config) error {
	if cfg.APIKey == "" {
		lg.Warn("No admin API key given, skipping")
		return nil
	}
	keys := auth.NewAuthenticator(repository.NewAPIKeyRepository(store), []byte(cfg.APIKeyPepper))
	if err := keys.Register(ctx, "admin", "Seeded admin key", cfg.APIKey, auth.ScopeCatalogWrite, auth.ScopeSeed); err != nil {
		return err
	}
	lg.Info("API key saved", zap.String("id", "admin"))
	return nil
}
