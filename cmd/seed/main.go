// seed provisions tenants, owners and PIN staff from a YAML fixture into the
// configured Postgres database. Applying the same fixture twice is a no-op.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/fieldops-console/internal/config"
	"github.com/spec-kit/fieldops-console/internal/observability"
	"github.com/spec-kit/fieldops-console/internal/persistence"
	"github.com/spec-kit/fieldops-console/internal/repository"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		file    string
		dryRun  bool
		migrate bool
	)
	flagSet := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	flagSet.StringVarP(&file, "file", "f", "fixtures/seed.yaml", "YAML fixture to apply")
	flagSet.BoolVar(&dryRun, "dry-run", false, "validate the fixture without touching the database")
	flagSet.BoolVar(&migrate, "migrate", true, "run SQL migrations before seeding")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	fx, err := ParseFixture(data)
	if err != nil {
		return err
	}
	if dryRun {
		fmt.Printf("%s: %d tenants OK\n", file, len(fx.Tenants))
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("POSTGRES_DSN is required")
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return err
	}
	defer pg.Close()
	if migrate {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			return err
		}
	}

	seeder := NewSeeder(
		repository.NewTenantRepository(pg.PoolHandle()),
		repository.NewStaffRepository(pg.PoolHandle()),
		cfg.Auth.BcryptCost,
		logger,
	)
	sum, err := seeder.Apply(ctx, fx)
	if err != nil {
		return err
	}
	logger.Info("seed complete",
		zap.Int("tenants_created", sum.TenantsCreated),
		zap.Int("staff_created", sum.StaffCreated),
		zap.Int("skipped", sum.Skipped))
	return nil
}
