package commands

import (
	"context"
	"errors"

	"github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/logger"
	postgresstore "github.com/nick-gallo-ethico/risk-intelligence-platform-sub018/internal/store/postgres"
)

type MigrateCmd struct {
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`
}

func (c *MigrateCmd) Validate() error {
	if c.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

func (c *MigrateCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx := context.Background()

	pool, err := postgresstore.NewPool(ctx, &postgresstore.PoolConfig{
		ConnString: c.ConnString,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgresstore.RunMigrations(ctx, pool); err != nil {
		return err
	}

	log.Info().Msg("Migrations applied")
	return nil
}
