package migration

import (
	"github.com/bwmarrin/snowflake"
	"github.com/edusuite/billing/internal/config"
	"github.com/edusuite/billing/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, node *snowflake.Node) error {
		// The embedded migrations are postgres SQL; other dialects
		// (sqlite in tests) create their schema by hand.
		if cfg.DBType != "postgres" {
			return nil
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}

		if err := RunMigrations(sqlDB); err != nil {
			return err
		}

		if cfg.Environment != "production" {
			return seed.EnsureDemoSchool(conn, node)
		}
		return nil
	}),
)
