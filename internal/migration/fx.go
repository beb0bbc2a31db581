package migration

import (
	"github.com/bwmarrin/snowflake"
	"github.com/trustcove/trustcove/internal/config"
	"github.com/trustcove/trustcove/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, genID *snowflake.Node) error {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}

		if err := RunMigrations(sqlDB); err != nil {
			return err
		}

		if cfg.BootstrapEnabled {
			return seed.EnsureBootstrapAdmin(conn, genID, seed.BootstrapConfig{
				AdminEmail:    cfg.BootstrapAdminEmail,
				AdminPassword: cfg.BootstrapAdminPassword,
			})
		}
		return nil
	}),
)
