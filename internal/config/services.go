package config

import (
	"context"
	"fmt"

	"github.com/satsub/satsub/internal/core/ports"
	"github.com/satsub/satsub/internal/infrastructure/blocksat"
	"github.com/satsub/satsub/internal/infrastructure/db"
	scheduler "github.com/satsub/satsub/internal/infrastructure/scheduler/gocron"
	"github.com/satsub/satsub/internal/infrastructure/submarine"
	"github.com/satsub/satsub/internal/infrastructure/wallet/bitcoind"
	"github.com/satsub/satsub/internal/infrastructure/wallet/lnd"
	log "github.com/sirupsen/logrus"
)

func (c *Config) RepoManager() (ports.RepoManager, error) {
	dbConfig := []any{c.DbDir()}
	if c.DbType == "badger" {
		dbConfig = append(dbConfig, log.New())
	}
	if err := makeDirectoryIfNotExists(c.DbDir()); err != nil {
		return nil, err
	}
	return db.NewService(db.ServiceConfig{
		DbType:   c.DbType,
		DbConfig: dbConfig,
	})
}

func (c *Config) BroadcastService() (ports.BroadcastService, error) {
	return blocksat.NewService(c.SatelliteURL)
}

func (c *Config) SwapService() (ports.SwapService, error) {
	return submarine.NewService(c.SwapURL)
}

func (c *Config) WalletService(ctx context.Context) (ports.WalletService, error) {
	switch c.WalletType {
	case "bitcoind":
		return bitcoind.NewService(bitcoind.Config{
			Host:     c.BitcoindHost,
			User:     c.BitcoindUser,
			Password: c.BitcoindPassword,
			Network:  string(c.Network),
		})
	case "lnd":
		return lnd.NewService(ctx, c.LndURL)
	default:
		return nil, fmt.Errorf("unknown wallet type %s", c.WalletType)
	}
}

func (c *Config) SchedulerService() ports.SchedulerService {
	return scheduler.NewScheduler(c.EsploraURL)
}
