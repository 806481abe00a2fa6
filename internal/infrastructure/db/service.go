package db

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/satsub/satsub/internal/core/domain"
	"github.com/satsub/satsub/internal/core/ports"
	badgerdb "github.com/satsub/satsub/internal/infrastructure/db/badger"
	sqlitedb "github.com/satsub/satsub/internal/infrastructure/db/sqlite"
)

const (
	sqliteDbFile = "satsub.db"
)

var (
	allowedTypes = strings.Join([]string{"badger", "sqlite"}, ",")
)

type ServiceConfig struct {
	DbType   string
	DbConfig []any
}

type service struct {
	orderRepo domain.OrderRepository
}

func NewService(config ServiceConfig) (ports.RepoManager, error) {
	var (
		orderRepo domain.OrderRepository
		err       error
	)
	switch config.DbType {
	case "badger":
		if len(config.DbConfig) != 2 {
			return nil, fmt.Errorf("badger db config must have 2 elements, got %d", len(config.DbConfig))
		}
		baseDir, ok := config.DbConfig[0].(string)
		if !ok {
			return nil, fmt.Errorf("invalid base directory")
		}
		var logger badger.Logger
		if config.DbConfig[1] != nil {
			logger, ok = config.DbConfig[1].(badger.Logger)
			if !ok {
				return nil, fmt.Errorf("invalid logger")
			}
		}
		orderRepo, err = badgerdb.NewOrderRepository(baseDir, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open order db: %s", err)
		}
	case "sqlite":
		if len(config.DbConfig) != 1 {
			return nil, fmt.Errorf("sqlite db config must have 1 element, got %d", len(config.DbConfig))
		}
		dsn, ok := config.DbConfig[0].(string)
		if !ok {
			return nil, fmt.Errorf("invalid base directory")
		}
		// A directory is turned into the path of the db file within it.
		if len(dsn) > 0 && !strings.HasPrefix(dsn, "file:") {
			dsn = filepath.Join(dsn, sqliteDbFile)
		}
		orderRepo, err = sqlitedb.NewOrderRepository(dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open order db: %s", err)
		}
	default:
		return nil, fmt.Errorf("unsopported db type %s, please select one of %s", config.DbType, allowedTypes)
	}

	return &service{orderRepo}, nil
}

func (s *service) Orders() domain.OrderRepository {
	return s.orderRepo
}

func (s *service) Close() {
	s.orderRepo.Close()
}
