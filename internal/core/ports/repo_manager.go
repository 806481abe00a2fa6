package ports

import "github.com/satsub/satsub/internal/core/domain"

type RepoManager interface {
	Orders() domain.OrderRepository
	Close()
}
