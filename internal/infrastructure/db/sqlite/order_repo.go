package sqlitedb

import (
	"context"
	"errors"
	"fmt"

	"github.com/satsub/satsub/internal/core/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository opens the sqlite database at dsn and migrates its
// tables.
func NewOrderRepository(dsn string) (domain.OrderRepository, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	if err := db.AutoMigrate(&orderModel{}, &broadcastModel{}, &swapModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite db: %w", err)
	}
	return &orderRepository{db}, nil
}

func (r *orderRepository) Add(ctx context.Context, order domain.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&orderModel{}).Where("id = ?", order.Id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("order %s already exists", order.Id)
		}
		if err := tx.Create(toOrderModel(order)).Error; err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}
		return upsertRecords(tx, order)
	})
}

func (r *orderRepository) Update(ctx context.Context, order domain.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&orderModel{}).Where("id = ?", order.Id).
			Select("*").Updates(toOrderModel(order))
		if res.Error != nil {
			return fmt.Errorf("failed to update order: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, order.Id)
		}
		return upsertRecords(tx, order)
	})
}

func (r *orderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	var model orderModel
	err := r.db.WithContext(ctx).
		Preload("Broadcast").Preload("Swap").
		First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	order := model.toOrder()
	return &order, nil
}

func (r *orderRepository) GetAll(ctx context.Context) ([]domain.Order, error) {
	var models []orderModel
	if err := r.db.WithContext(ctx).
		Preload("Broadcast").Preload("Swap").
		Order("created_at").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to get all orders: %w", err)
	}
	return toOrders(models), nil
}

func (r *orderRepository) GetByStatus(
	ctx context.Context, status domain.OrderStatus,
) ([]domain.Order, error) {
	var models []orderModel
	if err := r.db.WithContext(ctx).
		Preload("Broadcast").Preload("Swap").
		Where("status = ?", int(status)).
		Order("created_at").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to get orders by status: %w", err)
	}
	return toOrders(models), nil
}

func (r *orderRepository) Close() {
	if sqlDB, err := r.db.DB(); err == nil {
		// nolint:all
		sqlDB.Close()
	}
}

func upsertRecords(tx *gorm.DB, order domain.Order) error {
	upsert := tx.Clauses(clause.OnConflict{UpdateAll: true})
	if order.Broadcast != nil {
		if err := upsert.Create(toBroadcastModel(order.Id, *order.Broadcast)).Error; err != nil {
			return fmt.Errorf("failed to store broadcast order: %w", err)
		}
	}
	if order.Swap != nil {
		if err := upsert.Create(toSwapModel(order.Id, *order.Swap)).Error; err != nil {
			return fmt.Errorf("failed to store swap: %w", err)
		}
	}
	return nil
}

func toOrders(models []orderModel) []domain.Order {
	orders := make([]domain.Order, 0, len(models))
	for _, model := range models {
		orders = append(orders, model.toOrder())
	}
	return orders
}
