package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/eshop/internal/models"
)

// InventoryLedger is the only writer of Item.Quantity after creation.
type InventoryLedger struct {
	db *gorm.DB
}

// NewInventoryLedger constructs InventoryLedger.
func NewInventoryLedger(db *gorm.DB) *InventoryLedger {
	return &InventoryLedger{db: db}
}

// Adjust changes the stock of itemID by delta inside tx and records the
// movement. A decrement that would drive stock below zero fails with
// ErrInsufficientStock and writes nothing.
func (l *InventoryLedger) Adjust(tx *gorm.DB, itemID uuid.UUID, delta int, reason string, referenceID *uuid.UUID) (int, error) {
	if delta == 0 {
		var item models.Item
		err := tx.Select("id", "quantity").First(&item, "id = ?", itemID).Error
		return item.Quantity, err
	}

	query := tx.Model(&models.Item{}).Where("id = ?", itemID)
	if delta < 0 {
		query = query.Where("quantity >= ?", -delta)
	}
	res := query.Update("quantity", gorm.Expr("quantity + ?", delta))
	if res.Error != nil {
		return 0, res.Error
	}

	var item models.Item
	if err := tx.Select("id", "name", "quantity").First(&item, "id = ?", itemID).Error; err != nil {
		return 0, err
	}
	if res.RowsAffected == 0 {
		return item.Quantity, fmt.Errorf("%w: %q has %d in stock, %d requested", ErrInsufficientStock, item.Name, item.Quantity, -delta)
	}

	movement := models.InventoryMovement{
		ItemID:        itemID,
		Delta:         delta,
		QuantityAfter: item.Quantity,
		Reason:        reason,
		ReferenceID:   referenceID,
	}
	if err := tx.Create(&movement).Error; err != nil {
		return 0, err
	}

	return item.Quantity, nil
}

// Movements lists the stock history of an item, newest first.
func (l *InventoryLedger) Movements(ctx context.Context, itemID uuid.UUID, limit, offset int) ([]models.InventoryMovement, int64, error) {
	db := l.db.WithContext(ctx)

	if err := db.Select("id").First(&models.Item{}, "id = ?", itemID).Error; err != nil {
		return nil, 0, err
	}

	query := db.Model(&models.InventoryMovement{}).Where("item_id = ?", itemID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var movements []models.InventoryMovement
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&movements).Error
	return movements, total, err
}

// LowStock lists items at or below threshold, scarcest first.
func (l *InventoryLedger) LowStock(ctx context.Context, threshold, limit int) ([]models.Item, error) {
	var items []models.Item
	err := l.db.WithContext(ctx).
		Where("quantity <= ?", threshold).
		Order("quantity ASC, name ASC").
		Limit(limit).
		Find(&items).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return items, err
}
