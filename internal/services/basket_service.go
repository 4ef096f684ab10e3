package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/eshop/internal/models"
)

// BasketService manages baskets and their lines.
type BasketService struct {
	db *gorm.DB
}

// NewBasketService constructs BasketService.
func NewBasketService(db *gorm.DB) *BasketService {
	return &BasketService{db: db}
}

// BasketLine is a requested (item, quantity) pair.
type BasketLine struct {
	ItemID   uuid.UUID `json:"item_id" validate:"required"`
	Quantity int       `json:"quantity" validate:"gte=0"`
}

// BasketTotals are derived from basket lines and current stock.
type BasketTotals struct {
	Quantity      int             `json:"quantity"`
	StoreQuantity int             `json:"store_quantity"`
	Cost          decimal.Decimal `json:"cost"`
}

// BasketSummary is a basket with loaded lines and totals.
type BasketSummary struct {
	models.Basket
	BasketTotals
}

// Aggregate computes totals over lines whose Item is loaded. Only the part
// of each line covered by stock counts toward StoreQuantity and Cost.
func Aggregate(lines []models.ItemBasket) BasketTotals {
	totals := BasketTotals{Cost: decimal.Zero}
	for _, line := range lines {
		totals.Quantity += line.Quantity
		if line.Item == nil {
			continue
		}

		available := line.Quantity
		if line.Item.Quantity < available {
			available = line.Item.Quantity
		}
		if available < 0 {
			available = 0
		}

		totals.StoreQuantity += available
		totals.Cost = totals.Cost.Add(line.Item.Price.Mul(decimal.NewFromInt(int64(available))))
	}
	return totals
}

// CreateForUser creates the basket of a freshly registered user within tx.
func (s *BasketService) CreateForUser(tx *gorm.DB, userID uuid.UUID) (*models.Basket, error) {
	basket := &models.Basket{UserID: &userID}
	if err := tx.Create(basket).Error; err != nil {
		return nil, err
	}
	return basket, nil
}

// CreateAnonymous creates a basket owned by nobody.
func (s *BasketService) CreateAnonymous(ctx context.Context) (*models.Basket, error) {
	basket := &models.Basket{}
	if err := s.db.WithContext(ctx).Create(basket).Error; err != nil {
		return nil, err
	}
	return basket, nil
}

// ForUser returns the basket of userID.
func (s *BasketService) ForUser(ctx context.Context, userID uuid.UUID) (*models.Basket, error) {
	var basket models.Basket
	if err := s.db.WithContext(ctx).First(&basket, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &basket, nil
}

// Resolve finds the basket for a request. Authenticated users get their own
// basket. Anonymous callers get the basket named by anonymousID as long as
// it belongs to nobody; otherwise a new anonymous basket is created.
func (s *BasketService) Resolve(ctx context.Context, userID *uuid.UUID, anonymousID string) (*models.Basket, error) {
	if userID != nil {
		return s.ForUser(ctx, *userID)
	}

	if id, err := uuid.Parse(anonymousID); err == nil {
		var basket models.Basket
		err := s.db.WithContext(ctx).First(&basket, "id = ? AND user_id IS NULL", id).Error
		if err == nil {
			return &basket, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	return s.CreateAnonymous(ctx)
}

// Summary loads the basket lines with their items and computes totals.
func (s *BasketService) Summary(ctx context.Context, basketID uuid.UUID) (*BasketSummary, error) {
	var basket models.Basket
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Preload("Items.Item").
		First(&basket, "id = ?", basketID).Error
	if err != nil {
		return nil, err
	}

	return &BasketSummary{Basket: basket, BasketTotals: Aggregate(basket.Items)}, nil
}

// AddItem increases the basket quantity of itemID by quantity. Stock is not
// checked here; it only limits the totals and the order step.
func (s *BasketService) AddItem(ctx context.Context, basketID, itemID uuid.UUID, quantity int) (*models.ItemBasket, error) {
	if quantity < 0 {
		return nil, fmt.Errorf("%w: cannot add %d items", ErrInvalidQuantity, quantity)
	}

	var line *models.ItemBasket
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		line, err = addToBasket(tx, basketID, itemID, quantity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// RemoveItem decreases the basket quantity of itemID, never below zero.
// removeAll drops the line regardless of quantity.
func (s *BasketService) RemoveItem(ctx context.Context, basketID, itemID uuid.UUID, quantity int, removeAll bool) (*models.ItemBasket, error) {
	if quantity < 0 {
		return nil, fmt.Errorf("%w: cannot remove %d items", ErrInvalidQuantity, quantity)
	}

	var line models.ItemBasket
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&line, "basket_id = ? AND item_id = ?", basketID, itemID).Error; err != nil {
			return err
		}

		if removeAll || quantity > line.Quantity {
			quantity = line.Quantity
		}
		line.Quantity -= quantity
		return saveBasketLine(tx, &line)
	})
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// Sync raises basket quantities to at least the requested ones. Lines are
// never lowered and every line is applied or none is.
func (s *BasketService) Sync(ctx context.Context, basketID uuid.UUID, lines []BasketLine) error {
	for _, line := range lines {
		if line.Quantity < 0 {
			return fmt.Errorf("%w: cannot sync %d items", ErrInvalidQuantity, line.Quantity)
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&models.Basket{}, "id = ?", basketID).Error; err != nil {
			return err
		}

		var rows []models.ItemBasket
		if err := tx.Where("basket_id = ?", basketID).Find(&rows).Error; err != nil {
			return err
		}
		current := make(map[uuid.UUID]int, len(rows))
		for _, row := range rows {
			current[row.ItemID] = row.Quantity
		}

		for _, line := range lines {
			diff := line.Quantity - current[line.ItemID]
			if _, ok := current[line.ItemID]; ok && diff <= 0 {
				continue
			}

			row, err := addToBasket(tx, basketID, line.ItemID, diff)
			if err != nil {
				return err
			}
			if row.Quantity > 0 {
				current[line.ItemID] = row.Quantity
			}
		}
		return nil
	})
}

// Clear empties the basket.
func (s *BasketService) Clear(ctx context.Context, basketID uuid.UUID) error {
	return clearBasket(s.db.WithContext(ctx), basketID)
}

func clearBasket(tx *gorm.DB, basketID uuid.UUID) error {
	return tx.Where("basket_id = ?", basketID).Delete(&models.ItemBasket{}).Error
}

func addToBasket(tx *gorm.DB, basketID, itemID uuid.UUID, quantity int) (*models.ItemBasket, error) {
	if err := tx.Select("id").First(&models.Basket{}, "id = ?", basketID).Error; err != nil {
		return nil, err
	}
	if err := tx.Select("id").First(&models.Item{}, "id = ?", itemID).Error; err != nil {
		return nil, err
	}

	var line models.ItemBasket
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&line, "basket_id = ? AND item_id = ?", basketID, itemID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		line = models.ItemBasket{BasketID: basketID, ItemID: itemID}
	case err != nil:
		return nil, err
	}

	line.Quantity += quantity
	if err := saveBasketLine(tx, &line); err != nil {
		return nil, err
	}
	return &line, nil
}

// saveBasketLine persists line, deleting it once its quantity reaches zero.
func saveBasketLine(tx *gorm.DB, line *models.ItemBasket) error {
	if line.Quantity <= 0 {
		if line.ID == uuid.Nil {
			return nil
		}
		return tx.Delete(&models.ItemBasket{}, "id = ?", line.ID).Error
	}
	if line.ID == uuid.Nil {
		return tx.Omit("Item").Create(line).Error
	}
	return tx.Model(line).Update("quantity", line.Quantity).Error
}
