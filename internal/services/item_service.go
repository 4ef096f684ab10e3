package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/eshop/internal/models"
)

// ItemService manages catalog items and their property values.
type ItemService struct {
	db   *gorm.DB
	sync PropertySync
}

// NewItemService constructs ItemService.
func NewItemService(db *gorm.DB) *ItemService {
	return &ItemService{db: db}
}

// ItemInput carries the editable fields of an item. Quantity is honored on
// create only; later stock changes go through imports and orders.
type ItemInput struct {
	Name        string
	Description string
	Image       string
	CategoryID  uuid.UUID
	Price       decimal.Decimal
	OldPrice    decimal.NullDecimal
	Length      float64
	Width       float64
	Height      float64
	Weight      float64
	Quantity    int
}

// ItemQuery narrows item listings. Facets maps filter keys to the accepted
// value slugs: items must match every key and any value within a key.
type ItemQuery struct {
	CategoryID *uuid.UUID
	Name       string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	MinWeight  *float64
	MaxWeight  *float64
	Facets     map[string][]string
	Limit      int
	Offset     int
}

// Create persists an item in a leaf category and gives it one empty
// property per filter bound there.
func (s *ItemService) Create(ctx context.Context, in ItemInput) (*models.Item, error) {
	if in.Quantity < 0 {
		return nil, fmt.Errorf("%w: initial stock %d", ErrInvalidQuantity, in.Quantity)
	}

	item := &models.Item{}
	applyItemInput(item, in)
	item.Quantity = in.Quantity

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireLeaf(tx, in.CategoryID); err != nil {
			return err
		}
		if err := tx.Omit("Category", "Properties").Create(item).Error; err != nil {
			return err
		}
		return s.sync.ItemCreated(tx, item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Update applies in to an item. Moving it to another category reconciles
// its properties against the previously stored category.
func (s *ItemService) Update(ctx context.Context, id uuid.UUID, in ItemInput) (*models.Item, error) {
	var item models.Item
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, "id = ?", id).Error; err != nil {
			return err
		}
		previousCategory := item.CategoryID

		if in.CategoryID != previousCategory {
			if err := requireLeaf(tx, in.CategoryID); err != nil {
				return err
			}
		}

		applyItemInput(&item, in)
		if err := tx.Omit("Category", "Properties").Save(&item).Error; err != nil {
			return err
		}

		if previousCategory != item.CategoryID {
			return s.sync.ItemMoved(tx, item.ID, previousCategory, item.CategoryID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func applyItemInput(item *models.Item, in ItemInput) {
	item.Name = in.Name
	item.Description = in.Description
	item.CategoryID = in.CategoryID
	item.Price = in.Price
	item.OldPrice = in.OldPrice
	item.Length = in.Length
	item.Width = in.Width
	item.Height = in.Height
	item.Weight = in.Weight

	switch {
	case in.Image != "":
		item.Image = in.Image
	case item.Image == "":
		item.Image = models.DefaultImage
	}
}

func requireLeaf(tx *gorm.DB, categoryID uuid.UUID) error {
	var category models.Category
	if err := tx.First(&category, "id = ?", categoryID).Error; err != nil {
		return err
	}
	if category.Node {
		return fmt.Errorf("%w: %q is a node category and cannot hold items", ErrHierarchyType, category.Name)
	}
	return nil
}

// Delete removes an item. Order lines referencing it keep their snapshot.
func (s *ItemService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&models.Item{}, "id = ?", id).Error; err != nil {
			return err
		}
		return deleteItems(tx, []uuid.UUID{id})
	})
}

func deleteItems(tx *gorm.DB, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	if err := tx.Model(&models.OrderItem{}).Where("item_id IN ?", ids).Update("item_id", nil).Error; err != nil {
		return err
	}

	dependents := []interface{}{
		&models.ItemBasket{},
		&models.ItemProperty{},
		&models.ImportItem{},
		&models.InventoryMovement{},
	}
	for _, model := range dependents {
		if err := tx.Where("item_id IN ?", ids).Delete(model).Error; err != nil {
			return err
		}
	}

	return tx.Where("id IN ?", ids).Delete(&models.Item{}).Error
}

// Get loads an item with its category and properties.
func (s *ItemService) Get(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	err := s.db.WithContext(ctx).
		Preload("Category").
		Preload("Properties.Filter").
		Preload("Properties.Value").
		First(&item, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// List returns a page of items matching q and the total match count.
func (s *ItemService) List(ctx context.Context, q ItemQuery) ([]models.Item, int64, error) {
	db := s.db.WithContext(ctx)
	query := db.Model(&models.Item{})

	if q.CategoryID != nil {
		query = query.Where("items.category_id = ?", *q.CategoryID)
	}
	if name := strings.TrimSpace(q.Name); name != "" {
		query = query.Where("LOWER(items.name) LIKE ?", "%"+strings.ToLower(name)+"%")
	}
	if q.MinPrice != nil {
		query = query.Where("items.price >= ?", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		query = query.Where("items.price <= ?", *q.MaxPrice)
	}
	if q.MinWeight != nil {
		query = query.Where("items.weight >= ?", *q.MinWeight)
	}
	if q.MaxWeight != nil {
		query = query.Where("items.weight <= ?", *q.MaxWeight)
	}

	facets, err := s.facetSubquery(db, q)
	if err != nil {
		return nil, 0, err
	}
	if facets != nil {
		query = query.Where("items.id IN (?)", facets)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	var items []models.Item
	err = query.
		Preload("Properties.Filter").
		Preload("Properties.Value").
		Order("items.created_at DESC").
		Limit(limit).
		Offset(q.Offset).
		Find(&items).Error
	return items, total, err
}

// facetSubquery selects the ids of items matching every requested facet.
// Keys that name no filter (or no filter bound to the queried category)
// are ignored.
func (s *ItemService) facetSubquery(db *gorm.DB, q ItemQuery) (*gorm.DB, error) {
	keys := make([]string, 0, len(q.Facets))
	for key, values := range q.Facets {
		if len(nonEmpty(values)) > 0 {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)

	filterQuery := db.Model(&models.Filter{}).Where("filters.key IN ?", keys)
	if q.CategoryID != nil {
		filterQuery = filterQuery.
			Joins("JOIN category_filters ON category_filters.filter_id = filters.id").
			Where("category_filters.category_id = ?", *q.CategoryID)
	}

	var filters []models.Filter
	if err := filterQuery.Select("filters.id", "filters.key").Find(&filters).Error; err != nil {
		return nil, err
	}
	if len(filters) == 0 {
		return nil, nil
	}

	clauses := make([]string, 0, len(filters))
	args := make([]interface{}, 0, len(filters)*2)
	for _, filter := range filters {
		clauses = append(clauses, "(item_properties.filter_id = ? AND category_filter_values.value IN ?)")
		args = append(args, filter.ID, nonEmpty(q.Facets[filter.Key]))
	}

	return db.Model(&models.ItemProperty{}).
		Select("item_properties.item_id").
		Joins("JOIN category_filter_values ON category_filter_values.id = item_properties.value_id").
		Where(strings.Join(clauses, " OR "), args...).
		Group("item_properties.item_id").
		Having("COUNT(DISTINCT item_properties.filter_id) = ?", len(filters)), nil
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// SetProperty assigns valueID to the item's property for filterID, or clears
// it when valueID is nil. The value must belong to the item's category and
// the same filter.
func (s *ItemService) SetProperty(ctx context.Context, itemID, filterID uuid.UUID, valueID *uuid.UUID) (*models.ItemProperty, error) {
	var property models.ItemProperty
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.Item
		if err := tx.First(&item, "id = ?", itemID).Error; err != nil {
			return err
		}
		if err := tx.First(&property, "item_id = ? AND filter_id = ?", itemID, filterID).Error; err != nil {
			return err
		}

		if valueID != nil {
			var value models.CategoryFilterValue
			if err := tx.First(&value, "id = ?", *valueID).Error; err != nil {
				return err
			}
			if value.CategoryID != item.CategoryID || value.FilterID != filterID {
				return fmt.Errorf("%w: value %q cannot be assigned to %q", ErrInvalidPropertyValue, value.Name, item.Name)
			}
		}

		property.ValueID = valueID
		return tx.Model(&property).Update("value_id", valueID).Error
	})
	if err != nil {
		return nil, err
	}
	return &property, nil
}
