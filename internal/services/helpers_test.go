package services

import (
	"context"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/eshop/internal/database"
	"github.com/example/eshop/internal/models"
)

type fixture struct {
	t          *testing.T
	ctx        context.Context
	db         *gorm.DB
	categories *CategoryService
	filters    *FilterService
	items      *ItemService
	ledger     *InventoryLedger
	baskets    *BasketService
	orders     *OrderService
	imports    *ImportService
	accounts   *AccountService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "eshop.db") + "?_pragma=busy_timeout(5000)"
	db, err := database.Open(dsn, "silent")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newTestDB(t)
	baskets := NewBasketService(db)
	return &fixture{
		t:          t,
		ctx:        context.Background(),
		db:         db,
		categories: NewCategoryService(db),
		filters:    NewFilterService(db),
		items:      NewItemService(db),
		ledger:     NewInventoryLedger(db),
		baskets:    baskets,
		orders:     NewOrderService(db, nil),
		imports:    NewImportService(db),
		accounts:   NewAccountService(db, baskets),
	}
}

func (f *fixture) node(name string, parent *uuid.UUID) *models.Category {
	f.t.Helper()
	category, err := f.categories.Create(f.ctx, CategoryInput{Name: name, ParentCategoryID: parent, Node: true})
	require.NoError(f.t, err)
	return category
}

func (f *fixture) leaf(name string, parent *uuid.UUID) *models.Category {
	f.t.Helper()
	category, err := f.categories.Create(f.ctx, CategoryInput{Name: name, ParentCategoryID: parent})
	require.NoError(f.t, err)
	return category
}

func (f *fixture) filter(name string) *models.Filter {
	f.t.Helper()
	filter, err := f.filters.CreateFilter(f.ctx, name)
	require.NoError(f.t, err)
	return filter
}

func (f *fixture) bind(categoryID, filterID uuid.UUID) *models.CategoryFilter {
	f.t.Helper()
	binding, err := f.filters.Bind(f.ctx, categoryID, filterID)
	require.NoError(f.t, err)
	return binding
}

func (f *fixture) value(categoryID, filterID uuid.UUID, name string) *models.CategoryFilterValue {
	f.t.Helper()
	value, err := f.filters.CreateValue(f.ctx, categoryID, filterID, name)
	require.NoError(f.t, err)
	return value
}

func (f *fixture) item(categoryID uuid.UUID, name, price string, quantity int) *models.Item {
	f.t.Helper()
	item, err := f.items.Create(f.ctx, ItemInput{
		Name:       name,
		CategoryID: categoryID,
		Price:      decimal.RequireFromString(price),
		Quantity:   quantity,
	})
	require.NoError(f.t, err)
	return item
}

func (f *fixture) shop() *models.Shop {
	f.t.Helper()
	shop := &models.Shop{Name: "Main street", AddressLine: "1 Main street", IsActive: true}
	require.NoError(f.t, f.db.Create(shop).Error)
	return shop
}

func (f *fixture) basket() *models.Basket {
	f.t.Helper()
	basket, err := f.baskets.CreateAnonymous(f.ctx)
	require.NoError(f.t, err)
	return basket
}

func (f *fixture) stock(itemID uuid.UUID) int {
	f.t.Helper()
	var item models.Item
	require.NoError(f.t, f.db.First(&item, "id = ?", itemID).Error)
	return item.Quantity
}

// propertyFilters returns the sorted filter ids of the item's properties.
func (f *fixture) propertyFilters(itemID uuid.UUID) []string {
	f.t.Helper()
	var ids []uuid.UUID
	require.NoError(f.t, f.db.Model(&models.ItemProperty{}).Where("item_id = ?", itemID).Pluck("filter_id", &ids).Error)
	return sortedStrings(ids)
}

// boundFilters returns the sorted filter ids bound to the category.
func (f *fixture) boundFilters(categoryID uuid.UUID) []string {
	f.t.Helper()
	ids, err := boundFilterIDs(f.db, categoryID)
	require.NoError(f.t, err)
	return sortedStrings(ids)
}

func (f *fixture) property(itemID, filterID uuid.UUID) models.ItemProperty {
	f.t.Helper()
	var property models.ItemProperty
	require.NoError(f.t, f.db.First(&property, "item_id = ? AND filter_id = ?", itemID, filterID).Error)
	return property
}

func (f *fixture) count(model interface{}, query string, args ...interface{}) int64 {
	f.t.Helper()
	var n int64
	q := f.db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(f.t, q.Count(&n).Error)
	return n
}

func pickupOrder(shopID uuid.UUID) OrderInput {
	return OrderInput{
		Customer:     CustomerInput{Name: "Jane Doe", PhoneNumber: "+10000000000"},
		PickupShopID: &shopID,
	}
}

func sortedStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	sort.Strings(out)
	return out
}
