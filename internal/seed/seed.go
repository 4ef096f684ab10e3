package seed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"

	"github.com/go-faker/faker/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/eshop/internal/models"
	"github.com/example/eshop/internal/services"
)

// Options controls how much demo data is generated.
type Options struct {
	Categories    int
	Items         int
	AdminEmail    string
	AdminPassword string
}

var demoFilters = map[string][]string{
	"Color":    {"Black", "White", "Red", "Blue"},
	"Material": {"Steel", "Plastic", "Wood"},
}

// Run fills the catalog with demo data through the regular services so
// every invariant holds for the generated rows.
func Run(ctx context.Context, db *gorm.DB, opts Options) error {
	baskets := services.NewBasketService(db)
	accounts := services.NewAccountService(db, baskets)
	categories := services.NewCategoryService(db)
	filters := services.NewFilterService(db)
	items := services.NewItemService(db)
	imports := services.NewImportService(db)

	if opts.AdminEmail != "" {
		_, _, err := accounts.Register(ctx, services.RegisterInput{
			Email:     opts.AdminEmail,
			Password:  opts.AdminPassword,
			FirstName: "Admin",
			IsStaff:   true,
		})
		switch {
		case errors.Is(err, services.ErrDuplicateKey):
			log.Printf("[Seed] Admin %s already exists", opts.AdminEmail)
		case err != nil:
			return err
		default:
			log.Printf("[Seed] Created admin %s", opts.AdminEmail)
		}
	}

	filterIDs := make(map[string]models.Filter, len(demoFilters))
	for name := range demoFilters {
		filter, err := filters.CreateFilter(ctx, name)
		if errors.Is(err, services.ErrDuplicateKey) {
			var existing models.Filter
			if err := db.WithContext(ctx).First(&existing, "key = ?", services.FilterKey(name)).Error; err != nil {
				return err
			}
			filter = &existing
		} else if err != nil {
			return err
		}
		filterIDs[name] = *filter
	}

	root, err := categories.Create(ctx, services.CategoryInput{Name: "Catalog " + faker.Word(), Node: true})
	if err != nil {
		return err
	}

	var leaves []models.Category
	for i := 0; i < opts.Categories; i++ {
		leaf, err := categories.Create(ctx, services.CategoryInput{
			Name:             faker.Word() + " " + faker.Word(),
			ParentCategoryID: &root.ID,
		})
		if err != nil {
			return err
		}

		for name, filter := range filterIDs {
			if _, err := filters.Bind(ctx, leaf.ID, filter.ID); err != nil {
				return err
			}
			for _, value := range demoFilters[name] {
				if _, err := filters.CreateValue(ctx, leaf.ID, filter.ID, value); err != nil {
					return err
				}
			}
		}
		leaves = append(leaves, *leaf)
	}
	if len(leaves) == 0 {
		log.Printf("[Seed] No leaf categories requested, skipping items")
		return nil
	}

	var stock []services.ImportLine
	for i := 0; i < opts.Items; i++ {
		leaf := leaves[rand.Intn(len(leaves))]
		item, err := items.Create(ctx, services.ItemInput{
			Name:        faker.Name(),
			Description: faker.Paragraph(),
			CategoryID:  leaf.ID,
			Price:       decimal.NewFromFloat(float64(rand.Intn(100000)) / 100).Round(2),
			Weight:      float64(rand.Intn(5000)) / 1000,
			Length:      float64(rand.Intn(100)),
			Width:       float64(rand.Intn(100)),
			Height:      float64(rand.Intn(100)),
		})
		if err != nil {
			return err
		}

		views, err := filters.CategoryFilters(ctx, leaf.ID)
		if err != nil {
			return err
		}
		for _, view := range views {
			if len(view.Values) == 0 {
				continue
			}
			value := view.Values[rand.Intn(len(view.Values))]
			if _, err := items.SetProperty(ctx, item.ID, view.Filter.ID, &value.ID); err != nil {
				return err
			}
		}

		stock = append(stock, services.ImportLine{ItemID: item.ID, Quantity: rand.Intn(20) + 1})
	}

	if len(stock) > 0 {
		if _, err := imports.Create(ctx, fmt.Sprintf("Initial stock %s", faker.Date()), stock); err != nil {
			return err
		}
	}

	shop := models.Shop{
		Name:         faker.Word() + " store",
		AddressLine:  faker.Sentence(),
		Latitude:     faker.Latitude(),
		Longitude:    faker.Longitude(),
		WorkingHours: "09:00-21:00",
		ContactPhone: faker.Phonenumber(),
		IsActive:     true,
	}
	if err := db.WithContext(ctx).Create(&shop).Error; err != nil {
		return err
	}

	log.Printf("[Seed] Created %d categories, %d items and shop %q", len(leaves), opts.Items, shop.Name)
	return nil
}
