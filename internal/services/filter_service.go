package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"

	"github.com/example/eshop/internal/models"
)

// FilterService manages filters, their bindings to leaf categories and the
// per-category value lists.
type FilterService struct {
	db   *gorm.DB
	sync PropertySync
}

// NewFilterService constructs FilterService.
func NewFilterService(db *gorm.DB) *FilterService {
	return &FilterService{db: db}
}

// CategoryFilterView is a filter bound to a category with its values there.
type CategoryFilterView struct {
	BindingID uuid.UUID                    `json:"binding_id"`
	Filter    models.Filter                `json:"filter"`
	Values    []models.CategoryFilterValue `json:"values"`
}

// FilterKey derives the URL-safe key of a filter or value name.
func FilterKey(name string) string {
	return slug.Make(strings.TrimSpace(name))
}

// CreateFilter stores a filter with a key derived from its name.
func (s *FilterService) CreateFilter(ctx context.Context, name string) (*models.Filter, error) {
	filter := &models.Filter{Name: strings.TrimSpace(name), Key: FilterKey(name)}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUniqueFilterKey(tx, filter.Key, uuid.Nil); err != nil {
			return err
		}
		return tx.Create(filter).Error
	})
	if err != nil {
		return nil, err
	}
	return filter, nil
}

// RenameFilter renames a filter and re-derives its key.
func (s *FilterService) RenameFilter(ctx context.Context, id uuid.UUID, name string) (*models.Filter, error) {
	var filter models.Filter
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&filter, "id = ?", id).Error; err != nil {
			return err
		}
		filter.Name = strings.TrimSpace(name)
		filter.Key = FilterKey(name)
		if err := ensureUniqueFilterKey(tx, filter.Key, filter.ID); err != nil {
			return err
		}
		return tx.Save(&filter).Error
	})
	if err != nil {
		return nil, err
	}
	return &filter, nil
}

func ensureUniqueFilterKey(tx *gorm.DB, key string, exclude uuid.UUID) error {
	if key == "" {
		return fmt.Errorf("%w: filter name produces an empty key", ErrDuplicateKey)
	}
	var count int64
	if err := tx.Model(&models.Filter{}).Where("key = ? AND id <> ?", key, exclude).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: filter key %q already exists", ErrDuplicateKey, key)
	}
	return nil
}

// DeleteFilter removes a filter together with its bindings, values and item properties.
func (s *FilterService) DeleteFilter(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&models.Filter{}, "id = ?", id).Error; err != nil {
			return err
		}
		for _, model := range []interface{}{
			&models.ItemProperty{},
			&models.CategoryFilterValue{},
			&models.CategoryFilter{},
		} {
			if err := tx.Where("filter_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Filter{}, "id = ?", id).Error
	})
}

// ListFilters returns all filters ordered by name.
func (s *FilterService) ListFilters(ctx context.Context) ([]models.Filter, error) {
	var filters []models.Filter
	err := s.db.WithContext(ctx).Order("name").Find(&filters).Error
	return filters, err
}

// Bind attaches a filter to a leaf category and creates the matching
// property on each of its items.
func (s *FilterService) Bind(ctx context.Context, categoryID, filterID uuid.UUID) (*models.CategoryFilter, error) {
	binding := &models.CategoryFilter{CategoryID: categoryID, FilterID: filterID}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireLeaf(tx, categoryID); err != nil {
			return err
		}
		if err := tx.Select("id").First(&models.Filter{}, "id = ?", filterID).Error; err != nil {
			return err
		}
		if err := ensureUnbound(tx, categoryID, filterID, uuid.Nil); err != nil {
			return err
		}
		if err := tx.Omit("Filter").Create(binding).Error; err != nil {
			return err
		}
		return s.sync.BindingAdded(tx, categoryID, filterID)
	})
	if err != nil {
		return nil, err
	}
	return binding, nil
}

// Rebind points an existing binding at another filter. Properties of the
// category's items follow and lose their values, and the category's values
// of the previous filter are deleted.
func (s *FilterService) Rebind(ctx context.Context, bindingID, filterID uuid.UUID) (*models.CategoryFilter, error) {
	var binding models.CategoryFilter
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&binding, "id = ?", bindingID).Error; err != nil {
			return err
		}
		if binding.FilterID == filterID {
			return nil
		}
		if err := tx.Select("id").First(&models.Filter{}, "id = ?", filterID).Error; err != nil {
			return err
		}
		if err := ensureUnbound(tx, binding.CategoryID, filterID, binding.ID); err != nil {
			return err
		}

		previous := binding.FilterID
		binding.FilterID = filterID
		if err := tx.Model(&binding).Update("filter_id", filterID).Error; err != nil {
			return err
		}
		if err := s.sync.BindingRetargeted(tx, binding.CategoryID, previous, filterID); err != nil {
			return err
		}
		return deleteCategoryValues(tx, binding.CategoryID, previous)
	})
	if err != nil {
		return nil, err
	}
	return &binding, nil
}

// Unbind detaches a filter from its category and drops the related
// properties and values.
func (s *FilterService) Unbind(ctx context.Context, bindingID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var binding models.CategoryFilter
		if err := tx.First(&binding, "id = ?", bindingID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.CategoryFilter{}, "id = ?", binding.ID).Error; err != nil {
			return err
		}
		if err := s.sync.BindingRemoved(tx, binding.CategoryID, binding.FilterID); err != nil {
			return err
		}
		return deleteCategoryValues(tx, binding.CategoryID, binding.FilterID)
	})
}

func deleteCategoryValues(tx *gorm.DB, categoryID, filterID uuid.UUID) error {
	return tx.Where("category_id = ? AND filter_id = ?", categoryID, filterID).
		Delete(&models.CategoryFilterValue{}).Error
}

func ensureUnbound(tx *gorm.DB, categoryID, filterID, exclude uuid.UUID) error {
	var count int64
	if err := tx.Model(&models.CategoryFilter{}).
		Where("category_id = ? AND filter_id = ? AND id <> ?", categoryID, filterID, exclude).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: filter is already bound to this category", ErrDuplicateKey)
	}
	return nil
}

// CategoryFilters lists the filters bound to a category with their values.
func (s *FilterService) CategoryFilters(ctx context.Context, categoryID uuid.UUID) ([]CategoryFilterView, error) {
	db := s.db.WithContext(ctx)

	var bindings []models.CategoryFilter
	if err := db.Preload("Filter").
		Where("category_id = ?", categoryID).
		Order("created_at").
		Find(&bindings).Error; err != nil {
		return nil, err
	}

	var values []models.CategoryFilterValue
	if err := db.Where("category_id = ?", categoryID).Order("name").Find(&values).Error; err != nil {
		return nil, err
	}
	byFilter := make(map[uuid.UUID][]models.CategoryFilterValue)
	for _, value := range values {
		byFilter[value.FilterID] = append(byFilter[value.FilterID], value)
	}

	views := make([]CategoryFilterView, 0, len(bindings))
	for _, binding := range bindings {
		if binding.Filter == nil {
			continue
		}
		vals := byFilter[binding.FilterID]
		if vals == nil {
			vals = []models.CategoryFilterValue{}
		}
		views = append(views, CategoryFilterView{
			BindingID: binding.ID,
			Filter:    *binding.Filter,
			Values:    vals,
		})
	}
	return views, nil
}

// CreateValue adds a value to a filter within a leaf category. The stored
// value is the slug of name and must be unique for the pair.
func (s *FilterService) CreateValue(ctx context.Context, categoryID, filterID uuid.UUID, name string) (*models.CategoryFilterValue, error) {
	value := &models.CategoryFilterValue{
		CategoryID: categoryID,
		FilterID:   filterID,
		Name:       strings.TrimSpace(name),
		Value:      FilterKey(name),
	}
	if value.Value == "" {
		return nil, fmt.Errorf("%w: value name produces an empty slug", ErrDuplicateKey)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireLeaf(tx, categoryID); err != nil {
			return err
		}
		if err := tx.Select("id").First(&models.Filter{}, "id = ?", filterID).Error; err != nil {
			return err
		}

		var existing models.CategoryFilterValue
		err := tx.Where("category_id = ? AND filter_id = ? AND value = ?", categoryID, filterID, value.Value).
			First(&existing).Error
		if err == nil {
			return fmt.Errorf("%w: value %q already exists", ErrDuplicateKey, value.Value)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(value).Error
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// DeleteValue removes a value and clears it from every property using it.
func (s *FilterService) DeleteValue(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&models.CategoryFilterValue{}, "id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ItemProperty{}).Where("value_id = ?", id).Update("value_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.CategoryFilterValue{}, "id = ?", id).Error
	})
}
