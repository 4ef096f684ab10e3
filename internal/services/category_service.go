package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/eshop/internal/models"
)

// CategoryService owns the category tree and its invariants.
type CategoryService struct {
	db *gorm.DB
}

// NewCategoryService constructs CategoryService.
func NewCategoryService(db *gorm.DB) *CategoryService {
	return &CategoryService{db: db}
}

// CategoryInput carries the editable fields of a category.
type CategoryInput struct {
	Name             string
	Image            string
	ParentCategoryID *uuid.UUID
	Node             bool
}

// Create validates and persists a new category.
func (s *CategoryService) Create(ctx context.Context, in CategoryInput) (*models.Category, error) {
	category := &models.Category{
		Name:             in.Name,
		Image:            in.Image,
		ParentCategoryID: in.ParentCategoryID,
		Node:             in.Node,
	}
	if category.Image == "" {
		category.Image = models.DefaultImage
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := validateCategory(tx, category); err != nil {
			return err
		}
		return tx.Omit("SubCategories").Create(category).Error
	})
	if err != nil {
		return nil, err
	}
	return category, nil
}

// Update applies in to an existing category after re-validating the tree.
func (s *CategoryService) Update(ctx context.Context, id uuid.UUID, in CategoryInput) (*models.Category, error) {
	var category models.Category
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&category, "id = ?", id).Error; err != nil {
			return err
		}

		category.Name = in.Name
		category.ParentCategoryID = in.ParentCategoryID
		category.Node = in.Node
		if in.Image != "" {
			category.Image = in.Image
		}

		if err := validateCategory(tx, &category); err != nil {
			return err
		}
		return tx.Omit("SubCategories").Save(&category).Error
	})
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// Validate checks category against the tree without writing anything.
func (s *CategoryService) Validate(ctx context.Context, category *models.Category) error {
	return validateCategory(s.db.WithContext(ctx), category)
}

func validateCategory(tx *gorm.DB, category *models.Category) error {
	if category.ParentCategoryID != nil {
		parentID := *category.ParentCategoryID
		if category.ID != uuid.Nil && parentID == category.ID {
			return fmt.Errorf("%w: category %q is set as its own parent", ErrCycle, category.Name)
		}

		var parent models.Category
		if err := tx.First(&parent, "id = ?", parentID).Error; err != nil {
			return err
		}
		if !parent.Node {
			return fmt.Errorf("%w: parent %q is a leaf category and cannot hold subcategories", ErrHierarchyType, parent.Name)
		}

		if category.ID != uuid.Nil {
			reached, err := ancestorReaches(tx, parentID, category.ID)
			if err != nil {
				return err
			}
			if reached {
				return fmt.Errorf("%w: %q is an ancestor of its new parent %q", ErrCycle, category.Name, parent.Name)
			}
		}
	}

	// A new category has no children yet.
	if category.ID == uuid.Nil {
		return nil
	}

	if category.Node {
		var items int64
		if err := tx.Model(&models.Item{}).Where("category_id = ?", category.ID).Count(&items).Error; err != nil {
			return err
		}
		if items > 0 {
			return fmt.Errorf("%w: %q holds %d items and cannot become a node category", ErrHierarchyType, category.Name, items)
		}

		var bindings int64
		if err := tx.Model(&models.CategoryFilter{}).Where("category_id = ?", category.ID).Count(&bindings).Error; err != nil {
			return err
		}
		if bindings > 0 {
			return fmt.Errorf("%w: %q has %d bound filters and cannot become a node category", ErrHierarchyType, category.Name, bindings)
		}
		return nil
	}

	var children int64
	if err := tx.Model(&models.Category{}).Where("parent_category_id = ?", category.ID).Count(&children).Error; err != nil {
		return err
	}
	if children > 0 {
		return fmt.Errorf("%w: %q holds %d subcategories and cannot become a leaf category", ErrHierarchyType, category.Name, children)
	}
	return nil
}

// ancestorReaches walks parent references from start and reports whether
// target is met. The visited set stops the walk on a corrupted loop that
// does not contain target.
func ancestorReaches(tx *gorm.DB, start, target uuid.UUID) (bool, error) {
	visited := make(map[uuid.UUID]struct{})
	current := &start

	for current != nil {
		if *current == target {
			return true, nil
		}
		if _, seen := visited[*current]; seen {
			return false, nil
		}
		visited[*current] = struct{}{}

		var row struct {
			ParentCategoryID *uuid.UUID
		}
		err := tx.Model(&models.Category{}).Select("parent_category_id").
			Where("id = ?", *current).Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		current = row.ParentCategoryID
	}

	return false, nil
}

// Get loads a category with its direct subcategories.
func (s *CategoryService) Get(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := s.db.WithContext(ctx).
		Preload("SubCategories", func(db *gorm.DB) *gorm.DB { return db.Order("name") }).
		First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// Ancestors returns the chain from the root down to the parent of id.
func (s *CategoryService) Ancestors(ctx context.Context, id uuid.UUID) ([]models.Category, error) {
	db := s.db.WithContext(ctx)

	var category models.Category
	if err := db.First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}

	var chain []models.Category
	visited := map[uuid.UUID]struct{}{category.ID: {}}
	next := category.ParentCategoryID
	for next != nil {
		if _, seen := visited[*next]; seen {
			break
		}
		visited[*next] = struct{}{}

		var parent models.Category
		if err := db.First(&parent, "id = ?", *next).Error; err != nil {
			return nil, err
		}
		chain = append([]models.Category{parent}, chain...)
		next = parent.ParentCategoryID
	}
	return chain, nil
}

// ListRoots returns top-level categories with their direct subcategories.
func (s *CategoryService) ListRoots(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := s.db.WithContext(ctx).
		Preload("SubCategories", func(db *gorm.DB) *gorm.DB { return db.Order("name") }).
		Where("parent_category_id IS NULL").
		Order("name").
		Find(&categories).Error
	return categories, err
}

// ListNodes returns categories that may act as parents.
func (s *CategoryService) ListNodes(ctx context.Context) ([]models.Category, error) {
	return s.listByNode(ctx, true)
}

// ListLeaves returns categories that may hold items.
func (s *CategoryService) ListLeaves(ctx context.Context) ([]models.Category, error) {
	return s.listByNode(ctx, false)
}

func (s *CategoryService) listByNode(ctx context.Context, node bool) ([]models.Category, error) {
	var categories []models.Category
	err := s.db.WithContext(ctx).Where("node = ?", node).Order("name").Find(&categories).Error
	return categories, err
}

// Delete removes a category together with its subtree, the items placed in
// it and every binding, value and property hanging off those.
func (s *CategoryService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var root models.Category
		if err := tx.First(&root, "id = ?", id).Error; err != nil {
			return err
		}

		subtree, err := collectSubtree(tx, root.ID)
		if err != nil {
			return err
		}

		var itemIDs []uuid.UUID
		if err := tx.Model(&models.Item{}).Where("category_id IN ?", subtree).Pluck("id", &itemIDs).Error; err != nil {
			return err
		}
		if err := deleteItems(tx, itemIDs); err != nil {
			return err
		}

		if err := tx.Where("category_id IN ?", subtree).Delete(&models.CategoryFilterValue{}).Error; err != nil {
			return err
		}
		if err := tx.Where("category_id IN ?", subtree).Delete(&models.CategoryFilter{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", subtree).Delete(&models.Category{}).Error
	})
}

func collectSubtree(tx *gorm.DB, rootID uuid.UUID) ([]uuid.UUID, error) {
	subtree := []uuid.UUID{rootID}
	seen := map[uuid.UUID]struct{}{rootID: {}}
	frontier := []uuid.UUID{rootID}

	for len(frontier) > 0 {
		var children []uuid.UUID
		if err := tx.Model(&models.Category{}).Where("parent_category_id IN ?", frontier).Pluck("id", &children).Error; err != nil {
			return nil, err
		}

		frontier = frontier[:0]
		for _, child := range children {
			if _, ok := seen[child]; ok {
				continue
			}
			seen[child] = struct{}{}
			subtree = append(subtree, child)
			frontier = append(frontier, child)
		}
	}
	return subtree, nil
}
