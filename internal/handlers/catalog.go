package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/eshop/internal/config"
	"github.com/example/eshop/internal/models"
	"github.com/example/eshop/internal/services"
	"github.com/example/eshop/internal/utils"
)

// CatalogHandler manages categories, filters and their bindings.
type CatalogHandler struct {
	categories *services.CategoryService
	filters    *services.FilterService
	cfg        *config.Config
}

// NewCatalogHandler constructs CatalogHandler.
func NewCatalogHandler(categories *services.CategoryService, filters *services.FilterService, cfg *config.Config) *CatalogHandler {
	return &CatalogHandler{categories: categories, filters: filters, cfg: cfg}
}

type categoryView struct {
	models.Category
	ImageURL string `json:"image_url"`
}

func (h *CatalogHandler) categoryViews(categories []models.Category) []categoryView {
	views := make([]categoryView, len(categories))
	for i, category := range categories {
		views[i] = categoryView{Category: category, ImageURL: utils.MediaURL(h.cfg.MediaURL, category.Image)}
	}
	return views
}

// ListCategories returns root categories with their subcategories.
func (h *CatalogHandler) ListCategories(c *fiber.Ctx) error {
	categories, err := h.categories.ListRoots(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": h.categoryViews(categories)})
}

// ListNodeCategories returns categories that can act as parents.
func (h *CatalogHandler) ListNodeCategories(c *fiber.Ctx) error {
	categories, err := h.categories.ListNodes(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": h.categoryViews(categories)})
}

// ListLeafCategories returns categories that can hold items.
func (h *CatalogHandler) ListLeafCategories(c *fiber.Ctx) error {
	categories, err := h.categories.ListLeaves(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": h.categoryViews(categories)})
}

// GetCategory returns a category with its ancestors and bound filters.
func (h *CatalogHandler) GetCategory(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	ctx := c.UserContext()
	category, err := h.categories.Get(ctx, id)
	if err != nil {
		return err
	}
	ancestors, err := h.categories.Ancestors(ctx, id)
	if err != nil {
		return err
	}
	filters, err := h.filters.CategoryFilters(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"category":  categoryView{Category: *category, ImageURL: utils.MediaURL(h.cfg.MediaURL, category.Image)},
			"ancestors": ancestors,
			"filters":   filters,
		},
	})
}

type categoryRequest struct {
	Name             string     `json:"name" validate:"required,max=256"`
	Image            string     `json:"image" validate:"max=512"`
	ParentCategoryID *uuid.UUID `json:"parent_category_id"`
	Node             bool       `json:"node"`
}

func (r categoryRequest) input() services.CategoryInput {
	return services.CategoryInput{
		Name:             r.Name,
		Image:            r.Image,
		ParentCategoryID: r.ParentCategoryID,
		Node:             r.Node,
	}
}

// CreateCategory persists a new category.
func (h *CatalogHandler) CreateCategory(c *fiber.Ctx) error {
	var req categoryRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	category, err := h.categories.Create(c.UserContext(), req.input())
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": category})
}

// UpdateCategory updates an existing category.
func (h *CatalogHandler) UpdateCategory(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req categoryRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	category, err := h.categories.Update(c.UserContext(), id, req.input())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": category})
}

// DeleteCategory removes a category and everything below it.
func (h *CatalogHandler) DeleteCategory(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	if err := h.categories.Delete(c.UserContext(), id); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ListFilters returns all filters.
func (h *CatalogHandler) ListFilters(c *fiber.Ctx) error {
	filters, err := h.filters.ListFilters(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": filters})
}

type filterRequest struct {
	Name string `json:"name" validate:"required,max=256"`
}

// CreateFilter persists a new filter.
func (h *CatalogHandler) CreateFilter(c *fiber.Ctx) error {
	var req filterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	filter, err := h.filters.CreateFilter(c.UserContext(), req.Name)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": filter})
}

// UpdateFilter renames a filter.
func (h *CatalogHandler) UpdateFilter(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req filterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	filter, err := h.filters.RenameFilter(c.UserContext(), id, req.Name)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": filter})
}

// DeleteFilter removes a filter from the whole catalog.
func (h *CatalogHandler) DeleteFilter(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	if err := h.filters.DeleteFilter(c.UserContext(), id); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

type bindingRequest struct {
	FilterID uuid.UUID `json:"filter_id" validate:"required"`
}

// BindFilter attaches a filter to a leaf category.
func (h *CatalogHandler) BindFilter(c *fiber.Ctx) error {
	categoryID, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req bindingRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	binding, err := h.filters.Bind(c.UserContext(), categoryID, req.FilterID)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": binding})
}

// RebindFilter swaps the filter of an existing binding.
func (h *CatalogHandler) RebindFilter(c *fiber.Ctx) error {
	bindingID, err := parseID(c, "bindingID")
	if err != nil {
		return err
	}

	var req bindingRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	binding, err := h.filters.Rebind(c.UserContext(), bindingID, req.FilterID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": binding})
}

// UnbindFilter detaches a filter from its category.
func (h *CatalogHandler) UnbindFilter(c *fiber.Ctx) error {
	bindingID, err := parseID(c, "bindingID")
	if err != nil {
		return err
	}

	if err := h.filters.Unbind(c.UserContext(), bindingID); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

type filterValueRequest struct {
	FilterID uuid.UUID `json:"filter_id" validate:"required"`
	Name     string    `json:"name" validate:"required,max=256"`
}

// CreateFilterValue adds a value to a filter within a category.
func (h *CatalogHandler) CreateFilterValue(c *fiber.Ctx) error {
	categoryID, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req filterValueRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	value, err := h.filters.CreateValue(c.UserContext(), categoryID, req.FilterID, req.Name)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": value})
}

// DeleteFilterValue removes a value and clears it from item properties.
func (h *CatalogHandler) DeleteFilterValue(c *fiber.Ctx) error {
	id, err := parseID(c, "valueID")
	if err != nil {
		return err
	}

	if err := h.filters.DeleteValue(c.UserContext(), id); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}
