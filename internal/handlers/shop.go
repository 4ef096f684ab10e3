package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/eshop/internal/models"
	"github.com/example/eshop/internal/utils"
)

// ShopHandler manages pickup shops.
type ShopHandler struct {
	db *gorm.DB
}

// NewShopHandler constructs ShopHandler.
func NewShopHandler(db *gorm.DB) *ShopHandler {
	return &ShopHandler{db: db}
}

type shopRequest struct {
	Name         string  `json:"name" validate:"required,max=256"`
	AddressLine  string  `json:"address_line" validate:"required"`
	Latitude     float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude    float64 `json:"longitude" validate:"gte=-180,lte=180"`
	WorkingHours string  `json:"working_hours"`
	ContactPhone string  `json:"contact_phone" validate:"max=32"`
	IsActive     *bool   `json:"is_active"`
}

func (r shopRequest) apply(shop *models.Shop) {
	shop.Name = r.Name
	shop.AddressLine = r.AddressLine
	shop.Latitude = r.Latitude
	shop.Longitude = r.Longitude
	shop.WorkingHours = r.WorkingHours
	shop.ContactPhone = r.ContactPhone
	if r.IsActive != nil {
		shop.IsActive = *r.IsActive
	}
}

// ListShops returns active shops; staff may pass ?all=true.
func (h *ShopHandler) ListShops(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.WithContext(c.UserContext()).Model(&models.Shop{})
	if !c.QueryBool("all", false) {
		query = query.Where("is_active = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var shops []models.Shop
	if err := query.Order("name").Limit(pg.Limit).Offset(pg.Offset).Find(&shops).Error; err != nil {
		return err
	}

	return paginated(c, shops, pg, total)
}

// CreateShop persists a new pickup shop.
func (h *ShopHandler) CreateShop(c *fiber.Ctx) error {
	var req shopRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	shop := models.Shop{IsActive: true}
	req.apply(&shop)
	if err := h.db.WithContext(c.UserContext()).Create(&shop).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": shop})
}

// UpdateShop updates a pickup shop.
func (h *ShopHandler) UpdateShop(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req shopRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	db := h.db.WithContext(c.UserContext())
	var shop models.Shop
	if err := db.First(&shop, "id = ?", id).Error; err != nil {
		return err
	}

	req.apply(&shop)
	if err := db.Save(&shop).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": shop})
}

// DeleteShop removes a shop no order refers to. Referenced shops should be
// deactivated instead.
func (h *ShopHandler) DeleteShop(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	db := h.db.WithContext(c.UserContext())

	var orders int64
	if err := db.Model(&models.Order{}).Where("pickup_shop_id = ?", id).Count(&orders).Error; err != nil {
		return err
	}
	if orders > 0 {
		return fiber.NewError(fiber.StatusConflict, "shop is referenced by orders, deactivate it instead")
	}

	res := db.Delete(&models.Shop{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return c.SendStatus(fiber.StatusNoContent)
}
