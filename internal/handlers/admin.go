package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/eshop/internal/models"
	"github.com/example/eshop/internal/services"
	"github.com/example/eshop/internal/utils"
)

// AdminHandler manages admin-only endpoints.
type AdminHandler struct {
	db     *gorm.DB
	ledger *services.InventoryLedger
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(db *gorm.DB, ledger *services.InventoryLedger) *AdminHandler {
	return &AdminHandler{db: db, ledger: ledger}
}

// DashboardStats returns aggregate statistics for the admin dashboard.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	db := h.db.WithContext(c.UserContext())

	var totalUsers int64
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		return err
	}

	var totalOrders int64
	if err := db.Model(&models.Order{}).Count(&totalOrders).Error; err != nil {
		return err
	}

	type statusCount struct {
		Status string
		Count  int64
	}
	var statusCounts []statusCount
	if err := db.Model(&models.Order{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return err
	}

	ordersByStatus := make(map[string]int64)
	for _, sc := range statusCounts {
		ordersByStatus[sc.Status] = sc.Count
	}

	// Revenue over lines of orders that were not cancelled.
	var lines []models.OrderItem
	if err := db.Model(&models.OrderItem{}).
		Select("order_items.quantity", "order_items.price").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.status <> ?", models.OrderStatusCancelled).
		Find(&lines).Error; err != nil {
		return err
	}
	revenue := decimal.Zero
	for _, line := range lines {
		revenue = revenue.Add(line.LineTotal())
	}

	threshold := utils.QueryInt(c, "low_stock", 5)
	lowStock, err := h.ledger.LowStock(c.UserContext(), threshold, 10)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"total_users":      totalUsers,
			"total_orders":     totalOrders,
			"total_revenue":    revenue,
			"orders_by_status": ordersByStatus,
			"low_stock_items":  lowStock,
		},
	})
}

// ListAllUsers returns all registered users with pagination and search.
func (h *AdminHandler) ListAllUsers(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.WithContext(c.UserContext()).Model(&models.User{})

	if search := c.Query("search"); search != "" {
		like := "%" + search + "%"
		query = query.Where("email LIKE ? OR first_name LIKE ? OR last_name LIKE ? OR phone_number LIKE ?",
			like, like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var users []models.User
	if err := query.Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&users).Error; err != nil {
		return err
	}

	return paginated(c, users, pg, total)
}
