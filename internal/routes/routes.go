package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/eshop/internal/config"
	"github.com/example/eshop/internal/handlers"
	"github.com/example/eshop/internal/middleware"
	"github.com/example/eshop/internal/services"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config) {
	var notifier services.OrderNotifier
	if telegram := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat); telegram.Enabled() {
		notifier = telegram
	}

	categories := services.NewCategoryService(db)
	filters := services.NewFilterService(db)
	items := services.NewItemService(db)
	ledger := services.NewInventoryLedger(db)
	baskets := services.NewBasketService(db)
	orders := services.NewOrderService(db, notifier)
	imports := services.NewImportService(db)
	accounts := services.NewAccountService(db, baskets)
	organizations := services.NewOrganizationService(db)

	authHandler := handlers.NewAuthHandler(accounts, cfg)
	profileHandler := handlers.NewProfileHandler(accounts)
	organizationHandler := handlers.NewOrganizationHandler(organizations)
	catalogHandler := handlers.NewCatalogHandler(categories, filters, cfg)
	itemHandler := handlers.NewItemHandler(items, ledger, cfg)
	basketHandler := handlers.NewBasketHandler(baskets)
	orderHandler := handlers.NewOrderHandler(orders, baskets, accounts)
	importHandler := handlers.NewImportHandler(imports)
	shopHandler := handlers.NewShopHandler(db)
	adminHandler := handlers.NewAdminHandler(db, ledger)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true, "status": "ok"})
	})

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)

	// Public catalog
	api.Get("/categories", catalogHandler.ListCategories)
	api.Get("/categories/nodes", catalogHandler.ListNodeCategories)
	api.Get("/categories/leaves", catalogHandler.ListLeafCategories)
	api.Get("/categories/:id", catalogHandler.GetCategory)
	api.Get("/filters", catalogHandler.ListFilters)
	api.Get("/items", itemHandler.ListItems)
	api.Get("/items/:id", itemHandler.GetItem)
	api.Get("/shops", shopHandler.ListShops)
	api.Get("/orders/:id", orderHandler.GetOrder)

	// Basket and checkout work for anonymous visitors too
	basket := api.Group("/basket", middleware.OptionalAuth(cfg))
	basket.Get("/", basketHandler.GetBasket)
	basket.Delete("/", basketHandler.ClearBasket)
	basket.Post("/items", basketHandler.AddItem)
	basket.Delete("/items/:itemID", basketHandler.RemoveItem)
	basket.Post("/sync", basketHandler.SyncBasket)
	basket.Post("/checkout", orderHandler.Checkout)

	// Protected routes
	protected := api.Group("", middleware.AuthMiddleware(cfg))

	protected.Get("/profile", profileHandler.GetProfile)
	protected.Put("/profile", profileHandler.UpdateProfile)
	protected.Put("/profile/password", profileHandler.ChangePassword)

	protected.Get("/orders", orderHandler.ListOrders)

	protected.Get("/organizations", organizationHandler.ListOrganizations)
	protected.Post("/organizations", organizationHandler.CreateOrganization)

	// Staff routes
	admin := api.Group("/admin", middleware.AuthMiddleware(cfg), middleware.AdminOnly(db))

	admin.Get("/dashboard", adminHandler.DashboardStats)
	admin.Get("/users", adminHandler.ListAllUsers)

	admin.Post("/categories", catalogHandler.CreateCategory)
	admin.Put("/categories/:id", catalogHandler.UpdateCategory)
	admin.Delete("/categories/:id", catalogHandler.DeleteCategory)
	admin.Post("/categories/:id/filters", catalogHandler.BindFilter)
	admin.Put("/category-filters/:bindingID", catalogHandler.RebindFilter)
	admin.Delete("/category-filters/:bindingID", catalogHandler.UnbindFilter)
	admin.Post("/categories/:id/values", catalogHandler.CreateFilterValue)
	admin.Delete("/filter-values/:valueID", catalogHandler.DeleteFilterValue)

	admin.Post("/filters", catalogHandler.CreateFilter)
	admin.Put("/filters/:id", catalogHandler.UpdateFilter)
	admin.Delete("/filters/:id", catalogHandler.DeleteFilter)

	admin.Post("/items", itemHandler.CreateItem)
	admin.Put("/items/:id", itemHandler.UpdateItem)
	admin.Delete("/items/:id", itemHandler.DeleteItem)
	admin.Put("/items/:id/properties/:filterID", itemHandler.SetItemProperty)
	admin.Get("/items/:id/movements", itemHandler.ListMovements)

	admin.Get("/imports", importHandler.ListImports)
	admin.Post("/imports", importHandler.CreateImport)
	admin.Get("/imports/:id", importHandler.GetImport)
	admin.Post("/imports/:id/items", importHandler.AddImportItem)
	admin.Delete("/import-items/:lineID", importHandler.DeleteImportItem)

	admin.Get("/orders", orderHandler.ListAllOrders)
	admin.Post("/orders", orderHandler.CreateOrder)
	admin.Get("/orders/:id", orderHandler.GetOrder)
	admin.Patch("/orders/:id", orderHandler.UpdateOrder)
	admin.Post("/orders/:id/finish", orderHandler.FinishOrder)
	admin.Post("/orders/:id/cancel", orderHandler.CancelOrder)
	admin.Post("/orders/:id/items", orderHandler.AddOrderItem)
	admin.Put("/order-items/:lineID", orderHandler.UpdateOrderItem)
	admin.Delete("/order-items/:lineID", orderHandler.DeleteOrderItem)
	admin.Get("/deliveries/:id", orderHandler.GetDelivery)
	admin.Patch("/deliveries/:id", orderHandler.UpdateDelivery)

	admin.Post("/shops", shopHandler.CreateShop)
	admin.Put("/shops/:id", shopHandler.UpdateShop)
	admin.Delete("/shops/:id", shopHandler.DeleteShop)
}
