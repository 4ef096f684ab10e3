package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/eshop/internal/config"
	"github.com/example/eshop/internal/models"
	"github.com/example/eshop/internal/services"
	"github.com/example/eshop/internal/utils"
)

// ItemHandler serves catalog items.
type ItemHandler struct {
	items  *services.ItemService
	ledger *services.InventoryLedger
	cfg    *config.Config
}

// NewItemHandler constructs ItemHandler.
func NewItemHandler(items *services.ItemService, ledger *services.InventoryLedger, cfg *config.Config) *ItemHandler {
	return &ItemHandler{items: items, ledger: ledger, cfg: cfg}
}

type itemView struct {
	models.Item
	ImageURL string `json:"image_url"`
}

func (h *ItemHandler) view(item models.Item) itemView {
	return itemView{Item: item, ImageURL: utils.MediaURL(h.cfg.MediaURL, item.Image)}
}

// reservedItemParams are query params that never name a filter.
var reservedItemParams = map[string]struct{}{
	"page": {}, "limit": {}, "name": {}, "category": {},
	"min_price": {}, "max_price": {}, "min_weight": {}, "max_weight": {},
}

func parseItemQuery(c *fiber.Ctx, pg utils.Pagination) (services.ItemQuery, error) {
	q := services.ItemQuery{
		Name:   c.Query("name"),
		Limit:  pg.Limit,
		Offset: pg.Offset,
		Facets: map[string][]string{},
	}

	if raw := c.Query("category"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return q, fiber.NewError(fiber.StatusBadRequest, "invalid category")
		}
		q.CategoryID = &id
	}

	for key, dst := range map[string]**decimal.Decimal{"min_price": &q.MinPrice, "max_price": &q.MaxPrice} {
		if raw := c.Query(key); raw != "" {
			value, err := decimal.NewFromString(raw)
			if err != nil {
				return q, fiber.NewError(fiber.StatusBadRequest, "invalid "+key)
			}
			*dst = &value
		}
	}

	for key, dst := range map[string]**float64{"min_weight": &q.MinWeight, "max_weight": &q.MaxWeight} {
		if raw := c.Query(key); raw != "" {
			value, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return q, fiber.NewError(fiber.StatusBadRequest, "invalid "+key)
			}
			*dst = &value
		}
	}

	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		name := string(key)
		if _, reserved := reservedItemParams[name]; reserved {
			return
		}
		q.Facets[name] = append(q.Facets[name], string(value))
	})

	return q, nil
}

// ListItems returns items narrowed by category, name, price, weight and
// any filter key of the category.
func (h *ItemHandler) ListItems(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	q, err := parseItemQuery(c, pg)
	if err != nil {
		return err
	}

	items, total, err := h.items.List(c.UserContext(), q)
	if err != nil {
		return err
	}

	views := make([]itemView, len(items))
	for i, item := range items {
		views[i] = h.view(item)
	}
	return paginated(c, views, pg, total)
}

// GetItem returns an item with its properties.
func (h *ItemHandler) GetItem(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	item, err := h.items.Get(c.UserContext(), id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": h.view(*item)})
}

type itemRequest struct {
	Name        string           `json:"name" validate:"required,max=256"`
	Description string           `json:"description"`
	Image       string           `json:"image" validate:"max=512"`
	CategoryID  uuid.UUID        `json:"category_id" validate:"required"`
	Price       decimal.Decimal  `json:"price"`
	OldPrice    *decimal.Decimal `json:"old_price"`
	Length      float64          `json:"length" validate:"gte=0"`
	Width       float64          `json:"width" validate:"gte=0"`
	Height      float64          `json:"height" validate:"gte=0"`
	Weight      float64          `json:"weight" validate:"gte=0"`
	Quantity    int              `json:"quantity" validate:"gte=0"`
}

func (r itemRequest) input() (services.ItemInput, error) {
	if r.Price.IsNegative() {
		return services.ItemInput{}, fiber.NewError(fiber.StatusBadRequest, "price must not be negative")
	}

	in := services.ItemInput{
		Name:        r.Name,
		Description: r.Description,
		Image:       r.Image,
		CategoryID:  r.CategoryID,
		Price:       r.Price,
		Length:      r.Length,
		Width:       r.Width,
		Height:      r.Height,
		Weight:      r.Weight,
		Quantity:    r.Quantity,
	}
	if r.OldPrice != nil {
		in.OldPrice = decimal.NewNullDecimal(*r.OldPrice)
	}
	return in, nil
}

// CreateItem persists a new item.
func (h *ItemHandler) CreateItem(c *fiber.Ctx) error {
	var req itemRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	in, err := req.input()
	if err != nil {
		return err
	}

	item, err := h.items.Create(c.UserContext(), in)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": h.view(*item)})
}

// UpdateItem updates an item. Stock is left untouched.
func (h *ItemHandler) UpdateItem(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req itemRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	in, err := req.input()
	if err != nil {
		return err
	}

	item, err := h.items.Update(c.UserContext(), id, in)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": h.view(*item)})
}

// DeleteItem removes an item from the catalog.
func (h *ItemHandler) DeleteItem(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	if err := h.items.Delete(c.UserContext(), id); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

type propertyRequest struct {
	ValueID *uuid.UUID `json:"value_id"`
}

// SetItemProperty assigns or clears the value of one item property.
func (h *ItemHandler) SetItemProperty(c *fiber.Ctx) error {
	itemID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	filterID, err := parseID(c, "filterID")
	if err != nil {
		return err
	}

	var req propertyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	property, err := h.items.SetProperty(c.UserContext(), itemID, filterID, req.ValueID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": property})
}

// ListMovements returns the stock history of an item.
func (h *ItemHandler) ListMovements(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	pg := utils.ParsePagination(c)
	movements, total, err := h.ledger.Movements(c.UserContext(), id, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}

	return paginated(c, movements, pg, total)
}
