package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/eshop/internal/services"
	"github.com/example/eshop/internal/utils"
)

// ImportHandler records stock deliveries (staff only).
type ImportHandler struct {
	imports *services.ImportService
}

// NewImportHandler constructs ImportHandler.
func NewImportHandler(imports *services.ImportService) *ImportHandler {
	return &ImportHandler{imports: imports}
}

type importRequest struct {
	Name  string                `json:"name" validate:"required,max=256"`
	Items []services.ImportLine `json:"items" validate:"required,min=1,dive"`
}

// CreateImport stores an import and adds its quantities to stock.
func (h *ImportHandler) CreateImport(c *fiber.Ctx) error {
	var req importRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	record, err := h.imports.Create(c.UserContext(), req.Name, req.Items)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":  true,
		"data":     record,
		"quantity": record.Quantity(),
	})
}

// ListImports returns imports, newest first.
func (h *ImportHandler) ListImports(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	records, total, err := h.imports.List(c.UserContext(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return paginated(c, records, pg, total)
}

// GetImport returns an import with its lines.
func (h *ImportHandler) GetImport(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	record, err := h.imports.Get(c.UserContext(), id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": record, "quantity": record.Quantity()})
}

// AddImportItem appends a line to an import.
func (h *ImportHandler) AddImportItem(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req services.ImportLine
	if err := parseBody(c, &req); err != nil {
		return err
	}

	line, err := h.imports.AddItem(c.UserContext(), id, req)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": line})
}

// DeleteImportItem removes an import line without touching stock.
func (h *ImportHandler) DeleteImportItem(c *fiber.Ctx) error {
	id, err := parseID(c, "lineID")
	if err != nil {
		return err
	}

	if err := h.imports.DeleteItem(c.UserContext(), id); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}
