package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/service-desk/internal/api/dto"
	"github.com/spec-kit/service-desk/internal/auth"
	"github.com/spec-kit/service-desk/internal/service"
	"github.com/spec-kit/service-desk/pkg/util"
)

// InventoryHandler exposes the equipment registry and loan tracker.
type InventoryHandler struct {
	inventory *service.InventoryService
}

// NewInventoryHandler constructs handler.
func NewInventoryHandler(inventory *service.InventoryService) *InventoryHandler {
	return &InventoryHandler{inventory: inventory}
}

// CreateMaterial POST /inventory/materials.
func (h *InventoryHandler) CreateMaterial(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	var req dto.MaterialRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	material, err := h.inventory.AddMaterial(c.Context(), user, materialInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.MaterialFrom(material)})
}

// UpdateMaterial PUT /inventory/materials/:id.
func (h *InventoryHandler) UpdateMaterial(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	var req dto.MaterialRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	material, err := h.inventory.UpdateMaterial(c.Context(), user, c.Params("id"), materialInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.MaterialFrom(material)})
}

// DeleteMaterial DELETE /inventory/materials/:id.
func (h *InventoryHandler) DeleteMaterial(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	if err := h.inventory.DeleteMaterial(c.Context(), user, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListMaterials GET /inventory/materials.
func (h *InventoryHandler) ListMaterials(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	materials, err := h.inventory.ListMaterials(c.Context(), user)
	if err != nil {
		return err
	}
	items := make([]dto.MaterialResponse, 0, len(materials))
	for i := range materials {
		items = append(items, dto.MaterialFrom(&materials[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Checkout POST /inventory/loans.
func (h *InventoryHandler) Checkout(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	loan, err := h.inventory.Checkout(c.Context(), user, service.LoanInput{
		MaterialID:      req.MaterialID,
		BorrowerName:    req.BorrowerName,
		BorrowerService: req.BorrowerService,
		LoanType:        req.LoanType,
		Accessories:     req.Accessories,
		DueAt:           req.DueAt,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.LoanFrom(loan)})
}

// Return POST /inventory/loans/:id/return.
func (h *InventoryHandler) Return(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	loan, err := h.inventory.Return(c.Context(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.LoanFrom(loan)})
}

// ListLoans GET /inventory/loans.
func (h *InventoryHandler) ListLoans(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	loans, err := h.inventory.ListLoans(c.Context(), user)
	if err != nil {
		return err
	}
	items := make([]dto.LoanResponse, 0, len(loans))
	for i := range loans {
		items = append(items, dto.LoanFrom(&loans[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func materialInput(req dto.MaterialRequest) service.MaterialInput {
	return service.MaterialInput{
		Category:     req.Category,
		Model:        req.Model,
		SerialNumber: req.SerialNumber,
		Hostname:     req.Hostname,
		IMEI:         req.IMEI,
	}
}
