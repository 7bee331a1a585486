package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/service-desk/internal/api/dto"
	"github.com/spec-kit/service-desk/internal/auth"
	"github.com/spec-kit/service-desk/internal/domain"
	"github.com/spec-kit/service-desk/internal/service"
	"github.com/spec-kit/service-desk/pkg/util"
)

// TicketsHandler exposes the ticket workflow endpoints.
type TicketsHandler struct {
	tickets *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets}
}

// Create POST /tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.SubmitTicket(c.Context(), user, service.TicketCreateInput{
		Title:         req.Title,
		Description:   req.Description,
		TargetService: req.TargetService,
		Category:      req.Category,
		OriginService: req.OriginService,
		Fields:        req.Fields,
		Files:         req.Files,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.TicketSummaryFrom(ticket)})
}

// Get GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	ticket, msgs, err := h.tickets.GetTicket(c.Context(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketDetailFrom(ticket, msgs)})
}

// ListMine GET /tickets/mine.
func (h *TicketsHandler) ListMine(c *fiber.Ctx) error {
	return h.list(c, h.tickets.ListMine)
}

// ListAssigned GET /tickets/assigned.
func (h *TicketsHandler) ListAssigned(c *fiber.Ctx) error {
	return h.list(c, h.tickets.ListAssigned)
}

// ListPool GET /tickets/pool.
func (h *TicketsHandler) ListPool(c *fiber.Ctx) error {
	return h.list(c, h.tickets.ListPool)
}

// ListValidation GET /tickets/validation.
func (h *TicketsHandler) ListValidation(c *fiber.Ctx) error {
	return h.list(c, h.tickets.ListAwaitingValidation)
}

// ManagerAction POST /tickets/:id/action.
func (h *TicketsHandler) ManagerAction(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	var req dto.ManagerActionRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	action := service.ManagerAction(req.Action)
	if action != service.ActionValidate && action != service.ActionRefuse {
		return util.NewValidationError("action must be validate or refuse", nil)
	}
	ticket, err := h.tickets.ManagerAction(c.Context(), user, c.Params("id"), action, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketSummaryFrom(ticket)})
}

// Take POST /tickets/:id/take.
func (h *TicketsHandler) Take(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.Take(c.Context(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketSummaryFrom(ticket)})
}

// Assign POST /tickets/:id/assign.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if req.SolverID == "" {
		return util.NewValidationError("solver_id required", nil)
	}
	ticket, err := h.tickets.Assign(c.Context(), user, c.Params("id"), req.SolverID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketSummaryFrom(ticket)})
}

// Close POST /tickets/:id/close.
func (h *TicketsHandler) Close(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.Close(c.Context(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketSummaryFrom(ticket)})
}

// Transfer POST /tickets/:id/transfer.
func (h *TicketsHandler) Transfer(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	var req dto.TransferRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.Transfer(c.Context(), user, c.Params("id"), req.TargetService)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketSummaryFrom(ticket)})
}

// RequestInput POST /tickets/:id/waiting.
func (h *TicketsHandler) RequestInput(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	var req dto.WaitingUserRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.RequestUserInput(c.Context(), user, c.Params("id"), req.Question)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketSummaryFrom(ticket)})
}

// AddMessage POST /tickets/:id/messages.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	msg, err := h.tickets.AddMessage(c.Context(), user, c.Params("id"), req.Body)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.TicketMessageFrom(msg)})
}

// SubmitDocument POST /tickets/:id/finance/document.
func (h *TicketsHandler) SubmitDocument(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	var req dto.FinanceDocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.SolverSubmitPreparedDocument(c.Context(), user, c.Params("id"), req.FileKey)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketSummaryFrom(ticket)})
}

// ValidateFinance POST /tickets/:id/finance/validate.
func (h *TicketsHandler) ValidateFinance(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.ManagerValidateFinance(c.Context(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketSummaryFrom(ticket)})
}

// Sign POST /tickets/:id/finance/sign.
func (h *TicketsHandler) Sign(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	var req dto.FinanceDocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.DirectorSign(c.Context(), user, c.Params("id"), req.FileKey)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketSummaryFrom(ticket)})
}

// Stats GET /stats.
func (h *TicketsHandler) Stats(c *fiber.Ctx) error {
	if _, err := auth.UserFromContext(c); err != nil {
		return err
	}
	stats, err := h.tickets.Stats(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.StatsResponse{
		TicketsByStatus:    stats.TicketsByStatus,
		MaterialsAvailable: stats.MaterialsAvailable,
		MaterialsLoaned:    stats.MaterialsLoaned,
		OpenLoans:          stats.OpenLoans,
	}})
}

type ticketListFunc func(ctx context.Context, user *domain.User, limit, offset int) ([]domain.Ticket, error)

func (h *TicketsHandler) list(c *fiber.Ctx, fn ticketListFunc) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	limit, offset := paging(c)
	tickets, err := fn(c.Context(), user, limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.TicketSummaryFrom(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func paging(c *fiber.Ctx) (limit, offset int) {
	limit, _ = strconv.Atoi(c.Query("limit", "50"))
	offset, _ = strconv.Atoi(c.Query("offset", "0"))
	return limit, offset
}
