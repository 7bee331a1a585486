package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/service-desk/internal/api/dto"
	"github.com/spec-kit/service-desk/internal/auth"
	"github.com/spec-kit/service-desk/internal/service"
	"github.com/spec-kit/service-desk/pkg/util"
)

// RecruitmentsHandler exposes the onboarding workflow endpoints.
type RecruitmentsHandler struct {
	recruitments *service.RecruitmentService
}

// NewRecruitmentsHandler constructs handler.
func NewRecruitmentsHandler(recruitments *service.RecruitmentService) *RecruitmentsHandler {
	return &RecruitmentsHandler{recruitments: recruitments}
}

// Create POST /recruitments.
func (h *RecruitmentsHandler) Create(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateRecruitmentRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	entryDate, err := time.Parse("2006-01-02", req.EntryDate)
	if err != nil {
		return util.NewValidationError("entry_date must be YYYY-MM-DD", map[string]any{"entry_date": req.EntryDate})
	}
	rec, err := h.recruitments.Submit(c.Context(), user, service.RecruitmentCreateInput{
		AgentLastName:      req.AgentLastName,
		AgentFirstName:     req.AgentFirstName,
		Position:           req.Position,
		AgentService:       req.AgentService,
		EntryDate:          entryDate,
		Contractual:        req.Contractual,
		WorkTime:           req.WorkTime,
		RecruitmentReason:  req.RecruitmentReason,
		WorkLocation:       req.WorkLocation,
		SecurityComment:    req.SecurityComment,
		ImagoActive:        req.ImagoActive,
		ImagoMobility:      req.ImagoMobility,
		RequestedEquipment: req.RequestedEquipment,
		ITAccess:           req.ITAccess,
		CVFileKey:          req.CVFileKey,
		JobDescFileKey:     req.JobDescFileKey,
		PhotoFileKey:       req.PhotoFileKey,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.RecruitmentFrom(rec)})
}

// Get GET /recruitments/:id.
func (h *RecruitmentsHandler) Get(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	rec, err := h.recruitments.Get(c.Context(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.RecruitmentFrom(rec)})
}

// List GET /recruitments.
func (h *RecruitmentsHandler) List(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	recs, err := h.recruitments.ListOpen(c.Context(), user)
	if err != nil {
		return err
	}
	items := make([]dto.RecruitmentResponse, 0, len(recs))
	for i := range recs {
		items = append(items, dto.RecruitmentFrom(&recs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Action POST /recruitments/:id/action.
func (h *RecruitmentsHandler) Action(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	var req dto.RecruitmentActionRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	switch req.Action {
	case "validate":
		rec, err := h.recruitments.Validate(c.Context(), user, c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": dto.RecruitmentFrom(rec)})
	case "refuse":
		rec, err := h.recruitments.Refuse(c.Context(), user, c.Params("id"), req.Reason)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": dto.RecruitmentFrom(rec)})
	default:
		return util.NewValidationError("action must be validate or refuse", nil)
	}
}
