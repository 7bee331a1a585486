package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/service-desk/internal/api/dto"
	"github.com/spec-kit/service-desk/internal/auth"
	"github.com/spec-kit/service-desk/internal/domain"
	"github.com/spec-kit/service-desk/internal/service"
	"github.com/spec-kit/service-desk/pkg/util"
)

// AccountsHandler exposes login and user administration endpoints.
type AccountsHandler struct {
	accounts *service.AccountService
}

// NewAccountsHandler constructs handler.
func NewAccountsHandler(accounts *service.AccountService) *AccountsHandler {
	return &AccountsHandler{accounts: accounts}
}

// DirectoryLogin POST /auth/login. The identity adapter in front of
// this service has already verified credentials; the request carries
// the resolved identity and group memberships.
func (h *AccountsHandler) DirectoryLogin(c *fiber.Ctx) error {
	var req dto.DirectoryLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	session, err := h.accounts.SyncFromDirectory(c.Context(), service.DirectoryLogin{
		Username: req.Username,
		FullName: req.FullName,
		Email:    req.Email,
		Location: req.Location,
		Groups:   req.Groups,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": sessionResponse(session)})
}

// LocalLogin POST /auth/local.
func (h *AccountsHandler) LocalLogin(c *fiber.Ctx) error {
	var req dto.LocalLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	session, err := h.accounts.LocalAdminLogin(c.Context(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": sessionResponse(session)})
}

// Me GET /users/me.
func (h *AccountsHandler) Me(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.UserFrom(user)})
}

// List GET /users.
func (h *AccountsHandler) List(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	users, err := h.accounts.List(c.Context(), user)
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, dto.UserFrom(&users[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Update PUT /users/:id.
func (h *AccountsHandler) Update(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	var req dto.AdminUpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	updated, err := h.accounts.AdminUpdate(c.Context(), user, c.Params("id"), service.AdminUpdateInput{
		Role:            domain.Role(req.Role),
		OriginServices:  req.OriginServices,
		AllowedServices: req.AllowedServices,
		Location:        req.Location,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.UserFrom(updated)})
}

// Delete DELETE /users/:id.
func (h *AccountsHandler) Delete(c *fiber.Ctx) error {
	user, err := auth.UserFromContext(c)
	if err != nil {
		return err
	}
	if err := h.accounts.Delete(c.Context(), user, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func sessionResponse(session *service.Session) dto.SessionResponse {
	return dto.SessionResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      dto.UserFrom(session.User),
	}
}
