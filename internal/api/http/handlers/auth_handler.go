package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/factoryops/jobdesk-permit/internal/api/dto"
	"github.com/factoryops/jobdesk-permit/internal/auth"
	"github.com/factoryops/jobdesk-permit/internal/service"
)

// AuthHandler exposes the staff login gate and the admin gate.
type AuthHandler struct {
	gate *service.SessionGate
}

// NewAuthHandler constructs handler.
func NewAuthHandler(gate *service.SessionGate) *AuthHandler {
	return &AuthHandler{gate: gate}
}

// StaffLogin handles POST /auth/staff/login.
func (h *AuthHandler) StaffLogin(c *fiber.Ctx) error {
	var req dto.StaffLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	result, err := h.gate.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"staff": dto.NewStaffResponse(result.Staff),
			"auth":  dto.AuthResponse{Token: result.Token, ExpiresAt: result.ExpiresAt},
		},
	})
}

// StaffLogout handles POST /auth/staff/logout.
func (h *AuthHandler) StaffLogout(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	ended, err := h.gate.Logout(c.UserContext(), staff.ID)
	if err != nil {
		return err
	}
	data := fiber.Map{"status": "logged_out"}
	if ended != nil {
		data["ended_permission"] = ended
	}
	return c.JSON(fiber.Map{"data": data})
}

// AdminLogin handles POST /auth/admin/login.
func (h *AuthHandler) AdminLogin(c *fiber.Ctx) error {
	var req dto.AdminLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Password == "" {
		return fiber.NewError(http.StatusBadRequest, "password required")
	}

	token, exp, err := h.gate.AdminLogin(c.UserContext(), req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"auth": dto.AuthResponse{Token: token, ExpiresAt: exp}}})
}

// AdminLogout handles POST /auth/admin/logout.
func (h *AuthHandler) AdminLogout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "authentication required")
	}
	if err := h.gate.AdminLogout(c.UserContext(), principal.SessionID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "logged_out"}})
}
