package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/factoryops/jobdesk-permit/internal/api/dto"
	"github.com/factoryops/jobdesk-permit/internal/domain"
	"github.com/factoryops/jobdesk-permit/internal/service"
)

// PermissionHandler exposes the permission lifecycle and staff views.
type PermissionHandler struct {
	engine *service.PermissionEngine
}

// NewPermissionHandler constructs handler.
func NewPermissionHandler(engine *service.PermissionEngine) *PermissionHandler {
	return &PermissionHandler{engine: engine}
}

// Start handles POST /permissions.
func (h *PermissionHandler) Start(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.StartPermissionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	record, err := h.engine.RequestStart(c.UserContext(), staff.ID, domain.PermissionKind(req.Kind), req.Jobdesk, req.Note)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewPermissionResponse(*record, h.engine.Now())})
}

// End handles POST /permissions/:id/end for the holder of the permission.
func (h *PermissionHandler) End(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	record, err := h.engine.EndOwn(c.UserContext(), staff.ID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewPermissionResponse(*record, h.engine.Now())})
}

// AdminEnd handles POST /admin/permissions/:id/end.
func (h *PermissionHandler) AdminEnd(c *fiber.Ctx) error {
	record, err := h.engine.End(c.UserContext(), c.Params("id"), domain.EndReasonManual)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewPermissionResponse(*record, h.engine.Now())})
}

// Active handles GET /permissions/active.
func (h *PermissionHandler) Active(c *fiber.Ctx) error {
	board, err := h.engine.ActiveBoard(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": board})
}

// Me handles GET /me.
func (h *PermissionHandler) Me(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	info, err := h.engine.StaffInfo(c.UserContext(), staff.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"staff":             dto.NewStaffResponse(&info.Staff),
		"regular":           info.Regular,
		"meal":              info.Meal,
		"total_permissions": info.TotalPermissions,
		"active":            info.Active,
		"session_valid":     info.SessionValid,
	}})
}

// History handles GET /me/history?date=YYYY-MM-DD.
func (h *PermissionHandler) History(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	records, err := h.engine.History(c.UserContext(), staff.ID, c.Query("date"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": records})
}
