package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/factoryops/jobdesk-permit/internal/api/dto"
	"github.com/factoryops/jobdesk-permit/internal/clock"
	"github.com/factoryops/jobdesk-permit/internal/service"
)

const exportLimit = 1000

// AdminHandler exposes roster, catalog, settings and log administration.
type AdminHandler struct {
	admin    *service.AdminService
	policies *service.PolicyService
	engine   *service.PermissionEngine
}

// NewAdminHandler constructs handler.
func NewAdminHandler(admin *service.AdminService, policies *service.PolicyService, engine *service.PermissionEngine) *AdminHandler {
	return &AdminHandler{admin: admin, policies: policies, engine: engine}
}

// ListStaff handles GET /admin/staff.
func (h *AdminHandler) ListStaff(c *fiber.Ctx) error {
	roster, err := h.admin.ListStaff(c.UserContext())
	if err != nil {
		return err
	}
	resp := make([]dto.StaffResponse, 0, len(roster))
	for i := range roster {
		resp = append(resp, dto.NewStaffResponse(&roster[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// CreateStaff handles POST /admin/staff.
func (h *AdminHandler) CreateStaff(c *fiber.Ctx) error {
	var req dto.StaffRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	staff, err := h.admin.CreateStaff(c.UserContext(), staffInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewStaffResponse(staff)})
}

// UpdateStaff handles PUT /admin/staff/:id.
func (h *AdminHandler) UpdateStaff(c *fiber.Ctx) error {
	var req dto.StaffRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	staff, err := h.admin.UpdateStaff(c.UserContext(), c.Params("id"), staffInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewStaffResponse(staff)})
}

// DeleteStaff handles DELETE /admin/staff/:id.
func (h *AdminHandler) DeleteStaff(c *fiber.Ctx) error {
	if err := h.admin.DeleteStaff(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListJobdesks handles GET /jobdesks and GET /admin/jobdesks.
func (h *AdminHandler) ListJobdesks(c *fiber.Ctx) error {
	catalog, err := h.admin.ListJobdesks(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": catalog})
}

// CreateJobdesk handles POST /admin/jobdesks.
func (h *AdminHandler) CreateJobdesk(c *fiber.Ctx) error {
	var req dto.JobdeskRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	jobdesk, err := h.admin.CreateJobdesk(c.UserContext(), jobdeskInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": jobdesk})
}

// UpdateJobdesk handles PUT /admin/jobdesks/:id.
func (h *AdminHandler) UpdateJobdesk(c *fiber.Ctx) error {
	var req dto.JobdeskRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	jobdesk, err := h.admin.UpdateJobdesk(c.UserContext(), c.Params("id"), jobdeskInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": jobdesk})
}

// DeleteJobdesk handles DELETE /admin/jobdesks/:id.
func (h *AdminHandler) DeleteJobdesk(c *fiber.Ctx) error {
	if err := h.admin.DeleteJobdesk(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// GetSettings handles GET /admin/settings.
func (h *AdminHandler) GetSettings(c *fiber.Ctx) error {
	policy, err := h.policies.Current(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": policy})
}

// UpdateSettings handles PUT /admin/settings.
func (h *AdminHandler) UpdateSettings(c *fiber.Ctx) error {
	var req dto.PolicyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	current, err := h.policies.Current(c.UserContext())
	if err != nil {
		return err
	}
	policy, err := h.policies.Update(c.UserContext(), req.Apply(current))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": policy})
}

// Logs handles GET /admin/logs?limit=.
func (h *AdminHandler) Logs(c *fiber.Ctx) error {
	records, err := h.engine.Logs(c.UserContext(), parseIntQuery(c, "limit", 0))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": records})
}

// ExportLogs handles GET /admin/logs/export.
func (h *AdminHandler) ExportLogs(c *fiber.Ctx) error {
	var buf bytes.Buffer
	if err := h.admin.ExportLogsCSV(c.UserContext(), &buf, parseIntQuery(c, "limit", exportLimit)); err != nil {
		return err
	}
	filename := fmt.Sprintf("permission_logs_%s.csv", clock.DateOf(h.engine.Now()))
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Send(buf.Bytes())
}

func staffInput(req dto.StaffRequest) service.StaffInput {
	return service.StaffInput{
		Username:    req.Username,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		ShiftStart:  req.ShiftStart,
	}
}

func jobdeskInput(req dto.JobdeskRequest) service.JobdeskInput {
	return service.JobdeskInput{Name: req.Name, Description: req.Description, Color: req.Color}
}
