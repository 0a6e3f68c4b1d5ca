package service

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/factoryops/jobdesk-permit/internal/auth"
	"github.com/factoryops/jobdesk-permit/internal/clock"
	"github.com/factoryops/jobdesk-permit/internal/config"
	"github.com/factoryops/jobdesk-permit/internal/domain"
	"github.com/factoryops/jobdesk-permit/internal/repository"
	apperrors "github.com/factoryops/jobdesk-permit/pkg/util/errorutil"
)

const csvTimeLayout = "2006-01-02 15:04:05"

// LogsCSVHeader is the first row of the log export.
var LogsCSVHeader = []string{"Staff", "Type", "Jobdesk", "Note", "Duration (min)", "Start", "End", "Status"}

// AdminService manages the roster and the jobdesk catalog.
type AdminService struct {
	staff      repository.StaffRepository
	jobdesks   repository.JobdeskRepository
	engine     *PermissionEngine
	policies   PolicyReader
	clock      clock.Clock
	logger     *zap.Logger
	bcryptCost int
}

// AdminDependencies encapsulates repositories required for administration.
type AdminDependencies struct {
	StaffRepo   repository.StaffRepository
	JobdeskRepo repository.JobdeskRepository
	Engine      *PermissionEngine
	Policies    PolicyReader
	Clock       clock.Clock
	Logger      *zap.Logger
}

// StaffInput carries roster form values. An empty Password keeps the
// current credential on update.
type StaffInput struct {
	Username    string
	Password    string
	DisplayName string
	ShiftStart  string
}

// JobdeskInput carries catalog form values.
type JobdeskInput struct {
	Name        string
	Description string
	Color       string
}

// NewAdminService constructs the service.
func NewAdminService(cfg config.AuthConfig, deps AdminDependencies) *AdminService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{
		staff:      deps.StaffRepo,
		jobdesks:   deps.JobdeskRepo,
		engine:     deps.Engine,
		policies:   deps.Policies,
		clock:      deps.Clock,
		logger:     logger,
		bcryptCost: cfg.BcryptCost,
	}
}

// CreateStaff adds a staff member with a fresh quota from the current policy.
func (s *AdminService) CreateStaff(ctx context.Context, input StaffInput) (*domain.Staff, error) {
	input = trimStaffInput(input)
	if err := validateStaffInput(input, true); err != nil {
		return nil, err
	}
	policy, err := s.policies.Current(ctx)
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	staff := &domain.Staff{
		Username:     input.Username,
		PasswordHash: hash,
		DisplayName:  input.DisplayName,
		ShiftStart:   input.ShiftStart,
		Quota:        domain.NewQuota(policy, clock.DateOf(s.clock.Now())),
	}
	if err := s.staff.Create(ctx, staff); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domain.DuplicateUsername(input.Username)
		}
		return nil, apperrors.NewStorageError(err)
	}
	s.logger.Info("staff created", zap.String("staff_id", staff.ID), zap.String("username", staff.Username))
	return staff, nil
}

// UpdateStaff edits profile fields; the username check excludes the staff itself.
func (s *AdminService) UpdateStaff(ctx context.Context, staffID string, input StaffInput) (*domain.Staff, error) {
	input = trimStaffInput(input)
	if err := validateStaffInput(input, false); err != nil {
		return nil, err
	}
	var hash string
	if input.Password != "" {
		var err error
		if hash, err = auth.HashPassword(input.Password, s.bcryptCost); err != nil {
			return nil, apperrors.NewInternalError(err)
		}
	}
	return s.engine.UpdateStaff(ctx, staffID, func(staff *domain.Staff) error {
		staff.Username = input.Username
		staff.DisplayName = input.DisplayName
		staff.ShiftStart = input.ShiftStart
		if hash != "" {
			staff.PasswordHash = hash
		}
		return nil
	})
}

// DeleteStaff removes a staff member, ending their running permission first.
func (s *AdminService) DeleteStaff(ctx context.Context, staffID string) error {
	return s.engine.DeleteStaff(ctx, staffID)
}

// ListStaff returns the roster.
func (s *AdminService) ListStaff(ctx context.Context) ([]domain.Staff, error) {
	roster, err := s.staff.List(ctx)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	return roster, nil
}

// CreateJobdesk adds a station to the catalog.
func (s *AdminService) CreateJobdesk(ctx context.Context, input JobdeskInput) (*domain.Jobdesk, error) {
	input = trimJobdeskInput(input)
	if input.Name == "" {
		return nil, apperrors.NewValidationError("name is required", map[string]any{"name": "required"})
	}
	jobdesk := &domain.Jobdesk{Name: input.Name, Description: input.Description, Color: input.Color}
	if err := s.jobdesks.Create(ctx, jobdesk); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domain.DuplicateJobdeskName(input.Name)
		}
		return nil, apperrors.NewStorageError(err)
	}
	s.logger.Info("jobdesk created", zap.String("jobdesk_id", jobdesk.ID), zap.String("name", jobdesk.Name))
	return jobdesk, nil
}

// UpdateJobdesk edits a station. Renaming an occupied station is rejected
// because the name is the exclusivity key of running permissions. The current
// row is read under the engine lock so concurrent renames see each other.
func (s *AdminService) UpdateJobdesk(ctx context.Context, jobdeskID string, input JobdeskInput) (*domain.Jobdesk, error) {
	input = trimJobdeskInput(input)
	if input.Name == "" {
		return nil, apperrors.NewValidationError("name is required", map[string]any{"name": "required"})
	}

	var updated domain.Jobdesk
	resolve := func() (string, error) {
		current, err := s.getJobdesk(ctx, jobdeskID)
		if err != nil {
			return "", err
		}
		updated = *current
		updated.Name = input.Name
		updated.Description = input.Description
		updated.Color = input.Color
		if current.Name == updated.Name {
			return "", nil
		}
		return current.Name, nil
	}
	save := func() error {
		if err := s.jobdesks.Update(ctx, &updated); err != nil {
			switch {
			case errors.Is(err, repository.ErrDuplicate):
				return domain.DuplicateJobdeskName(updated.Name)
			case errors.Is(err, repository.ErrNotFound):
				return apperrors.NewNotFound("jobdesk", map[string]any{"id": jobdeskID})
			}
			return apperrors.NewStorageError(err)
		}
		return nil
	}
	if err := s.engine.WithJobdeskReleased(ctx, resolve, save); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteJobdesk removes a station that nobody is currently away from.
func (s *AdminService) DeleteJobdesk(ctx context.Context, jobdeskID string) error {
	var name string
	resolve := func() (string, error) {
		current, err := s.getJobdesk(ctx, jobdeskID)
		if err != nil {
			return "", err
		}
		name = current.Name
		return name, nil
	}
	return s.engine.WithJobdeskReleased(ctx, resolve, func() error {
		if err := s.jobdesks.Delete(ctx, jobdeskID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewNotFound("jobdesk", map[string]any{"id": jobdeskID})
			}
			return apperrors.NewStorageError(err)
		}
		s.logger.Info("jobdesk deleted", zap.String("jobdesk_id", jobdeskID), zap.String("name", name))
		return nil
	})
}

// ListJobdesks returns the catalog.
func (s *AdminService) ListJobdesks(ctx context.Context) ([]domain.Jobdesk, error) {
	catalog, err := s.jobdesks.List(ctx)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	return catalog, nil
}

// ExportLogsCSV writes the newest limit permissions as CSV.
func (s *AdminService) ExportLogsCSV(ctx context.Context, w io.Writer, limit int) error {
	records, err := s.engine.Logs(ctx, limit)
	if err != nil {
		return err
	}
	loc := s.clock.Now().Location()

	out := csv.NewWriter(w)
	if err := out.Write(LogsCSVHeader); err != nil {
		return err
	}
	for _, record := range records {
		end, status := "", "Active"
		if record.Ended {
			status = "Ended"
			if record.EndedAt != nil {
				end = record.EndedAt.In(loc).Format(csvTimeLayout)
			}
		}
		row := []string{
			record.StaffName,
			string(record.Kind),
			record.JobdeskName,
			record.Note,
			strconv.Itoa(record.DurationMinutes),
			record.StartedAt.In(loc).Format(csvTimeLayout),
			end,
			status,
		}
		if err := out.Write(row); err != nil {
			return err
		}
	}
	out.Flush()
	return out.Error()
}

func (s *AdminService) getJobdesk(ctx context.Context, jobdeskID string) (*domain.Jobdesk, error) {
	jobdesk, err := s.jobdesks.GetByID(ctx, jobdeskID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("jobdesk", map[string]any{"id": jobdeskID})
	}
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	return jobdesk, nil
}

func trimStaffInput(input StaffInput) StaffInput {
	input.Username = strings.TrimSpace(input.Username)
	input.DisplayName = strings.TrimSpace(input.DisplayName)
	input.ShiftStart = strings.TrimSpace(input.ShiftStart)
	return input
}

func validateStaffInput(input StaffInput, requirePassword bool) error {
	problems := map[string]any{}
	if input.Username == "" {
		problems["username"] = "required"
	}
	if input.DisplayName == "" {
		problems["display_name"] = "required"
	}
	if requirePassword && input.Password == "" {
		problems["password"] = "required"
	}
	if _, err := domain.ParseShiftTime(input.ShiftStart); err != nil {
		problems["shift_start"] = err.Error()
	}
	if len(problems) > 0 {
		return apperrors.NewValidationError("invalid staff", problems)
	}
	return nil
}

func trimJobdeskInput(input JobdeskInput) JobdeskInput {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	input.Color = strings.TrimSpace(input.Color)
	if input.Color == "" {
		input.Color = domain.DefaultJobdeskColor
	}
	return input
}
