package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/factoryops/jobdesk-permit/internal/domain"
)

// Partial unique indexes backing the exclusivity invariants.
const (
	activeJobdeskIndex = "permissions_active_jobdesk_uq"
	activeStaffIndex   = "permissions_active_staff_uq"
)

const permissionColumns = `id, staff_id, staff_name, kind, jobdesk_name, note, duration_minutes,
        started_at, ended_at, ended, end_reason`

type permissionRepository struct {
	db DB
}

// NewPermissionRepository instantiates the Postgres-backed permission store.
func NewPermissionRepository(db DB) PermissionRepository {
	return &permissionRepository{db: db}
}

func (r *permissionRepository) Start(ctx context.Context, staff *domain.Staff, record *domain.PermissionRecord) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const quotaQuery = `
        UPDATE staff
        SET regular_used=$1, meal_used=$2, regular_allowance=$3, meal_allowance=$4,
            last_reset_date=$5, updated_at=NOW()
        WHERE id=$6`
	cmd, err := tx.Exec(ctx, quotaQuery,
		staff.Quota.RegularUsed,
		staff.Quota.MealUsed,
		staff.Quota.RegularAllowance,
		staff.Quota.MealAllowance,
		staff.Quota.LastResetDate,
		staff.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}

	const insertQuery = `
        INSERT INTO permissions (staff_id, staff_name, kind, jobdesk_name, note, duration_minutes, started_at, ended)
        VALUES ($1,$2,$3,$4,$5,$6,$7,false)
        RETURNING id`
	err = tx.QueryRow(ctx, insertQuery,
		record.StaffID,
		record.StaffName,
		record.Kind,
		record.JobdeskName,
		record.Note,
		record.DurationMinutes,
		record.StartedAt,
	).Scan(&record.ID)
	if pgErr, ok := isUniqueViolation(err); ok {
		switch pgErr.ConstraintName {
		case activeJobdeskIndex:
			return ErrJobdeskOccupied
		case activeStaffIndex:
			return ErrStaffOccupied
		}
		return ErrDuplicate
	}
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *permissionRepository) Finish(ctx context.Context, record *domain.PermissionRecord) error {
	const query = `
        UPDATE permissions SET ended=true, ended_at=$1, end_reason=$2
        WHERE id=$3 AND ended=false`
	cmd, err := r.db.Exec(ctx, query, record.EndedAt, record.EndReason, record.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *permissionRepository) GetByID(ctx context.Context, id string) (*domain.PermissionRecord, error) {
	query := `SELECT ` + permissionColumns + ` FROM permissions WHERE id=$1`
	record, err := scanPermission(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return record, nil
}

func (r *permissionRepository) ListActive(ctx context.Context) ([]domain.PermissionRecord, error) {
	query := `SELECT ` + permissionColumns + ` FROM permissions WHERE ended=false ORDER BY started_at ASC`
	return r.query(ctx, query)
}

func (r *permissionRepository) List(ctx context.Context, filter PermissionFilter) ([]domain.PermissionRecord, error) {
	query := `SELECT ` + permissionColumns + ` FROM permissions`
	args := []any{}
	clauses := []string{}

	if filter.StaffID != nil {
		args = append(args, *filter.StaffID)
		clauses = append(clauses, fmt.Sprintf("staff_id=$%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		clauses = append(clauses, fmt.Sprintf("started_at>=$%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		clauses = append(clauses, fmt.Sprintf("started_at<$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	return r.query(ctx, query, args...)
}

func (r *permissionRepository) CountByStaff(ctx context.Context, staffID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM permissions WHERE staff_id=$1`, staffID).Scan(&count)
	return count, err
}

func (r *permissionRepository) query(ctx context.Context, query string, args ...any) ([]domain.PermissionRecord, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.PermissionRecord
	for rows.Next() {
		record, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *record)
	}
	return result, rows.Err()
}

func scanPermission(row pgx.Row) (*domain.PermissionRecord, error) {
	var (
		record    domain.PermissionRecord
		endReason *string
	)
	if err := row.Scan(
		&record.ID,
		&record.StaffID,
		&record.StaffName,
		&record.Kind,
		&record.JobdeskName,
		&record.Note,
		&record.DurationMinutes,
		&record.StartedAt,
		&record.EndedAt,
		&record.Ended,
		&endReason,
	); err != nil {
		return nil, err
	}
	if endReason != nil {
		record.EndReason = domain.EndReason(*endReason)
	}
	return &record, nil
}
