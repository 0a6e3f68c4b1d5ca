package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/factoryops/jobdesk-permit/internal/domain"
)

const staffColumns = `id, username, password_hash, display_name, shift_start,
        regular_allowance, meal_allowance, regular_used, meal_used, last_reset_date,
        active_flag, last_login, created_at, updated_at`

type staffRepository struct {
	db DB
}

// NewStaffRepository instantiates the Postgres-backed roster.
func NewStaffRepository(db DB) StaffRepository {
	return &staffRepository{db: db}
}

func (r *staffRepository) Create(ctx context.Context, staff *domain.Staff) error {
	const query = `
        INSERT INTO staff (username, password_hash, display_name, shift_start,
            regular_allowance, meal_allowance, regular_used, meal_used, last_reset_date, active_flag)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		staff.Username,
		staff.PasswordHash,
		staff.DisplayName,
		staff.ShiftStart,
		staff.Quota.RegularAllowance,
		staff.Quota.MealAllowance,
		staff.Quota.RegularUsed,
		staff.Quota.MealUsed,
		staff.Quota.LastResetDate,
		staff.Active,
	).Scan(&staff.ID, &staff.CreatedAt, &staff.UpdatedAt)
	if _, ok := isUniqueViolation(err); ok {
		return ErrDuplicate
	}
	return err
}

func (r *staffRepository) Update(ctx context.Context, staff *domain.Staff) error {
	const query = `
        UPDATE staff
        SET username=$1, password_hash=$2, display_name=$3, shift_start=$4,
            regular_allowance=$5, meal_allowance=$6, regular_used=$7, meal_used=$8,
            last_reset_date=$9, active_flag=$10, last_login=$11, updated_at=NOW()
        WHERE id=$12`

	cmd, err := r.db.Exec(ctx, query,
		staff.Username,
		staff.PasswordHash,
		staff.DisplayName,
		staff.ShiftStart,
		staff.Quota.RegularAllowance,
		staff.Quota.MealAllowance,
		staff.Quota.RegularUsed,
		staff.Quota.MealUsed,
		staff.Quota.LastResetDate,
		staff.Active,
		staff.LastLogin,
		staff.ID,
	)
	if err != nil {
		if _, ok := isUniqueViolation(err); ok {
			return ErrDuplicate
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *staffRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM staff WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *staffRepository) GetByID(ctx context.Context, id string) (*domain.Staff, error) {
	query := `SELECT ` + staffColumns + ` FROM staff WHERE id=$1`
	staff, err := scanStaff(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return staff, nil
}

func (r *staffRepository) GetByUsername(ctx context.Context, username string) (*domain.Staff, error) {
	query := `SELECT ` + staffColumns + ` FROM staff WHERE username=$1`
	staff, err := scanStaff(r.db.QueryRow(ctx, query, username))
	if err != nil {
		return nil, notFound(err)
	}
	return staff, nil
}

func (r *staffRepository) List(ctx context.Context) ([]domain.Staff, error) {
	query := `SELECT ` + staffColumns + ` FROM staff ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Staff
	for rows.Next() {
		staff, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *staff)
	}
	return result, rows.Err()
}

func scanStaff(row pgx.Row) (*domain.Staff, error) {
	var staff domain.Staff
	if err := row.Scan(
		&staff.ID,
		&staff.Username,
		&staff.PasswordHash,
		&staff.DisplayName,
		&staff.ShiftStart,
		&staff.Quota.RegularAllowance,
		&staff.Quota.MealAllowance,
		&staff.Quota.RegularUsed,
		&staff.Quota.MealUsed,
		&staff.Quota.LastResetDate,
		&staff.Active,
		&staff.LastLogin,
		&staff.CreatedAt,
		&staff.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &staff, nil
}
