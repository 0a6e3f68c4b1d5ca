package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/factoryops/jobdesk-permit/internal/domain"
)

type jobdeskRepository struct {
	db DB
}

// NewJobdeskRepository instantiates the Postgres-backed catalog.
func NewJobdeskRepository(db DB) JobdeskRepository {
	return &jobdeskRepository{db: db}
}

func (r *jobdeskRepository) Create(ctx context.Context, jobdesk *domain.Jobdesk) error {
	const query = `
        INSERT INTO jobdesks (name, description, color)
        VALUES ($1,$2,$3)
        RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query, jobdesk.Name, jobdesk.Description, jobdesk.Color).
		Scan(&jobdesk.ID, &jobdesk.CreatedAt, &jobdesk.UpdatedAt)
	if _, ok := isUniqueViolation(err); ok {
		return ErrDuplicate
	}
	return err
}

func (r *jobdeskRepository) Update(ctx context.Context, jobdesk *domain.Jobdesk) error {
	const query = `
        UPDATE jobdesks SET name=$1, description=$2, color=$3, updated_at=NOW()
        WHERE id=$4`
	cmd, err := r.db.Exec(ctx, query, jobdesk.Name, jobdesk.Description, jobdesk.Color, jobdesk.ID)
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

func (r *jobdeskRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM jobdesks WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *jobdeskRepository) GetByID(ctx context.Context, id string) (*domain.Jobdesk, error) {
	const query = `
        SELECT id, name, description, color, created_at, updated_at
        FROM jobdesks WHERE id=$1`
	jobdesk, err := scanJobdesk(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return jobdesk, nil
}

func (r *jobdeskRepository) GetByName(ctx context.Context, name string) (*domain.Jobdesk, error) {
	const query = `
        SELECT id, name, description, color, created_at, updated_at
        FROM jobdesks WHERE name=$1`
	jobdesk, err := scanJobdesk(r.db.QueryRow(ctx, query, name))
	if err != nil {
		return nil, notFound(err)
	}
	return jobdesk, nil
}

func (r *jobdeskRepository) List(ctx context.Context) ([]domain.Jobdesk, error) {
	const query = `
        SELECT id, name, description, color, created_at, updated_at
        FROM jobdesks ORDER BY created_at ASC, name ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Jobdesk
	for rows.Next() {
		jobdesk, err := scanJobdesk(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *jobdesk)
	}
	return result, rows.Err()
}

func scanJobdesk(row pgx.Row) (*domain.Jobdesk, error) {
	var jobdesk domain.Jobdesk
	if err := row.Scan(
		&jobdesk.ID,
		&jobdesk.Name,
		&jobdesk.Description,
		&jobdesk.Color,
		&jobdesk.CreatedAt,
		&jobdesk.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &jobdesk, nil
}
