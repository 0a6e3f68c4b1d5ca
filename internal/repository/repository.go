package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/factoryops/jobdesk-permit/internal/domain"
)

// Sentinel errors returned by every repository implementation.
var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicate signals a unique key (username, jobdesk name) collision.
	ErrDuplicate = errors.New("duplicate")
	// ErrJobdeskOccupied signals a second live permission for one jobdesk.
	ErrJobdeskOccupied = errors.New("jobdesk occupied")
	// ErrStaffOccupied signals a second live permission for one staff member.
	ErrStaffOccupied = errors.New("staff occupied")
)

// DB is the subset of *pgxpool.Pool used by the Postgres repositories. It is
// also implemented by pgxmock.PgxPoolIface.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// StaffRepository handles persistence for the roster.
type StaffRepository interface {
	Create(ctx context.Context, staff *domain.Staff) error
	Update(ctx context.Context, staff *domain.Staff) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Staff, error)
	GetByUsername(ctx context.Context, username string) (*domain.Staff, error)
	List(ctx context.Context) ([]domain.Staff, error)
}

// JobdeskRepository handles persistence for the station catalog.
type JobdeskRepository interface {
	Create(ctx context.Context, jobdesk *domain.Jobdesk) error
	Update(ctx context.Context, jobdesk *domain.Jobdesk) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Jobdesk, error)
	GetByName(ctx context.Context, name string) (*domain.Jobdesk, error)
	List(ctx context.Context) ([]domain.Jobdesk, error)
}

// PolicyRepository stores the single policy document. Get returns ErrNotFound
// when nothing was saved yet.
type PolicyRepository interface {
	Get(ctx context.Context) (domain.PolicyConfig, error)
	Save(ctx context.Context, policy domain.PolicyConfig) error
}

// PermissionFilter narrows permission listings.
type PermissionFilter struct {
	StaffID *string
	// From and To bound StartedAt as [From, To).
	From  *time.Time
	To    *time.Time
	Limit int
}

// PermissionRepository is the single store of permission records. The active
// set is the view of records with Ended == false.
type PermissionRepository interface {
	// Start stores the staff's consumed quota and the new record as one unit.
	// It fails with ErrJobdeskOccupied or ErrStaffOccupied when either
	// exclusivity key already has a live record.
	Start(ctx context.Context, staff *domain.Staff, record *domain.PermissionRecord) error
	// Finish writes the ended state of a record in place.
	Finish(ctx context.Context, record *domain.PermissionRecord) error
	GetByID(ctx context.Context, id string) (*domain.PermissionRecord, error)
	ListActive(ctx context.Context) ([]domain.PermissionRecord, error)
	// List returns records newest first.
	List(ctx context.Context, filter PermissionFilter) ([]domain.PermissionRecord, error)
	CountByStaff(ctx context.Context, staffID string) (int, error)
}

// SessionStore keeps server-side login sessions with expiry.
type SessionStore interface {
	Save(ctx context.Context, session domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
	// DeleteBySubject removes every session of the subject.
	DeleteBySubject(ctx context.Context, subjectID string) error
}

func isUniqueViolation(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr, true
	}
	return nil, false
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
