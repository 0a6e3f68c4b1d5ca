package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/factoryops/jobdesk-permit/internal/domain"
)

func newDB(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return mock
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func startFixture() (*domain.Staff, *domain.PermissionRecord) {
	staff := &domain.Staff{
		ID: "s1",
		Quota: domain.Quota{
			RegularAllowance: 4, MealAllowance: 3, RegularUsed: 1, LastResetDate: "2026-10-18",
		},
	}
	record := &domain.PermissionRecord{
		StaffID:         "s1",
		StaffName:       "Ahmad Rizki",
		Kind:            domain.PermissionRegular,
		JobdeskName:     "Packing",
		Note:            "toilet",
		DurationMinutes: 15,
		StartedAt:       time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC),
	}
	return staff, record
}

func TestPermissionRepo_Start_OK(t *testing.T) {
	mock := newDB(t)
	defer mock.Close()
	r := NewPermissionRepository(mock)
	staff, record := startFixture()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE staff`).
		WithArgs(1, 0, 4, 3, "2026-10-18", "s1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`INSERT INTO permissions`).
		WithArgs("s1", "Ahmad Rizki", domain.PermissionRegular, "Packing", "toilet", 15, record.StartedAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("p1"))
	mock.ExpectCommit()

	require.NoError(t, r.Start(context.Background(), staff, record))
	require.Equal(t, "p1", record.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionRepo_Start_JobdeskOccupied(t *testing.T) {
	mock := newDB(t)
	defer mock.Close()
	r := NewPermissionRepository(mock)
	staff, record := startFixture()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE staff`).
		WithArgs(anyArgs(6)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`INSERT INTO permissions`).
		WithArgs(anyArgs(7)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: activeJobdeskIndex})
	mock.ExpectRollback()

	err := r.Start(context.Background(), staff, record)
	require.ErrorIs(t, err, ErrJobdeskOccupied)
	require.Empty(t, record.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionRepo_Start_StaffOccupied(t *testing.T) {
	mock := newDB(t)
	defer mock.Close()
	r := NewPermissionRepository(mock)
	staff, record := startFixture()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE staff`).
		WithArgs(anyArgs(6)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`INSERT INTO permissions`).
		WithArgs(anyArgs(7)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: activeStaffIndex})
	mock.ExpectRollback()

	require.ErrorIs(t, r.Start(context.Background(), staff, record), ErrStaffOccupied)
	require.Empty(t, record.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionRepo_Start_OtherUniqueViolation(t *testing.T) {
	mock := newDB(t)
	defer mock.Close()
	r := NewPermissionRepository(mock)
	staff, record := startFixture()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE staff`).
		WithArgs(anyArgs(6)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`INSERT INTO permissions`).
		WithArgs(anyArgs(7)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "permissions_pkey"})
	mock.ExpectRollback()

	err := r.Start(context.Background(), staff, record)
	require.ErrorIs(t, err, ErrDuplicate)
	require.NotErrorIs(t, err, ErrJobdeskOccupied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionRepo_Start_BeginFails(t *testing.T) {
	mock := newDB(t)
	defer mock.Close()
	r := NewPermissionRepository(mock)
	staff, record := startFixture()

	boom := errors.New("connection refused")
	mock.ExpectBegin().WillReturnError(boom)

	require.ErrorIs(t, r.Start(context.Background(), staff, record), boom)
}

func TestPermissionRepo_Finish_NotActive(t *testing.T) {
	mock := newDB(t)
	defer mock.Close()
	r := NewPermissionRepository(mock)

	ended := time.Date(2026, 10, 18, 8, 10, 0, 0, time.UTC)
	record := &domain.PermissionRecord{ID: "p1", EndedAt: &ended, EndReason: domain.EndReasonManual}

	mock.ExpectExec(`UPDATE permissions SET ended=true`).
		WithArgs(&ended, domain.EndReasonManual, "p1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.ErrorIs(t, r.Finish(context.Background(), record), ErrNotFound)
}

func permissionRow(id, jobdesk string, started time.Time) []any {
	return []any{
		id, "s1", "Ahmad Rizki", domain.PermissionRegular, jobdesk, "", 15,
		started, (*time.Time)(nil), false, (*string)(nil),
	}
}

var permissionColumnNames = []string{
	"id", "staff_id", "staff_name", "kind", "jobdesk_name", "note", "duration_minutes",
	"started_at", "ended_at", "ended", "end_reason",
}

func TestPermissionRepo_ListActive(t *testing.T) {
	mock := newDB(t)
	defer mock.Close()
	r := NewPermissionRepository(mock)

	started := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM permissions WHERE ended=false`).
		WillReturnRows(pgxmock.NewRows(permissionColumnNames).
			AddRow(permissionRow("p1", "Packing", started)...).
			AddRow(permissionRow("p2", "Gudang", started.Add(time.Minute))...))

	active, err := r.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 2)
	require.Equal(t, "Gudang", active[1].JobdeskName)
	require.False(t, active[0].Ended)
	require.Nil(t, active[0].EndedAt)
}

func TestPermissionRepo_List_Filter(t *testing.T) {
	mock := newDB(t)
	defer mock.Close()
	r := NewPermissionRepository(mock)

	staffID := "s1"
	from := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	mock.ExpectQuery(`WHERE staff_id=\$1 AND started_at>=\$2 AND started_at<\$3 ORDER BY started_at DESC LIMIT 50`).
		WithArgs(staffID, from, to).
		WillReturnRows(pgxmock.NewRows(permissionColumnNames).
			AddRow(permissionRow("p1", "Packing", from.Add(8*time.Hour))...))

	records, err := r.List(context.Background(), PermissionFilter{StaffID: &staffID, From: &from, To: &to, Limit: 50})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStaffRepo_Create_Duplicate(t *testing.T) {
	mock := newDB(t)
	defer mock.Close()
	r := NewStaffRepository(mock)

	mock.ExpectQuery(`INSERT INTO staff`).
		WithArgs(anyArgs(10)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "staff_username_key"})

	err := r.Create(context.Background(), &domain.Staff{Username: "ahmad"})
	require.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobdeskRepo_GetByName_NotFound(t *testing.T) {
	mock := newDB(t)
	defer mock.Close()
	r := NewJobdeskRepository(mock)

	mock.ExpectQuery(`FROM jobdesks WHERE name=\$1`).
		WithArgs("Kantin").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "description", "color", "created_at", "updated_at"}))

	_, err := r.GetByName(context.Background(), "Kantin")
	require.ErrorIs(t, err, ErrNotFound)
}
