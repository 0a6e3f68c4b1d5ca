// Package memory implements the repository interfaces on process memory. It is
// used when no database is configured and in service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/factoryops/jobdesk-permit/internal/domain"
	"github.com/factoryops/jobdesk-permit/internal/repository"
)

// Store holds every table. Repositories created from one Store share it, so a
// permission start updates staff quota and the record under one lock.
type Store struct {
	mu          sync.RWMutex
	staff       map[string]domain.Staff
	jobdesks    map[string]domain.Jobdesk
	permissions map[string]domain.PermissionRecord
	sessions    map[string]domain.Session
	policy      *domain.PolicyConfig
	now         func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		staff:       make(map[string]domain.Staff),
		jobdesks:    make(map[string]domain.Jobdesk),
		permissions: make(map[string]domain.PermissionRecord),
		sessions:    make(map[string]domain.Session),
		now:         time.Now,
	}
}

// WithClock makes the store read time from now (session expiry, timestamps).
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Staff() repository.StaffRepository            { return staffRepo{s} }
func (s *Store) Jobdesks() repository.JobdeskRepository       { return jobdeskRepo{s} }
func (s *Store) Policy() repository.PolicyRepository          { return policyRepo{s} }
func (s *Store) Permissions() repository.PermissionRepository { return permissionRepo{s} }
func (s *Store) Sessions() repository.SessionStore            { return sessionStore{s} }

type staffRepo struct{ s *Store }

func (r staffRepo) Create(_ context.Context, staff *domain.Staff) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.staff {
		if existing.Username == staff.Username {
			return repository.ErrDuplicate
		}
	}
	staff.ID = uuid.NewString()
	staff.CreatedAt = r.s.now()
	staff.UpdatedAt = staff.CreatedAt
	r.s.staff[staff.ID] = *staff
	return nil
}

func (r staffRepo) Update(_ context.Context, staff *domain.Staff) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.staff[staff.ID]
	if !ok {
		return repository.ErrNotFound
	}
	for id, existing := range r.s.staff {
		if id != staff.ID && existing.Username == staff.Username {
			return repository.ErrDuplicate
		}
	}
	staff.CreatedAt = current.CreatedAt
	staff.UpdatedAt = r.s.now()
	r.s.staff[staff.ID] = *staff
	return nil
}

func (r staffRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.staff[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.staff, id)
	return nil
}

func (r staffRepo) GetByID(_ context.Context, id string) (*domain.Staff, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	staff, ok := r.s.staff[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &staff, nil
}

func (r staffRepo) GetByUsername(_ context.Context, username string) (*domain.Staff, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, staff := range r.s.staff {
		if staff.Username == username {
			return &staff, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r staffRepo) List(_ context.Context) ([]domain.Staff, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := make([]domain.Staff, 0, len(r.s.staff))
	for _, staff := range r.s.staff {
		result = append(result, staff)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].Username < result[j].Username
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

type jobdeskRepo struct{ s *Store }

func (r jobdeskRepo) Create(_ context.Context, jobdesk *domain.Jobdesk) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.jobdesks {
		if existing.Name == jobdesk.Name {
			return repository.ErrDuplicate
		}
	}
	jobdesk.ID = uuid.NewString()
	jobdesk.CreatedAt = r.s.now()
	jobdesk.UpdatedAt = jobdesk.CreatedAt
	r.s.jobdesks[jobdesk.ID] = *jobdesk
	return nil
}

func (r jobdeskRepo) Update(_ context.Context, jobdesk *domain.Jobdesk) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.jobdesks[jobdesk.ID]
	if !ok {
		return repository.ErrNotFound
	}
	for id, existing := range r.s.jobdesks {
		if id != jobdesk.ID && existing.Name == jobdesk.Name {
			return repository.ErrDuplicate
		}
	}
	jobdesk.CreatedAt = current.CreatedAt
	jobdesk.UpdatedAt = r.s.now()
	r.s.jobdesks[jobdesk.ID] = *jobdesk
	return nil
}

func (r jobdeskRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.jobdesks[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.jobdesks, id)
	return nil
}

func (r jobdeskRepo) GetByID(_ context.Context, id string) (*domain.Jobdesk, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	jobdesk, ok := r.s.jobdesks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &jobdesk, nil
}

func (r jobdeskRepo) GetByName(_ context.Context, name string) (*domain.Jobdesk, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, jobdesk := range r.s.jobdesks {
		if jobdesk.Name == name {
			return &jobdesk, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r jobdeskRepo) List(_ context.Context) ([]domain.Jobdesk, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := make([]domain.Jobdesk, 0, len(r.s.jobdesks))
	for _, jobdesk := range r.s.jobdesks {
		result = append(result, jobdesk)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

type policyRepo struct{ s *Store }

func (r policyRepo) Get(_ context.Context) (domain.PolicyConfig, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.policy == nil {
		return domain.PolicyConfig{}, repository.ErrNotFound
	}
	return *r.s.policy, nil
}

func (r policyRepo) Save(_ context.Context, policy domain.PolicyConfig) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.policy = &policy
	return nil
}

type permissionRepo struct{ s *Store }

func (r permissionRepo) Start(_ context.Context, staff *domain.Staff, record *domain.PermissionRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.staff[staff.ID]
	if !ok {
		return repository.ErrNotFound
	}
	for _, existing := range r.s.permissions {
		if existing.Ended {
			continue
		}
		if existing.JobdeskName == record.JobdeskName {
			return repository.ErrJobdeskOccupied
		}
		if existing.StaffID == record.StaffID {
			return repository.ErrStaffOccupied
		}
	}
	current.Quota = staff.Quota
	current.UpdatedAt = r.s.now()
	r.s.staff[staff.ID] = current

	record.ID = uuid.NewString()
	r.s.permissions[record.ID] = *record
	return nil
}

func (r permissionRepo) Finish(_ context.Context, record *domain.PermissionRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.permissions[record.ID]
	if !ok || current.Ended {
		return repository.ErrNotFound
	}
	current.Ended = true
	current.EndedAt = record.EndedAt
	current.EndReason = record.EndReason
	r.s.permissions[record.ID] = current
	return nil
}

func (r permissionRepo) GetByID(_ context.Context, id string) (*domain.PermissionRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	record, ok := r.s.permissions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &record, nil
}

func (r permissionRepo) ListActive(_ context.Context) ([]domain.PermissionRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.PermissionRecord
	for _, record := range r.s.permissions {
		if !record.Ended {
			result = append(result, record)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartedAt.Before(result[j].StartedAt) })
	return result, nil
}

func (r permissionRepo) List(_ context.Context, filter repository.PermissionFilter) ([]domain.PermissionRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.PermissionRecord
	for _, record := range r.s.permissions {
		if filter.StaffID != nil && record.StaffID != *filter.StaffID {
			continue
		}
		if filter.From != nil && record.StartedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !record.StartedAt.Before(*filter.To) {
			continue
		}
		result = append(result, record)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartedAt.After(result[j].StartedAt) })
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (r permissionRepo) CountByStaff(_ context.Context, staffID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	count := 0
	for _, record := range r.s.permissions {
		if record.StaffID == staffID {
			count++
		}
	}
	return count, nil
}

type sessionStore struct{ s *Store }

func (r sessionStore) Save(_ context.Context, session domain.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.sessions[session.ID] = session
	return nil
}

func (r sessionStore) Get(_ context.Context, id string) (*domain.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session, ok := r.s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !r.s.now().Before(session.ExpiresAt) {
		delete(r.s.sessions, id)
		return nil, repository.ErrNotFound
	}
	return &session, nil
}

func (r sessionStore) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.sessions, id)
	return nil
}

func (r sessionStore) DeleteBySubject(_ context.Context, subjectID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, session := range r.s.sessions {
		if session.SubjectID == subjectID {
			delete(r.s.sessions, id)
		}
	}
	return nil
}
