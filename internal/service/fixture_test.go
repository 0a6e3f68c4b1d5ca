package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/factoryops/jobdesk-permit/internal/auth"
	"github.com/factoryops/jobdesk-permit/internal/clock"
	"github.com/factoryops/jobdesk-permit/internal/config"
	"github.com/factoryops/jobdesk-permit/internal/domain"
	"github.com/factoryops/jobdesk-permit/internal/events"
	"github.com/factoryops/jobdesk-permit/internal/repository"
	"github.com/factoryops/jobdesk-permit/internal/repository/memory"
)

var testAuthConfig = config.AuthConfig{
	JWTSecret:           "test-secret",
	BcryptCost:          4,
	MasterPassword:      "aa1234",
	AdminSessionMinutes: 30,
}

type fixture struct {
	store       *memory.Store
	clock       *clock.Fake
	dispatcher  events.Dispatcher
	policies    *PolicyService
	engine      *PermissionEngine
	gate        *SessionGate
	admin       *AdminService
	permissions repository.PermissionRepository

	mu     sync.Mutex
	events []events.Event
}

type fixtureOption func(*fixtureDeps)

type fixtureDeps struct {
	permissions repository.PermissionRepository
	jobdesks    repository.JobdeskRepository
}

func withPermissionRepo(wrap func(repository.PermissionRepository) repository.PermissionRepository) fixtureOption {
	return func(d *fixtureDeps) { d.permissions = wrap(d.permissions) }
}

func withJobdeskRepo(wrap func(repository.JobdeskRepository) repository.JobdeskRepository) fixtureOption {
	return func(d *fixtureDeps) { d.jobdesks = wrap(d.jobdesks) }
}

// newFixture starts the clock at 2026-10-18 06:00 UTC, inside the 05:00 shift window.
func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	f := &fixture{
		clock:      clock.NewFake(time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC)),
		dispatcher: events.NewInMemoryDispatcher(),
	}
	f.store = memory.NewStore().WithClock(f.clock.Now)

	deps := &fixtureDeps{permissions: f.store.Permissions(), jobdesks: f.store.Jobdesks()}
	for _, opt := range opts {
		opt(deps)
	}
	f.permissions = deps.permissions

	f.policies = NewPolicyService(PolicyDependencies{
		PolicyRepo: f.store.Policy(),
		Fallback:   domain.DefaultPolicy(),
		Clock:      f.clock,
	})
	f.engine = NewPermissionEngine(EngineDependencies{
		StaffRepo:      f.store.Staff(),
		JobdeskRepo:    deps.jobdesks,
		PermissionRepo: f.permissions,
		Policies:       f.policies,
		Clock:          f.clock,
		Dispatcher:     f.dispatcher,
	})
	f.gate = NewSessionGate(testAuthConfig, GateDependencies{
		StaffRepo:    f.store.Staff(),
		SessionStore: f.store.Sessions(),
		Engine:       f.engine,
		Policies:     f.policies,
		Tokens:       auth.NewTokenManager(testAuthConfig.JWTSecret, f.clock.Now),
		Clock:        f.clock,
		Dispatcher:   f.dispatcher,
	})
	f.admin = NewAdminService(testAuthConfig, AdminDependencies{
		StaffRepo:   f.store.Staff(),
		JobdeskRepo: deps.jobdesks,
		Engine:      f.engine,
		Policies:    f.policies,
		Clock:       f.clock,
	})

	record := func(_ context.Context, event events.Event) error {
		f.mu.Lock()
		f.events = append(f.events, event)
		f.mu.Unlock()
		return nil
	}
	for _, eventType := range []events.EventType{
		events.EventPermissionStarted, events.EventPermissionEnded, events.EventQuotaReset,
		events.EventStaffLoggedIn, events.EventStaffLoggedOut,
	} {
		f.dispatcher.Subscribe(eventType, record)
	}

	require.NoError(t, f.admin.Seed(context.Background(), false))
	return f
}

func (f *fixture) addStaff(t *testing.T, username, shift string) *domain.Staff {
	t.Helper()
	staff, err := f.admin.CreateStaff(context.Background(), StaffInput{
		Username:    username,
		Password:    "staff123",
		DisplayName: "Staff " + username,
		ShiftStart:  shift,
	})
	require.NoError(t, err)
	return staff
}

// loggedIn creates a staff member on the 05:00 shift and logs them in.
func (f *fixture) loggedIn(t *testing.T, username string) *domain.Staff {
	t.Helper()
	f.addStaff(t, username, "05:00")
	result, err := f.gate.Login(context.Background(), username, "staff123")
	require.NoError(t, err)
	return result.Staff
}

func (f *fixture) staff(t *testing.T, id string) *domain.Staff {
	t.Helper()
	staff, err := f.store.Staff().GetByID(context.Background(), id)
	require.NoError(t, err)
	return staff
}

func (f *fixture) eventsOf(eventType events.EventType) []events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []events.Event
	for _, event := range f.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

func (f *fixture) setPolicy(t *testing.T, mutate func(*domain.PolicyConfig)) {
	t.Helper()
	policy, err := f.policies.Current(context.Background())
	require.NoError(t, err)
	mutate(&policy)
	_, err = f.policies.Update(context.Background(), policy)
	require.NoError(t, err)
}
