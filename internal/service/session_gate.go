package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/factoryops/jobdesk-permit/internal/auth"
	"github.com/factoryops/jobdesk-permit/internal/clock"
	"github.com/factoryops/jobdesk-permit/internal/config"
	"github.com/factoryops/jobdesk-permit/internal/domain"
	"github.com/factoryops/jobdesk-permit/internal/events"
	"github.com/factoryops/jobdesk-permit/internal/repository"
	apperrors "github.com/factoryops/jobdesk-permit/pkg/util/errorutil"
)

// adminSubjectID is the subject of every admin session; the gate has one shared secret.
const adminSubjectID = "admin"

// LoginResult is returned by a successful login.
type LoginResult struct {
	Staff     *domain.Staff
	Token     string
	ExpiresAt time.Time
}

// SessionGate authenticates staff inside their shift window and issues sessions.
type SessionGate struct {
	staff          repository.StaffRepository
	sessions       repository.SessionStore
	engine         *PermissionEngine
	policies       PolicyReader
	tokens         *auth.TokenManager
	clock          clock.Clock
	dispatcher     events.Dispatcher
	logger         *zap.Logger
	masterPassword string
	adminTTL       time.Duration
}

// GateDependencies encapsulates collaborators of the session gate.
type GateDependencies struct {
	StaffRepo    repository.StaffRepository
	SessionStore repository.SessionStore
	Engine       *PermissionEngine
	Policies     PolicyReader
	Tokens       *auth.TokenManager
	Clock        clock.Clock
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// NewSessionGate builds the gate.
func NewSessionGate(cfg config.AuthConfig, deps GateDependencies) *SessionGate {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionGate{
		staff:          deps.StaffRepo,
		sessions:       deps.SessionStore,
		engine:         deps.Engine,
		policies:       deps.Policies,
		tokens:         deps.Tokens,
		clock:          deps.Clock,
		dispatcher:     deps.Dispatcher,
		logger:         logger,
		masterPassword: cfg.MasterPassword,
		adminTTL:       cfg.AdminSessionTTL(),
	}
}

// Authenticate checks credentials and the shift window at the gate clock. On
// success the staff member is marked active with lastLogin = now and the
// quota is freshened.
func (g *SessionGate) Authenticate(ctx context.Context, username, password string) (*domain.Staff, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.NewValidationError("username and password are required", nil)
	}

	staff, err := g.staff.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.InvalidCredentials()
	}
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	if err := auth.ComparePassword(staff.PasswordHash, password); err != nil {
		return nil, domain.InvalidCredentials()
	}

	policy, err := g.policies.Current(ctx)
	if err != nil {
		return nil, err
	}
	shift, err := domain.ParseShiftTime(staff.ShiftStart)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	window, ok := shift.LoginWindowAt(g.clock.Now(), policy.LoginWindow())
	if !ok {
		g.logger.Info("login outside shift window",
			zap.String("staff_id", staff.ID),
			zap.Time("window_start", window.Start),
			zap.Time("window_end", window.End))
		return nil, domain.OutsideShiftWindow(window)
	}

	return g.engine.MarkLoggedIn(ctx, staff.ID)
}

// Login authenticates and opens a session lasting the policy session TTL.
func (g *SessionGate) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	staff, err := g.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	policy, err := g.policies.Current(ctx)
	if err != nil {
		return nil, err
	}

	token, session, err := g.openSession(ctx, domain.SubjectTypeStaff, staff.ID, *staff.LastLogin, policy.SessionTTL())
	if err != nil {
		return nil, err
	}

	g.logger.Info("staff logged in", zap.String("staff_id", staff.ID))
	g.publish(ctx, events.Event{
		Type:    events.EventStaffLoggedIn,
		StaffID: staff.ID,
		Actor:   events.StaffActor(staff.ID),
		Payload: events.StaffSessionPayload{Username: staff.Username, DisplayName: staff.DisplayName},
	})
	return &LoginResult{Staff: staff, Token: token, ExpiresAt: session.ExpiresAt}, nil
}

// Logout force-ends the staff member's active permission, marks them inactive
// and revokes all of their sessions.
func (g *SessionGate) Logout(ctx context.Context, staffID string) (*domain.PermissionRecord, error) {
	ended, err := g.engine.Logout(ctx, staffID)
	if err != nil {
		return ended, err
	}
	if err := g.sessions.DeleteBySubject(ctx, staffID); err != nil {
		return ended, apperrors.NewStorageError(err)
	}

	g.logger.Info("staff logged out", zap.String("staff_id", staffID))
	g.publish(ctx, events.Event{
		Type:    events.EventStaffLoggedOut,
		StaffID: staffID,
		Actor:   events.StaffActor(staffID),
		Payload: events.StaffSessionPayload{},
	})
	return ended, nil
}

// AdminLogin opens an admin session when password matches the master password.
func (g *SessionGate) AdminLogin(ctx context.Context, password string) (string, time.Time, error) {
	if subtle.ConstantTimeCompare([]byte(password), []byte(g.masterPassword)) != 1 {
		g.logger.Warn("admin login rejected")
		return "", time.Time{}, domain.InvalidCredentials()
	}
	token, session, err := g.openSession(ctx, domain.SubjectTypeAdmin, adminSubjectID, g.clock.Now(), g.adminTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	g.logger.Info("admin logged in", zap.String("session_id", session.ID))
	return token, session.ExpiresAt, nil
}

// AdminLogout revokes one admin session.
func (g *SessionGate) AdminLogout(ctx context.Context, sessionID string) error {
	if err := g.sessions.Delete(ctx, sessionID); err != nil {
		return apperrors.NewStorageError(err)
	}
	return nil
}

// TokenManager exposes the token manager for the auth middleware.
func (g *SessionGate) TokenManager() *auth.TokenManager {
	return g.tokens
}

func (g *SessionGate) openSession(ctx context.Context, subject domain.SubjectType, subjectID string, issuedAt time.Time, ttl time.Duration) (string, domain.Session, error) {
	session := domain.Session{
		ID:        uuid.NewString(),
		Subject:   subject,
		SubjectID: subjectID,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(ttl),
	}
	if err := g.sessions.Save(ctx, session); err != nil {
		return "", session, apperrors.NewStorageError(err)
	}
	token, err := g.tokens.GenerateToken(session)
	if err != nil {
		return "", session, apperrors.NewInternalError(err)
	}
	return token, session, nil
}

func (g *SessionGate) publish(ctx context.Context, event events.Event) {
	if g.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = g.clock.Now()
	if err := g.dispatcher.Publish(ctx, event); err != nil {
		g.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
