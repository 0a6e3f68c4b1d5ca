package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/factoryops/jobdesk-permit/internal/domain"
	"github.com/factoryops/jobdesk-permit/internal/repository"
	apperrors "github.com/factoryops/jobdesk-permit/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	SubjectType domain.SubjectType
	SessionID   string
	Staff       *domain.Staff
}

// AuthMiddleware validates bearer tokens against live sessions and loads principals.
type AuthMiddleware struct {
	tokens   *TokenManager
	sessions repository.SessionStore
	staff    repository.StaffRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, sessions repository.SessionStore, staff repository.StaffRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, sessions: sessions, staff: staff}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	session, err := m.sessions.Get(c.UserContext(), claims.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewUnauthorized("session expired")
		}
		return apperrors.NewStorageError(err)
	}
	if session.Subject != claims.Subject || session.SubjectID != claims.SubjectID {
		return apperrors.NewUnauthorized("invalid token")
	}

	principal := &Principal{SubjectType: session.Subject, SessionID: session.ID}

	switch session.Subject {
	case domain.SubjectTypeStaff:
		staff, err := m.staff.GetByID(c.UserContext(), session.SubjectID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewUnauthorized("staff not found")
			}
			return apperrors.NewStorageError(err)
		}
		principal.Staff = staff
	case domain.SubjectTypeAdmin:
	default:
		return apperrors.NewUnauthorized("unknown subject")
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
