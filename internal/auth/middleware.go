package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/fieldops-console/internal/cache"
	"github.com/spec-kit/fieldops-console/internal/domain"
	"github.com/spec-kit/fieldops-console/internal/repository"
	apperrors "github.com/spec-kit/fieldops-console/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	Account *domain.StaffAccount
	Claims  *Claims
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens   *TokenManager
	staff    repository.StaffRepository
	denylist cache.TokenDenylist
	logger   *zap.Logger
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, staff repository.StaffRepository, denylist cache.TokenDenylist, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, staff: staff, denylist: denylist, logger: logger}
}

// Handle enforces authentication for protected routes. Revoked tokens and
// deactivated accounts are reported as terminated sessions.
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

	revoked, err := m.denylist.IsRevoked(c.UserContext(), claims.ID)
	if err != nil {
		m.logger.Warn("denylist lookup failed", zap.Error(err))
	}
	if revoked {
		return terminated("session revoked")
	}

	account, err := m.staff.GetByID(c.UserContext(), claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return terminated("account not found")
		}
		return apperrors.MapError(err)
	}
	if !account.Active {
		return terminated("account inactive")
	}

	c.Locals(principalKey, &Principal{Account: account, Claims: claims})
	return c.Next()
}

func terminated(message string) error {
	return apperrors.NewDomainError(apperrors.CodeSessionTerminate, message, fiber.StatusUnauthorized, nil)
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
