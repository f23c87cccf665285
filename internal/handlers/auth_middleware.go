package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"talentmatch/api/internal/auth"
	"talentmatch/api/internal/repositories"
)

const authContextKey = "authContext"

// ProMemberHeader is the placeholder privilege signal for the match quota.
// A persisted subscription flag is a future iteration; the header contract
// is kept as-is until then.
const ProMemberHeader = "x-pro-member"

// AuthContext is what a request carries after the middleware has resolved
// the caller.
type AuthContext struct {
	UserID    uuid.UUID
	Subject   string
	ProMember bool
}

type AuthMiddleware struct {
	verifier auth.Verifier
	users    repositories.UserRepository
	logger   *zap.Logger
}

func NewAuthMiddleware(verifier auth.Verifier, users repositories.UserRepository, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		users:    users,
		logger:   logger,
	}
}

// Handle verifies the bearer token, ensures the user row exists, and stores
// the auth context for downstream handlers.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token := bearerToken(c.Get(fiber.HeaderAuthorization))
	if token == "" {
		// The dev verifier ignores the token entirely, so let it decide.
		token = "-"
	}

	identity, err := m.verifier.Verify(c.Context(), token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthorized",
		})
	}

	user, err := m.users.EnsureUser(c.Context(), identity.Subject, identity.Email)
	if err != nil {
		m.logger.Error("failed to ensure user", zap.String("subject", identity.Subject), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal_error",
		})
	}

	c.Locals(authContextKey, AuthContext{
		UserID:    user.ID,
		Subject:   user.ExternalSubject,
		ProMember: c.Get(ProMemberHeader) == "1",
	})

	return c.Next()
}

// AuthFromContext returns the resolved caller. Handlers behind the
// middleware can rely on it being present.
func AuthFromContext(c *fiber.Ctx) AuthContext {
	if ac, ok := c.Locals(authContextKey).(AuthContext); ok {
		return ac
	}
	return AuthContext{}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if strings.HasPrefix(header, prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
