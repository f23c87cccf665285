package auth

import (
	"context"
	"fmt"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"talentmatch/api/internal/config"
)

// Identity is what a verified bearer token resolves to.
type Identity struct {
	Subject string
	Email   *string
}

// Verifier turns a raw bearer token into a stable external subject.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// DevSubject is the synthetic subject injected when verification is
// disabled.
const DevSubject = "dev|user"

// devVerifier skips verification entirely and answers with the synthetic
// subject, regardless of the presented token.
type devVerifier struct{}

func (devVerifier) Verify(context.Context, string) (*Identity, error) {
	return &Identity{Subject: DevSubject}, nil
}

// auth0Verifier validates RS256 tokens against the tenant JWKS and checks
// issuer and audience.
type auth0Verifier struct {
	keys     keyfunc.Keyfunc
	issuer   string
	audience string
	logger   *zap.Logger
}

// NewVerifier picks the dev bypass or the Auth0 JWKS verifier based on
// configuration.
func NewVerifier(ctx context.Context, cfg config.AuthConfig, logger *zap.Logger) (Verifier, error) {
	if cfg.Disabled {
		logger.Warn("authentication disabled, using synthetic subject", zap.String("subject", DevSubject))
		return devVerifier{}, nil
	}

	if cfg.Auth0Domain == "" {
		return nil, fmt.Errorf("AUTH0_DOMAIN is required when auth is enabled")
	}

	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", cfg.Auth0Domain)
	keys, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to load JWKS from %s: %w", jwksURL, err)
	}

	return &auth0Verifier{
		keys:     keys,
		issuer:   cfg.Issuer(),
		audience: cfg.Audience,
		logger:   logger,
	}, nil
}

func (v *auth0Verifier) Verify(ctx context.Context, tokenString string) (*Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.Parse(tokenString, v.keys.Keyfunc, opts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type")
	}

	subject, _ := claims.GetSubject()
	if subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	identity := &Identity{Subject: subject}
	if email, ok := claims["email"].(string); ok && email != "" {
		identity.Email = &email
	}

	return identity, nil
}
