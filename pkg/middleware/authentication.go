package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/labstack/echo/v4"

	appctx "github.com/vukmarkovic/Europace-sub000/pkg/context"
	"github.com/vukmarkovic/Europace-sub000/pkg/tracing"
)

type UserClaims struct {
	Sub string `json:"sub"`
	// TenantID is the auth id of the portal installation the user belongs to
	TenantID    string `json:"tenant_id"`
	Email       string `json:"email"`
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

// Tenant falls back to the first realm role when the token has no tenant claim.
func (u UserClaims) Tenant() string {
	if u.TenantID != "" {
		return u.TenantID
	}
	if len(u.RealmAccess.Roles) > 0 {
		return u.RealmAccess.Roles[0]
	}
	return ""
}

// TokenVerifier verifies a raw bearer token. *oidc.IDTokenVerifier satisfies it.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*oidc.IDToken, error)
}

// NewOIDCVerifier discovers issuer and returns its verifier for clientID.
func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (*oidc.IDTokenVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc provider: %w", err)
	}
	return provider.Verifier(&oidc.Config{ClientID: clientID}), nil
}

func Authentication(logger ectologger.Logger, verifier TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			ctx, span := tracing.StartSpan(ctx, "middleware.Authentication")
			defer span.End()

			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				logger.WithContext(ctx).Warn("request is missing bearer token")
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer")
			}

			raw := strings.TrimPrefix(auth, "Bearer ")
			verifyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			idToken, err := verifier.Verify(verifyCtx, raw)
			if err != nil {
				logger.WithContext(ctx).WithError(err).Warn("token is invalid")
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			var claims UserClaims
			if err := idToken.Claims(&claims); err != nil {
				logger.WithContext(ctx).WithError(err).Warn("failed to parse claims")
				return echo.NewHTTPError(http.StatusUnauthorized, "cannot parse claims")
			}

			ctx = appctx.SetUserID(ctx, claims.Sub)
			ctx = appctx.SetTenantID(ctx, claims.Tenant())

			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}
