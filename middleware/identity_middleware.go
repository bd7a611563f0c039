package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// IdentityClaims are the claims the upstream gateway embeds in its
// tokens. Only tenant and role matter to routing.
type IdentityClaims struct {
	Tenant string `json:"tenant"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// IdentityMiddleware extracts the caller's tenant and role and stores
// them in the request context. The router does not authenticate users
// itself: it trusts the X-Tenant-ID / X-Role headers set by the gateway,
// or, when a JWT secret is configured, a bearer token the gateway
// signed. Requests without any identity pass through with empty tenant
// and role, which resolve to the default policy rule.
type IdentityMiddleware struct {
	jwtSecret string
	logger    *zap.Logger
}

// NewIdentityMiddleware creates identity middleware. jwtSecret may be
// empty, in which case bearer tokens are ignored.
func NewIdentityMiddleware(jwtSecret string, logger *zap.Logger) *IdentityMiddleware {
	return &IdentityMiddleware{jwtSecret: jwtSecret, logger: logger}
}

// Handler is the middleware function.
func (m *IdentityMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant := strings.TrimSpace(r.Header.Get("X-Tenant-ID"))
		role := strings.TrimSpace(r.Header.Get("X-Role"))

		// A bearer token overrides headers when configured and valid.
		if m.jwtSecret != "" {
			if claims := m.claimsFromRequest(r); claims != nil {
				if claims.Tenant != "" {
					tenant = claims.Tenant
				}
				if claims.Role != "" {
					role = claims.Role
				}
			}
		}

		ctx := WithTenant(r.Context(), tenant)
		ctx = WithRole(ctx, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *IdentityMiddleware) claimsFromRequest(r *http.Request) *IdentityClaims {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil
	}

	claims := &IdentityClaims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(m.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		m.logger.Debug("rejecting bearer token", zap.Error(err))
		return nil
	}
	return claims
}
