package middleware

import "context"

// Context key type to avoid collisions
type contextKey string

const (
	// TenantKey is the context key for the tenant identifier
	TenantKey contextKey = "tenant"

	// RoleKey is the context key for the caller role
	RoleKey contextKey = "role"
)

// GetTenantFromContext retrieves the tenant from context
func GetTenantFromContext(ctx context.Context) string {
	if val := ctx.Value(TenantKey); val != nil {
		if tenant, ok := val.(string); ok {
			return tenant
		}
	}
	return ""
}

// WithTenant adds a tenant to the context
func WithTenant(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, TenantKey, tenant)
}

// GetRoleFromContext retrieves the role from context
func GetRoleFromContext(ctx context.Context) string {
	if val := ctx.Value(RoleKey); val != nil {
		if role, ok := val.(string); ok {
			return role
		}
	}
	return ""
}

// WithRole adds a role to the context
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, RoleKey, role)
}
