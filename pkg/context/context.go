package context

import "context"

type ContextKey string

var (
	RequestIDKey = ContextKey("X-Request-Id")
	RouteKey     = ContextKey("X-Route")
	TenantIDKey  = ContextKey("X-Tenant-Id")
	UserIDKey    = ContextKey("X-User-Id")
	PortalKey    = ContextKey("X-Portal")
)

func set(ctx context.Context, key ContextKey, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

func get(ctx context.Context, key ContextKey) string {
	value, ok := ctx.Value(key).(string)
	if !ok {
		return ""
	}
	return value
}

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return set(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	return get(ctx, RequestIDKey)
}

func SetRoute(ctx context.Context, route string) context.Context {
	return set(ctx, RouteKey, route)
}

func GetRoute(ctx context.Context) string {
	return get(ctx, RouteKey)
}

// SetTenantID stores the auth id of the CRM portal installation the request acts for.
func SetTenantID(ctx context.Context, tenantID string) context.Context {
	return set(ctx, TenantIDKey, tenantID)
}

func GetTenantID(ctx context.Context) string {
	return get(ctx, TenantIDKey)
}

func SetUserID(ctx context.Context, userID string) context.Context {
	return set(ctx, UserIDKey, userID)
}

func GetUserID(ctx context.Context) string {
	return get(ctx, UserIDKey)
}

// SetPortal stores the Bitrix24 portal domain, when the caller sent one.
func SetPortal(ctx context.Context, portal string) context.Context {
	return set(ctx, PortalKey, portal)
}

func GetPortal(ctx context.Context) string {
	return get(ctx, PortalKey)
}
