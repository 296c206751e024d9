package shared

import "context"

type actorContextKey struct{}

type deviceContextKey struct{}

// ContextWithActor stores the authenticated user id in context.
func ContextWithActor(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, userID)
}

// ActorFromContext extracts the authenticated user id from context.
func ActorFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(actorContextKey{}).(int64)
	return id, ok
}

// ContextWithSourceDevice stores the reported source device in context.
func ContextWithSourceDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, deviceContextKey{}, device)
}

// SourceDeviceFromContext extracts the reported source device, if any.
func SourceDeviceFromContext(ctx context.Context) string {
	device, _ := ctx.Value(deviceContextKey{}).(string)
	return device
}
