package services

import "context"

// Context keys are distinct types so values set here never collide with
// keys from other packages.
type (
	itemIDKey    struct{}
	stageKey     struct{}
	agentKey     struct{}
	requestIDKey struct{}
)

// WithItemID annotates context with the queue item identifier.
func WithItemID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, itemIDKey{}, id)
}

// ItemIDFromContext extracts the queue item identifier if present.
func ItemIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(itemIDKey{}).(int64)
	return id, ok
}

// WithStage annotates context with the import step name ("poll", "import",
// "reconcile"). Blank names leave ctx unchanged.
func WithStage(ctx context.Context, stage string) context.Context {
	return withString(ctx, stageKey{}, stage)
}

// StageFromContext returns the step name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, stageKey{})
}

// WithAgent annotates context with the fetch agent name.
func WithAgent(ctx context.Context, agent string) context.Context {
	return withString(ctx, agentKey{}, agent)
}

// AgentFromContext returns the fetch agent name if present.
func AgentFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, agentKey{})
}

// WithRequestID annotates context with the correlation id of one poll.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, requestIDKey{}, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, requestIDKey{})
}

func withString(ctx context.Context, key any, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key any) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}
