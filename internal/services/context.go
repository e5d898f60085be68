package services

import "context"

type contextKey string

const (
	campaignIDKey contextKey = "campaign_id"
	userIDKey     contextKey = "user_id"
	stepKey       contextKey = "step"
	batchIDKey    contextKey = "batch_id"
	requestIDKey  contextKey = "request_id"
)

// WithCampaignID annotates context with the campaign identifier.
func WithCampaignID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, campaignIDKey, id)
}

// CampaignIDFromContext extracts the campaign identifier if present.
func CampaignIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(campaignIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithUserID annotates context with the requesting user.
func WithUserID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromContext returns the requesting user if present.
func UserIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(userIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStep annotates context with the pipeline step name.
func WithStep(ctx context.Context, step string) context.Context {
	if step == "" {
		return ctx
	}
	return context.WithValue(ctx, stepKey, step)
}

// StepFromContext returns the step name if present.
func StepFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stepKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithBatchID annotates context with the batch identifier.
func WithBatchID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, batchIDKey, id)
}

// BatchIDFromContext returns the batch identifier if present.
func BatchIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(batchIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
