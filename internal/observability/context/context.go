// Package obscontext carries request-scoped identifiers used by logging
// and audit: request id, school id, actor, and the client address.
package context

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type schoolIDKey struct{}
type actorKey struct{}
type ipAddressKey struct{}
type userAgentKey struct{}
type referenceKey struct{}

type actor struct {
	actorType string
	actorID   string
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

func WithSchoolID(ctx context.Context, schoolID string) context.Context {
	schoolID = strings.TrimSpace(schoolID)
	if schoolID == "" {
		return ctx
	}
	return context.WithValue(ctx, schoolIDKey{}, schoolID)
}

func SchoolIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(schoolIDKey{}).(string); ok {
		return v
	}
	return ""
}

func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor{
		actorType: strings.TrimSpace(actorType),
		actorID:   strings.TrimSpace(actorID),
	})
}

func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	if v, ok := ctx.Value(actorKey{}).(actor); ok {
		return v.actorType, v.actorID
	}
	return "", ""
}

func WithIPAddress(ctx context.Context, ip string) context.Context {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, ipAddressKey{}, ip)
}

func IPAddressFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ipAddressKey{}).(string); ok {
		return v
	}
	return ""
}

func WithUserAgent(ctx context.Context, ua string) context.Context {
	ua = strings.TrimSpace(ua)
	if ua == "" {
		return ctx
	}
	return context.WithValue(ctx, userAgentKey{}, ua)
}

func UserAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(userAgentKey{}).(string); ok {
		return v
	}
	return ""
}

// WithReference tags the context with a payment reference so every log
// line emitted while reconciling that reference carries it.
func WithReference(ctx context.Context, reference string) context.Context {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return ctx
	}
	return context.WithValue(ctx, referenceKey{}, reference)
}

func ReferenceFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(referenceKey{}).(string); ok {
		return v
	}
	return ""
}
