package audit

import (
	"context"
	"strings"
)

type ctxKey string

const (
	requestIDKey ctxKey = "audit_request_id"
	clientKey    ctxKey = "audit_client"
)

// Client identifies the network origin of a request.
type Client struct {
	Address string
	Agent   string
}

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request id if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithClient attaches the caller's address and user agent, recorded on every entry made under ctx.
func WithClient(ctx context.Context, address, agent string) context.Context {
	c := Client{Address: strings.TrimSpace(address), Agent: strings.TrimSpace(agent)}
	if c == (Client{}) {
		return ctx
	}
	return context.WithValue(ctx, clientKey, c)
}

// ClientFromContext returns the client attached by WithClient.
func ClientFromContext(ctx context.Context) Client {
	if ctx == nil {
		return Client{}
	}
	c, _ := ctx.Value(clientKey).(Client)
	return c
}
