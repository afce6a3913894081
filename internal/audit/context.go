package audit

import (
	"context"
	"strings"
)

type ctxKey string

const (
	requestIDKey  ctxKey = "audit_request_id"
	clientInfoKey ctxKey = "audit_client_info"
)

type clientInfo struct {
	ip        string
	userAgent string
}

// WithRequestID attaches the request identifier to the context for audit
// records and error payloads.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request id if one was attached.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithClientInfo attaches network/client metadata for audit records.
func WithClientInfo(ctx context.Context, ip, userAgent string) context.Context {
	if ip == "" && userAgent == "" {
		return ctx
	}
	return context.WithValue(ctx, clientInfoKey, clientInfo{ip: ip, userAgent: userAgent})
}

func clientInfoFromContext(ctx context.Context) (ip, userAgent string) {
	if ctx == nil {
		return "", ""
	}
	if v, ok := ctx.Value(clientInfoKey).(clientInfo); ok {
		return v.ip, v.userAgent
	}
	return "", ""
}
