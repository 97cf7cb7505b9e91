package shared

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"log/slog"
	"time"
)

type contextKey int

const (
	subjectKey contextKey = iota
	traceIDKey
)

// TraceIDLength is the number of random bytes in a trace ID.
const TraceIDLength = 16

// SetTraceID stores a fresh trace ID in ctx.
func SetTraceID(ctx context.Context) context.Context {
	return WithTraceID(ctx, NewTraceID())
}

// WithTraceID stores id in ctx.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

// GetTraceID returns the request's trace ID, or "".
func GetTraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// ValidTraceID reports whether id has the shape NewTraceID produces. Trace
// IDs sent by callers are only reused when they pass this check.
func ValidTraceID(id string) bool {
	if len(id) != 2*TraceIDLength {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}

// WithSubject records the authenticated caller.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

// GetSubject returns the authenticated caller, or "" when auth is disabled.
func GetSubject(ctx context.Context) string {
	subject, _ := ctx.Value(subjectKey).(string)
	return subject
}

// NewTraceID returns 32 lowercase hex characters.
func NewTraceID() string {
	b := make([]byte, TraceIDLength)
	if _, err := rand.Read(b); err != nil {
		slog.Error("crypto/rand failed, using clock-based trace ID", "error", err)
		return fallbackTraceID(time.Now())
	}
	return hex.EncodeToString(b)
}

func fallbackTraceID(now time.Time) string {
	b := make([]byte, TraceIDLength)
	binary.BigEndian.PutUint64(b[:8], uint64(now.UnixNano()))
	binary.BigEndian.PutUint64(b[8:], uint64(now.UnixMicro())^0x9e3779b97f4a7c15)
	return hex.EncodeToString(b)
}
