package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/harun/walletlink/internal/tracing"
)

// AuditKind groups audit records by subsystem.
type AuditKind string

const (
	AuditWallet   AuditKind = "wallet"
	AuditSecurity AuditKind = "security"
	AuditConfig   AuditKind = "config"
)

// AuditEvent is one line of the audit trail.
type AuditEvent struct {
	Kind      AuditKind
	Time      time.Time
	Actor     string // gateway client ID, remote address or "cli"
	Action    string // wallet.connect, gateway.auth, config.reload
	Status    string // success, failure, denied, applied, rejected
	Details   map[string]interface{}
	TraceID   string
	RequestID string
}

// AuditLogger appends audit events as JSON lines.
type AuditLogger struct {
	mu     sync.Mutex
	out    zerolog.Logger
	closer io.Closer
}

// NewAuditLogger writes events to w.
func NewAuditLogger(w io.Writer) *AuditLogger {
	return &AuditLogger{out: zerolog.New(w)}
}

// OpenAuditLog opens path for appending, creating it owner-readable only.
func OpenAuditLog(path string) (*AuditLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	a := NewAuditLogger(file)
	a.closer = file
	return a, nil
}

var (
	stderrAudit  = NewAuditLogger(os.Stderr)
	currentAudit atomic.Pointer[AuditLogger]
)

// UseAuditLogger makes a the target of the Record helpers. Nil restores
// stderr. The previous logger is returned so the caller can close it.
func UseAuditLogger(a *AuditLogger) *AuditLogger {
	return currentAudit.Swap(a)
}

// Auditor returns the logger the Record helpers write to.
func Auditor() *AuditLogger {
	if a := currentAudit.Load(); a != nil {
		return a
	}
	return stderrAudit
}

// Record writes ev, filling time and trace fields from ctx. With a recording
// span the event is also attached to the span.
func (a *AuditLogger) Record(ctx context.Context, ev AuditEvent) {
	if ctx == nil {
		ctx = context.Background()
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	if ev.TraceID == "" {
		ev.TraceID = tracing.GetTraceID(ctx)
	}
	if ev.RequestID == "" {
		ev.RequestID = tracing.GetRequestID(ctx)
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.AddEvent("audit."+ev.Action, trace.WithAttributes(
			attribute.String("audit.kind", string(ev.Kind)),
			attribute.String("audit.status", ev.Status),
			attribute.String("audit.actor", ev.Actor),
		))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	line := a.out.Log().
		Time("timestamp", ev.Time).
		Str("type", string(ev.Kind)).
		Str("action", ev.Action).
		Str("status", ev.Status)
	if ev.Actor != "" {
		line = line.Str("actor", ev.Actor)
	}
	if ev.TraceID != "" {
		line = line.Str("trace_id", ev.TraceID)
	}
	if ev.RequestID != "" {
		line = line.Str("request_id", ev.RequestID)
	}
	if len(ev.Details) > 0 {
		line = line.Interface("metadata", ev.Details)
	}
	line.Send()
}

// Close releases the underlying file, if any. Later records are dropped.
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	a.out = zerolog.Nop()
	return err
}

// RecordWalletAudit records the outcome of one wallet operation.
func RecordWalletAudit(ctx context.Context, action, actor, status string, details map[string]interface{}) {
	Auditor().Record(ctx, AuditEvent{Kind: AuditWallet, Actor: actor, Action: action, Status: status, Details: details})
}

// RecordSecurityAudit records an authentication decision.
func RecordSecurityAudit(ctx context.Context, action, actor, status string, details map[string]interface{}) {
	Auditor().Record(ctx, AuditEvent{Kind: AuditSecurity, Actor: actor, Action: action, Status: status, Details: details})
}

// RecordConfigAudit records a configuration load or reload.
func RecordConfigAudit(ctx context.Context, action, actor, status string, details map[string]interface{}) {
	Auditor().Record(ctx, AuditEvent{Kind: AuditConfig, Actor: actor, Action: action, Status: status, Details: details})
}
