package logger

import (
	"log/slog"
	"time"

	"github.com/welldanyogia/webrana-mailcore/internal/models"
)

// AuditLogger records events operators need to reconstruct later:
// rule state changes, counter repairs, purges and rejected requests.
// It never logs credentials.
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates an AuditLogger writing through l
func NewAuditLogger(l *slog.Logger) *AuditLogger {
	return &AuditLogger{logger: OrDefault(l)}
}

// NewAuditLoggerWithHandler creates an AuditLogger with a custom handler.
func NewAuditLoggerWithHandler(handler slog.Handler) *AuditLogger {
	return &AuditLogger{logger: slog.New(handler)}
}

func scopeAttrs(scope models.Scope) []any {
	return []any{
		slog.Uint64("tenant_id", uint64(scope.TenantID)),
		slog.String("user_id", scope.UserID),
		slog.Time("timestamp", time.Now().UTC()),
	}
}

// RuleDisabled logs a filter rule switched off because an action target is gone.
func (a *AuditLogger) RuleDisabled(scope models.Scope, ruleID uint, action models.ActionKind, reason string) {
	attrs := append(scopeAttrs(scope),
		slog.String("event_type", "rule_disabled"),
		slog.Uint64("rule_id", uint64(ruleID)),
		slog.String("action", string(action)),
		slog.String("reason", reason),
	)
	a.logger.Warn("filter_rule_disabled", attrs...)
}

// CountersRecalculated logs a full counter rebuild of a scope.
func (a *AuditLogger) CountersRecalculated(scope models.Scope, reason string) {
	attrs := append(scopeAttrs(scope),
		slog.String("event_type", "counters_recalculated"),
		slog.String("reason", reason),
	)
	a.logger.Warn("folder_counters_recalculated", attrs...)
}

// IntegrityViolation logs aggregates found out of line with their messages.
func (a *AuditLogger) IntegrityViolation(scope models.Scope, detail string) {
	attrs := append(scopeAttrs(scope),
		slog.String("event_type", "integrity_violation"),
		slog.String("detail", detail),
	)
	a.logger.Error("integrity_violation", attrs...)
}

// MessagesPurged logs a garbage collection pass.
func (a *AuditLogger) MessagesPurged(count, filesDeleted int, cutoff time.Time) {
	a.logger.Info("messages_purged",
		slog.String("event_type", "purge"),
		slog.Int("messages", count),
		slog.Int("files", filesDeleted),
		slog.Time("cutoff", cutoff.UTC()),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// AuthFailure logs a failed authentication attempt.
// Never logs the actual credentials.
func (a *AuditLogger) AuthFailure(ip, path, reason string) {
	a.logger.Warn("authentication_failure",
		slog.String("event_type", "auth_failure"),
		slog.String("ip", ip),
		slog.String("path", path),
		slog.String("reason", reason),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// RateLimitExceeded logs when a client exceeds rate limits.
func (a *AuditLogger) RateLimitExceeded(ip, path string) {
	a.logger.Warn("rate_limit_exceeded",
		slog.String("event_type", "rate_limit"),
		slog.String("ip", ip),
		slog.String("path", path),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// InvalidOrigin logs a rejected WebSocket connection due to invalid origin.
func (a *AuditLogger) InvalidOrigin(ip, origin string) {
	a.logger.Warn("invalid_origin",
		slog.String("event_type", "invalid_origin"),
		slog.String("ip", ip),
		slog.String("origin", origin),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// PathTraversalAttempt logs a path traversal attempt.
func (a *AuditLogger) PathTraversalAttempt(ip, path, attemptedPath string) {
	a.logger.Warn("path_traversal_attempt",
		slog.String("event_type", "path_traversal"),
		slog.String("ip", ip),
		slog.String("path", path),
		slog.String("attempted_path", attemptedPath),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// Event logs a generic audit event, dropping keys that may hold secrets.
func (a *AuditLogger) Event(eventType string, details map[string]string) {
	attrs := []any{
		slog.String("event_type", eventType),
		slog.Time("timestamp", time.Now().UTC()),
	}
	for k, v := range details {
		if isSensitiveKey(k) {
			continue
		}
		attrs = append(attrs, slog.String(k, v))
	}
	a.logger.Warn("audit_event", attrs...)
}

// Logger returns the underlying slog.Logger for use with middleware.
func (a *AuditLogger) Logger() *slog.Logger {
	return a.logger
}

var sensitiveKeys = map[string]bool{
	"password":      true,
	"api_key":       true,
	"apikey":        true,
	"token":         true,
	"secret":        true,
	"authorization": true,
	"auth":          true,
	"credential":    true,
	"credentials":   true,
	"session":       true,
	"cookie":        true,
}

func isSensitiveKey(key string) bool {
	return sensitiveKeys[key]
}
