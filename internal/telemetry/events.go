// Package telemetry records auth lifecycle events as OpenTelemetry log
// records. Recording is best effort: the batch processor buffers and exports
// in the background, so the request path never waits on the collector.
package telemetry

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
)

// AuthEvents emits one log record per auth lifecycle event (registered, login,
// rotated, reuse_rejected, logout).
type AuthEvents struct {
	logger otellog.Logger
}

// NewAuthEvents returns an AuthEvents backed by the given provider.
func NewAuthEvents(provider otellog.LoggerProvider) *AuthEvents {
	return &AuthEvents{logger: provider.Logger("umbra-auth/internal/telemetry")}
}

// Record emits the event. accountID may be empty when the event carries no
// account (e.g. logout with an unknown token). reuse_rejected is emitted at
// warn severity; it is the signal a stolen refresh token was replayed.
func (e *AuthEvents) Record(ctx context.Context, event, accountID string) {
	var rec otellog.Record
	rec.SetTimestamp(time.Now().UTC())
	rec.SetBody(otellog.StringValue("auth event"))
	if event == "reuse_rejected" {
		rec.SetSeverity(otellog.SeverityWarn)
	} else {
		rec.SetSeverity(otellog.SeverityInfo)
	}
	attrs := []otellog.KeyValue{otellog.String("auth.event", event)}
	if accountID != "" {
		attrs = append(attrs, otellog.String("account.id", accountID))
	}
	rec.AddAttributes(attrs...)
	e.logger.Emit(ctx, rec)
}
