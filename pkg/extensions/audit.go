// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import (
	"context"
	"log/slog"
	"time"
)

// Audit event types.
const (
	EventRequest    = "api.request"
	EventAuthFailed = "auth.failed"
)

// Audit outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
)

// AuditEvent records one API call.
type AuditEvent struct {
	// EventType is "category.action", e.g. "api.request".
	EventType string

	// Timestamp is set to time.Now().UTC() by loggers when zero.
	Timestamp time.Time

	// ClientID is "anonymous" when authentication failed.
	ClientID string

	RequestID string

	// Action is the route, e.g. "POST /v1/predict".
	Action string

	Outcome string
	Status  int

	// Metadata holds event-specific extras such as "client_ip".
	Metadata map[string]any
}

// AuditLogger records API events.
//
// Implementations must be safe for concurrent use. Log should return
// quickly; slow sinks buffer and drain on Flush.
type AuditLogger interface {
	Log(ctx context.Context, event AuditEvent) error

	// Flush persists buffered events. Call before shutdown.
	Flush(ctx context.Context) error
}

// NopAuditLogger discards all events.
type NopAuditLogger struct{}

func (l *NopAuditLogger) Log(context.Context, AuditEvent) error { return nil }

func (l *NopAuditLogger) Flush(context.Context) error { return nil }

// SlogAuditLogger writes each event as one structured log record at INFO.
type SlogAuditLogger struct {
	logger *slog.Logger
}

// NewSlogAuditLogger creates an audit logger on top of logger. Records
// carry an "audit" group so they can be routed separately.
func NewSlogAuditLogger(logger *slog.Logger) *SlogAuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAuditLogger{logger: logger.With("component", "audit")}
}

func (l *SlogAuditLogger) Log(ctx context.Context, event AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	attrs := []any{
		slog.String("event_type", event.EventType),
		slog.Time("timestamp", event.Timestamp),
		slog.String("client_id", event.ClientID),
		slog.String("request_id", event.RequestID),
		slog.String("action", event.Action),
		slog.String("outcome", event.Outcome),
		slog.Int("status", event.Status),
	}
	for k, v := range event.Metadata {
		attrs = append(attrs, slog.Any(k, v))
	}
	l.logger.InfoContext(ctx, "audit", slog.Group("audit", attrs...))
	return nil
}

// Flush is a no-op; slog handlers write synchronously.
func (l *SlogAuditLogger) Flush(context.Context) error { return nil }

var (
	_ AuditLogger = (*NopAuditLogger)(nil)
	_ AuditLogger = (*SlogAuditLogger)(nil)
)
