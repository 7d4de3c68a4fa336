// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the risk API: request
// IDs, access logging, CORS, deadlines, rate limiting, authentication and
// auditing.
package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/ingredientrisk/pkg/extensions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries the request ID in requests and responses.
const RequestIDHeader = "X-Request-ID"

// APIKeyHeader is an alternative to "Authorization: Bearer <key>".
const APIKeyHeader = "X-API-Key"

const (
	requestIDKey = "request_id"
	authInfoKey  = "auth_info"
)

// RequestID assigns every request a UUID. A well-formed incoming
// X-Request-ID is kept; anything else is replaced.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID returns the ID assigned by RequestID, or "".
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// AccessLog logs one line per request through logger.
func AccessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", GetRequestID(c),
			"client_ip", c.ClientIP(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request failed", attrs...)
		case status >= http.StatusBadRequest:
			logger.Warn("request rejected", attrs...)
		default:
			logger.Info("request served", attrs...)
		}
	}
}

// CORS allows any origin, method and header. Preflight requests are
// answered directly.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		origin := c.GetHeader("Origin")
		if origin == "" {
			origin = "*"
		}
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+APIKeyHeader+", "+RequestIDHeader)
		h.Set("Access-Control-Expose-Headers", RequestIDHeader)
		h.Add("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RateLimit rejects requests beyond limiter's budget with 429.
//
// A nil limiter disables limiting.
func RateLimit(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		r := limiter.Reserve()
		if !r.OK() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		if delay := r.Delay(); delay > 0 {
			r.Cancel()
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "rate limit exceeded",
				"request_id": GetRequestID(c),
			})
			return
		}
		c.Next()
	}
}

// Timeout bounds each request's context by d. Zero disables it.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Auth validates the request credential with provider and stores the
// client identity for GetAuthInfo. Rejected requests get 401 and an
// auth.failed audit event.
func Auth(provider extensions.AuthProvider, audit extensions.AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		info, err := provider.Validate(c.Request.Context(), credential(c))
		if err != nil {
			_ = audit.Log(c.Request.Context(), extensions.AuditEvent{
				EventType: extensions.EventAuthFailed,
				ClientID:  "anonymous",
				RequestID: GetRequestID(c),
				Action:    c.Request.Method + " " + c.FullPath(),
				Outcome:   extensions.OutcomeDenied,
				Status:    http.StatusUnauthorized,
				Metadata:  map[string]any{"client_ip": c.ClientIP(), "reason": err.Error()},
			})
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":      "unauthorized",
				"code":       "unauthorized",
				"request_id": GetRequestID(c),
			})
			return
		}
		c.Set(authInfoKey, info)
		c.Next()
	}
}

// GetAuthInfo returns the identity stored by Auth, or nil.
func GetAuthInfo(c *gin.Context) *extensions.AuthInfo {
	v, ok := c.Get(authInfoKey)
	if !ok {
		return nil
	}
	info, _ := v.(*extensions.AuthInfo)
	return info
}

func credential(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(c.GetHeader(APIKeyHeader))
}

// Audit records one api.request event per completed request.
func Audit(audit extensions.AuditLogger, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		outcome := extensions.OutcomeSuccess
		if status >= http.StatusBadRequest {
			outcome = extensions.OutcomeFailure
		}
		client := "anonymous"
		if info := GetAuthInfo(c); info != nil {
			client = info.ClientID
		}
		err := audit.Log(c.Request.Context(), extensions.AuditEvent{
			EventType: extensions.EventRequest,
			ClientID:  client,
			RequestID: GetRequestID(c),
			Action:    c.Request.Method + " " + c.FullPath(),
			Outcome:   outcome,
			Status:    status,
			Metadata: map[string]any{
				"client_ip":   c.ClientIP(),
				"duration_ms": time.Since(start).Milliseconds(),
			},
		})
		if err != nil {
			logger.Warn("Failed to record audit event", "error", err, "request_id", GetRequestID(c))
		}
	}
}
