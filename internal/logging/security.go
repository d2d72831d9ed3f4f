// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

// SecurityEvent represents an authentication event for audit logging.
type SecurityEvent struct {
	// Event is the type of event (e.g., "login_success", "token_refresh").
	Event string
	// Account is the account e-mail address (sanitized on output).
	Account string
	// Subject is the token subject claim (sanitized on output).
	Subject string
	// Region is the backend region the account belongs to.
	Region string
	// Success indicates if the operation was successful.
	Success bool
	// Error is the error message if the operation failed.
	Error string
	// Details contains additional details, sanitized by key.
	Details map[string]string
}

// SecurityLogger logs authentication events with sensitive fields masked.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger creates a new security logger on the global logger.
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{
		logger: With().Str("component", "auth").Logger(),
	}
}

// NewSecurityLoggerWithLogger creates a security logger with a custom zerolog logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSecurityLoggerWithLogger(logger zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{
		logger: logger.With().Str("component", "auth").Logger(),
	}
}

// LogEvent logs a security event with automatic sanitization.
func (l *SecurityLogger) LogEvent(event *SecurityEvent) {
	e := l.logger.Info()
	if !event.Success {
		e = l.logger.Warn()
	}
	e = e.Str("event", event.Event)

	if event.Success {
		e = e.Str("status", "success")
	} else {
		e = e.Str("status", "failed")
	}
	if event.Account != "" {
		e = e.Str("account", SanitizeEmail(event.Account))
	}
	if event.Subject != "" {
		e = e.Str("subject", SanitizeUserID(event.Subject))
	}
	if event.Region != "" {
		e = e.Str("region", event.Region)
	}
	if event.Error != "" && !event.Success {
		e = e.Str("error", SanitizeError(event.Error))
	}
	for k, v := range event.Details {
		e = e.Str(k, SanitizeValue(k, v))
	}

	e.Msg("")
}

// LogLogin logs the outcome of an interactive login.
func (l *SecurityLogger) LogLogin(account, region string, success bool, errMsg string) {
	event := "login_success"
	if !success {
		event = "login_failed"
	}
	l.LogEvent(&SecurityEvent{
		Event:   event,
		Account: account,
		Region:  region,
		Success: success,
		Error:   errMsg,
	})
}

// LogTokenRefresh logs a token refresh attempt.
func (l *SecurityLogger) LogTokenRefresh(subject string, retry, success bool, errMsg string) {
	details := map[string]string{}
	if retry {
		details["attempt"] = "retry"
	}
	l.LogEvent(&SecurityEvent{
		Event:   "token_refresh",
		Subject: subject,
		Success: success,
		Error:   errMsg,
		Details: details,
	})
}

// LogTokenPurged logs removal of the persisted token after an unrecoverable auth failure.
func (l *SecurityLogger) LogTokenPurged(subject, reason string) {
	l.LogEvent(&SecurityEvent{
		Event:   "token_purged",
		Subject: subject,
		Success: true,
		Details: map[string]string{"reason": reason},
	})
}

// LogLogout logs an explicit logout.
func (l *SecurityLogger) LogLogout(account string) {
	l.LogEvent(&SecurityEvent{
		Event:   "logout",
		Account: account,
		Success: true,
	})
}

// ============================================================
// Sanitization Functions
// ============================================================

// MaskVIN hides the serial portion of a vehicle identification number.
// The first five and everything from the fourteenth character on are kept.
// Identifiers too short to carry a serial are replaced entirely.
// Example: "WDD2130041A123456" -> "WDD21XXXXXXXX3456"
func MaskVIN(vin string) string {
	if len(vin) < 13 {
		return strings.Repeat("X", len(vin))
	}
	return vin[:5] + strings.Repeat("X", 8) + vin[13:]
}

// SanitizeToken masks a token, showing only first and last 4 characters.
// Example: "eyJhbGciOiJSUzI1NiIsInR5cCI6IkpXVCJ9..." -> "eyJh...kpXV"
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizeUserID masks an account subject.
// Example: "user-12345678" -> "user...5678"
func SanitizeUserID(userID string) string {
	if userID == "" {
		return ""
	}
	if len(userID) <= 8 {
		return "***"
	}
	return userID[:4] + "..." + userID[len(userID)-4:]
}

// SanitizeEmail masks an email address.
// Example: "john.doe@example.com" -> "jo***@example.com"
func SanitizeEmail(email string) string {
	if email == "" {
		return ""
	}

	atIndex := strings.Index(email, "@")
	if atIndex <= 0 {
		return "***"
	}

	localPart := email[:atIndex]
	domain := email[atIndex:]

	if len(localPart) <= 2 {
		return "***" + domain
	}
	return localPart[:2] + "***" + domain
}

// SanitizeError removes potentially sensitive information from error messages.
func SanitizeError(err string) string {
	sensitivePatterns := []string{
		"password",
		"secret",
		"bearer",
		"authorization",
		"cookie",
		"refresh_token=",
		"access_token=",
	}

	lowerErr := strings.ToLower(err)
	for _, pattern := range sensitivePatterns {
		if strings.Contains(lowerErr, pattern) {
			return "authentication error"
		}
	}

	return truncateString(err, 200)
}

// SanitizeValue sanitizes a value based on its key name.
func SanitizeValue(key, value string) string {
	switch strings.ToLower(key) {
	case "access_token", "refresh_token", "id_token", "token", "password",
		"secret", "authorization", "bearer", "cookie", "code", "code_verifier":
		return SanitizeToken(value)
	case "vin", "fin", "vehicle":
		return MaskVIN(value)
	}

	if strings.Contains(value, "@") && strings.Contains(value, ".") {
		return SanitizeEmail(value)
	}

	return value
}

// truncateString truncates a string to a maximum length.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
