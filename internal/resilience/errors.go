package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// Salesforce error codes returned when a request was refused before any
// record was touched.
var throttleCodes = []string{
	"REQUEST_LIMIT_EXCEEDED",
	"UNABLE_TO_LOCK_ROW",
	"SERVER_UNAVAILABLE",
	"429 too many requests",
	"503 service unavailable",
}

// Failures where the request may or may not have been processed.
var networkPatterns = []string{
	"connection reset by peer",
	"broken pipe",
	"i/o timeout",
	"tls handshake timeout",
	"server closed idle connection",
	"unexpected eof",
	"502 bad gateway",
	"504 gateway timeout",
}

// IsThrottled reports whether Salesforce refused the call without doing any
// work. Such calls are safe to repeat even when they create records.
func IsThrottled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, code := range throttleCodes {
		if strings.Contains(msg, strings.ToLower(code)) {
			return true
		}
	}
	return false
}

// IsTransient reports whether err is throttling or a network failure. Only
// idempotent calls (queries, updates) should be retried on it.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsThrottled(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range networkPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
