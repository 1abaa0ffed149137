// Package apperr turns arbitrary failures into the presentation-facing error taxonomy.
package apperr

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind is the closed set of error categories shown to users.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindHTTP
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http"
	default:
		return "unknown"
	}
}

const (
	MessageLoadFailed = "Gagal memuat data."
	MessageNetwork    = "Koneksi terputus. Periksa jaringan Anda lalu coba lagi."
	MessageUnexpected = "Terjadi kesalahan yang tidak terduga. Silakan coba lagi."
)

// networkFailureHints are transport messages that mean "could not reach the host".
// Matching on text is an approximation used only when the error carries no
// typed network signal.
var networkFailureHints = []string{
	"Network request failed",
	"Failed to fetch",
	"NetworkError when attempting to fetch resource.",
	"connection refused",
	"connection reset",
	"no such host",
	"network is unreachable",
}

// AppError is a classified failure. StatusCode is set only for KindHTTP and an
// empty Details means no diagnostic text is available.
type AppError struct {
	Kind       Kind   `json:"kind"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code,omitempty"`
	Details    string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return e.Message
}

// HTTPError is raised by the remote client for non-2xx responses.
type HTTPError struct {
	Status     int
	StatusText string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.StatusText == "" {
		return fmt.Sprintf("http status %d", e.Status)
	}
	return fmt.Sprintf("http status %d: %s", e.Status, e.StatusText)
}

// ToAppError classifies v. It accepts any value so recovered panics can be
// classified as well. It performs no I/O.
func ToAppError(v any) AppError {
	err, ok := v.(error)
	if !ok || err == nil {
		return AppError{Kind: KindUnknown, Message: MessageUnexpected}
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return *appErr
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		message := httpErr.StatusText
		if message == "" {
			message = MessageLoadFailed
		}
		return AppError{
			Kind:       KindHTTP,
			Message:    message,
			StatusCode: httpErr.Status,
			Details:    httpErr.Body,
		}
	}

	if isNetworkFailure(err) {
		return AppError{
			Kind:    KindNetwork,
			Message: MessageNetwork,
			Details: err.Error(),
		}
	}

	return AppError{
		Kind:    KindUnknown,
		Message: MessageUnexpected,
		Details: err.Error(),
	}
}

// Classify is ToAppError returning a pointer, convenient for state fields.
func Classify(v any) *AppError {
	classified := ToAppError(v)
	return &classified
}

func isNetworkFailure(err error) bool {
	var netErr net.Error
	if !errors.As(err, &netErr) {
		return false
	}
	if netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	message := err.Error()
	for _, hint := range networkFailureHints {
		if strings.Contains(message, hint) {
			return true
		}
	}
	return false
}
