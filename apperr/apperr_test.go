package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"
)

func TestToAppError(t *testing.T) {
	tests := []struct {
		name       string
		input      any
		kind       Kind
		message    string
		statusCode int
		details    string
	}{
		{
			name:       "http error",
			input:      &HTTPError{Status: 404, StatusText: "Not Found", Body: `{"error":"notfound"}`},
			kind:       KindHTTP,
			message:    "Not Found",
			statusCode: 404,
			details:    `{"error":"notfound"}`,
		},
		{
			name:       "http error without status text",
			input:      &HTTPError{Status: 599},
			kind:       KindHTTP,
			message:    MessageLoadFailed,
			statusCode: 599,
		},
		{
			name:       "wrapped http error",
			input:      fmt.Errorf("fetch books: %w", &HTTPError{Status: 500, StatusText: "Internal Server Error"}),
			kind:       KindHTTP,
			message:    "Internal Server Error",
			statusCode: 500,
		},
		{
			name:    "transport failed to fetch",
			input:   &url.Error{Op: "Get", URL: "https://openlibrary.org", Err: errors.New("Failed to fetch")},
			kind:    KindNetwork,
			message: MessageNetwork,
			details: `Get "https://openlibrary.org": Failed to fetch`,
		},
		{
			name:    "dial failure",
			input:   &url.Error{Op: "Get", URL: "https://openlibrary.org", Err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("boom")}},
			kind:    KindNetwork,
			message: MessageNetwork,
			details: `Get "https://openlibrary.org": dial tcp: boom`,
		},
		{
			name:    "dns timeout",
			input:   &net.DNSError{Err: "i/o timeout", Name: "openlibrary.org", IsTimeout: true},
			kind:    KindNetwork,
			message: MessageNetwork,
			details: "lookup openlibrary.org: i/o timeout",
		},
		{
			name:    "plain error",
			input:   errors.New("boom"),
			kind:    KindUnknown,
			message: MessageUnexpected,
			details: "boom",
		},
		{
			name:    "plain error mentioning fetch",
			input:   errors.New("Failed to fetch"),
			kind:    KindUnknown,
			message: MessageUnexpected,
			details: "Failed to fetch",
		},
		{
			name:    "deadline",
			input:   context.DeadlineExceeded,
			kind:    KindNetwork,
			message: MessageNetwork,
			details: "context deadline exceeded",
		},
		{
			name:    "string panic value",
			input:   "oops",
			kind:    KindUnknown,
			message: MessageUnexpected,
		},
		{
			name:    "nil",
			input:   nil,
			kind:    KindUnknown,
			message: MessageUnexpected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToAppError(tt.input)
			if got.Kind != tt.kind {
				t.Fatalf("kind = %s, want %s", got.Kind, tt.kind)
			}
			if got.Message != tt.message {
				t.Fatalf("message = %q, want %q", got.Message, tt.message)
			}
			if got.StatusCode != tt.statusCode {
				t.Fatalf("status = %d, want %d", got.StatusCode, tt.statusCode)
			}
			if got.Details != tt.details {
				t.Fatalf("details = %q, want %q", got.Details, tt.details)
			}
		})
	}
}

func TestToAppErrorPassesThroughClassified(t *testing.T) {
	original := &AppError{Kind: KindHTTP, Message: "Gone", StatusCode: 410}
	got := ToAppError(fmt.Errorf("wrapped: %w", original))
	if got != *original {
		t.Fatalf("ToAppError() = %+v, want %+v", got, *original)
	}
}

func TestKindString(t *testing.T) {
	for kind, want := range map[Kind]string{KindNetwork: "network", KindHTTP: "http", KindUnknown: "unknown"} {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}

func TestHTTPErrorMessage(t *testing.T) {
	err := &HTTPError{Status: 503, StatusText: "Service Unavailable"}
	if err.Error() != "http status 503: Service Unavailable" {
		t.Fatalf("Error() = %q", err.Error())
	}
}
