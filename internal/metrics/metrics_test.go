package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"":             "/",
		"/logs/123":    "/logs/{id}",
		"/logs/123/":   "/logs/{id}/",
		"/logs/error":  "/logs/error",
		"/users/me":    "/users/me",
		"/audit/7/raw": "/audit/{id}/raw",
	}
	for in, want := range tests {
		if got := NormalizePath(in); got != want {
			t.Errorf("NormalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLogsCounters(t *testing.T) {
	before := testutil.ToFloat64(LogsIngestedTotal)
	IncLogsIngested()
	if got := testutil.ToFloat64(LogsIngestedTotal); got != before+1 {
		t.Errorf("LogsIngestedTotal: got %v, want %v", got, before+1)
	}

	SetLogsStored(42)
	if got := testutil.ToFloat64(LogsStored); got != 42 {
		t.Errorf("LogsStored: got %v, want 42", got)
	}

	IncAuthFailure("bad_token")
	if got := testutil.ToFloat64(AuthFailuresTotal.WithLabelValues("bad_token")); got < 1 {
		t.Errorf("AuthFailuresTotal{bad_token}: got %v", got)
	}
}
