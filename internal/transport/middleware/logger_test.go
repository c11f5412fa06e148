package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/finchley/expense-recon/pkg/ctxutil"
)

func captureAccessLog(t *testing.T, status int, mutate func(*http.Request) *http.Request) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	wrapped := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/delta/analyze", nil)
	if mutate != nil {
		req = mutate(req)
	}
	wrapped.ServeHTTP(httptest.NewRecorder(), req)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("access log is not one JSON record: %v", err)
	}
	return record
}

func TestLogger_RecordsRequestFields(t *testing.T) {
	t.Parallel()

	record := captureAccessLog(t, http.StatusOK, nil)

	if record["msg"] != "http.request" {
		t.Errorf("msg = %v, want http.request", record["msg"])
	}
	if record["method"] != "POST" || record["path"] != "/api/v1/delta/analyze" {
		t.Errorf("method/path = %v %v", record["method"], record["path"])
	}
	if record["status"] != float64(200) {
		t.Errorf("status = %v, want 200", record["status"])
	}
	if record["level"] != "INFO" {
		t.Errorf("level = %v, want INFO for a 200", record["level"])
	}
	if _, ok := record["duration"]; !ok {
		t.Error("duration missing")
	}
	if _, ok := record["owner_id"]; ok {
		t.Error("owner_id must be absent when no owner was identified")
	}
}

func TestLogger_ServerErrorsLogAtErrorLevel(t *testing.T) {
	t.Parallel()

	record := captureAccessLog(t, http.StatusInternalServerError, nil)

	if record["level"] != "ERROR" {
		t.Errorf("level = %v, want ERROR for a 500", record["level"])
	}
	if record["status"] != float64(500) {
		t.Errorf("status = %v, want 500", record["status"])
	}
}

func TestLogger_CarriesContextIdentifiers(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()
	record := captureAccessLog(t, http.StatusOK, func(req *http.Request) *http.Request {
		ctx := ctxutil.WithRequestID(req.Context(), "req-abc-123")
		ctx = ctxutil.WithOwnerID(ctx, ownerID)
		return req.WithContext(ctx)
	})

	if record["request_id"] != "req-abc-123" {
		t.Errorf("request_id = %v, want req-abc-123", record["request_id"])
	}
	if record["owner_id"] != ownerID.String() {
		t.Errorf("owner_id = %v, want %s", record["owner_id"], ownerID)
	}
}
