package web

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"

	"squeezer-go/internal/compressor"
	"squeezer-go/internal/config"
	"squeezer-go/internal/toolchain"
)

func testServer() *Server {
	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := config.DefaultConfig()
	tools := toolchain.Discover(log)
	manager := compressor.NewManager(log, tools, false, false)
	return NewServer(cfg, log, manager)
}

func TestHandleStatusIdle(t *testing.T) {
	s := testServer()

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", rec.Code)
	}

	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if !resp.Success {
		t.Errorf("response not successful: %+v", resp)
	}

	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected data shape: %T", resp.Data)
	}
	if data["state"] != "idle" {
		t.Errorf("state = %v, expected idle", data["state"])
	}
	if data["running"] != false {
		t.Errorf("running = %v, expected false", data["running"])
	}
}

func TestHandleCompressRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected int
	}{
		{name: "invalid json", body: "{", expected: http.StatusBadRequest},
		{name: "no inputs", body: `{"inputs": []}`, expected: http.StatusBadRequest},
		{name: "missing input path", body: `{"inputs": ["/does/not/exist.jpg"]}`, expected: http.StatusBadRequest},
		{name: "bad quality", body: `{"inputs": ["."], "quality": "extreme"}`, expected: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testServer()
			req := httptest.NewRequest(http.MethodPost, "/api/compress", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			s.router.ServeHTTP(rec, req)

			if rec.Code != tt.expected {
				t.Fatalf("status = %d, expected %d (body: %s)", rec.Code, tt.expected, rec.Body.String())
			}

			var resp APIResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid JSON response: %v", err)
			}
			if resp.Success || resp.Error == "" {
				t.Errorf("expected error payload, got %+v", resp)
			}
		})
	}
}

func TestHandleCancelWithoutBatch(t *testing.T) {
	s := testServer()

	req := httptest.NewRequest(http.MethodPost, "/api/cancel", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, expected 409", rec.Code)
	}
}

func TestHandleStatisticsWithoutBatch(t *testing.T) {
	s := testServer()

	req := httptest.NewRequest(http.MethodGet, "/api/statistics", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", rec.Code)
	}

	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if !resp.Success || resp.Data != nil {
		t.Errorf("expected empty statistics, got %+v", resp)
	}
}

func TestMethodRouting(t *testing.T) {
	s := testServer()

	req := httptest.NewRequest(http.MethodGet, "/api/compress", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /api/compress status = %d, expected 405", rec.Code)
	}
}
