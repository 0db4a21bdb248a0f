package ingest

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type captureSink struct {
	snapshots []map[string]any
	err       error
}

func (s *captureSink) Apply(snapshot map[string]any) error {
	if s.err != nil {
		return s.err
	}
	s.snapshots = append(s.snapshots, snapshot)
	return nil
}

func postSnapshot(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/snapshot", strings.NewReader(body))
	handler.ServeHTTP(recorder, request)
	return recorder
}

func TestHandlerAcceptsSnapshot(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	handler := NewHTTPHandler(sink, 1<<20)

	recorder := postSnapshot(t, handler, `{"item":{"name":"Feed","quantity":3}}`)
	if recorder.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", recorder.Code)
	}
	if len(sink.snapshots) != 1 {
		t.Fatalf("expected one applied snapshot, got %d", len(sink.snapshots))
	}
	item, ok := sink.snapshots[0]["item"].(map[string]any)
	if !ok || item["name"] != "Feed" {
		t.Fatalf("unexpected snapshot content: %+v", sink.snapshots[0])
	}
}

func TestHandlerRejectsBadPayloads(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	handler := NewHTTPHandler(sink, 1<<20)

	for _, body := range []string{"", "not json", `[]`, `[{"a":1}]`, `{}`, `{"a":1} trailing`} {
		recorder := postSnapshot(t, handler, body)
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %q, got %d", body, recorder.Code)
		}
	}
	if len(sink.snapshots) != 0 {
		t.Fatalf("rejected payloads must not reach the sink")
	}
}

func TestHandlerRejectsNonPost(t *testing.T) {
	t.Parallel()

	handler := NewHTTPHandler(&captureSink{}, 1<<20)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/snapshot", nil))
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", recorder.Code)
	}
}

func TestHandlerEnforcesBodyLimit(t *testing.T) {
	t.Parallel()

	handler := NewHTTPHandler(&captureSink{}, 16)
	recorder := postSnapshot(t, handler, `{"item":{"name":"a very long payload"}}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized body, got %d", recorder.Code)
	}
}

func TestHandlerReportsSinkFailure(t *testing.T) {
	t.Parallel()

	handler := NewHTTPHandler(&captureSink{err: errors.New("not ready")}, 1<<20)
	recorder := postSnapshot(t, handler, `{"item":{"quantity":3}}`)
	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", recorder.Code)
	}
}
