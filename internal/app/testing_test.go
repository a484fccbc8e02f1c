package app

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gaetan-warin/LearnREST/internal/catalog"
	"github.com/gaetan-warin/LearnREST/internal/config"
	"github.com/gaetan-warin/LearnREST/internal/identity"
	"github.com/gaetan-warin/LearnREST/internal/logging"
	"github.com/gaetan-warin/LearnREST/internal/progress"
	"github.com/gaetan-warin/LearnREST/internal/store"
)

type testEnv struct {
	blobs   *store.MemoryStore
	service *Service
	server  *HTTPServer
	handler http.Handler
}

func testConfig() config.Config {
	return config.Config{
		CORSOrigin:       "*",
		BooksDocument:    "data",
		ProgressDocument: "progress",
	}
}

func newTestEnv(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()
	return newTestEnvWithResolver(t, cfg, identity.AddressResolver{})
}

func newTestEnvWithResolver(t *testing.T, cfg config.Config, resolver identity.Resolver) *testEnv {
	t.Helper()
	logger := logging.Discard()
	blobs := store.NewMemoryStore()

	books := catalog.NewService(catalog.NewDocument(blobs, cfg.BooksDocument, logger), logger)
	tracker := progress.NewTracker(progress.NewDocument(blobs, cfg.ProgressDocument, logger), logger)
	svc := New(cfg, books, tracker, logger)
	svc.AddReadinessCheck("documents", blobs)
	server := NewHTTPServer(svc, resolver, logger)

	return &testEnv{blobs: blobs, service: svc, server: server, handler: server.Handler()}
}

type requestOption func(*http.Request)

func fromUI(req *http.Request) {
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
}

func (e *testEnv) do(t *testing.T, method, path string, body any, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.10:40000"
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}

	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to parse response %q: %v", rr.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rr.Code, rr.Body.String())
	}
}
