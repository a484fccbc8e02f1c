package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"

	"github.com/gaetan-warin/LearnREST/internal/catalog"
	"github.com/gaetan-warin/LearnREST/internal/identity"
	"github.com/gaetan-warin/LearnREST/internal/logging"
	"github.com/gaetan-warin/LearnREST/internal/progress"
	"github.com/gaetan-warin/LearnREST/internal/util"
)

const (
	requestIDHeader = "X-Request-ID"
	progressHeader  = "X-Progress"

	defaultHistoryLimit = 20
)

type HTTPServer struct {
	service  *Service
	identity identity.Resolver
	logger   logging.Logger
}

func NewHTTPServer(service *Service, resolver identity.Resolver, logger logging.Logger) *HTTPServer {
	return &HTTPServer{
		service:  service,
		identity: resolver,
		logger:   logger.With("component", "http"),
	}
}

func (s *HTTPServer) Handler() http.Handler {
	router := s.routes()
	return s.withMiddleware(s.recoverPanics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		router.ServeHTTP(w, r)
	})))
}

func (s *HTTPServer) routes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/api/ready", s.handleReady).Methods(http.MethodGet, http.MethodHead)

	router.HandleFunc("/api/books", s.handleListBooks).Methods(http.MethodGet)
	router.HandleFunc("/api/books", s.handleCreateBook).Methods(http.MethodPost)
	router.HandleFunc("/api/books/{id:[0-9]+}", s.handleGetBook).Methods(http.MethodGet)
	router.HandleFunc("/api/books/{id:[0-9]+}", s.handleReplaceBook).Methods(http.MethodPut)
	router.HandleFunc("/api/books/{id:[0-9]+}", s.handlePatchBook).Methods(http.MethodPatch)
	router.HandleFunc("/api/books/{id:[0-9]+}", s.handleDeleteBook).Methods(http.MethodDelete)

	router.HandleFunc("/api/mode", s.handleSetMode).Methods(http.MethodPost)
	router.HandleFunc("/api/progress", s.handleGetProgress).Methods(http.MethodGet)

	router.HandleFunc("/api/history/{document}", s.handleHistory).Methods(http.MethodGet)
	router.HandleFunc("/api/history/{document}/{hash}", s.handleSnapshot).Methods(http.MethodGet)

	// The API check runs before any path matcher so a method mismatch on an
	// /api route is not cleared by the static catch-all.
	if dir := s.service.cfg.StaticDir; dir != "" {
		router.MatcherFunc(notAPIPath).
			PathPrefix("/").
			Methods(http.MethodGet, http.MethodHead).
			Handler(http.FileServer(http.Dir(dir)))
	}

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})
	return router
}

func notAPIPath(r *http.Request, _ *mux.RouteMatch) bool {
	return r.URL.Path != "/api" && !strings.HasPrefix(r.URL.Path, "/api/")
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{}
	for name, err := range s.service.Ready(ctx) {
		if err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks[name] = map[string]any{"status": "error", "error": err.Error()}
			continue
		}
		checks[name] = map[string]any{"status": "ok"}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleListBooks(w http.ResponseWriter, r *http.Request) {
	caller := s.catalogCaller(w, r)
	books, record, err := s.service.ListBooks(r.Context(), caller)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, books, record)
}

func (s *HTTPServer) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}
	caller := s.catalogCaller(w, r)
	book, record, err := s.service.GetBook(r.Context(), caller, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, book, record)
}

func (s *HTTPServer) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var payload catalog.CreatePayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	caller := s.catalogCaller(w, r)
	book, record, err := s.service.CreateBook(r.Context(), caller, payload)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusCreated, book, record)
}

func (s *HTTPServer) handleReplaceBook(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}
	var payload catalog.ReplacePayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	caller := s.catalogCaller(w, r)
	book, record, err := s.service.ReplaceBook(r.Context(), caller, id, payload)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, book, record)
}

func (s *HTTPServer) handlePatchBook(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}
	var payload catalog.PatchPayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	caller := s.catalogCaller(w, r)
	book, record, err := s.service.PatchBook(r.Context(), caller, id, payload)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, book, record)
}

func (s *HTTPServer) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}
	caller := s.catalogCaller(w, r)
	record, err := s.service.DeleteBook(r.Context(), caller, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusNoContent, nil, record)
}

func (s *HTTPServer) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode string `json:"mode"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	user, ok := s.resolve(w, r)
	if !ok {
		return
	}
	record, err := s.service.SetMode(r.Context(), user, body.Mode)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *HTTPServer) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	user, ok := s.resolve(w, r)
	if !ok {
		return
	}
	record, err := s.service.Progress(r.Context(), user)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "INVALID_QUERY", "limit must be a positive integer", nil)
			return
		}
		limit = parsed
	}

	document := mux.Vars(r)["document"]
	entries, err := s.service.History(document, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document": document, "history": entries})
}

func (s *HTTPServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	content, err := s.service.Snapshot(vars["document"], vars["hash"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document": vars["document"],
		"hash":     vars["hash"],
		"content":  content,
	})
}

// catalogCaller resolves an identity only for interactive requests; other
// catalog calls never touch progress. A failed resolution downgrades the
// call to non-interactive instead of failing the catalog operation.
func (s *HTTPServer) catalogCaller(w http.ResponseWriter, r *http.Request) Caller {
	caller := Caller{Interactive: isUIRequest(r)}
	if !caller.Interactive {
		return caller
	}
	user, err := s.identity.Resolve(w, r)
	if err != nil {
		s.logger.Warn(r.Context(), "identity unavailable, progress not recorded",
			"request_id", requestID(r.Context()),
			"error", err,
		)
		return Caller{}
	}
	caller.Identity = user
	return caller
}

func (s *HTTPServer) resolve(w http.ResponseWriter, r *http.Request) (string, bool) {
	user, err := s.identity.Resolve(w, r)
	if err != nil {
		s.fail(w, r, fmt.Errorf("resolve identity: %w", err))
		return "", false
	}
	return user, true
}

func (s *HTTPServer) respond(w http.ResponseWriter, status int, payload any, record *progress.Record) {
	if record != nil && s.service.cfg.EchoProgressHeader {
		if encoded, err := json.Marshal(record); err == nil {
			w.Header().Set(progressHeader, string(encoded))
		}
	}
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, payload)
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "request_id", requestID(r.Context()), "error", err)
	}
	writeError(w, status, code, message, details)
}

func bookID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Book not found", nil)
		return 0, false
	}
	return id, true
}

// isUIRequest reports whether the request was issued by the in-page fetch
// layer. Advisory only.
func isUIRequest(r *http.Request) bool {
	return strings.Contains(r.Header.Get("X-Requested-With"), "XMLHttpRequest")
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = util.NewID("req")
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		r = r.WithContext(ctx)

		setCORSHeaders(w.Header(), s.service.cfg.CORSOrigin)
		w.Header().Set(requestIDHeader, id)

		m := httpsnoop.CaptureMetrics(next, w, r)

		s.logger.Info(ctx, "handled",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", m.Code,
			"bytes", m.Written,
			"duration_ms", m.Duration.Milliseconds(),
		)
	})
}

func (s *HTTPServer) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			s.logger.Error(r.Context(), "handler panic",
				"request_id", requestID(r.Context()),
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil)
		}()
		next.ServeHTTP(w, r)
	})
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID, X-Requested-With")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	header.Set("Access-Control-Expose-Headers", "X-Request-ID, X-Progress")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}
