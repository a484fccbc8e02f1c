package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gaetan-warin/LearnREST/internal/catalog"
	"github.com/gaetan-warin/LearnREST/internal/config"
	"github.com/gaetan-warin/LearnREST/internal/journal"
	"github.com/gaetan-warin/LearnREST/internal/logging"
	"github.com/gaetan-warin/LearnREST/internal/progress"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type historyReader interface {
	History(name string, limit int) ([]journal.Entry, error)
	Snapshot(name, hash string) ([]byte, error)
}

// Caller is who issued a request and whether it came from the interactive
// UI. Identity is empty for non-interactive catalog calls.
type Caller struct {
	Identity    string
	Interactive bool
}

type check struct {
	name string
	dep  pinger
}

type Service struct {
	cfg      config.Config
	books    *catalog.Service
	progress *progress.Tracker
	history  historyReader
	checks   []check
	logger   logging.Logger
}

func New(cfg config.Config, books *catalog.Service, tracker *progress.Tracker, logger logging.Logger) *Service {
	return &Service{
		cfg:      cfg,
		books:    books,
		progress: tracker,
		logger:   logger.With("component", "app"),
	}
}

// WithHistory exposes the document journal through the history endpoints.
func (s *Service) WithHistory(history historyReader) *Service {
	s.history = history
	return s
}

// AddReadinessCheck registers a dependency pinged by /api/ready.
func (s *Service) AddReadinessCheck(name string, dep pinger) {
	s.checks = append(s.checks, check{name: name, dep: dep})
}

// Ready pings every registered dependency and reports the failures by name.
func (s *Service) Ready(ctx context.Context) map[string]error {
	results := make(map[string]error, len(s.checks))
	for _, c := range s.checks {
		results[c.name] = c.dep.Ping(ctx)
	}
	return results
}

func (s *Service) ListBooks(ctx context.Context, caller Caller) ([]catalog.Book, *progress.Record, error) {
	books, err := s.books.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	return books, s.complete(ctx, caller, progress.MethodList), nil
}

func (s *Service) GetBook(ctx context.Context, caller Caller, id int) (catalog.Book, *progress.Record, error) {
	book, err := s.books.Get(ctx, id)
	if err != nil {
		return catalog.Book{}, nil, err
	}
	return book, s.complete(ctx, caller, progress.MethodGetByID), nil
}

func (s *Service) CreateBook(ctx context.Context, caller Caller, payload catalog.CreatePayload) (catalog.Book, *progress.Record, error) {
	book, err := s.books.Create(ctx, payload)
	if err != nil {
		return catalog.Book{}, nil, err
	}
	return book, s.complete(ctx, caller, progress.MethodCreate), nil
}

func (s *Service) ReplaceBook(ctx context.Context, caller Caller, id int, payload catalog.ReplacePayload) (catalog.Book, *progress.Record, error) {
	book, err := s.books.ReplaceFull(ctx, id, payload)
	if err != nil {
		return catalog.Book{}, nil, err
	}
	return book, s.complete(ctx, caller, progress.MethodReplace), nil
}

func (s *Service) PatchBook(ctx context.Context, caller Caller, id int, payload catalog.PatchPayload) (catalog.Book, *progress.Record, error) {
	book, err := s.books.UpdatePartial(ctx, id, payload)
	if err != nil {
		return catalog.Book{}, nil, err
	}
	return book, s.complete(ctx, caller, progress.MethodPatch), nil
}

func (s *Service) DeleteBook(ctx context.Context, caller Caller, id int) (*progress.Record, error) {
	if err := s.books.Delete(ctx, id); err != nil {
		return nil, err
	}
	return s.complete(ctx, caller, progress.MethodDelete), nil
}

func (s *Service) SetMode(ctx context.Context, identity, mode string) (progress.Record, error) {
	parsed, err := progress.ParseMode(mode)
	if err != nil {
		return progress.Record{}, err
	}
	return s.progress.SetMode(ctx, identity, parsed)
}

func (s *Service) Progress(ctx context.Context, identity string) (progress.Record, error) {
	return s.progress.GetProgress(ctx, identity)
}

func (s *Service) History(name string, limit int) ([]journal.Entry, error) {
	if err := s.checkHistory(name); err != nil {
		return nil, err
	}
	return s.history.History(name, limit)
}

func (s *Service) Snapshot(name, hash string) (json.RawMessage, error) {
	if err := s.checkHistory(name); err != nil {
		return nil, err
	}
	data, err := s.history.Snapshot(name, hash)
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("snapshot %s@%s is not valid JSON", name, hash)
	}
	return json.RawMessage(data), nil
}

func (s *Service) checkHistory(name string) error {
	if s.history == nil {
		return errHistoryDisabled
	}
	if name != s.cfg.BooksDocument && name != s.cfg.ProgressDocument {
		return domainError(http.StatusNotFound, "NOT_FOUND", "Unknown document", nil)
	}
	return nil
}

// complete records the method for interactive callers. The catalog change
// has already been persisted, so a failure here is logged and the request
// still succeeds without a progress record.
func (s *Service) complete(ctx context.Context, caller Caller, method string) *progress.Record {
	record, err := s.progress.RecordCompletion(ctx, caller.Identity, method, caller.Interactive)
	if err != nil {
		s.logger.Warn(ctx, "record completion failed", "user", caller.Identity, "method", method, "error", err)
		return nil
	}
	return record
}
