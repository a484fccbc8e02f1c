package catalog

import (
	"context"
	"fmt"

	"github.com/gaetan-warin/LearnREST/internal/logging"
	"github.com/gaetan-warin/LearnREST/internal/store"
)

type Service struct {
	doc    *store.Document[Snapshot]
	logger logging.Logger
}

// NewDocument binds the books document to its storage.
func NewDocument(blobs store.Blobs, name string, logger logging.Logger) *store.Document[Snapshot] {
	return store.NewDocument(blobs, name, EmptySnapshot, logger)
}

func NewService(doc *store.Document[Snapshot], logger logging.Logger) *Service {
	return &Service{doc: doc, logger: logger.With("component", "catalog")}
}

func (s *Service) List(ctx context.Context) ([]Book, error) {
	snapshot, err := s.doc.Read(ctx)
	if err != nil {
		return nil, err
	}
	if snapshot.Books == nil {
		return []Book{}, nil
	}
	return snapshot.Books, nil
}

func (s *Service) Get(ctx context.Context, id int) (Book, error) {
	snapshot, err := s.doc.Read(ctx)
	if err != nil {
		return Book{}, err
	}
	index := snapshot.indexOf(id)
	if index < 0 {
		return Book{}, fmt.Errorf("get book %d: %w", id, ErrNotFound)
	}
	return snapshot.Books[index], nil
}

func (s *Service) Create(ctx context.Context, payload CreatePayload) (Book, error) {
	if err := payload.Validate(); err != nil {
		return Book{}, err
	}

	var created Book
	err := s.doc.Update(ctx, func(snapshot *Snapshot) (bool, error) {
		created = Book{
			ID:        snapshot.nextID(),
			Title:     *payload.Title,
			Author:    *payload.Author,
			Year:      copyInt(payload.Year),
			Available: true,
		}
		snapshot.Books = append(snapshot.Books, created)
		return true, nil
	})
	if err != nil {
		return Book{}, err
	}

	s.logger.Info(ctx, "book created", "id", created.ID)
	return created, nil
}

// ReplaceFull overwrites every field except id and available. Author and
// year fall back to empty/null when the payload omits them.
func (s *Service) ReplaceFull(ctx context.Context, id int, payload ReplacePayload) (Book, error) {
	if err := payload.Validate(); err != nil {
		return Book{}, err
	}

	var replaced Book
	err := s.doc.Update(ctx, func(snapshot *Snapshot) (bool, error) {
		index := snapshot.indexOf(id)
		if index < 0 {
			return false, fmt.Errorf("replace book %d: %w", id, ErrNotFound)
		}

		replaced = Book{
			ID:        id,
			Title:     *payload.Title,
			Year:      copyInt(payload.Year),
			Available: snapshot.Books[index].Available,
		}
		if payload.Author != nil {
			replaced.Author = *payload.Author
		}
		snapshot.Books[index] = replaced
		return true, nil
	})
	if err != nil {
		return Book{}, err
	}

	s.logger.Info(ctx, "book replaced", "id", id)
	return replaced, nil
}

// UpdatePartial merges the supplied fields into the stored book.
func (s *Service) UpdatePartial(ctx context.Context, id int, payload PatchPayload) (Book, error) {
	if err := payload.Validate(); err != nil {
		return Book{}, err
	}

	var updated Book
	err := s.doc.Update(ctx, func(snapshot *Snapshot) (bool, error) {
		index := snapshot.indexOf(id)
		if index < 0 {
			return false, fmt.Errorf("update book %d: %w", id, ErrNotFound)
		}

		book := &snapshot.Books[index]
		if payload.Title != nil {
			book.Title = *payload.Title
		}
		if payload.Author != nil {
			book.Author = *payload.Author
		}
		if payload.Year != nil {
			book.Year = copyInt(payload.Year)
		}
		updated = *book
		return true, nil
	})
	if err != nil {
		return Book{}, err
	}

	s.logger.Info(ctx, "book updated", "id", id)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id int) error {
	err := s.doc.Update(ctx, func(snapshot *Snapshot) (bool, error) {
		index := snapshot.indexOf(id)
		if index < 0 {
			return false, fmt.Errorf("delete book %d: %w", id, ErrNotFound)
		}
		snapshot.Books = append(snapshot.Books[:index], snapshot.Books[index+1:]...)
		return true, nil
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "book deleted", "id", id)
	return nil
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
