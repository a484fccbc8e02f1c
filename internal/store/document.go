package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gaetan-warin/LearnREST/internal/logging"
)

// Document is a typed JSON document stored in Blobs. Every operation
// reloads the whole document; Update holds the document's lock across the
// read-modify-write so concurrent writers cannot lose each other's changes.
type Document[T any] struct {
	blobs  Blobs
	name   string
	empty  func() T
	logger logging.Logger
	mu     sync.RWMutex
}

func NewDocument[T any](blobs Blobs, name string, empty func() T, logger logging.Logger) *Document[T] {
	return &Document[T]{
		blobs:  blobs,
		name:   name,
		empty:  empty,
		logger: logger.With("document", name),
	}
}

func (d *Document[T]) Name() string {
	return d.name
}

// Read returns the current content, or the empty value when the document is
// absent or cannot be decoded.
func (d *Document[T]) Read(ctx context.Context) (T, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.load(ctx)
}

// Update applies fn to the current content and saves the result when fn
// reports a change. An error from fn aborts without saving.
func (d *Document[T]) Update(ctx context.Context, fn func(*T) (bool, error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	value, err := d.load(ctx)
	if err != nil {
		return err
	}
	changed, err := fn(&value)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return d.save(ctx, value)
}

// Ensure writes the empty value if the document has never been saved.
func (d *Document[T]) Ensure(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.blobs.Load(ctx, d.name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("check %s: %w", d.name, err)
	}
	if err := d.save(ctx, d.empty()); err != nil {
		return err
	}
	d.logger.Info(ctx, "initial document created")
	return nil
}

func (d *Document[T]) load(ctx context.Context) (T, error) {
	raw, err := d.blobs.Load(ctx, d.name)
	if errors.Is(err, ErrNotFound) {
		return d.empty(), nil
	}
	if err != nil {
		var zero T
		return zero, fmt.Errorf("load %s: %w", d.name, err)
	}

	value := d.empty()
	if err := json.Unmarshal(raw, &value); err != nil {
		d.logger.Warn(ctx, "malformed document, using defaults", "error", err)
		return d.empty(), nil
	}
	return value, nil
}

func (d *Document[T]) save(ctx context.Context, value T) error {
	payload, err := json.MarshalIndent(value, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", d.name, err)
	}
	if err := d.blobs.Save(ctx, d.name, payload); err != nil {
		return fmt.Errorf("save %s: %w", d.name, err)
	}
	return nil
}
