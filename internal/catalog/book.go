// Package catalog implements the book collection: create, read, full
// replace, partial update and delete over a single JSON document.
package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when no book carries the requested id.
var ErrNotFound = errors.New("book not found")

// Book is a single catalog entry. Year is nullable; Available is set at
// creation and never changed by updates.
type Book struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Year      *int   `json:"year"`
	Available bool   `json:"available"`
}

// Snapshot is the persisted shape of the books document.
type Snapshot struct {
	Books []Book `json:"books"`
}

func EmptySnapshot() Snapshot {
	return Snapshot{Books: []Book{}}
}

func (s Snapshot) indexOf(id int) int {
	for i, book := range s.Books {
		if book.ID == id {
			return i
		}
	}
	return -1
}

func (s Snapshot) nextID() int {
	highest := 0
	for _, book := range s.Books {
		if book.ID > highest {
			highest = book.ID
		}
	}
	return highest + 1
}

// ValidationError reports a request body that lacks required fields.
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Fields, ", "))
}

// CreatePayload is the POST body. All three fields are required.
type CreatePayload struct {
	Title  *string `json:"title"`
	Author *string `json:"author"`
	Year   *int    `json:"year"`
}

func (p CreatePayload) Validate() error {
	var missing []string
	if p.Title == nil {
		missing = append(missing, "title")
	}
	if p.Author == nil {
		missing = append(missing, "author")
	}
	if p.Year == nil {
		missing = append(missing, "year")
	}
	if len(missing) > 0 {
		return &ValidationError{Message: "missing required fields", Fields: missing}
	}
	return nil
}

// ReplacePayload is the PUT body. Only title is required; author and year
// are cleared when omitted.
type ReplacePayload struct {
	Title  *string `json:"title"`
	Author *string `json:"author"`
	Year   *int    `json:"year"`
}

func (p ReplacePayload) Validate() error {
	if p.Title == nil {
		return &ValidationError{Message: "missing required fields", Fields: []string{"title"}}
	}
	return nil
}

// PatchPayload is the PATCH body. At least one field must be present.
type PatchPayload struct {
	Title  *string `json:"title"`
	Author *string `json:"author"`
	Year   *int    `json:"year"`
}

func (p PatchPayload) Validate() error {
	if p.Title == nil && p.Author == nil && p.Year == nil {
		return &ValidationError{Message: "at least one of title, author or year is required"}
	}
	return nil
}
