// Package progress tracks which HTTP methods each learner has exercised and
// the difficulty mode they picked.
package progress

import (
	"errors"
	"fmt"
	"slices"
)

var ErrInvalidMode = errors.New("mode must be beginner or advanced")

type Mode string

const (
	ModeBeginner Mode = "beginner"
	ModeAdvanced Mode = "advanced"
)

func ParseMode(value string) (Mode, error) {
	switch Mode(value) {
	case ModeBeginner, ModeAdvanced:
		return Mode(value), nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrInvalidMode, value)
	}
}

// Completion keys. A single-book read is tracked apart from listing.
const (
	MethodList    = "GET"
	MethodGetByID = "GET_ID"
	MethodCreate  = "POST"
	MethodReplace = "PUT"
	MethodPatch   = "PATCH"
	MethodDelete  = "DELETE"
)

type Record struct {
	Mode             Mode     `json:"mode"`
	CompletedMethods []string `json:"completed_methods"`
	CurrentLevel     int      `json:"current_level"`
}

func DefaultRecord() Record {
	return Record{Mode: ModeBeginner, CompletedMethods: []string{}, CurrentLevel: 0}
}

// Completed reports whether method is already recorded.
func (r Record) Completed(method string) bool {
	return slices.Contains(r.CompletedMethods, method)
}

func (r Record) normalized() Record {
	if r.CompletedMethods == nil {
		r.CompletedMethods = []string{}
	}
	return r
}

// Records is the persisted progress document, keyed by user identity.
type Records map[string]Record

func EmptyRecords() Records {
	return Records{}
}
