package progress

import (
	"context"

	"github.com/gaetan-warin/LearnREST/internal/logging"
	"github.com/gaetan-warin/LearnREST/internal/store"
)

type Tracker struct {
	doc    *store.Document[Records]
	logger logging.Logger
}

// NewDocument binds the progress document to its storage.
func NewDocument(blobs store.Blobs, name string, logger logging.Logger) *store.Document[Records] {
	return store.NewDocument(blobs, name, EmptyRecords, logger)
}

func NewTracker(doc *store.Document[Records], logger logging.Logger) *Tracker {
	return &Tracker{doc: doc, logger: logger.With("component", "progress")}
}

// SetMode stores mode for user, creating the record when needed. It always
// persists.
func (t *Tracker) SetMode(ctx context.Context, user string, mode Mode) (Record, error) {
	var result Record
	err := t.doc.Update(ctx, func(records *Records) (bool, error) {
		if *records == nil {
			*records = Records{}
		}
		record, ok := (*records)[user]
		if !ok {
			record = DefaultRecord()
		}
		record.Mode = mode
		record = record.normalized()
		(*records)[user] = record
		result = record
		return true, nil
	})
	if err != nil {
		return Record{}, err
	}

	t.logger.Info(ctx, "mode set", "user", user, "mode", mode)
	return result, nil
}

// GetProgress returns the user's record or the default one. Nothing is
// persisted for unknown users.
func (t *Tracker) GetProgress(ctx context.Context, user string) (Record, error) {
	records, err := t.doc.Read(ctx)
	if err != nil {
		return Record{}, err
	}
	record, ok := records[user]
	if !ok {
		return DefaultRecord(), nil
	}
	return record.normalized(), nil
}

// RecordCompletion marks method as completed for user. Requests that did not
// come from the interactive UI are ignored and yield a nil record. The
// document is only rewritten when the method was not already recorded.
func (t *Tracker) RecordCompletion(ctx context.Context, user, method string, interactive bool) (*Record, error) {
	if !interactive {
		return nil, nil
	}

	var result Record
	added := false
	err := t.doc.Update(ctx, func(records *Records) (bool, error) {
		if *records == nil {
			*records = Records{}
		}
		record, ok := (*records)[user]
		if !ok {
			record = DefaultRecord()
		}
		record = record.normalized()
		if !record.Completed(method) {
			record.CompletedMethods = append(record.CompletedMethods, method)
			added = true
		}
		result = record
		if !added {
			return false, nil
		}
		(*records)[user] = record
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if added {
		t.logger.Info(ctx, "method completed", "user", user, "method", method)
	}
	return &result, nil
}
