package progress

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaetan-warin/LearnREST/internal/logging"
	"github.com/gaetan-warin/LearnREST/internal/store"
)

func newTestTracker(t *testing.T) (*Tracker, *store.MemoryStore) {
	t.Helper()
	blobs := store.NewMemoryStore()
	return NewTracker(NewDocument(blobs, "progress", logging.Discard()), logging.Discard()), blobs
}

func TestGetProgressDefaultIsNotPersisted(t *testing.T) {
	tracker, blobs := newTestTracker(t)

	got, err := tracker.GetProgress(context.Background(), "10.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, Record{Mode: ModeBeginner, CompletedMethods: []string{}, CurrentLevel: 0}, got)
	assert.Equal(t, 0, blobs.Saves("progress"))

	raw, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode":"beginner","completed_methods":[],"current_level":0}`, string(raw))
}

func TestRecordCompletionIsIdempotent(t *testing.T) {
	tracker, blobs := newTestTracker(t)
	ctx := context.Background()

	first, err := tracker.RecordCompletion(ctx, "u1", MethodList, true)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, []string{"GET"}, first.CompletedMethods)

	second, err := tracker.RecordCompletion(ctx, "u1", MethodList, true)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, []string{"GET"}, second.CompletedMethods)

	assert.Equal(t, 1, blobs.Saves("progress"), "second completion must not rewrite the document")

	stored, err := tracker.GetProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"GET"}, stored.CompletedMethods)
}

func TestRecordCompletionAccumulatesInOrder(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	for _, method := range []string{MethodCreate, MethodGetByID, MethodCreate, MethodDelete} {
		_, err := tracker.RecordCompletion(ctx, "u1", method, true)
		require.NoError(t, err)
	}

	got, err := tracker.GetProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"POST", "GET_ID", "DELETE"}, got.CompletedMethods)
}

func TestRecordCompletionIgnoresNonInteractiveRequests(t *testing.T) {
	tracker, blobs := newTestTracker(t)

	got, err := tracker.RecordCompletion(context.Background(), "u1", MethodPatch, false)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 0, blobs.Saves("progress"))
}

func TestRecordCompletionKeepsUsersApart(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tracker.RecordCompletion(ctx, "alice", MethodReplace, true)
	require.NoError(t, err)

	bob, err := tracker.GetProgress(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, bob.CompletedMethods)
}

func TestSetModeCreatesThenOverwrites(t *testing.T) {
	tracker, blobs := newTestTracker(t)
	ctx := context.Background()

	created, err := tracker.SetMode(ctx, "u1", ModeAdvanced)
	require.NoError(t, err)
	assert.Equal(t, Record{Mode: ModeAdvanced, CompletedMethods: []string{}}, created)

	_, err = tracker.RecordCompletion(ctx, "u1", MethodList, true)
	require.NoError(t, err)

	updated, err := tracker.SetMode(ctx, "u1", ModeBeginner)
	require.NoError(t, err)
	assert.Equal(t, ModeBeginner, updated.Mode)
	assert.Equal(t, []string{"GET"}, updated.CompletedMethods, "mode switch keeps completions")

	_, err = tracker.SetMode(ctx, "u1", ModeBeginner)
	require.NoError(t, err)
	assert.Equal(t, 4, blobs.Saves("progress"), "SetMode always persists")
}

func TestLoadsRecordsWithNullCompletions(t *testing.T) {
	tracker, blobs := newTestTracker(t)
	ctx := context.Background()
	require.NoError(t, blobs.Save(ctx, "progress", []byte(`{"u1":{"mode":"advanced","completed_methods":null,"current_level":2}}`)))

	got, err := tracker.GetProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, Record{Mode: ModeAdvanced, CompletedMethods: []string{}, CurrentLevel: 2}, got)
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("advanced")
	require.NoError(t, err)
	assert.Equal(t, ModeAdvanced, mode)

	for _, bad := range []string{"", "expert", "Beginner"} {
		_, err := ParseMode(bad)
		assert.ErrorIs(t, err, ErrInvalidMode, bad)
	}
}
