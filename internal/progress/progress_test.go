package progress

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openFileTracker(t *testing.T, dir, source string) *Tracker {
	t.Helper()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	tr, err := Open(context.Background(), store, source)
	require.NoError(t, err)
	return tr
}

func TestTracker_Empty(t *testing.T) {
	tr := openFileTracker(t, t.TempDir(), "wanted")

	assert.Equal(t, "wanted", tr.Source())
	assert.False(t, tr.IsCompleted("a"))
	assert.False(t, tr.IsFailed("a"))
	assert.Nil(t, tr.Result("a"))
	assert.Equal(t, Stats{Source: "wanted"}, tr.Stats())
	assert.Equal(t, []string{"a", "b"}, tr.Pending([]string{"a", "b"}))
}

func TestTracker_PendingIdempotentAndOrdered(t *testing.T) {
	ctx := context.Background()
	tr := openFileTracker(t, t.TempDir(), "wanted")
	require.NoError(t, tr.MarkCompleted(ctx, "b", map[string]any{"x": 1}))
	require.NoError(t, tr.MarkFailed(ctx, "d", "timeout"))

	ids := []string{"d", "c", "b", "a"}
	first := tr.Pending(ids)
	second := tr.Pending(ids)
	assert.Equal(t, []string{"d", "c", "a"}, first)
	assert.Equal(t, first, second)
}

func TestTracker_ResumeAfterRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tr := openFileTracker(t, dir, "jobplanet")
	require.NoError(t, tr.MarkCompleted(ctx, "a", map[string]any{"rating": 4.2}))
	require.NoError(t, tr.MarkFailed(ctx, "b", "timeout"))
	require.NoError(t, tr.MarkCompleted(ctx, "c", nil))

	reloaded := openFileTracker(t, dir, "jobplanet")
	assert.Equal(t, []string{"b", "d"}, reloaded.Pending([]string{"a", "b", "c", "d"}))
	assert.True(t, reloaded.IsFailed("b"))
	assert.Equal(t, "timeout", reloaded.FailureReason("b"))
	assert.JSONEq(t, `{"rating":4.2}`, string(reloaded.Result("a")))
	assert.JSONEq(t, `{}`, string(reloaded.Result("c")))

	stats := reloaded.Stats()
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 1, stats.Failed)
	require.NotNil(t, stats.LastUpdated)
}

func TestTracker_CompletionSupersedesFailure(t *testing.T) {
	ctx := context.Background()
	tr := openFileTracker(t, t.TempDir(), "wanted")

	require.NoError(t, tr.MarkFailed(ctx, "a", "boom"))
	require.NoError(t, tr.MarkCompleted(ctx, "a", map[string]any{"isHiring": true}))

	assert.False(t, tr.IsFailed("a"))
	assert.True(t, tr.IsCompleted("a"))
	assert.JSONEq(t, `{"isHiring":true}`, string(tr.Result("a")))
}

func TestTracker_CompletionIsSticky(t *testing.T) {
	ctx := context.Background()
	tr := openFileTracker(t, t.TempDir(), "wanted")

	require.NoError(t, tr.MarkCompleted(ctx, "a", map[string]any{"k": "v"}))
	require.NoError(t, tr.MarkFailed(ctx, "a", "later failure"))

	assert.True(t, tr.IsCompleted("a"))
	assert.False(t, tr.IsFailed("a"))
}

func TestTracker_MarkCompletedIdempotent(t *testing.T) {
	ctx := context.Background()
	tr := openFileTracker(t, t.TempDir(), "wanted")

	require.NoError(t, tr.MarkCompleted(ctx, "a", map[string]any{"k": 1}))
	require.NoError(t, tr.MarkCompleted(ctx, "a", map[string]any{"k": 1}))
	assert.Equal(t, 1, tr.Stats().Completed)
}

func TestTracker_ResetAndResetFailed(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	tr := openFileTracker(t, dir, "geocode")

	require.NoError(t, tr.MarkCompleted(ctx, "a", map[string]any{"lat": 37.5}))
	require.NoError(t, tr.MarkFailed(ctx, "b", "x"))

	require.NoError(t, tr.ResetFailed(ctx))
	assert.True(t, tr.IsCompleted("a"))
	assert.False(t, tr.IsFailed("b"))

	require.NoError(t, tr.MarkFailed(ctx, "b", "x"))
	require.NoError(t, tr.Reset(ctx))
	assert.Equal(t, 0, tr.Stats().Completed)
	assert.Equal(t, 0, tr.Stats().Failed)

	reloaded := openFileTracker(t, dir, "geocode")
	assert.Equal(t, []string{"a", "b"}, reloaded.Pending([]string{"a", "b"}))
}

func TestTracker_Forget(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	tr := openFileTracker(t, dir, "geocode")

	require.NoError(t, tr.MarkCompleted(ctx, "a", map[string]any{"lat": 37.5}))
	require.NoError(t, tr.Forget(ctx, "a"))
	require.NoError(t, tr.Forget(ctx, "never-seen"))
	assert.False(t, tr.IsCompleted("a"))

	reloaded := openFileTracker(t, dir, "geocode")
	assert.False(t, reloaded.IsCompleted("a"))
}

func TestTracker_Decode(t *testing.T) {
	ctx := context.Background()
	tr := openFileTracker(t, t.TempDir(), "jobplanet")

	type result struct {
		Rating float64 `json:"rating"`
	}
	require.NoError(t, tr.MarkCompleted(ctx, "a", result{Rating: 4.2}))
	require.NoError(t, tr.MarkCompleted(ctx, "miss", nil))

	var r result
	ok, err := tr.Decode("a", &r)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 4.2, r.Rating, 0.0001)

	ok, err = tr.Decode("miss", &r)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = tr.Decode("absent", &r)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTracker_TypedNilStoredAsEmpty(t *testing.T) {
	ctx := context.Background()
	tr := openFileTracker(t, t.TempDir(), "jobplanet")

	type data struct{ A int }
	var p *data
	require.NoError(t, tr.MarkCompleted(ctx, "a", p))
	assert.JSONEq(t, `{}`, string(tr.Result("a")))
}

func TestTracker_RejectsInvalidRawResult(t *testing.T) {
	tr := openFileTracker(t, t.TempDir(), "jobplanet")
	err := tr.MarkCompleted(context.Background(), "a", json.RawMessage(`{bad`))
	assert.Error(t, err)
	assert.False(t, tr.IsCompleted("a"))
}

func TestTracker_DocumentShape(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	tr, err := Open(ctx, store, "wanted")
	require.NoError(t, err)
	tr.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }

	require.NoError(t, tr.MarkCompleted(ctx, "a", map[string]any{"url": "https://www.wanted.co.kr/company/1?a=1&b=2"}))

	data, err := os.ReadFile(store.Path("wanted"))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"completed": {"a": {"url": "https://www.wanted.co.kr/company/1?a=1&b=2"}},
		"failed": {},
		"lastUpdated": "2025-03-01T09:00:00Z"
	}`, string(data))
	assert.Contains(t, string(data), "&b=2", "html escaping must be off")
}

type failingStore struct {
	Store
	fail bool
}

func (s *failingStore) Apply(ctx context.Context, source string, doc *Document, c Change) error {
	if s.fail {
		return errors.New("disk full")
	}
	return s.Store.Apply(ctx, source, doc, c)
}

func TestTracker_PersistFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	base, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	store := &failingStore{Store: base}

	tr, err := Open(ctx, store, "wanted")
	require.NoError(t, err)
	require.NoError(t, tr.MarkFailed(ctx, "a", "first"))

	store.fail = true
	assert.Error(t, tr.MarkCompleted(ctx, "a", map[string]any{"k": 1}))
	assert.False(t, tr.IsCompleted("a"))
	assert.Equal(t, "first", tr.FailureReason("a"))

	assert.Error(t, tr.MarkFailed(ctx, "b", "x"))
	assert.False(t, tr.IsFailed("b"))

	assert.Error(t, tr.ResetFailed(ctx))
	assert.True(t, tr.IsFailed("a"))

	assert.Error(t, tr.Reset(ctx))
	assert.True(t, tr.IsFailed("a"))
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, IsEmpty(nil))
	assert.True(t, IsEmpty(json.RawMessage(`{}`)))
	assert.True(t, IsEmpty(json.RawMessage(` { } `)))
	assert.True(t, IsEmpty(json.RawMessage(`null`)))
	assert.False(t, IsEmpty(json.RawMessage(`{"a":1}`)))
}

func TestFileStore_LoadMalformed(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.Path("wanted"), []byte("{not json"), 0o644))

	_, err = Open(context.Background(), store, "wanted")
	assert.Error(t, err)
}

func TestFileStore_LoadLegacyDocument(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	legacy := `{"completed": {"abc": {"lat": 37.5, "lng": 127.0}}, "failed": {"def": "HTTP 500"}, "lastUpdated": null}`
	require.NoError(t, os.WriteFile(store.Path("geocode"), []byte(legacy), 0o644))

	tr, err := Open(context.Background(), store, "geocode")
	require.NoError(t, err)
	assert.True(t, tr.IsCompleted("abc"))
	assert.True(t, tr.IsFailed("def"))
	assert.Nil(t, tr.Stats().LastUpdated)
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), "mongo", t.TempDir(), "")
	assert.Error(t, err)
}

func TestOpenStore_JSON(t *testing.T) {
	s, err := OpenStore(context.Background(), DriverJSON, t.TempDir(), "")
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)
	assert.NoError(t, s.Close())
}
