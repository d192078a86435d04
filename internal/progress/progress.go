// Package progress keeps the per-source completion ledger that makes crawl
// stages resumable. Every change is persisted before the call returns.
package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/byeongteuk/btmap/internal/model"
)

// Document is the persisted state of one source.
type Document struct {
	Completed   map[string]json.RawMessage `json:"completed"`
	Failed      map[string]string          `json:"failed"`
	LastUpdated *model.Timestamp           `json:"lastUpdated"`
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{
		Completed: make(map[string]json.RawMessage),
		Failed:    make(map[string]string),
	}
}

func (d *Document) ensure() {
	if d.Completed == nil {
		d.Completed = make(map[string]json.RawMessage)
	}
	if d.Failed == nil {
		d.Failed = make(map[string]string)
	}
}

// Stats summarises a tracker.
type Stats struct {
	Source      string     `json:"source"`
	Completed   int        `json:"completed"`
	Failed      int        `json:"failed"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
}

// Tracker is the completion ledger of one source. It is safe for concurrent
// use, although stages drive it from a single goroutine.
type Tracker struct {
	source string
	store  Store

	mu  sync.Mutex
	doc *Document
	now func() time.Time
}

// Open loads the persisted document for source from store.
func Open(ctx context.Context, store Store, source string) (*Tracker, error) {
	doc, err := store.Load(ctx, source)
	if err != nil {
		return nil, eris.Wrapf(err, "progress: load %s", source)
	}
	if doc == nil {
		doc = NewDocument()
	}
	doc.ensure()
	return &Tracker{source: source, store: store, doc: doc, now: time.Now}, nil
}

// Source returns the source name the tracker belongs to.
func (t *Tracker) Source() string { return t.source }

// IsCompleted reports whether id has a completed entry.
func (t *Tracker) IsCompleted(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.doc.Completed[id]
	return ok
}

// IsFailed reports whether id has a failed entry.
func (t *Tracker) IsFailed(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.doc.Failed[id]
	return ok
}

// Result returns the stored result for id, or nil when id is not completed.
func (t *Tracker) Result(id string) json.RawMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.doc.Completed[id]
}

// Decode unmarshals the stored result for id into v. It reports false when
// id is not completed or its result is empty.
func (t *Tracker) Decode(id string, v any) (bool, error) {
	raw := t.Result(id)
	if IsEmpty(raw) {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, eris.Wrapf(err, "progress: decode %s result for %s", t.source, id)
	}
	return true, nil
}

// FailureReason returns the recorded failure message for id.
func (t *Tracker) FailureReason(id string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.doc.Failed[id]
}

// MarkCompleted records result for id and drops any failure entry. A nil
// result is stored as an empty object, the definitive "not found" marker.
func (t *Tracker) MarkCompleted(ctx context.Context, id string, result any) error {
	raw, err := encodeResult(result)
	if err != nil {
		return eris.Wrapf(err, "progress: encode %s result for %s", t.source, id)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	prevResult, hadResult := t.doc.Completed[id]
	prevErr, hadErr := t.doc.Failed[id]
	prevTime := t.doc.LastUpdated

	t.doc.Completed[id] = raw
	delete(t.doc.Failed, id)
	t.touch()

	err = t.store.Apply(ctx, t.source, t.doc, Change{Op: OpCompleted, ID: id, Result: raw, At: t.doc.LastUpdated.Time})
	if err != nil {
		if hadResult {
			t.doc.Completed[id] = prevResult
		} else {
			delete(t.doc.Completed, id)
		}
		if hadErr {
			t.doc.Failed[id] = prevErr
		}
		t.doc.LastUpdated = prevTime
		return eris.Wrapf(err, "progress: persist %s completion for %s", t.source, id)
	}
	return nil
}

// MarkFailed records a failure for id. Completion is sticky: a failure
// reported for an already completed id is logged and not stored, so an id
// is never completed and failed at the same time.
func (t *Tracker) MarkFailed(ctx context.Context, id, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.doc.Completed[id]; ok {
		zap.L().Debug("ignoring failure for completed entry",
			zap.String("source", t.source),
			zap.String("company_id", id),
			zap.String("reason", reason),
		)
		return nil
	}

	prevErr, hadErr := t.doc.Failed[id]
	prevTime := t.doc.LastUpdated

	t.doc.Failed[id] = reason
	t.touch()

	err := t.store.Apply(ctx, t.source, t.doc, Change{Op: OpFailed, ID: id, Error: reason, At: t.doc.LastUpdated.Time})
	if err != nil {
		if hadErr {
			t.doc.Failed[id] = prevErr
		} else {
			delete(t.doc.Failed, id)
		}
		t.doc.LastUpdated = prevTime
		return eris.Wrapf(err, "progress: persist %s failure for %s", t.source, id)
	}
	return nil
}

// Forget removes any entry for id so the next run processes it again.
func (t *Tracker) Forget(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	prevResult, hadResult := t.doc.Completed[id]
	prevErr, hadErr := t.doc.Failed[id]
	if !hadResult && !hadErr {
		return nil
	}
	prevTime := t.doc.LastUpdated

	delete(t.doc.Completed, id)
	delete(t.doc.Failed, id)
	t.touch()

	if err := t.store.Apply(ctx, t.source, t.doc, Change{Op: OpForget, ID: id, At: t.doc.LastUpdated.Time}); err != nil {
		if hadResult {
			t.doc.Completed[id] = prevResult
		}
		if hadErr {
			t.doc.Failed[id] = prevErr
		}
		t.doc.LastUpdated = prevTime
		return eris.Wrapf(err, "progress: persist %s forget for %s", t.source, id)
	}
	return nil
}

// Pending returns the ids that are not completed, in input order. Failed ids
// are pending.
func (t *Tracker) Pending(ids []string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := t.doc.Completed[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// Stats returns completed and failed counts and the last update time.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	stats := Stats{
		Source:    t.source,
		Completed: len(t.doc.Completed),
		Failed:    len(t.doc.Failed),
	}
	if t.doc.LastUpdated != nil && !t.doc.LastUpdated.IsZero() {
		last := t.doc.LastUpdated.Time
		stats.LastUpdated = &last
	}
	return stats
}

// Reset clears every entry of the source.
func (t *Tracker) Reset(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.doc
	t.doc = NewDocument()
	t.touch()

	if err := t.store.Apply(ctx, t.source, t.doc, Change{Op: OpReset, At: t.doc.LastUpdated.Time}); err != nil {
		t.doc = prev
		return eris.Wrapf(err, "progress: persist %s reset", t.source)
	}
	return nil
}

// ResetFailed clears only the failure entries so they are retried without
// redoing completed work.
func (t *Tracker) ResetFailed(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	prevFailed := t.doc.Failed
	prevTime := t.doc.LastUpdated
	t.doc.Failed = make(map[string]string)
	t.touch()

	if err := t.store.Apply(ctx, t.source, t.doc, Change{Op: OpResetFailed, At: t.doc.LastUpdated.Time}); err != nil {
		t.doc.Failed = prevFailed
		t.doc.LastUpdated = prevTime
		return eris.Wrapf(err, "progress: persist %s reset-failed", t.source)
	}
	return nil
}

func (t *Tracker) touch() {
	t.doc.LastUpdated = model.NewTimestamp(t.now().UTC())
}

// IsEmpty reports whether a stored result carries no data: absent, null or
// an empty object.
func IsEmpty(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return true
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &m); err == nil && len(m) == 0 {
		return true
	}
	return false
}

func encodeResult(result any) (json.RawMessage, error) {
	switch v := result.(type) {
	case nil:
		return json.RawMessage(`{}`), nil
	case json.RawMessage:
		if len(bytes.TrimSpace(v)) == 0 {
			return json.RawMessage(`{}`), nil
		}
		if !json.Valid(v) {
			return nil, eris.New("invalid json result")
		}
		return v, nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(raw, []byte("null")) {
		return json.RawMessage(`{}`), nil
	}
	return raw, nil
}
