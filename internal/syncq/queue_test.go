package syncq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/readerkit/internal/store"
)

var errOffline = errors.New("connection refused")
var errRejected = errors.New("rejected")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestQueue(t *testing.T, opts ...Option) (*Queue, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}
	opts = append([]Option{
		WithClock(clock.Now),
		WithPermanent(func(err error) bool { return errors.Is(err, errRejected) }),
	}, opts...)
	return New(store.NewMemKV(), opts...), clock
}

type row struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

func ref(kind, id string) Ref {
	return Ref{Entity: Key(kind, id)}
}

func child(kind, id, parentKind, parentID string) Ref {
	return Ref{Entity: Key(kind, id), Parent: Key(parentKind, parentID)}
}

func entities(t *testing.T, q *Queue) []string {
	t.Helper()
	items, err := q.Items()
	require.NoError(t, err)
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Entity
	}
	return out
}

func TestEnqueuePersistsInOrder(t *testing.T) {
	kv := store.NewMemKV()
	q := New(kv)
	for _, id := range []string{"a", "b", "c"} {
		_, err := q.Enqueue("document", ref("document", id), row{ID: id})
		require.NoError(t, err)
	}

	// A second queue over the same key-space sees the same items
	items, err := New(kv).Items()
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.JSONEq(t, `{"id":"a"}`, string(items[0].Data))
	assert.JSONEq(t, `{"id":"c"}`, string(items[2].Data))
	assert.Equal(t, "document", items[0].Type)
	assert.NotEmpty(t, items[0].ID)
	assert.NotZero(t, items[0].Timestamp)
}

func TestReplayAppliesAndEmpties(t *testing.T) {
	q, _ := newTestQueue(t)
	for _, id := range []string{"a", "b", "c"} {
		_, err := q.Enqueue("document", ref("document", id), row{ID: id})
		require.NoError(t, err)
	}

	var applied []string
	report, err := q.Replay(context.Background(), func(_ context.Context, it Item) error {
		applied = append(applied, string(it.Data))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Applied)
	assert.Equal(t, []string{`{"id":"a"}`, `{"id":"b"}`, `{"id":"c"}`}, applied)
	assert.Equal(t, 0, q.Len())
}

func TestReplayRetainsFailuresWithBackoff(t *testing.T) {
	q, clock := newTestQueue(t)
	_, err := q.Enqueue("node", ref("node", "n1"), row{ID: "n1"})
	require.NoError(t, err)
	_, err = q.Enqueue("node", ref("node", "n2"), row{ID: "n2"})
	require.NoError(t, err)

	failN1 := func(_ context.Context, it Item) error {
		if string(it.Data) == `{"id":"n1"}` {
			return errOffline
		}
		return nil
	}
	report, err := q.Replay(context.Background(), failN1)
	require.NoError(t, err)
	assert.Equal(t, Report{Applied: 1, Retained: 1}, report)

	items, err := q.Items()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Attempts)
	assert.Equal(t, errOffline.Error(), items[0].LastError)
	assert.Equal(t, clock.Now().Add(2*time.Second).UnixMilli(), items[0].NextAttemptAt)

	// Not yet due: left untouched
	calls := 0
	report, err = q.Replay(context.Background(), func(context.Context, Item) error { calls++; return nil })
	require.NoError(t, err)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, report.Deferred)
	assert.Equal(t, 1, q.Len())

	clock.Advance(2 * time.Second)
	report, err = q.Replay(context.Background(), func(context.Context, Item) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, report.Applied)
	assert.Equal(t, 0, q.Len())
}

func TestBackoffGrows(t *testing.T) {
	q, _ := newTestQueue(t, WithPolicy(Policy{InitialInterval: time.Second, MaxInterval: 4 * time.Second, MaxAttempts: 10}))
	assert.Equal(t, time.Second, q.delay(1))
	assert.Equal(t, 1500*time.Millisecond, q.delay(2))
	assert.Equal(t, 2250*time.Millisecond, q.delay(3))
	assert.Equal(t, 4*time.Second, q.delay(8))
}

func TestReplayDeadLettersPermanentFailures(t *testing.T) {
	q, _ := newTestQueue(t)
	_, err := q.Enqueue("annotation", ref("annotation", "bad"), row{ID: "bad"})
	require.NoError(t, err)

	report, err := q.Replay(context.Background(), func(context.Context, Item) error { return errRejected })
	require.NoError(t, err)
	assert.Equal(t, 1, report.DeadLettered)
	assert.Equal(t, 0, q.Len())

	dead, err := q.DeadLetters()
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "annotation", dead[0].Type)
	assert.Equal(t, errRejected.Error(), dead[0].LastError)
}

func TestReplayDeadLettersAfterMaxAttempts(t *testing.T) {
	q, clock := newTestQueue(t, WithPolicy(Policy{InitialInterval: time.Second, MaxInterval: time.Second, MaxAttempts: 2}))
	_, err := q.Enqueue("chunk", ref("chunk", "c1"), row{ID: "c1"})
	require.NoError(t, err)

	fail := func(context.Context, Item) error { return errOffline }
	report, err := q.Replay(context.Background(), fail)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Retained)

	clock.Advance(time.Second)
	report, err = q.Replay(context.Background(), fail)
	require.NoError(t, err)
	assert.Equal(t, 1, report.DeadLettered)
	assert.Equal(t, 0, q.Len())

	dead, err := q.DeadLetters()
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, 2, dead[0].Attempts)
}

func TestEnqueueDuringReplayIsPreserved(t *testing.T) {
	q, _ := newTestQueue(t)
	_, err := q.Enqueue("message", ref("message", "m1"), row{ID: "m1"})
	require.NoError(t, err)

	report, err := q.Replay(context.Background(), func(_ context.Context, it Item) error {
		_, err := q.Enqueue("message", ref("message", "m2"), row{ID: "m2"})
		require.NoError(t, err)
		return errOffline
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Retained)

	items, err := q.Items()
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.JSONEq(t, `{"id":"m1"}`, string(items[0].Data))
	assert.JSONEq(t, `{"id":"m2"}`, string(items[1].Data))
}

func TestConcurrentReplayIsRejected(t *testing.T) {
	q, _ := newTestQueue(t)
	_, err := q.Enqueue("document", ref("document", "a"), row{ID: "a"})
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := q.Replay(context.Background(), func(context.Context, Item) error {
			close(entered)
			<-release
			return nil
		})
		done <- err
	}()

	<-entered
	assert.True(t, q.Syncing())
	_, err = q.Replay(context.Background(), func(context.Context, Item) error { return nil })
	assert.ErrorIs(t, err, ErrSyncInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, q.Syncing())
	assert.Equal(t, 0, q.Len())
}

func TestReplayStopsOnCancelledContext(t *testing.T) {
	q, _ := newTestQueue(t)
	for _, id := range []string{"a", "b"} {
		_, err := q.Enqueue("document", ref("document", id), row{ID: id})
		require.NoError(t, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := q.Replay(ctx, func(context.Context, Item) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 2, report.Deferred)
	assert.Equal(t, 2, q.Len())
}

func TestEnqueueReportsLocalWriteFailure(t *testing.T) {
	kv := store.NewMemKV()
	kv.PutErr = errors.New("quota exceeded")
	q := New(kv)

	_, err := q.Enqueue("document", ref("document", "a"), row{ID: "a"})
	assert.ErrorIs(t, err, store.ErrLocalWrite)
}

func TestEnqueueReplacesPendingWriteOfSameRecord(t *testing.T) {
	q, _ := newTestQueue(t)
	_, err := q.Enqueue("document", ref("document", "d1"), row{ID: "d1", Name: "v1"})
	require.NoError(t, err)
	_, err = q.Enqueue("document", ref("document", "d2"), row{ID: "d2"})
	require.NoError(t, err)
	_, err = q.Enqueue("document", ref("document", "d1"), row{ID: "d1", Name: "v2"})
	require.NoError(t, err)

	items, err := q.Items()
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "document:d2", items[0].Entity)
	assert.JSONEq(t, `{"id":"d1","name":"v2"}`, string(items[1].Data))

	// A different kind of write to the same record keeps its place
	_, err = q.Enqueue("document_delete", ref("document", "d1"), row{ID: "d1"})
	require.NoError(t, err)
	assert.Equal(t, 3, q.Len())
}

func TestSupersedeDropsPendingWrites(t *testing.T) {
	q, _ := newTestQueue(t)
	_, err := q.Enqueue("document", ref("document", "d1"), row{ID: "d1"})
	require.NoError(t, err)
	_, err = q.Enqueue("page", child("page", "p1", "document", "d1"), row{ID: "p1"})
	require.NoError(t, err)

	n, err := q.Supersede("document:d1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"page:p1"}, entities(t, q))

	n, err = q.Supersede("")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPurgeDropsDependents(t *testing.T) {
	q, _ := newTestQueue(t)
	_, err := q.Enqueue("document", ref("document", "d1"), row{ID: "d1"})
	require.NoError(t, err)
	_, err = q.Enqueue("conversation", child("conversation", "c1", "document", "d1"), row{ID: "c1"})
	require.NoError(t, err)
	_, err = q.Enqueue("message", child("message", "m1", "conversation", "c1"), row{ID: "m1"})
	require.NoError(t, err)
	_, err = q.Enqueue("page", child("page", "p2", "document", "d2"), row{ID: "p2"})
	require.NoError(t, err)

	n, err := q.Purge("document:d1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"page:p2"}, entities(t, q))
}

func TestReplayHoldsDependentsOfRetainedParent(t *testing.T) {
	q, clock := newTestQueue(t)
	refs := []Ref{
		ref("document", "d1"),
		child("page", "p1", "document", "d1"),
		child("conversation", "c1", "document", "d1"),
		child("message", "m1", "conversation", "c1"),
		ref("document", "d2"),
	}
	for _, r := range refs {
		_, err := q.Enqueue("write", r, row{ID: r.Entity})
		require.NoError(t, err)
	}

	var tried []string
	report, err := q.Replay(context.Background(), func(_ context.Context, it Item) error {
		tried = append(tried, it.Entity)
		if it.Entity == "document:d1" {
			return errOffline
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"document:d1", "document:d2"}, tried)
	assert.Equal(t, Report{Applied: 1, Retained: 1, Blocked: 3}, report)
	assert.Equal(t, []string{"document:d1", "page:p1", "conversation:c1", "message:m1"}, entities(t, q))

	items, err := q.Items()
	require.NoError(t, err)
	assert.Zero(t, items[1].Attempts, "held items are not charged an attempt")

	// Still backing off: the parent is deferred and its dependents stay held
	report, err = q.Replay(context.Background(), func(context.Context, Item) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, Report{Deferred: 1, Blocked: 3}, report)

	clock.Advance(2 * time.Second)
	tried = nil
	report, err = q.Replay(context.Background(), func(_ context.Context, it Item) error {
		tried = append(tried, it.Entity)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, report.Applied)
	assert.Equal(t, []string{"document:d1", "page:p1", "conversation:c1", "message:m1"}, tried)
	assert.Equal(t, 0, q.Len())
}

func TestReplayKeepsWriteOrderPerRecord(t *testing.T) {
	q, _ := newTestQueue(t)
	_, err := q.Enqueue("vocabulary", ref("vocabulary", "v1"), row{ID: "v1"})
	require.NoError(t, err)
	_, err = q.Enqueue("vocabulary_delete", ref("vocabulary", "v1"), row{ID: "v1"})
	require.NoError(t, err)

	calls := 0
	report, err := q.Replay(context.Background(), func(context.Context, Item) error {
		calls++
		return errOffline
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "the delete must not overtake the pending save")
	assert.Equal(t, Report{Retained: 1, Blocked: 1}, report)
}

func TestSupersedeDuringReplay(t *testing.T) {
	q, _ := newTestQueue(t)
	_, err := q.Enqueue("document", ref("document", "d1"), row{ID: "d1", Name: "stale"})
	require.NoError(t, err)
	_, err = q.Enqueue("document", ref("document", "d2"), row{ID: "d2", Name: "stale"})
	require.NoError(t, err)

	var applied []string
	report, err := q.Replay(context.Background(), func(_ context.Context, it Item) error {
		if it.Entity == "document:d1" {
			// A newer write of d2 lands remotely while d1 is in flight
			_, err := q.Supersede("document:d2")
			require.NoError(t, err)
			// and d1 itself is overwritten before its failure is recorded
			_, err = q.Supersede("document:d1")
			require.NoError(t, err)
			return errOffline
		}
		applied = append(applied, it.Entity)
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, applied)
	assert.Equal(t, 1, report.Superseded)
	assert.Equal(t, 0, q.Len())
}
