// Package syncq holds remote writes that could not be delivered and replays
// them once the remote backend is reachable again.
package syncq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/kittclouds/readerkit/internal/logger"
	"github.com/kittclouds/readerkit/internal/store"
)

// Namespaces in the local key-space.
const (
	NSQueue      = "sync_queue"
	NSDeadLetter = "sync_dead_letter"
)

// ErrSyncInProgress is returned when Replay is already running.
var ErrSyncInProgress = errors.New("sync already in progress")

// Ref names the record an item writes and the record it depends on,
// e.g. {Entity: "page:d1-page-1", Parent: "document:d1"}. Both may be empty.
type Ref struct {
	Entity string
	Parent string
}

// Key builds a Ref component from a record kind and id.
func Key(kind, id string) string {
	if id == "" {
		return ""
	}
	return kind + ":" + id
}

// Item is one pending remote write. Data is the mapped remote row.
type Item struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Entity        string          `json:"entity,omitempty"`
	Parent        string          `json:"parent,omitempty"`
	Data          json.RawMessage `json:"data"`
	Timestamp     int64           `json:"timestamp"`
	Attempts      int             `json:"attempts,omitempty"`
	NextAttemptAt int64           `json:"nextAttemptAt,omitempty"`
	LastError     string          `json:"lastError,omitempty"`
}

// Policy bounds retries of failed items.
type Policy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxAttempts     int
}

// DefaultPolicy retries from 2s up to 5m, five attempts in total.
var DefaultPolicy = Policy{
	InitialInterval: 2 * time.Second,
	MaxInterval:     5 * time.Minute,
	MaxAttempts:     5,
}

// Report summarises one Replay.
type Report struct {
	Applied      int `json:"applied"`
	Retained     int `json:"retained"`
	DeadLettered int `json:"deadLettered"`
	Deferred     int `json:"deferred"`
	Blocked      int `json:"blocked"`    // held behind an unresolved parent or earlier write
	Superseded   int `json:"superseded"` // dropped by a newer write during replay
}

// ApplyFunc delivers one item to the remote backend.
type ApplyFunc func(ctx context.Context, item Item) error

// Queue is a durable FIFO of Items persisted under NSQueue.
type Queue struct {
	mu      sync.Mutex
	kv      store.KV
	syncing atomic.Bool
	// dropped holds ids removed from NSQueue while a Replay is running.
	dropped map[string]bool

	policy    Policy
	permanent func(error) bool
	now       func() time.Time
	log       *logger.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithPolicy sets the retry policy.
func WithPolicy(p Policy) Option {
	return func(q *Queue) { q.policy = p }
}

// WithPermanent sets the classifier for errors that must not be retried.
func WithPermanent(fn func(error) bool) Option {
	return func(q *Queue) { q.permanent = fn }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(q *Queue) { q.log = l }
}

// New creates a queue over kv.
func New(kv store.KV, opts ...Option) *Queue {
	q := &Queue{
		kv:        kv,
		policy:    DefaultPolicy,
		permanent: func(error) bool { return false },
		now:       time.Now,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends a write of the given type. data is marshalled to JSON.
// Pending items of the same type for the same ref.Entity are replaced, since
// every payload carries the full row.
func (q *Queue) Enqueue(kind string, ref Ref, data any) (Item, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Item{}, fmt.Errorf("failed to encode %s payload: %w", kind, err)
	}
	item := Item{
		ID:        uuid.NewString(),
		Type:      kind,
		Entity:    ref.Entity,
		Parent:    ref.Parent,
		Data:      raw,
		Timestamp: q.now().UnixMilli(),
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(NSQueue)
	if err != nil {
		return Item{}, err
	}
	if item.Entity != "" {
		items = q.dropLocked(items, func(it Item) bool {
			return it.Type == kind && it.Entity == item.Entity
		})
	}
	if err := q.save(NSQueue, append(items, item)); err != nil {
		return Item{}, err
	}
	return item, nil
}

// Supersede drops every pending item that writes entity. Call it once a
// newer write of that record has reached the remote backend.
func (q *Queue) Supersede(entity string) (int, error) {
	if entity == "" {
		return 0, nil
	}
	return q.remove(func(items []Item) func(Item) bool {
		return func(it Item) bool { return it.Entity == entity }
	})
}

// Purge drops the pending items that write entity or any record depending
// on it, transitively. Call it once entity was deleted remotely.
func (q *Queue) Purge(entity string) (int, error) {
	if entity == "" {
		return 0, nil
	}
	return q.remove(func(items []Item) func(Item) bool {
		doomed := map[string]bool{entity: true}
		for changed := true; changed; {
			changed = false
			for _, it := range items {
				if it.Entity != "" && !doomed[it.Entity] && doomed[it.Parent] {
					doomed[it.Entity] = true
					changed = true
				}
			}
		}
		return func(it Item) bool { return doomed[it.Entity] || doomed[it.Parent] }
	})
}

func (q *Queue) remove(match func([]Item) func(Item) bool) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(NSQueue)
	if err != nil {
		return 0, err
	}
	kept := q.dropLocked(items, match(items))
	n := len(items) - len(kept)
	if n == 0 {
		return 0, nil
	}
	return n, q.save(NSQueue, kept)
}

// dropLocked filters out matching items, remembering them for a running
// Replay. q.mu must be held.
func (q *Queue) dropLocked(items []Item, match func(Item) bool) []Item {
	kept := items[:0:0]
	for _, it := range items {
		if !match(it) {
			kept = append(kept, it)
			continue
		}
		if q.dropped != nil {
			q.dropped[it.ID] = true
		}
	}
	return kept
}

func (q *Queue) isDropped(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped[id]
}

// Items returns the pending items in enqueue order.
func (q *Queue) Items() ([]Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load(NSQueue)
}

// Len returns the number of pending items, or 0 if the queue is unreadable.
func (q *Queue) Len() int {
	items, err := q.Items()
	if err != nil {
		return 0
	}
	return len(items)
}

// DeadLetters returns the items that will never be retried.
func (q *Queue) DeadLetters() ([]Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load(NSDeadLetter)
}

// Syncing reports whether a Replay is running.
func (q *Queue) Syncing() bool {
	return q.syncing.Load()
}

// Replay applies every due item in enqueue order. Successful items are
// removed; failed items are retained with a backoff, or dead-lettered when
// the error is permanent or attempts are exhausted. While a record is
// unresolved (retained, deferred or blocked) later writes of it and of the
// records depending on it are held back untried. Items enqueued while Replay
// runs are kept after the retained ones; items superseded meanwhile are
// dropped.
func (q *Queue) Replay(ctx context.Context, apply ApplyFunc) (Report, error) {
	if !q.syncing.CompareAndSwap(false, true) {
		return Report{}, ErrSyncInProgress
	}
	defer q.syncing.Store(false)

	q.mu.Lock()
	snapshot, err := q.load(NSQueue)
	q.dropped = make(map[string]bool)
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		q.dropped = nil
		q.mu.Unlock()
	}()
	if err != nil {
		return Report{}, err
	}

	var (
		report     Report
		retained   []Item
		dead       []Item
		unresolved = make(map[string]bool)
	)
	hold := func(item Item) {
		retained = append(retained, item)
		if item.Entity != "" {
			unresolved[item.Entity] = true
		}
	}
	for i, item := range snapshot {
		if ctx.Err() != nil {
			// Keep whatever was not reached.
			retained = append(retained, snapshot[i:]...)
			report.Deferred += len(snapshot) - i
			break
		}
		if q.isDropped(item.ID) {
			report.Superseded++
			continue
		}
		if unresolved[item.Entity] || unresolved[item.Parent] {
			hold(item)
			report.Blocked++
			continue
		}
		now := q.now()
		if item.NextAttemptAt > now.UnixMilli() {
			hold(item)
			report.Deferred++
			continue
		}

		err := apply(ctx, item)
		if err == nil {
			report.Applied++
			continue
		}

		item.Attempts++
		item.LastError = err.Error()
		if q.permanent(err) || (q.policy.MaxAttempts > 0 && item.Attempts >= q.policy.MaxAttempts) {
			q.log.Warn("dead-lettering sync item", "item_id", item.ID, "type", item.Type, "attempts", item.Attempts, "error", err)
			dead = append(dead, item)
			report.DeadLettered++
			continue
		}
		item.NextAttemptAt = now.Add(q.delay(item.Attempts)).UnixMilli()
		q.log.Debug("retaining sync item", "item_id", item.ID, "type", item.Type, "attempts", item.Attempts, "error", err)
		hold(item)
		report.Retained++
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	current, err := q.load(NSQueue)
	if err != nil {
		return report, err
	}
	seen := make(map[string]bool, len(snapshot))
	for _, it := range snapshot {
		seen[it.ID] = true
	}
	kept := retained[:0:0]
	for _, it := range retained {
		if !q.dropped[it.ID] {
			kept = append(kept, it)
		}
	}
	for _, it := range current {
		if !seen[it.ID] {
			kept = append(kept, it)
		}
	}
	if len(dead) > 0 {
		letters, err := q.load(NSDeadLetter)
		if err != nil {
			return report, err
		}
		if err := q.save(NSDeadLetter, append(letters, dead...)); err != nil {
			return report, err
		}
	}
	if err := q.save(NSQueue, kept); err != nil {
		return report, err
	}
	return report, nil
}

// delay is the exponential backoff before attempt number attempts+1.
func (q *Queue) delay(attempts int) time.Duration {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     q.policy.InitialInterval,
		RandomizationFactor: 0,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         q.policy.MaxInterval,
	}
	b.Reset()
	var d time.Duration
	for i := 0; i < attempts; i++ {
		d = b.NextBackOff()
	}
	return d
}

func (q *Queue) load(ns string) ([]Item, error) {
	raw, err := q.kv.Get(ns)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", ns, err)
	}
	return items, nil
}

func (q *Queue) save(ns string, items []Item) error {
	if items == nil {
		items = []Item{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	if err := q.kv.Put(ns, raw); err != nil {
		return fmt.Errorf("%w: %s: %v", store.ErrLocalWrite, ns, err)
	}
	return nil
}
