package store

import (
	"sort"
	"sync"

	"github.com/mattermost/mattermost-plugin-geofence/server/geo"
)

const (
	pendingReportsKey  = "geo_reports_pending"
	inflightReportsKey = "geo_reports_inflight"
)

// EventQueue is the durable set of reports not yet acknowledged by the backend.
//
// Reports have set semantics: enqueueing a report equal to one already
// queued is a no-op. Delivery is a two-phase commit over the persisted set:
// Begin moves every pending report to an in-flight set, and the caller
// either Commits once the backend acknowledged them or Rolls them back into
// the pending set. Recover rolls back an in-flight set left by a crash.
type EventQueue struct {
	kv KVStore
	mu sync.Mutex
}

// NewEventQueue creates a durable report queue on top of kv.
func NewEventQueue(kv KVStore) *EventQueue {
	return &EventQueue{kv: kv}
}

// Enqueue adds reports to the pending set.
func (q *EventQueue) Enqueue(reports []geo.Report) error {
	if len(reports) == 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	pending, err := q.load(pendingReportsKey)
	if err != nil {
		return err
	}
	return q.save(pendingReportsKey, union(pending, reports))
}

// DrainAll returns every pending report and clears the pending set.
// A caller that fails to deliver the drained reports must Enqueue them again.
func (q *EventQueue) DrainAll() ([]geo.Report, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending, err := q.load(pendingReportsKey)
	if err != nil {
		return nil, err
	}
	if err := deleteKey(q.kv, pendingReportsKey); err != nil {
		return nil, err
	}
	return pending, nil
}

// Begin moves the pending reports into the in-flight set and returns the
// whole in-flight set, including reports from an earlier uncommitted Begin.
func (q *EventQueue) Begin() ([]geo.Report, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending, err := q.load(pendingReportsKey)
	if err != nil {
		return nil, err
	}
	inflight, err := q.load(inflightReportsKey)
	if err != nil {
		return nil, err
	}

	batch := union(inflight, pending)
	if len(batch) == 0 {
		return nil, nil
	}

	if err := q.save(inflightReportsKey, batch); err != nil {
		return nil, err
	}
	if err := deleteKey(q.kv, pendingReportsKey); err != nil {
		return nil, err
	}
	return batch, nil
}

// Commit drops the in-flight set after the backend acknowledged it.
func (q *EventQueue) Commit() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	return deleteKey(q.kv, inflightReportsKey)
}

// Rollback returns the in-flight set to the pending set.
func (q *EventQueue) Rollback() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	inflight, err := q.load(inflightReportsKey)
	if err != nil {
		return err
	}
	if len(inflight) == 0 {
		return nil
	}

	pending, err := q.load(pendingReportsKey)
	if err != nil {
		return err
	}
	if err := q.save(pendingReportsKey, union(pending, inflight)); err != nil {
		return err
	}
	return deleteKey(q.kv, inflightReportsKey)
}

// Recover restores reports whose delivery was interrupted by a restart.
func (q *EventQueue) Recover() error {
	return q.Rollback()
}

// Len returns the number of reports awaiting acknowledgement.
func (q *EventQueue) Len() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending, err := q.load(pendingReportsKey)
	if err != nil {
		return 0, err
	}
	inflight, err := q.load(inflightReportsKey)
	if err != nil {
		return 0, err
	}
	return len(union(pending, inflight)), nil
}

func (q *EventQueue) load(key string) ([]geo.Report, error) {
	var reports []geo.Report
	if _, err := getJSON(q.kv, key, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

func (q *EventQueue) save(key string, reports []geo.Report) error {
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Key() < reports[j].Key()
	})
	return setJSON(q.kv, key, reports)
}

// union returns the distinct reports of a followed by those of b.
func union(a, b []geo.Report) []geo.Report {
	seen := make(map[string]bool, len(a)+len(b))
	var out []geo.Report
	for _, list := range [][]geo.Report{a, b} {
		for _, r := range list {
			key := r.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, r)
		}
	}
	return out
}
