package session

import "time"

// QueueEntry is a session id waiting for capacity.
type QueueEntry struct {
	SessionID  string    `json:"chatId"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Queue is a strict FIFO of session ids with no duplicates. It is not safe
// for concurrent use; the Manager guards it with its own lock.
type Queue struct {
	entries []QueueEntry
	index   map[string]struct{}
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{index: make(map[string]struct{})}
}

// Enqueue appends id at the tail and returns its 1-based position. An id
// that is already queued keeps its place.
func (q *Queue) Enqueue(id string, at time.Time) int {
	if pos := q.Position(id); pos > 0 {
		return pos
	}
	q.entries = append(q.entries, QueueEntry{SessionID: id, EnqueuedAt: at})
	q.index[id] = struct{}{}
	return len(q.entries)
}

// Dequeue removes and returns the head.
func (q *Queue) Dequeue() (QueueEntry, bool) {
	if len(q.entries) == 0 {
		return QueueEntry{}, false
	}
	e := q.entries[0]
	q.entries[0] = QueueEntry{}
	q.entries = q.entries[1:]
	delete(q.index, e.SessionID)
	return e, true
}

// RequeueHead puts e back at the head, keeping its original enqueue time.
func (q *Queue) RequeueHead(e QueueEntry) {
	if q.Contains(e.SessionID) {
		return
	}
	q.entries = append([]QueueEntry{e}, q.entries...)
	q.index[e.SessionID] = struct{}{}
}

// Position returns the 1-based position of id, or 0 if it is not queued.
func (q *Queue) Position(id string) int {
	if !q.Contains(id) {
		return 0
	}
	for i, e := range q.entries {
		if e.SessionID == id {
			return i + 1
		}
	}
	return 0
}

func (q *Queue) Contains(id string) bool {
	_, ok := q.index[id]
	return ok
}

func (q *Queue) Len() int {
	return len(q.entries)
}

// Snapshot returns a copy of the entries in queue order.
func (q *Queue) Snapshot() []QueueEntry {
	out := make([]QueueEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Clear drops every entry.
func (q *Queue) Clear() {
	q.entries = nil
	q.index = make(map[string]struct{})
}
