package event

import (
	"sync"
	"time"
)

// DeliveryRecord is the per-attempt bookkeeping for one handler's processing
// of one event. A fresh record is created per (event, subscriber) pair at
// dispatch time; it is discarded on success or moved to the dead-letter
// queue once retries are exhausted.
type DeliveryRecord struct {
	Event       *Event
	Handler     Handler
	Attempts    int
	LastAttempt time.Time // zero until the first attempt
	Err         error     // last failure detail
}

// ShouldRetry reports whether another delivery attempt is due under the
// given policy: attempts remain and the retry delay has elapsed since the
// last attempt (or none has been made yet).
func (r *DeliveryRecord) ShouldRetry(maxAttempts int, delay time.Duration) bool {
	if r.Attempts >= maxAttempts {
		return false
	}
	return r.LastAttempt.IsZero() || time.Since(r.LastAttempt) >= delay
}

// deadLetterQueue holds delivery records whose retries were exhausted.
type deadLetterQueue struct {
	mu      sync.Mutex
	records []*DeliveryRecord
}

func (q *deadLetterQueue) add(rec *DeliveryRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.records = append(q.records, rec)
}

// drain removes and returns all records, oldest first.
func (q *deadLetterQueue) drain() []*DeliveryRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	records := q.records
	q.records = nil
	return records
}

func (q *deadLetterQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records)
}
