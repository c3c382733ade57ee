package event

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SomeRandomTV/AXIOM/pkg/axiom/config"
)

// BusConfig configures bus behavior.
type BusConfig struct {
	// QueueSize bounds the publish queue. Publishers block when it is full.
	// Default: 1000
	QueueSize int

	// Workers is the delivery worker pool size.
	// Default: 4
	Workers int

	// MaxRetryAttempts is the total delivery attempts per (event, handler).
	// Default: 3
	MaxRetryAttempts int

	// RetryDelay is the fixed pause between delivery attempts.
	// Default: 1 second
	RetryDelay time.Duration

	// SweepInterval is how often dead-lettered records are re-examined.
	// Default: 30 seconds. Negative disables the sweep.
	SweepInterval time.Duration

	// Logger for delivery failures (nil disables logging).
	Logger *slog.Logger

	// OnPublish is called after each successful enqueue (for metrics).
	OnPublish func(evt *Event)

	// OnDeliverySuccess is called after each successful delivery (for metrics).
	OnDeliverySuccess func(evt *Event, duration time.Duration)

	// OnDeliveryError is called after each failed delivery attempt.
	OnDeliveryError func(evt *Event, attempts int, err error)

	// OnDeadLetter is called when a record moves to the dead-letter queue.
	OnDeadLetter func(rec *DeliveryRecord)
}

// DefaultBusConfig provides the reference defaults.
var DefaultBusConfig = BusConfig{
	QueueSize:        1000,
	Workers:          4,
	MaxRetryAttempts: 3,
	RetryDelay:       1 * time.Second,
	SweepInterval:    30 * time.Second,
}

// BusConfigFrom maps a loaded configuration onto a BusConfig. Recognized
// keys: max_queue_size, worker_threads, max_retry_attempts, retry_delay,
// sweep_interval.
func BusConfigFrom(cfg config.Config) BusConfig {
	return BusConfig{
		QueueSize:        cfg.Int("max_queue_size", DefaultBusConfig.QueueSize),
		Workers:          cfg.Int("worker_threads", DefaultBusConfig.Workers),
		MaxRetryAttempts: cfg.Int("max_retry_attempts", DefaultBusConfig.MaxRetryAttempts),
		RetryDelay:       cfg.Duration("retry_delay", DefaultBusConfig.RetryDelay),
		SweepInterval:    cfg.Duration("sweep_interval", DefaultBusConfig.SweepInterval),
	}
}

// Bus is the in-process event bus. One dispatch loop dequeues published
// events and fans each out to the current subscribers of its type as
// independent delivery tasks on the worker pool.
type Bus struct {
	cfg BusConfig

	mu          sync.RWMutex
	publishers  map[string]map[string]struct{} // source -> allowed event types
	subscribers map[string]map[Handler]struct{}

	queue chan *Event
	tasks chan *DeliveryRecord
	dlq   deadLetterQueue

	// Retry policy is adjustable at runtime so the dead-letter sweep can
	// observe a widened window.
	maxAttempts atomic.Int64
	retryDelay  atomic.Int64 // nanoseconds

	stopCh chan struct{}
	closed atomic.Bool
	wg     sync.WaitGroup
}

// NewBus creates a bus and starts its dispatch loop, worker pool, and
// dead-letter sweep. Call Close to stop them.
func NewBus(cfg BusConfig) *Bus {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultBusConfig.QueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultBusConfig.Workers
	}
	if cfg.MaxRetryAttempts <= 0 {
		cfg.MaxRetryAttempts = DefaultBusConfig.MaxRetryAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultBusConfig.RetryDelay
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = DefaultBusConfig.SweepInterval
	}

	b := &Bus{
		cfg:         cfg,
		publishers:  make(map[string]map[string]struct{}),
		subscribers: make(map[string]map[Handler]struct{}),
		queue:       make(chan *Event, cfg.QueueSize),
		tasks:       make(chan *DeliveryRecord, cfg.QueueSize),
		stopCh:      make(chan struct{}),
	}
	b.maxAttempts.Store(int64(cfg.MaxRetryAttempts))
	b.retryDelay.Store(int64(cfg.RetryDelay))

	b.wg.Add(1)
	go b.dispatch()

	for i := 0; i < cfg.Workers; i++ {
		b.wg.Add(1)
		go b.worker()
	}

	if cfg.SweepInterval > 0 {
		b.wg.Add(1)
		go b.sweep()
	}

	return b
}

// RegisterPublisher allows name to publish the given event types. Types are
// unioned into any existing registration, so re-registering is idempotent.
func (b *Bus) RegisterPublisher(name string, eventTypes []string) error {
	for _, t := range eventTypes {
		if !ValidType(t) {
			return &InvalidEventTypeError{EventType: t}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	set := b.publishers[name]
	if set == nil {
		set = make(map[string]struct{}, len(eventTypes))
		b.publishers[name] = set
	}
	for _, t := range eventTypes {
		set[t] = struct{}{}
	}
	return nil
}

// UnregisterPublisher removes a publisher registration entirely.
func (b *Bus) UnregisterPublisher(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.publishers, name)
}

// Subscribe registers a handler for an event type. Subscribing the same
// handler twice is a no-op (set semantics, no duplicate delivery).
func (b *Bus) Subscribe(eventType string, h Handler) error {
	if !ValidType(eventType) {
		return &InvalidEventTypeError{EventType: eventType}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	set := b.subscribers[eventType]
	if set == nil {
		set = make(map[Handler]struct{})
		b.subscribers[eventType] = set
	}
	set[h] = struct{}{}
	return nil
}

// Unsubscribe removes a handler from an event type. Removing an absent
// handler is a no-op.
func (b *Bus) Unsubscribe(eventType string, h Handler) error {
	if !ValidType(eventType) {
		return &InvalidEventTypeError{EventType: eventType}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers[eventType], h)
	return nil
}

// Publish validates evt and enqueues it for delivery. Validation failures
// are synchronous; after a successful enqueue the call returns without
// waiting for delivery. Enqueueing blocks when the queue is full until
// space frees, ctx is cancelled, or the bus closes. This is the only
// blocking point for a publisher.
func (b *Bus) Publish(ctx context.Context, evt *Event) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	if !ValidType(evt.Type) {
		return &InvalidEventTypeError{EventType: evt.Type}
	}

	b.mu.RLock()
	_, registered := b.publishers[evt.Source][evt.Type]
	b.mu.RUnlock()
	if !registered {
		return &UnregisteredPublisherError{Source: evt.Source, EventType: evt.Type}
	}

	select {
	case b.queue <- evt:
		if b.cfg.OnPublish != nil {
			b.cfg.OnPublish(evt)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.stopCh:
		return ErrBusClosed
	}
}

// SubscriberCount returns the number of handlers subscribed to an event type.
func (b *Bus) SubscriberCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[eventType])
}

// PublisherEventTypes returns the event types a publisher may emit, sorted.
func (b *Bus) PublisherEventTypes(name string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	set, ok := b.publishers[name]
	if !ok {
		return nil
	}
	types := make([]string, 0, len(set))
	for t := range set {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// DeadLetterCount returns the number of dead-lettered delivery records.
func (b *Bus) DeadLetterCount() int {
	return b.dlq.size()
}

// DrainDeadLetters removes and returns all dead-lettered records for
// inspection.
func (b *Bus) DrainDeadLetters() []*DeliveryRecord {
	return b.dlq.drain()
}

// SetRetryPolicy updates the bus-wide retry policy at runtime. Widening it
// makes previously exhausted dead-letter records eligible again on the next
// sweep.
func (b *Bus) SetRetryPolicy(maxAttempts int, delay time.Duration) {
	b.maxAttempts.Store(int64(maxAttempts))
	b.retryDelay.Store(int64(delay))
}

// MaxRetryAttempts returns the current per-delivery attempt limit.
func (b *Bus) MaxRetryAttempts() int {
	return int(b.maxAttempts.Load())
}

// RetryDelay returns the current pause between delivery attempts.
func (b *Bus) RetryDelay() time.Duration {
	return time.Duration(b.retryDelay.Load())
}

// Clear discards all queued and dead-lettered events. Intended for test
// isolation; in-flight deliveries are unaffected.
func (b *Bus) Clear() {
	for {
		select {
		case <-b.queue:
		default:
			b.dlq.drain()
			return
		}
	}
}

// Close stops intake and the dispatch loop, then waits for in-flight
// deliveries to drain. Deliveries sleeping between retries are moved to the
// dead-letter queue rather than waited on. Idempotent.
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(b.stopCh)
	b.wg.Wait()
	return nil
}

// dispatch is the single dequeue loop. It fans each event out to the
// currently subscribed handlers without waiting for their completion.
func (b *Bus) dispatch() {
	defer b.wg.Done()
	for {
		select {
		case evt := <-b.queue:
			b.fanOut(evt)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Bus) fanOut(evt *Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subscribers[evt.Type]))
	for h := range b.subscribers[evt.Type] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		rec := &DeliveryRecord{Event: evt, Handler: h}
		select {
		case b.tasks <- rec:
		case <-b.stopCh:
			return
		}
	}
}

func (b *Bus) worker() {
	defer b.wg.Done()
	for {
		select {
		case rec := <-b.tasks:
			b.deliver(rec)
		case <-b.stopCh:
			return
		}
	}
}

// deliver attempts a record until it succeeds or its retries are exhausted,
// at which point it is dead-lettered. Handler errors never propagate.
func (b *Bus) deliver(rec *DeliveryRecord) {
	for {
		rec.Attempts++
		rec.LastAttempt = time.Now()
		start := time.Now()

		err := b.attempt(rec)
		if err == nil {
			if b.cfg.OnDeliverySuccess != nil {
				b.cfg.OnDeliverySuccess(rec.Event, time.Since(start))
			}
			return
		}

		rec.Err = err
		if b.cfg.OnDeliveryError != nil {
			b.cfg.OnDeliveryError(rec.Event, rec.Attempts, err)
		}
		if b.cfg.Logger != nil {
			b.cfg.Logger.Warn("event delivery failed",
				slog.String("event_type", rec.Event.Type),
				slog.String("correlation_id", rec.Event.CorrelationID),
				slog.Int("attempt", rec.Attempts),
				slog.String("error", err.Error()),
			)
		}

		if rec.Attempts >= b.MaxRetryAttempts() {
			b.deadLetter(rec)
			return
		}

		select {
		case <-time.After(b.RetryDelay()):
		case <-b.stopCh:
			b.deadLetter(rec)
			return
		}
	}
}

// attempt invokes the handler once, converting panics into errors.
func (b *Bus) attempt(rec *DeliveryRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return rec.Handler.Handle(context.Background(), rec.Event)
}

func (b *Bus) deadLetter(rec *DeliveryRecord) {
	b.dlq.add(rec)
	if b.cfg.OnDeadLetter != nil {
		b.cfg.OnDeadLetter(rec)
	}
	if b.cfg.Logger != nil {
		b.cfg.Logger.Error("event moved to dead-letter queue",
			slog.String("event_type", rec.Event.Type),
			slog.String("correlation_id", rec.Event.CorrelationID),
			slog.Int("attempts", rec.Attempts),
			slog.String("error", rec.Err.Error()),
		)
	}
}

// sweep periodically re-examines dead-lettered records. Best effort only:
// it never guarantees eventual delivery.
func (b *Bus) sweep() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.reprocessDeadLetters()
		case <-b.stopCh:
			return
		}
	}
}

// reprocessDeadLetters pops every dead-lettered record and re-submits those
// whose retry window has reopened (e.g. after SetRetryPolicy widened it);
// the rest are pushed back.
func (b *Bus) reprocessDeadLetters() {
	for _, rec := range b.dlq.drain() {
		if rec.ShouldRetry(b.MaxRetryAttempts(), b.RetryDelay()) {
			select {
			case b.tasks <- rec:
				continue
			default:
				// Worker pool saturated; keep it dead-lettered.
			}
		}
		b.dlq.add(rec)
	}
}
