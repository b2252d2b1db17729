// Copyright 2025 James Ross
package eventbus

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Kind enumerates lifecycle and system events the bus carries.
type Kind string

const (
	KindJobCreated         Kind = "job_created"
	KindJobStarted         Kind = "job_started"
	KindJobProgress        Kind = "job_progress"
	KindJobCompleted       Kind = "job_completed"
	KindJobFailed          Kind = "job_failed"
	KindJobRetry           Kind = "job_retry"
	KindSystemStatus       Kind = "system_status"
	KindHealthCheck        Kind = "health_check"
	KindNotification       Kind = "notification"
	KindItemCreated        Kind = "item_created"
	KindItemUpdated        Kind = "item_updated"
	KindItemDeleted        Kind = "item_deleted"
	KindCollectionUpdated  Kind = "collection_updated"
	KindAnalyticsEvent     Kind = "analytics_event"
)

// Event is published in publish order per subscriber; cross-subscriber
// interleavings are not ordered relative to one another.
type Event struct {
	Kind       Kind
	JobID      string
	TargetUser string // empty means "broadcast to all authenticated connections"
	Data       interface{}
	Timestamp  time.Time
}

// Subscriber receives events over a bounded, drop-oldest channel. Buffer must
// be at least 256 per spec.md §4.1.
type Subscriber struct {
	ch     chan Event
	bus    *Bus
	id     int
	closed bool
	mu     sync.Mutex
}

func (s *Subscriber) Events() <-chan Event { return s.ch }

func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.bus.remove(s.id)
	close(s.ch)
}

// Bus is an in-process publish/subscribe fan-out. Publish is non-blocking and
// best-effort: a slow subscriber loses its oldest buffered event rather than
// stalling the publisher. A panicking subscriber consumer never reaches the
// publisher since delivery is a channel send, not a function call.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]*Subscriber
	nextID      int
	bufferSize  int
	log         *zap.Logger
	dropped     uint64
}

const DefaultBufferSize = 256

func New(log *zap.Logger) *Bus {
	return &Bus{subscribers: make(map[int]*Subscriber), bufferSize: DefaultBufferSize, log: log}
}

// Subscribe registers a new subscriber and returns its receive-only channel handle.
func (b *Bus) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &Subscriber{ch: make(chan Event, b.bufferSize), bus: b, id: b.nextID}
	b.subscribers[sub.id] = sub
	return sub
}

func (b *Bus) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, id)
}

// Publish delivers the event to every current subscriber, dropping the
// subscriber's oldest buffered event on overflow rather than blocking.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		select {
		case sub.ch <- ev:
		default:
			// Buffer full: drop the oldest queued event, then enqueue the new one.
			select {
			case <-sub.ch:
				b.dropped++
				if b.log != nil {
					b.log.Debug("eventbus: dropped oldest event for slow subscriber")
				}
			default:
			}
			select {
			case sub.ch <- ev:
			default:
			}
		}
	}
}

// SubscriberCount reports the current number of attached subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
