package grpc

import (
	"sync"
	"sync/atomic"

	"github.com/mr1hm/event-weather-alerts/internal/models"
)

const subscriberBuffer = 64

// Filter narrows a subscription. Zero values match everything.
type Filter struct {
	EventID     string
	MinSeverity models.Severity
}

func (f Filter) Match(l *models.AlertLog) bool {
	if f.EventID != "" && l.EventID != f.EventID {
		return false
	}
	if f.MinSeverity != "" && !l.Severity.AtLeast(f.MinSeverity) {
		return false
	}
	return true
}

type subscriber struct {
	ch     chan *models.AlertLog
	filter Filter
}

type Broadcaster struct {
	subscribers map[uint64]subscriber
	nextID      atomic.Uint64
	dropped     atomic.Uint64
	mu          sync.RWMutex
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uint64]subscriber),
	}
}

func (b *Broadcaster) Subscribe(filter Filter) (uint64, <-chan *models.AlertLog) {
	id := b.nextID.Add(1)
	ch := make(chan *models.AlertLog, subscriberBuffer)

	b.mu.Lock()
	b.subscribers[id] = subscriber{ch: ch, filter: filter}
	b.mu.Unlock()

	return id, ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	if sub, ok := b.subscribers[id]; ok {
		close(sub.ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

// Broadcast never blocks; alerts for a full subscriber are dropped and counted.
func (b *Broadcaster) Broadcast(l *models.AlertLog) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if !sub.filter.Match(l) {
			continue
		}
		select {
		case sub.ch <- l:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes all subscriber channels, causing streams to exit gracefully
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, id)
	}
}
