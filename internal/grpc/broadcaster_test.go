package grpc

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/mr1hm/event-weather-alerts/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func alert(id, eventID string, sev models.Severity) *models.AlertLog {
	return &models.AlertLog{ID: id, EventID: eventID, Severity: sev}
}

func TestBroadcaster_SubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster()

	id, ch := b.Subscribe(Filter{})
	if b.SubscriberCount() != 1 {
		t.Errorf("expected 1 subscriber, got %d", b.SubscriberCount())
	}

	b.Unsubscribe(id)
	b.Unsubscribe(id)
	if b.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", b.SubscriberCount())
	}

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to be closed")
		}
	default:
		t.Error("channel should be closed and readable")
	}
}

func TestBroadcaster_Broadcast(t *testing.T) {
	b := NewBroadcaster()

	id, ch := b.Subscribe(Filter{})
	defer b.Unsubscribe(id)

	b.Broadcast(alert("log-1", "evt-1", models.SeverityWarning))

	select {
	case received := <-ch:
		if received.ID != "log-1" {
			t.Errorf("expected ID log-1, got %s", received.ID)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for broadcast")
	}
}

func TestBroadcaster_Filters(t *testing.T) {
	b := NewBroadcaster()

	evtID, evtCh := b.Subscribe(Filter{EventID: "evt-1"})
	defer b.Unsubscribe(evtID)
	sevID, sevCh := b.Subscribe(Filter{MinSeverity: models.SeverityWarning})
	defer b.Unsubscribe(sevID)

	b.Broadcast(alert("a", "evt-1", models.SeverityCaution))
	b.Broadcast(alert("b", "evt-2", models.SeverityWarning))
	b.Broadcast(alert("c", "evt-2", models.SeverityInfo))

	drain := func(ch <-chan *models.AlertLog) []string {
		var ids []string
		for {
			select {
			case l := <-ch:
				ids = append(ids, l.ID)
			default:
				return ids
			}
		}
	}

	if got := drain(evtCh); len(got) != 1 || got[0] != "a" {
		t.Errorf("event filter: expected [a], got %v", got)
	}
	if got := drain(sevCh); len(got) != 1 || got[0] != "b" {
		t.Errorf("severity filter: expected [b], got %v", got)
	}
}

func TestBroadcaster_ConcurrentSubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, _ := b.Subscribe(Filter{})
			time.Sleep(time.Millisecond)
			b.Unsubscribe(id)
		}()
	}

	wg.Wait()

	if b.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers after cleanup, got %d", b.SubscriberCount())
	}
}

func TestBroadcaster_ConcurrentSubscribeBroadcast(t *testing.T) {
	b := NewBroadcaster()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, ch := b.Subscribe(Filter{})
			go func() {
				for range ch {
				}
			}()
			time.Sleep(5 * time.Millisecond)
			b.Unsubscribe(id)
		}()
	}

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Broadcast(alert("broadcast_test", "evt-1", models.SeverityCaution))
		}()
	}

	wg.Wait()

	if b.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", b.SubscriberCount())
	}
}

func TestBroadcaster_Close(t *testing.T) {
	b := NewBroadcaster()

	var channels []<-chan *models.AlertLog
	for i := 0; i < 5; i++ {
		_, ch := b.Subscribe(Filter{})
		channels = append(channels, ch)
	}

	b.Close()

	if b.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers after close, got %d", b.SubscriberCount())
	}
	for i, ch := range channels {
		select {
		case _, ok := <-ch:
			if ok {
				t.Errorf("channel %d should be closed", i)
			}
		default:
			t.Errorf("channel %d should be closed and readable", i)
		}
	}
}

func TestBroadcaster_SlowSubscriber(t *testing.T) {
	b := NewBroadcaster()

	id, ch := b.Subscribe(Filter{})
	defer b.Unsubscribe(id)

	for i := 0; i < subscriberBuffer+3; i++ {
		b.Broadcast(alert("flood_test", "evt-1", models.SeverityInfo))
	}

	count := 0
	for len(ch) > 0 {
		<-ch
		count++
	}

	if count != subscriberBuffer {
		t.Errorf("expected %d buffered alerts, got %d", subscriberBuffer, count)
	}
	if b.Dropped() != 3 {
		t.Errorf("expected 3 dropped alerts, got %d", b.Dropped())
	}
}
