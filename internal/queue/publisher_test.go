package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/segmentio/kafka-go"

	"github.com/mr1hm/event-weather-alerts/internal/models"
)

func testLog() *models.AlertLog {
	return &models.AlertLog{
		ID:        "log-1",
		EventID:   "evt-1",
		AlertType: "HEATWAVE",
		Severity:  models.SeverityWarning,
		Message:   "[WARNING] Extreme heat",
		Notifications: models.Deliveries{
			Email: models.ChannelDelivery{Sent: 2, Failed: 1},
			SMS:   models.ChannelDelivery{Sent: 1},
		},
		Actions:   []models.AutomationRecord{{Action: models.ActionMarkCancelled, RequiresApproval: true}},
		Trigger:   models.TriggerAuto,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}

	if err := p.Publish(context.Background(), testLog()); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}

	msg := w.msgs[0]
	if string(msg.Key) != "evt-1" {
		t.Errorf("expected key evt-1, got %s", msg.Key)
	}

	var got AlertEvent
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if got.AlertID != "log-1" || got.Sent != 3 || got.Failed != 1 || got.PendingApprovals != 1 {
		t.Errorf("unexpected payload: %+v", got)
	}

	if err := p.Close(); err != nil || !w.closed {
		t.Errorf("expected writer to be closed, err=%v", err)
	}
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	boom := errors.New("leader not available")
	p := &KafkaPublisher{writer: &fakeWriter{err: boom}}

	if err := p.Publish(context.Background(), testLog()); !errors.Is(err, boom) {
		t.Errorf("expected wrapped write error, got %v", err)
	}
}

type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(err error, complete bool) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	if complete {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type fakeMQTT struct {
	token  *fakeToken
	topics []string
	qos    byte
}

func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.topics = append(f.topics, topic)
	f.qos = qos
	return f.token
}

func (f *fakeMQTT) Disconnect(uint) {}

func TestMQTTPublisher_Publish(t *testing.T) {
	client := &fakeMQTT{token: newFakeToken(nil, true)}
	p := &MQTTPublisher{client: client, prefix: "weather/alerts"}

	if err := p.Publish(context.Background(), testLog()); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(client.topics) != 1 || client.topics[0] != "weather/alerts/evt-1" {
		t.Errorf("unexpected topics %v", client.topics)
	}
	if client.qos != 1 {
		t.Errorf("expected qos 1, got %d", client.qos)
	}
}

func TestMQTTPublisher_Errors(t *testing.T) {
	boom := errors.New("not connected")
	p := &MQTTPublisher{client: &fakeMQTT{token: newFakeToken(boom, true)}, prefix: "p"}
	if err := p.Publish(context.Background(), testLog()); !errors.Is(err, boom) {
		t.Errorf("expected token error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p = &MQTTPublisher{client: &fakeMQTT{token: newFakeToken(nil, false)}, prefix: "p"}
	if err := p.Publish(ctx, testLog()); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context cancellation, got %v", err)
	}
}

type recordingPublisher struct {
	calls int
	err   error
}

func (r *recordingPublisher) Publish(ctx context.Context, l *models.AlertLog) error {
	r.calls++
	return r.err
}

func (r *recordingPublisher) Close() error { return r.err }

func TestMulti(t *testing.T) {
	boom := errors.New("boom")
	ok := &recordingPublisher{}
	bad := &recordingPublisher{err: boom}
	m := Multi{bad, ok}

	err := m.Publish(context.Background(), testLog())
	if !errors.Is(err, boom) {
		t.Errorf("expected joined error, got %v", err)
	}
	if ok.calls != 1 || bad.calls != 1 {
		t.Errorf("expected every publisher to be called, got %d/%d", bad.calls, ok.calls)
	}
	if err := (Multi{}).Publish(context.Background(), testLog()); err != nil {
		t.Errorf("expected nil for empty fan-out, got %v", err)
	}
}
