package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/mr1hm/event-weather-alerts/internal/models"
	"github.com/mr1hm/event-weather-alerts/internal/repository"
)

type mockLogRepo struct {
	repository.AlertLogRepository
	logs []models.AlertLog // newest first
}

func (m *mockLogRepo) ListAlertLogs(ctx context.Context, opts repository.AlertLogFilter) ([]models.AlertLog, error) {
	var out []models.AlertLog
	for _, l := range m.logs {
		if opts.EventID != "" && l.EventID != opts.EventID {
			continue
		}
		out = append(out, l)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

func startTestServer(t *testing.T, repo repository.AlertLogRepository) (*Broadcaster, *grpc.ClientConn) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	b := NewBroadcaster()
	srv := NewServer(repo, b)
	go srv.Serve(lis)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}

	t.Cleanup(func() {
		conn.Close()
		b.Close()
		srv.Stop()
	})
	return b, conn
}

func waitForSubscribers(t *testing.T, b *Broadcaster, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for b.SubscriberCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d subscribers", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServer_StreamAlerts(t *testing.T) {
	b, conn := startTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := StreamAlerts(ctx, conn, &StreamRequest{EventID: "evt-1", MinSeverity: models.SeverityCaution})
	if err != nil {
		t.Fatalf("StreamAlerts failed: %v", err)
	}
	waitForSubscribers(t, b, 1)

	b.Broadcast(alert("skip-event", "evt-2", models.SeverityWarning))
	b.Broadcast(alert("skip-severity", "evt-1", models.SeverityInfo))
	b.Broadcast(&models.AlertLog{ID: "log-1", EventID: "evt-1", Severity: models.SeverityWarning, Message: "[WARNING] Extreme heat"})

	got, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if got.ID != "log-1" || got.Message != "[WARNING] Extreme heat" {
		t.Errorf("unexpected alert: %+v", got)
	}
}

func TestServer_StreamAlertsReplay(t *testing.T) {
	repo := &mockLogRepo{logs: []models.AlertLog{
		{ID: "new", EventID: "evt-1", Severity: models.SeverityWarning},
		{ID: "other", EventID: "evt-2", Severity: models.SeverityWarning},
		{ID: "old", EventID: "evt-1", Severity: models.SeverityCaution},
	}}
	_, conn := startTestServer(t, repo)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := StreamAlerts(ctx, conn, &StreamRequest{EventID: "evt-1", Replay: 10})
	if err != nil {
		t.Fatalf("StreamAlerts failed: %v", err)
	}

	for _, want := range []string{"old", "new"} {
		got, err := stream.Recv()
		if err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
		if got.ID != want {
			t.Errorf("expected replay of %s, got %s", want, got.ID)
		}
	}
}

func TestServer_StreamAlertsInvalidSeverity(t *testing.T) {
	_, conn := startTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := StreamAlerts(ctx, conn, &StreamRequest{MinSeverity: "severe"})
	if err != nil {
		t.Fatalf("StreamAlerts failed: %v", err)
	}
	_, err = stream.Recv()
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("expected InvalidArgument, got %v", err)
	}
}
