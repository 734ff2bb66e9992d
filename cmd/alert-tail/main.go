// Command alert-tail prints weather alerts from the gRPC stream as JSON
// lines until interrupted.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	internalgrpc "github.com/mr1hm/event-weather-alerts/internal/grpc"
	"github.com/mr1hm/event-weather-alerts/internal/logging"
	"github.com/mr1hm/event-weather-alerts/internal/models"
)

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", envOr("ALERT_TAIL_ADDR", "localhost:50051"), "gRPC server address")
	eventID := flag.String("event", "", "only stream alerts for this event id")
	minSeverity := flag.String("min-severity", "", "info, caution or warning")
	replay := flag.Int("replay", 0, "number of stored alerts to print first")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	logging.Setup(*level, "alert-tail")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		logging.Fatalf("failed to create client: %v", err)
	}
	defer conn.Close()

	stream, err := internalgrpc.StreamAlerts(ctx, conn, &internalgrpc.StreamRequest{
		EventID:     *eventID,
		MinSeverity: models.Severity(*minSeverity),
		Replay:      *replay,
	})
	if err != nil {
		logging.Fatalf("failed to open alert stream: %v", err)
	}
	slog.Info("streaming alerts", "addr", *addr, "event_id", *eventID, "min_severity", *minSeverity)

	enc := json.NewEncoder(os.Stdout)
	for {
		alert, err := stream.Recv()
		if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
			slog.Info("stream closed")
			return
		}
		if err != nil {
			logging.Fatalf("stream error: %v", err)
		}
		if err := enc.Encode(alert); err != nil {
			slog.Error("failed to write alert", "alert_id", alert.ID, "error", err)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
