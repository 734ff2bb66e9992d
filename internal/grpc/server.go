package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"slices"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mr1hm/event-weather-alerts/internal/models"
	"github.com/mr1hm/event-weather-alerts/internal/repository"
)

const (
	ServiceName        = "weatheralerts.v1.AlertService"
	StreamAlertsMethod = "/" + ServiceName + "/StreamAlerts"

	maxReplay = 100
)

type StreamRequest struct {
	EventID     string          `json:"eventId,omitempty"`
	MinSeverity models.Severity `json:"minSeverity,omitempty"`
	// Replay sends up to this many stored alerts before live ones.
	Replay int `json:"replay,omitempty"`
}

type AlertServiceServer interface {
	StreamAlerts(req *StreamRequest, stream grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AlertServiceServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamAlerts",
			Handler:       streamAlertsHandler,
			ServerStreams: true,
		},
	},
}

func streamAlertsHandler(srv any, stream grpc.ServerStream) error {
	req := new(StreamRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(AlertServiceServer).StreamAlerts(req, stream)
}

type Server struct {
	logs        repository.AlertLogRepository
	broadcaster *Broadcaster
	grpcServer  *grpc.Server
}

func NewServer(logs repository.AlertLogRepository, broadcaster *Broadcaster) *Server {
	s := &Server{
		logs:        logs,
		broadcaster: broadcaster,
		grpcServer:  grpc.NewServer(),
	}
	s.grpcServer.RegisterService(&serviceDesc, s)
	return s
}

func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

func (s *Server) Serve(lis net.Listener) error {
	slog.Info("gRPC server listening", "addr", lis.Addr().String())
	return s.grpcServer.Serve(lis)
}

func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}

func (s *Server) StreamAlerts(req *StreamRequest, stream grpc.ServerStream) error {
	if req.MinSeverity != "" && !req.MinSeverity.Valid() {
		return status.Errorf(codes.InvalidArgument, "invalid minSeverity %q", req.MinSeverity)
	}
	filter := Filter{EventID: req.EventID, MinSeverity: req.MinSeverity}

	// Subscribe before replaying so nothing stored in between is missed.
	id, ch := s.broadcaster.Subscribe(filter)
	defer s.broadcaster.Unsubscribe(id)

	slog.Info("client subscribed to alert stream", "subscriber_id", id, "event_id", req.EventID)

	if req.Replay > 0 {
		if err := s.replay(stream.Context(), stream, filter, min(req.Replay, maxReplay)); err != nil {
			return err
		}
	}

	for {
		select {
		case <-stream.Context().Done():
			slog.Info("client disconnected from alert stream", "subscriber_id", id)
			return nil
		case l, ok := <-ch:
			if !ok {
				return nil
			}
			if err := stream.SendMsg(l); err != nil {
				slog.Error("failed to send alert to stream", "error", err, "subscriber_id", id)
				return err
			}
		}
	}
}

func (s *Server) replay(ctx context.Context, stream grpc.ServerStream, filter Filter, n int) error {
	if s.logs == nil {
		return nil
	}
	logs, err := s.logs.ListAlertLogs(ctx, repository.AlertLogFilter{EventID: filter.EventID, Limit: n})
	if err != nil {
		return status.Errorf(codes.Internal, "failed to load alerts: %v", err)
	}
	slices.Reverse(logs)
	for i := range logs {
		if !filter.Match(&logs[i]) {
			continue
		}
		if err := stream.SendMsg(&logs[i]); err != nil {
			return err
		}
	}
	return nil
}

type AlertStream struct {
	stream grpc.ClientStream
}

// StreamAlerts opens a server stream on cc using the JSON codec.
func StreamAlerts(ctx context.Context, cc grpc.ClientConnInterface, req *StreamRequest) (*AlertStream, error) {
	stream, err := cc.NewStream(ctx, &serviceDesc.Streams[0], StreamAlertsMethod, grpc.CallContentSubtype(codecName))
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("close send: %w", err)
	}
	return &AlertStream{stream: stream}, nil
}

func (s *AlertStream) Recv() (*models.AlertLog, error) {
	l := new(models.AlertLog)
	if err := s.stream.RecvMsg(l); err != nil {
		return nil, err
	}
	return l, nil
}
