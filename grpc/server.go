package grpc

import (
	"context"
	goerrors "errors"
	"fmt"
	"huddle/auth"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Server exposes the per-scope health service. Probes query the empty service
// name; clients query a scope key to learn whether its live feed is up.
type Server struct {
	log    *slog.Logger
	server *grpc.Server
	health *health.Server
}

func NewServer(log *slog.Logger, secret []byte) *Server {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(auth.UnaryInterceptor(secret)),
		grpc.ChainStreamInterceptor(auth.StreamInterceptor(secret)),
	)
	h := health.NewServer()
	healthpb.RegisterHealthServer(s, h)
	reflection.Register(s)
	return &Server{log: log, server: s, health: h}
}

func (s *Server) Health() *health.Server { return s.health }

// Serve blocks until ctx is done or the listener fails.
// On cancellation every scope is reported NOT_SERVING before the graceful stop.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	errChan := make(chan error, 1)
	go func() {
		s.log.Info("Starting gRPC server", "address", listener.Addr().String())
		if err := s.server.Serve(listener); err != nil && !goerrors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.server.GracefulStop()
		return nil
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return err
	}
}
