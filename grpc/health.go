package grpc

import (
	"context"
	"huddle/contract"
	"huddle/domain"
	"huddle/domain/event"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var _ contract.EventSink = (*HealthSink)(nil)

// HealthSink mirrors every scope's channel state into the gRPC health service,
// using the scope key as the service name.
type HealthSink struct {
	health *health.Server
}

func NewHealthSink(health *health.Server) *HealthSink {
	return &HealthSink{health: health}
}

func (s *HealthSink) Consume(_ context.Context, e event.DomainEvent) error {
	changed, ok := e.(event.ScopeStateChanged)
	if !ok {
		return nil
	}
	s.health.SetServingStatus(changed.Scope.Key(), servingStatus(changed.To))
	return nil
}

// servingStatus reports a scope as serving only while its feed is live.
// A closed scope has no observer left and is reported unknown.
func servingStatus(state domain.ScopeState) healthpb.HealthCheckResponse_ServingStatus {
	switch state {
	case domain.StateActive:
		return healthpb.HealthCheckResponse_SERVING
	case domain.StateClosed, domain.StateIdle:
		return healthpb.HealthCheckResponse_SERVICE_UNKNOWN
	default:
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
}
