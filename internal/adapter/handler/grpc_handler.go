package handler

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const CartServiceName = "shoescart.CartStore"

// NewHealthServer returns a gRPC server exposing grpc.health.v1 for the cart
// store. The store is reported NOT_SERVING until MarkServing is called.
func NewHealthServer() (*grpc.Server, *health.Server) {
	srv := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus(CartServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	return srv, hs
}

func MarkServing(hs *health.Server) {
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(CartServiceName, healthpb.HealthCheckResponse_SERVING)
}

// MarkStopping flips every service to NOT_SERVING ahead of GracefulStop.
func MarkStopping(hs *health.Server) {
	hs.Shutdown()
}
