package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Reports service health and per-component status",
		Tags:        []string{"System"},
	}, s.handleHealthCheck)
}

// === DTOs ===

type ComponentHealth struct {
	Status    string `json:"status" doc:"Component status: up or down"`
	LatencyMS int64  `json:"latency_ms" doc:"Probe latency in milliseconds"`
	Error     string `json:"error,omitempty" doc:"Probe failure detail"`
}

type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy or degraded"`
	Version    string                     `json:"version" doc:"Server version"`
	Timestamp  time.Time                  `json:"timestamp" doc:"Check time"`
	Components map[string]ComponentHealth `json:"components" doc:"Per-component status"`
}

type HealthOutput struct {
	Status int
	Body   HealthResponse
}

// === Handlers ===

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	resp := HealthResponse{
		Status:     "healthy",
		Version:    s.opts.Version,
		Timestamp:  time.Now().UTC(),
		Components: map[string]ComponentHealth{},
	}

	start := time.Now()
	dbHealth := ComponentHealth{Status: "up"}
	if err := s.store.Ping(ctx); err != nil {
		dbHealth.Status = "down"
		dbHealth.Error = err.Error()
		resp.Status = "degraded"
	}
	dbHealth.LatencyMS = time.Since(start).Milliseconds()
	resp.Components["database"] = dbHealth

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	return &HealthOutput{Status: status, Body: resp}, nil
}
