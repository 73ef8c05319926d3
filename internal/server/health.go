// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sustainable-computing-io/energymon/internal/service"
)

// HealthProbe serves liveness and readiness endpoints aggregated over the
// services that implement service.LiveChecker or service.ReadyChecker
type HealthProbe struct {
	logger   *slog.Logger
	api      APIService
	services []service.Service
}

var _ service.Initializer = (*HealthProbe)(nil)

// ServiceHealth is the health of a single service
type ServiceHealth struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
}

// HealthStatus is the body of a probe response
type HealthStatus struct {
	Status   string          `json:"status"` // "ok" or "unhealthy"
	Services []ServiceHealth `json:"services"`
}

// NewHealthProbe creates a HealthProbe over services
func NewHealthProbe(api APIService, services []service.Service, logger *slog.Logger) *HealthProbe {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthProbe{
		logger:   logger.With("service", "health-probe"),
		api:      api,
		services: services,
	}
}

func (h *HealthProbe) Name() string {
	return "health-probe"
}

func (h *HealthProbe) Init() error {
	if err := h.api.Register("/probe/livez", "Liveness probe",
		"Returns 200 if all services are alive", http.HandlerFunc(h.handleLiveness)); err != nil {
		return err
	}
	return h.api.Register("/probe/readyz", "Readiness probe",
		"Returns 200 if all services are ready", http.HandlerFunc(h.handleReadiness))
}

func (h *HealthProbe) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	h.respond(w, h.check(func(s service.Service) (bool, bool) {
		c, ok := s.(service.LiveChecker)
		if !ok {
			return false, false
		}
		return c.IsLive(), true
	}))
}

func (h *HealthProbe) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	h.respond(w, h.check(func(s service.Service) (bool, bool) {
		c, ok := s.(service.ReadyChecker)
		if !ok {
			return false, false
		}
		return c.IsReady(), true
	}))
}

// check runs probe over every service; probe returns whether the service
// is healthy and whether it can be probed at all
func (h *HealthProbe) check(probe func(service.Service) (healthy, ok bool)) HealthStatus {
	status := HealthStatus{Status: "ok", Services: []ServiceHealth{}}
	for _, s := range h.services {
		healthy, ok := probe(s)
		if !ok {
			continue
		}
		status.Services = append(status.Services, ServiceHealth{Name: s.Name(), Healthy: healthy})
		if !healthy {
			status.Status = "unhealthy"
		}
	}
	return status
}

func (h *HealthProbe) respond(w http.ResponseWriter, status HealthStatus) {
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
		h.logger.Warn("Health check failed", "services", status.Services)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(status); err != nil {
		h.logger.Error("Failed to encode health response", "error", err)
	}
}
