package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/editionhouse/api/internal/repositories"
)

// BuildInfo describes the running binary for /healthz.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// HealthProbe reports dependency health for /readyz. *repositories.HealthProber satisfies it.
type HealthProbe interface {
	Collect(ctx context.Context) repositories.HealthReport
}

// HealthHandlers serves liveness and readiness endpoints.
type HealthHandlers struct {
	build BuildInfo
	probe HealthProbe
	clock func() time.Time
}

// HealthOption customises HealthHandlers.
type HealthOption func(*HealthHandlers)

// WithHealthBuildInfo sets the build metadata reported by /healthz.
func WithHealthBuildInfo(info BuildInfo) HealthOption {
	return func(h *HealthHandlers) {
		h.build = info
	}
}

// WithHealthProbe sets the dependency prober used by /readyz.
func WithHealthProbe(probe HealthProbe) HealthOption {
	return func(h *HealthHandlers) {
		h.probe = probe
	}
}

// WithHealthClock overrides the clock used for uptime.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewHealthHandlers constructs health handlers. Without a probe /readyz always reports ok.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.build.StartedAt.IsZero() {
		h.build.StartedAt = h.clock()
	}
	if h.build.Version == "" {
		h.build.Version = "dev"
	}
	return h
}

type healthzResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	CommitSHA   string `json:"commitSha,omitempty"`
	Environment string `json:"environment,omitempty"`
	Uptime      string `json:"uptime"`
	Timestamp   string `json:"timestamp"`
}

type readyzCheck struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
}

type readyzResponse struct {
	Status      string                 `json:"status"`
	Checks      map[string]readyzCheck `json:"checks,omitempty"`
	GeneratedAt string                 `json:"generatedAt"`
}

// Healthz answers liveness probes.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	now := h.clock().UTC()
	writeJSONResponse(w, http.StatusOK, healthzResponse{
		Status:      string(repositories.HealthStatusOK),
		Version:     h.build.Version,
		CommitSHA:   h.build.CommitSHA,
		Environment: h.build.Environment,
		Uptime:      now.Sub(h.build.StartedAt).Round(time.Second).String(),
		Timestamp:   now.Format(time.RFC3339),
	})
}

// Readyz runs the dependency checks and answers 503 when a required one fails.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.probe == nil {
		writeJSONResponse(w, http.StatusOK, readyzResponse{
			Status:      string(repositories.HealthStatusOK),
			GeneratedAt: h.clock().UTC().Format(time.RFC3339),
		})
		return
	}

	report := h.probe.Collect(r.Context())
	resp := readyzResponse{
		Status:      string(report.Status),
		Checks:      make(map[string]readyzCheck, len(report.Checks)),
		GeneratedAt: report.GeneratedAt.UTC().Format(time.RFC3339),
	}
	for name, check := range report.Checks {
		resp.Checks[name] = readyzCheck{
			Status:    string(check.Status),
			Error:     check.Error,
			LatencyMS: check.LatencyMS,
		}
	}

	status := http.StatusOK
	if !report.Ready() {
		status = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, status, resp)
}
