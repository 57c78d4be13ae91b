package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultProbeTimeout = 1500 * time.Millisecond

// HealthStatus is the readiness verdict for one dependency or the whole process.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "ok"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusError    HealthStatus = "error"
)

// DependencyCheck probes one backing service during readiness checks.
type DependencyCheck struct {
	Name    string
	Timeout time.Duration
	// Optional checks report degraded instead of error when they fail.
	Optional bool
	Check    func(context.Context) error
}

// HealthCheck is the outcome of a single probe.
type HealthCheck struct {
	Status    HealthStatus  `json:"status"`
	Error     string        `json:"error,omitempty"`
	Latency   time.Duration `json:"-"`
	LatencyMS int64         `json:"latencyMs"`
}

// HealthReport aggregates every probe.
type HealthReport struct {
	Status      HealthStatus           `json:"status"`
	Checks      map[string]HealthCheck `json:"checks"`
	GeneratedAt time.Time              `json:"generatedAt"`
}

// Ready reports whether the process should receive traffic.
func (r HealthReport) Ready() bool {
	return r.Status != HealthStatusError
}

// HealthProber runs dependency checks concurrently.
type HealthProber struct {
	checks         []DependencyCheck
	defaultTimeout time.Duration
	now            func() time.Time
}

// HealthProberOption customises the prober.
type HealthProberOption func(*HealthProber)

// WithProbeTimeout overrides the timeout applied when a check omits its own.
func WithProbeTimeout(timeout time.Duration) HealthProberOption {
	return func(p *HealthProber) {
		if timeout > 0 {
			p.defaultTimeout = timeout
		}
	}
}

// WithProbeClock injects a custom clock.
func WithProbeClock(clock func() time.Time) HealthProberOption {
	return func(p *HealthProber) {
		if clock != nil {
			p.now = clock
		}
	}
}

// NewHealthProber validates checks and returns a prober.
func NewHealthProber(checks []DependencyCheck, opts ...HealthProberOption) (*HealthProber, error) {
	for _, check := range checks {
		if strings.TrimSpace(check.Name) == "" {
			return nil, errors.New("health prober: dependency check missing name")
		}
		if check.Check == nil {
			return nil, fmt.Errorf("health prober: dependency %s missing check function", check.Name)
		}
	}
	prober := &HealthProber{
		checks:         append([]DependencyCheck(nil), checks...),
		defaultTimeout: defaultProbeTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(prober)
		}
	}
	return prober, nil
}

// Collect runs every check and folds the results. Any required failure marks the report as error.
func (p *HealthProber) Collect(ctx context.Context) HealthReport {
	results := make(map[string]HealthCheck, len(p.checks))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, check := range p.checks {
		wg.Add(1)
		go func(check DependencyCheck) {
			defer wg.Done()
			result := p.run(ctx, check)
			mu.Lock()
			results[check.Name] = result
			mu.Unlock()
		}(check)
	}
	wg.Wait()

	status := HealthStatusOK
	for _, result := range results {
		switch result.Status {
		case HealthStatusError:
			status = HealthStatusError
		case HealthStatusDegraded:
			if status == HealthStatusOK {
				status = HealthStatusDegraded
			}
		}
	}
	return HealthReport{Status: status, Checks: results, GeneratedAt: p.now().UTC()}
}

func (p *HealthProber) run(ctx context.Context, check DependencyCheck) HealthCheck {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = p.defaultTimeout
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := p.now()
	err := check.Check(checkCtx)
	elapsed := p.now().Sub(start)

	result := HealthCheck{Status: HealthStatusOK, Latency: elapsed, LatencyMS: elapsed.Milliseconds()}
	if err == nil {
		return result
	}
	result.Error = err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		result.Error = "timeout"
	}
	result.Status = HealthStatusError
	if check.Optional {
		result.Status = HealthStatusDegraded
	}
	return result
}
