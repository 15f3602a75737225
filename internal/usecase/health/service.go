package health

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates that no source can answer queries.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

const sourceCheckPrefix = "source:"

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	cache    CachePinger
	gateways GatewayLister
}

// New creates a Service. cache can be nil when caching is disabled.
func New(cache CachePinger, gateways GatewayLister) *Service {
	return &Service{cache: cache, gateways: gateways}
}

// Check pings the cache and probes every source concurrently.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	var mu sync.Mutex
	set := func(name string, ok bool) {
		res := CheckOK
		if !ok {
			res = CheckError
		}
		mu.Lock()
		checks[name] = res
		mu.Unlock()
	}

	var g errgroup.Group
	if s.cache != nil {
		g.Go(func() error {
			set("cache", s.cache.Ping(ctx) == nil)
			return nil
		})
	}

	sources := s.gateways.All()
	for _, gw := range sources {
		g.Go(func() error {
			set(sourceCheckPrefix+gw.ID(), gw.IsAvailable(ctx))
			return nil
		})
	}
	_ = g.Wait()

	up := 0
	for name, v := range checks {
		if strings.HasPrefix(name, sourceCheckPrefix) && v == CheckOK {
			up++
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if len(sources) > 0 && up == 0 {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}
