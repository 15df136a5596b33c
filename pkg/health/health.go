// Package health provides the liveness and readiness endpoints.
package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

const checkTimeout = 5 * time.Second

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

type CheckResult struct {
	Status    Status `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

type Response struct {
	Status     Status                 `json:"status"`
	Version    string                 `json:"version,omitempty"`
	Uptime     string                 `json:"uptime,omitempty"`
	Checks     map[string]CheckResult `json:"checks,omitempty"`
	ReportedAt time.Time              `json:"reported_at"`
}

// CheckFunc checks one dependency. A nil error is healthy.
type CheckFunc func(ctx context.Context) error

type namedCheck struct {
	name  string
	check CheckFunc
}

// Checker answers the orchestrator liveness and readiness checks. Readiness stays false until the
// service has started and turns false again on shutdown.
type Checker struct {
	version string
	started time.Time
	ready   atomic.Bool

	mu     sync.RWMutex
	checks []namedCheck
}

func NewChecker(version string) *Checker {
	return &Checker{version: version, started: time.Now()}
}

// AddCheck registers a readiness check. Registering a name again replaces it.
func (c *Checker) AddCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.checks {
		if c.checks[i].name == name {
			c.checks[i].check = check
			return
		}
	}
	c.checks = append(c.checks, namedCheck{name: name, check: check})
}

func (c *Checker) SetReady(ready bool) { c.ready.Store(ready) }

func (c *Checker) IsReady() bool { return c.ready.Load() }

func (c *Checker) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/health")
	g.GET("/live", c.LivenessHandler)
	g.GET("/ready", c.ReadinessHandler)
}

func (c *Checker) LivenessHandler(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.response(StatusHealthy, nil))
}

func (c *Checker) ReadinessHandler(ctx echo.Context) error {
	if !c.IsReady() {
		return ctx.JSON(http.StatusServiceUnavailable, c.response(StatusUnhealthy, map[string]CheckResult{
			"startup": {Status: StatusUnhealthy, Message: "service is not accepting traffic"},
		}))
	}

	results := c.runAll(ctx.Request().Context())
	status := StatusHealthy
	for _, r := range results {
		if r.Status != StatusHealthy {
			status = StatusUnhealthy
			break
		}
	}

	code := http.StatusOK
	if status != StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	return ctx.JSON(code, c.response(status, results))
}

func (c *Checker) response(status Status, checks map[string]CheckResult) Response {
	return Response{
		Status:     status,
		Version:    c.version,
		Uptime:     time.Since(c.started).Round(time.Second).String(),
		Checks:     checks,
		ReportedAt: time.Now().UTC(),
	}
}

// runAll checks every dependency concurrently, each under its own timeout.
func (c *Checker) runAll(ctx context.Context) map[string]CheckResult {
	c.mu.RLock()
	checks := append([]namedCheck(nil), c.checks...)
	c.mu.RUnlock()

	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup
	for i, nc := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = runCheck(ctx, nc.check)
		}()
	}
	wg.Wait()

	byName := make(map[string]CheckResult, len(checks))
	for i, nc := range checks {
		byName[nc.name] = results[i]
	}
	return byName
}

func runCheck(ctx context.Context, check CheckFunc) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := check(ctx)
	result := CheckResult{Status: StatusHealthy, LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
	}
	return result
}
