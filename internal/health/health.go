package health

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fjod/storefront-cart/internal/logger"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const ServiceName = "cart-service"

// Pinger is anything whose reachability matters for serving traffic.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Checker probes dependencies and publishes the result on a grpc health
// server.
type Checker struct {
	server   *health.Server
	probes   map[string]Pinger
	interval time.Duration
	timeout  time.Duration
}

func NewChecker(server *health.Server, interval time.Duration) *Checker {
	return &Checker{
		server:   server,
		probes:   make(map[string]Pinger),
		interval: interval,
		timeout:  2 * time.Second,
	}
}

func (c *Checker) Register(name string, p Pinger) {
	c.probes[name] = p
}

// Check pings every dependency and returns the first failure in name order.
func (c *Checker) Check(ctx context.Context) error {
	names := make([]string, 0, len(c.probes))
	for name := range c.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pctx, cancel := context.WithTimeout(ctx, c.timeout)
		err := c.probes[name].Ping(pctx)
		cancel()
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Update runs one check and sets the serving status.
func (c *Checker) Update(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if err := c.Check(ctx); err != nil {
		logger.FromCtx(ctx).Warn("health check failed", zap.Error(err))
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	c.server.SetServingStatus(ServiceName, status)
	c.server.SetServingStatus("", status)
}

// Run updates the status every interval until ctx is done, then marks the
// service as shutting down.
func (c *Checker) Run(ctx context.Context) {
	c.Update(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.server.Shutdown()
			return
		case <-ticker.C:
			c.Update(ctx)
		}
	}
}

func (c *Checker) Server() *health.Server {
	return c.server
}
