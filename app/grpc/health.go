package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vibast-solutions/ms-go-locks/app/service"
)

// LockHealth publishes one gRPC health service per lock file in the
// inspector's directory: SERVING while the lock is held, NOT_SERVING when it
// is free or gone. A held PID or temporary lock means its owner is running.
type LockHealth struct {
	inspector *service.Inspector
	health    *health.Server
	log       logrus.FieldLogger
	known     map[string]bool
}

// NewLockHealth constructs the health reporter with a fresh health server.
func NewLockHealth(inspector *service.Inspector, log logrus.FieldLogger) *LockHealth {
	return &LockHealth{
		inspector: inspector,
		health:    health.NewServer(),
		log:       log,
		known:     map[string]bool{},
	}
}

// Server returns the health server to register on a gRPC server.
func (h *LockHealth) Server() *health.Server {
	return h.health
}

// Refresh inspects every lock file once and updates the serving statuses.
// Locks that disappeared since the last refresh turn NOT_SERVING.
func (h *LockHealth) Refresh(ctx context.Context) error {
	names, err := h.inspector.List()
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(names))
	var errs []error
	for _, name := range names {
		status, err := h.inspector.Inspect(ctx, name)
		if err != nil && !errors.Is(err, service.ErrLockNotFound) {
			errs = append(errs, err)
			continue
		}
		seen[name] = true
		h.set(name, status.Held())
	}
	for name := range h.known {
		if !seen[name] {
			h.set(name, false)
		}
	}
	h.known = seen
	return errors.Join(errs...)
}

// Run refreshes immediately and then every interval until ctx is done.
func (h *LockHealth) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := h.Refresh(ctx); err != nil {
			h.log.Errorf("refresh lock health: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Shutdown marks every service NOT_SERVING.
func (h *LockHealth) Shutdown() {
	h.health.Shutdown()
}

func (h *LockHealth) set(name string, held bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if held {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus(name, status)
}
