package lock

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	backendFile      = "file"
	backendRedis     = "redis"
	backendMySQL     = "mysql"
	backendSemaphore = "semaphore"
)

var (
	// AcquireCounter counts acquisitions by backend and outcome.
	AcquireCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "locks_acquire_total",
		Help: "Total number of lock acquisitions by outcome",
	}, []string{"backend", "result"})
	// AcquireWait tracks how long successful acquisitions waited.
	AcquireWait = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "locks_acquire_wait_seconds",
		Help:    "Time spent waiting for a lock",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	}, []string{"backend"})
	// HeldGauge reports locks currently held by this process.
	HeldGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "locks_held",
		Help: "Current number of locks held",
	}, []string{"backend"})
)

// RegisterMetrics registers the lock metrics on the provided registry.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(AcquireCounter, AcquireWait, HeldGauge)
}

func observeAcquire(backend string, waited time.Duration, err error) {
	AcquireCounter.WithLabelValues(backend, resultLabel(err)).Inc()
	if err == nil {
		AcquireWait.WithLabelValues(backend).Observe(waited.Seconds())
	}
}

func observeHeld(backend string, delta float64) {
	HeldGauge.WithLabelValues(backend).Add(delta)
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "acquired"
	case errors.Is(err, ErrAlreadyLocked):
		return "already_locked"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}
