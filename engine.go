package mfaflow

import (
	"time"

	"github.com/MrEthical07/mfaflow/credstore"
	"github.com/MrEthical07/mfaflow/internal/audit"
	"github.com/MrEthical07/mfaflow/oauth"
	"github.com/MrEthical07/mfaflow/platform"
	"golang.org/x/sync/singleflight"
)

// Engine defines a public type used by mfaflow APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config      Config
	platform    platform.Client
	credentials credstore.Store
	challenges  *challengeLimiter
	policies    *policyCache
	deviceGroup singleflight.Group
	ceremony    CeremonyDriver
	exchanger   oauth.Exchanger
	notifier    NotificationSink
	audit       *audit.Dispatcher
	metrics     *Metrics
	tokenSignal chan struct{}
	clock       func() time.Time
}

// Close describes the close operation and its observable behavior.
//
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

func (e *Engine) now() time.Time {
	if e != nil && e.clock != nil {
		return e.clock()
	}
	return time.Now()
}

func (e *Engine) notify(level NotificationLevel, message string) {
	if e == nil || e.notifier == nil {
		return
	}
	e.notifier.Notify(level, message)
}
