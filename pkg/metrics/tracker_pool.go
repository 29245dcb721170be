package metrics

import (
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Utilization thresholds for the Postgres pool. A sync batch holds
// SYNC_CONCURRENCY connections for its whole run, so sustained use near the
// limit starves the API.
const (
	poolDegradedAt  = 0.80
	poolUnhealthyAt = 0.95
	poolSlowWait    = 5 * time.Second
)

var (
	dbPoolConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      "connections",
			Help:      "Postgres pool connections by state",
		},
		[]string{"state"},
	)

	dbPoolWaitSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      "wait_seconds",
			Help:      "Cumulative time spent waiting for a Postgres connection",
		},
	)
)

// DBPoolStats is the subset of sql.DBStats the readiness check looks at.
type DBPoolStats struct {
	InUse        int           `json:"in_use"`
	Idle         int           `json:"idle"`
	MaxOpen      int           `json:"max_open"`
	WaitCount    int64         `json:"wait_count"`
	WaitDuration time.Duration `json:"wait_duration"`
}

func GetDBPoolStats(db *sql.DB) DBPoolStats {
	if db == nil {
		return DBPoolStats{}
	}
	s := db.Stats()
	return DBPoolStats{
		InUse:        s.InUse,
		Idle:         s.Idle,
		MaxOpen:      s.MaxOpenConnections,
		WaitCount:    s.WaitCount,
		WaitDuration: s.WaitDuration,
	}
}

type PoolHealthStatus string

const (
	PoolHealthy   PoolHealthStatus = "healthy"
	PoolDegraded  PoolHealthStatus = "degraded"
	PoolUnhealthy PoolHealthStatus = "unhealthy"
)

type PoolHealth struct {
	Status      PoolHealthStatus `json:"status"`
	Utilization float64          `json:"utilization"`
	Stats       DBPoolStats      `json:"stats"`
}

// AssessDBPoolHealth grades pool pressure. Unhealthy takes the instance out
// of rotation via /ready.
func AssessDBPoolHealth(stats DBPoolStats) PoolHealth {
	health := PoolHealth{Status: PoolHealthy, Stats: stats}
	if stats.MaxOpen > 0 {
		health.Utilization = float64(stats.InUse) / float64(stats.MaxOpen)
	}

	switch {
	case health.Utilization >= poolUnhealthyAt:
		health.Status = PoolUnhealthy
	case health.Utilization >= poolDegradedAt:
		health.Status = PoolDegraded
	case stats.WaitCount > 0 && stats.WaitDuration > poolSlowWait:
		health.Status = PoolDegraded
	}
	return health
}

// RecordDBPool exports the stats as gauges and returns the assessment.
func RecordDBPool(stats DBPoolStats) PoolHealth {
	dbPoolConnections.WithLabelValues("in_use").Set(float64(stats.InUse))
	dbPoolConnections.WithLabelValues("idle").Set(float64(stats.Idle))
	dbPoolConnections.WithLabelValues("max_open").Set(float64(stats.MaxOpen))
	dbPoolWaitSeconds.Set(stats.WaitDuration.Seconds())
	return AssessDBPoolHealth(stats)
}
