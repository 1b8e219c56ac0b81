package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// highQueueDepth is the queue length above which the bus reports a warning.
const highQueueDepth = 512

type HealthStatus struct {
	Healthy           bool     `json:"healthy"`
	Dispatcher        Stats    `json:"dispatcher"`
	DatabaseConnected *bool    `json:"database_connected,omitempty"`
	NATSConnected     *bool    `json:"nats_connected,omitempty"`
	Errors            []string `json:"errors"`
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// ConnectionChecker is satisfied by *JetStreamPublisher.
type ConnectionChecker interface {
	Connected() bool
}

// HealthChecker reports readiness of the event bus and the backends it
// publishes to. Nil backends are skipped.
type HealthChecker struct {
	dispatcher *Dispatcher
	db         Pinger
	broker     ConnectionChecker
}

func NewHealthChecker(dispatcher *Dispatcher, db Pinger, broker ConnectionChecker) *HealthChecker {
	return &HealthChecker{dispatcher: dispatcher, db: db, broker: broker}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy:    true,
		Dispatcher: h.dispatcher.Stats(),
		Errors:     []string{},
	}

	if !status.Dispatcher.Running {
		status.Healthy = false
		status.Errors = append(status.Errors, "event dispatcher not running")
	}
	if status.Dispatcher.Queued > highQueueDepth {
		status.Errors = append(status.Errors, fmt.Sprintf("high event queue depth: %d", status.Dispatcher.Queued))
	}

	if h.db != nil {
		connected := true
		if err := h.db.PingContext(ctx); err != nil {
			connected = false
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
		}
		status.DatabaseConnected = &connected
	}

	if h.broker != nil {
		connected := h.broker.Connected()
		if !connected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
		status.NATSConnected = &connected
	}

	return status
}

// ServeHTTP writes the status as JSON, with 503 when unhealthy.
func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(status)
}
