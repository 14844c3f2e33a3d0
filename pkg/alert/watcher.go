package alert

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/soundprediction/recall/pkg/embedding"
)

// HealthWatcher turns embedding service health transitions into alerts.
// An alert fires when the status crosses into critical or unhealthy, and a
// recovery notice fires when it crosses back.
type HealthWatcher struct {
	alerter Alerter
	logger  *slog.Logger

	mu       sync.Mutex
	degraded bool
}

// NewHealthWatcher creates a watcher sending through the given alerter.
func NewHealthWatcher(alerter Alerter, logger *slog.Logger) *HealthWatcher {
	if alerter == nil {
		alerter = &NoOpAlerter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthWatcher{alerter: alerter, logger: logger}
}

// Observe inspects a health snapshot and fires on state transitions.
// Repeated degraded snapshots do not re-alert.
func (w *HealthWatcher) Observe(h embedding.Health) {
	degraded := h.Status == embedding.StatusCritical || h.Status == embedding.StatusUnhealthy

	w.mu.Lock()
	transitionDown := degraded && !w.degraded
	transitionUp := !degraded && w.degraded
	w.degraded = degraded
	w.mu.Unlock()

	switch {
	case transitionDown:
		var details []string
		for _, a := range h.Alerts {
			details = append(details, fmt.Sprintf("[%s] %s", a.Severity, a.Message))
		}
		message := fmt.Sprintf("embedding service status: %s\n%s", h.Status, joinLines(details))
		if err := w.alerter.Alert("embedding service degraded", message); err != nil {
			w.logger.Error("failed to send degradation alert", "error", err)
		}
	case transitionUp:
		if err := w.alerter.Alert("embedding service recovered", fmt.Sprintf("embedding service status: %s", h.Status)); err != nil {
			w.logger.Error("failed to send recovery alert", "error", err)
		}
	}
}

func joinLines(lines []string) string {
	out := ""
	for _, l := range lines {
		out += l + "\n"
	}
	return out
}
