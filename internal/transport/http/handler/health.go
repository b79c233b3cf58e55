package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Probe checks one dependency; nil means healthy.
type Probe func(ctx context.Context) error

type HealthHandler struct {
	name      string
	env       string
	startedAt time.Time
	probes    map[string]Probe
	timeout   time.Duration
}

type dependencyStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// NewHealthHandler reports on every probe. A nil probe marks a dependency
// that is switched off; it is listed but never fails the check.
func NewHealthHandler(name, env string, startedAt time.Time, probes map[string]Probe) *HealthHandler {
	return &HealthHandler{name: name, env: env, startedAt: startedAt, probes: probes, timeout: 5 * time.Second}
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	allOK := true
	deps := make(map[string]dependencyStatus, len(h.probes))
	for name, probe := range h.probes {
		if probe == nil {
			deps[name] = dependencyStatus{OK: true, Message: "disabled"}
			continue
		}
		if err := probe(ctx); err != nil {
			allOK = false
			deps[name] = dependencyStatus{OK: false, Message: err.Error()}
			continue
		}
		deps[name] = dependencyStatus{OK: true}
	}

	statusCode := http.StatusOK
	if !allOK {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, gin.H{
		"app":          h.name,
		"env":          h.env,
		"uptime_sec":   int(time.Since(h.startedAt).Seconds()),
		"dependencies": deps,
	})
}
