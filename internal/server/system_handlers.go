package server

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GwennLsk/BackCantineAston/internal/api"
	"github.com/GwennLsk/BackCantineAston/internal/logger"
)

const readyTimeout = 2 * time.Second

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200 {object} api.HealthResponse
// @Router       /health [get]
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{Status: "ok"})
}

// @Summary      Readiness check
// @Description  Pings the user store and, when email is enabled, the email queue.
// @Tags         system
// @Produce      json
// @Success      200 {object} api.HealthResponse
// @Failure      503 {object} api.HealthResponse
// @Router       /ready [get]
func Ready(checks map[string]Pinger) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()

		resp := api.HealthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
		code := http.StatusOK
		for _, name := range names {
			if err := checks[name].Ping(ctx); err != nil {
				logger.Warn("readiness check failed", "check", name, "error", err)
				resp.Checks[name] = "unavailable"
				resp.Status = "unavailable"
				code = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}

		c.JSON(code, resp)
	}
}

// @Summary      Prometheus metrics
// @Description  Exposes Prometheus metrics in text format
// @Tags         system
// @Produce      text/plain
// @Success      200 {string} string
// @Router       /metrics [get]
func Metrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
