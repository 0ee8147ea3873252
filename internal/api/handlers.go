package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"fswatchd/internal/daemon"
	"fswatchd/internal/history"
)

// Handler serves the introspection endpoints.
type Handler struct {
	daemon    *daemon.Daemon
	history   *history.Store
	reload    ReloadFunc
	startTime time.Time
}

// Healthz handles GET /healthz: a liveness probe with no dependency on
// the daemon's internal state.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(h.startTime).String(),
	})
}

// Status handles GET /status: the daemon's running state, watch count,
// and per-scheduler pause/pending-task counts.
func (h *Handler) Status(c *gin.Context) {
	st := h.daemon.Status()

	schedulers := make([]gin.H, 0, len(st.Schedulers))
	for _, s := range st.Schedulers {
		schedulers = append(schedulers, gin.H{
			"name":    s.Name,
			"paused":  s.Paused,
			"pending": s.Pending,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"running":    st.Running,
		"watches":    st.Watches,
		"schedulers": schedulers,
	})
}

// History handles GET /history?limit=N: the most recent task executions
// from the audit log, newest first. Returns an empty list, not an
// error, when history is disabled.
func (h *Handler) History(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusOK, gin.H{"executions": []history.TaskExecution{}})
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	rows, err := h.history.Recent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"executions": rows})
}

// Reload handles POST /reload: triggers the same hot-reload path SIGHUP
// does, returning once the replacement daemon has started (the old one
// drains in the background, same as a signal-triggered reload).
func (h *Handler) Reload(c *gin.Context) {
	if h.reload == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reload not supported"})
		return
	}
	if err := h.reload(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reloading"})
}
