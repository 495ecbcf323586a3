package server

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegistryStats is the slice of the connection registry the health
// endpoint reports on.
type RegistryStats interface {
	Len() (conns, workers int)
	Active() int
	Closed() bool
}

// Health is the /healthz response body. Tracked counts include finished
// workers that have not been drained yet; ActiveWorkers does not.
type Health struct {
	Status             string `json:"status"`
	ActiveWorkers      int    `json:"active_workers"`
	TrackedConnections int    `json:"tracked_connections"`
	TrackedWorkers     int    `json:"tracked_workers"`
	Version            string `json:"version,omitempty"`
}

// NewAdminHandler 构建管理端路由：/metrics 暴露 gatherer，/healthz 报告注册表状态。
// 注册表关闭后 /healthz 返回 503。
func NewAdminHandler(stats RegistryStats, gatherer prometheus.Gatherer, version string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		conns, workers := stats.Len()
		h := Health{
			Status:             "ok",
			ActiveWorkers:      stats.Active(),
			TrackedConnections: conns,
			TrackedWorkers:     workers,
			Version:            version,
		}
		code := http.StatusOK
		if stats.Closed() {
			h.Status = "shutting_down"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(h)
	})
	return mux
}
