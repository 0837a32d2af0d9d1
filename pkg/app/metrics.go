package app

import (
	"context"
	"fmt"
	"time"

	"github.com/s35indy-pixel/Finance-Bot/pkg/flow"
	"github.com/s35indy-pixel/Finance-Bot/pkg/services"

	monitor "github.com/hypnoglow/go-pg-monitor"
	"github.com/hypnoglow/go-pg-monitor/gopgv10"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vmkteam/appkit"
)

// registerMetrics is a function that initializes metrics and adds /metrics endpoint to echo.
// This endpoint exposes:
// - HTTP metrics (via appkit.HTTPMetrics)
// - Database connection metrics (via go-pg-monitor)
// - Bot workflow metrics (auto-registered via promauto in pkg/flow/metrics.go)
func (a *App) registerMetrics() {
	// add db conn metrics
	dbMetrics := monitor.NewMetrics(monitor.MetricsWithConstLabels(prometheus.Labels{"connection_name": "default"}))
	dbOpts := a.db.Options()
	a.mon = monitor.NewMonitor(
		gopgv10.NewObserver(a.db.DB),
		dbMetrics,
		monitor.MonitorWithPoolName(fmt.Sprintf("%s/%s", dbOpts.Addr, dbOpts.Database)),
	)
	a.mon.Open()

	// Add HTTP metrics middleware
	a.echo.Use(appkit.HTTPMetrics(appkit.DefaultServerName))

	// Expose all metrics via /metrics endpoint
	a.echo.Any("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// restoreMetrics reloads bot counter values from a Prometheus server so
// restarts do not reset dashboards. Failures only log, the bot works fine
// with counters starting from zero.
func (a *App) restoreMetrics(ctx context.Context) {
	if a.cfg.Prometheus.URL == "" {
		return
	}

	client, err := services.NewPrometheusClient(a.cfg.Prometheus.URL, a.Logger)
	if err != nil {
		a.Error(ctx, "failed to create prometheus client", "err", err)
		return
	}

	rctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	snapshot, err := client.RestoreMetrics(rctx)
	if err != nil {
		a.Error(rctx, "failed to restore metrics", "err", err)
		return
	}

	flow.RestoreMetrics(snapshot.MessagesProcessed, snapshot.ActionsProcessed, snapshot.RecordsTotal, snapshot.ErrorsTotal)
	a.Print(rctx, "metrics restored from prometheus", "url", a.cfg.Prometheus.URL)
}
