package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	WsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "recipedia_ws_connections",
		Help: "Current number of active websocket connections",
	})
	RealtimeEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recipedia_realtime_events_total",
		Help: "Room events handed to the realtime hub",
	}, []string{"event"})
	RealtimeDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recipedia_realtime_dropped_total",
		Help: "Realtime frames dropped because a client or room queue was full",
	})
	InvitesIssuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recipedia_invites_issued_total",
		Help: "Total number of invite codes issued",
	})
	InviteCodeCollisionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recipedia_invite_code_collisions_total",
		Help: "Invite code draws rejected because the code already existed",
	})
	InvitesConsumedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recipedia_invites_consumed_total",
		Help: "Invite consumption attempts by outcome",
	}, []string{"outcome"})
	CatalogLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recipedia_catalog_lookups_total",
		Help: "External catalog lookups by result",
	}, []string{"result"})
	SweptRowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recipedia_swept_rows_total",
		Help: "Rows removed by the maintenance sweep",
	}, []string{"table"})
	HttpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HttpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(
		WsConnections, RealtimeEventsTotal, RealtimeDroppedTotal,
		InvitesIssuedTotal, InviteCodeCollisionsTotal, InvitesConsumedTotal,
		CatalogLookups, SweptRowsTotal,
		HttpRequestsTotal, HttpRequestDuration,
	)
}

// GinMiddleware 统计基础请求指标，供 Prometheus 拉取。
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		HttpRequestsTotal.With(labels).Inc()
		HttpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
