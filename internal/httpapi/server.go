// Package httpapi exposes the engine's four REST endpoints, a websocket
// live-push mount, health check, and Prometheus metrics. CORS is
// permissive, matching the single-symbol-per-instance network model.
package httpapi

import (
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"hedgegrid/internal/engine"
	"hedgegrid/internal/logging"
	"hedgegrid/pkg/liveserver"
)

// API wires the engine into an http.Handler.
type API struct {
	engine *engine.Engine
	ws     *liveserver.Server
	logger logging.Logger

	corsOrigin   string
	mountMetrics bool

	tickLimiters sync.Map
	tickRate     rate.Limit
	tickBurst    int
}

// New builds the router. ws may be nil when the live-push endpoint isn't
// mounted (e.g. in tests exercising only the REST surface). mountMetrics
// gates whether /metrics is registered on this router at all — callers
// running metrics on a dedicated port (config.TelemetryConfig.MetricsPort)
// pass false here and mount MetricsHandler elsewhere instead.
func New(eng *engine.Engine, ws *liveserver.Server, logger logging.Logger, corsOrigin string, tickRatePerSec float64, tickBurst int, mountMetrics bool) *API {
	return &API{
		engine:       eng,
		ws:           ws,
		logger:       logger,
		corsOrigin:   corsOrigin,
		mountMetrics: mountMetrics,
		tickRate:     rate.Limit(tickRatePerSec),
		tickBurst:    tickBurst,
	}
}

// Router returns the mux wrapped in CORS and tick rate-limiting middleware.
func (a *API) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tick", a.rateLimited(a.handleTick))
	mux.HandleFunc("/api/ui-data", a.handleUIData)
	mux.HandleFunc("/api/update-settings", a.handleUpdateSettings)
	mux.HandleFunc("/api/control", a.handleControl)
	mux.HandleFunc("/healthz", a.handleHealthz)
	if a.mountMetrics {
		mux.Handle("/metrics", promhttp.Handler())
	}
	if a.ws != nil {
		mux.HandleFunc("/ws", a.ws.Handler)
	}
	return a.cors(mux)
}

// MetricsHandler returns the Prometheus scrape handler standalone, for a
// caller that serves metrics on a dedicated port instead of this router.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

func (a *API) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", a.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimited guards POST /api/tick with a per-source-IP token bucket, the
// same getIPLimiter shape the dashboard websocket uses.
func (a *API) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.tickRate > 0 {
			ip := remoteIP(r)
			if !a.limiterFor(ip).Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}
		next(w, r)
	}
}

func (a *API) limiterFor(ip string) *rate.Limiter {
	if v, ok := a.tickLimiters.Load(ip); ok {
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(a.tickRate, a.tickBurst)
	actual, _ := a.tickLimiters.LoadOrStore(ip, limiter)
	return actual.(*rate.Limiter)
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
