// Package middleware provides production-grade HTTP middleware for the
// recording server's chi router.
//
// This package includes:
//   - OpenTelemetry distributed tracing middleware
//   - Prometheus metrics middleware
//
// # OpenTelemetry Middleware
//
// The OpenTelemetry middleware traces every HTTP request, providing
// distributed tracing across asset serving and playback. Traces include
// the route pattern, method, and status code.
//
//	r := chi.NewRouter()
//	r.Use(middleware.OpenTelemetry())
//
// Configure with options:
//
//	middleware.OpenTelemetry(
//	    middleware.WithTracerName("domcorderd"),
//	    middleware.WithRequestFilter(func(r *http.Request) bool {
//	        return r.URL.Path != "/healthz"
//	    }),
//	)
//
// # Prometheus Metrics
//
// The Prometheus middleware collects metrics about HTTP traffic:
//   - http_requests_total: Total requests by route and status
//   - http_request_duration_seconds: Request duration histogram
//
//	r.Use(middleware.Prometheus())
//
// Then expose metrics on a separate port:
//
//	http.Handle("/metrics", promhttp.Handler())
//	go http.ListenAndServe(":9090", nil)
package middleware
