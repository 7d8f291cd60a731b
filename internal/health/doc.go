// Package health provides liveness, readiness and health endpoints for the
// image gateway.
//
// A Checker aggregates named checks. Readiness fails while any check is
// unhealthy or while the process is draining during shutdown.
//
//	checker := health.NewChecker(version, health.WithLogger(logger))
//	checker.RegisterCheck("fetch_queue", health.QueueCheck(queue, 64))
//	checker.RegisterRoutes(mux)
package health
