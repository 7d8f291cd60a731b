// Package observability holds the gateway's process-wide logging, metrics
// and tracing plumbing.
//
// Logging goes through the Logger interface, backed by zap. Loggers
// derived with WithContext carry the request ID set by the RequestID
// middleware and the IDs of the active OpenTelemetry span.
//
// Metrics covers inbound HTTP traffic only. Pipeline packages (fetch,
// gateway, health) register their own collectors on the default
// registry, and Metrics.Handler serves both.
//
// Tracer wraps an OTLP/gRPC tracer provider. Pipeline stages open child
// spans with StartStage and close them with EndSpan.
package observability
