// Package observability provides structured logging and metrics for the
// answer detector.
//
// This package implements:
//   - Process logger construction from configuration (zap-based)
//   - Request ID propagation into log fields
//   - Prometheus metrics for backend attempts, resolutions, and batches
//
// The resolver and the HTTP layer record through the Metrics interface so
// tests can run without a registry.
package observability
