// Package backend provides the Threadline API server.
//
// This package contains the main application entry point. The actual API
// documentation is organized into subpackages:
//
//   - internal/handlers: HTTP request handlers for all API endpoints
//   - internal/models: Data models and database schemas
//   - internal/auth: Authentication and token validation
//   - internal/votes: The vote ledger and cached score maintenance
//   - internal/threads: Comment tree assembly and ordering
//   - internal/feeds: Popular feed ranking and caching
//   - internal/config: Environment-backed server configuration
//   - internal/database: Database connection and migrations
//   - internal/cache: Redis client wrapper
//   - internal/middleware: HTTP middleware (request ids, metrics)
//   - internal/metrics: Prometheus metric registry
//   - internal/telemetry: OpenTelemetry tracing setup
//   - internal/seed: Development data seeding
//
// See the individual package documentation for detailed API reference.
package backend
