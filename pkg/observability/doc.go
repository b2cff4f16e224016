/*
Package observability turns playback lifecycle hooks into Prometheus metrics
and structured log lines.

Metrics live in their own registry so several instances (tests, embedded
servers) never collide on the global default registry.
*/
package observability
