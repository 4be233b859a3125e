// Package control wires the access layer components from configuration and
// owns their lifecycle.
//
// The App built here shares one notifier fan-out between the rate limit
// guard, the connectivity monitor and the deferred queue, so log lines,
// Prometheus gauges and (when Redis is configured) published events all see
// the same transitions.
package control
