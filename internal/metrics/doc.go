// Package metrics exposes crawl progress as Prometheus metrics.
//
// A Recorder implements crawler.Observer and owns a private registry, so
// several crawls in one process do not collide. Handler serves the registry
// in the Prometheus text format.
package metrics
