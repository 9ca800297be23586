// Package metrics defines Prometheus metrics for the media curator.
//
// All metrics use the media_curator_ prefix and are registered with the
// default registry via promauto, so importing any package that records
// metrics is enough for them to appear on the /metrics endpoint.
package metrics
