// Package metrics defines the Prometheus counters of an outreach run and pushes
// them to a Pushgateway at the end of the run.
package metrics
