// Package events carries the leveled run events of the dispatcher to one or
// more sinks: the structured log, an HTTP webhook, a Kafka topic, or an
// in-memory recorder in tests.
package events
