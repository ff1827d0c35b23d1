// Package events carries request lifecycle events between components.
//
// Services emit a RequestEvent after every committed state change without
// knowing who listens. The dispatcher reacts to request.received, and the
// Kafka publisher forwards every event to the data-exchange bus.
package events
