// Package kafka publishes request lifecycle events to a Kafka topic.
//
// The Publisher is an events.EventHandler: registered on the in-memory
// emitter it forwards every RequestEvent as a JSON message keyed by request
// ID, so all events of one request land on the same partition in order.
// Trace context travels in the message headers. Writes go through a
// circuit breaker so an unavailable broker fails fast instead of stalling
// request handling.
package kafka
