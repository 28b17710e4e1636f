// Package events publishes buffer lifecycle notifications.
//
// The manager hands every state change to a Publisher. KafkaPublisher wraps
// each notification in a CloudEvents 1.0 envelope and sends it from a
// background goroutine, so Publish never blocks the caller. When the queue is
// full the notification is dropped and counted.
//
// NopPublisher is used when events are disabled.
package events
