// Package stream consumes the Arbor notification event stream
// (text/event-stream).
//
// The subscriber is deliberately dumb: it connects once, parses named
// events (init, new_item, item_updated, count_update, error) into raw JSON
// payloads, and hands them to the consumer on a channel. Reconnection and
// the degrade-to-polling decision belong to the notifications center, which
// needs to tear the stream down before polling starts so updates are never
// delivered twice.
package stream
