// Package events implements the observer connection registry and the typed
// event broadcaster.
//
// Delivery is best-effort and isolated per observer: a failing connection is
// removed from the registry and never stalls delivery to the rest, and no
// failure is surfaced to the caller of Broadcast. There is no queueing,
// retry, or replay; observers that are slow or disconnected simply miss
// events.
package events
