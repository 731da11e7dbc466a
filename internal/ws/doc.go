// Package ws hosts observer connections over a persistent WebSocket endpoint.
//
// Each connection is wrapped behind a buffered send queue drained by a writer
// goroutine so a slow observer never stalls the broadcaster; a full queue or
// a write failure counts as a delivery failure and drops only that
// connection. Inbound messages let a device register itself
// (tablet-register) or request the current telemetry snapshot
// (telemetry-request).
package ws
