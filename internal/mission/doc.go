// Package mission implements the mission executor state machine.
//
// A mission moves ready → executing → completed|failed. Each execution runs
// as its own goroutine, synthesizing telemetry while it walks the waypoint
// route, persisting the flight log before every broadcast, and suspending
// between waypoints without blocking other missions or the broadcaster.
// Aborts are observed at the next suspension boundary and produce exactly one
// terminal broadcast.
package mission
