// Package capture implements the capture session manager: lifecycle and
// synchronized-trigger logic for dual-sensor capture sessions.
//
// A session moves active → ended and ends exactly once. Triggers are only
// valid while active and produce a synchronization-quality record; spatial
// alignment is only ever reported true when an active calibration exists for
// the session's device model.
package capture
