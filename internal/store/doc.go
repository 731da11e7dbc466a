// Package store is the SQLite-backed system of record for coordination
// entities: missions, flight logs, capture sessions, camera calibrations,
// processing jobs, and registered observer devices.
//
// The store never caches: callers re-read an entity before every transition
// and write it back before broadcasting. Nested documents (waypoints,
// telemetry, capture settings, artifacts) are stored as JSON columns.
package store
