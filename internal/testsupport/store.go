package testsupport

import (
	"context"
	"testing"

	"groundlink/internal/config"
	"groundlink/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewMission creates a ready mission with n waypoints for tests.
func NewMission(t testing.TB, st *store.Store, name string, waypoints int, durationSecs float64) *store.Mission {
	t.Helper()

	route := make([]store.Waypoint, 0, waypoints)
	for i := 0; i < waypoints; i++ {
		route = append(route, store.Waypoint{
			Latitude:  37.4 + float64(i)*0.0001,
			Longitude: -122.1 - float64(i)*0.0001,
			AltitudeM: 60,
			SpeedMS:   8,
		})
	}
	mission, err := st.CreateMission(context.Background(), &store.Mission{
		Name:                  name,
		Waypoints:             route,
		EstimatedDurationSecs: durationSecs,
		TotalDistanceM:        float64(waypoints) * 15,
	})
	if err != nil {
		t.Fatalf("store.CreateMission: %v", err)
	}
	return mission
}

// NewFlightLog creates an open flight log for the given mission.
func NewFlightLog(t testing.TB, st *store.Store, missionID string) *store.FlightLog {
	t.Helper()

	flightLog, err := st.CreateFlightLog(context.Background(), &store.FlightLog{MissionID: missionID})
	if err != nil {
		t.Fatalf("store.CreateFlightLog: %v", err)
	}
	return flightLog
}
