package daemon

import (
	"context"

	"groundlink/internal/events"
	"groundlink/internal/logging"
)

// CurrentTelemetry answers observer telemetry-request messages with the
// latest sample and recent window of the first executing mission. An empty
// payload means nothing is flying.
func (d *Daemon) CurrentTelemetry(ctx context.Context) events.TelemetryPayload {
	executing := d.executor.InFlight()
	if len(executing) == 0 {
		return events.TelemetryPayload{}
	}
	missionID := executing[0]

	flightLogID, ok := d.executor.ActiveFlightLog(missionID)
	if !ok {
		return events.TelemetryPayload{MissionID: missionID}
	}
	flightLog, err := d.store.GetFlightLog(ctx, flightLogID)
	if err != nil || flightLog == nil {
		d.logger.Warn("telemetry snapshot unavailable",
			logging.String(logging.FieldMissionID, missionID), logging.Error(err))
		return events.TelemetryPayload{MissionID: missionID}
	}

	payload := events.TelemetryPayload{
		MissionID: missionID,
		Recent:    flightLog.Telemetry,
	}
	if n := len(flightLog.Telemetry); n > 0 {
		payload.Sample = &flightLog.Telemetry[n-1]
	}
	return payload
}
