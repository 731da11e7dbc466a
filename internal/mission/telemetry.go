package mission

import (
	"math/rand/v2"
	"time"

	"groundlink/internal/store"
)

const (
	batteryFloor   = 20.0
	batteryDrain   = 80.0
	temperatureMin = 22.0
	temperatureMax = 30.0
)

// synthesizeSample interpolates a telemetry reading from the waypoint the
// simulated aircraft is traversing. Battery drains linearly with progress to
// a 20% floor; temperature is a bounded random reading.
func synthesizeSample(wp store.Waypoint, index int, progress float64) store.TelemetrySample {
	battery := 100 - progress*batteryDrain
	if battery < batteryFloor {
		battery = batteryFloor
	}
	return store.TelemetrySample{
		Timestamp:      time.Now().UTC(),
		Latitude:       wp.Latitude,
		Longitude:      wp.Longitude,
		AltitudeM:      wp.AltitudeM,
		SpeedMS:        wp.SpeedMS,
		BatteryPercent: battery,
		TemperatureC:   temperatureMin + rand.Float64()*(temperatureMax-temperatureMin),
		WaypointIndex:  index,
	}
}
