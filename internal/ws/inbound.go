package ws

import (
	"context"
	"encoding/json"

	"groundlink/internal/events"
	"groundlink/internal/logging"
	"groundlink/internal/store"
)

// Recognized inbound message types.
const (
	msgTabletRegister   = "tablet-register"
	msgTelemetryRequest = "telemetry-request"
)

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type tabletRegisterData struct {
	Name            string            `json:"name"`
	IP              string            `json:"ip"`
	DisplaySettings map[string]string `json:"displaySettings"`
}

func (s *Server) handleInbound(ctx context.Context, connection *conn, remoteAddr string, msg inboundMessage) {
	switch msg.Type {
	case msgTabletRegister:
		s.handleTabletRegister(ctx, connection, remoteAddr, msg.Data)
	case msgTelemetryRequest:
		s.handleTelemetryRequest(ctx, connection)
	default:
		s.logger.Debug("unknown inbound message type",
			logging.String(logging.FieldConnID, connection.ID()),
			logging.String("type", msg.Type),
		)
	}
}

// handleTabletRegister upserts the device record and associates it with this
// connection. Registration is best-effort; a failure never drops the
// connection.
func (s *Server) handleTabletRegister(ctx context.Context, connection *conn, remoteAddr string, data json.RawMessage) {
	var reg tabletRegisterData
	if err := json.Unmarshal(data, &reg); err != nil {
		s.logger.Debug("malformed tablet-register",
			logging.String(logging.FieldConnID, connection.ID()), logging.Error(err))
		return
	}
	if reg.Name == "" {
		s.logger.Debug("tablet-register without a name",
			logging.String(logging.FieldConnID, connection.ID()))
		return
	}

	address := reg.IP
	if address == "" {
		address = remoteAddr
	}

	device, err := s.store.UpsertDevice(ctx, &store.Device{
		Name:            reg.Name,
		Kind:            "tablet",
		Address:         address,
		DisplaySettings: reg.DisplaySettings,
	})
	if err != nil {
		s.logger.Warn("device registration failed",
			logging.String(logging.FieldConnID, connection.ID()), logging.Error(err))
		return
	}

	connection.setDeviceID(device.ID)
	s.logger.Info("device registered",
		logging.String(logging.FieldConnID, connection.ID()),
		logging.String("device", device.Name),
	)
}

// handleTelemetryRequest answers with the current telemetry snapshot, sent to
// the requesting connection only.
func (s *Server) handleTelemetryRequest(ctx context.Context, connection *conn) {
	if connection.DeviceID() != "" {
		if err := s.store.TouchDevice(ctx, connection.DeviceID()); err != nil {
			s.logger.Debug("touch device", logging.Error(err))
		}
	}
	payload := events.TelemetryPayload{}
	if s.telemetry != nil {
		payload = s.telemetry.CurrentTelemetry(ctx)
	}
	s.publisher.SendTo(connection.ID(), events.TypeTelemetryUpdate, payload)
}
