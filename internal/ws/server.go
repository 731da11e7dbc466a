package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"groundlink/internal/config"
	"groundlink/internal/events"
	"groundlink/internal/logging"
	"groundlink/internal/store"
)

// TelemetrySource supplies the current telemetry snapshot for on-demand
// telemetry-request messages.
type TelemetrySource interface {
	CurrentTelemetry(ctx context.Context) events.TelemetryPayload
}

// Server upgrades HTTP requests on the observer endpoint and manages the
// lifetime of each observer connection.
type Server struct {
	cfg       *config.Config
	registry  *events.Registry
	publisher events.Publisher
	store     *store.Store
	telemetry TelemetrySource
	logger    *slog.Logger
	upgrader  websocket.Upgrader
}

// NewServer constructs the observer WebSocket server.
func NewServer(cfg *config.Config, registry *events.Registry, publisher events.Publisher, st *store.Store, telemetry TelemetrySource, logger *slog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		registry:  registry,
		publisher: publisher,
		store:     st,
		telemetry: telemetry,
		logger:    logging.NewComponentLogger(logger, "ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Observers connect from tablets and simulators on the local
			// network; the command surface binds to loopback by default.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP handles the persistent observer channel endpoint.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", logging.Error(err))
		return
	}

	connection := newConn(
		uuid.NewString(),
		wsConn,
		s.cfg.Observers.SendBuffer,
		time.Duration(s.cfg.Observers.PingIntervalSeconds)*time.Second,
		time.Duration(s.cfg.Observers.WriteTimeoutSeconds)*time.Second,
	)

	s.registry.Register(connection)
	s.logger.Info("observer connected",
		logging.String(logging.FieldConnID, connection.ID()),
		logging.String("remote", r.RemoteAddr),
		logging.Int("observers", s.registry.Len()),
	)

	go connection.writePump()
	s.readLoop(r.Context(), connection, r.RemoteAddr)
}

// readLoop consumes inbound messages until the peer disconnects, then
// unregisters the connection.
func (s *Server) readLoop(ctx context.Context, connection *conn, remoteAddr string) {
	defer func() {
		s.registry.Unregister(connection.ID())
		_ = connection.Close()
		s.logger.Info("observer disconnected",
			logging.String(logging.FieldConnID, connection.ID()),
			logging.Int("observers", s.registry.Len()),
		)
	}()

	pongWait := 2 * time.Duration(s.cfg.Observers.PingIntervalSeconds) * time.Second
	_ = connection.ws.SetReadDeadline(time.Now().Add(pongWait))
	connection.ws.SetPongHandler(func(string) error {
		return connection.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := connection.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("read error", logging.String(logging.FieldConnID, connection.ID()), logging.Error(err))
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Debug("malformed inbound message",
				logging.String(logging.FieldConnID, connection.ID()), logging.Error(err))
			continue
		}
		s.handleInbound(ctx, connection, remoteAddr, msg)
	}
}
