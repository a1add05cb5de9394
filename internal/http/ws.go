package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/observability"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

type wsEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinMessage struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

type locationMessage struct {
	Lat       float64             `json:"lat"`
	Lng       float64             `json:"lng"`
	Available bool                `json:"available"`
	Class     models.VehicleClass `json:"vehicle_class,omitempty"`
}

// handleWS holds a party's push channel. The first message must be a
// join naming the caller; after that, operator connections may stream
// update-location messages. Disconnection only drops the registry
// entry, it never touches ride state.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		s.log.Warn("websocket upgrade failed", "error", err, "remote_addr", remoteIP(r))
		return
	}

	var env wsEnvelope
	if err := conn.ReadJSON(&env); err != nil || env.Event != "join" {
		_ = conn.Close()
		return
	}
	var join joinMessage
	if err := json.Unmarshal(env.Data, &join); err != nil || join.ID == "" {
		_ = conn.Close()
		return
	}
	if join.Role != roleRider && join.Role != roleOperator {
		_ = conn.Close()
		return
	}

	s.presence.Register(join.ID, conn)
	s.log.Info("party joined", "party_id", join.ID, "role", join.Role)

	defer func() {
		s.presence.Unregister(join.ID)
		_ = conn.Close()
		s.log.Info("party disconnected", "party_id", join.ID)
	}()

	for {
		var env wsEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		if env.Event != "update-location" || join.Role != roleOperator {
			continue
		}
		var loc locationMessage
		if err := json.Unmarshal(env.Data, &loc); err != nil {
			s.log.Warn("invalid location message", "party_id", join.ID, "error", err)
			continue
		}
		s.ingestPosition(r.Context(), models.Operator{
			ID:        join.ID,
			Position:  models.Coord{Lat: loc.Lat, Lng: loc.Lng},
			Available: loc.Available,
			Class:     loc.Class,
		})
	}
}

// ingestPosition fans a position report into the location pipeline:
// Kafka when configured, and the local index so single-process runs
// stay consistent without the consumer.
func (s *Server) ingestPosition(ctx context.Context, op models.Operator) {
	if s.kafka != nil {
		if err := s.kafka.PublishPosition(op); err != nil {
			s.log.Warn("kafka publish failed", "operator_id", op.ID, "error", err)
		}
	}
	if err := s.geo.Upsert(ctx, op); err != nil {
		s.log.Warn("geo upsert failed", "operator_id", op.ID, "error", err)
		return
	}
	observability.OperatorPositionUpdates.Inc()
}
