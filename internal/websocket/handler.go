package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lecturehub/backend/internal/auth"
	"github.com/lecturehub/backend/internal/lecture"
	"github.com/lecturehub/backend/internal/logger"
	"github.com/lecturehub/backend/internal/pubsub"
)

// Application close codes, sent after a successful upgrade so the client can
// tell refusals apart from transport failures.
const (
	// CloseConnectFailure covers unexpected internal failures at connect time.
	CloseConnectFailure = 4000

	// CloseMissingIdentifier means the path carried no usable lecture id,
	// whether absent or unparseable.
	CloseMissingIdentifier = 4001
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Configure allowed origins for production
		return true
	},
}

// Handler upgrades HTTP requests into lecture status subscriptions.
type Handler struct {
	broker      *pubsub.Broker
	authService *auth.Service
	log         *logger.Logger
}

// NewHandler creates a new WebSocket handler.
func NewHandler(broker *pubsub.Broker, authService *auth.Service) *Handler {
	return &Handler{
		broker:      broker,
		authService: authService,
		log:         logger.Default().WithComponent("websocket"),
	}
}

// ServeWS handles a subscription request for /ws/lectures/{lecture_id}/.
// Refusals happen after the upgrade, over application close codes: a missing
// or malformed lecture id closes with 4001, internal connect failures with
// 4000. The lecture does not need to exist yet; subscribing before upload is
// fine.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	rawID := r.PathValue("lecture_id")
	if rawID == "" {
		h.refuse(conn, CloseMissingIdentifier, "missing lecture identifier")
		return
	}

	lectureID, err := uuid.Parse(rawID)
	if err != nil {
		h.refuse(conn, CloseMissingIdentifier, "invalid lecture identifier")
		return
	}

	// Authentication is optional on this endpoint; a valid token only
	// attributes the connection in the logs.
	fields := map[string]interface{}{"lecture": lectureID.String()}
	if token := r.URL.Query().Get("token"); token != "" {
		if claims, err := h.authService.ValidateAccessToken(token); err == nil {
			fields["user"] = claims.UserID
		}
	}
	h.log.Info(r.Context(), "websocket client connected", fields)

	client := NewClient(conn, h.broker, lecture.TopicName(lectureID), h.log)
	go client.WritePump()
	go client.ReadPump()
}

// refuse closes a just-upgraded connection with an application close code.
func (h *Handler) refuse(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(writeWait)
	msg := websocket.FormatCloseMessage(code, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		h.log.Warn(context.Background(), "failed to send close frame", map[string]interface{}{
			"error": err.Error(),
		})
	}
	conn.Close()
}
