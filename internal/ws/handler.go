package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rawblock/pixel-archives/internal/auth"
	"github.com/rawblock/pixel-archives/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS policy is enforced at the HTTP layer; the upgrade itself
		// accepts any origin that got that far.
		return true
	},
}

const writeTimeout = 5 * time.Second

// Handler upgrades GET /ws?canvas_id={uuid} connections into room
// subscriptions.
type Handler struct {
	rooms *Manager
	jwt   *auth.JwtService
}

func NewHandler(rooms *Manager, jwt *auth.JwtService) *Handler {
	return &Handler{rooms: rooms, jwt: jwt}
}

func (h *Handler) Handle(c *gin.Context) {
	log := logging.GetComponentLogger("ws")

	canvasID, err := uuid.Parse(c.Query("canvas_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid canvas_id"})
		return
	}

	token, err := c.Cookie("access_token")
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing access token"})
		return
	}
	claims, err := h.jwt.ValidateToken(token, auth.TokenAccess)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	room := h.rooms.GetOrCreateRoom(canvasID)
	sub := room.Subscribe()
	if sub == nil {
		log.Warn("room full", "canvas_id", canvasID)
		h.rooms.RemoveRoomIfEmpty(canvasID)
		return
	}
	log.Info("websocket connected", "canvas_id", canvasID, "user_id", userID)

	// Slot release runs on every exit path of this handler, including a
	// panic in the read pump; the room is removed once it is empty again.
	// The write pump runs in its own goroutine and is not covered by this
	// defer.
	defer func() {
		room.Unsubscribe(sub)
		room.Broadcast(UserLeft(userID))
		room.Broadcast(ConnectionCount(room.ConnectionCount()))
		h.rooms.RemoveRoomIfEmpty(canvasID)
		log.Info("websocket disconnected", "canvas_id", canvasID, "user_id", userID)
	}()

	room.Broadcast(UserJoined(userID))
	room.Broadcast(ConnectionCount(room.ConnectionCount()))

	done := make(chan struct{})
	pong := make(chan struct{}, 4)
	go h.writePump(conn, sub, pong, done, canvasID)

	h.readPump(conn, pong)
	close(done)
}

// readPump consumes client frames. Only Ping is meaningful; everything else
// keeps the connection alive until close or error.
func (h *Handler) readPump(conn *websocket.Conn, pong chan<- struct{}) {
	log := logging.GetComponentLogger("ws")
	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error("websocket read error", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var msg ClientMessage
		if err := json.Unmarshal(payload, &msg); err == nil && msg.Type == "Ping" {
			select {
			case pong <- struct{}{}:
			default:
			}
		}
	}
}

// writePump is the only goroutine writing to the connection: room updates,
// pong replies, and lag notices all funnel through it.
func (h *Handler) writePump(conn *websocket.Conn, sub *Subscriber, pong <-chan struct{}, done <-chan struct{}, canvasID uuid.UUID) {
	log := logging.GetComponentLogger("ws")
	for {
		select {
		case <-done:
			return
		case <-pong:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, []byte("pong")); err != nil {
				return
			}
		case update := <-sub.C:
			if lagged := sub.Lagged(); lagged > 0 {
				log.Warn("subscriber lagged", "canvas_id", canvasID, "dropped", lagged)
			}
			payload, err := json.Marshal(update)
			if err != nil {
				log.Error("failed to serialize update", "error", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}
