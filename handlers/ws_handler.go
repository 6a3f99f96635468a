package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"blogapi/middleware"
	"blogapi/models"
	"blogapi/observability"
	"blogapi/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

type WebSocketHandler struct {
	hubService *services.HubService
	upgrader   websocket.Upgrader
}

// NewWebSocketHandler accepts upgrades from the given origins, or from any
// origin when the list is empty.
func NewWebSocketHandler(hubService *services.HubService, allowedOrigins []string) *WebSocketHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &WebSocketHandler{
		hubService: hubService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

// HandleWebSocket godoc
// @Summary Subscribe to post_liked and comment_added notifications
// @Tags notifications
// @Security CookieAuth
// @Param token query string false "Session token, for clients that cannot send cookies"
// @Router /ws [get]
func (wh *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	log := observability.FromContext(c.Request.Context())

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Authentication required", "code": models.KindAuth})
		return
	}

	conn, err := wh.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	client := models.NewClient(wh.hubService.GetHub(), conn, userID)
	if !wh.hubService.Register(client) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	log.Info("websocket connected", "client_id", client.ID, "user_id", userID)

	go wh.writePump(client)
	go wh.readPump(client)
}

func (wh *WebSocketHandler) readPump(client *models.Client) {
	log := observability.Logger().With("client_id", client.ID, "user_id", client.UserID)
	defer func() {
		wh.hubService.Unregister(client)
		client.Conn.Close()
		log.Debug("websocket read pump closed")
	}()

	client.Conn.SetReadLimit(maxMessageSize)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn("unexpected websocket close", "error", err)
			}
			return
		}

		var wsMessage models.WSMessage
		if err := json.Unmarshal(message, &wsMessage); err != nil {
			log.Debug("ignoring malformed websocket message", "error", err)
			continue
		}

		switch wsMessage.Type {
		case "client_connect":
			wh.reply(client, models.WSMessage{
				Type: "client_connected",
				Data: map[string]string{"client_id": client.ID},
			})
		case "ping":
			wh.reply(client, models.WSMessage{Type: "pong"})
		default:
			log.Debug("unknown websocket message type", "type", wsMessage.Type)
		}
	}
}

// reply goes through the hub so that Send is only ever written from one goroutine.
func (wh *WebSocketHandler) reply(client *models.Client, msg models.WSMessage) {
	msg.ClientID = client.ID
	payload, err := json.Marshal(msg)
	if err != nil {
		observability.Logger().Error("failed to encode websocket reply", "type", msg.Type, "error", err)
		return
	}
	select {
	case client.Hub.Deliver <- models.Delivery{UserID: client.UserID, ClientID: client.ID, Payload: payload}:
	default:
	}
}

func (wh *WebSocketHandler) writePump(client *models.Client) {
	log := observability.Logger().With("client_id", client.ID, "user_id", client.UserID)
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
		log.Debug("websocket write pump closed")
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug("websocket write failed", "error", err)
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug("websocket ping failed", "error", err)
				return
			}
		}
	}
}
