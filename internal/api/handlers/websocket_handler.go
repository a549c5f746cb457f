package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/isdelr/quill-be/internal/services"
	ws "github.com/isdelr/quill-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler upgrades HTTP connections to live-feed websocket connections.
type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocketHandler. Browser connections are only
// accepted from allowedOrigins; "*" allows any origin.
func NewWebSocketHandler(hub *ws.Hub, allowedOrigins []string) *WebSocketHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Non-browser clients send no Origin header.
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// subscribePayload is the payload of subscribe/unsubscribe actions.
type subscribePayload struct {
	PostID int64 `json:"post_id"`
}

// Serve handles the WebSocket connection request.
// Supports both /ws and /ws/posts/{post_id} routes.
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	topic := ws.GlobalTopic
	if raw := chi.URLParam(r, "post_id"); raw != "" {
		postID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || postID <= 0 {
			writeValidationError(w, map[string]string{"post_id": "positive integer"})
			return
		}
		topic = services.PostTopic(postID)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}

	client := ws.NewClient(h.hub, conn, topic)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go func() {
		client.ReadPump(h.handleIncomingWSMessage)
		h.hub.Unregister(client)
	}()
}

// handleIncomingWSMessage processes messages received from a websocket client.
func (h *WebSocketHandler) handleIncomingWSMessage(client *ws.Client, message []byte) {
	var msg struct {
		Action  string          `json:"action"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Debug().Err(err).Str("client_id", client.ID).Msg("Error decoding websocket message")
		h.hub.SendTo(client, ws.NewErrorMessage("Invalid message"))
		return
	}

	switch msg.Action {
	case "ping":
		h.hub.SendTo(client, ws.Message{Action: "pong"}.Encode())

	case "subscribe", "unsubscribe":
		var payload subscribePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.PostID <= 0 {
			h.hub.SendTo(client, ws.NewErrorMessage("Invalid payload: post_id must be a positive integer"))
			return
		}
		topic := services.PostTopic(payload.PostID)
		if msg.Action == "subscribe" {
			h.hub.Subscribe(client, topic)
		} else {
			h.hub.Unsubscribe(client, topic)
		}
		log.Debug().Str("client_id", client.ID).Str("action", msg.Action).Str("topic", topic).Msg("Subscription changed")
		h.hub.SendTo(client, ws.Message{Action: msg.Action + "d", Topic: topic}.Encode())

	default:
		log.Warn().Str("action", msg.Action).Msg("Unknown websocket action received")
		h.hub.SendTo(client, ws.NewErrorMessage("Unknown action: "+msg.Action))
	}
}
