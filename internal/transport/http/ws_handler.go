package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"trivia-room-service/internal/app"
	"trivia-room-service/internal/domain"
)

// ConnectionConfig holds websocket timing limits.
type ConnectionConfig struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 4096,
		SendBuffer:     64,
	}
}

type WSHandler struct {
	coordinator *app.Coordinator
	hub         *Hub
	config      ConnectionConfig
	upgrader    websocket.Upgrader
}

func NewWSHandler(coordinator *app.Coordinator, hub *Hub, config ConnectionConfig) *WSHandler {
	return &WSHandler{
		coordinator: coordinator,
		hub:         hub,
		config:      config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    domain.EventName `json:"type"`
	Payload json.RawMessage  `json:"payload"`
}

type roomPayload struct {
	RoomID string `json:"roomId"`
}

type answerPayload struct {
	RoomID        string `json:"roomId"`
	QuestionIndex int    `json:"questionIndex"`
	AnswerIndex   int    `json:"answerIndex"`
	ElapsedMs     int64  `json:"elapsedMs"`
}

var (
	errUnsupportedType = errors.New("unsupported message type")
	errBadPayload      = errors.New("invalid payload")
)

// ServeWS upgrades the request, assigns the connection an opaque ID and feeds
// its frames to the coordinator until the socket closes.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}

	client := NewClient(uuid.NewString(), h.config.SendBuffer)
	h.hub.Register(client)
	log.Info().Str("conn_id", client.ID).Str("remote_addr", r.RemoteAddr).Msg("connection opened")

	writerDone := make(chan struct{})
	go h.writePump(conn, client, writerDone)

	h.hub.ToConn(client.ID, domain.Event{
		Name:    domain.EventConnected,
		Payload: domain.PlayerPayload{PlayerID: client.ID},
	})

	h.readPump(r.Context(), conn, client)

	// The request context is done once the handler unwinds; leave with a fresh one.
	if err := h.coordinator.Disconnect(context.Background(), client.ID); err != nil && !app.IsStale(err) {
		log.Error().Err(err).Str("conn_id", client.ID).Msg("disconnect failed")
	}
	h.hub.Unregister(client.ID)
	<-writerDone
	log.Info().Str("conn_id", client.ID).Msg("connection closed")
}

func (h *WSHandler) readPump(ctx context.Context, conn *websocket.Conn, client *Client) {
	conn.SetReadLimit(h.config.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				h.sendError(client.ID, "invalid message")
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("conn_id", client.ID).Msg("ws read error")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))

		err := h.dispatch(ctx, client.ID, inbound)
		switch {
		case err == nil:
		case errors.Is(err, errUnsupportedType):
			h.sendError(client.ID, "unsupported message type")
		case errors.Is(err, errBadPayload):
			h.sendError(client.ID, "invalid "+string(inbound.Type)+" payload")
		case app.IsStale(err):
			log.Debug().Err(err).Str("conn_id", client.ID).Str("event", string(inbound.Type)).Msg("event dropped")
		case errors.Is(err, domain.ErrRoomFull), errors.Is(err, domain.ErrGameInProgress):
			// The coordinator already told the requester.
			log.Info().Err(err).Str("conn_id", client.ID).Msg("join rejected")
		default:
			log.Error().Err(err).Str("conn_id", client.ID).Str("event", string(inbound.Type)).Msg("event failed")
			h.sendError(client.ID, "internal error")
		}
	}
}

func (h *WSHandler) dispatch(ctx context.Context, connID string, inbound inboundMessage) error {
	switch inbound.Type {
	case domain.EventJoinRoom, domain.EventPlayerReady, domain.EventStartGameRequest:
		var payload roomPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errBadPayload
		}
		switch inbound.Type {
		case domain.EventJoinRoom:
			return h.coordinator.Join(ctx, connID, payload.RoomID)
		case domain.EventPlayerReady:
			return h.coordinator.Ready(ctx, connID, payload.RoomID)
		default:
			return h.coordinator.RequestStart(ctx, connID, payload.RoomID)
		}
	case domain.EventSubmitAnswer:
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errBadPayload
		}
		return h.coordinator.SubmitAnswer(ctx, connID, domain.AnswerSubmission{
			RoomID:        payload.RoomID,
			QuestionIndex: payload.QuestionIndex,
			AnswerIndex:   payload.AnswerIndex,
			ElapsedMs:     payload.ElapsedMs,
		})
	default:
		return errUnsupportedType
	}
}

func (h *WSHandler) sendError(connID, message string) {
	h.hub.ToConn(connID, domain.Event{
		Name:    domain.EventError,
		Payload: domain.ErrorPayload{Message: message},
	})
}

// writePump is the only goroutine writing to conn.
func (h *WSHandler) writePump(conn *websocket.Conn, client *Client, done chan<- struct{}) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
		close(done)
	}()

	for {
		select {
		case msg, ok := <-client.Send():
			_ = conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Warn().Err(err).Str("conn_id", client.ID).Msg("ws write error")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
