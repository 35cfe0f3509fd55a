package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/devboard/devboard/internal/domain"
	"github.com/devboard/devboard/internal/hub"
	"github.com/devboard/devboard/internal/service"
	"github.com/devboard/devboard/pkg/jwt"
	pkglog "github.com/devboard/devboard/pkg/log"
)

// WSHandler upgrades WebSocket connections and dispatches their frames.
type WSHandler struct {
	hub      *hub.Hub
	tokens   *jwt.Manager
	realtime service.RealtimeService
	upgrader websocket.Upgrader
}

// NewWSHandler creates the WebSocket handler.
func NewWSHandler(h *hub.Hub, tokens *jwt.Manager, realtime service.RealtimeService) *WSHandler {
	return &WSHandler{
		hub:      h,
		tokens:   tokens,
		realtime: realtime,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes registers the WebSocket endpoint.
func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", h.HandleWS)
}

// HandleWS authenticates the handshake and, only then, upgrades. An
// unauthenticated socket never reaches the event loop.
func (h *WSHandler) HandleWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		pkglog.L().Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	sid := uuid.New().String()
	session := domain.NewSession(sid)
	session.Authenticate(claims.UserID, claims.Email, claims.Username)

	client := &hub.Client{
		ID:      sid,
		Hub:     h.hub,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		Session: session,
	}
	client.SetDisconnectHandler(h.realtime.HandleDisconnect)

	h.hub.Register(client)

	pkglog.L().Info().
		Str(pkglog.FieldSID, sid).
		Uint(pkglog.FieldUserID, claims.UserID).
		Msg("websocket connected")

	go client.WritePump()
	go client.ReadPump(h.handleMessage)
}

// handleMessage dispatches one inbound frame. ReadPump calls it
// serially per connection.
func (h *WSHandler) handleMessage(c *hub.Client, raw []byte) {
	var base domain.BaseMessage
	if err := json.Unmarshal(raw, &base); err != nil {
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, domain.ErrInvalidPayload))
		return
	}

	ctx := pkglog.WithLogger(context.Background(), pkglog.L().With().
		Str(pkglog.FieldSID, c.ID).
		Uint(pkglog.FieldUserID, c.Session.UserID()).
		Str(pkglog.FieldEvent, base.Type).
		Logger())

	switch base.Type {
	case domain.MsgTypeJoinProject:
		var msg domain.JoinProjectMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.SendMessage(domain.NewErrorAck(base.Seq, domain.ErrInvalidPayload))
			return
		}
		h.realtime.HandleJoinProject(ctx, c, &msg)

	case domain.MsgTypeSendMessage:
		var msg domain.SendMessageMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.SendMessage(domain.NewErrorAck(base.Seq, domain.ErrInvalidPayload))
			return
		}
		h.realtime.HandleSendMessage(ctx, c, &msg)

	case domain.MsgTypeCallJoin:
		var msg domain.CallJoinMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, domain.ErrInvalidPayload))
			return
		}
		h.realtime.HandleCallJoin(ctx, c, &msg)

	case domain.MsgTypeCallSignal:
		var msg domain.CallSignalMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, domain.ErrInvalidPayload))
			return
		}
		h.realtime.HandleCallSignal(ctx, c, &msg)

	case domain.MsgTypeCallLeave:
		var msg domain.CallLeaveMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, domain.ErrInvalidPayload))
			return
		}
		h.realtime.HandleCallLeave(ctx, c, &msg)

	case domain.MsgTypePing:
		c.SendMessage(&domain.BaseMessage{Type: domain.MsgTypePong, Seq: base.Seq})

	default:
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "unknown message type"))
	}
}
