package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"housing-chat/internal/chatevents"
	"housing-chat/internal/identity"
	"housing-chat/internal/presence"
	"housing-chat/internal/redis"
	"housing-chat/internal/transport/httpdto"
	"housing-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// clientFrame is the inbound control frame clients use to manage channel
// subscriptions over an open connection.
type clientFrame struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

type serverFrame struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Handler struct {
	resolver   identity.Resolver
	hub        *Hub
	authorizer *ChannelAuthorizer
	presence   presence.Store
	limiter    *redis.RateLimiter
	log        *logger.Logger
}

func NewHandler(resolver identity.Resolver, hub *Hub, authorizer *ChannelAuthorizer, presenceStore presence.Store, limiter *redis.RateLimiter, log *logger.Logger) *Handler {
	return &Handler{
		resolver:   resolver,
		hub:        hub,
		authorizer: authorizer,
		presence:   presenceStore,
		limiter:    limiter,
		log:        log,
	}
}

// Connect upgrades the request to a WebSocket session. The session is
// auto-subscribed to the party's own delivery queue and the presence topic;
// further subscriptions go through the authorizer.
func (h *Handler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	principal, err := h.resolver.Resolve(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	if h.limiter != nil {
		key := fmt.Sprintf("%s:%s", principal.Party.Type, principal.Party.ID)
		result, err := h.limiter.AllowConnect(c.Request.Context(), key)
		if err != nil {
			h.log.Errorf("connect rate limit check failed: %v", err)
		} else if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("connection rate limit exceeded", "RATE_LIMITED"))
			return
		}
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := NewClient(conn, principal)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.hub.Register(client)
	go client.WriteLoop(ctx)

	h.hub.Subscribe(client, chatevents.PartyQueue(principal.Party))
	h.hub.Subscribe(client, chatevents.TopicPresence)

	if err := h.presence.SetOnline(ctx, principal.Party, true); err != nil {
		h.log.Errorf("failed to mark %s %s online: %v", principal.Party.Type, principal.Party.ID, err)
	}

	h.readLoop(ctx, client)

	if err := h.presence.SetOnline(context.Background(), principal.Party, false); err != nil {
		h.log.Errorf("failed to mark %s %s offline: %v", principal.Party.Type, principal.Party.ID, err)
	}
	h.hub.Unregister(client)
}

func (h *Handler) readLoop(ctx context.Context, client *Client) {
	conn := client.Conn
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}

		switch frame.Action {
		case "subscribe":
			allowed, err := h.authorizer.CanSubscribe(ctx, client.Principal.Party, frame.Channel)
			if err != nil {
				h.log.Errorf("subscription check failed for channel %s: %v", frame.Channel, err)
			}
			if err != nil || !allowed {
				h.sendFrame(client, serverFrame{Type: "error", Channel: frame.Channel, Error: "subscription denied"})
				continue
			}
			h.hub.Subscribe(client, frame.Channel)
			h.sendFrame(client, serverFrame{Type: "subscribed", Channel: frame.Channel})

		case "unsubscribe":
			h.hub.Unsubscribe(client, frame.Channel)
			h.sendFrame(client, serverFrame{Type: "unsubscribed", Channel: frame.Channel})
		}
	}
}

func (h *Handler) sendFrame(client *Client, frame serverFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}
	client.SendMessage(payload)
}
