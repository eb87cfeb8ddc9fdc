package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"bizinsight-be/internal/pkg/logger"
	"bizinsight-be/pkg/events"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "insight_cluster_events"

// Frame is the envelope of every message written to a socket.
type Frame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type clusterMessage struct {
	Origin       string          `json:"origin"`
	TargetUserID string          `json:"target_user_id"`
	Message      json.RawMessage `json:"message"`
}

// Hub tracks connected sockets per user and pushes server events to them. With Redis
// configured, events are relayed to the sockets held by other instances.
type Hub struct {
	id string

	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	rdb    redis.UniversalClient
	logger logger.ILogger
}

var _ events.Publisher = &Hub{}

func NewHub(rdb redis.UniversalClient, log logger.ILogger) *Hub {
	return &Hub{
		id:         uuid.NewString(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			h.mu.Unlock()
			h.logger.Info("HUB", "Client registered", map[string]interface{}{"user_id": client.UserID.String()})

		case client := <-h.unregister:
			h.mu.Lock()
			clients := h.clients[client.UserID]
			for i, c := range clients {
				if c == client {
					h.clients[client.UserID] = append(clients[:i], clients[i+1:]...)
					break
				}
			}
			if len(h.clients[client.UserID]) == 0 {
				delete(h.clients, client.UserID)
			}
			h.mu.Unlock()
			h.logger.Info("HUB", "Client unregistered", map[string]interface{}{"user_id": client.UserID.String()})

		case <-ctx.Done():
			return
		}
	}
}

// Connected reports how many sockets userID has open on this instance.
func (h *Hub) Connected(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Publish pushes an event to the sockets of the user named in its payload.
// Events without a user are ignored.
func (h *Hub) Publish(ctx context.Context, event events.Event) error {
	payload := event.Payload()
	target, _ := payload["userId"].(string)
	userID, err := uuid.Parse(target)
	if err != nil {
		return nil
	}

	data, err := json.Marshal(Frame{Type: event.EventType(), Data: payload})
	if err != nil {
		return err
	}

	h.deliver(userID, data)

	if h.rdb != nil {
		msg, err := json.Marshal(clusterMessage{Origin: h.id, TargetUserID: userID.String(), Message: data})
		if err != nil {
			return err
		}
		return h.rdb.Publish(ctx, clusterChannel, msg).Err()
	}
	return nil
}

func (h *Hub) deliver(userID uuid.UUID, data []byte) {
	h.mu.RLock()
	clients := append([]*Client(nil), h.clients[userID]...)
	h.mu.RUnlock()

	for _, client := range clients {
		if !client.trySend(data) {
			h.logger.Warn("HUB", "Client send buffer full, dropping event", map[string]interface{}{"user_id": userID.String()})
		}
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var cm clusterMessage
			if err := json.Unmarshal([]byte(msg.Payload), &cm); err != nil {
				h.logger.Warn("HUB", "Cluster message unreadable", map[string]interface{}{"error": err.Error()})
				continue
			}
			if cm.Origin == h.id {
				continue
			}

			userID, err := uuid.Parse(cm.TargetUserID)
			if err != nil {
				continue
			}
			h.deliver(userID, cm.Message)
		}
	}
}
