package websocket

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs attaches a socket to the hub and serves chat turns on it until it closes.
func ServeWs(hub *Hub, c *websocket.Conn, userID uuid.UUID, chat ChatFunc) {
	client := newClient(hub, c, userID, chat)
	client.Hub.register <- client

	go client.writePump()
	client.readPump()
}
