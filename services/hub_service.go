package services

import (
	"context"
	"encoding/json"

	"blogapi/models"
	"blogapi/observability"
)

// HubService fans notification events out to the websocket connections of
// their recipient. All client bookkeeping happens on the Run goroutine.
type HubService struct {
	hub  *models.Hub
	done chan struct{}
}

func NewHubService() *HubService {
	return &HubService{hub: models.NewHub(), done: make(chan struct{})}
}

func (h *HubService) GetHub() *models.Hub {
	return h.hub
}

// Run owns the hub until ctx is cancelled, then closes every client.
func (h *HubService) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.hub.Clients {
				h.unregisterClient(client)
			}
			return

		case client := <-h.hub.Register:
			h.registerClient(client)

		case client := <-h.hub.Unregister:
			h.unregisterClient(client)

		case d := <-h.hub.Deliver:
			h.deliver(d)
		}
	}
}

// Register hands client to the hub. It reports false, without blocking, once
// Run has returned.
func (h *HubService) Register(client *models.Client) bool {
	select {
	case h.hub.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister detaches client from the hub; after Run has returned it is a
// no-op.
func (h *HubService) Unregister(client *models.Client) {
	select {
	case h.hub.Unregister <- client:
	case <-h.done:
	}
}

func (h *HubService) registerClient(client *models.Client) {
	h.hub.Clients[client] = true
	h.hub.UserClients[client.UserID] = append(h.hub.UserClients[client.UserID], client)
	observability.Logger().Debug("websocket client registered", "client_id", client.ID, "user_id", client.UserID)
}

func (h *HubService) unregisterClient(client *models.Client) {
	if _, ok := h.hub.Clients[client]; !ok {
		return
	}
	delete(h.hub.Clients, client)
	close(client.Send)

	clients := h.hub.UserClients[client.UserID]
	for i, c := range clients {
		if c == client {
			clients = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(clients) == 0 {
		delete(h.hub.UserClients, client.UserID)
	} else {
		h.hub.UserClients[client.UserID] = clients
	}
	observability.Logger().Debug("websocket client unregistered", "client_id", client.ID, "user_id", client.UserID)
}

func (h *HubService) deliver(d models.Delivery) {
	clients := append([]*models.Client(nil), h.hub.UserClients[d.UserID]...)
	for _, client := range clients {
		if d.ClientID != "" && client.ID != d.ClientID {
			continue
		}
		select {
		case client.Send <- d.Payload:
		default:
			h.unregisterClient(client)
		}
	}
}

// BroadcastToUser queues an event for userID. It never blocks; the event is
// dropped when the hub is backed up.
func (h *HubService) BroadcastToUser(userID uint, messageType string, data interface{}) {
	payload, err := json.Marshal(models.WSMessage{Type: messageType, Data: data})
	if err != nil {
		observability.Logger().Error("failed to encode websocket message", "type", messageType, "error", err)
		return
	}

	select {
	case h.hub.Deliver <- models.Delivery{UserID: userID, Payload: payload}:
	default:
		observability.Logger().Warn("dropping websocket message, hub backlog full", "type", messageType, "user_id", userID)
	}
}
