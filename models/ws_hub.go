package models

import (
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	EventPostLiked    = "post_liked"
	EventCommentAdded = "comment_added"
)

type Hub struct {
	Clients     map[*Client]bool
	Register    chan *Client
	Unregister  chan *Client
	Deliver     chan Delivery
	UserClients map[uint][]*Client
}

// Delivery is an encoded message addressed to every connection of one user,
// or only to ClientID when it is set.
type Delivery struct {
	UserID   uint
	ClientID string
	Payload  []byte
}

type Client struct {
	ID     string
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID uint
}

type WSMessage struct {
	Type     string      `json:"type"`
	Data     interface{} `json:"data"`
	ClientID string      `json:"clientId,omitempty"`
}

func NewHub() *Hub {
	return &Hub{
		Clients:     make(map[*Client]bool),
		Register:    make(chan *Client),
		Unregister:  make(chan *Client),
		Deliver:     make(chan Delivery, 256),
		UserClients: make(map[uint][]*Client),
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		ID:     uuid.New().String(),
		Hub:    hub,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		UserID: userID,
	}
}
