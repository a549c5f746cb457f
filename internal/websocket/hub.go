package websocket

import "github.com/rs/zerolog/log"

// GlobalTopic is the topic of clients that did not subscribe to a specific post.
const GlobalTopic = "global"

type topicMessage struct {
	topic string
	data  []byte
}

type clientMessage struct {
	client *Client
	data   []byte
}

type subscription struct {
	client *Client
	topic  string
}

// Hub maintains the set of active clients and broadcasts messages to them.
// All client and subscription state is owned by the Run goroutine.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Messages for every connected client.
	broadcast chan []byte

	// Messages for the subscribers of one topic.
	topicBroadcast chan topicMessage

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Replies addressed to a single client.
	direct chan clientMessage

	subscribe   chan subscription
	unsubscribe chan subscription

	// A map of topics (post IDs) to the set of clients subscribed to it.
	subscriptions map[string]map[*Client]bool

	done chan struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		broadcast:      make(chan []byte, 64),
		topicBroadcast: make(chan topicMessage, 64),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		direct:         make(chan clientMessage, 16),
		subscribe:      make(chan subscription),
		unsubscribe:    make(chan subscription),
		clients:        make(map[*Client]bool),
		subscriptions:  make(map[string]map[*Client]bool),
		done:           make(chan struct{}),
	}
}

// Run starts the Hub's message processing loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			log.Info().Int("total_clients", len(h.clients)).Str("client_id", client.ID).Msg("Client connected")
			// If client has a topic on registration, subscribe them.
			if client.Topic != "" && client.Topic != GlobalTopic {
				h.addSubscription(client, client.Topic)
			}
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				log.Info().Int("total_clients", len(h.clients)).Str("client_id", client.ID).Msg("Client disconnected")
			}
		case sub := <-h.subscribe:
			if h.clients[sub.client] {
				h.addSubscription(sub.client, sub.topic)
			}
		case sub := <-h.unsubscribe:
			h.removeFromTopic(sub.client, sub.topic)
		case msg := <-h.direct:
			if h.clients[msg.client] {
				h.send(msg.client, msg.data)
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				h.send(client, message)
			}
		case msg := <-h.topicBroadcast:
			for client := range h.subscriptions[msg.topic] {
				h.send(client, msg.data)
			}
		}
	}
}

// Stop terminates Run and closes every client's send channel.
func (h *Hub) Stop() {
	close(h.done)
}

// Register adds client to the hub. It reports false if the hub is stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes client from the hub and closes its send channel.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastAll sends an action to every connected client.
func (h *Hub) BroadcastAll(action string, payload interface{}) {
	data := Message{Action: action, Payload: payload}.Encode()
	if data == nil {
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

// BroadcastTopic sends an action to all clients subscribed to topic.
func (h *Hub) BroadcastTopic(topic, action string, payload interface{}) {
	data := Message{Action: action, Topic: topic, Payload: payload}.Encode()
	if data == nil {
		return
	}
	select {
	case h.topicBroadcast <- topicMessage{topic: topic, data: data}:
	case <-h.done:
	}
}

// SendTo delivers data to a single client if it is still connected.
func (h *Hub) SendTo(client *Client, data []byte) {
	if data == nil {
		return
	}
	select {
	case h.direct <- clientMessage{client: client, data: data}:
	case <-h.done:
	}
}

// Subscribe adds client to topic.
func (h *Hub) Subscribe(client *Client, topic string) {
	select {
	case h.subscribe <- subscription{client: client, topic: topic}:
	case <-h.done:
	}
}

// Unsubscribe removes client from topic.
func (h *Hub) Unsubscribe(client *Client, topic string) {
	select {
	case h.unsubscribe <- subscription{client: client, topic: topic}:
	case <-h.done:
	}
}

// send delivers without blocking; slow clients are dropped.
func (h *Hub) send(client *Client, message []byte) {
	select {
	case client.Send <- message:
	default:
		log.Warn().Str("client_id", client.ID).Msg("Client send buffer full, dropping client")
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
	h.removeSubscription(client)
}

func (h *Hub) addSubscription(client *Client, topic string) {
	if h.subscriptions[topic] == nil {
		h.subscriptions[topic] = make(map[*Client]bool)
	}
	h.subscriptions[topic][client] = true
}

func (h *Hub) removeFromTopic(client *Client, topic string) {
	if subs, ok := h.subscriptions[topic]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.subscriptions, topic)
		}
	}
}

func (h *Hub) removeSubscription(client *Client) {
	for topic := range h.subscriptions {
		h.removeFromTopic(client, topic)
	}
}
