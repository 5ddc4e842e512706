package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/tastebuds/room-server-go/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second
)

// Event is a room change notification. It intentionally carries no room
// state: subscribers re-read the latest snapshot on every notification, so
// rapid successive writes coalesce into whatever is current at read time.
type Event struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

type Client struct {
	RoomID string
	Events chan Event
	Done   chan struct{}
}

// Broker fans room change notifications out to local SSE clients. Redis
// pub/sub carries the notifications so that subscribers on other server
// instances see changes committed here.
type Broker struct {
	redis   *redisclient.Client
	clients map[string]map[*Client]bool   // roomID -> set of clients
	rooms   map[string]context.CancelFunc // roomID -> pubsub goroutine cancel
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:   redisClient,
		clients: make(map[string]map[*Client]bool),
		rooms:   make(map[string]context.CancelFunc),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (b *Broker) Subscribe(roomID string) *Client {
	client := &Client{
		RoomID: roomID,
		Events: make(chan Event, 16),
		Done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.clients[roomID] == nil {
		b.clients[roomID] = make(map[*Client]bool)
		roomCtx, cancelRoom := context.WithCancel(b.ctx)
		b.rooms[roomID] = cancelRoom
		go b.subscribeToRedis(roomCtx, roomID)
	}
	b.clients[roomID][client] = true
	clientCount := len(b.clients[roomID])
	b.mu.Unlock()

	log.Info().
		Str("roomId", roomID).
		Int("clientCount", clientCount).
		Msg("sse client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if clients, ok := b.clients[client.RoomID]; ok {
		delete(clients, client)
		close(client.Done)

		// The last local subscriber leaving tears down the room's redis
		// pubsub; a later subscriber gets a fresh one.
		if len(clients) == 0 {
			delete(b.clients, client.RoomID)
			if cancelRoom, ok := b.rooms[client.RoomID]; ok {
				cancelRoom()
				delete(b.rooms, client.RoomID)
			}
		}

		log.Info().
			Str("roomId", client.RoomID).
			Int("clientCount", len(clients)).
			Msg("sse client unsubscribed")
	}
}

// Publish announces a committed room mutation to every subscriber, local
// and remote.
func (b *Broker) Publish(ctx context.Context, roomID string, eventType string) error {
	data, err := json.Marshal(Event{Type: eventType, RoomID: roomID})
	if err != nil {
		return err
	}

	channel := redisclient.RoomChannel(roomID)
	return b.redis.Publish(ctx, channel, data).Err()
}

func (b *Broker) subscribeToRedis(ctx context.Context, roomID string) {
	channel := redisclient.RoomChannel(roomID)
	pubsub := b.redis.Subscribe(ctx, channel)
	defer pubsub.Close()

	log.Debug().
		Str("roomId", roomID).
		Str("channel", channel).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal room event")
				continue
			}

			b.broadcast(roomID, event)
		}
	}
}

func (b *Broker) broadcast(roomID string, event Event) {
	b.mu.RLock()
	clients := b.clients[roomID]
	b.mu.RUnlock()

	for client := range clients {
		select {
		case client.Events <- event:
		default:
			// Dropping is safe: the client re-reads the full snapshot on
			// the next notification it does receive.
			log.Warn().
				Str("roomId", roomID).
				Msg("client event buffer full, dropping notification")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, clients := range b.clients {
		for client := range clients {
			close(client.Done)
		}
	}
	b.clients = make(map[string]map[*Client]bool)
	b.rooms = make(map[string]context.CancelFunc)
}

func (b *Broker) ClientCount(roomID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[roomID])
}
