package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"social-pulse/internal/domain"
	"social-pulse/internal/infra/metrics"
)

// Hub держит активные WebSocket подключения, сгруппированные по пользователю.
// У одного пользователя может быть несколько подключений (вкладки, устройства).
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client

	// done закрывается при выходе из Run: отправители в register и
	// unregister не должны виснуть после остановки хаба.
	done chan struct{}

	logger zerolog.Logger
}

// NewHub создаёт хаб.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With().Str("component", "ws_hub").Logger(),
	}
}

// Run обслуживает регистрацию подключений до отмены контекста.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.Shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// drop снимает подключение с обслуживания, не зависая после остановки.
func (h *Hub) drop(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.userID]; !ok {
		h.clients[client.userID] = make(map[*Client]struct{})
	}
	h.clients[client.userID][client] = struct{}{}
	h.logger.Debug().Int64("user_id", client.userID).Int("connections", len(h.clients[client.userID])).Msg("клиент подключился")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.clients, client.userID)
	}
	h.logger.Debug().Int64("user_id", client.userID).Msg("клиент отключился")
}

// SendToUser доставляет событие всем подключениям пользователя.
// Доставка best-effort: медленный клиент отключается, а не блокирует хаб.
// Возвращает число подключений, получивших событие.
func (h *Hub) SendToUser(userID int64, event domain.NotificationEvent) int {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("event_id", event.ID).Msg("не удалось сериализовать уведомление")
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for client := range h.clients[userID] {
		select {
		case client.send <- data:
			delivered++
		default:
			go h.drop(client)
		}
	}
	if delivered > 0 {
		metrics.NotificationsDelivered.Add(float64(delivered))
	}
	return delivered
}

// ConnectedUsers возвращает идентификаторы пользователей с активными
// подключениями.
func (h *Hub) ConnectedUsers() []int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]int64, 0, len(h.clients))
	for userID := range h.clients {
		ids = append(ids, userID)
	}
	return ids
}

// Shutdown закрывает все подключения.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.clients {
		for client := range clients {
			close(client.send)
		}
	}
	h.clients = make(map[int64]map[*Client]struct{})
	h.logger.Info().Msg("хаб остановлен, подключения закрыты")
}
