package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"social-pulse/internal/domain"
)

func newTestClient(h *Hub, userID int64) *Client {
	return &Client{hub: h, userID: userID, send: make(chan []byte, sendBufferSize)}
}

func waitForUsers(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(h.ConnectedUsers()) == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("ожидали %d подключённых пользователей, получили %d", want, len(h.ConnectedUsers()))
}

func TestHubSendToUserReachesAllConnections(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	first := newTestClient(hub, 1)
	second := newTestClient(hub, 1)
	other := newTestClient(hub, 2)
	hub.register <- first
	hub.register <- second
	hub.register <- other
	waitForUsers(t, hub, 2)

	event := domain.NotificationEvent{ID: "evt-1", Type: domain.NotificationMessagesRead, ActorID: 1}
	if delivered := hub.SendToUser(1, event); delivered != 2 {
		t.Fatalf("ожидали доставку на 2 подключения, получили %d", delivered)
	}

	for _, client := range []*Client{first, second} {
		select {
		case raw := <-client.send:
			var got domain.NotificationEvent
			if err := json.Unmarshal(raw, &got); err != nil {
				t.Fatalf("не удалось разобрать событие: %v", err)
			}
			if got.ID != "evt-1" {
				t.Fatalf("ожидали evt-1, получили %q", got.ID)
			}
		default:
			t.Fatalf("подключение не получило событие")
		}
	}

	select {
	case <-other.send:
		t.Fatalf("чужой пользователь не должен получать событие")
	default:
	}
}

func TestHubSendToUnknownUser(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	if delivered := hub.SendToUser(99, domain.NotificationEvent{ID: "evt-2"}); delivered != 0 {
		t.Fatalf("ожидали 0 доставок, получили %d", delivered)
	}
}

func TestHubEvictsSlowClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	slow := &Client{hub: hub, userID: 1, send: make(chan []byte)} // без буфера
	hub.register <- slow
	waitForUsers(t, hub, 1)

	hub.SendToUser(1, domain.NotificationEvent{ID: "evt-3"})
	waitForUsers(t, hub, 0)
}

func TestHubDropAfterStopDoesNotBlock(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	client := newTestClient(hub, 1)
	hub.register <- client
	waitForUsers(t, hub, 1)

	cancel()
	<-hub.done

	// После выхода из Run снятие подключения обязано вернуться сразу,
	// иначе defer в readPump повиснет навсегда.
	released := make(chan struct{})
	go func() {
		hub.drop(client)
		close(released)
	}()
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatalf("drop завис после остановки хаба")
	}
}

func TestHubShutdownClosesConnections(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := newTestClient(hub, 1)
	hub.register <- client
	waitForUsers(t, hub, 1)

	hub.Shutdown()
	select {
	case _, ok := <-client.send:
		if ok {
			t.Fatalf("ожидали закрытый канал")
		}
	case <-time.After(time.Second):
		t.Fatalf("канал клиента не закрылся")
	}
	if users := hub.ConnectedUsers(); len(users) != 0 {
		t.Fatalf("после остановки подключений быть не должно: %v", users)
	}
}
