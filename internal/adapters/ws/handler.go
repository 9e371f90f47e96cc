package ws

import (
	"net/http"

	"github.com/gorilla/websocket"

	httpinfra "social-pulse/internal/infra/http"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Сервис ходит за обратным прокси, origin ограничивается там.
		return true
	},
}

// Handler апгрейдит аутентифицированный HTTP запрос до WebSocket и
// регистрирует подключение в хабе. Токен проверяет middleware сессии:
// браузер не умеет ставить заголовки на WS, поэтому токен приходит в
// query-параметре.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := httpinfra.UserID(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn().Err(err).Int64("user_id", userID).Msg("не удалось апгрейдить соединение")
			return
		}

		client := &Client{
			hub:    h,
			conn:   conn,
			userID: userID,
			send:   make(chan []byte, sendBufferSize),
		}
		select {
		case h.register <- client:
		case <-h.done:
			_ = conn.Close()
			return
		}

		go client.writePump()
		client.readPump()
	}
}
