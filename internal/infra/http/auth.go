package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
)

type contextKey string

const userIDKey contextKey = "user_id"

// SessionAuthMiddleware проверяет HMAC-подписанный токен сессии.
//
// Формат токена: "<userID>.<hex(hmac-sha256(userID, secret))>". Токен
// ожидается в заголовке Authorization (Bearer) либо в query-параметре
// token — последний нужен для WebSocket-подключений, где заголовки
// из браузера не задать.
func SessionAuthMiddleware(secret string) func(http.Handler) http.Handler {
	key := sha256.Sum256([]byte(secret))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				token = r.URL.Query().Get("token")
			}
			if token == "" {
				WriteError(w, http.StatusUnauthorized, "токен сессии отсутствует")
				return
			}
			userID, ok := validateSessionToken(token, key[:])
			if !ok {
				WriteError(w, http.StatusUnauthorized, "подпись токена недействительна")
				return
			}
			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SignSessionToken выписывает токен для пользователя. Используется
// внешним сервисом аутентификации и тестами.
func SignSessionToken(userID int64, secret string) string {
	key := sha256.Sum256([]byte(secret))
	payload := strconv.FormatInt(userID, 10)
	h := hmac.New(sha256.New, key[:])
	h.Write([]byte(payload))
	return payload + "." + hex.EncodeToString(h.Sum(nil))
}

// UserID возвращает идентификатор пользователя из контекста запроса.
func UserID(r *http.Request) (int64, bool) {
	id, ok := r.Context().Value(userIDKey).(int64)
	return id, ok
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func validateSessionToken(token string, key []byte) (int64, bool) {
	idx := strings.LastIndexByte(token, '.')
	if idx <= 0 {
		return 0, false
	}
	payload, sig := token[:idx], token[idx+1:]
	expected, err := hex.DecodeString(sig)
	if err != nil {
		return 0, false
	}
	h := hmac.New(sha256.New, key)
	h.Write([]byte(payload))
	if !hmac.Equal(h.Sum(nil), expected) {
		return 0, false
	}
	userID, err := strconv.ParseInt(payload, 10, 64)
	if err != nil || userID <= 0 {
		return 0, false
	}
	return userID, true
}
