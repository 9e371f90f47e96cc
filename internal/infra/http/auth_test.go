package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func protectedEcho(secret string) http.Handler {
	return SessionAuthMiddleware(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserID(r); !ok {
			WriteError(w, http.StatusInternalServerError, "пользователь не в контексте")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func TestSessionTokenRoundtrip(t *testing.T) {
	handler := protectedEcho("секрет")
	token := SignSessionToken(42, "секрет")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSessionTokenFromQuery(t *testing.T) {
	handler := protectedEcho("секрет")
	token := SignSessionToken(42, "секрет")

	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200 для query-токена, получили %d", rec.Code)
	}
}

func TestSessionTokenRejected(t *testing.T) {
	handler := protectedEcho("секрет")

	cases := map[string]string{
		"без токена":      "",
		"мусор":           "Bearer мусор",
		"чужой секрет":    "Bearer " + SignSessionToken(42, "другой"),
		"подменённый id":  "Bearer " + swapUserID(SignSessionToken(42, "секрет")),
		"нулевой user id": "Bearer " + SignSessionToken(0, "секрет"),
	}
	for name, header := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: ожидали 401, получили %d", name, rec.Code)
		}
	}
}

func swapUserID(token string) string {
	idx := strings.LastIndexByte(token, '.')
	return "999" + token[idx:]
}
