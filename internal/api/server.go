package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"social-pulse/internal/domain"
	httpinfra "social-pulse/internal/infra/http"
	"social-pulse/internal/infra/retry"
	"social-pulse/internal/usecase/reactions"
	"social-pulse/internal/usecase/rewards"
	"social-pulse/internal/usecase/unread"
)

// Handlers связывает HTTP маршруты с usecase-слоем.
type Handlers struct {
	unread     *unread.Service
	reactions  *reactions.Service
	rewards    *rewards.Service
	channels   domain.ChannelRepo
	logger     zerolog.Logger
	retryMax   int
	retryDelay time.Duration
}

// NewHandlers создаёт обработчики API.
func NewHandlers(unreadSvc *unread.Service, reactionsSvc *reactions.Service, rewardsSvc *rewards.Service, channels domain.ChannelRepo, logger zerolog.Logger, retryMax int, retryDelay time.Duration) *Handlers {
	return &Handlers{
		unread:     unreadSvc,
		reactions:  reactionsSvc,
		rewards:    rewardsSvc,
		channels:   channels,
		logger:     logger.With().Str("component", "api").Logger(),
		retryMax:   retryMax,
		retryDelay: retryDelay,
	}
}

// Register навешивает маршруты на роутер; аутентификацию добавляет вызывающий.
func (h *Handlers) Register(r chi.Router) {
	r.Get("/api/v1/unread-count", h.unreadCount)
	r.Post("/api/v1/read-receipts", h.createReadReceipts)
	r.Post("/api/v1/reactions", h.createReaction)
	r.Delete("/api/v1/reactions", h.deleteReaction)
	r.Get("/api/v1/rewards/progress", h.rewardsProgress)

	r.Post("/api/v1/channels", h.createChannel)
	r.Post("/api/v1/channels/{id}/members", h.addMember)
	r.Post("/api/v1/channels/{id}/messages", h.createMessage)
}

func (h *Handlers) unreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpinfra.UserID(r)
	if !ok {
		httpinfra.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	summary, err := retryAggregate(func() (domain.UnreadSummary, error) {
		return h.unread.Counts(r.Context(), userID)
	}, h.retryMax, h.retryDelay)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, summary)
}

type readReceiptsRequest struct {
	MessageIDs []string `json:"message_ids"`
}

func (h *Handlers) createReadReceipts(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpinfra.UserID(r)
	if !ok {
		httpinfra.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	defer r.Body.Close()

	var req readReceiptsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.MessageIDs) == 0 {
		httpinfra.WriteError(w, http.StatusBadRequest, "message_ids is required")
		return
	}

	inserted, err := h.unread.MarkRead(r.Context(), userID, req.MessageIDs)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"marked":  inserted,
	})
}

type reactionRequest struct {
	MessageID string `json:"message_id"`
	// UserID дублирует личность из сессии; при расхождении запрос
	// отклоняется. Ноль означает «текущий пользователь».
	UserID   int64  `json:"user_id"`
	Reaction string `json:"reaction"`
}

func (h *Handlers) createReaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpinfra.UserID(r)
	if !ok {
		httpinfra.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	defer r.Body.Close()

	var req reactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID != 0 && req.UserID != userID {
		h.writeFailure(w, r, domain.ErrForbidden)
		return
	}

	event, err := h.reactions.React(r.Context(), userID, req.MessageID, req.Reaction)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{
		"message_id": event.SubjectID,
		"user_id":    event.ActorID,
		"reaction":   event.Value,
		"created_at": event.CreatedAt,
	})
}

func (h *Handlers) deleteReaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpinfra.UserID(r)
	if !ok {
		httpinfra.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	defer r.Body.Close()

	var req reactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID != 0 && req.UserID != userID {
		h.writeFailure(w, r, domain.ErrForbidden)
		return
	}

	if err := h.reactions.Unreact(r.Context(), userID, req.MessageID, req.Reaction); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handlers) rewardsProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpinfra.UserID(r)
	if !ok {
		httpinfra.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	progress, err := retryAggregate(func() (domain.RewardProgress, error) {
		return h.rewards.Progress(r.Context(), userID)
	}, h.retryMax, h.retryDelay)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, progress)
}

type createChannelRequest struct {
	Title string `json:"title"`
}

func (h *Handlers) createChannel(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpinfra.UserID(r)
	if !ok {
		httpinfra.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	defer r.Body.Close()

	var req createChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		httpinfra.WriteError(w, http.StatusBadRequest, "title is required")
		return
	}

	channel, err := h.channels.CreateChannel(r.Context(), req.Title)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	// Создатель сразу становится участником.
	if err := h.channels.AddMember(r.Context(), channel.ID, userID); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{
		"id":         channel.ID,
		"title":      channel.Title,
		"created_at": channel.CreatedAt,
	})
}

type addMemberRequest struct {
	UserID int64 `json:"user_id"`
}

func (h *Handlers) addMember(w http.ResponseWriter, r *http.Request) {
	if _, ok := httpinfra.UserID(r); !ok {
		httpinfra.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	defer r.Body.Close()

	var req addMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == 0 {
		httpinfra.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := h.channels.AddMember(r.Context(), chi.URLParam(r, "id"), req.UserID); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) createMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpinfra.UserID(r)
	if !ok {
		httpinfra.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	message, err := h.channels.CreateMessage(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{
		"id":         message.ID,
		"channel_id": message.ChannelID,
		"author_id":  message.AuthorID,
		"created_at": message.CreatedAt,
	})
}

// retryAggregate повторяет чтение агрегата только при временном сбое
// хранилища. Доменные ошибки не повторяемы: они возвращаются с первой
// попытки как есть.
func retryAggregate[T any](fn func() (T, error), maxRetries int, initialDelay time.Duration) (T, error) {
	var domainErr error
	value, err := retry.Do(func() (T, error) {
		v, e := fn()
		if e != nil && !errors.Is(e, domain.ErrStoreUnavailable) {
			domainErr = e
			// Нулевая ошибка останавливает повторы.
			return v, nil
		}
		return v, e
	}, maxRetries, initialDelay)
	if domainErr != nil {
		return value, domainErr
	}
	return value, err
}

// writeFailure переводит доменные ошибки в HTTP статусы.
func (h *Handlers) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		httpinfra.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		httpinfra.WriteError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		httpinfra.WriteError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrChannelNotFound),
		errors.Is(err, domain.ErrMessageNotFound),
		errors.Is(err, domain.ErrReactionNotFound):
		httpinfra.WriteError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("необработанная ошибка запроса")
		httpinfra.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
