package handlers

import (
	"errors"
	"net/http"
	"strings"

	"resto-ops-services/internal/apperror"
	"resto-ops-services/internal/chat"
	"resto-ops-services/internal/metrics"
	"resto-ops-services/pkg/response"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) PublicChatLevels(w http.ResponseWriter, r *http.Request) {
	m := h.machine()
	response.Success(w, map[string]any{
		"levels":             m.Levels(),
		"unknownLevelPolicy": m.UnknownLevelPolicy(),
		"sessionTtlSeconds":  int64(m.SessionTTL().Seconds()),
	})
}

// PublicChatValidate answers whether input would be accepted at level. It
// never touches a session.
func (h *Handler) PublicChatValidate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Level *int   `json:"level"`
		Input string `json:"input"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}
	if payload.Level == nil {
		response.AppError(w, apperror.ValidationFailed("Level is required", map[string]any{"field": "level"}))
		return
	}
	result := h.machine().ValidateInput(*payload.Level, payload.Input)
	metrics.RecordChatMessage(*payload.Level, result.Valid)
	response.Success(w, result)
}

func (h *Handler) PublicChatSessionCreate(w http.ResponseWriter, r *http.Request) {
	session := chat.NewSession(h.now())
	if err := h.Repo.SaveChatSession(r.Context(), session); err != nil {
		h.fail(w, r, err, "create chat session")
		return
	}
	response.Created(w, "Chat session created", h.sessionView(session))
}

func (h *Handler) PublicChatSessionGet(w http.ResponseWriter, r *http.Request) {
	session, err := h.Repo.GetChatSession(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		h.fail(w, r, err, "load chat session")
		return
	}
	response.Success(w, h.sessionView(session))
}

// PublicChatSessionMessage relays one customer message. Input the local level
// table rejects is answered here without contacting the chat backend.
func (h *Handler) PublicChatSessionMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload struct {
		Message string `json:"message"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}

	session, err := h.Repo.GetChatSession(ctx, chi.URLParam(r, "sessionId"))
	if err != nil {
		h.fail(w, r, err, "load chat session")
		return
	}
	if h.ChatClient == nil {
		response.AppError(w, apperror.UpstreamFailed("Chat backend is not configured", nil))
		return
	}

	level := session.CurrentLevel
	next, reply, err := h.ChatClient.Send(ctx, session, payload.Message)
	metrics.RecordChatMessage(level, !errors.Is(err, apperror.ErrValidationFailed))
	if err != nil {
		h.fail(w, r, err, "send chat message")
		return
	}

	if err := h.Repo.SaveChatSession(ctx, next); err != nil {
		h.fail(w, r, err, "save chat session")
		return
	}

	view := h.sessionView(next)
	view["reply"] = strings.TrimSpace(reply.Reply)
	response.Success(w, view)
}

func (h *Handler) sessionView(s chat.Session) map[string]any {
	m := h.machine()
	level, known := m.Level(s.CurrentLevel)
	view := map[string]any{
		"session":  s,
		"readonly": known && level.Readonly(),
		"expired":  s.Expired(m.SessionTTL(), h.now()),
	}
	if known {
		view["level"] = level
	}
	return view
}
