package handlers

import (
	"time"

	"resto-ops-services/internal/chat"
	"resto-ops-services/internal/config"
	"resto-ops-services/internal/queue"
	"resto-ops-services/internal/store"

	"go.uber.org/zap"
)

type Handler struct {
	Repo       store.Repository
	Logger     *zap.Logger
	Config     config.Config
	Queue      queue.Publisher
	Chat       *chat.Machine
	ChatClient *chat.Client
	Now        func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handler) machine() *chat.Machine {
	if h.Chat != nil {
		return h.Chat
	}
	return chat.Default()
}
