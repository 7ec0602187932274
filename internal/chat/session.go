package chat

import (
	"fmt"
	"strings"
	"time"

	"resto-ops-services/internal/apperror"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

type Message struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	Level   int       `json:"level"`
	At      time.Time `json:"at"`
}

// Session mirrors the chat backend's conversation. The backend owns the level;
// the session only records what was accepted locally.
type Session struct {
	ID             string    `json:"sessionId"`
	CurrentLevel   int       `json:"currentLevel"`
	Phone          *string   `json:"phone"`
	History        []Message `json:"conversationHistory"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
}

func NewSession(now time.Time) Session {
	return Session{ID: uuid.NewString(), CurrentLevel: 0, CreatedAt: now, LastActivityAt: now}
}

func (s Session) Expired(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return now.Sub(s.LastActivityAt) >= ttl
}

// CanSubmit runs every local check Advance would, without touching the
// session. A nil return means the message may be sent to the backend.
func (m *Machine) CanSubmit(s Session, message string, now time.Time) error {
	if s.Expired(m.ttl, now) {
		return apperror.PreconditionFailed("La sesión expiró, por favor inicia una nueva conversación.", map[string]any{
			"sessionId":      s.ID,
			"lastActivityAt": s.LastActivityAt,
		})
	}
	if l, found := m.levels[s.CurrentLevel]; found && l.Readonly() {
		return apperror.PreconditionFailed(messageOr(l, "Esta conversación ya no acepta mensajes."), map[string]any{
			"sessionId": s.ID,
			"level":     s.CurrentLevel,
		})
	}
	if v := m.ValidateInput(s.CurrentLevel, message); !v.Valid {
		return apperror.ValidationFailed(*v.ErrorMsg, map[string]any{"level": s.CurrentLevel})
	}
	return nil
}

// Advance records an accepted message and moves the session to nextLevel, the
// level the backend answered with.
func (m *Machine) Advance(s Session, message string, nextLevel int, now time.Time) (Session, error) {
	if err := m.CanSubmit(s, message, now); err != nil {
		return Session{}, err
	}
	if nextLevel < 0 {
		return Session{}, apperror.PreconditionFailed("Nivel de conversación inválido.", map[string]any{"nextLevel": nextLevel})
	}
	if _, found := m.levels[nextLevel]; !found && m.unknown == FailClosed {
		return Session{}, apperror.PreconditionFailed(fmt.Sprintf("Nivel de conversación desconocido (%d).", nextLevel), map[string]any{"nextLevel": nextLevel})
	}

	out := s
	out.History = appendMessage(s.History, Message{Role: RoleUser, Content: strings.TrimSpace(message), Level: s.CurrentLevel, At: now})
	if l, found := m.levels[s.CurrentLevel]; found && l.Rule == RulePhone {
		phone, _ := NormalizePhone(message)
		out.Phone = &phone
	}
	out.CurrentLevel = nextLevel
	out.LastActivityAt = now
	return out, nil
}

// AppendReply records a bot message at the session's current level.
func AppendReply(s Session, text string, now time.Time) Session {
	if strings.TrimSpace(text) == "" {
		return s
	}
	out := s
	out.History = appendMessage(s.History, Message{Role: RoleBot, Content: text, Level: s.CurrentLevel, At: now})
	out.LastActivityAt = now
	return out
}

func appendMessage(history []Message, msg Message) []Message {
	out := make([]Message, len(history), len(history)+1)
	copy(out, history)
	return append(out, msg)
}
