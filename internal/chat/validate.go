package chat

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

type UnknownLevelPolicy string

const (
	// FailOpen accepts any input on a level missing from the table. This is the
	// widget's historical behavior.
	FailOpen   UnknownLevelPolicy = "fail_open"
	FailClosed UnknownLevelPolicy = "fail_closed"
)

func ParseUnknownLevelPolicy(raw string) (UnknownLevelPolicy, bool) {
	switch UnknownLevelPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FailOpen:
		return FailOpen, true
	case FailClosed:
		return FailClosed, true
	}
	return FailOpen, false
}

const DefaultSessionTTL = 24 * time.Hour

type Validation struct {
	Valid    bool    `json:"valid"`
	ErrorMsg *string `json:"errorMsg"`
}

func accepted() Validation {
	return Validation{Valid: true}
}

func rejected(msg string) Validation {
	return Validation{Valid: false, ErrorMsg: &msg}
}

// Machine holds an immutable level table. It is safe for concurrent use.
type Machine struct {
	levels  map[int]Level
	unknown UnknownLevelPolicy
	ttl     time.Duration
}

type Option func(*Machine)

func WithUnknownLevelPolicy(p UnknownLevelPolicy) Option {
	return func(m *Machine) { m.unknown = p }
}

func WithSessionTTL(ttl time.Duration) Option {
	return func(m *Machine) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

func NewMachine(levels []Level, opts ...Option) (*Machine, error) {
	if err := checkLevels(levels); err != nil {
		return nil, err
	}
	m := &Machine{levels: make(map[int]Level, len(levels)), unknown: FailOpen, ttl: DefaultSessionTTL}
	for _, l := range levels {
		l.Options = append([]string(nil), l.Options...)
		m.levels[l.Number] = l
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

var defaultMachine, _ = NewMachine(DefaultLevels())

func Default() *Machine {
	return defaultMachine
}

// ValidateInput checks raw against the default table.
func ValidateInput(level int, raw string) Validation {
	return defaultMachine.ValidateInput(level, raw)
}

func (m *Machine) Levels() []Level {
	return sortedLevels(m.levels)
}

func (m *Machine) Level(number int) (Level, bool) {
	l, found := m.levels[number]
	return l, found
}

func (m *Machine) SessionTTL() time.Duration {
	return m.ttl
}

func (m *Machine) UnknownLevelPolicy() UnknownLevelPolicy {
	return m.unknown
}

func (m *Machine) ValidateInput(level int, raw string) Validation {
	l, found := m.levels[level]
	if !found {
		if m.unknown == FailClosed {
			return rejected(fmt.Sprintf("Nivel de conversación desconocido (%d).", level))
		}
		return accepted()
	}

	input := strings.TrimSpace(raw)
	switch l.Rule {
	case RuleNone:
		return accepted()
	case RuleReadonly:
		return rejected(messageOr(l, "Esta conversación ya no acepta mensajes."))
	case RulePhone:
		if _, valid := NormalizePhone(input); valid {
			return accepted()
		}
	case RulePositiveInt:
		n, err := strconv.Atoi(input)
		if err == nil && digitsOnly(input) && n > 0 && (l.Max <= 0 || n <= l.Max) {
			return accepted()
		}
	case RuleOneOf:
		lowered := strings.ToLower(input)
		for _, option := range l.Options {
			if lowered == strings.ToLower(strings.TrimSpace(option)) {
				return accepted()
			}
		}
	case RuleMinLength:
		if utf8.RuneCountInString(input) >= l.MinLength {
			return accepted()
		}
	}
	return rejected(messageOr(l, "Respuesta no válida."))
}

// NormalizePhone strips everything but digits and a leading 57 country code.
// The result is valid when exactly ten digits remain.
func NormalizePhone(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) && r < utf8.RuneSelf {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) > 10 && strings.HasPrefix(digits, "57") {
		digits = digits[2:]
	}
	return digits, len(digits) == 10
}

func messageOr(l Level, fallback string) string {
	if strings.TrimSpace(l.ErrorMessage) != "" {
		return l.ErrorMessage
	}
	return fallback
}

func digitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
