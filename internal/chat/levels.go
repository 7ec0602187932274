package chat

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

type RuleKind string

const (
	RuleNone        RuleKind = "none"
	RulePhone       RuleKind = "phone"
	RulePositiveInt RuleKind = "positive_int"
	RuleOneOf       RuleKind = "one_of"
	RuleMinLength   RuleKind = "min_length"
	RuleReadonly    RuleKind = "readonly"
)

func (k RuleKind) valid() bool {
	switch k {
	case RuleNone, RulePhone, RulePositiveInt, RuleOneOf, RuleMinLength, RuleReadonly:
		return true
	}
	return false
}

// Level is one row of the intake table.
type Level struct {
	Number       int      `yaml:"level" json:"level"`
	Name         string   `yaml:"name" json:"name"`
	Rule         RuleKind `yaml:"rule" json:"rule"`
	Max          int      `yaml:"max,omitempty" json:"max,omitempty"`
	MinLength    int      `yaml:"minLength,omitempty" json:"minLength,omitempty"`
	Options      []string `yaml:"options,omitempty" json:"options,omitempty"`
	ErrorMessage string   `yaml:"errorMessage,omitempty" json:"errorMessage,omitempty"`
}

func (l Level) Readonly() bool {
	return l.Rule == RuleReadonly
}

var yesNo = []string{"si", "sí", "no"}

// DefaultLevels mirrors the widget's conversation: phone capture, menu
// selection, quantity, delivery details, payment and confirmation.
func DefaultLevels() []Level {
	return []Level{
		{Number: 0, Name: "greeting", Rule: RuleNone},
		{Number: 1, Name: "phone", Rule: RulePhone, ErrorMessage: "Por favor ingresa un número de celular válido de 10 dígitos."},
		{Number: 2, Name: "menu", Rule: RulePositiveInt, ErrorMessage: "Por favor selecciona una opción del menú con un número."},
		{Number: 3, Name: "category", Rule: RulePositiveInt, ErrorMessage: "Por favor selecciona una categoría con un número."},
		{Number: 4, Name: "item", Rule: RulePositiveInt, ErrorMessage: "Por favor selecciona un producto con un número."},
		{Number: 5, Name: "quantity", Rule: RulePositiveInt, Max: 20, ErrorMessage: "Por favor ingresa una cantidad entre 1 y 20."},
		{Number: 6, Name: "instructions", Rule: RuleNone},
		{Number: 7, Name: "add_more", Rule: RuleOneOf, Options: yesNo, ErrorMessage: "Por favor responde \"si\" o \"no\"."},
		{Number: 8, Name: "confirm_items", Rule: RuleOneOf, Options: yesNo, ErrorMessage: "Por favor responde \"si\" o \"no\"."},
		{Number: 9, Name: "address", Rule: RuleMinLength, MinLength: 10, ErrorMessage: "Por favor ingresa una dirección completa (mínimo 10 caracteres)."},
		{Number: 10, Name: "address_reference", Rule: RuleNone},
		{Number: 11, Name: "payment_method", Rule: RuleOneOf, Options: []string{"1", "2", "3", "4"}, ErrorMessage: "Por favor selecciona un método de pago del 1 al 4."},
		{Number: 12, Name: "confirm_order", Rule: RuleOneOf, Options: yesNo, ErrorMessage: "Por favor responde \"si\" o \"no\"."},
		{Number: 13, Name: "submitted", Rule: RuleReadonly, ErrorMessage: "Tu pedido ya fue enviado."},
		{Number: 14, Name: "follow_up", Rule: RuleNone},
		{Number: 15, Name: "free_chat", Rule: RuleNone},
	}
}

type levelFile struct {
	Levels []Level `yaml:"levels"`
}

// LoadLevels reads a replacement level table from a YAML file.
func LoadLevels(path string) ([]Level, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseLevels(raw)
}

func ParseLevels(raw []byte) ([]Level, error) {
	var file levelFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse levels: %w", err)
	}
	if err := checkLevels(file.Levels); err != nil {
		return nil, err
	}
	return file.Levels, nil
}

func checkLevels(levels []Level) error {
	if len(levels) == 0 {
		return fmt.Errorf("level table is empty")
	}
	seen := make(map[int]bool, len(levels))
	for _, l := range levels {
		if l.Number < 0 {
			return fmt.Errorf("level %d: number cannot be negative", l.Number)
		}
		if seen[l.Number] {
			return fmt.Errorf("level %d: defined twice", l.Number)
		}
		seen[l.Number] = true
		if !l.Rule.valid() {
			return fmt.Errorf("level %d: unknown rule %q", l.Number, l.Rule)
		}
		if l.Rule == RuleOneOf && len(l.Options) == 0 {
			return fmt.Errorf("level %d: one_of needs options", l.Number)
		}
		if l.Rule == RuleMinLength && l.MinLength <= 0 {
			return fmt.Errorf("level %d: min_length needs minLength", l.Number)
		}
	}
	return nil
}

func sortedLevels(levels map[int]Level) []Level {
	out := make([]Level, 0, len(levels))
	for _, l := range levels {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}
