// Package selector describes how an element is located on a page.
//
// A Selector is an ordered list of strategies. The executor tries them in
// order and uses the first one that yields a visible element, so the most
// stable strategy (a test id) goes first and looser fallbacks follow.
package selector

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies how a strategy value is interpreted.
type Kind string

const (
	KindTestID Kind = "testid"
	KindCSS    Kind = "css"
	KindRole   Kind = "role"
	KindText   Kind = "text"
)

var (
	// ErrEmptySelector is returned for an empty definition.
	ErrEmptySelector = errors.New("selector is empty")

	// ErrUnknownKind is returned for an unrecognised strategy prefix.
	ErrUnknownKind = errors.New("unknown selector kind")

	// ErrInvalidDefinition is returned when a definition is neither a string
	// nor a list of strings.
	ErrInvalidDefinition = errors.New("selector must be a string or a list of strings")
)

// Strategy is one way of locating an element.
type Strategy struct {
	Kind  Kind
	Value string
	// Name is the accessible name for role strategies.
	Name string
	// Exact requests exact matching for role names and text.
	Exact bool
}

// String renders the strategy in its parseable form.
func (s Strategy) String() string {
	switch s.Kind {
	case KindRole:
		if s.Name != "" {
			return fmt.Sprintf("role:%s|%s", s.Value, s.Name)
		}
		return "role:" + s.Value
	case KindText:
		if s.Exact {
			return "text:=" + s.Value
		}
	}
	return string(s.Kind) + ":" + s.Value
}

// Selector is a named, ordered list of strategies.
type Selector struct {
	Name       string
	Strategies []Strategy
}

// Describe returns a short human-readable form for logs and errors.
func (s Selector) Describe() string {
	parts := make([]string, len(s.Strategies))
	for i, st := range s.Strategies {
		parts[i] = st.String()
	}
	joined := strings.Join(parts, " || ")
	if s.Name != "" {
		return s.Name + " (" + joined + ")"
	}
	return joined
}

// IsZero reports whether the selector has no strategies.
func (s Selector) IsZero() bool {
	return len(s.Strategies) == 0
}

// ParseStrategy parses a single definition:
//
//	testid:login-email-input
//	css:button[type=submit]
//	role:button|Sign In
//	role:link=|Login         (exact name match)
//	text:Save
//	.ant-modal button        (no prefix: CSS)
func ParseStrategy(def string) (Strategy, error) {
	def = strings.TrimSpace(def)
	if def == "" {
		return Strategy{}, ErrEmptySelector
	}

	prefix, rest, found := strings.Cut(def, ":")
	if !found || strings.ContainsAny(prefix, " .#[>=") {
		return Strategy{Kind: KindCSS, Value: def}, nil
	}

	kind := Kind(strings.ToLower(prefix))
	switch kind {
	case KindTestID, "data-testid", KindCSS, KindText:
		if strings.TrimSpace(rest) == "" {
			return Strategy{}, fmt.Errorf("%w: no value in %q", ErrEmptySelector, def)
		}
	}

	switch kind {
	case KindTestID, "data-testid":
		return Strategy{Kind: KindTestID, Value: rest}, nil
	case KindCSS:
		return Strategy{Kind: KindCSS, Value: rest}, nil
	case KindText:
		exact := false
		if strings.HasPrefix(rest, "=") {
			exact = true
			rest = rest[1:]
		}
		return Strategy{Kind: KindText, Value: rest, Exact: exact}, nil
	case KindRole:
		role, name, _ := strings.Cut(rest, "|")
		exact := false
		if strings.HasSuffix(role, "=") {
			exact = true
			role = strings.TrimSuffix(role, "=")
		}
		role = strings.TrimSpace(role)
		if role == "" {
			return Strategy{}, fmt.Errorf("%w: role is required in %q", ErrEmptySelector, def)
		}
		return Strategy{Kind: KindRole, Value: role, Name: strings.TrimSpace(name), Exact: exact}, nil
	default:
		// Pseudo-classes such as "button:has-text('Save')" are CSS.
		if isCSSPseudo(rest) {
			return Strategy{Kind: KindCSS, Value: def}, nil
		}
		return Strategy{}, fmt.Errorf("%w: %q", ErrUnknownKind, prefix)
	}
}

func isCSSPseudo(rest string) bool {
	for _, p := range []string{"has", "text", "nth", "not", "visible", "first", "last", "is", "hover", "focus", "checked", "disabled", "enabled", "empty"} {
		if strings.HasPrefix(rest, p+"(") || strings.HasPrefix(rest, p+"-") || rest == p {
			return true
		}
	}
	return false
}

// Parse parses a single-strategy selector.
func Parse(def string) (Selector, error) {
	st, err := ParseStrategy(def)
	if err != nil {
		return Selector{}, err
	}
	return Selector{Strategies: []Strategy{st}}, nil
}

// MustParse is like Parse but panics on error. For use with literals.
func MustParse(def string) Selector {
	s, err := Parse(def)
	if err != nil {
		panic(err)
	}
	return s
}

// FromValue builds a selector from a definition as stored in configuration
// or a scenario file: a string or a list of strings.
func FromValue(name string, value interface{}) (Selector, error) {
	var defs []string
	switch v := value.(type) {
	case string:
		defs = []string{v}
	case []string:
		defs = v
	case []interface{}:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return Selector{}, ErrInvalidDefinition
			}
			defs = append(defs, s)
		}
	default:
		return Selector{}, ErrInvalidDefinition
	}

	if len(defs) == 0 {
		return Selector{}, ErrEmptySelector
	}

	sel := Selector{Name: name}
	for _, d := range defs {
		st, err := ParseStrategy(d)
		if err != nil {
			return Selector{}, fmt.Errorf("selector %q: %w", name, err)
		}
		sel.Strategies = append(sel.Strategies, st)
	}
	return sel, nil
}

// TestID returns a single-strategy test id selector.
func TestID(id string) Selector {
	return Selector{Strategies: []Strategy{{Kind: KindTestID, Value: id}}}
}

// CSS returns a single-strategy CSS selector.
func CSS(css string) Selector {
	return Selector{Strategies: []Strategy{{Kind: KindCSS, Value: css}}}
}

// Role returns a single-strategy role selector.
func Role(role, name string) Selector {
	return Selector{Strategies: []Strategy{{Kind: KindRole, Value: role, Name: name}}}
}

// Text returns a single-strategy text selector.
func Text(text string) Selector {
	return Selector{Strategies: []Strategy{{Kind: KindText, Value: text}}}
}

// Or returns a selector that tries s first and then each of others.
func (s Selector) Or(others ...Selector) Selector {
	out := Selector{Name: s.Name, Strategies: append([]Strategy{}, s.Strategies...)}
	for _, o := range others {
		out.Strategies = append(out.Strategies, o.Strategies...)
	}
	return out
}

// Named returns a copy of s with the given name.
func (s Selector) Named(name string) Selector {
	s.Name = name
	return s
}
