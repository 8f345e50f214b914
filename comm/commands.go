package comm

import (
	"fmt"
	"strings"
)

type symbolMeta struct {
	name           string
	code           byte
	kind           symbolKind
	responseLength int
}

// protocol table, fixed by the board firmware
var symbols = map[Symbol]symbolMeta{
	AllOn:   {name: "ALL_ON", code: 100, kind: stateKind},
	AllOff:  {name: "ALL_OFF", code: 110, kind: stateKind},
	OneOn:   {name: "ONE_ON", code: 101, kind: stateKind},
	OneOff:  {name: "ONE_OFF", code: 111, kind: stateKind},
	TwoOn:   {name: "TWO_ON", code: 102, kind: stateKind},
	TwoOff:  {name: "TWO_OFF", code: 112, kind: stateKind},
	Version: {name: "VERSION", code: 90, kind: queryKind, responseLength: 2},
	Status:  {name: "STATUS", code: 91, kind: queryKind, responseLength: 1},
}

// Symbols returns all protocol symbols in declaration order.
func Symbols() []Symbol {
	return []Symbol{AllOn, AllOff, OneOn, OneOff, TwoOn, TwoOff, Version, Status}
}

func (s Symbol) String() string {
	if meta, ok := symbols[s]; ok {
		return meta.name
	}
	return fmt.Sprintf("Symbol(%d)", int(s))
}

// IsState reports whether s sets relay state.
func (s Symbol) IsState() bool {
	return symbols[s].kind == stateKind
}

// IsQuery reports whether s asks the board for information.
func (s Symbol) IsQuery() bool {
	return symbols[s].kind == queryKind
}

// Encode returns the wire byte for s. It returns 0 for values outside the protocol
// table; every declared Symbol has a code.
func Encode(s Symbol) byte {
	return symbols[s].code
}

// ResponseLength is the number of bytes the board answers with after s is written.
func ResponseLength(s Symbol) int {
	return symbols[s].responseLength
}

func normalizeName(name string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(name)), "-", "_")
}

// ParseSymbol accepts both "ALL_ON" and "all-on" forms.
func ParseSymbol(name string) (Symbol, error) {
	n := normalizeName(name)
	for s, meta := range symbols {
		if meta.name == n {
			return s, nil
		}
	}
	return invalidSymbol, &ProtocolError{Reason: "unknown symbol", Content: name}
}

func ParseAction(name string) (Action, error) {
	n := normalizeName(name)
	for a, an := range actionNames {
		if an == n {
			return a, nil
		}
	}
	return invalidAction, &ProtocolError{Reason: "unknown action", Action: name}
}

func NewSetStateCommand(s Symbol) (Command, error) {
	if !s.IsState() {
		return Command{}, &ProtocolError{Reason: "not a state symbol", Action: SetState.String(), Content: s.String()}
	}
	return Command{action: SetState, symbol: s}, nil
}

func NewQueryCommand(s Symbol) (Command, error) {
	if !s.IsQuery() {
		return Command{}, &ProtocolError{Reason: "not a query symbol", Action: Query.String(), Content: s.String()}
	}
	return Command{action: Query, symbol: s}, nil
}

// CommandFor builds the command matching the kind of s.
func CommandFor(s Symbol) (Command, error) {
	if s.IsQuery() {
		return NewQueryCommand(s)
	}
	return NewSetStateCommand(s)
}

// Command validates the descriptor and converts it to a Command.
func (d Descriptor) Command() (Command, error) {
	if strings.TrimSpace(d.Action) == "" {
		return Command{}, &ProtocolError{Reason: "missing action", Content: d.Content}
	}
	action, err := ParseAction(d.Action)
	if err != nil {
		return Command{}, err
	}
	s, err := ParseSymbol(d.Content)
	if err != nil {
		return Command{}, err
	}
	switch action {
	case SetState:
		return NewSetStateCommand(s)
	default:
		return NewQueryCommand(s)
	}
}
