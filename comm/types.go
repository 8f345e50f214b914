package comm

import "fmt"

type Action int
type Symbol int
type symbolKind int

// Action values
const (
	invalidAction Action = iota
	SetState
	Query
)

// Symbol values
const (
	invalidSymbol Symbol = iota
	AllOn
	AllOff
	OneOn
	OneOff
	TwoOn
	TwoOff
	Version
	Status
)

// symbolKind
const (
	_ = iota
	stateKind
	queryKind
)

var actionNames = map[Action]string{
	SetState: "SET_STATE",
	Query:    "QUERY",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

func (a Action) valid() bool {
	return a == SetState || a == Query
}

// Command is a single request for the relay board. It can only be built through
// NewSetStateCommand and NewQueryCommand, which reject symbols that don't match the
// action. The zero Command carries no action and is dropped by the dispatcher.
type Command struct {
	action Action
	symbol Symbol
}

func (c Command) Action() Action {
	return c.action
}

func (c Command) Symbol() Symbol {
	return c.symbol
}

func (c Command) String() string {
	return fmt.Sprintf("%s/%s", c.action, c.symbol)
}

// Descriptor is the string-keyed form of a command used by the CLI and the remote
// surfaces, e.g. {"action": "QUERY", "content": "VERSION"}.
type Descriptor struct {
	Action  string `json:"action" yaml:"action"`
	Content string `json:"content" yaml:"content"`
}

// Result is the outcome of one dispatched command. Data holds the response bytes of a
// query, Written the write count of a set-state command. Err is set when the exchange
// failed; the other fields are then meaningless.
type Result struct {
	Command Command
	Seq     uint64
	Data    []byte
	Written int
	Err     error
}

func (r Result) OK() bool {
	return r.Err == nil
}
