package comm

import (
	"errors"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		symbol Symbol
		code   byte
		resp   int
	}{
		{AllOn, 100, 0},
		{AllOff, 110, 0},
		{OneOn, 101, 0},
		{OneOff, 111, 0},
		{TwoOn, 102, 0},
		{TwoOff, 112, 0},
		{Version, 90, 2},
		{Status, 91, 1},
	}
	for _, tt := range tests {
		if got := Encode(tt.symbol); got != tt.code {
			t.Errorf("Encode(%s) = %d, want %d", tt.symbol, got, tt.code)
		}
		if got := ResponseLength(tt.symbol); got != tt.resp {
			t.Errorf("ResponseLength(%s) = %d, want %d", tt.symbol, got, tt.resp)
		}
	}
}

func TestEncodeInjective(t *testing.T) {
	seen := map[byte]Symbol{}
	for _, s := range Symbols() {
		code := Encode(s)
		if other, ok := seen[code]; ok {
			t.Fatalf("%s and %s share code %d", s, other, code)
		}
		seen[code] = s
		if s.IsState() && (code < 100 || code > 112) {
			t.Errorf("state symbol %s has code %d outside [100,112]", s, code)
		}
		if s.IsQuery() && (code < 90 || code > 91) {
			t.Errorf("query symbol %s has code %d outside [90,91]", s, code)
		}
	}
	if len(seen) != len(symbols) {
		t.Fatalf("Symbols() lists %d symbols, table has %d", len(seen), len(symbols))
	}
}

func TestParseSymbol(t *testing.T) {
	for _, name := range []string{"ALL_ON", "all-on", " All_On "} {
		s, err := ParseSymbol(name)
		if err != nil || s != AllOn {
			t.Errorf("ParseSymbol(%q) = %v, %v", name, s, err)
		}
	}
	_, err := ParseSymbol("three-on")
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
}

func TestDescriptorCommand(t *testing.T) {
	tests := []struct {
		name    string
		desc    Descriptor
		want    Command
		wantErr bool
	}{
		{"query version", Descriptor{"QUERY", "VERSION"}, Command{Query, Version}, false},
		{"set all on", Descriptor{"SET_STATE", "ALL_ON"}, Command{SetState, AllOn}, false},
		{"lowercase", Descriptor{"set-state", "two-off"}, Command{SetState, TwoOff}, false},
		{"missing action", Descriptor{"", "ALL_ON"}, Command{}, true},
		{"unknown action", Descriptor{"TOGGLE", "ALL_ON"}, Command{}, true},
		{"unknown symbol", Descriptor{"QUERY", "UPTIME"}, Command{}, true},
		{"query with state symbol", Descriptor{"QUERY", "ALL_ON"}, Command{}, true},
		{"set with query symbol", Descriptor{"SET_STATE", "STATUS"}, Command{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.desc.Command()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var protoErr *ProtocolError
				if !errors.As(err, &protoErr) {
					t.Fatalf("expected ProtocolError, got %T", err)
				}
			}
			if got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCommandFor(t *testing.T) {
	for _, s := range Symbols() {
		cmd, err := CommandFor(s)
		if err != nil {
			t.Fatalf("CommandFor(%s): %v", s, err)
		}
		if s.IsQuery() && cmd.Action() != Query {
			t.Errorf("%s: action %s, want QUERY", s, cmd.Action())
		}
		if s.IsState() && cmd.Action() != SetState {
			t.Errorf("%s: action %s, want SET_STATE", s, cmd.Action())
		}
	}
	if _, err := CommandFor(invalidSymbol); err == nil {
		t.Fatal("expected error for invalid symbol")
	}
}
