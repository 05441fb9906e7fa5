package push

import (
	"reflect"
	"testing"
)

func TestTransitionTable(t *testing.T) {
	fresh := newMachine(5)

	cases := []struct {
		name        string
		from        machine
		sig         signal
		wantState   State
		wantAttempt int
		wantEffects []effect
	}{
		{"start", fresh, sigStart, StateConnecting, 0, []effect{effOpenTransport}},
		{"first open", machine{state: StateConnecting, maxAttempts: 5}, sigHandshakeOK, StateOpen, 0, []effect{effEmitOpened}},
		{"open after failure", machine{state: StateConnecting, maxAttempts: 5, attempts: 3, failed: true}, sigHandshakeOK, StateOpen, 0, []effect{effEmitReconnected}},
		{"reopen after open", machine{state: StateConnecting, maxAttempts: 5, opened: true, failed: true, attempts: 1}, sigHandshakeOK, StateOpen, 0, []effect{effEmitReconnected}},
		{"handshake error", machine{state: StateConnecting, maxAttempts: 5}, sigTransportError, StateReconnecting, 1, []effect{effCloseTransport, effEmitError, effScheduleRetry}},
		{"stream error", machine{state: StateOpen, maxAttempts: 5, opened: true}, sigTransportError, StateReconnecting, 1, []effect{effCloseTransport, effEmitError, effScheduleRetry}},
		{"retry", machine{state: StateReconnecting, maxAttempts: 5, attempts: 2}, sigRetry, StateConnecting, 2, []effect{effOpenTransport}},
		{"message resets counter", machine{state: StateOpen, maxAttempts: 5, attempts: 2}, sigMessage, StateOpen, 0, nil},
		{"fifth failure", machine{state: StateConnecting, maxAttempts: 5, attempts: 4}, sigTransportError, StateFailed, 5, []effect{effCloseTransport, effEmitError, effEmitFailed}},
		{"failed ignores retry", machine{state: StateFailed, maxAttempts: 5, attempts: 5}, sigRetry, StateFailed, 5, nil},
		{"reset", machine{state: StateFailed, maxAttempts: 5, attempts: 5, failed: true}, sigReset, StateConnecting, 0, []effect{effOpenTransport}},
		{"stop while open", machine{state: StateOpen, maxAttempts: 5}, sigStop, StateDisconnected, 0, []effect{effCloseTransport}},
		{"stop while disconnected", fresh, sigStop, StateDisconnected, 0, nil},
		{"reset ignored while open", machine{state: StateOpen, maxAttempts: 5}, sigReset, StateOpen, 0, nil},
	}

	for _, tt := range cases {
		got, effects := transition(tt.from, tt.sig)
		if got.state != tt.wantState || got.attempts != tt.wantAttempt {
			t.Fatalf("%s: transition()=(%s,%d), want (%s,%d)", tt.name, got.state, got.attempts, tt.wantState, tt.wantAttempt)
		}
		if !reflect.DeepEqual(effects, tt.wantEffects) {
			t.Fatalf("%s: effects=%v, want %v", tt.name, effects, tt.wantEffects)
		}
	}
}

func TestTransitionDoesNotMutateInput(t *testing.T) {
	m := machine{state: StateOpen, maxAttempts: 5, attempts: 2}
	_, _ = transition(m, sigTransportError)
	if m.state != StateOpen || m.attempts != 2 {
		t.Fatalf("input mutated: %+v", m)
	}
}

func TestStateString(t *testing.T) {
	want := map[State]string{
		StateDisconnected: "DISCONNECTED",
		StateConnecting:   "CONNECTING",
		StateOpen:         "OPEN",
		StateReconnecting: "RECONNECTING",
		StateFailed:       "FAILED",
	}
	for s, w := range want {
		if s.String() != w {
			t.Fatalf("State(%d).String()=%q, want %q", int(s), s.String(), w)
		}
	}
}
