package push

// State is the lifecycle of one push connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateReconnecting:
		return "RECONNECTING"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type signal int

const (
	sigStart signal = iota
	sigHandshakeOK
	sigTransportError
	sigMessage
	sigRetry
	sigReset
	sigStop
)

type effect int

const (
	effOpenTransport effect = iota
	effCloseTransport
	effEmitOpened
	effEmitReconnected
	effEmitError
	effScheduleRetry
	effEmitFailed
)

// machine is the connection lifecycle plus its reconnect counter.
type machine struct {
	state       State
	attempts    int
	maxAttempts int
	// opened is set once the connection has reached OPEN; failed is set
	// by any transport error and cleared by the next OPEN.
	opened bool
	failed bool
}

func newMachine(maxAttempts int) machine {
	return machine{state: StateDisconnected, maxAttempts: maxAttempts}
}

// transition is pure: it returns the next machine and the effects the
// caller must perform, in order.
func transition(m machine, sig signal) (machine, []effect) {
	if sig == sigStop {
		if m.state == StateDisconnected {
			return m, nil
		}
		m.state = StateDisconnected
		return m, []effect{effCloseTransport}
	}

	switch m.state {
	case StateDisconnected:
		if sig == sigStart {
			m.state = StateConnecting
			m.attempts = 0
			return m, []effect{effOpenTransport}
		}

	case StateConnecting:
		switch sig {
		case sigHandshakeOK:
			emit := effEmitOpened
			if m.opened || m.failed {
				emit = effEmitReconnected
			}
			m.state = StateOpen
			m.attempts = 0
			m.opened = true
			m.failed = false
			return m, []effect{emit}
		case sigTransportError:
			return fail(m)
		}

	case StateOpen:
		switch sig {
		case sigMessage:
			m.attempts = 0
			return m, nil
		case sigTransportError:
			return fail(m)
		}

	case StateReconnecting:
		if sig == sigRetry {
			m.state = StateConnecting
			return m, []effect{effOpenTransport}
		}

	case StateFailed:
		if sig == sigReset {
			m.state = StateConnecting
			m.attempts = 0
			return m, []effect{effOpenTransport}
		}
	}

	return m, nil
}

func fail(m machine) (machine, []effect) {
	m.attempts++
	m.failed = true
	if m.attempts >= m.maxAttempts {
		m.state = StateFailed
		return m, []effect{effCloseTransport, effEmitError, effEmitFailed}
	}
	m.state = StateReconnecting
	return m, []effect{effCloseTransport, effEmitError, effScheduleRetry}
}

// StateNames lists every state label, in lifecycle order.
func StateNames() []string {
	return []string{
		StateDisconnected.String(),
		StateConnecting.String(),
		StateOpen.String(),
		StateReconnecting.String(),
		StateFailed.String(),
	}
}
