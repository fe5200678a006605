package vchan

// State is the connection state of a control block. It only moves forward:
// CONNECTING, CONNECTED, DISCONNECTED.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnected
)

// String returns string representation of State
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// changeState stores a new state and signals the socket event pipe. A failed
// notification is logged; the state is updated regardless.
func (v *Vchan) changeState(state State) {
	v.mu.Lock()
	if state <= v.state {
		old := v.state
		v.mu.Unlock()
		v.logger.Warn("ignoring state change %s -> %s", old, state)
		return
	}
	old := v.state
	v.state = state
	if err := v.socketEvent.notify(v.sys.write); err != nil {
		v.logger.Error("notify state change: %v", err)
	}
	v.mu.Unlock()

	v.stats.stateChanges.Add(1)
	v.logger.Info("state %s -> %s", old, state)

	if v.config.OnStateChange != nil {
		v.config.OnStateChange(state)
	}
}
