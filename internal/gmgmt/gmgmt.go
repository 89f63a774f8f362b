// Package gmgmt models the graph-management state machine the worker
// reacts to at the data-path boundary. Command *execution* (module
// instantiation, resource negotiation with other containers) is out of
// scope per spec §1; this package owns only the open/prepare/start/
// stop/close state transitions and their legality, which the worker
// consults before running the scheduler's outer loop.
package gmgmt

import (
	"sync"

	"github.com/spf-audio/gencntr/internal/spferr"
)

// Command is one graph-management opcode (spec §6's CMD_GRAPH_MGMT).
type Command int

const (
	CmdOpen Command = iota
	CmdPrepare
	CmdStart
	CmdStop
	CmdClose
)

func (c Command) String() string {
	switch c {
	case CmdOpen:
		return "OPEN"
	case CmdPrepare:
		return "PREPARE"
	case CmdStart:
		return "START"
	case CmdStop:
		return "STOP"
	case CmdClose:
		return "CLOSE"
	default:
		return "UNKNOWN"
	}
}

// State is the graph's current lifecycle stage.
type State int

const (
	StateClosed State = iota
	StateOpened
	StatePrepared
	StateStarted
	StateStopped
)

// Machine is the command-thread-owned graph state machine. One Machine
// per container instance.
type Machine struct {
	mu    sync.Mutex
	state State
}

// NewMachine returns a machine in the closed state.
func NewMachine() *Machine {
	return &Machine{state: StateClosed}
}

// State returns the current graph state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Apply validates and performs cmd's transition, returning the resulting
// state or E_UNSUPPORTED if cmd is not legal from the current state.
func (m *Machine) Apply(cmd Command) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, ok := legalTransition(m.state, cmd)
	if !ok {
		return m.state, spferr.New(spferr.Unsupported, "illegal graph transition "+cmd.String()+" from current state")
	}
	m.state = next
	return m.state, nil
}

func legalTransition(cur State, cmd Command) (State, bool) {
	switch cmd {
	case CmdOpen:
		if cur == StateClosed {
			return StateOpened, true
		}
	case CmdPrepare:
		if cur == StateOpened || cur == StateStopped {
			return StatePrepared, true
		}
	case CmdStart:
		if cur == StatePrepared || cur == StateStopped {
			return StateStarted, true
		}
	case CmdStop:
		if cur == StateStarted {
			return StateStopped, true
		}
	case CmdClose:
		if cur != StateClosed {
			return StateClosed, true
		}
	}
	return cur, false
}
