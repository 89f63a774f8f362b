package hwdemo

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"

	"github.com/spf-audio/gencntr/internal/dwlog"
	"github.com/spf-audio/gencntr/internal/gmgmt"
)

// FlowGate watches a single GPIO line and drives a graph's gmgmt.Machine
// through CmdStart/CmdStop as the line goes active/inactive: the same
// "external signal gates the data path" role a push-to-talk line plays
// in analog radio gear, inverted here from keying a transmitter to
// admitting data.
type FlowGate struct {
	mu      sync.Mutex
	line    *gpiocdev.Line
	machine *gmgmt.Machine

	activeLow bool
}

// NewFlowGate requests offset on chipName as an input watching both
// edges, calling the machine's Apply(CmdStart) when the line goes
// active and Apply(CmdStop) when it goes inactive. activeLow inverts
// the sense, matching a line wired to a pull-up switch to ground.
func NewFlowGate(chipName string, offset int, machine *gmgmt.Machine, activeLow bool) (*FlowGate, error) {
	g := &FlowGate{machine: machine, activeLow: activeLow}

	line, err := gpiocdev.RequestLine(chipName, offset,
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(g.handleEvent),
	)
	if err != nil {
		return nil, fmt.Errorf("requesting gpio line %s:%d: %w", chipName, offset, err)
	}
	g.line = line
	return g, nil
}

func (g *FlowGate) handleEvent(evt gpiocdev.LineEvent) {
	cmd := decideCommand(evt.Type, g.activeLow)

	g.mu.Lock()
	_, err := g.machine.Apply(cmd)
	g.mu.Unlock()
	if err != nil {
		dwlog.Printf(dwlog.Warn, -1, "hwdemo: flow gate %s on edge: %v", cmd, err)
	}
}

// decideCommand maps one edge event to the graph command it should
// drive, accounting for an active-low line's inverted sense.
func decideCommand(t gpiocdev.LineEventType, activeLow bool) gmgmt.Command {
	active := t == gpiocdev.LineEventRisingEdge
	if activeLow {
		active = !active
	}
	if active {
		return gmgmt.CmdStart
	}
	return gmgmt.CmdStop
}

// Close releases the requested GPIO line.
func (g *FlowGate) Close() error {
	if g.line == nil {
		return nil
	}
	return g.line.Close()
}
