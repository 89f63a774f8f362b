// Command gencntrsim loads a gcfg graph, opens a single gen_cntr
// instance, and drives it from a scripted event file, exercising the
// scheduler stack outside a full container host process.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/spf-audio/gencntr/internal/amdb"
	"github.com/spf-audio/gencntr/internal/dwlog"
	"github.com/spf-audio/gencntr/internal/evt"
	"github.com/spf-audio/gencntr/internal/extio"
	"github.com/spf-audio/gencntr/internal/gcfg"
	"github.com/spf-audio/gencntr/internal/gencntr"
	"github.com/spf-audio/gencntr/internal/gmgmt"
	"github.com/spf-audio/gencntr/internal/module"
	"github.com/spf-audio/gencntr/internal/port"
	"github.com/spf-audio/gencntr/internal/posal"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a gcfg graph YAML file")
	scriptPath := pflag.StringP("script", "s", "", "path to a scripted event file (data/mf/eos lines)")
	simBuild := pflag.Bool("sim", true, "run the watchdog in SIM mode (panic on trip) instead of device mode")
	verbose := pflag.BoolP("verbose", "v", false, "enable debug-level logging")
	pflag.Parse()

	if *verbose {
		dwlog.SetLevel(dwlog.Debug)
	}

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "gencntrsim: --config is required")
		os.Exit(2)
	}

	if err := run(*configPath, *scriptPath, *simBuild); err != nil {
		fmt.Fprintln(os.Stderr, "gencntrsim:", err)
		os.Exit(1)
	}
}

func run(configPath, scriptPath string, simBuild bool) error {
	f, err := os.Open(configPath)
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()

	cfg, err := gcfg.Load(f)
	if err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if err := gcfg.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	db := amdb.NewInMemory()
	for _, m := range cfg.Modules {
		db.Register(amdb.Descriptor{ModuleID: m.ModuleID, StackSizeBytes: 8192})
	}
	registry := evt.NewRegistry()

	graph, err := gcfg.Apply(cfg, db, registry, passthroughFactory, gencntr.NopRelauncher{})
	if err != nil {
		return fmt.Errorf("applying config: %w", err)
	}
	for i, ph := range graph.Placeholders {
		if err := ph.BindRealModuleID(cfg.Modules[i].ModuleID); err != nil {
			return fmt.Errorf("binding module %d: %w", cfg.Modules[i].InstanceID, err)
		}
	}

	machine := gmgmt.NewMachine()
	for _, cmd := range []gmgmt.Command{gmgmt.CmdOpen, gmgmt.CmdPrepare, gmgmt.CmdStart} {
		if _, err := machine.Apply(cmd); err != nil {
			return fmt.Errorf("graph management %s: %w", cmd, err)
		}
	}
	graph.ExternalInput.State = port.StateStarted
	graph.ExternalOutput.State = port.StateStarted
	graph.ExternalInput.Bufs = port.NewBufferSet(1, graph.ExternalInput.MaxBufLen, port.OriginInternal)

	heap := posal.NewHeapTable()
	channel := posal.NewChannel()

	in := extio.NewInput(heap, 64, graph.ExternalInput)
	inBit, err := in.Bind(channel, 0)
	if err != nil {
		return fmt.Errorf("binding input port: %w", err)
	}

	out := extio.NewOutput(extio.FlavourPeer, extio.FramesPerBuffer{Fixed: 1}, func(d *port.BufferSet, md *port.MetadataList, sd port.SData) {
		dwlog.Printf(dwlog.Info, -1, "gencntrsim: delivered %d bytes, ts=%d", d.ActualDataLen(), sd.Timestamp)
	})
	out.SetupBufs(port.NewBufferSet(1, graph.ExternalOutput.MaxBufLen, port.OriginExternal), port.ICBParams{}, port.ICBResult{})

	relay := module.NewStub(0xffff)
	relay.OnProcess = func() (module.Events, error) {
		if graph.ExternalInput.Bufs.ActualDataLen() == 0 {
			return module.Events{}, nil
		}
		err := out.WriteData(graph.ExternalInput.Bufs, graph.ExternalInput.MediaFormat, graph.ExternalInput.SData, &graph.ExternalInput.Metadata)
		graph.ExternalInput.Bufs.SetActualDataLen(0)
		return module.Events{}, err
	}
	modules := make([]module.Module, 0, graph.Walker.Len()+1)
	for i := 0; i < graph.Walker.Len(); i++ {
		modules = append(modules, graph.Walker.At(i))
	}
	modules = append(modules, relay)
	walker := module.NewWalker(modules)

	build := gencntr.DeviceBuild
	if simBuild {
		build = gencntr.SimBuild
	}
	sched := gencntr.NewScheduler(build, channel, walker, nil)
	sched.RegisterInput(inBit, in)
	sched.RegisterOutput(0, out, nil)

	if scriptPath == "" {
		return nil
	}
	sf, err := os.Open(scriptPath)
	if err != nil {
		return fmt.Errorf("opening script: %w", err)
	}
	defer sf.Close()

	scanner := bufio.NewScanner(sf)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		msg, err := parseScriptLine(line)
		if err != nil {
			return fmt.Errorf("script line %q: %w", line, err)
		}
		if err := in.Enqueue(msg); err != nil {
			return fmt.Errorf("enqueueing %q: %w", line, err)
		}
		if err := sched.RunOnce(); err != nil {
			return fmt.Errorf("running scheduler after %q: %w", line, err)
		}
	}
	return scanner.Err()
}

// passthroughFactory stands in for a real module implementation: a
// simulator has no codec/DSP logic of its own, only the topology and
// scheduler plumbing around one.
func passthroughFactory(desc amdb.Descriptor) (module.Module, error) {
	return module.NewStub(desc.ModuleID), nil
}

// parseScriptLine turns one scripted-event line into an extio.Message.
// Supported forms: "data <bytes> <timestamp_ns>", "mf <sample_rate>
// <channels> <bits_per_sample>", "eos [flushing]".
func parseScriptLine(line string) (*extio.Message, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty line")
	}
	switch fields[0] {
	case "data":
		if len(fields) != 3 {
			return nil, fmt.Errorf("want: data <bytes> <timestamp_ns>")
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, err
		}
		ts, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return nil, err
		}
		d := port.NewBufferSet(1, n, port.OriginExternal)
		d.SetActualDataLen(n)
		return &extio.Message{Kind: extio.MsgDataV1, Data: d, Timestamp: ts, TSValid: true}, nil
	case "mf":
		if len(fields) != 4 {
			return nil, fmt.Errorf("want: mf <sample_rate> <channels> <bits_per_sample>")
		}
		rate, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, err
		}
		ch, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, err
		}
		bits, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, err
		}
		return &extio.Message{
			Kind: extio.MsgMediaFormat,
			MediaFormat: &port.MediaFormat{
				SampleRate:     rate,
				NumChannels:    ch,
				BitsPerSample:  bits,
				BytesPerSample: bits / 8,
			},
		}, nil
	case "eos":
		flushing := len(fields) > 1 && fields[1] == "flushing"
		return &extio.Message{Kind: extio.MsgEOS, Flushing: flushing}, nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", fields[0])
	}
}
