package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf-audio/gencntr/internal/shmem"
)

// errQuit is returned by Dispatch to tell the serve loop to stop.
var errQuit = fmt.Errorf("quit")

// Console evaluates line-oriented debug commands against a shmem handle
// table: the manual-testing surface that spec §4.8's write/read EP v2
// requests get driven through in lieu of a real client process sitting
// on the other end of the shared memory.
type Console struct {
	handles *shmem.HandleTable
}

// NewConsole returns a Console over a fresh, empty handle table.
func NewConsole() *Console {
	return &Console{handles: shmem.NewHandleTable()}
}

// Dispatch parses and runs one command line, writing any output to out.
// It returns errQuit on "quit"/"exit" and a wrapped error for anything
// else that goes wrong; both are reported to the operator by the
// caller, but only errQuit ends the session.
func (c *Console) Dispatch(line string, out io.Writer) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "help":
		fmt.Fprint(out, helpText)
	case "quit", "exit":
		return errQuit
	case "create":
		return c.cmdCreate(fields, out)
	case "write":
		return c.cmdWrite(fields, out)
	case "read":
		return c.cmdRead(fields, out)
	case "flush":
		return c.cmdHandleOp(fields, out, c.handles.Flush, "flushed")
	case "invalidate":
		return c.cmdHandleOp(fields, out, c.handles.Invalidate, "invalidated")
	case "release":
		return c.cmdHandleOp(fields, out, c.handles.Release, "released")
	case "writereq":
		return c.cmdWriteReq(fields, out)
	case "readresp":
		return c.cmdReadResp(fields, out)
	default:
		fmt.Fprintf(out, "unknown command %q, try \"help\"\n", fields[0])
	}
	return nil
}

const helpText = `commands:
  create <size>                         mmap a new anonymous segment
  write <handle> <offset> <hex>         copy hex bytes into the segment
  read <handle> <offset> <size>         dump size bytes as hex
  flush <handle>                        msync(MS_SYNC)
  invalidate <handle>                   msync(MS_INVALIDATE)
  release <handle>                      drop a refcount, munmap at zero
  writereq <handle> <offset> <size>     print a marshaled WriteEPv2Request
  readresp <addr> <size> <frames>       print a marshaled ReadEPv2Response
  quit                                  close the console
`

func (c *Console) cmdCreate(fields []string, out io.Writer) error {
	if len(fields) != 2 {
		return fmt.Errorf("want: create <size>")
	}
	size, err := strconv.Atoi(fields[1])
	if err != nil {
		return err
	}
	h, err := c.handles.Create(size)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "handle %d\n", h)
	return nil
}

func (c *Console) cmdWrite(fields []string, out io.Writer) error {
	if len(fields) != 4 {
		return fmt.Errorf("want: write <handle> <offset> <hex>")
	}
	h, offset, err := parseHandleOffset(fields[1], fields[2])
	if err != nil {
		return err
	}
	payload, err := hex.DecodeString(fields[3])
	if err != nil {
		return fmt.Errorf("decoding hex payload: %w", err)
	}
	data, err := c.handles.Resolve(h, uint32(offset), 0, uint32(len(payload)))
	if err != nil {
		return err
	}
	copy(data, payload)
	if err := c.handles.Flush(h); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %d bytes at offset %d\n", len(payload), offset)
	return nil
}

func (c *Console) cmdRead(fields []string, out io.Writer) error {
	if len(fields) != 4 {
		return fmt.Errorf("want: read <handle> <offset> <size>")
	}
	h, offset, err := parseHandleOffset(fields[1], fields[2])
	if err != nil {
		return err
	}
	size, err := strconv.Atoi(fields[3])
	if err != nil {
		return err
	}
	if err := c.handles.Invalidate(h); err != nil {
		return err
	}
	data, err := c.handles.Resolve(h, uint32(offset), 0, uint32(size))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, hex.EncodeToString(data))
	return nil
}

func (c *Console) cmdHandleOp(fields []string, out io.Writer, op func(shmem.Handle) error, verb string) error {
	if len(fields) != 2 {
		return fmt.Errorf("want: %s <handle>", fields[0])
	}
	h, err := parseHandle(fields[1])
	if err != nil {
		return err
	}
	if err := op(h); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s handle %d\n", verb, h)
	return nil
}

// cmdWriteReq marshals a WriteEPv2Request over an already-created
// handle, exercising the wire encoding an operator would otherwise only
// see cross a real shared-memory channel.
func (c *Console) cmdWriteReq(fields []string, out io.Writer) error {
	if len(fields) != 4 {
		return fmt.Errorf("want: writereq <handle> <offset> <size>")
	}
	h, offset, err := parseHandleOffset(fields[1], fields[2])
	if err != nil {
		return err
	}
	size, err := strconv.Atoi(fields[3])
	if err != nil {
		return err
	}
	req := shmem.WriteEPv2Request{
		DataAddrLSW:      uint32(offset),
		DataMemMapHandle: uint32(h),
		DataBufSize:      uint32(size),
		Flags:            shmem.FlagTSValid,
	}
	encoded, err := req.MarshalBinary()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, hex.EncodeToString(encoded))
	return nil
}

func (c *Console) cmdReadResp(fields []string, out io.Writer) error {
	if len(fields) != 4 {
		return fmt.Errorf("want: readresp <addr> <size> <frames>")
	}
	addr, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return err
	}
	size, err := strconv.Atoi(fields[2])
	if err != nil {
		return err
	}
	frames, err := strconv.Atoi(fields[3])
	if err != nil {
		return err
	}
	lsw, msw := shmem.SplitAddr(addr)
	resp := shmem.ReadEPv2Response{
		DataBufAddrLSW: lsw,
		DataBufAddrMSW: msw,
		DataSize:       uint32(size),
		NumFrames:      uint32(frames),
	}
	encoded, err := resp.MarshalBinary()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, hex.EncodeToString(encoded))
	return nil
}

func parseHandle(s string) (shmem.Handle, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing handle: %w", err)
	}
	return shmem.Handle(n), nil
}

func parseHandleOffset(hs, ofs string) (shmem.Handle, int, error) {
	h, err := parseHandle(hs)
	if err != nil {
		return 0, 0, err
	}
	offset, err := strconv.Atoi(ofs)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing offset: %w", err)
	}
	return h, offset, nil
}
