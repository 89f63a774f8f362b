// Command shmemctl is a raw-mode debug console over a shmem.HandleTable:
// the manual-testing stand-in for cmd/tnctest, letting an operator poke
// at a container's shared-memory write/read endpoints one command at a
// time instead of wiring up a real client process.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/creack/pty"
	"github.com/pkg/term"
	"github.com/spf13/pflag"
)

func main() {
	usePTY := pflag.Bool("pty", false, "serve the console over a spawned pty instead of the controlling terminal")
	pflag.Parse()

	console := NewConsole()

	var err error
	if *usePTY {
		err = runOverPTY(console)
	} else {
		err = runOverTTY(console)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "shmemctl:", err)
		os.Exit(1)
	}
}

// runOverPTY spawns a pty pair and serves the console over the master
// end; an operator attaches a terminal program to the printed slave
// path the way they'd dial into a serial line.
func runOverPTY(c *Console) error {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return fmt.Errorf("opening pty: %w", err)
	}
	defer ptmx.Close()
	defer tty.Close()

	fmt.Fprintf(os.Stdout, "shmemctl: attach a terminal to %s\n", tty.Name())
	return serve(ptmx, ptmx, c)
}

// runOverTTY raw-mode's the process's controlling terminal, the same
// term.Open(..., term.RawMode) shape a serial-port open would use —
// there's no baud rate to set for a local tty, so SetSpeed is skipped.
func runOverTTY(c *Console) error {
	t, err := term.Open("/dev/tty", term.RawMode)
	if err != nil {
		return fmt.Errorf("opening controlling terminal: %w", err)
	}
	defer t.Close()

	return serve(t, t, c)
}

// serve reads raw bytes from r one at a time (serial_port_get1's
// wait-for-a-byte shape), echoes them to w, assembles lines, and
// dispatches each completed line to c. Backspace (0x7f/0x08) erases the
// last buffered character; Ctrl-C/Ctrl-D end the session.
func serve(r io.Reader, w io.Writer, c *Console) error {
	fmt.Fprint(w, "shmemctl> ")
	var line []byte
	buf := make([]byte, 1)
	reader := bufio.NewReader(r)
	for {
		n, err := reader.Read(buf)
		if n != 1 {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading console input: %w", err)
		}
		ch := buf[0]
		switch ch {
		case 0x03, 0x04: // Ctrl-C, Ctrl-D
			fmt.Fprintln(w)
			return nil
		case '\r', '\n':
			fmt.Fprintln(w)
			if err := c.Dispatch(string(line), w); err != nil {
				if err == errQuit {
					return nil
				}
				fmt.Fprintf(w, "error: %s\n", err)
			}
			line = line[:0]
			fmt.Fprint(w, "shmemctl> ")
		case 0x7f, 0x08: // backspace/delete
			if len(line) > 0 {
				line = line[:len(line)-1]
				fmt.Fprint(w, "\b \b")
			}
		default:
			line = append(line, ch)
			w.Write(buf)
		}
	}
}
