package main

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateReportsHandle(t *testing.T) {
	c := NewConsole()
	var out bytes.Buffer
	require.NoError(t, c.Dispatch("create 64", &out))
	require.Equal(t, "handle 1\n", out.String())
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	c := NewConsole()
	var out bytes.Buffer
	require.NoError(t, c.Dispatch("create 16", &out))
	out.Reset()

	require.NoError(t, c.Dispatch("write 1 0 deadbeef", &out))
	out.Reset()

	require.NoError(t, c.Dispatch("read 1 0 4", &out))
	require.Equal(t, "deadbeef\n", out.String())
}

func TestReadUnknownHandleErrors(t *testing.T) {
	c := NewConsole()
	var out bytes.Buffer
	err := c.Dispatch("read 99 0 4", &out)
	require.Error(t, err)
}

func TestReleaseUnmapsSegment(t *testing.T) {
	c := NewConsole()
	var out bytes.Buffer
	require.NoError(t, c.Dispatch("create 16", &out))
	out.Reset()
	require.NoError(t, c.Dispatch("release 1", &out))
	require.Contains(t, out.String(), "released handle 1")

	err := c.Dispatch("read 1 0 4", &out)
	require.Error(t, err, "reading a released handle must fail")
}

func TestWriteReqMarshalsFixedLayout(t *testing.T) {
	c := NewConsole()
	var out bytes.Buffer
	require.NoError(t, c.Dispatch("create 16", &out))
	out.Reset()

	require.NoError(t, c.Dispatch("writereq 1 0 16", &out))
	encoded, err := hex.DecodeString(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	require.Len(t, encoded, 11*4, "WriteEPv2Request has eleven uint32 fields")
}

func TestReadRespMarshalsFixedLayout(t *testing.T) {
	c := NewConsole()
	var out bytes.Buffer
	require.NoError(t, c.Dispatch("readresp 4096 960 10", &out))
	encoded, err := hex.DecodeString(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	require.Len(t, encoded, 10*4, "ReadEPv2Response has ten uint32 fields")
}

func TestQuitReturnsSentinel(t *testing.T) {
	c := NewConsole()
	var out bytes.Buffer
	err := c.Dispatch("quit", &out)
	require.ErrorIs(t, err, errQuit)
}

func TestUnknownCommandReportsUsage(t *testing.T) {
	c := NewConsole()
	var out bytes.Buffer
	require.NoError(t, c.Dispatch("frobnicate", &out))
	require.Contains(t, out.String(), "unknown command")
}

func TestServeEchoesAndDispatchesOnEnter(t *testing.T) {
	c := NewConsole()
	var out bytes.Buffer
	in := strings.NewReader("create 8\r")
	err := serve(in, &out, c)
	require.NoError(t, err)
	require.Contains(t, out.String(), "handle 1")
}

func TestServeBackspaceErasesLastChar(t *testing.T) {
	c := NewConsole()
	var out bytes.Buffer
	// "createX" with X backspaced out, then " 8" -> "create 8"
	in := strings.NewReader("createX\x7f 8\r")
	err := serve(in, &out, c)
	require.NoError(t, err)
	require.Contains(t, out.String(), "handle 1")
}

func TestServeCtrlDEndsSession(t *testing.T) {
	c := NewConsole()
	var out bytes.Buffer
	in := strings.NewReader("\x04")
	err := serve(in, &out, c)
	require.NoError(t, err)
}
