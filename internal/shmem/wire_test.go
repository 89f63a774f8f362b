package shmem

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spf-audio/gencntr/internal/spferr"
)

func TestWriteEPv2RequestRoundTrip(t *testing.T) {
	req := &WriteEPv2Request{
		DataAddrLSW:      1,
		DataAddrMSW:      2,
		DataMemMapHandle: 3,
		DataBufSize:      960,
		MDAddrLSW:        4,
		MDAddrMSW:        5,
		MDMemMapHandle:   6,
		MDBufSize:        64,
		Flags:            FlagTSValid | FlagEOF,
		TimestampLSW:     1000,
		TimestampMSW:     0,
	}
	data, err := req.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, 11*4)

	var got WriteEPv2Request
	require.NoError(t, got.UnmarshalBinary(data))
	require.Equal(t, *req, got)
}

func TestReadEPv2ResponseRoundTrip(t *testing.T) {
	resp := &ReadEPv2Response{
		DataSize:   480,
		NumFrames:  1,
		MDSize:     0,
		DataStatus: CodeToWire(spferr.NeedMore),
	}
	data, err := resp.MarshalBinary()
	require.NoError(t, err)

	var got ReadEPv2Response
	require.NoError(t, got.UnmarshalBinary(data))
	require.Equal(t, *resp, got)
	require.Equal(t, spferr.NeedMore, WireToCode(got.DataStatus))
}

func TestFlagBits(t *testing.T) {
	f := FlagTSValid | FlagTSContinue
	require.NotZero(t, f&FlagTSValid)
	require.Zero(t, f&FlagEOF)
}
