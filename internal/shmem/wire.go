package shmem

import (
	"bytes"
	"encoding/binary"

	"github.com/spf-audio/gencntr/internal/spferr"
)

// Flag bits carried on the write/read EP v2 request tuples (spec §4.8).
const (
	FlagTSValid    uint32 = 1 << 0
	FlagTSContinue uint32 = 1 << 1
	FlagEOF        uint32 = 1 << 2
)

// Opcode identifies a shared-memory endpoint wire message.
type Opcode uint32

const (
	OpcodeWriteEPDataBufferDoneV2 Opcode = iota + 1
	OpcodeReadEPDataBufferDoneV2
)

// WriteEPv2Request is the write-endpoint data-buffer-V2 request tuple,
// field order fixed per spec §4.8 ("structure layout is fixed;
// interoperability requires bit-exact field order and size").
type WriteEPv2Request struct {
	DataAddrLSW      uint32
	DataAddrMSW      uint32
	DataMemMapHandle uint32
	DataBufSize      uint32
	MDAddrLSW        uint32
	MDAddrMSW        uint32
	MDMemMapHandle   uint32
	MDBufSize        uint32
	Flags            uint32
	TimestampLSW     uint32
	TimestampMSW     uint32
}

// MarshalBinary renders the request in its fixed little-endian layout.
func (r *WriteEPv2Request) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, r); err != nil {
		return nil, spferr.Wrap(spferr.Failed, "marshal write-ep v2 request", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary parses the fixed little-endian layout into r.
func (r *WriteEPv2Request) UnmarshalBinary(data []byte) error {
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, r); err != nil {
		return spferr.Wrap(spferr.BadParam, "unmarshal write-ep v2 request", err)
	}
	return nil
}

// WriteEPv2Response is the WR_SH_MEM_EP_DATA_BUFFER_DONE_V2 ack.
type WriteEPv2Response struct {
	DataStatus uint32
	MDStatus   uint32
}

func (r *WriteEPv2Response) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, r); err != nil {
		return nil, spferr.Wrap(spferr.Failed, "marshal write-ep v2 response", err)
	}
	return buf.Bytes(), nil
}

// ReadEPv2Request is the read-endpoint data-buffer-V2 request tuple; it
// shares the write request's address/handle/size/flags/timestamp shape.
type ReadEPv2Request = WriteEPv2Request

// ReadEPv2Response is the RD_SH_MEM_EP_DATA_BUFFER_DONE_V2 response.
type ReadEPv2Response struct {
	DataBufAddrLSW uint32
	DataBufAddrMSW uint32
	DataSize       uint32
	NumFrames      uint32
	MDSize         uint32
	TimestampLSW   uint32
	TimestampMSW   uint32
	Flags          uint32
	DataStatus     uint32
	MDStatus       uint32
}

func (r *ReadEPv2Response) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, r); err != nil {
		return nil, spferr.Wrap(spferr.Failed, "marshal read-ep v2 response", err)
	}
	return buf.Bytes(), nil
}

func (r *ReadEPv2Response) UnmarshalBinary(data []byte) error {
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, r); err != nil {
		return spferr.Wrap(spferr.BadParam, "unmarshal read-ep v2 response", err)
	}
	return nil
}

// CodeToWire/WireToCode convert between the engine's spferr.Code and the
// wire's raw uint32 status field.
func CodeToWire(c spferr.Code) uint32 { return uint32(c) }
func WireToCode(v uint32) spferr.Code { return spferr.Code(v) }
