package zwave

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeFrameRoundTrip(t *testing.T) {
	f := Frame{Type: FrameType(0x00), FunctionID: FuncZWGetVersion, Payload: []byte{0x01, 0x02, 0x03}}
	encoded := EncodeFrameBytes(f)

	require.Equal(t, byte(SOF), encoded[0])
	require.Equal(t, byte(frameHeaderLen+len(f.Payload)+1), encoded[1], "LEN must count the checksum byte")

	codec := NewCodec(bytes.NewReader(encoded))
	result, err := codec.ReadNext()
	require.NoError(t, err)
	require.True(t, result.IsFrame)
	require.Equal(t, f.Type, result.Frame.Type)
	require.Equal(t, f.FunctionID, result.Frame.FunctionID)
	require.Equal(t, f.Payload, result.Frame.Payload)
}

func TestEncodeFrameSerialAPIByteLayout(t *testing.T) {
	// Known-good frames from the serial API: GetVersion and MemoryGetId
	// requests, byte for byte.
	require.Equal(t, []byte{0x01, 0x03, 0x00, 0x15, 0xe9},
		EncodeFrameBytes(Frame{Type: FrameTypeRequest, FunctionID: FuncZWGetVersion}))
	require.Equal(t, []byte{0x01, 0x03, 0x00, 0x20, 0xdc},
		EncodeFrameBytes(Frame{Type: FrameTypeRequest, FunctionID: FuncMemoryGetID}))
}

func TestCodecReadNextControlBytes(t *testing.T) {
	cases := []struct {
		name string
		in   byte
		want byte
	}{
		{"ack", ACK, ACK},
		{"nak", NAK, NAK},
		{"can", CAN, CAN},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			codec := NewCodec(bytes.NewReader([]byte{tc.in}))
			result, err := codec.ReadNext()
			require.NoError(t, err)
			require.False(t, result.IsFrame)
			require.Equal(t, tc.want, result.Control)
		})
	}
}

func TestCodecReadNextSkipsOutOfFrameBytes(t *testing.T) {
	// Two stray bytes before a bare ACK: both should bump OOF, not error.
	codec := NewCodec(bytes.NewReader([]byte{0xAA, 0xBB, ACK}))
	result, err := codec.ReadNext()
	require.NoError(t, err)
	require.Equal(t, ACK, result.Control)
	require.Equal(t, uint64(2), codec.Stats.OOF)
	require.Equal(t, uint64(1), codec.Stats.ACK)
}

func TestCodecReadNextBadChecksum(t *testing.T) {
	f := Frame{Type: FrameType(0x00), FunctionID: FuncZWGetVersion, Payload: []byte{0x01}}
	encoded := EncodeFrameBytes(f)
	encoded[len(encoded)-1] ^= 0xFF // corrupt the checksum byte

	codec := NewCodec(bytes.NewReader(encoded))
	_, err := codec.ReadNext()
	require.ErrorIs(t, err, ErrBadChecksum)
	require.Equal(t, uint64(1), codec.Stats.BadChecksum)
}

func TestCodecReadNextFrameShorterThanHeader(t *testing.T) {
	// SOF, length=1: too short to hold TYPE, FUNC_ID and a checksum.
	codec := NewCodec(bytes.NewReader([]byte{SOF, 0x01, 0x00, 0x00}))
	_, err := codec.ReadNext()
	require.Error(t, err)
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
}

func TestCodecReadNextEOF(t *testing.T) {
	codec := NewCodec(bytes.NewReader(nil))
	_, err := codec.ReadNext()
	require.ErrorIs(t, err, io.EOF)
}

func TestEncodeFrameEmptyPayload(t *testing.T) {
	f := Frame{Type: FrameType(0x01), FunctionID: FuncMemoryGetID, Payload: nil}
	encoded := EncodeFrameBytes(f)
	require.Equal(t, byte(frameHeaderLen+1), encoded[1])

	codec := NewCodec(bytes.NewReader(encoded))
	result, err := codec.ReadNext()
	require.NoError(t, err)
	require.Empty(t, result.Frame.Payload)
}

func TestUint32FromBytes(t *testing.T) {
	require.Equal(t, uint32(0x01020304), uint32FromBytes([]byte{0x01, 0x02, 0x03, 0x04}))
	require.Equal(t, uint32(0), uint32FromBytes(nil))
}
