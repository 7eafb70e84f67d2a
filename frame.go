package zwave

import (
	"bytes"
	"encoding/binary"
	"io"
)

// Frame is a decoded Z-Wave serial API frame: a SOF lead-in, a length
// byte, a type byte, a function id, a payload, and a checksum. On the
// wire:
//
//	SOF | LEN | TYPE | FUNC_ID | PAYLOAD | CHECKSUM
//
// LEN counts every byte that follows it: type, function id, payload and
// the checksum itself. CHECKSUM is 0xFF XOR every byte from LEN through
// the last payload byte.
type Frame struct {
	Type       FrameType
	FunctionID FunctionID
	Payload    []byte
}

// frameHeaderLen is the number of bytes preceding the function-id's
// payload inside the length-counted region: TYPE + FUNC_ID.
const frameHeaderLen = 2

// checksum computes the Z-Wave serial API checksum: 0xFF seed, XOR every
// byte from the length byte through the last payload byte.
func checksum(length byte, rest []byte) byte {
	c := byte(0xff) ^ length
	for _, b := range rest {
		c ^= b
	}
	return c
}

// EncodeFrame writes a complete SOF frame to w: SOF | LEN | TYPE |
// FUNC_ID | PAYLOAD | CHECKSUM.
func EncodeFrame(w *bytes.Buffer, f Frame) {
	length := byte(frameHeaderLen + len(f.Payload) + 1)
	w.Grow(2 + int(length))
	w.WriteByte(SOF)
	w.WriteByte(length)

	c := byte(0xff) ^ length
	writeChecksummed := func(b byte) {
		w.WriteByte(b)
		c ^= b
	}
	writeChecksummed(byte(f.Type))
	writeChecksummed(byte(f.FunctionID))
	for _, b := range f.Payload {
		writeChecksummed(b)
	}
	w.WriteByte(c)
}

// EncodeFrameBytes is a convenience wrapper returning the encoded bytes
// directly, for callers that don't already hold a *bytes.Buffer.
func EncodeFrameBytes(f Frame) []byte {
	var buf bytes.Buffer
	EncodeFrame(&buf, f)
	return buf.Bytes()
}

// ReadResult is the outcome of one call to Codec.ReadNext: either a
// control byte (ACK/NAK/CAN), a decoded Frame, or an error.
type ReadResult struct {
	// Control is non-zero when the result is a bare control byte rather
	// than a framed message.
	Control byte
	Frame   Frame
	IsFrame bool
}

// Codec turns a byte stream from the serial transport into ReadResults;
// outbound frames are built by EncodeFrame. It tracks the
// counters intrinsic to framing: SOF, ACK, NAK, CAN, OOF, and
// bad-checksum counts.
//
// Codec is not safe for concurrent use; the driver's read goroutine owns it.
type Codec struct {
	r   io.Reader
	buf []byte // scratch read buffer, reused across ReadNext calls

	Stats CodecStats
}

// CodecStats holds the framing-level counters.
type CodecStats struct {
	SOF         uint64
	ACK         uint64
	NAK         uint64
	CAN         uint64
	OOF         uint64
	BadChecksum uint64
}

// NewCodec wraps r, the serial transport's byte source.
func NewCodec(r io.Reader) *Codec {
	return &Codec{r: r, buf: make([]byte, 0, 256)}
}

func (c *Codec) readByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(c.r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadNext blocks for the next control byte or complete frame. On a
// framed message with a good checksum it does NOT itself write the ACK
// response — callers (the driver main loop) write the ACK token to the
// transport once they've accepted delivery. Bytes seen
// outside of any recognized lead-in bump OOF and are skipped.
func (c *Codec) ReadNext() (ReadResult, error) {
	for {
		b, err := c.readByte()
		if err != nil {
			return ReadResult{}, err
		}

		switch b {
		case ACK:
			c.Stats.ACK++
			return ReadResult{Control: ACK}, nil
		case NAK:
			c.Stats.NAK++
			return ReadResult{Control: NAK}, nil
		case CAN:
			c.Stats.CAN++
			return ReadResult{Control: CAN}, nil
		case SOF:
			c.Stats.SOF++
			return c.readFrame()
		default:
			c.Stats.OOF++
			continue
		}
	}
}

func (c *Codec) readFrame() (ReadResult, error) {
	length, err := c.readByte()
	if err != nil {
		return ReadResult{}, err
	}
	if int(length) < frameHeaderLen+1 {
		c.Stats.BadChecksum++
		return ReadResult{}, &ProtocolError{Reason: "frame length shorter than header"}
	}

	// LEN counts the checksum byte; everything before it is the body.
	body := make([]byte, int(length)-1)
	if _, err := io.ReadFull(c.r, body); err != nil {
		return ReadResult{}, err
	}
	chk, err := c.readByte()
	if err != nil {
		return ReadResult{}, err
	}

	want := checksum(length, body)
	if chk != want {
		c.Stats.BadChecksum++
		return ReadResult{}, ErrBadChecksum
	}

	f := Frame{
		Type:       FrameType(body[0]),
		FunctionID: FunctionID(body[1]),
		Payload:    body[2:],
	}
	return ReadResult{Frame: f, IsFrame: true}, nil
}

// ACKToken, NAKToken and CANToken are the single-byte wire representations
// of the respective control tokens, ready to hand to a transport Write.
var (
	ACKToken = []byte{ACK}
	NAKToken = []byte{NAK}
	CANToken = []byte{CAN}
)

// uint32FromBytes is a small helper for decoding the 32-bit home id and
// similar big-endian fields the driver parses out of capability
// responses.
func uint32FromBytes(b []byte) uint32 {
	var v [4]byte
	copy(v[:], b)
	return binary.BigEndian.Uint32(v[:])
}
