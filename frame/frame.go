package frame

import (
	"encoding/binary"
	"fmt"
)

// MaxDataBytes is the largest payload a Msg can carry (CAN-FD dlc=15).
const MaxDataBytes = 64

// HeaderSize is the on-wire size of Header, independent of payload.
const HeaderSize = 8

// Header is the CAN frame header: { id, dlc, rtr, error, extid }. On the
// wire it is HeaderSize bytes: id as a little-endian uint32, dlc in byte
// 4, the three flags packed into byte 5, and two zero pad bytes.
// Marshal/Unmarshal convert by hand with bit-twiddling, the same
// discipline go-ublk's internal/uapi package uses for kernel-ABI structs.
type Header struct {
	ID    uint32 // 11-bit (standard) or 29-bit (extended) identifier
	DLC   uint8  // 4-bit data length code
	RTR   bool   // remote transmission request
	Error bool   // error frame
	ExtID bool   // extended (29-bit) identifier in use
}

// headerFlag bit positions within the wire flags byte.
const (
	flagRTR   = 1 << 0
	flagError = 1 << 1
	flagExtID = 1 << 2
)

// Msg is a CAN frame: a Header plus up to MaxDataBytes of payload.
// Only Data[:Bytes(Header.DLC, canFD)] is meaningful; the rest is unused
// storage reused across ring slots.
type Msg struct {
	Header Header
	Data   [MaxDataBytes]byte
}

// Len returns the serialized length of m under the given CAN-FD setting.
func (m *Msg) Len(canFD bool) int {
	return MsgLen(m.Header.DLC, canFD)
}

// MsgLen returns HEADER_SIZE + bytes(dlc), the minimum buffer a caller
// must supply to read or write a frame with this dlc.
func MsgLen(dlc uint8, canFD bool) int {
	return HeaderSize + Bytes(dlc, canFD)
}

// MinMsgLen is the smallest possible serialized frame (dlc=0).
const MinMsgLen = HeaderSize

// Marshal serializes m into HeaderSize+bytes(dlc) little-endian bytes.
func Marshal(m *Msg, canFD bool) []byte {
	n := Bytes(m.Header.DLC, canFD)
	buf := make([]byte, HeaderSize+n)
	marshalHeader(buf[:HeaderSize], &m.Header)
	copy(buf[HeaderSize:], m.Data[:n])
	return buf
}

// Unmarshal parses a frame from data, which must be at least HeaderSize
// long and at least MsgLen(dlc, canFD) long once the dlc is known.
func Unmarshal(data []byte, canFD bool) (*Msg, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("frame: short header, have %d want %d", len(data), HeaderSize)
	}
	m := &Msg{}
	unmarshalHeader(data[:HeaderSize], &m.Header)
	n := Bytes(m.Header.DLC, canFD)
	if len(data) < HeaderSize+n {
		return nil, fmt.Errorf("frame: short payload, have %d want %d", len(data), HeaderSize+n)
	}
	copy(m.Data[:n], data[HeaderSize:HeaderSize+n])
	return m, nil
}

func marshalHeader(buf []byte, h *Header) {
	binary.LittleEndian.PutUint32(buf[0:4], h.ID)
	buf[4] = h.DLC & 0x0f
	var flags uint8
	if h.RTR {
		flags |= flagRTR
	}
	if h.Error {
		flags |= flagError
	}
	if h.ExtID {
		flags |= flagExtID
	}
	buf[5] = flags
	buf[6] = 0
	buf[7] = 0
}

func unmarshalHeader(buf []byte, h *Header) {
	h.ID = binary.LittleEndian.Uint32(buf[0:4])
	h.DLC = buf[4] & 0x0f
	flags := buf[5]
	h.RTR = flags&flagRTR != 0
	h.Error = flags&flagError != 0
	h.ExtID = flags&flagExtID != 0
}

// Error-frame wire constants (spec.md §6): synthesized by Device.Read
// when the error latch is non-zero and ERRORS is compiled in.
const (
	// InternalErrorID is the identifier used for synthesized error frames.
	InternalErrorID = 0x1FFFFFFF
	// ErrorDLC is the dlc of a synthesized error frame (8 data bytes).
	ErrorDLC = 8
	// ErrorLatchByte is the data offset carrying the latched error bitmap.
	ErrorLatchByte = 5
)

// NewErrorFrame synthesizes the one error frame produced per latched
// error bitmap: id=InternalErrorID, dlc=ErrorDLC, error flag set, data
// zeroed except byte ErrorLatchByte which holds the latch value.
func NewErrorFrame(latch uint8) *Msg {
	m := &Msg{Header: Header{
		ID:    InternalErrorID,
		DLC:   ErrorDLC,
		Error: true,
	}}
	m.Data[ErrorLatchByte] = latch
	return m
}
