package frame

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	m := &Msg{Header: Header{ID: 0x123, DLC: 2, RTR: false, ExtID: true}}
	m.Data[0] = 0xAA
	m.Data[1] = 0xBB

	buf := Marshal(m, false)
	require.Len(t, buf, MsgLen(2, false))

	got, err := Unmarshal(buf, false)
	require.NoError(t, err)
	require.Equal(t, m.Header.ID, got.Header.ID)
	require.Equal(t, m.Header.DLC, got.Header.DLC)
	require.Equal(t, m.Header.ExtID, got.Header.ExtID)
	require.Equal(t, uint8(0xAA), got.Data[0])
	require.Equal(t, uint8(0xBB), got.Data[1])
}

func TestUnmarshalShortHeader(t *testing.T) {
	_, err := Unmarshal(make([]byte, HeaderSize-1), false)
	require.Error(t, err, "expected error for short header")
}

func TestUnmarshalShortPayload(t *testing.T) {
	buf := make([]byte, HeaderSize+1)
	buf[4] = 2 // dlc=2, but only one payload byte supplied
	_, err := Unmarshal(buf, false)
	require.Error(t, err, "expected error for short payload")
}

func TestMinMsgLen(t *testing.T) {
	require.EqualValues(t, HeaderSize, MinMsgLen)
	require.Equal(t, MinMsgLen, MsgLen(0, false))
}

func TestNewErrorFrame(t *testing.T) {
	f := NewErrorFrame(0x04)
	require.Equal(t, uint32(InternalErrorID), f.Header.ID)
	require.Equal(t, uint8(ErrorDLC), f.Header.DLC)
	require.True(t, f.Header.Error)
	require.Equal(t, uint8(0x04), f.Data[ErrorLatchByte])
	for i, b := range f.Data[:ErrorDLC] {
		if i == ErrorLatchByte {
			continue
		}
		require.Zero(t, b, "data[%d]", i)
	}
}
