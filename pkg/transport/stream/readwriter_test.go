package stream

import (
	"bytes"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadWriter(t *testing.T) {
	var buf bytes.Buffer
	rw := New(&buf)
	require.NoError(t, rw.WritePacket([]byte{0x05, 0x01, 0x10}))
	require.NoError(t, rw.WritePacket(nil))
	require.Equal(t, []byte{0x03, 0x00, 0x05, 0x01, 0x10, 0x00, 0x00}, buf.Bytes())

	pkt, err := rw.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, []byte{0x05, 0x01, 0x10}, pkt)
	pkt, err = rw.ReadPacket()
	require.NoError(t, err)
	require.Empty(t, pkt)
	_, err = rw.ReadPacket()
	require.ErrorIs(t, err, io.EOF)
}

func TestPacketTooLarge(t *testing.T) {
	var buf bytes.Buffer
	rw := New(&buf)
	err := rw.WritePacket(make([]byte, MaxPacketSize+1))
	require.Equal(t, ErrPacketTooLarge(MaxPacketSize+1), err)
	require.Zero(t, buf.Len())

	buf.Write([]byte{0xff, 0xff, 1, 2, 3})
	_, err = rw.ReadPacket()
	require.Equal(t, ErrPacketTooLarge(0xffff), err)
}

func TestTruncated(t *testing.T) {
	rw := New(bytes.NewBuffer([]byte{0x04, 0x00, 1, 2}))
	_, err := rw.ReadPacket()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestOverConn(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	go func() {
		New(a).WritePacket([]byte("hello"))
	}()
	pkt, err := New(b).ReadPacket()
	require.NoError(t, err)
	require.Equal(t, "hello", string(pkt))
}
