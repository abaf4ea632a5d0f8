// Package stream frames packets over byte streams like TCP connections.
package stream

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxPacketSize limits the size of a single packet.
const MaxPacketSize = 1024

// ErrPacketTooLarge is returned for packets above MaxPacketSize.
type ErrPacketTooLarge int

func (e ErrPacketTooLarge) Error() string {
	return fmt.Sprintf("packet size %d exceeds %d", int(e), MaxPacketSize)
}

// ReadWriter implements PacketReadWriter.
// Each packet is prefixed by 2-byte (little-endian) length.
type ReadWriter struct {
	io.ReadWriter
}

// New creates a ReadWriter with io.ReadWriter.
func New(s io.ReadWriter) *ReadWriter {
	return &ReadWriter{s}
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	var size uint16
	if err := binary.Read(p, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	if size > MaxPacketSize {
		return nil, ErrPacketTooLarge(size)
	}
	pkt := make([]byte, size)
	_, err := io.ReadFull(p, pkt)
	return pkt, err
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	if len(pkt) > MaxPacketSize {
		return ErrPacketTooLarge(len(pkt))
	}
	buf := make([]byte, 2+len(pkt))
	binary.LittleEndian.PutUint16(buf, uint16(len(pkt)))
	copy(buf[2:], pkt)
	_, err := p.Write(buf)
	return err
}

// Close implements io.Closer when the underlying stream does.
func (p *ReadWriter) Close() error {
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
