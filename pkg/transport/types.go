// Package transport defines packet oriented links between a host and
// the feeder controller.
package transport

import (
	"errors"
	"io"
	"sync"
)

// PacketReader reads packets in bytes.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// PacketWriter writes packets in bytes.
type PacketWriter interface {
	WritePacket([]byte) error
}

// PacketReadWriter reads/writes packets in bytes.
type PacketReadWriter interface {
	PacketReader
	PacketWriter
}

// ErrClosed is returned when writing to a closed pipe end.
var ErrClosed = errors.New("transport closed")

// PipeEnd is one end of an in-process packet pipe.
type PipeEnd struct {
	recv <-chan []byte
	send chan<- []byte
	done chan struct{}
	once *sync.Once
}

// Pipe creates a pair of connected in-process links.
func Pipe() (*PipeEnd, *PipeEnd) {
	ab, ba := make(chan []byte, 16), make(chan []byte, 16)
	done, once := make(chan struct{}), &sync.Once{}
	return &PipeEnd{recv: ba, send: ab, done: done, once: once},
		&PipeEnd{recv: ab, send: ba, done: done, once: once}
}

// ReadPacket implements PacketReader.
func (p *PipeEnd) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.recv:
		return pkt, nil
	case <-p.done:
		return nil, io.EOF
	}
}

// WritePacket implements PacketWriter.
func (p *PipeEnd) WritePacket(pkt []byte) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	select {
	case p.send <- append([]byte(nil), pkt...):
		return nil
	case <-p.done:
		return ErrClosed
	}
}

// Close closes both ends.
func (p *PipeEnd) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
