package link

import (
	"context"
	"fmt"
	"io"
)

// Endpoint adapts a FIFO to transport.PacketReadWriter, one packet per
// CodeData frame.
type Endpoint struct {
	FIFO *FIFO

	packetCh chan []byte
	done     chan struct{}
}

// NewEndpoint creates an Endpoint over rw and takes over its frame handler.
func NewEndpoint(rw io.ReadWriter) *Endpoint {
	e := &Endpoint{
		FIFO:     NewFIFO(rw),
		packetCh: make(chan []byte, 16),
		done:     make(chan struct{}),
	}
	e.FIFO.Handler = HandleFrameFunc(e.handleFrame)
	return e
}

// ReadPacket implements PacketReader.
func (e *Endpoint) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-e.packetCh:
		return pkt, nil
	case <-e.done:
		return nil, io.EOF
	}
}

// WritePacket implements PacketWriter.
func (e *Endpoint) WritePacket(pkt []byte) error {
	if len(pkt) > MaxDataLen {
		return fmt.Errorf("packet of %d bytes exceeds frame limit %d", len(pkt), MaxDataLen)
	}
	return e.FIFO.Send(&Frame{Code: CodeData, Data: pkt})
}

// Run implements Runnable.
func (e *Endpoint) Run(ctx context.Context) error {
	defer close(e.done)
	return e.FIFO.Run(ctx)
}

func (e *Endpoint) handleFrame(ctx context.Context, frame *Frame) {
	if frame.Code != CodeData {
		return
	}
	select {
	case e.packetCh <- frame.Data:
	case <-ctx.Done():
	}
}
