package link

import (
	"container/list"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testStream struct {
	t          *testing.T
	byteCh     chan byte
	writeCh    chan byte
	injectCh   chan struct{}
	injectList list.List
	injectLock sync.Mutex
}

func newTestStream(t *testing.T) *testStream {
	return &testStream{
		t:        t,
		byteCh:   make(chan byte),
		writeCh:  make(chan byte, 64),
		injectCh: make(chan struct{}, 1),
	}
}

func (s *testStream) Read(p []byte) (int, error) {
	require.Len(s.t, p, 1)
	b, ok := <-s.byteCh
	if ok {
		p[0] = b
		return 1, nil
	}
	return 0, io.EOF
}

func (s *testStream) Write(p []byte) (int, error) {
	for _, b := range p {
		s.writeCh <- b
	}
	return len(p), nil
}

func (s *testStream) run() {
	for {
		var elm *list.Element
		s.injectLock.Lock()
		if s.injectList.Len() > 0 {
			elm = s.injectList.Front()
			s.injectList.Remove(elm)
		}
		s.injectLock.Unlock()
		if elm != nil {
			for _, b := range elm.Value.([]byte) {
				s.byteCh <- b
			}
			continue
		}
		if _, ok := <-s.injectCh; !ok {
			break
		}
	}
}

func (s *testStream) inject(p []byte) {
	if len(p) == 0 {
		return
	}
	s.injectLock.Lock()
	s.injectList.PushBack(p)
	s.injectLock.Unlock()
	select {
	case s.injectCh <- struct{}{}:
	default:
	}
}

type fifoTestCtx struct {
	t            *testing.T
	stream       *testStream
	fifo         *FIFO
	frameCh      chan *Frame
	stateCh      chan SyncState
	expectSeq    Seq
	stateChanges []SyncState
	lock         sync.Mutex
}

func (c *fifoTestCtx) expectStateChanges(expected ...SyncState) *fifoTestCtx {
	if len(expected) > 0 {
		select {
		case <-c.stateCh:
		case <-time.After(500 * time.Millisecond):
			c.t.Fatal("expect state change timeout")
		}
	}
	c.lock.Lock()
	changes := c.stateChanges
	c.stateChanges = nil
	c.lock.Unlock()
	require.Equal(c.t, expected, changes)
	return c
}

func (c *fifoTestCtx) fromSeq(seq Seq) *fifoTestCtx {
	c.expectSeq = seq
	return c
}

func (c *fifoTestCtx) expectFrame(code byte, data []byte) *fifoTestCtx {
	var frame *Frame
	select {
	case frame = <-c.frameCh:
	case <-time.After(500 * time.Millisecond):
		c.t.Fatal("expect frame timeout")
	}
	require.Equal(c.t, c.expectSeq, frame.Seq)
	require.Equal(c.t, code, frame.Code)
	if len(data) > 0 {
		require.Equal(c.t, data, frame.Data)
	} else {
		require.Empty(c.t, frame.Data)
	}
	c.expectSeq = c.expectSeq.Next()
	return c
}

func (c *fifoTestCtx) mustSend(code byte, data []byte) *fifoTestCtx {
	require.NoError(c.t, c.fifo.Send(&Frame{Code: code, Data: data}))
	return c
}

type fifoTestSequence struct {
	inject []byte
	expect []byte
	action func(int, *fifoTestCtx)
}

type fifoTestCase struct {
	name      string
	sequences []fifoTestSequence
}

func (tc *fifoTestCase) run(t *testing.T) {
	tctx := &fifoTestCtx{
		t:       t,
		stream:  newTestStream(t),
		frameCh: make(chan *Frame, 4),
		stateCh: make(chan SyncState, 1),
	}
	tctx.fifo = NewFIFO(tctx.stream)
	tctx.fifo.seq = Seq(1)
	tctx.fifo.Handler = HandleFrameFunc(func(ctx context.Context, frame *Frame) {
		tctx.frameCh <- frame
	})
	tctx.fifo.Notifier = StateChangedFunc(func(ctx context.Context, state SyncState) {
		tctx.lock.Lock()
		tctx.stateChanges = append(tctx.stateChanges, state)
		tctx.lock.Unlock()
		select {
		case tctx.stateCh <- state:
		default:
		}
	})

	go tctx.stream.run()
	errCh := make(chan error)
	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()
	defer func() { close(tctx.stream.injectCh) }()
	for n, sequence := range tc.sequences {
		tctx.stream.inject(sequence.inject)
		if n == 0 {
			go func() {
				errCh <- tctx.fifo.Run(ctx)
			}()
		}
		for writeLen := 0; writeLen < len(sequence.expect); writeLen++ {
			select {
			case b := <-tctx.stream.writeCh:
				require.Equalf(t, sequence.expect[writeLen], b, "sequences[%d].expect[%d] mismatch", n, writeLen)
			case <-time.After(500 * time.Millisecond):
				t.Fatalf("sequence[%d].expect[%d] timeout", n, writeLen)
			}
		}
		select {
		case err := <-errCh:
			require.NoError(t, err, "FIFO stopped")
		default:
			if a := sequence.action; a != nil {
				a(n, tctx)
			}
		}
	}
}

func encoded(frames ...*Frame) (b []byte) {
	for _, f := range frames {
		b = append(b, f.Bytes()...)
	}
	return
}

func TestFIFO(t *testing.T) {
	frames := []*Frame{
		{Seq: 1, Code: 0x02},
		{Seq: 2, Code: 0x82, Data: []byte{0x03}},
		{Seq: 3, Code: 0x02, Data: []byte{1, 2, 3, 4, 5, 6, 7, 8}},
	}
	cases := []fifoTestCase{
		{
			name: "sync and receive",
			sequences: []fifoTestSequence{
				{
					expect: []byte{syncREQ, 0x01},
				},
				{
					inject: []byte{syncACK, 0x01},
					action: func(n int, tctx *fifoTestCtx) {
						tctx.expectStateChanges(SyncStateReceiving, SyncStateReady)
					},
				},
				{
					inject: encoded(frames...),
					action: func(n int, tctx *fifoTestCtx) {
						tctx.fromSeq(Seq(0x01)).
							expectFrame(0x02, nil).
							expectFrame(0x82, []byte{0x03}).
							expectFrame(0x02, []byte{1, 2, 3, 4, 5, 6, 7, 8})
					},
				},
			},
		},
		{
			name: "sync and send",
			sequences: []fifoTestSequence{
				{
					expect: []byte{syncREQ, 0x01},
				},
				{
					inject: []byte{syncACK, 0x01},
					action: func(n int, tctx *fifoTestCtx) {
						tctx.expectStateChanges(SyncStateReceiving, SyncStateReady).
							mustSend(0x02, nil).
							mustSend(0x82, []byte{0x03}).
							mustSend(0x02, []byte{1, 2, 3, 4, 5, 6, 7, 8})
					},
				},
				{
					expect: encoded(frames...),
				},
			},
		},
		{
			name: "resync on bad crc",
			sequences: []fifoTestSequence{
				{
					expect: []byte{syncREQ, 0x01},
				},
				{
					inject: []byte{syncACK, 0x01},
					action: func(n int, tctx *fifoTestCtx) {
						tctx.expectStateChanges(SyncStateReceiving, SyncStateReady)
					},
				},
				{
					inject: []byte{0x01, 0x92, 0x03, 0x00},
					expect: []byte{syncREQ, 0x01},
					action: func(n int, tctx *fifoTestCtx) {
						require.Equal(tctx.t, uint64(1), tctx.fifo.Stats().Dropped)
						require.False(tctx.t, tctx.fifo.State().IsReady())
					},
				},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, tc.run)
	}
}

func TestSendNotReady(t *testing.T) {
	f := NewFIFO(newTestStream(t))
	require.ErrorIs(t, f.Send(&Frame{Code: CodeData}), ErrNotReady)
}

func TestFrameBytes(t *testing.T) {
	b := (&Frame{Seq: 3, Code: 0x02, Data: []byte{1, 2, 3, 4, 5, 6, 7, 8}}).Bytes()
	require.Equal(t, []byte{0x03, 0x72, 0x08, 1, 2, 3, 4, 5, 6, 7, 8}, b[:len(b)-1])
	require.Equal(t, CRC8(b[:len(b)-1]), b[len(b)-1])
	require.Equal(t, byte(0), CRC8(nil))
	// CRC-8/SMBUS check value.
	require.Equal(t, byte(0xf4), CRC8([]byte("123456789")))
}

func TestSeq(t *testing.T) {
	require.Equal(t, Seq(1), Seq(0xef).Next())
	require.Equal(t, Seq(2), Seq(1).Next())
	require.False(t, Seq(0).IsValid())
	require.False(t, Seq(0xf0).IsValid())
	require.True(t, NewSeq().IsValid())
}
