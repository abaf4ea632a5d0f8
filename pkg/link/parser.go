package link

// Parser parses received bytes one at a time.
type Parser struct {
	peerSeq Seq
	state   parseState
	frame   *Frame
	recvLen byte
	crc     byte
}

// SyncState indicates the state of the link.
type SyncState int

const (
	// SyncStateSyncing means the link is not synchronized.
	SyncStateSyncing SyncState = 0
	// SyncStateReady means the link is synchronized and ready for frames.
	SyncStateReady SyncState = 0x01
	// SyncStateReceiving means a sync handshake or a frame is in progress.
	SyncStateReceiving SyncState = 0x02
)

// IsReady indicates if the link is ready for frames.
func (s SyncState) IsReady() bool {
	return s&SyncStateReady != 0
}

// IsReceiving indicates a sync handshake or a frame is in progress.
func (s SyncState) IsReceiving() bool {
	return s&SyncStateReceiving != 0
}

// TimerAction defines what to do with the sync timer.
type TimerAction int

const (
	// TimerNoChange keeps the timer as-is.
	TimerNoChange TimerAction = iota
	// TimerRestart restarts the timer.
	TimerRestart
	// TimerStop stops the timer.
	TimerStop
)

// ParseResult is the result of one parsing step.
type ParseResult struct {
	// Sync is the sync byte to send to the peer, or 0.
	Sync  byte
	State SyncState
	Frame *Frame
	// Dropped is set when a frame failed the CRC check.
	Dropped bool
}

// WhatAboutTimer decides what to do with the sync timer.
func (r ParseResult) WhatAboutTimer() TimerAction {
	if r.State.IsReceiving() || r.Sync == syncREQ {
		return TimerRestart
	}
	if r.State.IsReady() {
		return TimerStop
	}
	return TimerNoChange
}

type parseState int

const (
	stateSyncAck    parseState = iota // sync req sent, waiting for syncACK
	stateSyncReqSeq                   // waiting for sync seq after syncREQ
	stateSyncAckSeq                   // waiting for sync seq after syncACK
	stateMsgSeq                       // waiting for frame seq
	stateMsgAckSeq                    // recv ack in MsgSeq, validate seq
	stateMsgCode                      // waiting for frame code
	stateMsgLen                       // waiting for extended length
	stateMsgData                      // waiting for data
	stateMsgCRC                       // waiting for crc8
)

const (
	syncREQ byte = 0xff
	syncACK byte = 0xfe
)

// State gets the current sync state.
func (p *Parser) State() SyncState {
	switch {
	case p.state == stateSyncAck:
		return SyncStateSyncing
	case p.state == stateMsgSeq:
		return SyncStateReady
	case p.state > stateMsgSeq:
		return SyncStateReady | SyncStateReceiving
	}
	return SyncStateSyncing | SyncStateReceiving
}

// Reset drops any partial frame and starts a sync handshake.
func (p *Parser) Reset() (pr ParseResult) {
	p.frame = nil
	pr.Sync = p.resync()
	pr.State = p.State()
	return
}

// Parse consumes one byte.
func (p *Parser) Parse(b byte) (pr ParseResult) {
	pr = p.parseByte(b)
	pr.State = p.State()
	return
}

// Timeout notifies the parser the sync timer expired.
func (p *Parser) Timeout() (pr ParseResult) {
	if p.state != stateMsgSeq {
		pr.Sync = p.resync()
	}
	pr.State = p.State()
	return
}

func (p *Parser) parseByte(b byte) (pr ParseResult) {
	switch p.state {
	case stateSyncAck:
		switch b {
		case syncREQ:
			p.state = stateSyncReqSeq
		case syncACK:
			p.state = stateSyncAckSeq
		}
	case stateSyncReqSeq:
		if seq := Seq(b); seq.IsValid() {
			p.peerSeq, p.state = seq, stateMsgSeq
			pr.Sync = syncACK
			return
		}
		pr.Sync = p.resync()
	case stateSyncAckSeq:
		if seq := Seq(b); seq.IsValid() {
			p.peerSeq, p.state = seq, stateMsgSeq
			return
		}
		pr.Sync = p.resync()
	case stateMsgSeq:
		switch b {
		case syncREQ:
			p.state = stateSyncReqSeq
		case syncACK:
			p.state = stateMsgAckSeq
		case byte(p.peerSeq):
			p.frame = &Frame{Seq: p.peerSeq}
			p.crc = crc8Table[b]
			p.peerSeq = p.peerSeq.Next()
			p.state = stateMsgCode
		default:
			pr.Sync = p.resync()
		}
	case stateMsgAckSeq:
		if b != byte(p.peerSeq) {
			pr.Sync = p.resync()
			return
		}
		p.state = stateMsgSeq
	case stateMsgCode:
		p.crc = crc8Table[p.crc^b]
		p.frame.Code = b & CodeMask
		switch dataLen := (b & lenMask) >> lenShift; dataLen {
		case 0:
			p.state = stateMsgCRC
		case lenExtended:
			p.state = stateMsgLen
		default:
			p.frame.Data, p.recvLen = make([]byte, dataLen), 0
			p.state = stateMsgData
		}
	case stateMsgLen:
		if b > MaxDataLen {
			pr.Sync = p.resync()
			return
		}
		p.crc = crc8Table[p.crc^b]
		if b == 0 {
			p.state = stateMsgCRC
			return
		}
		p.frame.Data, p.recvLen = make([]byte, b), 0
		p.state = stateMsgData
	case stateMsgData:
		p.crc = crc8Table[p.crc^b]
		p.frame.Data[p.recvLen] = b
		p.recvLen++
		if int(p.recvLen) >= len(p.frame.Data) {
			p.state = stateMsgCRC
		}
	case stateMsgCRC:
		if b != p.crc {
			pr.Dropped = true
			pr.Sync = p.resync()
			return
		}
		p.state = stateMsgSeq
		pr.Frame, p.frame = p.frame, nil
	}
	return
}

func (p *Parser) resync() byte {
	p.state, p.frame = stateSyncAck, nil
	return syncREQ
}
