// Package link frames packets over an unreliable byte stream such as a
// serial port.
//
// Both peers number their frames with a sequence starting from a value
// agreed during a sync handshake (0xff REQ, 0xfe ACK). Each frame is
//
//	seq | code + length | [extended length] | data | crc8
//
// The receiver checks the sequence and the CRC-8 (polynomial 0x07) and
// falls back to resynchronization on any mismatch. Frames lost during
// resync are not retransmitted, the command layer above times out.
package link
