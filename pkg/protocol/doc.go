// Package protocol encodes and decodes feeder command and response frames.
//
// A command frame (version 1) is
//
//	opcode | feeder | operands | version | ignored trailing bytes
//
// where operands have a fixed width per opcode and multi-byte integers are
// big-endian. Lengths are delimited by the carrying transport.
//
// A response frame is
//
//	opcode|0x80 | feeder | status | code | state | fault | position(int32) | version | extension
//
// The extension depends on the opcode.
package protocol
