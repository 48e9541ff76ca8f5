// Package visca holds the structural constants of the VISCA serial protocol.
// The gateway forwards VISCA bytes opaquely, the only check performed is the
// framing sanity check below.
package visca

// Framing bytes. A packet starts with the sender address byte and always
// ends with the terminator.
const (
	CommandPrefix  = 0x81
	InquiryPrefix  = 0x82
	ResponsePrefix = 0x90
	Terminator     = 0xFF
)

// Valid reports whether data looks like a single VISCA packet. This is a
// sanity check, not a parser: only the first and last byte are inspected.
func Valid(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	switch data[0] {
	case CommandPrefix, InquiryPrefix, ResponsePrefix:
	default:
		return false
	}
	return data[len(data)-1] == Terminator
}
