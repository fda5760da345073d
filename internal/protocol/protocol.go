// Package protocol describes the register-level contract with the loaded image.
package protocol

// Register offsets in the application PF BAR0 address space.
// They must match the addresses decoded by the custom logic.
const (
	DotProductRegister uint64 = 0x500
	StatusRegister     uint64 = 0x504
)

// Protocol is a named register plus its operand encoding
type Protocol struct {
	Name   string
	Offset uint64
}

// DotProduct is the operand-pair-in / product-out register protocol
var DotProduct = Protocol{Name: "dot-product", Offset: DotProductRegister}

// Pack encodes an operand pair as a single 32-bit word, a in the upper half
func (Protocol) Pack(a, b uint16) uint32 {
	return uint32(a)<<16 | uint32(b)
}

// Unpack is the inverse of Pack
func (Protocol) Unpack(word uint32) (a, b uint16) {
	return uint16(word >> 16), uint16(word)
}
