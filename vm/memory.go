package vm

import "encoding/binary"

// wordSize is the number of bytes in one addressable word.
const wordSize = 4

// Memory is byte-addressed linear storage with a 32-bit signed word view.
// Word accesses must be 4-byte aligned; a misaligned access is fatal
// (reported by panicking with a misaligned_access *FatalError, never returned as a Go error -
// the control unit panics across call frames the same way the rest of the
// package does for every runtime fatal condition).
type Memory struct {
	bytes []byte
}

// NewMemory allocates a byte array sized to hold the image plus extraWords
// of scratch data space, per the "image size rounded up, plus a configurable
// data region" sizing rule.
func NewMemory(imageWords, extraWords int) *Memory {
	size := (imageWords + extraWords) * wordSize
	return &Memory{bytes: make([]byte, size)}
}

func (m *Memory) Len() int { return len(m.bytes) }

// GetWord reads the 32-bit signed word at byte address addr.
func (m *Memory) GetWord(addr int32) int32 {
	off := m.checkedOffset(addr)
	return int32(binary.LittleEndian.Uint32(m.bytes[off : off+wordSize]))
}

// SetWord writes the 32-bit signed word at byte address addr.
func (m *Memory) SetWord(addr int32, v int32) {
	off := m.checkedOffset(addr)
	binary.LittleEndian.PutUint32(m.bytes[off:off+wordSize], uint32(v))
}

func (m *Memory) checkedOffset(addr int32) int {
	if addr%wordSize != 0 {
		panic(&FatalError{Kind: "misaligned_access", Msg: "misaligned word access"})
	}
	off := int(addr)
	if off < 0 || off+wordSize > len(m.bytes) {
		panic(&FatalError{Kind: "memory_out_of_range", Msg: "address out of range"})
	}
	return off
}
