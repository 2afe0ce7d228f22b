package asm

import "tinymach/isa"

// Kind tags a Term the way the spec's data model describes it: a flat
// enumeration dispatched exhaustively, never a type hierarchy.
type Kind int

const (
	KindData Kind = iota
	KindInstruction
)

// Operand carries an addressing mode alongside its raw, not-yet-resolved
// token. Resolution (label name -> address, or literal -> integer) happens
// in the layout pass, once every label's address is known.
type Operand struct {
	Mode  isa.Mode
	Token string // identifier or literal, with any leading * or ** already stripped
}

// Term is one parsed source element: either a data definition or an
// instruction. A label bound directly to a term (whether written on the
// same line or standalone on a preceding line) is recorded on Labels.
type Term struct {
	Line   int
	Labels []string // zero or more names bound to this term's eventual address

	Kind Kind

	// Data fields (Kind == KindData). Size is the literal header word the
	// source provided; Values are the words that follow it, already
	// expanded (a quoted string contributes one value per code point).
	Size   int32
	Values []int32

	// Instruction fields (Kind == KindInstruction).
	Op      isa.Op
	Operand *Operand // nil when the opcode takes no operand
}

// Program is the parser's output: the optional data section followed by the
// required text section, each a term list in source order.
type Program struct {
	Data []Term
	Text []Term
}
