// Package asm implements the lexer/parser, linker and machine-code
// serializer halves of the toolchain: translating assembly source into the
// image format the simulator (package vm) executes.
package asm

// Translate is the assembler's entire external interface: source text in,
// an assembled Image out. It is a pure function - the same source always
// produces the same image.
func Translate(source string) (Image, error) {
	prog, err := Parse(source)
	if err != nil {
		return nil, err
	}
	return Layout(prog)
}
