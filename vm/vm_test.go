package vm

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinymach/asm"
)

func mustAssemble(t *testing.T, src string) asm.Image {
	t.Helper()
	img, err := asm.Translate(src)
	require.NoError(t, err, "assembling test program")
	return img
}

// printLiteral emits one ld/out pair per byte of s, writing it to the given port -
// the style every text-printing example below uses, since the ISA has no
// addressing mode that turns a label into the address it names.
func printLiteral(s string, port int) string {
	var b strings.Builder
	for _, r := range []byte(s) {
		fmt.Fprintf(&b, "\tld %d\n\tout %d\n", r, port)
	}
	return b.String()
}

func TestHelloWorld(t *testing.T) {
	src := ".text\n_start:\n" + printLiteral("Hello, world!", PortConsole) + "\thlt\n"
	img := mustAssemble(t, src)

	report, err := Run(img, nil, 10_000)
	require.NoError(t, err)
	assert.Equal(t, Halt, report.Reason)
	assert.Equal(t, "Hello, world!", string(report.Outputs[PortConsole]))
}

func TestEuler1SumOfMultiples(t *testing.T) {
	// Each scalar below is a size-only data term (no trailing values): the
	// label names that single header word, and every one of them is
	// overwritten by st before its first ld, so the declared size literal
	// is never actually read as data.
	src := `
.data
sum: 1
idx: 1
q3: 1
q5: 1
.text
_start:
	ld 0
	st sum
	ld 0
	st idx
loop:
	ld idx
	cmp 1000
	jz done
	ld idx
	div 3
	mul 3
	st q3
	ld idx
	sub q3
	jz addit
	ld idx
	div 5
	mul 5
	st q5
	ld idx
	sub q5
	jz addit
	jmp skip
addit:
	ld sum
	add idx
	st sum
skip:
	ld idx
	add 1
	st idx
	jmp loop
done:
	ld sum
	out 3
	asr
	asr
	asr
	asr
	asr
	asr
	asr
	asr
	out 3
	asr
	asr
	asr
	asr
	asr
	asr
	asr
	asr
	out 3
	asr
	asr
	asr
	asr
	asr
	asr
	asr
	asr
	out 3
	hlt
`
	img := mustAssemble(t, src)

	report, err := Run(img, nil, 1_000_000)
	require.NoError(t, err)
	require.Equal(t, Halt, report.Reason)

	want := int32(233168)
	var expected [4]byte
	n := want
	for i := range expected {
		expected[i] = byte(n)
		n = n >> 8
	}
	assert.Equal(t, expected[:], report.Outputs[PortConsole])
}

func TestNamePrompt(t *testing.T) {
	var b strings.Builder
	b.WriteString(".data\n")
	b.WriteString("c0: 1\nc1: 1\nc2: 1\nc3: 1\n")
	b.WriteString(".text\n_start:\n")
	b.WriteString(printLiteral("What is your name?", PortConsole))

	const inputPort = 13
	cells := []string{"c0", "c1", "c2", "c3"}
	for i, cell := range cells {
		fmt.Fprintf(&b, "\tin %d\n\tcmp 10\n\tjz done%d\n\tst %s\n", inputPort, i, cell)
	}
	fmt.Fprintf(&b, "\tjmp done%d\n", len(cells))

	for i := range cells {
		fmt.Fprintf(&b, "done%d:\n\tjmp greet%d\n", i, i)
	}
	fmt.Fprintf(&b, "done%d:\n\tjmp greet%d\n", len(cells), len(cells))

	for n := 0; n <= len(cells); n++ {
		fmt.Fprintf(&b, "greet%d:\n", n)
		b.WriteString(printLiteral("Hello, ", PortConsole))
		for i := 0; i < n; i++ {
			fmt.Fprintf(&b, "\tld %s\n\tout %d\n", cells[i], PortConsole)
		}
		b.WriteString(printLiteral("!", PortConsole))
		b.WriteString("\thlt\n")
	}

	img := mustAssemble(t, b.String())

	inputs := []InputEvent{
		{Port: inputPort, Byte: 'A', Tick: 0},
		{Port: inputPort, Byte: 'd', Tick: 0},
		{Port: inputPort, Byte: 'a', Tick: 0},
		{Port: inputPort, Byte: '\n', Tick: 0},
	}

	report, err := Run(img, inputs, 100_000)
	require.NoError(t, err)
	assert.Equal(t, Halt, report.Reason)
	assert.Equal(t, "What is your name?Hello, Ada!", string(report.Outputs[PortConsole]))
}

func TestInterruptSmokeTest(t *testing.T) {
	src := `
.text
_start:
	eni
mainloop:
	nop
	jmp mainloop
int1:
	in 1
	out 3
	fi
`
	img := mustAssemble(t, src)

	inputs := []InputEvent{
		{Port: 1, Byte: 'A', Tick: 10},
		{Port: 1, Byte: 'B', Tick: 20},
		{Port: 1, Byte: 'C', Tick: 30},
	}

	report, err := Run(img, inputs, 200)
	require.NoError(t, err)
	assert.Equal(t, TicksExhausted, report.Reason)
	assert.Equal(t, "ABC", string(report.Outputs[PortConsole]))
	assert.Equal(t, 3, report.ISREvents)
}

func TestDivisionByZeroIsFatal(t *testing.T) {
	src := `
.text
_start:
	ld 1
	div 0
	hlt
`
	img := mustAssemble(t, src)

	report, err := Run(img, nil, 1000)
	require.NoError(t, err)
	assert.Equal(t, TerminationReason("fatal:div_by_zero"), report.Reason)
}

func TestBudgetExhaustion(t *testing.T) {
	src := `
.text
_start:
	jmp _start
`
	img := mustAssemble(t, src)

	report, err := Run(img, nil, 1000)
	require.NoError(t, err)
	assert.Equal(t, TicksExhausted, report.Reason)
	assert.Equal(t, 1000, report.Ticks)
	assert.Equal(t, asm.StartByteAddr, int(report.Registers.PC))
}

func TestFlagConsistency(t *testing.T) {
	src := `
.text
_start:
	ld -5
	hlt
`
	img := mustAssemble(t, src)

	report, err := Run(img, nil, 1000)
	require.NoError(t, err)
	assert.Equal(t, Halt, report.Reason)
	assert.True(t, report.Registers.N)
	assert.False(t, report.Registers.Z)
	assert.Equal(t, int32(-5), report.Registers.AC)
}

func TestStoreThroughDerefPointer(t *testing.T) {
	// A label names the size/header word of its data term, not a following
	// value, so there is no operand syntax for "address of target" - the
	// program has to be told that address as a literal. Assemble the
	// template once with a placeholder to discover target's address (word
	// count, and so every address, is identical regardless of the literal's
	// value), then assemble it again with the real address spliced in.
	template := `
.data
ptr: 1
target: 1
.text
_start:
	ld %d
	st ptr
	ld 42
	st *ptr
	ld target
	out 3
	hlt
`
	probeImg := mustAssemble(t, fmt.Sprintf(template, 0))
	var targetAddr int32
	found := false
	for _, rec := range probeImg {
		if rec.Label == "target" {
			targetAddr = int32(rec.Index * 4)
			found = true
		}
	}
	require.True(t, found, "probe image should define target")

	img := mustAssemble(t, fmt.Sprintf(template, targetAddr))

	report, err := Run(img, nil, 1000)
	require.NoError(t, err)
	assert.Equal(t, Halt, report.Reason)
	assert.Equal(t, []byte{42}, report.Outputs[PortConsole])
}

func TestOutputOrderIsDeterministic(t *testing.T) {
	src := ".text\n_start:\n" + printLiteral("xyz", PortConsole) + "\thlt\n"
	img := mustAssemble(t, src)

	r1, err1 := Run(img, nil, 10_000)
	r2, err2 := Run(img, nil, 10_000)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, r1, r2)
}
