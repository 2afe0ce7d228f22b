package asm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequiresStart(t *testing.T) {
	_, err := Parse(".text\nnop\nhlt\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "_start")
}

func TestParseSimpleTextSection(t *testing.T) {
	src := `
.text
_start:
	ld 5
	out 3
	hlt
`
	prog, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, prog.Text, 3)
	assert.Equal(t, []string{"_start"}, prog.Text[0].Labels)
	assert.Equal(t, "ld", prog.Text[0].Op.String())
	require.NotNil(t, prog.Text[0].Operand)
	assert.Equal(t, "5", prog.Text[0].Operand.Token)
}

func TestParseStandaloneLabelBindsNextTerm(t *testing.T) {
	src := `
.text
_start:
	jmp loop
loop:
	nop
	hlt
`
	prog, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, prog.Text, 3)
	assert.Equal(t, []string{"loop"}, prog.Text[1].Labels)
}

func TestParseDuplicateLabel(t *testing.T) {
	src := `
.text
_start:
	nop
_start:
	hlt
`
	_, err := Parse(src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate label")
}

func TestParseDataSection(t *testing.T) {
	src := `
.data
msg: 5, "Hi!!!"
count: 1, 42
.text
_start:
	hlt
`
	prog, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, prog.Data, 2)
	assert.Equal(t, int32(5), prog.Data[0].Size)
	assert.Equal(t, []int32{'H', 'i', '!', '!', '!'}, prog.Data[0].Values)
	assert.Equal(t, int32(1), prog.Data[1].Size)
	assert.Equal(t, []int32{42}, prog.Data[1].Values)
}

func TestParseRejectsDataInText(t *testing.T) {
	src := `
.text
_start:
	1, 2, 3
`
	_, err := Parse(src)
	require.Error(t, err)
}

func TestParseStoreRejectsValueMode(t *testing.T) {
	src := `
.text
_start:
	st 5
`
	_, err := Parse(src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "addressing mode")
}

func TestParseStoreAcceptsDerefMode(t *testing.T) {
	src := `
.data
ptr: 1, 0
.text
_start:
	st *ptr
	hlt
`
	prog, err := Parse(src)
	require.NoError(t, err)
	require.NotNil(t, prog.Text[0].Operand)
}

func TestParseUnknownOpcode(t *testing.T) {
	_, err := Parse(".text\n_start:\n\tfrobnicate\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown opcode")
}
