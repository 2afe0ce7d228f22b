package asm

import "fmt"

// LayoutError is returned for every failure discovered while assigning
// addresses or resolving operands - the assembler's second phase, after
// parsing has already succeeded.
type LayoutError struct {
	Line int
	Msg  string
}

func (e *LayoutError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return e.Msg
}

// MaxImageWords bounds how large an assembled image may grow. It is not
// dictated by the spec; this is a generous default meant only to catch
// runaway programs, not a hardware limit.
const MaxImageWords = 1 << 20

// Layout runs both linker passes over a parsed Program and produces the
// final Image: pass 1 assigns every term a word address (reordering text so
// the _start block comes first, right after the prologue), pass 2 resolves
// every operand token against the resulting label table.
func Layout(prog Program) (Image, error) {
	textOrder, err := reorderText(prog.Text)
	if err != nil {
		return nil, err
	}

	labels := map[string]int32{}
	wordIndex := StartWordIndex

	for i := range textOrder {
		for _, name := range textOrder[i].Labels {
			labels[name] = int32(wordIndex) * 4
		}
		wordIndex++
	}

	for i := range prog.Data {
		for _, name := range prog.Data[i].Labels {
			labels[name] = int32(wordIndex) * 4
		}
		wordIndex += 1 + len(prog.Data[i].Values)
	}

	if wordIndex > MaxImageWords {
		return nil, &LayoutError{Msg: fmt.Sprintf("image of %d words exceeds the %d word limit", wordIndex, MaxImageWords)}
	}

	resolve := func(tok string) (int32, error) {
		if n, err := parseIntLiteral(tok); err == nil {
			return n, nil
		}
		addr, ok := labels[tok]
		if !ok {
			return 0, fmt.Errorf("undefined label: %s", tok)
		}
		return addr, nil
	}

	img := make(Image, 0, wordIndex)

	// Prologue: 8 vector slots, then 2 AC/PC save words. An unbound
	// int1..int8 handler resolves to the sentinel 0 ("untriggerable").
	for slot := 1; slot <= VectorSlots; slot++ {
		var v int32
		if addr, ok := labels[fmt.Sprintf("int%d", slot)]; ok {
			v = addr
		}
		img = append(img, Record{Index: len(img), Value: &v})
	}
	for i := 0; i < SaveSlots; i++ {
		var zero int32
		img = append(img, Record{Index: len(img), Value: &zero})
	}

	for _, term := range textOrder {
		rec := Record{Index: len(img), Opcode: term.Op.String(), Line: term.Line}
		if len(term.Labels) > 0 {
			rec.Label = term.Labels[0]
		}
		if term.Operand != nil {
			v, err := resolve(term.Operand.Token)
			if err != nil {
				return nil, &LayoutError{Line: term.Line, Msg: err.Error()}
			}
			rec.Arg = &v
			rec.Mode = term.Operand.Mode.String()
		}
		img = append(img, rec)
	}

	for _, term := range prog.Data {
		label := ""
		if len(term.Labels) > 0 {
			label = term.Labels[0]
		}
		size := term.Size
		img = append(img, Record{Index: len(img), Label: label, Value: &size, Line: term.Line})
		for _, v := range term.Values {
			v := v
			img = append(img, Record{Index: len(img), Value: &v, Line: term.Line})
		}
	}

	return img, nil
}

// reorderText implements the emission order from the data model's
// invariants: the _start block (from _start's own instruction through the
// end of the text section) comes first, right after the prologue, followed
// by whatever instructions preceded _start in the source.
func reorderText(text []Term) ([]Term, error) {
	startIdx := -1
	for i, t := range text {
		for _, name := range t.Labels {
			if name == "_start" {
				startIdx = i
			}
		}
	}
	if startIdx < 0 {
		return nil, &LayoutError{Msg: "_start is not bound to any instruction"}
	}

	ordered := make([]Term, 0, len(text))
	ordered = append(ordered, text[startIdx:]...)
	ordered = append(ordered, text[:startIdx]...)
	return ordered, nil
}
