package asm

import "encoding/json"

// VectorSlots is the number of interrupt vector slots in the prologue.
const VectorSlots = 8

// SaveSlots is the number of AC/PC save words in the prologue.
const SaveSlots = 2

// PrologueWords is the total prologue size in words (8 vectors + 2 save).
const PrologueWords = VectorSlots + SaveSlots

// StartWordIndex is where _start's first instruction always lands.
const StartWordIndex = PrologueWords

// StartByteAddr is StartWordIndex expressed as a byte address.
const StartByteAddr = StartWordIndex * 4

// Record is one word-sized slot of an Image. It is either a data record
// (Opcode == "") or an instruction record.
type Record struct {
	Index  int    `json:"index"`
	Label  string `json:"label,omitempty"`
	Value  *int32 `json:"value,omitempty"`
	Opcode string `json:"opcode,omitempty"`
	Arg    *int32 `json:"arg,omitempty"`
	Mode   string `json:"mode,omitempty"`
	Line   int    `json:"line"`
}

// IsData reports whether this record is a data word rather than an
// instruction.
func (r Record) IsData() bool {
	return r.Opcode == ""
}

// Image is the ordered list of memory words an assembled program produces.
// Index i of the slice always names word address i (byte address 4*i).
type Image []Record

// Serialize writes the image as the stable textual representation the
// simulator reads: a JSON array of records, index-ordered.
func Serialize(img Image) ([]byte, error) {
	return json.MarshalIndent(img, "", "  ")
}

// Deserialize parses the textual representation back into an Image,
// checking that record indices form the expected dense 0..n-1 run.
func Deserialize(data []byte) (Image, error) {
	var img Image
	if err := json.Unmarshal(data, &img); err != nil {
		return nil, err
	}
	for i, r := range img {
		if r.Index != i {
			return nil, &LayoutError{Msg: "image record index out of order"}
		}
	}
	if len(img) < PrologueWords {
		return nil, &LayoutError{Msg: "image shorter than the prologue"}
	}
	return img, nil
}
