// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package classfiletest // import "go.opentelemetry.io/staticanalyzer/classfile/classfiletest"

import "encoding/binary"

// Asm appends instructions to a bytecode buffer.
type Asm struct {
	code []byte
}

// Pos returns the bci of the next instruction.
func (a *Asm) Pos() int {
	return len(a.code)
}

// Op appends an opcode followed by raw operand bytes.
func (a *Asm) Op(op byte, operands ...byte) *Asm {
	a.code = append(append(a.code, op), operands...)
	return a
}

// U16 appends an opcode with a 16-bit operand, e.g. a constant pool index.
func (a *Asm) U16(op byte, v uint16) *Asm {
	a.code = binary.BigEndian.AppendUint16(append(a.code, op), v)
	return a
}

// Branch appends a jump whose 16-bit offset is relative to the jump itself.
func (a *Asm) Branch(op byte, offset int16) *Asm {
	return a.U16(op, uint16(offset))
}

// Invokeinterface appends invokeinterface with its count and zero operands.
func (a *Asm) Invokeinterface(idx uint16, count uint8) *Asm {
	a.U16(0xb9, idx)
	a.code = append(a.code, count, 0)
	return a
}

// Invokedynamic appends invokedynamic with its two zero operand bytes.
func (a *Asm) Invokedynamic(idx uint16) *Asm {
	a.U16(0xba, idx)
	a.code = append(a.code, 0, 0)
	return a
}

// Tableswitch appends a tableswitch over [low, low+len(targets)). Offsets are
// relative to the switch instruction.
func (a *Asm) Tableswitch(defaultOffset int32, low int32, offsets ...int32) *Asm {
	a.code = append(a.code, 0xaa)
	for len(a.code)%4 != 0 {
		a.code = append(a.code, 0)
	}
	a.code = binary.BigEndian.AppendUint32(a.code, uint32(defaultOffset))
	a.code = binary.BigEndian.AppendUint32(a.code, uint32(low))
	a.code = binary.BigEndian.AppendUint32(a.code, uint32(low+int32(len(offsets))-1))
	for _, o := range offsets {
		a.code = binary.BigEndian.AppendUint32(a.code, uint32(o))
	}
	return a
}

// Lookupswitch appends a lookupswitch. keys must be sorted and match offsets one to one.
func (a *Asm) Lookupswitch(defaultOffset int32, keys, offsets []int32) *Asm {
	a.code = append(a.code, 0xab)
	for len(a.code)%4 != 0 {
		a.code = append(a.code, 0)
	}
	a.code = binary.BigEndian.AppendUint32(a.code, uint32(defaultOffset))
	a.code = binary.BigEndian.AppendUint32(a.code, uint32(len(keys)))
	for i, k := range keys {
		a.code = binary.BigEndian.AppendUint32(a.code, uint32(k))
		a.code = binary.BigEndian.AppendUint32(a.code, uint32(offsets[i]))
	}
	return a
}

// Bytes returns the assembled bytecode.
func (a *Asm) Bytes() []byte {
	return a.code
}
