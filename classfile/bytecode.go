// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package classfile // import "go.opentelemetry.io/staticanalyzer/classfile"

import (
	"errors"
	"fmt"

	npsr "go.opentelemetry.io/staticanalyzer/nopanicslicereader"
)

// Opcodes that the analysis distinguishes. The remaining opcodes only matter through
// their length, see Decode.
const (
	OpNop             = 0x00
	OpAconstNull      = 0x01
	OpIconst0         = 0x03
	OpBipush          = 0x10
	OpSipush          = 0x11
	OpLdc             = 0x12
	OpLdcW            = 0x13
	OpLdc2W           = 0x14
	OpIload           = 0x15
	OpAload           = 0x19
	OpAload0          = 0x2a
	OpIstore          = 0x36
	OpAstore          = 0x3a
	OpAstore1         = 0x4c
	OpPop             = 0x57
	OpDup             = 0x59
	OpIadd            = 0x60
	OpIinc            = 0x84
	OpIfeq            = 0x99
	OpIfne            = 0x9a
	OpIfIcmpeq        = 0x9f
	OpIfAcmpne        = 0xa6
	OpGoto            = 0xa7
	OpJsr             = 0xa8
	OpRet             = 0xa9
	OpTableswitch     = 0xaa
	OpLookupswitch    = 0xab
	OpIreturn         = 0xac
	OpAreturn         = 0xb0
	OpReturn          = 0xb1
	OpGetstatic       = 0xb2
	OpPutstatic       = 0xb3
	OpGetfield        = 0xb4
	OpPutfield        = 0xb5
	OpInvokevirtual   = 0xb6
	OpInvokespecial   = 0xb7
	OpInvokestatic    = 0xb8
	OpInvokeinterface = 0xb9
	OpInvokedynamic   = 0xba
	OpNew             = 0xbb
	OpNewarray        = 0xbc
	OpAnewarray       = 0xbd
	OpArraylength     = 0xbe
	OpAthrow          = 0xbf
	OpCheckcast       = 0xc0
	OpInstanceof      = 0xc1
	OpWide            = 0xc4
	OpMultianewarray  = 0xc5
	OpIfnull          = 0xc6
	OpIfnonnull       = 0xc7
	OpGotoW           = 0xc8
	OpJsrW            = 0xc9
)

// ErrBadBytecode is returned for undecodable instructions.
var ErrBadBytecode = errors.New("malformed bytecode")

// fixedLength holds the length of each opcode with a fixed encoding, 0 marks opcodes
// that are variable length or invalid.
var fixedLength = func() [256]uint8 {
	var l [256]uint8
	set := func(from, to int, n uint8) {
		for op := from; op <= to; op++ {
			l[op] = n
		}
	}
	set(0x00, 0x0f, 1) // nop .. dconst_1
	l[OpBipush] = 2
	l[OpSipush] = 3
	l[OpLdc] = 2
	l[OpLdcW] = 3
	l[OpLdc2W] = 3
	set(0x15, 0x19, 2) // iload .. aload
	set(0x1a, 0x35, 1) // iload_0 .. saload
	set(0x36, 0x3a, 2) // istore .. astore
	set(0x3b, 0x83, 1) // istore_0 .. lxor
	l[OpIinc] = 3
	set(0x85, 0x98, 1) // i2l .. dcmpg
	set(0x99, 0xa8, 3) // ifeq .. jsr
	l[OpRet] = 2
	set(0xac, 0xb1, 1) // ireturn .. return
	set(0xb2, 0xb8, 3) // getstatic .. invokestatic
	l[OpInvokeinterface] = 5
	l[OpInvokedynamic] = 5
	l[OpNew] = 3
	l[OpNewarray] = 2
	l[OpAnewarray] = 3
	l[OpArraylength] = 1
	l[OpAthrow] = 1
	l[OpCheckcast] = 3
	l[OpInstanceof] = 3
	set(0xc2, 0xc3, 1) // monitorenter, monitorexit
	l[OpMultianewarray] = 4
	l[OpIfnull] = 3
	l[OpIfnonnull] = 3
	l[OpGotoW] = 5
	l[OpJsrW] = 5
	return l
}()

// Instruction is a decoded bytecode instruction.
type Instruction struct {
	BCI    int
	Opcode uint8
	Length int
	// Targets holds the absolute branch targets of jumps, jsr and switches. For
	// switches the default target comes first.
	Targets []int
}

// U16Operand returns the unsigned 16-bit operand following the opcode, which is the
// constant pool index for member, class and ldc_w instructions.
func (in Instruction) U16Operand(code []byte) uint16 {
	return npsr.Uint16(code, in.BCI+1)
}

// U8Operand returns the unsigned 8-bit operand following the opcode.
func (in Instruction) U8Operand(code []byte) uint8 {
	return npsr.Uint8(code, in.BCI+1)
}

// Decode decodes the instruction at bci.
func Decode(code []byte, bci int) (Instruction, error) {
	if bci < 0 || bci >= len(code) {
		return Instruction{}, fmt.Errorf("%w: bci %d outside code of length %d",
			ErrBadBytecode, bci, len(code))
	}
	op := code[bci]
	in := Instruction{BCI: bci, Opcode: op, Length: int(fixedLength[op])}

	switch op {
	case OpTableswitch, OpLookupswitch:
		if err := decodeSwitch(code, &in); err != nil {
			return Instruction{}, err
		}
	case OpWide:
		in.Length = 4
		if npsr.Uint8(code, bci+1) == OpIinc {
			in.Length = 6
		}
	case OpGotoW, OpJsrW:
		in.Targets = []int{bci + int(npsr.Int32(code, bci+1))}
	default:
		if in.Length == 0 {
			return Instruction{}, fmt.Errorf("%w: invalid opcode 0x%02x at bci %d",
				ErrBadBytecode, op, bci)
		}
		if (op >= OpIfeq && op <= OpJsr) || op == OpIfnull || op == OpIfnonnull {
			in.Targets = []int{bci + int(npsr.Int16(code, bci+1))}
		}
	}

	if bci+in.Length > len(code) {
		return Instruction{}, fmt.Errorf("%w: instruction 0x%02x at bci %d runs past end",
			ErrBadBytecode, op, bci)
	}
	for _, t := range in.Targets {
		if t < 0 || t >= len(code) {
			return Instruction{}, fmt.Errorf("%w: branch at bci %d targets %d outside code",
				ErrBadBytecode, bci, t)
		}
	}
	return in, nil
}

// decodeSwitch handles tableswitch and lookupswitch, whose operands start at the next
// 4-byte aligned offset.
func decodeSwitch(code []byte, in *Instruction) error {
	bci := in.BCI
	pad := (4 - (bci+1)%4) % 4
	p := bci + 1 + pad
	in.Targets = []int{bci + int(npsr.Int32(code, p))}

	if in.Opcode == OpTableswitch {
		low := npsr.Int32(code, p+4)
		high := npsr.Int32(code, p+8)
		if high < low || int64(high)-int64(low) >= int64(len(code)) {
			return fmt.Errorf("%w: tableswitch at bci %d has range [%d,%d]",
				ErrBadBytecode, bci, low, high)
		}
		n := int(high-low) + 1
		in.Length = 1 + pad + 12 + 4*n
		for i := range n {
			in.Targets = append(in.Targets, bci+int(npsr.Int32(code, p+12+4*i)))
		}
		return nil
	}

	npairs := npsr.Int32(code, p+4)
	if npairs < 0 || int64(npairs) >= int64(len(code)) {
		return fmt.Errorf("%w: lookupswitch at bci %d has %d pairs",
			ErrBadBytecode, bci, npairs)
	}
	in.Length = 1 + pad + 8 + 8*int(npairs)
	for i := range int(npairs) {
		in.Targets = append(in.Targets, bci+int(npsr.Int32(code, p+8+8*i+4)))
	}
	return nil
}

// FallsThrough returns false for instructions after which execution never continues
// with the next instruction.
func (in Instruction) FallsThrough() bool {
	switch in.Opcode {
	case OpGoto, OpGotoW, OpTableswitch, OpLookupswitch, OpAthrow, OpRet:
		return false
	}
	return in.Opcode < OpIreturn || in.Opcode > OpReturn
}
