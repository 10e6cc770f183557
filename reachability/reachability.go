// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package reachability inspects the reachable instructions of a single method and
// collects the methods it may call and the classes it references.
package reachability // import "go.opentelemetry.io/staticanalyzer/reachability"

import (
	"fmt"

	"go.opentelemetry.io/staticanalyzer/classfile"
)

// InvokeKind identifies the invoke instruction that named a callee.
type InvokeKind uint8

const (
	InvokeVirtual InvokeKind = iota
	InvokeSpecial
	InvokeStatic
	InvokeInterface
)

var invokeKindNames = [...]string{
	InvokeVirtual:   "invokevirtual",
	InvokeSpecial:   "invokespecial",
	InvokeStatic:    "invokestatic",
	InvokeInterface: "invokeinterface",
}

func (k InvokeKind) String() string {
	if int(k) < len(invokeKindNames) {
		return invokeKindNames[k]
	}
	return fmt.Sprintf("InvokeKind(%d)", uint8(k))
}

// Callee is a statically named call target.
type Callee struct {
	Ref  classfile.MethodRef
	Kind InvokeKind
}

// Result holds what a method references from its reachable code. Callees and Types
// are listed in order of discovery without duplicates.
type Result struct {
	Callees []Callee
	Types   []string
	// InvokeDynamic counts reachable invokedynamic sites. Their targets are only
	// known after bootstrap and are not followed.
	InvokeDynamic int
	// Instructions is the number of reachable instructions.
	Instructions int
}

type collector struct {
	cls    *classfile.Class
	result Result

	seenCallees map[Callee]struct{}
	seenTypes   map[string]struct{}
}

func (c *collector) addType(name string) {
	name = classfile.ElementClass(name)
	if name == "" {
		return
	}
	if _, ok := c.seenTypes[name]; ok {
		return
	}
	c.seenTypes[name] = struct{}{}
	c.result.Types = append(c.result.Types, name)
}

func (c *collector) addCallee(callee Callee) {
	if _, ok := c.seenCallees[callee]; ok {
		return
	}
	c.seenCallees[callee] = struct{}{}
	c.result.Callees = append(c.result.Callees, callee)
}

// Analyze walks the instructions of m reachable from its entry point and from the
// exception handlers protecting them. Methods without code (abstract or native)
// only contribute the types of their signature.
func Analyze(cls *classfile.Class, m *classfile.Method) (*Result, error) {
	c := &collector{
		cls:         cls,
		seenCallees: make(map[Callee]struct{}),
		seenTypes:   make(map[string]struct{}),
	}

	sigTypes, err := classfile.ObjectTypes(m.Descriptor)
	if err != nil {
		return nil, err
	}
	for _, t := range sigTypes {
		c.addType(t)
	}

	if m.Code == nil || len(m.Code.Bytecode) == 0 {
		return &c.result, nil
	}
	if err := c.walk(m.Code); err != nil {
		return nil, fmt.Errorf("%s: %w", cls.Ref(m), err)
	}
	return &c.result, nil
}

func (c *collector) walk(code *classfile.Code) error {
	bytecode := code.Bytecode
	visited := make([]bool, len(bytecode))
	handlerReached := make([]bool, len(code.ExceptionTable))

	var stack []int
	push := func(bci int) {
		if !visited[bci] {
			visited[bci] = true
			stack = append(stack, bci)
		}
	}

	push(0)
	for len(stack) > 0 {
		for len(stack) > 0 {
			bci := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			in, err := classfile.Decode(bytecode, bci)
			if err != nil {
				return err
			}
			c.result.Instructions++
			if err := c.inspect(bytecode, in); err != nil {
				return err
			}

			// Pushed in reverse so that the fall through path is visited first.
			for i := len(in.Targets) - 1; i >= 0; i-- {
				push(in.Targets[i])
			}
			if in.FallsThrough() {
				next := bci + in.Length
				if next >= len(bytecode) {
					return fmt.Errorf("%w: execution falls off the end at bci %d",
						classfile.ErrBadBytecode, bci)
				}
				push(next)
			}
		}

		for i, h := range code.ExceptionTable {
			if handlerReached[i] || !coversVisited(h, visited) {
				continue
			}
			if int(h.HandlerPC) >= len(bytecode) {
				return fmt.Errorf("%w: handler at %d outside code",
					classfile.ErrBadBytecode, h.HandlerPC)
			}
			handlerReached[i] = true
			if h.CatchType != "" {
				c.addType(h.CatchType)
			}
			push(int(h.HandlerPC))
		}
	}
	return nil
}

func coversVisited(h classfile.ExceptionHandler, visited []bool) bool {
	end := min(int(h.EndPC), len(visited))
	for bci := int(h.StartPC); bci < end; bci++ {
		if visited[bci] {
			return true
		}
	}
	return false
}

func (c *collector) inspect(code []byte, in classfile.Instruction) error {
	switch in.Opcode {
	case classfile.OpInvokevirtual, classfile.OpInvokespecial,
		classfile.OpInvokestatic, classfile.OpInvokeinterface:
		ref, err := c.cls.MemberRef(in.U16Operand(code))
		if err != nil {
			return fmt.Errorf("call site at bci %d: %w", in.BCI, err)
		}
		c.addType(ref.Class)
		c.addCallee(Callee{
			Ref:  ref.Method(),
			Kind: InvokeKind(in.Opcode - classfile.OpInvokevirtual),
		})

	case classfile.OpInvokedynamic:
		c.result.InvokeDynamic++

	case classfile.OpGetstatic, classfile.OpPutstatic,
		classfile.OpGetfield, classfile.OpPutfield:
		ref, err := c.cls.MemberRef(in.U16Operand(code))
		if err != nil {
			return fmt.Errorf("field access at bci %d: %w", in.BCI, err)
		}
		c.addType(ref.Class)

	case classfile.OpNew, classfile.OpAnewarray, classfile.OpCheckcast,
		classfile.OpInstanceof, classfile.OpMultianewarray:
		name, err := c.cls.ClassName(in.U16Operand(code))
		if err != nil {
			return fmt.Errorf("type operand at bci %d: %w", in.BCI, err)
		}
		c.addType(name)

	case classfile.OpLdc, classfile.OpLdcW, classfile.OpLdc2W:
		idx := in.U16Operand(code)
		if in.Opcode == classfile.OpLdc {
			idx = uint16(in.U8Operand(code))
		}
		if c.cls.Tag(idx) == classfile.TagClass {
			name, err := c.cls.ClassName(idx)
			if err != nil {
				return fmt.Errorf("class constant at bci %d: %w", in.BCI, err)
			}
			c.addType(name)
		}
	}
	return nil
}
