// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package classfiletest assembles class files in memory so that tests do not depend
// on a JDK being installed.
package classfiletest // import "go.opentelemetry.io/staticanalyzer/classfile/classfiletest"

import (
	"encoding/binary"
	"fmt"
	"math"

	"go.opentelemetry.io/staticanalyzer/classfile"
)

// Builder accumulates the parts of a class file. Constant pool entries are
// deduplicated, so asking twice for the same constant returns the same index.
type Builder struct {
	pool   []byte
	next   uint16
	index  map[string]uint16
	access classfile.AccessFlags
	major  uint16

	this, super uint16
	interfaces  []uint16
	fields      [][]byte
	methods     [][]byte
}

// Code describes the Code attribute of a method.
type Code struct {
	MaxStack  uint16
	MaxLocals uint16
	Bytecode  []byte
	Handlers  []Handler
}

// Handler is an exception table entry. An empty CatchType catches everything.
type Handler struct {
	Start, End, Handler uint16
	CatchType           string
}

// New starts a public class. An empty super produces a class without superclass, as
// only java/lang/Object has.
func New(name, super string) *Builder {
	b := &Builder{
		next:   1,
		index:  make(map[string]uint16),
		access: classfile.AccPublic | 0x0020, // ACC_SUPER
		major:  65,
	}
	b.this = b.Class(name)
	if super != "" {
		b.super = b.Class(super)
	}
	return b
}

// SetAccess replaces the class access flags.
func (b *Builder) SetAccess(flags classfile.AccessFlags) *Builder {
	b.access = flags
	return b
}

// AddInterface declares a superinterface.
func (b *Builder) AddInterface(name string) *Builder {
	b.interfaces = append(b.interfaces, b.Class(name))
	return b
}

func (b *Builder) add(key string, slots uint16, entry ...byte) uint16 {
	if idx, ok := b.index[key]; ok {
		return idx
	}
	idx := b.next
	b.pool = append(b.pool, entry...)
	b.next += slots
	b.index[key] = idx
	return idx
}

func u16(v uint16) []byte {
	return binary.BigEndian.AppendUint16(nil, v)
}

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Utf8 returns the index of a CONSTANT_Utf8 entry.
func (b *Builder) Utf8(s string) uint16 {
	if len(s) > math.MaxUint16 {
		panic(fmt.Sprintf("string of %d bytes does not fit a constant", len(s)))
	}
	return b.add("utf8:"+s, 1, cat([]byte{byte(classfile.TagUtf8)},
		u16(uint16(len(s))), []byte(s))...)
}

// Class returns the index of a CONSTANT_Class entry.
func (b *Builder) Class(name string) uint16 {
	ref := b.Utf8(name)
	return b.add("class:"+name, 1, cat([]byte{byte(classfile.TagClass)}, u16(ref))...)
}

// String returns the index of a CONSTANT_String entry.
func (b *Builder) String(s string) uint16 {
	ref := b.Utf8(s)
	return b.add("string:"+s, 1, cat([]byte{byte(classfile.TagString)}, u16(ref))...)
}

// Integer returns the index of a CONSTANT_Integer entry.
func (b *Builder) Integer(v int32) uint16 {
	return b.add(fmt.Sprintf("int:%d", v), 1,
		binary.BigEndian.AppendUint32([]byte{byte(classfile.TagInteger)}, uint32(v))...)
}

// Long returns the index of a CONSTANT_Long entry, which occupies two slots.
func (b *Builder) Long(v int64) uint16 {
	return b.add(fmt.Sprintf("long:%d", v), 2,
		binary.BigEndian.AppendUint64([]byte{byte(classfile.TagLong)}, uint64(v))...)
}

// NameAndType returns the index of a CONSTANT_NameAndType entry.
func (b *Builder) NameAndType(name, descriptor string) uint16 {
	n, d := b.Utf8(name), b.Utf8(descriptor)
	return b.add("nat:"+name+":"+descriptor, 1,
		cat([]byte{byte(classfile.TagNameAndType)}, u16(n), u16(d))...)
}

func (b *Builder) member(tag classfile.ConstantTag, class, name, descriptor string) uint16 {
	c, nat := b.Class(class), b.NameAndType(name, descriptor)
	return b.add(fmt.Sprintf("member%d:%s.%s%s", tag, class, name, descriptor), 1,
		cat([]byte{byte(tag)}, u16(c), u16(nat))...)
}

// Methodref returns the index of a CONSTANT_Methodref entry.
func (b *Builder) Methodref(class, name, descriptor string) uint16 {
	return b.member(classfile.TagMethodref, class, name, descriptor)
}

// InterfaceMethodref returns the index of a CONSTANT_InterfaceMethodref entry.
func (b *Builder) InterfaceMethodref(class, name, descriptor string) uint16 {
	return b.member(classfile.TagInterfaceMethodref, class, name, descriptor)
}

// Fieldref returns the index of a CONSTANT_Fieldref entry.
func (b *Builder) Fieldref(class, name, descriptor string) uint16 {
	return b.member(classfile.TagFieldref, class, name, descriptor)
}

// MethodType returns the index of a CONSTANT_MethodType entry.
func (b *Builder) MethodType(descriptor string) uint16 {
	d := b.Utf8(descriptor)
	return b.add("mt:"+descriptor, 1, cat([]byte{byte(classfile.TagMethodType)}, u16(d))...)
}

// InvokeDynamic returns the index of a CONSTANT_InvokeDynamic entry.
func (b *Builder) InvokeDynamic(bootstrap uint16, name, descriptor string) uint16 {
	nat := b.NameAndType(name, descriptor)
	return b.add(fmt.Sprintf("indy:%d:%s%s", bootstrap, name, descriptor), 1,
		cat([]byte{byte(classfile.TagInvokeDynamic)}, u16(bootstrap), u16(nat))...)
}

// AddField declares a field.
func (b *Builder) AddField(flags classfile.AccessFlags, name, descriptor string) *Builder {
	b.fields = append(b.fields, cat(u16(uint16(flags)), u16(b.Utf8(name)),
		u16(b.Utf8(descriptor)), u16(0)))
	return b
}

// AddMethod declares a method. A nil code produces a method without Code attribute.
func (b *Builder) AddMethod(flags classfile.AccessFlags, name, descriptor string,
	code *Code) *Builder {
	m := cat(u16(uint16(flags)), u16(b.Utf8(name)), u16(b.Utf8(descriptor)))
	if code == nil {
		b.methods = append(b.methods, append(m, u16(0)...))
		return b
	}

	body := cat(u16(code.MaxStack), u16(code.MaxLocals),
		binary.BigEndian.AppendUint32(nil, uint32(len(code.Bytecode))), code.Bytecode,
		u16(uint16(len(code.Handlers))))
	for _, h := range code.Handlers {
		var catchType uint16
		if h.CatchType != "" {
			catchType = b.Class(h.CatchType)
		}
		body = append(body, cat(u16(h.Start), u16(h.End), u16(h.Handler), u16(catchType))...)
	}
	body = append(body, u16(0)...)

	m = cat(m, u16(1), u16(b.Utf8("Code")),
		binary.BigEndian.AppendUint32(nil, uint32(len(body))), body)
	b.methods = append(b.methods, m)
	return b
}

// Bytes serializes the class file.
func (b *Builder) Bytes() []byte {
	out := binary.BigEndian.AppendUint32(nil, classfile.Magic)
	out = append(out, cat(u16(0), u16(b.major), u16(b.next))...)
	out = append(out, b.pool...)
	out = append(out, cat(u16(uint16(b.access)), u16(b.this), u16(b.super),
		u16(uint16(len(b.interfaces))))...)
	for _, i := range b.interfaces {
		out = append(out, u16(i)...)
	}
	out = append(out, u16(uint16(len(b.fields)))...)
	for _, f := range b.fields {
		out = append(out, f...)
	}
	out = append(out, u16(uint16(len(b.methods)))...)
	for _, m := range b.methods {
		out = append(out, m...)
	}
	return append(out, u16(0)...)
}
