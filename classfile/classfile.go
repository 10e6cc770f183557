// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package classfile parses JVM class files as far as bytecode analysis needs: the
// constant pool, the class hierarchy, members and the Code attribute of each method.
//
// See https://docs.oracle.com/javase/specs/jvms/se21/html/jvms-4.html
package classfile // import "go.opentelemetry.io/staticanalyzer/classfile"

import (
	"errors"
	"fmt"
)

// Magic is the first four bytes of every class file.
const Magic = 0xCAFEBABE

var (
	// ErrBadMagic is returned for input that does not start with Magic.
	ErrBadMagic = errors.New("not a class file (bad magic)")
	// ErrTruncated is returned when the input ends before a structure is complete.
	ErrTruncated = errors.New("class file truncated")
	// ErrUnsupportedTag is returned for unknown constant pool tags.
	ErrUnsupportedTag = errors.New("unsupported constant pool tag")
	// ErrBadConstant is returned when a constant pool index is out of range or refers
	// to a constant of the wrong kind.
	ErrBadConstant = errors.New("invalid constant pool reference")
)

// AccessFlags holds the access_flags of a class or member.
type AccessFlags uint16

const (
	AccPublic       AccessFlags = 0x0001
	AccPrivate      AccessFlags = 0x0002
	AccProtected    AccessFlags = 0x0004
	AccStatic       AccessFlags = 0x0008
	AccFinal        AccessFlags = 0x0010
	AccSynchronized AccessFlags = 0x0020
	AccBridge       AccessFlags = 0x0040
	AccVarargs      AccessFlags = 0x0080
	AccNative       AccessFlags = 0x0100
	AccInterface    AccessFlags = 0x0200
	AccAbstract     AccessFlags = 0x0400
	AccStrict       AccessFlags = 0x0800
	AccSynthetic    AccessFlags = 0x1000
	AccAnnotation   AccessFlags = 0x2000
	AccEnum         AccessFlags = 0x4000
)

// Has returns true if all bits of f are set.
func (a AccessFlags) Has(f AccessFlags) bool {
	return a&f == f
}

// Class is a parsed class file.
type Class struct {
	MinorVersion uint16
	MajorVersion uint16
	AccessFlags  AccessFlags
	// Name is the binary name in internal form, e.g. java/lang/String.
	Name string
	// SuperName is empty for java/lang/Object and module-info.
	SuperName  string
	Interfaces []string
	Fields     []*Field
	Methods    []*Method

	pool []constant
}

// Field is a field_info structure.
type Field struct {
	AccessFlags AccessFlags
	Name        string
	Descriptor  string
}

// Method is a method_info structure.
type Method struct {
	AccessFlags AccessFlags
	Name        string
	Descriptor  string
	// Code is nil for abstract and native methods.
	Code *Code
}

// Code is the Code attribute of a method.
type Code struct {
	MaxStack       uint16
	MaxLocals      uint16
	Bytecode       []byte
	ExceptionTable []ExceptionHandler
}

// ExceptionHandler is a single exception_table entry. The handler covers the
// instructions in [StartPC, EndPC).
type ExceptionHandler struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	// CatchType is empty for handlers that catch everything (finally blocks).
	CatchType string
}

// Covers returns true if the instruction at bci is protected by the handler.
func (h ExceptionHandler) Covers(bci int) bool {
	return bci >= int(h.StartPC) && bci < int(h.EndPC)
}

// Method returns the method declared with the given name and descriptor, or nil.
func (c *Class) Method(name, descriptor string) *Method {
	for _, m := range c.Methods {
		if m.Name == name && m.Descriptor == descriptor {
			return m
		}
	}
	return nil
}

// IsInterface returns true for interfaces and annotation types.
func (c *Class) IsInterface() bool {
	return c.AccessFlags.Has(AccInterface)
}

// Ref returns the reference to a method declared by this class.
func (c *Class) Ref(m *Method) MethodRef {
	return MethodRef{Class: c.Name, Name: m.Name, Descriptor: m.Descriptor}
}

func (c *Class) String() string {
	return fmt.Sprintf("%s (class file %d.%d)", c.Name, c.MajorVersion, c.MinorVersion)
}
