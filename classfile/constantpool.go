// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package classfile // import "go.opentelemetry.io/staticanalyzer/classfile"

import (
	"fmt"
	"unicode/utf16"
	"unicode/utf8"
)

// ConstantTag identifies the kind of a constant pool entry.
type ConstantTag uint8

const (
	TagInvalid            ConstantTag = 0
	TagUtf8               ConstantTag = 1
	TagInteger            ConstantTag = 3
	TagFloat              ConstantTag = 4
	TagLong               ConstantTag = 5
	TagDouble             ConstantTag = 6
	TagClass              ConstantTag = 7
	TagString             ConstantTag = 8
	TagFieldref           ConstantTag = 9
	TagMethodref          ConstantTag = 10
	TagInterfaceMethodref ConstantTag = 11
	TagNameAndType        ConstantTag = 12
	TagMethodHandle       ConstantTag = 15
	TagMethodType         ConstantTag = 16
	TagDynamic            ConstantTag = 17
	TagInvokeDynamic      ConstantTag = 18
	TagModule             ConstantTag = 19
	TagPackage            ConstantTag = 20
)

// constant is one constant pool slot. Which fields are meaningful depends on tag.
type constant struct {
	tag  ConstantTag
	utf8 string
	// ref1 and ref2 hold the indices of referenced entries, e.g. class_index and
	// name_and_type_index for member references.
	ref1, ref2 uint16
	// value holds the raw bits of numeric constants and the reference kind of
	// method handles.
	value uint64
}

// MemberRef is a resolved Fieldref, Methodref or InterfaceMethodref constant.
type MemberRef struct {
	Tag        ConstantTag
	Class      string
	Name       string
	Descriptor string
}

// Method returns the member as a method reference.
func (r MemberRef) Method() MethodRef {
	return MethodRef{Class: r.Class, Name: r.Name, Descriptor: r.Descriptor}
}

// ConstantCount returns constant_pool_count, i.e. the number of slots including the
// unused slot 0.
func (c *Class) ConstantCount() int {
	return len(c.pool)
}

func (c *Class) entry(idx uint16, want ...ConstantTag) (*constant, error) {
	if idx == 0 || int(idx) >= len(c.pool) {
		return nil, fmt.Errorf("%w: index %d out of range [1,%d)", ErrBadConstant,
			idx, len(c.pool))
	}
	e := &c.pool[idx]
	if len(want) == 0 {
		return e, nil
	}
	for _, tag := range want {
		if e.tag == tag {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: index %d has tag %d, expected one of %v", ErrBadConstant,
		idx, e.tag, want)
}

// Tag returns the tag of the constant at idx, or TagInvalid.
func (c *Class) Tag(idx uint16) ConstantTag {
	if idx == 0 || int(idx) >= len(c.pool) {
		return TagInvalid
	}
	return c.pool[idx].tag
}

// Utf8 returns the string held by a CONSTANT_Utf8 entry.
func (c *Class) Utf8(idx uint16) (string, error) {
	e, err := c.entry(idx, TagUtf8)
	if err != nil {
		return "", err
	}
	return e.utf8, nil
}

// ClassName returns the name referenced by a CONSTANT_Class entry. For array classes
// this is the array descriptor, e.g. [Ljava/lang/String;.
func (c *Class) ClassName(idx uint16) (string, error) {
	e, err := c.entry(idx, TagClass)
	if err != nil {
		return "", err
	}
	return c.Utf8(e.ref1)
}

// NameAndType returns the name and descriptor of a CONSTANT_NameAndType entry.
func (c *Class) NameAndType(idx uint16) (name, descriptor string, err error) {
	e, err := c.entry(idx, TagNameAndType)
	if err != nil {
		return "", "", err
	}
	if name, err = c.Utf8(e.ref1); err != nil {
		return "", "", err
	}
	if descriptor, err = c.Utf8(e.ref2); err != nil {
		return "", "", err
	}
	return name, descriptor, nil
}

// MemberRef resolves a Fieldref, Methodref or InterfaceMethodref entry.
func (c *Class) MemberRef(idx uint16) (MemberRef, error) {
	e, err := c.entry(idx, TagFieldref, TagMethodref, TagInterfaceMethodref)
	if err != nil {
		return MemberRef{}, err
	}
	class, err := c.ClassName(e.ref1)
	if err != nil {
		return MemberRef{}, err
	}
	name, descriptor, err := c.NameAndType(e.ref2)
	if err != nil {
		return MemberRef{}, err
	}
	return MemberRef{Tag: e.tag, Class: class, Name: name, Descriptor: descriptor}, nil
}

// Integer returns the value of a CONSTANT_Integer entry.
func (c *Class) Integer(idx uint16) (int32, error) {
	e, err := c.entry(idx, TagInteger)
	if err != nil {
		return 0, err
	}
	return int32(uint32(e.value)), nil
}

// Long returns the value of a CONSTANT_Long entry.
func (c *Class) Long(idx uint16) (int64, error) {
	e, err := c.entry(idx, TagLong)
	if err != nil {
		return 0, err
	}
	return int64(e.value), nil
}

// StringConstant returns the value of a CONSTANT_String entry.
func (c *Class) StringConstant(idx uint16) (string, error) {
	e, err := c.entry(idx, TagString)
	if err != nil {
		return "", err
	}
	return c.Utf8(e.ref1)
}

// decodeModifiedUTF8 decodes the JVM's modified UTF-8: NUL is encoded in two bytes and
// supplementary characters as surrogate pairs of three bytes each.
func decodeModifiedUTF8(b []byte) string {
	plain := true
	for _, c := range b {
		if c == 0xc0 || c == 0xed {
			plain = false
			break
		}
	}
	if plain && utf8.Valid(b) {
		return string(b)
	}

	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xe0 == 0xc0 && i+1 < len(b):
			units = append(units, uint16(c&0x1f)<<6|uint16(b[i+1]&0x3f))
			i += 2
		case c&0xf0 == 0xe0 && i+2 < len(b):
			units = append(units,
				uint16(c&0x0f)<<12|uint16(b[i+1]&0x3f)<<6|uint16(b[i+2]&0x3f))
			i += 3
		default:
			units = append(units, utf8.RuneError)
			i++
		}
	}
	return string(utf16.Decode(units))
}
