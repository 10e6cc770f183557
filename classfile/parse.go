// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package classfile // import "go.opentelemetry.io/staticanalyzer/classfile"

import (
	"fmt"

	npsr "go.opentelemetry.io/staticanalyzer/nopanicslicereader"
)

// reader walks a class file front to back. The first out of bounds access latches
// ErrTruncated; subsequent reads return zero values.
type reader struct {
	data []byte
	offs int
	err  error
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.offs > len(r.data)-n {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d of %d", ErrTruncated,
			n, r.offs, len(r.data))
		return false
	}
	return true
}

func (r *reader) u8() uint8 {
	if !r.need(1) {
		return 0
	}
	v := npsr.Uint8(r.data, r.offs)
	r.offs++
	return v
}

func (r *reader) u16() uint16 {
	if !r.need(2) {
		return 0
	}
	v := npsr.Uint16(r.data, r.offs)
	r.offs += 2
	return v
}

func (r *reader) u32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := npsr.Uint32(r.data, r.offs)
	r.offs += 4
	return v
}

func (r *reader) u64() uint64 {
	if !r.need(8) {
		return 0
	}
	v := npsr.Uint64(r.data, r.offs)
	r.offs += 8
	return v
}

func (r *reader) bytes(n int) []byte {
	if !r.need(n) {
		return nil
	}
	v := npsr.Bytes(r.data, r.offs, n)
	r.offs += n
	return v
}

// Parse decodes a class file. The returned Class does not retain data except for
// method bytecode, which aliases it.
func Parse(data []byte) (*Class, error) {
	r := &reader{data: data}
	if magic := r.u32(); r.err == nil && magic != Magic {
		return nil, fmt.Errorf("%w: 0x%08x", ErrBadMagic, magic)
	}

	c := &Class{}
	c.MinorVersion = r.u16()
	c.MajorVersion = r.u16()
	if r.err != nil {
		return nil, r.err
	}

	if err := c.parseConstantPool(r); err != nil {
		return nil, err
	}

	c.AccessFlags = AccessFlags(r.u16())
	thisClass := r.u16()
	superClass := r.u16()
	if r.err != nil {
		return nil, r.err
	}

	var err error
	if c.Name, err = c.ClassName(thisClass); err != nil {
		return nil, fmt.Errorf("this_class: %w", err)
	}
	if superClass != 0 {
		if c.SuperName, err = c.ClassName(superClass); err != nil {
			return nil, fmt.Errorf("super_class of %s: %w", c.Name, err)
		}
	}

	numInterfaces := int(r.u16())
	for range numInterfaces {
		name, err := c.ClassName(r.u16())
		if r.err != nil {
			return nil, r.err
		}
		if err != nil {
			return nil, fmt.Errorf("interface of %s: %w", c.Name, err)
		}
		c.Interfaces = append(c.Interfaces, name)
	}

	numFields := int(r.u16())
	for range numFields {
		f, err := c.parseField(r)
		if err != nil {
			return nil, err
		}
		c.Fields = append(c.Fields, f)
	}

	numMethods := int(r.u16())
	for range numMethods {
		m, err := c.parseMethod(r)
		if err != nil {
			return nil, err
		}
		c.Methods = append(c.Methods, m)
	}

	// Class level attributes carry nothing the analysis uses.
	numAttributes := int(r.u16())
	for range numAttributes {
		r.u16()
		r.bytes(int(r.u32()))
	}
	if r.err != nil {
		return nil, r.err
	}
	return c, nil
}

func (c *Class) parseConstantPool(r *reader) error {
	count := int(r.u16())
	if r.err != nil {
		return r.err
	}
	c.pool = make([]constant, count)

	for i := 1; i < count; i++ {
		e := &c.pool[i]
		e.tag = ConstantTag(r.u8())
		switch e.tag {
		case TagUtf8:
			e.utf8 = decodeModifiedUTF8(r.bytes(int(r.u16())))
		case TagInteger, TagFloat:
			e.value = uint64(r.u32())
		case TagLong, TagDouble:
			e.value = r.u64()
			// 8-byte constants take up two slots; the second one is unusable.
			i++
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			e.ref1 = r.u16()
		case TagMethodHandle:
			e.value = uint64(r.u8())
			e.ref1 = r.u16()
		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType,
			TagDynamic, TagInvokeDynamic:
			e.ref1 = r.u16()
			e.ref2 = r.u16()
		default:
			if r.err != nil {
				return r.err
			}
			return fmt.Errorf("%w %d at constant pool index %d", ErrUnsupportedTag, e.tag, i)
		}
		if r.err != nil {
			return r.err
		}
	}
	return nil
}

func (c *Class) parseField(r *reader) (*Field, error) {
	flags := AccessFlags(r.u16())
	nameIdx, descIdx := r.u16(), r.u16()
	numAttributes := int(r.u16())
	for range numAttributes {
		r.u16()
		r.bytes(int(r.u32()))
	}
	if r.err != nil {
		return nil, r.err
	}

	f := &Field{AccessFlags: flags}
	var err error
	if f.Name, err = c.Utf8(nameIdx); err != nil {
		return nil, fmt.Errorf("field name in %s: %w", c.Name, err)
	}
	if f.Descriptor, err = c.Utf8(descIdx); err != nil {
		return nil, fmt.Errorf("descriptor of field %s.%s: %w", c.Name, f.Name, err)
	}
	return f, nil
}

func (c *Class) parseMethod(r *reader) (*Method, error) {
	m := &Method{AccessFlags: AccessFlags(r.u16())}
	nameIdx, descIdx := r.u16(), r.u16()
	if r.err != nil {
		return nil, r.err
	}

	var err error
	if m.Name, err = c.Utf8(nameIdx); err != nil {
		return nil, fmt.Errorf("method name in %s: %w", c.Name, err)
	}
	if m.Descriptor, err = c.Utf8(descIdx); err != nil {
		return nil, fmt.Errorf("descriptor of method %s.%s: %w", c.Name, m.Name, err)
	}

	numAttributes := int(r.u16())
	for range numAttributes {
		attrName, _ := c.Utf8(r.u16())
		body := r.bytes(int(r.u32()))
		if r.err != nil {
			return nil, r.err
		}
		if attrName != "Code" {
			continue
		}
		if m.Code, err = c.parseCode(body); err != nil {
			return nil, fmt.Errorf("code of %s.%s%s: %w", c.Name, m.Name, m.Descriptor, err)
		}
	}
	return m, nil
}

func (c *Class) parseCode(body []byte) (*Code, error) {
	r := &reader{data: body}
	code := &Code{
		MaxStack:  r.u16(),
		MaxLocals: r.u16(),
	}
	code.Bytecode = r.bytes(int(r.u32()))

	numHandlers := int(r.u16())
	for range numHandlers {
		h := ExceptionHandler{
			StartPC:   r.u16(),
			EndPC:     r.u16(),
			HandlerPC: r.u16(),
		}
		catchType := r.u16()
		if r.err != nil {
			return nil, r.err
		}
		if catchType != 0 {
			name, err := c.ClassName(catchType)
			if err != nil {
				return nil, fmt.Errorf("catch type: %w", err)
			}
			h.CatchType = name
		}
		code.ExceptionTable = append(code.ExceptionTable, h)
	}
	// Nested attributes (line numbers, stack maps) are not needed.
	if r.err != nil {
		return nil, r.err
	}
	return code, nil
}
