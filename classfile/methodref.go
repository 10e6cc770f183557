// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package classfile // import "go.opentelemetry.io/staticanalyzer/classfile"

import (
	"fmt"
	"strings"
)

// MethodRef names a method by its declaring class, name and descriptor.
type MethodRef struct {
	Class      string
	Name       string
	Descriptor string
}

// String renders the reference as pkg/Cls.name(args)ret.
func (r MethodRef) String() string {
	return r.Class + "." + r.Name + r.Descriptor
}

// ParseMethodRef parses the form produced by MethodRef.String.
func ParseMethodRef(s string) (MethodRef, error) {
	paren := strings.IndexByte(s, '(')
	if paren < 0 {
		return MethodRef{}, fmt.Errorf("method reference %q lacks a descriptor", s)
	}
	dot := strings.LastIndexByte(s[:paren], '.')
	if dot <= 0 || dot == paren-1 {
		return MethodRef{}, fmt.Errorf("method reference %q lacks class or method name", s)
	}
	ref := MethodRef{
		Class:      s[:dot],
		Name:       s[dot+1 : paren],
		Descriptor: s[paren:],
	}
	if _, err := ObjectTypes(ref.Descriptor); err != nil {
		return MethodRef{}, fmt.Errorf("method reference %q: %w", s, err)
	}
	return ref, nil
}
