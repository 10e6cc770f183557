// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package classfile // import "go.opentelemetry.io/staticanalyzer/classfile"

import (
	"fmt"
	"strings"
)

// ObjectTypes returns the class names referenced by a field or method descriptor, in
// order of appearance. Array element types are unwrapped and primitives are skipped.
func ObjectTypes(descriptor string) ([]string, error) {
	var types []string
	for i := 0; i < len(descriptor); i++ {
		switch descriptor[i] {
		case '(', ')', '[', 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 'V':
		case 'L':
			end := strings.IndexByte(descriptor[i:], ';')
			if end < 2 {
				return nil, fmt.Errorf("malformed descriptor %q at %d", descriptor, i)
			}
			types = append(types, descriptor[i+1:i+end])
			i += end
		default:
			return nil, fmt.Errorf("malformed descriptor %q: unexpected %q at %d",
				descriptor, descriptor[i], i)
		}
	}
	return types, nil
}

// ElementClass returns the class a CONSTANT_Class name refers to. Plain class names
// are returned unchanged; array descriptors yield their element class, or "" for
// arrays of primitives.
func ElementClass(name string) string {
	if !strings.HasPrefix(name, "[") {
		return name
	}
	elem := strings.TrimLeft(name, "[")
	if strings.HasPrefix(elem, "L") && strings.HasSuffix(elem, ";") {
		return elem[1 : len(elem)-1]
	}
	return ""
}
