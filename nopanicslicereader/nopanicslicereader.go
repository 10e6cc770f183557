// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// nopanicslicereader reads big-endian values, the byte order of JVM class files and
// bytecode operands, from a slice at a given offset. Out of bounds reads return zero
// instead of panicking, so malformed input degrades into bogus values that the caller
// validates rather than crashing the analyzer.
package nopanicslicereader // import "go.opentelemetry.io/staticanalyzer/nopanicslicereader"

import "encoding/binary"

func inBounds(b []byte, offs, size int) bool {
	return offs >= 0 && offs <= len(b)-size
}

// Uint8 reads one 8-bit unsigned integer from given byte slice offset
func Uint8(b []byte, offs int) uint8 {
	if !inBounds(b, offs, 1) {
		return 0
	}
	return b[offs]
}

// Int8 reads one 8-bit signed integer from given byte slice offset
func Int8(b []byte, offs int) int8 {
	return int8(Uint8(b, offs))
}

// Uint16 reads one 16-bit unsigned integer from given byte slice offset
func Uint16(b []byte, offs int) uint16 {
	if !inBounds(b, offs, 2) {
		return 0
	}
	return binary.BigEndian.Uint16(b[offs:])
}

// Int16 reads one 16-bit signed integer from given byte slice offset
func Int16(b []byte, offs int) int16 {
	return int16(Uint16(b, offs))
}

// Uint32 reads one 32-bit unsigned integer from given byte slice offset
func Uint32(b []byte, offs int) uint32 {
	if !inBounds(b, offs, 4) {
		return 0
	}
	return binary.BigEndian.Uint32(b[offs:])
}

// Int32 reads one 32-bit signed integer from given byte slice offset
func Int32(b []byte, offs int) int32 {
	return int32(Uint32(b, offs))
}

// Uint64 reads one 64-bit unsigned integer from given byte slice offset
func Uint64(b []byte, offs int) uint64 {
	if !inBounds(b, offs, 8) {
		return 0
	}
	return binary.BigEndian.Uint64(b[offs:])
}

// Bytes returns the n bytes at offs, or nil if they are not all within b.
func Bytes(b []byte, offs, n int) []byte {
	if n < 0 || !inBounds(b, offs, n) {
		return nil
	}
	return b[offs : offs+n]
}
