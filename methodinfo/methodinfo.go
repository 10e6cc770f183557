// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package methodinfo collects per-method analysis results and persists them as a
// compressed archive that supports lookups by method reference.
package methodinfo // import "go.opentelemetry.io/staticanalyzer/methodinfo"

import (
	"cmp"
	"slices"

	"go.opentelemetry.io/staticanalyzer/classfile"
	"go.opentelemetry.io/staticanalyzer/dispatchqueue"
	"go.opentelemetry.io/staticanalyzer/libpf/xsync"
)

// Info describes an analyzed method.
type Info struct {
	Ref         classfile.MethodRef
	ID          dispatchqueue.WorkID
	AccessFlags classfile.AccessFlags
	MaxStack    uint16
	MaxLocals   uint16
	// CodeLength is the bytecode size, zero for abstract and native methods.
	CodeLength uint32
	// Callees is the number of distinct call targets named by reachable code.
	Callees uint32
	// Types is the number of distinct classes referenced by the method.
	Types uint32
}

// Table accumulates Info records. It is safe for concurrent use.
type Table struct {
	infos xsync.RWMutex[map[classfile.MethodRef]Info]
}

func NewTable() *Table {
	return &Table{infos: xsync.NewRWMutex(make(map[classfile.MethodRef]Info))}
}

// Add records info, replacing an earlier record for the same method. It returns
// false if a record was replaced.
func (t *Table) Add(info Info) bool {
	infos := t.infos.WLock()
	defer t.infos.WUnlock(&infos)
	_, exists := (*infos)[info.Ref]
	(*infos)[info.Ref] = info
	return !exists
}

func (t *Table) Len() int {
	infos := t.infos.RLock()
	defer t.infos.RUnlock(&infos)
	return len(*infos)
}

// Infos returns all records ordered by method reference.
func (t *Table) Infos() []Info {
	infos := t.infos.RLock()
	out := make([]Info, 0, len(*infos))
	for _, info := range *infos {
		out = append(out, info)
	}
	t.infos.RUnlock(&infos)

	slices.SortFunc(out, func(a, b Info) int {
		return cmp.Or(
			cmp.Compare(a.Ref.Class, b.Ref.Class),
			cmp.Compare(a.Ref.Name, b.Ref.Name),
			cmp.Compare(a.Ref.Descriptor, b.Ref.Descriptor),
		)
	})
	return out
}
