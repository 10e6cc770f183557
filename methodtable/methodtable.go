// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package methodtable hands out stable work identifiers for method references.
package methodtable // import "go.opentelemetry.io/staticanalyzer/methodtable"

import (
	"go.opentelemetry.io/staticanalyzer/classfile"
	"go.opentelemetry.io/staticanalyzer/dispatchqueue"
	"go.opentelemetry.io/staticanalyzer/libpf/xsync"
)

type tables struct {
	ids map[classfile.MethodRef]dispatchqueue.WorkID
	// refs[id-1] is the reference interned as id.
	refs []classfile.MethodRef
}

// Table maps method references to work identifiers and back. Identifiers are
// assigned sequentially starting at 1. It is safe for concurrent use.
type Table struct {
	tables xsync.RWMutex[tables]
}

func New() *Table {
	return &Table{
		tables: xsync.NewRWMutex(tables{
			ids: make(map[classfile.MethodRef]dispatchqueue.WorkID),
		}),
	}
}

// Intern returns the identifier of ref, assigning a new one on first use.
func (t *Table) Intern(ref classfile.MethodRef) dispatchqueue.WorkID {
	r := t.tables.RLock()
	id, ok := r.ids[ref]
	t.tables.RUnlock(&r)
	if ok {
		return id
	}

	w := t.tables.WLock()
	defer t.tables.WUnlock(&w)
	if id, ok := w.ids[ref]; ok {
		return id
	}
	w.refs = append(w.refs, ref)
	id = dispatchqueue.WorkID(len(w.refs))
	w.ids[ref] = id
	return id
}

// Lookup returns the reference interned as id.
func (t *Table) Lookup(id dispatchqueue.WorkID) (classfile.MethodRef, bool) {
	r := t.tables.RLock()
	defer t.tables.RUnlock(&r)
	if id == 0 || uint64(id) > uint64(len(r.refs)) {
		return classfile.MethodRef{}, false
	}
	return r.refs[id-1], true
}

// Len returns the number of interned references.
func (t *Table) Len() int {
	r := t.tables.RLock()
	defer t.tables.RUnlock(&r)
	return len(r.refs)
}
