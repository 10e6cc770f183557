// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package methodinfo // import "go.opentelemetry.io/staticanalyzer/methodinfo"

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/bits"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/xxh3"

	"go.opentelemetry.io/staticanalyzer/classfile"
	"go.opentelemetry.io/staticanalyzer/dispatchqueue"
	npsr "go.opentelemetry.io/staticanalyzer/nopanicslicereader"
)

// The decompressed archive is laid out as
//
//	header  | magic u32 | version u32 | count u32 | buckets u32 | recordsSize u32 |
//	records | count variable sized records, see appendRecord
//	buckets | buckets x | hash u64 | record offset u32 |
//
// Buckets form an open addressing hash table with linear probing, keyed by the
// xxh3 hash of the method reference string. Empty buckets hold emptyBucket as
// offset. All integers are big-endian.
const (
	archiveMagic   = 0x53414d49 // "SAMI"
	archiveVersion = 1

	headerSize  = 5 * 4
	bucketSize  = 8 + 4
	emptyBucket = math.MaxUint32
)

// maxArchiveSize bounds the compressed and the decompressed size of an archive.
var maxArchiveSize uint64 = 1 << 30

var (
	// ErrNotFound is returned by Lookup for methods missing from the archive.
	ErrNotFound = errors.New("method not in archive")
	// ErrCorrupt is returned for archives that fail validation.
	ErrCorrupt = errors.New("corrupt method info archive")
)

func hashRef(ref classfile.MethodRef) uint64 {
	return xxh3.HashString(ref.String())
}

// appendRecord appends
//
//	| id u64 | flags u16 | maxStack u16 | maxLocals u16 | codeLength u32 |
//	| callees u32 | types u32 | refLength u16 | ref bytes |
func appendRecord(b []byte, info Info) []byte {
	ref := info.Ref.String()
	b = binary.BigEndian.AppendUint64(b, uint64(info.ID))
	b = binary.BigEndian.AppendUint16(b, uint16(info.AccessFlags))
	b = binary.BigEndian.AppendUint16(b, info.MaxStack)
	b = binary.BigEndian.AppendUint16(b, info.MaxLocals)
	b = binary.BigEndian.AppendUint32(b, info.CodeLength)
	b = binary.BigEndian.AppendUint32(b, info.Callees)
	b = binary.BigEndian.AppendUint32(b, info.Types)
	b = binary.BigEndian.AppendUint16(b, uint16(len(ref)))
	return append(b, ref...)
}

const recordFixedSize = 8 + 2 + 2 + 2 + 4 + 4 + 4 + 2

func numBuckets(count int) int {
	if count == 0 {
		return 1
	}
	return 1 << bits.Len(uint(2*count-1))
}

// Dump writes the records of the table as an archive.
func (t *Table) Dump(w io.Writer) error {
	infos := t.Infos()
	buckets := numBuckets(len(infos))
	mask := uint64(buckets - 1)

	records := make([]byte, 0, len(infos)*(recordFixedSize+48))
	table := make([]struct {
		hash   uint64
		offset uint32
	}, buckets)
	for i := range table {
		table[i].offset = emptyBucket
	}

	for _, info := range infos {
		if len(info.Ref.String()) > math.MaxUint16 {
			return fmt.Errorf("method reference of %d bytes is too long", len(info.Ref.String()))
		}
		h := hashRef(info.Ref)
		slot := h & mask
		for table[slot].offset != emptyBucket {
			slot = (slot + 1) & mask
		}
		table[slot].hash = h
		table[slot].offset = uint32(len(records))
		records = appendRecord(records, info)
	}
	if uint64(len(records)) >= emptyBucket {
		return fmt.Errorf("record area of %d bytes is too large", len(records))
	}

	payload := make([]byte, 0, headerSize+len(records)+buckets*bucketSize)
	payload = binary.BigEndian.AppendUint32(payload, archiveMagic)
	payload = binary.BigEndian.AppendUint32(payload, archiveVersion)
	payload = binary.BigEndian.AppendUint32(payload, uint32(len(infos)))
	payload = binary.BigEndian.AppendUint32(payload, uint32(buckets))
	payload = binary.BigEndian.AppendUint32(payload, uint32(len(records)))
	payload = append(payload, records...)
	for _, b := range table {
		payload = binary.BigEndian.AppendUint64(payload, b.hash)
		payload = binary.BigEndian.AppendUint32(payload, b.offset)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("failed to create encoder: %w", err)
	}
	defer enc.Close()
	if _, err := w.Write(enc.EncodeAll(payload, nil)); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}
	return nil
}

// Archive is a loaded method info archive.
type Archive struct {
	count   int
	records []byte
	buckets []byte
	mask    uint64
}

// Open reads and validates an archive written by Table.Dump.
func Open(r io.Reader) (*Archive, error) {
	compressed, err := io.ReadAll(io.LimitReader(r, int64(maxArchiveSize)+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}
	if uint64(len(compressed)) > maxArchiveSize {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrCorrupt, maxArchiveSize)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxArchiveSize))
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	defer dec.Close()
	data, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: short header", ErrCorrupt)
	}
	if magic := npsr.Uint32(data, 0); magic != archiveMagic {
		return nil, fmt.Errorf("%w: bad magic 0x%08x", ErrCorrupt, magic)
	}
	if version := npsr.Uint32(data, 4); version != archiveVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, version)
	}
	count := int(npsr.Uint32(data, 8))
	buckets := int(npsr.Uint32(data, 12))
	recordsSize := int(npsr.Uint32(data, 16))
	if buckets == 0 || buckets&(buckets-1) != 0 || buckets < count {
		return nil, fmt.Errorf("%w: %d buckets for %d records", ErrCorrupt, buckets, count)
	}
	if len(data) != headerSize+recordsSize+buckets*bucketSize {
		return nil, fmt.Errorf("%w: size %d does not match header", ErrCorrupt, len(data))
	}

	records := data[headerSize : headerSize+recordsSize]
	return &Archive{
		count:   count,
		records: records,
		buckets: data[headerSize+recordsSize:],
		mask:    uint64(buckets - 1),
	}, nil
}

// Len returns the number of records in the archive.
func (a *Archive) Len() int {
	return a.count
}

// Lookup returns the record of ref.
func (a *Archive) Lookup(ref classfile.MethodRef) (Info, error) {
	h := hashRef(ref)
	want := ref.String()
	slot := h & a.mask
	for range a.mask + 1 {
		offs := int(slot) * bucketSize
		offset := npsr.Uint32(a.buckets, offs+8)
		if offset == emptyBucket {
			break
		}
		if npsr.Uint64(a.buckets, offs) == h {
			info, refString, err := a.record(int(offset))
			if err != nil {
				return Info{}, err
			}
			if refString == want {
				return info, nil
			}
		}
		slot = (slot + 1) & a.mask
	}
	return Info{}, fmt.Errorf("%w: %s", ErrNotFound, want)
}

func (a *Archive) record(offs int) (Info, string, error) {
	if offs+recordFixedSize > len(a.records) {
		return Info{}, "", fmt.Errorf("%w: record at %d out of bounds", ErrCorrupt, offs)
	}
	b := a.records
	refLen := int(npsr.Uint16(b, offs+26))
	refBytes := npsr.Bytes(b, offs+recordFixedSize, refLen)
	if refBytes == nil && refLen > 0 {
		return Info{}, "", fmt.Errorf("%w: record at %d truncated", ErrCorrupt, offs)
	}
	refString := string(refBytes)
	ref, err := classfile.ParseMethodRef(refString)
	if err != nil {
		return Info{}, "", fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return Info{
		Ref:         ref,
		ID:          dispatchqueue.WorkID(npsr.Uint64(b, offs)),
		AccessFlags: classfile.AccessFlags(npsr.Uint16(b, offs+8)),
		MaxStack:    npsr.Uint16(b, offs+10),
		MaxLocals:   npsr.Uint16(b, offs+12),
		CodeLength:  npsr.Uint32(b, offs+14),
		Callees:     npsr.Uint32(b, offs+18),
		Types:       npsr.Uint32(b, offs+22),
	}, refString, nil
}
