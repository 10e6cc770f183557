// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package classpath locates, parses and caches classes from directories and jar
// archives, and resolves method references against the loaded class hierarchy.
package classpath // import "go.opentelemetry.io/staticanalyzer/classpath"

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	sha256 "github.com/minio/sha256-simd"
	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/staticanalyzer/classfile"
	"go.opentelemetry.io/staticanalyzer/libpf/freelru"
	"go.opentelemetry.io/staticanalyzer/metrics"
)

var (
	// ErrClassNotFound is returned when no classpath entry provides a class.
	ErrClassNotFound = errors.New("class not found")
	// ErrMethodNotFound is returned when a method is not declared in the class
	// hierarchy of the referenced class.
	ErrMethodNotFound = errors.New("method not found")
)

// errNotHere signals that a single classpath entry does not provide a class.
var errNotHere = errors.New("not in this classpath entry")

// Entry is a parsed class together with where it was loaded from.
type Entry struct {
	Class *classfile.Class
	// Source is the file the class was read from. Classes from archives are
	// written as archive.jar!/pkg/Cls.class.
	Source string
	// Digest is the SHA-256 of the class file bytes.
	Digest [sha256.Size]byte
}

// DigestString returns the digest in hexadecimal.
func (e *Entry) DigestString() string {
	return hex.EncodeToString(e.Digest[:])
}

type root interface {
	read(file string) (data []byte, source string, err error)
	io.Closer
}

type dirRoot string

func (d dirRoot) read(file string) ([]byte, string, error) {
	path := filepath.Join(string(d), filepath.FromSlash(file))
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", errNotHere
	}
	return data, path, err
}

func (dirRoot) Close() error {
	return nil
}

type archiveRoot struct {
	path  string
	rc    *zip.ReadCloser
	files map[string]*zip.File
}

func openArchive(path string) (*archiveRoot, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	a := &archiveRoot{path: path, rc: rc, files: make(map[string]*zip.File, len(rc.File))}
	for _, f := range rc.File {
		if strings.HasSuffix(f.Name, ".class") {
			a.files[f.Name] = f
		}
	}
	return a, nil
}

func (a *archiveRoot) read(file string) ([]byte, string, error) {
	f, ok := a.files[file]
	if !ok {
		return nil, "", errNotHere
	}
	r, err := f.Open()
	if err != nil {
		return nil, "", err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", err
	}
	return data, a.path + "!/" + file, nil
}

func (a *archiveRoot) Close() error {
	return a.rc.Close()
}

// Loader loads classes from an ordered list of classpath entries. The first entry
// providing a class wins.
type Loader struct {
	roots []root
	// cache holds parsed classes. A nil entry records a class known to be missing.
	cache *freelru.SyncedLRU[string, *Entry]
}

// New opens the given classpath entries. Each entry is a directory or a .jar/.zip
// archive. cacheSize bounds the number of parsed classes held in memory.
func New(entries []string, cacheSize uint32) (*Loader, error) {
	cache, err := freelru.NewSynced[string, *Entry](cacheSize, freelru.HashString)
	if err != nil {
		return nil, fmt.Errorf("failed to create class cache: %v", err)
	}

	l := &Loader{cache: cache}
	for _, entry := range entries {
		r, err := openRoot(entry)
		if err != nil {
			_ = l.Close()
			return nil, fmt.Errorf("classpath entry %s: %w", entry, err)
		}
		l.roots = append(l.roots, r)
	}
	log.Debugf("Opened %d classpath entries", len(l.roots))
	return l, nil
}

func openRoot(entry string) (root, error) {
	st, err := os.Stat(entry)
	if err != nil {
		return nil, err
	}
	if st.IsDir() {
		return dirRoot(entry), nil
	}
	switch strings.ToLower(filepath.Ext(entry)) {
	case ".jar", ".zip":
		return openArchive(entry)
	}
	return nil, errors.New("neither a directory nor a jar or zip archive")
}

// Load returns the class with the given internal name, e.g. java/lang/String.
func (l *Loader) Load(name string) (*Entry, error) {
	if e, ok := l.cache.Get(name); ok {
		metrics.Add(metrics.IDClassCacheHit, 1)
		if e == nil {
			return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name)
		}
		return e, nil
	}
	metrics.Add(metrics.IDClassCacheMiss, 1)

	e, err := l.load(name)
	if errors.Is(err, ErrClassNotFound) {
		l.cache.Add(name, nil)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	l.cache.Add(name, e)
	return e, nil
}

func (l *Loader) load(name string) (*Entry, error) {
	file := name + ".class"
	for _, r := range l.roots {
		data, source, err := r.read(file)
		if errors.Is(err, errNotHere) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}

		cls, err := classfile.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", source, err)
		}
		if cls.Name != name {
			return nil, fmt.Errorf("%s declares class %s instead of %s", source,
				cls.Name, name)
		}
		metrics.Add(metrics.IDClassesLoaded, 1)
		log.Debugf("Loaded %s from %s", name, source)
		return &Entry{Class: cls, Source: source, Digest: sha256.Sum256(data)}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name)
}

// ResolveMethod finds the declaration a method reference links to. The superclass
// chain of the referenced class is searched first, then its superinterfaces, where
// a default method is preferred over an abstract declaration. Methods invoked on
// array types resolve against java/lang/Object. Only a missing referenced class
// fails immediately, an absent ancestor ends the superclass walk.
func (l *Loader) ResolveMethod(ref classfile.MethodRef) (*Entry, *classfile.Method, error) {
	name := ref.Class
	if strings.HasPrefix(name, "[") {
		name = "java/lang/Object"
	}

	var interfaces []string
	// missing is the first absent superclass. The superinterfaces collected so far
	// are still searched, but a failed lookup reports the gap in the hierarchy.
	var missing error
	for first := true; name != ""; first = false {
		e, err := l.Load(name)
		if errors.Is(err, ErrClassNotFound) && !first {
			log.Debugf("Missing superclass %s of %s", name, ref.Class)
			missing = err
			break
		}
		if err != nil {
			return nil, nil, err
		}
		if m := e.Class.Method(ref.Name, ref.Descriptor); m != nil {
			return e, m, nil
		}
		interfaces = append(interfaces, e.Class.Interfaces...)
		name = e.Class.SuperName
	}

	var abstractEntry *Entry
	var abstractMethod *classfile.Method
	visited := make(map[string]struct{})
	for len(interfaces) > 0 {
		name := interfaces[0]
		interfaces = interfaces[1:]
		if _, ok := visited[name]; ok {
			continue
		}
		visited[name] = struct{}{}

		e, err := l.Load(name)
		if errors.Is(err, ErrClassNotFound) {
			log.Debugf("Skipping missing superinterface %s of %s", name, ref.Class)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		if m := e.Class.Method(ref.Name, ref.Descriptor); m != nil &&
			!m.AccessFlags.Has(classfile.AccStatic) && !m.AccessFlags.Has(classfile.AccPrivate) {
			if !m.AccessFlags.Has(classfile.AccAbstract) {
				return e, m, nil
			}
			if abstractMethod == nil {
				abstractEntry, abstractMethod = e, m
			}
		}
		interfaces = append(interfaces, e.Class.Interfaces...)
	}
	if abstractMethod != nil {
		return abstractEntry, abstractMethod, nil
	}
	if missing != nil {
		return nil, nil, missing
	}
	return nil, nil, fmt.Errorf("%w: %s", ErrMethodNotFound, ref)
}

// Stats returns the class cache statistics.
func (l *Loader) Stats() freelru.Statistics {
	return l.cache.Statistics()
}

// Close releases the open archives.
func (l *Loader) Close() error {
	var errs []error
	for _, r := range l.roots {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	l.roots = nil
	l.cache.Purge()
	return errors.Join(errs...)
}
