// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package staticanalyzer computes the set of methods reachable from a list of entry
// points. It acts as the processor behind a dispatch queue: every method handed to
// it is analyzed once, and the methods it calls are submitted back to the queue.
package staticanalyzer // import "go.opentelemetry.io/staticanalyzer/staticanalyzer"

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"go.opentelemetry.io/staticanalyzer/classfile"
	"go.opentelemetry.io/staticanalyzer/classpath"
	"go.opentelemetry.io/staticanalyzer/dispatchqueue"
	"go.opentelemetry.io/staticanalyzer/libpf/xsync"
	"go.opentelemetry.io/staticanalyzer/methodinfo"
	"go.opentelemetry.io/staticanalyzer/methodtable"
	"go.opentelemetry.io/staticanalyzer/metrics"
	"go.opentelemetry.io/staticanalyzer/reachability"
)

// ErrStopped is returned by Run when the analyzer already ran or was stopped.
var ErrStopped = errors.New("analyzer is stopped")

const clinitName, clinitDescriptor = "<clinit>", "()V"

// Config holds the analyzer settings.
type Config struct {
	// Workers is the number of methods analyzed in parallel.
	Workers int
}

// Unresolved is a reference that could not be linked to a declaration.
type Unresolved struct {
	Ref    classfile.MethodRef
	Reason string
}

// Summary is the outcome of a run.
type Summary struct {
	// Methods are the analyzed methods, sorted.
	Methods []classfile.MethodRef
	// Classes are all classes declaring an analyzed method or referenced by one,
	// sorted.
	Classes []string
	// Unresolved lists references whose declaration was not found, sorted.
	Unresolved []Unresolved
	// Failed lists methods whose bytecode could not be analyzed, sorted.
	Failed        []Unresolved
	InvokeDynamic int
	Duration      time.Duration
}

type results struct {
	methods       map[classfile.MethodRef]struct{}
	classes       map[string]struct{}
	unresolved    map[classfile.MethodRef]string
	failed        map[classfile.MethodRef]string
	invokeDynamic int
}

// Analyzer is the processor computing reachability. Create it with New, register it
// on a dispatchqueue.Link and call Run once.
type Analyzer struct {
	cfg     Config
	loader  *classpath.Loader
	methods *methodtable.Table
	infos   *methodinfo.Table
	pending *pendingQueue

	results xsync.RWMutex[results]
}

// New creates an analyzer loading classes with loader, handing out work identifiers
// from methods and recording analyzed methods into infos.
func New(cfg Config, loader *classpath.Loader, methods *methodtable.Table,
	infos *methodinfo.Table) (*Analyzer, error) {
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("invalid number of workers: %d", cfg.Workers)
	}
	return &Analyzer{
		cfg:     cfg,
		loader:  loader,
		methods: methods,
		infos:   infos,
		pending: newPendingQueue(),
		results: xsync.NewRWMutex(results{
			methods:    make(map[classfile.MethodRef]struct{}),
			classes:    make(map[string]struct{}),
			unresolved: make(map[classfile.MethodRef]string),
			failed:     make(map[classfile.MethodRef]string),
		}),
	}, nil
}

// Register installs the analyzer as the processor of link.
func (a *Analyzer) Register(link *dispatchqueue.Link) error {
	p, err := link.Register(func() (dispatchqueue.Processor, error) {
		return a, nil
	})
	if err != nil {
		return err
	}
	if p != dispatchqueue.Processor(a) {
		return errors.New("dispatch queue link already has another processor")
	}
	return nil
}

// Process accepts a batch of deduplicated work from the dispatch queue. It only
// enqueues the batch and returns false once the analyzer is stopped.
func (a *Analyzer) Process(ids []dispatchqueue.WorkID) bool {
	return a.pending.push(ids)
}

// Run submits roots to queue and analyzes everything reachable from them. It returns
// once no work is left, or when ctx is canceled, in which case the partial summary
// is returned along with the context error.
func (a *Analyzer) Run(ctx context.Context, queue *dispatchqueue.Queue,
	roots []classfile.MethodRef) (*Summary, error) {
	start := time.Now()
	if a.pending.isStopped() {
		return nil, ErrStopped
	}

	ids := make([]dispatchqueue.WorkID, 0, len(roots))
	for _, root := range roots {
		ids = append(ids, a.methods.Intern(root))
	}
	if !queue.Submit(ids) {
		return nil, ErrStopped
	}
	log.Infof("Analyzing from %d entry points with %d workers", len(roots), a.cfg.Workers)

	g, gctx := errgroup.WithContext(ctx)
	stopOnCancel := context.AfterFunc(gctx, a.pending.stop)
	defer stopOnCancel()

	for range a.cfg.Workers {
		g.Go(func() error {
			for {
				id, ok := a.pending.take()
				if !ok {
					return nil
				}
				err := a.analyze(queue, id)
				a.pending.done()
				if err != nil {
					return err
				}
			}
		})
	}
	err := g.Wait()
	a.pending.stop()
	if ctx.Err() != nil {
		// Workers interrupted by the cancellation report ErrStopped.
		err = ctx.Err()
	}

	summary := a.summary(time.Since(start))
	log.Infof("Reached %d methods in %d classes in %v (%d unresolved, %d failed)",
		len(summary.Methods), len(summary.Classes), summary.Duration,
		len(summary.Unresolved), len(summary.Failed))
	return summary, err
}

func (a *Analyzer) analyze(queue *dispatchqueue.Queue, id dispatchqueue.WorkID) error {
	ref, ok := a.methods.Lookup(id)
	if !ok {
		return fmt.Errorf("unknown work id %d", id)
	}

	entry, m, err := a.loader.ResolveMethod(ref)
	if err != nil {
		if !errors.Is(err, classpath.ErrClassNotFound) &&
			!errors.Is(err, classpath.ErrMethodNotFound) {
			log.Warnf("Failed to resolve %s: %v", ref, err)
		}
		a.recordUnresolved(ref, err)
		return nil
	}

	// Inherited declarations are analyzed under their own reference, so that a
	// method reached through several subclasses is analyzed once.
	declared := entry.Class.Ref(m)
	if declared != ref {
		return a.submit(queue, []dispatchqueue.WorkID{a.methods.Intern(declared)})
	}

	result, err := reachability.Analyze(entry.Class, m)
	if err != nil {
		log.Warnf("Failed to analyze %s from %s: %v", ref, entry.Source, err)
		a.recordFailed(ref, err)
		return nil
	}

	info := methodinfo.Info{
		Ref:         ref,
		ID:          id,
		AccessFlags: m.AccessFlags,
		Callees:     uint32(len(result.Callees)),
		Types:       uint32(len(result.Types)),
	}
	if m.Code != nil {
		info.MaxStack = m.Code.MaxStack
		info.MaxLocals = m.Code.MaxLocals
		info.CodeLength = uint32(len(m.Code.Bytecode))
	}
	a.infos.Add(info)
	metrics.Add(metrics.IDAnalyzedMethods, 1)
	log.Debugf("Analyzed %s: %d callees, %d types", ref, len(result.Callees),
		len(result.Types))

	newClasses := a.recordAnalyzed(ref, result)

	next := make([]dispatchqueue.WorkID, 0, len(result.Callees)+len(newClasses))
	for _, callee := range result.Callees {
		next = append(next, a.methods.Intern(callee.Ref))
	}
	// Referencing a class may trigger its static initializer.
	for _, name := range newClasses {
		for _, clinit := range a.initializers(name) {
			next = append(next, a.methods.Intern(clinit))
		}
	}
	return a.submit(queue, next)
}

// initializers returns the static initializers run when class name is initialized:
// those of its superclasses first, then its own.
func (a *Analyzer) initializers(name string) []classfile.MethodRef {
	var inits []classfile.MethodRef
	for name != "" {
		e, err := a.loader.Load(name)
		if err != nil {
			break
		}
		if e.Class.Method(clinitName, clinitDescriptor) != nil {
			inits = append(inits, classfile.MethodRef{
				Class: name, Name: clinitName, Descriptor: clinitDescriptor,
			})
		}
		name = e.Class.SuperName
	}
	slices.Reverse(inits)
	return inits
}

func (a *Analyzer) submit(queue *dispatchqueue.Queue, ids []dispatchqueue.WorkID) error {
	if !queue.Submit(ids) {
		return ErrStopped
	}
	return nil
}

// recordAnalyzed stores the outcome of a successful analysis and returns the
// classes seen for the first time.
func (a *Analyzer) recordAnalyzed(ref classfile.MethodRef,
	result *reachability.Result) []string {
	r := a.results.WLock()
	defer a.results.WUnlock(&r)

	r.methods[ref] = struct{}{}
	r.invokeDynamic += result.InvokeDynamic

	var newClasses []string
	for _, name := range append([]string{ref.Class}, result.Types...) {
		if _, ok := r.classes[name]; !ok {
			r.classes[name] = struct{}{}
			newClasses = append(newClasses, name)
		}
	}
	metrics.Add(metrics.IDDiscoveredClasses, metrics.MetricValue(len(r.classes)))
	return newClasses
}

func (a *Analyzer) recordUnresolved(ref classfile.MethodRef, err error) {
	metrics.Add(metrics.IDUnresolvedMethods, 1)
	r := a.results.WLock()
	defer a.results.WUnlock(&r)
	r.unresolved[ref] = err.Error()
}

func (a *Analyzer) recordFailed(ref classfile.MethodRef, err error) {
	metrics.Add(metrics.IDAnalysisFailures, 1)
	r := a.results.WLock()
	defer a.results.WUnlock(&r)
	r.failed[ref] = err.Error()
}

func compareRefs(x, y classfile.MethodRef) int {
	return cmp.Or(
		cmp.Compare(x.Class, y.Class),
		cmp.Compare(x.Name, y.Name),
		cmp.Compare(x.Descriptor, y.Descriptor),
	)
}

func sortedUnresolved(m map[classfile.MethodRef]string) []Unresolved {
	out := make([]Unresolved, 0, len(m))
	for ref, reason := range m {
		out = append(out, Unresolved{Ref: ref, Reason: reason})
	}
	slices.SortFunc(out, func(x, y Unresolved) int { return compareRefs(x.Ref, y.Ref) })
	return out
}

func (a *Analyzer) summary(duration time.Duration) *Summary {
	r := a.results.RLock()
	defer a.results.RUnlock(&r)

	return &Summary{
		Methods:       slices.SortedFunc(maps.Keys(r.methods), compareRefs),
		Classes:       slices.Sorted(maps.Keys(r.classes)),
		Unresolved:    sortedUnresolved(r.unresolved),
		Failed:        sortedUnresolved(r.failed),
		InvokeDynamic: r.invokeDynamic,
		Duration:      duration,
	}
}
