// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package staticanalyzer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/staticanalyzer/classfile"
	cft "go.opentelemetry.io/staticanalyzer/classfile/classfiletest"
	"go.opentelemetry.io/staticanalyzer/classpath"
	"go.opentelemetry.io/staticanalyzer/dispatchqueue"
	"go.opentelemetry.io/staticanalyzer/methodinfo"
	"go.opentelemetry.io/staticanalyzer/methodtable"
)

var mainRef = classfile.MethodRef{
	Class: "app/Main", Name: "main", Descriptor: "([Ljava/lang/String;)V",
}

func code(maxStack uint16, asm *cft.Asm) *cft.Code {
	return &cft.Code{MaxStack: maxStack, MaxLocals: 1, Bytecode: asm.Bytes()}
}

func ret() *cft.Code {
	return code(0, (&cft.Asm{}).Op(classfile.OpReturn))
}

// writeApp lays out a small application whose main method reaches, directly or
// through inheritance and static initializers, eight methods.
func writeApp(t *testing.T) string {
	t.Helper()
	classes := make(map[string]*cft.Builder)

	object := cft.New("java/lang/Object", "").
		AddMethod(classfile.AccPublic, "<init>", "()V", ret())
	classes["java/lang/Object"] = object

	main := cft.New("app/Main", "java/lang/Object")
	main.AddMethod(classfile.AccPublic|classfile.AccStatic, "main", "([Ljava/lang/String;)V",
		code(2, (&cft.Asm{}).
			U16(classfile.OpNew, main.Class("app/Worker")).
			Op(classfile.OpDup).
			U16(classfile.OpInvokespecial, main.Methodref("app/Worker", "<init>", "()V")).
			U16(classfile.OpInvokevirtual, main.Methodref("app/Worker", "work", "()V")).
			U16(classfile.OpInvokestatic, main.Methodref("app/Util", "log", "()V")).
			Op(classfile.OpReturn)))
	main.AddMethod(classfile.AccStatic, "unused", "()V",
		code(0, (&cft.Asm{}).
			U16(classfile.OpInvokestatic, main.Methodref("app/Dead", "x", "()V")).
			Op(classfile.OpReturn)))
	classes["app/Main"] = main

	base := cft.New("app/Base", "java/lang/Object")
	base.AddMethod(classfile.AccPublic, "<init>", "()V",
		code(1, (&cft.Asm{}).
			Op(classfile.OpAload0).
			U16(classfile.OpInvokespecial, base.Methodref("java/lang/Object", "<init>", "()V")).
			Op(classfile.OpReturn)))
	base.AddMethod(classfile.AccPublic, "work", "()V",
		code(1, (&cft.Asm{}).
			U16(classfile.OpInvokestatic, base.Methodref("app/Util", "log", "()V")).
			Invokedynamic(base.InvokeDynamic(0, "run", "()Ljava/lang/Runnable;")).
			Op(classfile.OpPop).
			Op(classfile.OpReturn)))
	classes["app/Base"] = base

	worker := cft.New("app/Worker", "app/Base")
	worker.AddMethod(classfile.AccPublic, "<init>", "()V",
		code(1, (&cft.Asm{}).
			Op(classfile.OpAload0).
			U16(classfile.OpInvokespecial, worker.Methodref("app/Base", "<init>", "()V")).
			Op(classfile.OpReturn)))
	classes["app/Worker"] = worker

	util := cft.New("app/Util", "java/lang/Object")
	util.AddMethod(classfile.AccStatic, "<clinit>", "()V", ret())
	util.AddMethod(classfile.AccPublic|classfile.AccStatic, "log", "()V",
		code(1, (&cft.Asm{}).
			U16(classfile.OpGetstatic, util.Fieldref("app/Config", "LEVEL", "I")).
			Op(classfile.OpPop).
			U16(classfile.OpInvokestatic, util.Methodref("app/Missing", "gone", "()V")).
			Op(classfile.OpReturn)))
	classes["app/Util"] = util

	config := cft.New("app/Config", "java/lang/Object").
		AddField(classfile.AccStatic, "LEVEL", "I").
		AddMethod(classfile.AccStatic, "<clinit>", "()V", ret())
	classes["app/Config"] = config

	dir := t.TempDir()
	for name, b := range classes {
		path := filepath.Join(dir, filepath.FromSlash(name)+".class")
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, b.Bytes(), 0o644))
	}
	return dir
}

type fixture struct {
	analyzer *Analyzer
	queue    *dispatchqueue.Queue
	infos    *methodinfo.Table
}

func newFixture(t *testing.T, dir string, workers int) fixture {
	t.Helper()
	loader, err := classpath.New([]string{dir}, 64)
	require.NoError(t, err)
	t.Cleanup(func() { _ = loader.Close() })

	infos := methodinfo.NewTable()
	analyzer, err := New(Config{Workers: workers}, loader, methodtable.New(), infos)
	require.NoError(t, err)

	link := &dispatchqueue.Link{}
	require.NoError(t, analyzer.Register(link))
	queue, err := dispatchqueue.New(link)
	require.NoError(t, err)
	return fixture{analyzer: analyzer, queue: queue, infos: infos}
}

func refs(t *testing.T, names ...string) []classfile.MethodRef {
	t.Helper()
	out := make([]classfile.MethodRef, 0, len(names))
	for _, n := range names {
		ref, err := classfile.ParseMethodRef(n)
		require.NoError(t, err)
		out = append(out, ref)
	}
	return out
}

func TestRun(t *testing.T) {
	dir := writeApp(t)

	for name, workers := range map[string]int{"one worker": 1, "many workers": 8} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, dir, workers)

			summary, err := f.analyzer.Run(context.Background(), f.queue,
				[]classfile.MethodRef{mainRef, mainRef})
			require.NoError(t, err)

			expected := refs(t,
				"app/Base.<init>()V",
				"app/Base.work()V",
				"app/Config.<clinit>()V",
				"app/Main.main([Ljava/lang/String;)V",
				"app/Util.<clinit>()V",
				"app/Util.log()V",
				"app/Worker.<init>()V",
				"java/lang/Object.<init>()V",
			)
			assert.Equal(t, expected, summary.Methods)
			assert.Equal(t, []string{
				"app/Base", "app/Config", "app/Main", "app/Missing", "app/Util",
				"app/Worker", "java/lang/Object", "java/lang/String",
			}, summary.Classes)

			require.Len(t, summary.Unresolved, 1)
			assert.Equal(t, "app/Missing.gone()V", summary.Unresolved[0].Ref.String())
			assert.Contains(t, summary.Unresolved[0].Reason, classpath.ErrClassNotFound.Error())
			assert.Empty(t, summary.Failed)
			assert.Equal(t, 1, summary.InvokeDynamic)

			assert.Equal(t, len(expected), f.infos.Len())
			for _, info := range f.infos.Infos() {
				assert.NotZero(t, info.ID)
			}
			main := f.infos.Infos()[3]
			assert.Equal(t, mainRef, main.Ref)
			assert.Equal(t, uint32(3), main.Callees)
			assert.Equal(t, uint32(14), main.CodeLength)

			// Every handle reached the analyzer once: the inherited Worker.work
			// reference, the missing method and the eight analyzed methods.
			assert.Equal(t, len(expected)+2, f.queue.Len())
		})
	}
}

func TestRunFollowsSuperclassInitializers(t *testing.T) {
	classes := map[string]*cft.Builder{
		"java/lang/Object": cft.New("java/lang/Object", ""),
		"app/Grand": cft.New("app/Grand", "java/lang/Object").
			AddMethod(classfile.AccStatic, "<clinit>", "()V", ret()),
		"app/Parent": cft.New("app/Parent", "app/Grand").
			AddMethod(classfile.AccStatic, "<clinit>", "()V", ret()),
		"app/Kid": cft.New("app/Kid", "app/Parent"),
	}
	main := cft.New("app/Main", "java/lang/Object")
	main.AddMethod(classfile.AccPublic|classfile.AccStatic, "main", "([Ljava/lang/String;)V",
		code(1, (&cft.Asm{}).
			U16(classfile.OpNew, main.Class("app/Kid")).
			Op(classfile.OpPop).
			Op(classfile.OpReturn)))
	classes["app/Main"] = main

	dir := t.TempDir()
	for name, b := range classes {
		path := filepath.Join(dir, filepath.FromSlash(name)+".class")
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, b.Bytes(), 0o644))
	}

	f := newFixture(t, dir, 2)
	summary, err := f.analyzer.Run(context.Background(), f.queue,
		[]classfile.MethodRef{mainRef})
	require.NoError(t, err)
	assert.Equal(t, refs(t,
		"app/Grand.<clinit>()V",
		"app/Main.main([Ljava/lang/String;)V",
		"app/Parent.<clinit>()V",
	), summary.Methods)
	assert.Empty(t, summary.Unresolved)
}

func TestRunRecordsAnalysisFailures(t *testing.T) {
	b := cft.New("app/Broken", "")
	b.AddMethod(classfile.AccStatic, "run", "()V",
		&cft.Code{Bytecode: []byte{classfile.OpNop}})
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "app"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app", "Broken.class"), b.Bytes(), 0o644))

	f := newFixture(t, dir, 2)
	summary, err := f.analyzer.Run(context.Background(), f.queue, refs(t, "app/Broken.run()V"))
	require.NoError(t, err)
	assert.Empty(t, summary.Methods)
	require.Len(t, summary.Failed, 1)
	assert.Contains(t, summary.Failed[0].Reason, classfile.ErrBadBytecode.Error())
}

func TestRunCanceled(t *testing.T) {
	f := newFixture(t, writeApp(t), 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.analyzer.Run(ctx, f.queue, []classfile.MethodRef{mainRef})
	require.ErrorIs(t, err, context.Canceled)

	assert.False(t, f.analyzer.Process(nil))
	_, err = f.analyzer.Run(context.Background(), f.queue, []classfile.MethodRef{mainRef})
	require.ErrorIs(t, err, ErrStopped)
}

func TestRunWithoutRoots(t *testing.T) {
	f := newFixture(t, t.TempDir(), 1)
	summary, err := f.analyzer.Run(context.Background(), f.queue, nil)
	require.NoError(t, err)
	assert.Empty(t, summary.Methods)
}

func TestRegister(t *testing.T) {
	dir := t.TempDir()
	first := newFixture(t, dir, 1)
	second := newFixture(t, dir, 1)

	link := &dispatchqueue.Link{}
	require.NoError(t, first.analyzer.Register(link))
	require.NoError(t, first.analyzer.Register(link))
	require.Error(t, second.analyzer.Register(link))

	p, ok := link.Processor()
	require.True(t, ok)
	assert.Same(t, first.analyzer, p)
}

func TestNewRejectsZeroWorkers(t *testing.T) {
	_, err := New(Config{}, nil, methodtable.New(), methodinfo.NewTable())
	require.Error(t, err)
}
