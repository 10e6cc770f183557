// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package classfile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/staticanalyzer/classfile"
	"go.opentelemetry.io/staticanalyzer/classfile/classfiletest"
)

func sampleClass() (*classfiletest.Builder, uint16, uint16) {
	b := classfiletest.New("com/example/Greeter", "java/lang/Object")
	b.AddInterface("java/lang/Runnable")
	long := b.Long(1 << 40)
	printRef := b.Methodref("java/io/PrintStream", "println", "(Ljava/lang/String;)V")
	b.AddField(classfile.AccPrivate|classfile.AccFinal, "name", "Ljava/lang/String;")

	code := (&classfiletest.Asm{}).
		Op(classfile.OpAload0).
		U16(classfile.OpInvokevirtual, printRef).
		Op(classfile.OpReturn).
		Op(classfile.OpAstore1).
		Op(classfile.OpReturn).
		Bytes()
	b.AddMethod(classfile.AccPublic, "run", "()V", &classfiletest.Code{
		MaxStack:  2,
		MaxLocals: 2,
		Bytecode:  code,
		Handlers: []classfiletest.Handler{
			{Start: 0, End: 4, Handler: 5, CatchType: "java/lang/RuntimeException"},
			{Start: 0, End: 4, Handler: 5},
		},
	})
	b.AddMethod(classfile.AccPublic|classfile.AccAbstract, "size", "()I", nil)
	return b, long, printRef
}

func TestParse(t *testing.T) {
	b, long, printRef := sampleClass()
	cls, err := classfile.Parse(b.Bytes())
	require.NoError(t, err)

	assert.Equal(t, "com/example/Greeter", cls.Name)
	assert.Equal(t, "java/lang/Object", cls.SuperName)
	assert.Equal(t, []string{"java/lang/Runnable"}, cls.Interfaces)
	assert.Equal(t, uint16(65), cls.MajorVersion)
	assert.False(t, cls.IsInterface())

	require.Len(t, cls.Fields, 1)
	assert.Equal(t, "name", cls.Fields[0].Name)
	assert.Equal(t, "Ljava/lang/String;", cls.Fields[0].Descriptor)
	assert.True(t, cls.Fields[0].AccessFlags.Has(classfile.AccPrivate|classfile.AccFinal))

	require.Len(t, cls.Methods, 2)
	run := cls.Method("run", "()V")
	require.NotNil(t, run)
	require.NotNil(t, run.Code)
	assert.Equal(t, uint16(2), run.Code.MaxStack)
	assert.Len(t, run.Code.Bytecode, 7)
	assert.Equal(t, []classfile.ExceptionHandler{
		{StartPC: 0, EndPC: 4, HandlerPC: 5, CatchType: "java/lang/RuntimeException"},
		{StartPC: 0, EndPC: 4, HandlerPC: 5},
	}, run.Code.ExceptionTable)
	assert.True(t, run.Code.ExceptionTable[0].Covers(3))
	assert.False(t, run.Code.ExceptionTable[0].Covers(4))

	size := cls.Method("size", "()I")
	require.NotNil(t, size)
	assert.Nil(t, size.Code)
	assert.Nil(t, cls.Method("size", "()J"))

	v, err := cls.Long(long)
	require.NoError(t, err)
	assert.Equal(t, int64(1<<40), v)
	assert.Equal(t, classfile.TagInvalid, cls.Tag(long+1))

	ref, err := cls.MemberRef(printRef)
	require.NoError(t, err)
	assert.Equal(t, classfile.MemberRef{
		Tag:        classfile.TagMethodref,
		Class:      "java/io/PrintStream",
		Name:       "println",
		Descriptor: "(Ljava/lang/String;)V",
	}, ref)
	assert.Equal(t, "java/io/PrintStream.println(Ljava/lang/String;)V", ref.Method().String())
	assert.Equal(t, "com/example/Greeter.run()V", cls.Ref(run).String())
}

func TestParseConstantErrors(t *testing.T) {
	b, long, _ := sampleClass()
	cls, err := classfile.Parse(b.Bytes())
	require.NoError(t, err)

	_, err = cls.ClassName(0)
	require.ErrorIs(t, err, classfile.ErrBadConstant)
	_, err = cls.ClassName(uint16(cls.ConstantCount()))
	require.ErrorIs(t, err, classfile.ErrBadConstant)
	_, err = cls.MemberRef(long)
	require.ErrorIs(t, err, classfile.ErrBadConstant)
	_, err = cls.Utf8(long)
	require.ErrorIs(t, err, classfile.ErrBadConstant)
}

func TestParseMalformed(t *testing.T) {
	b, _, _ := sampleClass()
	good := b.Bytes()

	badMagic := append([]byte{0xde, 0xad, 0xbe, 0xef}, good[4:]...)
	badTag := append([]byte{}, good[:10]...)
	badTag = append(badTag, 2) // tag 2 is unassigned
	badTag = append(badTag, good[11:]...)

	tests := map[string]struct {
		data []byte
		err  error
	}{
		"empty":           {data: nil, err: classfile.ErrTruncated},
		"magic only":      {data: good[:4], err: classfile.ErrTruncated},
		"bad magic":       {data: badMagic, err: classfile.ErrBadMagic},
		"bad tag":         {data: badTag, err: classfile.ErrUnsupportedTag},
		"cut in pool":     {data: good[:20], err: classfile.ErrTruncated},
		"cut in methods":  {data: good[:len(good)-12], err: classfile.ErrTruncated},
		"missing trailer": {data: good[:len(good)-1], err: classfile.ErrTruncated},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := classfile.Parse(test.data)
			require.ErrorIs(t, err, test.err)
		})
	}
}
