// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package reachability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/staticanalyzer/classfile"
	cft "go.opentelemetry.io/staticanalyzer/classfile/classfiletest"
)

func callee(t *testing.T, kind InvokeKind, ref string) Callee {
	t.Helper()
	r, err := classfile.ParseMethodRef(ref)
	require.NoError(t, err)
	return Callee{Ref: r, Kind: kind}
}

func analyze(t *testing.T, b *cft.Builder, desc string, code *cft.Code) (*Result, error) {
	t.Helper()
	flags := classfile.AccPublic | classfile.AccStatic
	if code == nil {
		flags = classfile.AccPublic | classfile.AccAbstract
	}
	b.AddMethod(flags, "target", desc, code)
	cls, err := classfile.Parse(b.Bytes())
	require.NoError(t, err)
	m := cls.Method("target", desc)
	require.NotNil(t, m)
	return Analyze(cls, m)
}

func TestAnalyze(t *testing.T) {
	tests := map[string]struct {
		desc    string
		build   func(b *cft.Builder) *cft.Code
		callees []string
		kinds   []InvokeKind
		types   []string
		indy    int
		reached int
	}{
		"straight line": {
			desc: "(Lcom/example/Arg;)Lcom/example/Ret;",
			build: func(b *cft.Builder) *cft.Code {
				code := (&cft.Asm{}).
					U16(classfile.OpNew, b.Class("com/example/Foo")).
					Op(classfile.OpDup).
					U16(classfile.OpInvokespecial,
						b.Methodref("com/example/Foo", "<init>", "()V")).
					U16(classfile.OpInvokestatic,
						b.Methodref("com/example/Util", "helper", "()V")).
					U16(classfile.OpGetstatic,
						b.Fieldref("java/lang/System", "out", "Ljava/io/PrintStream;")).
					Op(classfile.OpPop).
					Op(classfile.OpLdc, uint8(b.Class("com/example/Bar"))).
					Op(classfile.OpPop).
					Op(classfile.OpAconstNull).
					Op(classfile.OpAreturn).
					Bytes()
				return &cft.Code{MaxStack: 2, MaxLocals: 1, Bytecode: code}
			},
			callees: []string{"com/example/Foo.<init>()V", "com/example/Util.helper()V"},
			kinds:   []InvokeKind{InvokeSpecial, InvokeStatic},
			types: []string{"com/example/Arg", "com/example/Ret", "com/example/Foo",
				"com/example/Util", "java/lang/System", "com/example/Bar"},
			reached: 10,
		},
		"dead code is skipped": {
			desc: "()V",
			build: func(b *cft.Builder) *cft.Code {
				code := (&cft.Asm{}).
					Branch(classfile.OpGoto, 7).
					U16(classfile.OpInvokestatic, b.Methodref("com/example/Dead", "d", "()V")).
					Op(classfile.OpReturn).
					Op(classfile.OpReturn).
					Bytes()
				return &cft.Code{Bytecode: code}
			},
			reached: 2,
		},
		"both branches": {
			desc: "()V",
			build: func(b *cft.Builder) *cft.Code {
				code := (&cft.Asm{}).
					Op(classfile.OpIconst0).
					Branch(classfile.OpIfeq, 7).
					U16(classfile.OpInvokestatic, b.Methodref("com/example/A", "a", "()V")).
					Op(classfile.OpReturn).
					U16(classfile.OpInvokestatic, b.Methodref("com/example/B", "b", "()V")).
					Op(classfile.OpReturn).
					Bytes()
				return &cft.Code{MaxStack: 1, Bytecode: code}
			},
			callees: []string{"com/example/A.a()V", "com/example/B.b()V"},
			kinds:   []InvokeKind{InvokeStatic, InvokeStatic},
			types:   []string{"com/example/A", "com/example/B"},
			reached: 6,
		},
		"tableswitch": {
			desc: "()V",
			build: func(b *cft.Builder) *cft.Code {
				// The switch sits at bci 1 and occupies 23 bytes.
				code := (&cft.Asm{}).
					Op(classfile.OpIconst0).
					Tableswitch(23, 0, 27, 31).
					U16(classfile.OpInvokestatic, b.Methodref("com/example/A", "a", "()V")).
					Op(classfile.OpReturn).
					U16(classfile.OpInvokestatic, b.Methodref("com/example/B", "b", "()V")).
					Op(classfile.OpReturn).
					U16(classfile.OpInvokestatic, b.Methodref("com/example/C", "c", "()V")).
					Op(classfile.OpReturn).
					Bytes()
				return &cft.Code{MaxStack: 1, Bytecode: code}
			},
			callees: []string{"com/example/A.a()V", "com/example/B.b()V", "com/example/C.c()V"},
			kinds:   []InvokeKind{InvokeStatic, InvokeStatic, InvokeStatic},
			types:   []string{"com/example/A", "com/example/B", "com/example/C"},
			reached: 8,
		},
		"handler covering reached code": {
			desc: "()V",
			build: func(b *cft.Builder) *cft.Code {
				code := (&cft.Asm{}).
					U16(classfile.OpInvokestatic, b.Methodref("com/example/A", "a", "()V")).
					Op(classfile.OpReturn).
					Op(classfile.OpAstore1).
					U16(classfile.OpInvokestatic, b.Methodref("com/example/H", "h", "()V")).
					Op(classfile.OpReturn).
					Bytes()
				return &cft.Code{MaxStack: 1, MaxLocals: 2, Bytecode: code,
					Handlers: []cft.Handler{
						{Start: 0, End: 3, Handler: 4, CatchType: "java/io/IOException"},
					}}
			},
			callees: []string{"com/example/A.a()V", "com/example/H.h()V"},
			kinds:   []InvokeKind{InvokeStatic, InvokeStatic},
			types:   []string{"com/example/A", "java/io/IOException", "com/example/H"},
			reached: 5,
		},
		"handler covering dead code": {
			desc: "()V",
			build: func(b *cft.Builder) *cft.Code {
				code := (&cft.Asm{}).
					Branch(classfile.OpGoto, 7).
					U16(classfile.OpInvokestatic, b.Methodref("com/example/D", "d", "()V")).
					Op(classfile.OpReturn).
					Op(classfile.OpReturn).
					Op(classfile.OpAstore1).
					U16(classfile.OpInvokestatic, b.Methodref("com/example/H", "h", "()V")).
					Op(classfile.OpReturn).
					Bytes()
				return &cft.Code{MaxStack: 1, MaxLocals: 2, Bytecode: code,
					Handlers: []cft.Handler{
						{Start: 3, End: 6, Handler: 8, CatchType: "java/lang/Exception"},
					}}
			},
			reached: 2,
		},
		"invokedynamic is counted": {
			desc: "()V",
			build: func(b *cft.Builder) *cft.Code {
				indy := b.InvokeDynamic(0, "run", "()Ljava/lang/Runnable;")
				code := (&cft.Asm{}).
					Invokedynamic(indy).
					Op(classfile.OpPop).
					Invokedynamic(indy).
					Op(classfile.OpPop).
					Op(classfile.OpReturn).
					Bytes()
				return &cft.Code{MaxStack: 1, Bytecode: code}
			},
			indy:    2,
			reached: 5,
		},
		"interface call": {
			desc: "(Ljava/util/List;)V",
			build: func(b *cft.Builder) *cft.Code {
				code := (&cft.Asm{}).
					Op(classfile.OpAload0).
					Invokeinterface(b.InterfaceMethodref("java/util/List", "size", "()I"), 1).
					Op(classfile.OpPop).
					Op(classfile.OpReturn).
					Bytes()
				return &cft.Code{MaxStack: 1, MaxLocals: 1, Bytecode: code}
			},
			callees: []string{"java/util/List.size()I"},
			kinds:   []InvokeKind{InvokeInterface},
			types:   []string{"java/util/List"},
			reached: 4,
		},
		"array types": {
			desc: "()V",
			build: func(b *cft.Builder) *cft.Code {
				multi := b.Class("[[Lcom/example/Cell;")
				code := (&cft.Asm{}).
					Op(classfile.OpIconst0).
					U16(classfile.OpAnewarray, b.Class("java/lang/String")).
					U16(classfile.OpCheckcast, b.Class("[I")).
					Op(classfile.OpPop).
					Op(classfile.OpIconst0).
					Op(classfile.OpIconst0).
					Op(classfile.OpMultianewarray, byte(multi>>8), byte(multi), 2).
					U16(classfile.OpInstanceof, b.Class("[Ljava/lang/String;")).
					Op(classfile.OpPop).
					Op(classfile.OpReturn).
					Bytes()
				return &cft.Code{MaxStack: 2, Bytecode: code}
			},
			types:   []string{"java/lang/String", "com/example/Cell"},
			reached: 10,
		},
		"abstract method": {
			desc:  "(Lcom/example/In;I)[Lcom/example/Out;",
			build: func(*cft.Builder) *cft.Code { return nil },
			types: []string{"com/example/In", "com/example/Out"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			b := cft.New("com/example/Subject", "java/lang/Object")
			result, err := analyze(t, b, test.desc, test.build(b))
			require.NoError(t, err)

			require.Len(t, test.kinds, len(test.callees))
			var expected []Callee
			for i, ref := range test.callees {
				expected = append(expected, callee(t, test.kinds[i], ref))
			}
			assert.Equal(t, expected, result.Callees)
			assert.Equal(t, test.types, result.Types)
			assert.Equal(t, test.indy, result.InvokeDynamic)
			assert.Equal(t, test.reached, result.Instructions)
		})
	}
}

func TestAnalyzeDeduplicates(t *testing.T) {
	b := cft.New("com/example/Subject", "java/lang/Object")
	helper := b.Methodref("com/example/Util", "helper", "()V")
	code := (&cft.Asm{}).
		U16(classfile.OpInvokestatic, helper).
		U16(classfile.OpInvokestatic, helper).
		U16(classfile.OpNew, b.Class("com/example/Util")).
		Op(classfile.OpPop).
		Op(classfile.OpReturn).
		Bytes()
	result, err := analyze(t, b, "()V", &cft.Code{MaxStack: 1, Bytecode: code})
	require.NoError(t, err)
	assert.Equal(t, []Callee{callee(t, InvokeStatic, "com/example/Util.helper()V")},
		result.Callees)
	assert.Equal(t, []string{"com/example/Util"}, result.Types)
}

func TestAnalyzeErrors(t *testing.T) {
	tests := map[string]struct {
		build func(b *cft.Builder) []byte
		err   error
	}{
		"falls off the end": {
			build: func(*cft.Builder) []byte { return []byte{classfile.OpNop} },
			err:   classfile.ErrBadBytecode,
		},
		"invalid opcode": {
			build: func(*cft.Builder) []byte { return []byte{0xfe} },
			err:   classfile.ErrBadBytecode,
		},
		"call through wrong constant": {
			build: func(b *cft.Builder) []byte {
				return (&cft.Asm{}).
					U16(classfile.OpInvokestatic, b.Utf8("nope")).
					Op(classfile.OpReturn).
					Bytes()
			},
			err: classfile.ErrBadConstant,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			b := cft.New("com/example/Subject", "java/lang/Object")
			_, err := analyze(t, b, "()V", &cft.Code{Bytecode: test.build(b)})
			require.ErrorIs(t, err, test.err)
		})
	}
}

func TestInvokeKindString(t *testing.T) {
	assert.Equal(t, "invokeinterface", InvokeInterface.String())
	assert.Equal(t, "InvokeKind(9)", InvokeKind(9).String())
}
