package skizo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInterpreter(t *testing.T, ts *TypeSystem) *Interpreter {
	t.Helper()
	thunks := NewThunkManager()
	gc := NewMemoryManager(1<<20, thunks, nil)
	thunks.bind(gc)
	sec := NewSecurityManager("/base", nil)
	return NewInterpreter(ts, gc, thunks, sec)
}

func TestInvokeMethodReturnsLiteral(t *testing.T) {
	ts := newTestTypeSystem(t)
	in := newTestInterpreter(t, ts)
	c := newTestProgramClass(t, ts)

	m := &Method{
		Name:           SliceOfWhole("answer"),
		DeclaringClass: c,
		Signature:      MethodSignature{IsStatic: true, ReturnType: NewPrimitiveTypeRef(PrimInt)},
		Body:           &BodyExpr{Statements: []Expr{&Return{Value: &IntegerConstant{Value: 42}}}},
	}

	v, err := in.InvokeMethod(m, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
}

func TestInvokeMethodBindsParamsAndLocals(t *testing.T) {
	ts := newTestTypeSystem(t)
	in := newTestInterpreter(t, ts)
	c := newTestProgramClass(t, ts)

	param := Param{Name: SliceOfWhole("x"), Type: NewPrimitiveTypeRef(PrimInt)}
	m := &Method{
		Name:           SliceOfWhole("identity"),
		DeclaringClass: c,
		Signature:      MethodSignature{IsStatic: true, ReturnType: NewPrimitiveTypeRef(PrimInt), Params: []Param{param}},
		Body:           &BodyExpr{Statements: []Expr{&Return{Value: &Ident{Name: SliceOfWhole("x")}}}},
	}

	v, err := in.InvokeMethod(m, nil, []Value{int64(9)})
	require.NoError(t, err)
	assert.Equal(t, int64(9), v)
}

func TestInvokeMethodStackOverflow(t *testing.T) {
	ts := newTestTypeSystem(t)
	in := newTestInterpreter(t, ts)
	in.maxDepth = 0
	c := newTestProgramClass(t, ts)
	m := &Method{Name: SliceOfWhole("loop"), DeclaringClass: c, Body: &BodyExpr{}}

	_, err := in.InvokeMethod(m, nil, nil)
	require.Error(t, err)
	var ab *AbortError
	require.ErrorAs(t, err, &ab)
	assert.Equal(t, StackOverflow, ab.Code)
}

func TestInvokeMethodNativeDispatchesToICall(t *testing.T) {
	ts := newTestTypeSystem(t)
	in := newTestInterpreter(t, ts)
	c := newTestProgramClass(t, ts)
	m := &Method{Name: SliceOfWhole("nativeThing"), DeclaringClass: c, Special: MethodSpecialNative}

	called := false
	in.RegisterICall("Program", "nativeThing", func(interp *Interpreter, self Value, args []Value) (Value, error) {
		called = true
		return int64(7), nil
	})

	v, err := in.InvokeMethod(m, nil, nil)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, int64(7), v)
}

func TestInvokeMethodNativeUnresolvedICallAborts(t *testing.T) {
	ts := newTestTypeSystem(t)
	in := newTestInterpreter(t, ts)
	c := newTestProgramClass(t, ts)
	m := &Method{Name: SliceOfWhole("missing"), DeclaringClass: c, Special: MethodSpecialNative}

	_, err := in.InvokeMethod(m, nil, nil)
	require.Error(t, err)
	var ab *AbortError
	require.ErrorAs(t, err, &ab)
	assert.Equal(t, DisallowedCall, ab.Code)
}

func TestResolveIdentWalksClosureEnvChain(t *testing.T) {
	ts := newTestTypeSystem(t)
	in := newTestInterpreter(t, ts)
	object, _ := ts.ClassByFlatName("Object")
	intClass, _ := ts.ClassByFlatName("int")

	upperEnv := newClass(SliceOfWhole("UpperEnv"))
	upperEnv.BaseRef = object.ToTypeRef()
	require.NoError(t, upperEnv.AddField(&Field{Name: SliceOfWhole("count"), Type: intClass.ToTypeRef()}))
	require.NoError(t, ts.RegisterClass(upperEnv))
	require.NoError(t, ts.CalcGCMap(upperEnv))

	innerEnv := newClass(SliceOfWhole("InnerEnv"))
	innerEnv.BaseRef = object.ToTypeRef()
	require.NoError(t, innerEnv.AddField(&Field{Name: SliceOfWhole("_soX_upper"), Type: upperEnv.ToTypeRef()}))
	require.NoError(t, ts.RegisterClass(innerEnv))
	require.NoError(t, ts.CalcGCMap(innerEnv))

	closureClass := newClass(SliceOfWhole("Closure"))
	closureClass.BaseRef = object.ToTypeRef()
	require.NoError(t, closureClass.AddField(&Field{Name: SliceOfWhole("_soX_env"), Type: innerEnv.ToTypeRef()}))
	require.NoError(t, ts.RegisterClass(closureClass))
	require.NoError(t, ts.CalcGCMap(closureClass))

	upperObj := in.gc.AllocObject(upperEnv)
	upperObj.Fields[fieldIndexByName(upperEnv, "count")] = int64(99)

	innerObj := in.gc.AllocObject(innerEnv)
	innerObj.Fields[fieldIndexByName(innerEnv, "_soX_upper")] = upperObj

	self := in.gc.AllocObject(closureClass)
	self.Fields[fieldIndexByName(closureClass, "_soX_env")] = innerObj

	fr := &frame{locals: map[string]Value{}, self: self}
	v, err := in.resolveIdent(fr, "count")
	require.NoError(t, err)
	assert.Equal(t, int64(99), v)
}

func TestResolveIdentUndefinedNameErrors(t *testing.T) {
	ts := newTestTypeSystem(t)
	in := newTestInterpreter(t, ts)
	fr := &frame{locals: map[string]Value{}}
	_, err := in.resolveIdent(fr, "nope")
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, UnknownType, ce.Kind)
}

func TestEvalCastBoxUnboxRoundTrip(t *testing.T) {
	ts := newTestTypeSystem(t)
	in := newTestInterpreter(t, ts)
	intClass, _ := ts.ClassByFlatName("int")
	boxed := ts.boxedOf(intClass)
	require.NoError(t, ts.CalcGCMap(boxed))

	lit := &IntegerConstant{Value: 5}
	lit.SetType(intClass.ToTypeRef())
	box := &Cast{Value: lit, Info: CastInfo{Tag: Box}}
	box.SetType(boxed.ToTypeRef())

	fr := &frame{locals: map[string]Value{}}
	boxedVal, err := in.evalCast(fr, box)
	require.NoError(t, err)
	obj, ok := boxedVal.(*Object)
	require.True(t, ok)

	unboxFrame := &frame{locals: map[string]Value{}, self: obj}
	unbox := &Cast{Value: &This{}, Info: CastInfo{Tag: Unbox}}
	v, err := in.evalCast(unboxFrame, unbox)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)
}

func TestEvalCastDowncastRejectsUnrelatedType(t *testing.T) {
	ts := newTestTypeSystem(t)
	in := newTestInterpreter(t, ts)
	object, _ := ts.ClassByFlatName("Object")

	a := newClass(SliceOfWhole("A"))
	a.BaseRef = object.ToTypeRef()
	require.NoError(t, ts.RegisterClass(a))
	require.NoError(t, ts.CalcGCMap(a))

	b := newClass(SliceOfWhole("B"))
	b.BaseRef = object.ToTypeRef()
	require.NoError(t, ts.RegisterClass(b))
	require.NoError(t, ts.CalcGCMap(b))

	obj := in.gc.AllocObject(a)
	down := &Cast{Value: &This{}, Info: CastInfo{Tag: Downcast}}
	down.SetType(b.ToTypeRef())

	fr := &frame{locals: map[string]Value{}, self: obj}
	_, err := in.evalCast(fr, down)
	require.Error(t, err)
	var ab *AbortError
	require.ErrorAs(t, err, &ab)
	assert.Equal(t, RangeCheck, ab.Code)
}

func TestIndexClassesAgreesWithEmitterMangling(t *testing.T) {
	ts := newTestTypeSystem(t)
	in := newTestInterpreter(t, ts)
	c := newTestProgramClass(t, ts)
	m := &Method{Name: SliceOfWhole("main"), DeclaringClass: c, Signature: MethodSignature{IsStatic: true}}
	require.NoError(t, c.AddMethod(m))

	in.IndexClasses([]*Class{c})
	_, ok := in.symbolTable[mangleMethod(c, m)]
	assert.True(t, ok)
}

func TestReferenceBackendCompileRejectsUnknownSymbol(t *testing.T) {
	ts := newTestTypeSystem(t)
	in := newTestInterpreter(t, ts)
	backend := NewReferenceBackend(in)

	_, err := backend.Compile("", []string{"_so_Nope_bogus"})
	require.Error(t, err)
}

func TestReferenceBackendCompileAndLookupInvokes(t *testing.T) {
	ts := newTestTypeSystem(t)
	in := newTestInterpreter(t, ts)
	c := newTestProgramClass(t, ts)
	m := &Method{
		Name:           SliceOfWhole("main"),
		DeclaringClass: c,
		Signature:      MethodSignature{IsStatic: true, ReturnType: NewPrimitiveTypeRef(PrimInt)},
		Body:           &BodyExpr{Statements: []Expr{&Return{Value: &IntegerConstant{Value: 1}}}},
	}
	require.NoError(t, c.AddMethod(m))
	in.IndexClasses([]*Class{c})

	backend := NewReferenceBackend(in)
	image, err := backend.Compile("", []string{mangleMethod(c, m), "_soX_prolog", "_soX_epilog"})
	require.NoError(t, err)

	fn, ok := image.Lookup(mangleMethod(c, m))
	require.True(t, ok)
	v, err := fn(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	_, ok = image.Lookup("_so_Program_nope")
	assert.False(t, ok)
}

func TestIdentityEqualDistinguishesObjectsAndScalars(t *testing.T) {
	assert.True(t, identityEqual(nil, nil))
	assert.False(t, identityEqual(nil, int64(0)))
	assert.True(t, identityEqual(int64(3), int64(3)))

	a := &Object{}
	b := &Object{}
	assert.True(t, identityEqual(a, a))
	assert.False(t, identityEqual(a, b))
}
