package skizo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassAddFieldRejectsDuplicateName(t *testing.T) {
	c := newClass(SliceOfWhole("Point"))
	x := &Field{Name: SliceOfWhole("x"), Type: NewPrimitiveTypeRef(PrimInt)}
	require.NoError(t, c.AddField(x))

	dup := &Field{Name: SliceOfWhole("x"), Type: NewPrimitiveTypeRef(PrimFloat)}
	err := c.AddField(dup)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, DuplicateType, ce.Kind)
}

func TestClassAddFieldSplitsStaticAndInstance(t *testing.T) {
	c := newClass(SliceOfWhole("Counter"))
	inst := &Field{Name: SliceOfWhole("value"), Type: NewPrimitiveTypeRef(PrimInt)}
	static := &Field{Name: SliceOfWhole("total"), Type: NewPrimitiveTypeRef(PrimInt), IsStatic: true}
	require.NoError(t, c.AddField(inst))
	require.NoError(t, c.AddField(static))

	assert.Len(t, c.InstanceFields, 1)
	assert.Len(t, c.StaticFields, 1)
	assert.Same(t, c, inst.DeclaringClass)
}

func TestClassAddMethodRoutesByKind(t *testing.T) {
	c := newClass(SliceOfWhole("Widget"))
	ctor := &Method{Name: SliceOfWhole("Widget"), Kind: MethodCtor}
	dtor := &Method{Name: SliceOfWhole("~Widget"), Kind: MethodDtor}
	inst := &Method{Name: SliceOfWhole("render")}
	static := &Method{Name: SliceOfWhole("create"), Signature: MethodSignature{IsStatic: true}}

	require.NoError(t, c.AddMethod(ctor))
	require.NoError(t, c.AddMethod(dtor))
	require.NoError(t, c.AddMethod(inst))
	require.NoError(t, c.AddMethod(static))

	assert.Len(t, c.InstanceCtors, 1)
	assert.Same(t, dtor, c.Dtor)
	assert.Len(t, c.InstanceMethods, 1)
	assert.Len(t, c.StaticMethods, 1)
}

func TestClassAddMethodAllowsMultipleCtorsSharingSyntheticKey(t *testing.T) {
	c := newClass(SliceOfWhole("Pair"))
	a := &Method{Name: SliceOfWhole("Pair"), Kind: MethodCtor}
	b := &Method{Name: SliceOfWhole("Pair"), Kind: MethodCtor,
		Signature: MethodSignature{Params: []Param{{Name: SliceOfWhole("x"), Type: NewPrimitiveTypeRef(PrimInt)}}}}
	require.NoError(t, c.AddMethod(a))
	require.NoError(t, c.AddMethod(b))
	assert.Len(t, c.InstanceCtors, 2)
}

func TestIsHeapClass(t *testing.T) {
	value := newClass(SliceOfWhole("Vec2"))
	value.Flags |= ClassValueType
	assert.False(t, value.IsHeapClass())

	heap := newClass(SliceOfWhole("Widget"))
	assert.True(t, heap.IsHeapClass())

	void := newClass(SliceOfWhole("void"))
	void.Primitive = PrimVoid
	assert.False(t, void.IsHeapClass())
}

func TestClassIsSubclassOf(t *testing.T) {
	base := newClass(SliceOfWhole("Animal"))
	mid := newClass(SliceOfWhole("Mammal"))
	mid.BaseRef = base.ToTypeRef()
	leaf := newClass(SliceOfWhole("Dog"))
	leaf.BaseRef = mid.ToTypeRef()

	assert.True(t, leaf.isSubclassOf(base))
	assert.True(t, leaf.isSubclassOf(mid))
	assert.True(t, leaf.isSubclassOf(leaf))
	assert.False(t, base.isSubclassOf(leaf))
}

func TestClassImplementsInterfaceThroughBase(t *testing.T) {
	iface := newClass(SliceOfWhole("Drawable"))
	iface.Special = SpecialInterface
	base := newClass(SliceOfWhole("Shape"))
	base.AddInterface(iface)
	leaf := newClass(SliceOfWhole("Circle"))
	leaf.BaseRef = base.ToTypeRef()

	assert.True(t, leaf.implementsInterface(iface))
	// result should be cached
	assert.True(t, leaf.implementsInterface(iface))
}
