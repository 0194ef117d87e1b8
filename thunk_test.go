package skizo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClosureClass(t *testing.T, ts *TypeSystem) *Class {
	t.Helper()
	object, _ := ts.ClassByFlatName("Object")
	c := newClass(SliceOfWhole("0Closure_1"))
	c.BaseRef = object.ToTypeRef()
	c.Flags |= ClassCompilerGenerated
	envField := &Field{Name: SliceOfWhole("_soX_env"), Type: object.ToTypeRef()}
	require.NoError(t, c.AddField(envField))
	require.NoError(t, ts.RegisterClass(c))
	require.NoError(t, ts.CalcGCMap(c))
	return c
}

func TestThunkManagerConstructSetsEnvField(t *testing.T) {
	ts := newTestTypeSystem(t)
	closureClass := newTestClosureClass(t, ts)
	object, _ := ts.ClassByFlatName("Object")
	require.NoError(t, ts.CalcGCMap(object))

	thunks := NewThunkManager()
	gc := NewMemoryManager(1<<20, thunks, nil)
	thunks.bind(gc)

	env := gc.AllocObject(object)
	closure := thunks.Construct(closureClass, env)

	envIdx := fieldIndexByName(closureClass, "_soX_env")
	require.GreaterOrEqual(t, envIdx, 0)
	assert.Same(t, env, closure.Fields[envIdx])
}

func TestThunkManagerReleaseRecyclesStub(t *testing.T) {
	ts := newTestTypeSystem(t)
	closureClass := newTestClosureClass(t, ts)
	object, _ := ts.ClassByFlatName("Object")
	require.NoError(t, ts.CalcGCMap(object))

	thunks := NewThunkManager()
	gc := NewMemoryManager(1<<20, thunks, nil)
	thunks.bind(gc)

	env := gc.AllocObject(object)
	closure := thunks.Construct(closureClass, env)
	assert.Equal(t, 0, thunks.FreeStubCount())

	thunks.Release(closure)
	assert.Equal(t, 1, thunks.FreeStubCount())
}

func TestThunkManagerReleaseOfUnknownObjectIsNoop(t *testing.T) {
	ts := newTestTypeSystem(t)
	closureClass := newTestClosureClass(t, ts)
	thunks := NewThunkManager()
	thunks.Release(&Object{Class: closureClass})
	assert.Equal(t, 0, thunks.FreeStubCount())
}

func TestFieldIndexByNameMissing(t *testing.T) {
	ts := newTestTypeSystem(t)
	closureClass := newTestClosureClass(t, ts)
	assert.Equal(t, -1, fieldIndexByName(closureClass, "nonexistent"))
}
