package skizo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchesEmptyWithNoActiveFrame(t *testing.T) {
	ts := newTestTypeSystem(t)
	in := newTestInterpreter(t, ts)
	it := in.Watches()
	assert.False(t, it.HasNext())
	_, ok := it.Next()
	assert.False(t, ok)
}

func TestWatchesSortedByName(t *testing.T) {
	ts := newTestTypeSystem(t)
	in := newTestInterpreter(t, ts)
	c := newTestProgramClass(t, ts)
	m := &Method{Name: SliceOfWhole("main"), DeclaringClass: c}

	in.pushFrame(m)
	in.recordLocal("zeta", int64(1))
	in.recordLocal("alpha", int64(2))

	it := in.Watches()
	require.True(t, it.HasNext())
	first, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, "alpha", first.Name)

	second, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, "zeta", second.Name)

	assert.False(t, it.HasNext())
}

func TestRecordLocalNoopWithoutActiveFrame(t *testing.T) {
	ts := newTestTypeSystem(t)
	in := newTestInterpreter(t, ts)
	in.recordLocal("x", int64(1))
	assert.Empty(t, in.frames)
}

func TestEnableSoftDebugTogglesFlag(t *testing.T) {
	ts := newTestTypeSystem(t)
	in := newTestInterpreter(t, ts)
	assert.False(t, in.softDebug)
	in.EnableSoftDebug(true)
	assert.True(t, in.softDebug)
	in.EnableSoftDebug(false)
	assert.False(t, in.softDebug)
}

func TestInvokeMethodFrameIsPoppedEvenOnError(t *testing.T) {
	ts := newTestTypeSystem(t)
	in := newTestInterpreter(t, ts)
	c := newTestProgramClass(t, ts)

	m := &Method{
		Name:           SliceOfWhole("work"),
		DeclaringClass: c,
		Signature:      MethodSignature{IsStatic: true},
		Body:           &BodyExpr{Statements: []Expr{&CCode{Code: "broken"}}},
	}
	_, err := in.InvokeMethod(m, nil, nil)
	require.Error(t, err)
	assert.Empty(t, in.frames, "frame must be popped even when the body errors")
}
