package skizo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDomainFromSourceAndInvoke(t *testing.T) {
	cfg := NewConfig()
	d, err := CreateDomainFromSource(cfg, parseSingleIntMain(5), nil)
	require.NoError(t, err)
	defer CloseDomain(d)

	require.NoError(t, Invoke(d, "Program", "main"))
}

func TestInvokeWrapsLastErrorOnFailure(t *testing.T) {
	cfg := NewConfig()
	d, err := CreateDomainFromSource(cfg, parseSingleIntMain(5), nil)
	require.NoError(t, err)
	defer CloseDomain(d)

	err = Invoke(d, "Program", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no static method")
}

func TestCloseDomainIsNilSafe(t *testing.T) {
	assert.NotPanics(t, func() { CloseDomain(nil) })
}

func TestNewManagedStringPinsPermanentRoot(t *testing.T) {
	cfg := NewConfig()
	d, err := CreateDomainFromSource(cfg, parseSingleIntMain(1), nil)
	require.NoError(t, err)
	defer CloseDomain(d)

	v := NewManagedString(d, "hello")
	assert.Equal(t, "hello", v)
}

func TestNewManagedArrayAndSetArrayElement(t *testing.T) {
	cfg := NewConfig()
	d, err := CreateDomainFromSource(cfg, parseSingleIntMain(1), nil)
	require.NoError(t, err)
	defer CloseDomain(d)

	arr, err := NewManagedArray(d, "int", 3)
	require.NoError(t, err)
	assert.Len(t, arr.Elems, 3)

	require.NoError(t, SetArrayElement(d, arr, 0, int64(7)))
	assert.Equal(t, int64(7), arr.Elems[0])

	err = SetArrayElement(d, arr, 0, "not an int")
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, TypeMismatch, ce.Kind)

	err = SetArrayElement(d, arr, 99, int64(1))
	require.Error(t, err)
	var ab *AbortError
	require.ErrorAs(t, err, &ab)
	assert.Equal(t, RangeCheck, ab.Code)
}

func TestNewManagedArrayUnknownElementClassErrors(t *testing.T) {
	cfg := NewConfig()
	d, err := CreateDomainFromSource(cfg, parseSingleIntMain(1), nil)
	require.NoError(t, err)
	defer CloseDomain(d)

	_, err = NewManagedArray(d, "NoSuchClass", 1)
	require.Error(t, err)
}

func TestStringCharsReturnsRunes(t *testing.T) {
	cfg := NewConfig()
	d, err := CreateDomainFromSource(cfg, parseSingleIntMain(1), nil)
	require.NoError(t, err)
	defer CloseDomain(d)

	chars, err := StringChars(d, "hi")
	require.NoError(t, err)
	assert.Equal(t, []rune{'h', 'i'}, chars)

	_, err = StringChars(d, int64(1))
	require.Error(t, err)
}

func TestValueMatchesClassAcrossKinds(t *testing.T) {
	ts := newTestTypeSystem(t)
	intClass, _ := ts.ClassByFlatName("int")
	strClass, _ := ts.ClassByFlatName("string")
	object, _ := ts.ClassByFlatName("Object")

	assert.True(t, valueMatchesClass(int64(1), intClass))
	assert.False(t, valueMatchesClass(int64(1), strClass))
	assert.True(t, valueMatchesClass("s", strClass))
	assert.True(t, valueMatchesClass(nil, object))

	valueClass := newClass(SliceOfWhole("Point"))
	valueClass.Flags |= ClassValueType
	assert.False(t, valueMatchesClass(nil, valueClass))
}
