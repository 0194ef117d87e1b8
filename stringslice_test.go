package skizo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringSliceBasics(t *testing.T) {
	s := NewStringSlice("hello world", 6, 11)
	assert.Equal(t, "world", s.String())
	assert.Equal(t, 5, s.Len())
}

func TestSliceOfWhole(t *testing.T) {
	s := SliceOfWhole("Program")
	assert.Equal(t, "Program", s.String())
	assert.Equal(t, 7, s.Len())
}

func TestStringSliceEqual(t *testing.T) {
	a := NewStringSlice("int x", 0, 3)
	b := SliceOfWhole("int")
	assert.True(t, a.Equal(b))
	assert.True(t, b.Equal(a))

	c := SliceOfWhole("float")
	assert.False(t, a.Equal(c))
}

func TestStringTableIntern(t *testing.T) {
	tbl := newStringTable()
	a := tbl.Intern("foo")
	b := tbl.Intern("foo")
	require.True(t, a.Equal(b))
	assert.Equal(t, 1, tbl.Len(), "interning the same string twice must not grow the table")

	tbl.Intern("bar")
	assert.Equal(t, 2, tbl.Len())
}

func TestStringTableInternSlice(t *testing.T) {
	tbl := newStringTable()
	original := NewStringSlice("int x", 0, 3)
	interned := tbl.InternSlice(original)
	assert.True(t, interned.Equal(original))
}
