package skizo

import "hash/maphash"

// StringSlice is a zero-copy view into an owning string: identifiers and
// keywords produced by the (out-of-scope) tokenizer are sliced out of the
// original source text rather than copied. Two slices are equal when
// their character ranges compare equal, not when their (Start, End) pairs
// match, so the same identifier found in two different source files
// still interns to one entry.
type StringSlice struct {
	owner      string
	start, end int
}

// NewStringSlice slices [start:end) out of owner. It never copies owner.
func NewStringSlice(owner string, start, end int) StringSlice {
	return StringSlice{owner: owner, start: start, end: end}
}

// SliceOfWhole returns a StringSlice spanning all of s.
func SliceOfWhole(s string) StringSlice {
	return StringSlice{owner: s, start: 0, end: len(s)}
}

func (s StringSlice) Len() int    { return s.end - s.start }
func (s StringSlice) String() string { return s.owner[s.start:s.end] }

func (a StringSlice) Equal(b StringSlice) bool {
	return a.String() == b.String()
}

var seed = maphash.MakeSeed()

// Hash is content-based for identifier-like slices. Punctuation tokens
// are expected to be hashed by their kind instead (the tokenizer's
// concern, out of scope here); StringSlice only ever sees identifier
// text in this runtime.
func (s StringSlice) Hash() uint64 {
	var h maphash.Hash
	h.SetSeed(seed)
	_, _ = h.WriteString(s.String())
	return h.Sum64()
}

// stringTable interns both raw identifier text and managed-string
// contents so that identical identifiers, and identical managed string
// literals, share one backing allocation for the lifetime of the domain.
// Interning is purely additive: entries are never evicted, matching the
// domain's bump-arena lifecycle (spec.md §3 Lifecycles).
type stringTable struct {
	byBytes map[string]StringSlice
	order   []StringSlice
}

func newStringTable() *stringTable {
	return &stringTable{byBytes: make(map[string]StringSlice)}
}

// Intern returns the canonical StringSlice for s, allocating a new entry
// only the first time s's bytes are seen.
func (t *stringTable) Intern(s string) StringSlice {
	if existing, ok := t.byBytes[s]; ok {
		return existing
	}
	slice := SliceOfWhole(s)
	t.byBytes[s] = slice
	t.order = append(t.order, slice)
	return slice
}

// InternSlice interns the text referenced by slice, returning a slice
// whose owner is the canonical backing string.
func (t *stringTable) InternSlice(slice StringSlice) StringSlice {
	return t.Intern(slice.String())
}

func (t *stringTable) Len() int { return len(t.order) }
