package skizo

// Value is anything a Skizo expression can evaluate to: nil (null), a Go
// bool/int64/float64/rune/uintptr standing in for Bool/Int/Float/Char/
// IntPtr, a Go string for interned string-literal payloads, or a heap
// reference (*Object/*ArrayObject).
type Value any

// Object is a managed heap instance: spec.md §3 Invariants — "Every heap
// allocation's first word is a vtable pointer whose slot 0 is the owning
// Class" — is represented here by storing the Class directly on the
// header rather than modeling raw bytes, since this runtime never emits
// real machine code for field access. Fields holds one slot per entry in
// Class.GCInfo's field layout, indexed the same way Field.Offset would
// address them in the emitted C struct.
type Object struct {
	Class  *Class
	Fields []Value

	marked    bool
	finalized bool
}

// ArrayObject is the runtime shape of a SpecialArray class instance.
type ArrayObject struct {
	Class *Class // the synthesized Array-of-T class
	Elems []Value

	marked    bool
	finalized bool
}

// newObject allocates zero-initialized storage for an instance of c,
// sized to its instance-field count (not ContentSize/GCMap offsets,
// since this runtime indexes fields by position rather than byte offset
// — see DESIGN.md).
func newObject(c *Class) *Object {
	return &Object{Class: c, Fields: make([]Value, len(allInstanceFields(c)))}
}

// allInstanceFields returns c's instance fields in declaration order,
// base class first, matching the offset-assignment order CalcGCMap uses.
func allInstanceFields(c *Class) []*Field {
	var fields []*Field
	if base := c.baseClass(); base != nil {
		fields = append(fields, allInstanceFields(base)...)
	}
	return append(fields, c.InstanceFields...)
}

// fieldIndex returns f's position within its declaring class's flattened
// instance-field vector, i.e. the index into Object.Fields.
func fieldIndex(c *Class, f *Field) int {
	for i, fld := range allInstanceFields(c) {
		if fld == f {
			return i
		}
	}
	return -1
}
