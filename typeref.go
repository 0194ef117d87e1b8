package skizo

import "fmt"

// CastTag classifies the conversion needed to go from one TypeRef to
// another; the Emitter consumes it to inject the matching runtime-helper
// call (spec.md §3 TypeRef, §4.H).
type CastTag int

const (
	NoCast CastTag = iota
	Upcast
	Downcast
	Box
	Unbox
	ValueToFailable
	ErrorToFailable
)

// CastInfo is the result of a cast-rule lookup between a source and
// target TypeRef.
type CastInfo struct {
	Tag      CastTag
	Castable bool
}

// TypeRef is spec.md §3 "TypeRef": before resolution it names a class by
// slice + primitive tag + array level + failable bit; after resolution it
// points at a concrete Class. Two TypeRefs are Equal exactly when their
// resolved Class pointers are equal (spec.md §3).
type TypeRef struct {
	ClassName   StringSlice
	Primitive   PrimitiveTag
	ArrayLevel  int
	IsFailable  bool

	resolved *Class
}

// NewUnresolvedTypeRef builds a TypeRef naming a user class by slice.
func NewUnresolvedTypeRef(name StringSlice) *TypeRef {
	return &TypeRef{ClassName: name}
}

// NewPrimitiveTypeRef builds a TypeRef for one of the built-in primitive
// tags (Int, Float, Bool, Char, IntPtr, Void, Object).
func NewPrimitiveTypeRef(p PrimitiveTag) *TypeRef {
	return &TypeRef{Primitive: p}
}

// IsResolved reports whether Resolve has already bound this ref to a
// Class.
func (r *TypeRef) IsResolved() bool { return r.resolved != nil }

// ResolvedClass returns the bound Class, or nil if unresolved.
func (r *TypeRef) ResolvedClass() *Class { return r.resolved }

// ToTypeRef returns the canonical unresolved-shape TypeRef that, when
// resolved again, must yield c back (spec.md §8 property 1: round-trip
// type refs).
func (c *Class) ToTypeRef() *TypeRef {
	r := &TypeRef{
		ClassName:  c.FlatName,
		Primitive:  c.Primitive,
		IsFailable: c.Special == SpecialFailable,
	}
	if c.Special == SpecialArray {
		r.ArrayLevel = 1
		r.ClassName = c.WrappedRef.ClassName
		r.Primitive = c.WrappedRef.Primitive
		// an array-of-array collapses ArrayLevel by walking the
		// wrapped class's own array level, keeping round-trips exact
		// for nested arrays too.
		if c.WrappedRef.resolved != nil && c.WrappedRef.resolved.Special == SpecialArray {
			inner := c.WrappedRef.resolved.ToTypeRef()
			r.ArrayLevel = inner.ArrayLevel + 1
			r.ClassName = inner.ClassName
			r.Primitive = inner.Primitive
		}
	}
	r.resolved = c
	return r
}

// Equal compares two TypeRefs by resolved Class pointer once both are
// resolved; unresolved refs fall back to comparing their unresolved shape,
// used only during the brief window before resolution runs.
func (r *TypeRef) Equal(o *TypeRef) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.resolved != nil && o.resolved != nil {
		return r.resolved == o.resolved
	}
	return r.Primitive == o.Primitive &&
		r.ArrayLevel == o.ArrayLevel &&
		r.IsFailable == o.IsFailable &&
		r.ClassName.Equal(o.ClassName)
}

func (r *TypeRef) String() string {
	if r.resolved != nil {
		return r.resolved.Name()
	}
	suffix := ""
	for i := 0; i < r.ArrayLevel; i++ {
		suffix += "[]"
	}
	if r.IsFailable {
		suffix += "!"
	}
	if r.Primitive != PrimNone {
		return fmt.Sprintf("%v%s", r.Primitive, suffix)
	}
	return r.ClassName.String() + suffix
}

// computeCast determines the CastInfo for converting a value of type
// from to type to. This is the single source of truth the transformer
// consults to decide which implicit conversion (if any) to insert
// (spec.md §4.E step 4) and the emitter consults to pick a runtime
// helper (spec.md §4.H).
func computeCast(from, to *Class) CastInfo {
	if from == to {
		return CastInfo{Tag: NoCast, Castable: true}
	}
	if to == nil || from == nil {
		return CastInfo{Castable: false}
	}

	// value type -> Failable(value type)
	if to.Special == SpecialFailable && to.WrappedRef != nil && to.WrappedRef.resolved == from {
		return CastInfo{Tag: ValueToFailable, Castable: true}
	}
	// error class -> Failable(T) when from is (or implements) an error-like class
	if to.Special == SpecialFailable && from.implementsOrEquals(errorMarkerName) {
		return CastInfo{Tag: ErrorToFailable, Castable: true}
	}

	// value type -> interface: box, then treat as upcast of the box
	if from.Flags.Has(ClassValueType) && to.Special == SpecialInterface {
		if from.implementsInterface(to) {
			return CastInfo{Tag: Box, Castable: true}
		}
		return CastInfo{Castable: false}
	}
	// interface -> value type: unbox
	if from.Special == SpecialInterface && to.Flags.Has(ClassValueType) {
		if to.implementsInterface(from) {
			return CastInfo{Tag: Unbox, Castable: true}
		}
		return CastInfo{Castable: false}
	}

	if from.isSubclassOf(to) {
		return CastInfo{Tag: Upcast, Castable: true}
	}
	if to.isSubclassOf(from) || to.implementsInterface(from) {
		return CastInfo{Tag: Downcast, Castable: true}
	}
	return CastInfo{Castable: false}
}

// errorMarkerName is the flat name of the built-in base error class,
// registered by the TypeSystem during bootstrap.
const errorMarkerName = "Error"

func (c *Class) implementsOrEquals(flatName string) bool {
	for cur := c; cur != nil; cur = cur.baseClass() {
		if cur.Name() == flatName {
			return true
		}
	}
	return false
}

// isSubclassOf reports whether c is base or a transitive subclass of base.
func (c *Class) isSubclassOf(base *Class) bool {
	for cur := c; cur != nil; cur = cur.baseClass() {
		if cur == base {
			return true
		}
	}
	return false
}

// implementsInterface reports whether c implements iface, directly or
// through a base class, caching the result on c (spec.md §3 Class:
// "resolved cache of interface-implementation checks").
func (c *Class) implementsInterface(iface *Class) bool {
	if cached, ok := c.ifaceCache[iface]; ok {
		return cached
	}
	result := false
	for cur := c; cur != nil; cur = cur.baseClass() {
		for _, attr := range cur.interfaceRefs() {
			if attr == iface {
				result = true
				break
			}
		}
		if result {
			break
		}
	}
	c.ifaceCache[iface] = result
	return result
}

// interfaceRefs lists the interfaces a class directly declares it
// implements. Stored as part of the base-ref chain in this runtime:
// interfaces are recorded as extra entries in baseInterfaces.
func (c *Class) interfaceRefs() []*Class { return c.baseInterfaces }

func (c *Class) baseClass() *Class {
	if c.BaseRef == nil {
		return nil
	}
	return c.BaseRef.resolved
}
