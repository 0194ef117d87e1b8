package skizo

import "fmt"

// TypeSystem owns every Class known to a domain: the registry, the
// wrapper-class synthesis rules (Array/Failable/Boxed), method
// finalization (vtable assignment), and GC-map computation (spec.md
// §4.C).
type TypeSystem struct {
	byFlatName map[string]*Class
	byNiceName map[string]*Class
	arena      *BumpAllocator

	// order records every registered class in registration order —
	// including compiler-synthesized Array/Failable/Boxed classes — so
	// passes that care about ordering (static ctor/dtor running order,
	// spec.md §5) don't have to rely on Go's unordered map iteration.
	order []*Class

	arrayCache    map[string]*Class // wrapped flat name -> synthesized Array class
	failableCache map[string]*Class
	boxedCache    map[string]*Class
}

// Classes returns every registered class in registration order.
func (ts *TypeSystem) Classes() []*Class { return ts.order }

func newTypeSystem(arena *BumpAllocator) *TypeSystem {
	return &TypeSystem{
		byFlatName:    make(map[string]*Class),
		byNiceName:    make(map[string]*Class),
		arena:         arena,
		arrayCache:    make(map[string]*Class),
		failableCache: make(map[string]*Class),
		boxedCache:    make(map[string]*Class),
	}
}

// RegisterClass inserts c keyed by its flat name. A duplicate flat name
// is a DuplicateType compile error (spec.md §4.C).
func (ts *TypeSystem) RegisterClass(c *Class) error {
	key := c.Name()
	if _, exists := ts.byFlatName[key]; exists {
		return newCompileError(DuplicateType, SourceLocation{}, "class `%s` already registered", key)
	}
	ts.byFlatName[key] = c
	ts.order = append(ts.order, c)
	if nice := c.NiceName.String(); nice != "" {
		ts.byNiceName[nice] = c
	}
	// Diagnostic-only arena accounting (spec.md §4.B): the Class object
	// itself lives on the Go heap (see DESIGN.md), but every metadata
	// allocation still reserves its conceptual arena footprint so the
	// per-allocation-type counters stay meaningful.
	ts.arena.Allocate(classApproxSize(c), AllocClass)
	return nil
}

// classApproxSize is a rough, stable byte estimate used only to drive
// the bump allocator's diagnostic counters.
func classApproxSize(c *Class) int {
	return 64 + len(c.InstanceFields)*16 + len(c.InstanceMethods)*16
}

// ClassByFlatName looks up a class by its fully qualified name.
func (ts *TypeSystem) ClassByFlatName(s string) (*Class, bool) {
	c, ok := ts.byFlatName[s]
	return c, ok
}

// ClassByNiceName looks up a class by its (possibly shared) human-facing
// name.
func (ts *TypeSystem) ClassByNiceName(s string) (*Class, bool) {
	c, ok := ts.byNiceName[s]
	return c, ok
}

// ResolveTypeRef binds r to a concrete Class, synthesizing Array,
// Failable, and Boxed wrapper classes on demand (spec.md §4.C).
func (ts *TypeSystem) ResolveTypeRef(r *TypeRef) error {
	if r.IsResolved() {
		return nil
	}

	base := *r
	base.ArrayLevel = 0
	base.IsFailable = false

	var baseClass *Class
	if base.Primitive != PrimNone {
		pc, ok := ts.byFlatName[primitiveFlatName(base.Primitive)]
		if !ok {
			return newCompileError(UnknownType, SourceLocation{}, "unknown primitive type")
		}
		baseClass = pc
	} else {
		name := base.ClassName.String()
		c, ok := ts.byFlatName[name]
		if !ok {
			return newCompileError(UnknownType, SourceLocation{}, "unknown type `%s`", name)
		}
		baseClass = c
	}

	result := baseClass
	for i := 0; i < r.ArrayLevel; i++ {
		result = ts.arrayOf(result)
	}
	if r.IsFailable {
		result = ts.failableOf(result)
	}
	r.resolved = result
	return result.toValid()
}

func (c *Class) toValid() error { return nil }

func primitiveFlatName(p PrimitiveTag) string {
	switch p {
	case PrimInt:
		return "int"
	case PrimFloat:
		return "float"
	case PrimBool:
		return "bool"
	case PrimChar:
		return "char"
	case PrimIntPtr:
		return "intptr"
	case PrimVoid:
		return "void"
	case PrimObject:
		return "Object"
	default:
		return ""
	}
}

// arrayOf returns (synthesizing if necessary) the Array-of-elem class:
// "wraps T, special-class Array, fields omitted, size-for-use = pointer
// width, GC map of the header" (spec.md §4.C).
func (ts *TypeSystem) arrayOf(elem *Class) *Class {
	key := elem.Name()
	if cached, ok := ts.arrayCache[key]; ok {
		return cached
	}
	arr := newClass(SliceOfWhole(fmt.Sprintf("%s[]", key)))
	arr.Special = SpecialArray
	arr.WrappedRef = elem.ToTypeRef()
	arr.Flags |= ClassCompilerGenerated
	// Header layout: vtable (word 0, implicit) + length (word) + data
	// pointer (word); only the data pointer is a GC offset when the
	// element type is itself a heap class; value-type element arrays
	// inline the elements and are scanned specially by the GC (spec.md
	// §4.F Marking), not via a fixed GCMap offset.
	arr.GCInfo.ContentSize = wordSize * 2
	arr.GCInfo.SizeForUse = wordSize
	if elem.IsHeapClass() {
		arr.GCInfo.GCMap = []int{wordSize}
	}
	arr.Flags |= ClassSizeCalculated
	ts.arrayCache[key] = arr
	ts.byFlatName[arr.Name()] = arr
	ts.order = append(ts.order, arr)
	return arr
}

// failableOf returns (synthesizing if necessary) the Failable-of-T class:
// "struct containing either a T value or an error reference, with two
// constructors createFromValue and createFromError" (spec.md §4.C).
func (ts *TypeSystem) failableOf(value *Class) *Class {
	key := value.Name()
	if cached, ok := ts.failableCache[key]; ok {
		return cached
	}
	f := newClass(SliceOfWhole(fmt.Sprintf("%s!", key)))
	f.Special = SpecialFailable
	f.Flags |= ClassCompilerGenerated | ClassValueType
	f.WrappedRef = value.ToTypeRef()

	valueField := &Field{Name: SliceOfWhole("_value"), Type: value.ToTypeRef(), IsStatic: false}
	errorField := &Field{Name: SliceOfWhole("_error"), Type: nil, IsStatic: false}
	_ = f.AddField(valueField)
	_ = f.AddField(errorField)

	fromValue := &Method{Name: SliceOfWhole("createFromValue"), Kind: MethodCtor,
		Signature: MethodSignature{Params: []Param{{Name: SliceOfWhole("v"), Type: value.ToTypeRef()}}}}
	fromError := &Method{Name: SliceOfWhole("createFromError"), Kind: MethodCtor,
		Signature: MethodSignature{Params: []Param{{Name: SliceOfWhole("e"), Type: nil}}}}
	f.InstanceCtors = append(f.InstanceCtors, fromValue, fromError)
	fromValue.DeclaringClass, fromError.DeclaringClass = f, f

	// Content size: a tag word plus the wider of the value/error slot.
	valSize := value.GCInfo.SizeForUse
	if valSize == 0 {
		valSize = wordSize
	}
	f.GCInfo.ContentSize = alignUp(wordSize+valSize, wordSize)
	f.GCInfo.SizeForUse = f.GCInfo.ContentSize
	if value.IsHeapClass() {
		f.GCInfo.GCMap = []int{wordSize}
	}
	f.Flags |= ClassSizeCalculated

	ts.failableCache[key] = f
	ts.byFlatName[f.Name()] = f
	ts.order = append(ts.order, f)
	return f
}

// boxedOf returns (synthesizing if necessary) the heap-allocated boxed
// form of value type T: "heap class whose single logical field is T and
// whose method table is a copy of T's methods" (spec.md §4.C).
func (ts *TypeSystem) boxedOf(value *Class) *Class {
	key := value.Name()
	if cached, ok := ts.boxedCache[key]; ok {
		return cached
	}
	b := newClass(SliceOfWhole(fmt.Sprintf("Boxed<%s>", key)))
	b.NiceName = value.FlatName // boxed form may share the nice name with its value type
	b.Special = SpecialBoxed
	b.Flags |= ClassCompilerGenerated
	b.WrappedRef = value.ToTypeRef()
	b.baseInterfaces = append([]*Class(nil), value.baseInterfaces...)

	payload := &Field{Name: SliceOfWhole("_value"), Type: value.ToTypeRef(), IsStatic: false}
	_ = b.AddField(payload)

	// copy the method table so boxed values still dispatch polymorphically
	for _, m := range value.InstanceMethods {
		cp := *m
		cp.DeclaringClass = b
		b.InstanceMethods = append(b.InstanceMethods, &cp)
		b.names[cp.Name.String()] = &cp
	}

	payloadSize := value.GCInfo.ContentSize
	if payloadSize == 0 {
		payloadSize = wordSize
	}
	b.GCInfo.ContentSize = wordSize + alignUp(payloadSize, wordSize)
	b.GCInfo.SizeForUse = wordSize
	if value.IsHeapClass() {
		b.GCInfo.GCMap = []int{wordSize}
	}
	b.Flags |= ClassSizeCalculated

	ts.boxedCache[key] = b
	ts.byFlatName[b.Name()] = b
	ts.order = append(ts.order, b)
	return b
}

// MakeSureMethodsFinalized prepends the base class's virtual methods
// (overriding in place so an override keeps its base's vtable index),
// rejects signature-mismatched or private overrides, refuses non-
// abstract classes that still have abstract virtual methods, and
// populates the instance-method-by-name map (spec.md §4.C). Running it
// twice on the same class is a no-op (spec.md §8 property 2).
func (ts *TypeSystem) MakeSureMethodsFinalized(c *Class) error {
	if c.Flags.Has(ClassMethodListFinalized) {
		return nil
	}

	base := c.baseClass()
	byName := make(map[string]*Method)
	var nextSlot int

	if base != nil {
		if err := ts.MakeSureMethodsFinalized(base); err != nil {
			return err
		}
		for name, bm := range base.instanceMethodByName {
			byName[name] = bm
			if bm.VTableIndex >= nextSlot {
				nextSlot = bm.VTableIndex + 1
			}
		}
	}

	for _, m := range c.InstanceMethods {
		name := m.Name.String()
		if baseMethod, overriding := byName[name]; overriding {
			if baseMethod.Access == AccessPrivate {
				return newCompileError(BadOverride, SourceLocation{}, "cannot override private method `%s`", name)
			}
			if !baseMethod.Signature.Equal(m.Signature) {
				return newCompileError(BadOverride, SourceLocation{}, "signature of `%s` does not match base", name)
			}
			m.VTableIndex = baseMethod.VTableIndex
			byName[name] = m
			continue
		}
		m.VTableIndex = nextSlot
		nextSlot++
		byName[name] = m
	}

	if !c.Flags.Has(ClassAbstract) {
		for name, m := range byName {
			if m.Flags.Has(MethodAbstract) {
				return newCompileError(MissingAbstractImpl, SourceLocation{}, "class `%s` does not implement abstract method `%s`", c.Name(), name)
			}
		}
	}

	c.instanceMethodByName = byName
	c.Flags |= ClassMethodListFinalized

	vt := &VTable{Class: c, Slots: make([]*Method, nextSlot)}
	for _, m := range byName {
		vt.Slots[m.VTableIndex] = m
	}
	c.VTable = vt
	return nil
}

// CalcGCMap recursively ensures base and field classes have GC maps, then
// assigns field offsets and builds c's own GC map. Every field is word-
// aligned; struct (value-type) fields inline their own GC map at the
// computed offset (spec.md §4.C).
func (ts *TypeSystem) CalcGCMap(c *Class) error {
	if c.Flags.Has(ClassSizeCalculated) {
		return nil
	}

	offset := 0
	var gcMap []int

	if base := c.baseClass(); base != nil {
		if err := ts.CalcGCMap(base); err != nil {
			return err
		}
		offset = base.GCInfo.ContentSize
		gcMap = append(gcMap, base.GCInfo.GCMap...)
	} else if c.IsHeapClass() {
		// root of a hierarchy with no base map: reserve one word for
		// the vtable pointer (spec.md §3 GCInfo).
		offset = wordSize
	}

	for _, f := range c.InstanceFields {
		fieldClass := f.Type.ResolvedClass()
		if fieldClass == nil {
			if err := ts.ResolveTypeRef(f.Type); err != nil {
				return err
			}
			fieldClass = f.Type.ResolvedClass()
		}
		if err := ts.CalcGCMap(fieldClass); err != nil {
			return err
		}

		offset = alignUp(offset, wordSize)
		f.Offset = offset

		if fieldClass.Flags.Has(ClassValueType) {
			for _, sub := range fieldClass.GCInfo.GCMap {
				gcMap = append(gcMap, f.Offset+sub)
			}
			offset += fieldClass.GCInfo.ContentSize
		} else {
			gcMap = append(gcMap, f.Offset)
			offset += wordSize
		}
	}

	c.GCInfo.GCMap = gcMap
	c.GCInfo.ContentSize = alignUp(offset, wordSize)
	if c.Flags.Has(ClassValueType) {
		c.GCInfo.SizeForUse = c.GCInfo.ContentSize
	} else {
		c.GCInfo.SizeForUse = wordSize
	}
	c.Flags |= ClassSizeCalculated
	return nil
}
