package skizo

// PrimitiveTag is the primitive-type tag of a Class (spec.md §3).
type PrimitiveTag int

const (
	PrimNone PrimitiveTag = iota
	PrimInt
	PrimFloat
	PrimBool
	PrimChar
	PrimIntPtr
	PrimVoid
	PrimObject
)

// SpecialClassTag distinguishes the synthesized/wrapper class kinds from
// ordinary user classes.
type SpecialClassTag int

const (
	SpecialNone SpecialClassTag = iota
	SpecialInterface
	SpecialBoxed
	SpecialArray
	SpecialFailable
	SpecialForeign
	SpecialMethodClass
	SpecialEventClass
	SpecialAlias
	SpecialBinaryBlob
	SpecialClosureEnv
)

// AccessModifier controls member and class visibility (spec.md §4.E).
type AccessModifier int

const (
	AccessPublic AccessModifier = iota
	AccessProtected
	AccessInternal
	AccessPrivate
)

// ClassFlags is a bitmask of the per-class flags of spec.md §3.
type ClassFlags uint32

const (
	ClassAbstract ClassFlags = 1 << iota
	ClassStatic
	ClassValueType
	ClassSizeCalculated
	ClassMethodListFinalized
	ClassInferred
	ClassAttributesBorrowed
	ClassCompilerGenerated
	ClassEmitVTable
	ClassFreeVTable
	ClassIsInitialized
	ClassHasBreakExprs
)

func (f ClassFlags) Has(bit ClassFlags) bool { return f&bit != 0 }

// Attribute is a user-declared `[Name(args...)]`-style annotation on a
// class or member. Its interpretation is left to the embedder/emitter;
// the type system only stores and copies it.
type Attribute struct {
	Name StringSlice
	Args []string
}

// Const is a class-scoped named constant; it shares the class namespace
// with fields and methods (spec.md §3 Invariants).
type Const struct {
	Name           StringSlice
	Type           *TypeRef
	Value          Expr
	DeclaringClass *Class
	Access         AccessModifier
}

// EventField lowers, during transformation, to an assignment inserted at
// the head of the relevant constructor (spec.md §4.E step 2).
type EventField struct {
	Name           StringSlice
	Type           *TypeRef
	DeclaringClass *Class
	Access         AccessModifier
}

// GCInfo holds the precise layout information the GC needs to scan an
// instance of a Class (spec.md §3 GCInfo, §4.C CalcGCMap).
type GCInfo struct {
	// ContentSize is the footprint when the value is stored inline
	// (e.g. as a local or as the payload of a box).
	ContentSize int
	// SizeForUse is the footprint when the value is held as a field:
	// pointer-sized for heap classes and arrays, value-width for
	// primitives, ContentSize for value types (structs).
	SizeForUse int
	// GCMap is the ordered list of byte offsets within an instance at
	// which a heap pointer is found. These are the only offsets the
	// GC ever scans (spec.md §4.F Marking).
	GCMap []int
}

// Class is the central type-system node: spec.md §3 "Class" verbatim,
// translated into Go fields. Classes are allocated once per flat name and
// live for the owning domain's lifetime; they are read by many goroutine-
// free passes (transform, emit, GC) and never mutated after
// MakeSureMethodsFinalized + CalcGCMap have both run, except for the
// bookkeeping caches (ifaceCache, ifaceImpl) which are filled lazily.
type Class struct {
	FlatName StringSlice
	NiceName StringSlice

	Primitive PrimitiveTag
	Special   SpecialClassTag
	Access    AccessModifier
	Flags     ClassFlags

	BaseRef    *TypeRef
	WrappedRef *TypeRef // Boxed/Array/Failable/Foreign/Alias wrapped type

	// baseInterfaces lists the interfaces this class directly declares
	// it implements (not inherited automatically; implementsInterface
	// walks the base-class chain to pick those up too).
	baseInterfaces []*Class

	InstanceFields []*Field
	StaticFields   []*Field
	InstanceMethods []*Method
	StaticMethods   []*Method
	InstanceCtors   []*Method
	Dtor            *Method
	StaticCtor      *Method
	StaticDtor      *Method

	Consts      []*Const
	EventFields []*EventField
	Attributes  []Attribute

	names              map[string]any // name -> *Field|*Method|*Const, unique per class
	instanceMethodByName map[string]*Method // includes inherited

	GCInfo GCInfo
	VTable *VTable

	ifaceCache map[*Class]bool
	ifaceImpl  map[*Method]*Method

	hashCodeOverride *Method
	equalsOverride   *Method
}

func newClass(flatName StringSlice) *Class {
	return &Class{
		FlatName:             flatName,
		names:                make(map[string]any),
		instanceMethodByName: make(map[string]*Method),
		ifaceCache:           make(map[*Class]bool),
		ifaceImpl:            make(map[*Method]*Method),
	}
}

// Name is a convenience accessor returning the flat name as a string.
func (c *Class) Name() string { return c.FlatName.String() }

// IsHeapClass reports whether instances of c live on the GC heap (as
// opposed to being inlined value types). Every non-ValueType class, plus
// Boxed/Array/ClosureEnv special classes, is a heap class.
func (c *Class) IsHeapClass() bool {
	if c.Primitive == PrimVoid {
		return false
	}
	if c.Flags.Has(ClassValueType) {
		return false
	}
	return true
}

// registerMember records member under name, failing if the name is
// already taken within the class (spec.md §3 Invariants: member names
// are unique within a class).
func (c *Class) registerMember(name string, member any) error {
	if _, exists := c.names[name]; exists {
		return newCompileError(DuplicateType, SourceLocation{}, "member `%s` already declared on class `%s`", name, c.Name())
	}
	c.names[name] = member
	return nil
}

// LookupMember returns the field/method/const named name declared
// directly on c (not inherited).
func (c *Class) LookupMember(name string) (any, bool) {
	m, ok := c.names[name]
	return m, ok
}

// InstanceMethodByName returns the most-derived instance method named
// name, including inherited ones. Populated by MakeSureMethodsFinalized.
func (c *Class) InstanceMethodByName(name string) (*Method, bool) {
	m, ok := c.instanceMethodByName[name]
	return m, ok
}

// AddField appends f to the appropriate field list and registers its
// name, enforcing the class-wide namespace invariant.
func (c *Class) AddField(f *Field) error {
	if err := c.registerMember(f.Name.String(), f); err != nil {
		return err
	}
	f.DeclaringClass = c
	if f.IsStatic {
		c.StaticFields = append(c.StaticFields, f)
	} else {
		c.InstanceFields = append(c.InstanceFields, f)
	}
	return nil
}

// AddMethod appends m to the appropriate method/ctor slot and registers
// its name. A destructor, static or not, is registered under the
// synthetic key `#dtor`, so a class declares at most one; constructors,
// static or not, are not entered in the class namespace.
func (c *Class) AddMethod(m *Method) error {
	key := m.Name.String()
	switch m.Kind {
	case MethodCtor:
		key = "#ctor"
		if m.Signature.IsStatic {
			key = "#cctor"
		}
	case MethodDtor:
		key = "#dtor"
	}
	if _, exists := c.names[key]; exists && m.Kind != MethodCtor {
		return newCompileError(DuplicateType, SourceLocation{}, "member `%s` already declared on class `%s`", key, c.Name())
	}
	if m.Kind != MethodCtor {
		c.names[key] = m
	}
	m.DeclaringClass = c

	switch m.Kind {
	case MethodCtor:
		if m.Signature.IsStatic {
			c.StaticCtor = m
		} else {
			c.InstanceCtors = append(c.InstanceCtors, m)
		}
	case MethodDtor:
		if m.Signature.IsStatic {
			c.StaticDtor = m
		} else {
			c.Dtor = m
		}
	default:
		if m.Signature.IsStatic {
			c.StaticMethods = append(c.StaticMethods, m)
		} else {
			c.InstanceMethods = append(c.InstanceMethods, m)
		}
	}
	return nil
}

// AddInterface records that c declares it implements iface.
func (c *Class) AddInterface(iface *Class) {
	c.baseInterfaces = append(c.baseInterfaces, iface)
}

// AddConst registers a class-scoped constant, enforcing namespace
// uniqueness with fields and methods.
func (c *Class) AddConst(k *Const) error {
	if err := c.registerMember(k.Name.String(), k); err != nil {
		return err
	}
	k.DeclaringClass = c
	c.Consts = append(c.Consts, k)
	return nil
}
