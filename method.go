package skizo

// MethodKind distinguishes ordinary methods from constructors and the
// destructor (spec.md §3 Method).
type MethodKind int

const (
	MethodNormal MethodKind = iota
	MethodCtor
	MethodDtor
)

// MethodFlags is a bitmask of the per-method flags of spec.md §3.
type MethodFlags uint32

const (
	MethodAbstract MethodFlags = 1 << iota
	MethodVirtual
	MethodSelfCaptured
	MethodAnonymous
	MethodInferred
	MethodUnsafe
	MethodTrulyVirtual
	MethodWasEverCalled
	MethodForceNoHeader
	MethodHasBreakExprs
)

func (f MethodFlags) Has(bit MethodFlags) bool { return f&bit != 0 }

// SpecialMethodTag distinguishes native/foreign bodies from ordinary
// managed-code bodies.
type SpecialMethodTag int

const (
	MethodSpecialNone SpecialMethodTag = iota
	MethodSpecialNative           // ICall: body provided by the runtime
	MethodSpecialClosureCtor      // body synthesized by the ThunkManager
	MethodSpecialDisallowedECall  // an ECall rejected by SecurityManager
)

// CallingConvention names the ABI an ECall's external entry point uses.
type CallingConvention int

const (
	CallConvCdecl CallingConvention = iota
	CallConvStdcall
)

// ECallDescriptor binds a method to an externally loaded dynamic
// library's entry point (spec.md Glossary: ECall).
type ECallDescriptor struct {
	Library    string
	EntryPoint string
	Convention CallingConvention
	Impl       func(args []Value) (Value, error)
}

// Param is one parameter of a MethodSignature.
type Param struct {
	Name       StringSlice
	Type       *TypeRef
	IsCaptured bool
}

// MethodSignature is a method's return type, parameter vector, and
// static-ness — the shape compared for override-matching (spec.md §3
// Invariants: "Overrides match the base signature exactly").
type MethodSignature struct {
	ReturnType *TypeRef
	Params     []Param
	IsStatic   bool
}

// Equal reports whether two signatures match exactly: same return type,
// same parameter types in order, same static-ness. Parameter names are
// not compared.
func (s MethodSignature) Equal(o MethodSignature) bool {
	if s.IsStatic != o.IsStatic {
		return false
	}
	if !s.ReturnType.Equal(o.ReturnType) {
		return false
	}
	if len(s.Params) != len(o.Params) {
		return false
	}
	for i := range s.Params {
		if !s.Params[i].Type.Equal(o.Params[i].Type) {
			return false
		}
	}
	return true
}

// Method is spec.md §3 "Method" translated into Go. A Method with
// Special == MethodSpecialNative has no Body; its behavior is provided by
// the icall registry resolved at Domain creation. A closure's invoke
// method keeps ParentMethod pointing at the enclosing method so capture
// analysis (spec.md §4.E "Closure lowering") can walk outward.
type Method struct {
	Name      StringSlice
	Kind      MethodKind
	Signature MethodSignature
	Access    AccessModifier
	Flags     MethodFlags
	Special   SpecialMethodTag
	ECall     *ECallDescriptor

	Body            *BodyExpr
	DeclaringClass  *Class
	ExtensionClass  *Class // non-nil for extension methods: used for access checks only
	ParentMethod    *Method
	ClosureEnvClass *Class
	TargetField     *Field // for auto-generated getter/setter

	// Locals are the method-body-declared local variables, in
	// declaration order. The post-parse AST this spec treats as input
	// would carry locals as part of its own statement shape; this
	// runtime surfaces them on Method directly since local declaration
	// syntax is out of scope (spec.md §1).
	Locals []Local

	// EnvCarrying is set by closure capture analysis when a nested
	// closure reaches outward through this method to an enclosing one
	// (spec.md §4.E "marks every intermediate method as
	// environment-carrying").
	EnvCarrying bool

	VTableIndex int
}

// Local is one method-local variable declaration.
type Local struct {
	Name StringSlice
	Type *TypeRef
}

// IsUnsafe reports whether m is flagged Unsafe, the single predicate
// gating `ref` expressions, ECalls, and Marshal references (spec.md
// §4.E "Access control and safety").
func (m *Method) IsUnsafe() bool { return m.Flags.Has(MethodUnsafe) }

// IsClosureInvoke reports whether m is the `invoke` method of a
// compiler-generated closure class.
func (m *Method) IsClosureInvoke() bool {
	return m.DeclaringClass != nil && m.DeclaringClass.Special == SpecialNone &&
		m.DeclaringClass.Flags.Has(ClassCompilerGenerated) && m.Name.String() == "invoke"
}

// accessDeclaringClass is the class used for access-control checks: an
// extension method's *extension* declaring class, not the patchee it
// actually ends up living on at runtime (spec.md §4.E).
func (m *Method) accessDeclaringClass() *Class {
	if m.ExtensionClass != nil {
		return m.ExtensionClass
	}
	return m.DeclaringClass
}

// Field is spec.md §3 "Field" translated into Go.
type Field struct {
	Name           StringSlice
	Type           *TypeRef
	DeclaringClass *Class
	IsStatic       bool
	Offset         int // assigned during GC-map computation
	Access         AccessModifier
	Attributes     []Attribute
}

// VTable is the generated dispatch table for a class: one function
// pointer slot per virtual method, index-stable across overrides
// (spec.md §8 property 2).
type VTable struct {
	Class *Class
	Slots []*Method
}
