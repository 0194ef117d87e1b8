package skizo

import "fmt"

// ParseFunc populates a freshly bootstrapped domain's TypeSystem with
// user classes and enqueues them on the Transformer. This runtime treats
// the post-parse AST as an input (parsing is out of scope), so embedders
// supply their own ParseFunc — typically one that walks an
// already-parsed AST and calls RegisterClass/Enqueue directly.
type ParseFunc func(ts *TypeSystem, tr *Transformer, sec *SecurityManager, host HostServices) error

// CreateDomainFromSource is the embedding API's primary entry point
// (spec.md §4.K): it runs the full domain lifecycle against source code
// already reduced to a ParseFunc. Of cfg it reads permissions, paths,
// inline, stacktraces, softdebug, nullcheck, maxgcmemory, gcstats and
// profile; source, useSourceAsPath, dump, safecallbacks and help are not
// read.
func CreateDomainFromSource(cfg *Config, parse ParseFunc, onProgress ProgressFunc) (*Domain, error) {
	return CreateDomain(cfg, parse, onProgress)
}

// CloseDomain runs a domain's judgement-day collection and releases its
// OS-thread registration. Safe to call more than once.
func CloseDomain(d *Domain) {
	if d == nil {
		return
	}
	d.Close()
}

// Invoke runs className's static entry point methodName (conventionally
// `main`) and reports the domain's last error string on failure, mirroring
// the embedder-facing contract of spec.md §4.K: the library never prints
// anything itself.
func Invoke(d *Domain, className, methodName string) error {
	if d.InvokeEntryPoint(className, methodName) {
		return nil
	}
	return fmt.Errorf("%s", d.GetLastError())
}

// NewManagedString allocates an interned string value and pins it with a
// permanent GC root, the same lifetime a string literal gets from
// `_soX_patchstrings` (spec.md §4.F Roots).
func NewManagedString(d *Domain, s string) Value {
	d.gc.AddPermanentRoot(s)
	return s
}

// NewManagedArray allocates a managed array of elemClassName with the
// given length, gated the same way a user `new T[n]` expression is: no
// special permission required, just GC accounting (spec.md §4.K).
func NewManagedArray(d *Domain, elemClassName string, length int) (*ArrayObject, error) {
	elem, ok := d.ts.ClassByFlatName(elemClassName)
	if !ok {
		return nil, fmt.Errorf("skizo: unknown element class %q", elemClassName)
	}
	arrClass := d.ts.arrayOf(elem)
	return d.gc.AllocArray(arrClass, length), nil
}

// SetArrayElement writes v into arr at index i after checking that v is
// type-compatible with the array's element class (an object of a
// subclass or implementing class, a matching primitive, or null for a
// reference element class), returning a TypeMismatch CompileError
// otherwise. v is stored as is: no boxing or unboxing is done, so a
// primitive is rejected by an array whose element class is an interface
// or Object.
func SetArrayElement(d *Domain, arr *ArrayObject, i int, v Value) error {
	if i < 0 || i >= len(arr.Elems) {
		return newAbort(RangeCheck, "array index %d out of range [0, %d)", i, len(arr.Elems))
	}
	elemClass := arr.Class.WrappedRef.ResolvedClass()
	if elemClass == nil {
		arr.Elems[i] = v
		return nil
	}
	if !valueMatchesClass(v, elemClass) {
		return newCompileError(TypeMismatch, SourceLocation{}, "cannot store a value of an incompatible type into an array of `%s`", elemClass.Name())
	}
	arr.Elems[i] = v
	return nil
}

func valueMatchesClass(v Value, c *Class) bool {
	switch x := v.(type) {
	case nil:
		return !c.Flags.Has(ClassValueType)
	case int64:
		return c.Primitive == PrimInt
	case float64:
		return c.Primitive == PrimFloat
	case bool:
		return c.Primitive == PrimBool
	case rune:
		return c.Primitive == PrimChar
	case string:
		return c.Name() == "string"
	case *Object:
		return x.Class.isSubclassOf(c) || x.Class.implementsInterface(c)
	case *ArrayObject:
		return x.Class == c
	default:
		return false
	}
}

// StringChars returns a managed string's characters, backing the
// embedding API's "view string chars" operation (spec.md §4.K) without
// copying out of the runtime's own string representation.
func StringChars(d *Domain, s Value) ([]rune, error) {
	str, ok := s.(string)
	if !ok {
		return nil, fmt.Errorf("skizo: value is not a managed string")
	}
	return []rune(str), nil
}
