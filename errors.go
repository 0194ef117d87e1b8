package skizo

import "fmt"

// CompileErrorKind enumerates the compile-time error kinds of the
// parse/transform/emit pipeline. Each carries the source location the
// reporting stage had (a zero location where it had none) and aborts
// domain creation at the first offender.
type CompileErrorKind int

const (
	UnknownType CompileErrorKind = iota
	DuplicateType
	CyclicHierarchy
	BadOverride
	MissingAbstractImpl
	AccessViolation
	AmbiguousName
	InvalidECall
	UnresolvedICall
	TypeMismatch
	ImplicitDowncast
	BadAttribute
	NativeBodyConflict
	DisallowedUnsafe
)

func (k CompileErrorKind) String() string {
	switch k {
	case UnknownType:
		return "UnknownType"
	case DuplicateType:
		return "DuplicateType"
	case CyclicHierarchy:
		return "CyclicHierarchy"
	case BadOverride:
		return "BadOverride"
	case MissingAbstractImpl:
		return "MissingAbstractImpl"
	case AccessViolation:
		return "AccessViolation"
	case AmbiguousName:
		return "AmbiguousName"
	case InvalidECall:
		return "InvalidECall"
	case UnresolvedICall:
		return "UnresolvedICall"
	case TypeMismatch:
		return "TypeMismatch"
	case ImplicitDowncast:
		return "ImplicitDowncast"
	case BadAttribute:
		return "BadAttribute"
	case NativeBodyConflict:
		return "NativeBodyConflict"
	case DisallowedUnsafe:
		return "DisallowedUnsafe"
	default:
		return "UnknownErrorKind"
	}
}

// CompileError is raised anywhere in the parse/transform/emit pipeline.
// It carries enough context to be reported with a source snippet by the
// embedder without the library ever printing anything itself.
type CompileError struct {
	Kind     CompileErrorKind
	Message  string
	Location SourceLocation
}

func (e CompileError) Error() string {
	if e.Location.IsZero() {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s @ %s", e.Kind, e.Message, e.Location)
}

func newCompileError(kind CompileErrorKind, loc SourceLocation, format string, args ...any) *CompileError {
	return &CompileError{Kind: kind, Message: fmt.Sprintf(format, args...), Location: loc}
}

// SourceLocation is a position within a source module, attached to every
// AST expression and to every compile error.
type SourceLocation struct {
	Module string
	Line   int
	Column int
}

func (l SourceLocation) IsZero() bool { return l.Module == "" && l.Line == 0 && l.Column == 0 }

func (l SourceLocation) String() string {
	if l.Module == "" {
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.Module, l.Line, l.Column)
}

// AbortErrorCode enumerates the runtime error kinds of spec.md §7. A
// non-nil code on an AbortError is the only non-local control transfer
// the runtime performs; it unwinds to the domain's entry-point boundary.
type AbortErrorCode int

const (
	NoAbortCode AbortErrorCode = iota
	RangeCheck
	NullableNullCheck
	NullDereference
	AssertFailed
	FailableFailure
	OutOfMemory
	DisallowedCall
	StackOverflow
	TypeInitializationError
)

func (c AbortErrorCode) String() string {
	switch c {
	case RangeCheck:
		return "RangeCheck"
	case NullableNullCheck:
		return "NullableNullCheck"
	case NullDereference:
		return "NullDereference"
	case AssertFailed:
		return "AssertFailed"
	case FailableFailure:
		return "FailableFailure"
	case OutOfMemory:
		return "OutOfMemory"
	case DisallowedCall:
		return "DisallowedCall"
	case StackOverflow:
		return "StackOverflow"
	case TypeInitializationError:
		return "TypeInitializationError"
	default:
		return "None"
	}
}

// AbortError is raised by managed code (explicitly via `abort`, or
// implicitly by a failed runtime check) and unwinds through the emitted
// pipeline to InvokeEntryPoint. StackTrace is populated and trimmed by
// trimStackOverflow when Code is StackOverflow.
type AbortError struct {
	Message    string
	Code       AbortErrorCode
	StackTrace []StackFrame
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("ABORT (runtime): %s", e.Message)
}

func newAbort(code AbortErrorCode, format string, args ...any) *AbortError {
	return &AbortError{Message: fmt.Sprintf(format, args...), Code: code}
}

// StackFrame names a single emitted-method activation, used both for
// stack traces and for profiling reports.
type StackFrame struct {
	ClassName  string
	MethodName string
}

func (f StackFrame) String() string { return fmt.Sprintf("%s::%s", f.ClassName, f.MethodName) }
