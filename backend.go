package skizo

import (
	"fmt"
	"time"
)

// Callable is one compiled entry point. The real pipeline hands back a
// machine-code pointer with this same single-self/args-in,
// single-value-out shape; the reference backend hands back a Go closure
// that drives the tree-walking Interpreter instead (spec.md §1
// "CodeBackend", §4.L).
type Callable func(self Value, args []Value) (Value, error)

// CodeImage is the relocated, callable result of a CodeBackend.Compile
// call: every symbol named in the Emitter's symbol table resolves here.
type CodeImage interface {
	Lookup(symbol string) (Callable, bool)
}

// CodeBackend accepts the Emitter's C source plus its symbol table and
// produces an executable CodeImage. spec.md deliberately abstracts the
// native compiler behind this interface so a domain never depends on one
// concrete toolchain (spec.md §1, §4.H).
type CodeBackend interface {
	Compile(source string, symbols []string) (CodeImage, error)
}

// ICallFunc is the Go-side implementation of a native method (spec.md
// Glossary: ICall). Registered by class+method name, the same way the
// real runtime's icall table is populated at domain creation.
type ICallFunc func(interp *Interpreter, self Value, args []Value) (Value, error)

// frameRecord is one live method activation: enough to reconstruct a
// stack trace (spec.md §8 S6) and a profiling entry (spec.md §4.H
// "profiling hooks"), and to back the soft-debug watch iterator
// (debug.go) while the frame is on top.
type frameRecord struct {
	ClassName, MethodName string
	locals                map[string]Value
	start                 time.Time
	childTime             time.Duration
}

// Interpreter executes Method bodies directly over the AST — a tree-
// walker, explicitly not the bytecode VM spec.md's Non-goals exclude. It
// is both the reference backend's execution engine and the thing every
// icall, the GC's finalizer callback, and the profiling/stack-trace
// machinery hook into.
type Interpreter struct {
	ts     *TypeSystem
	gc     *MemoryManager
	thunks *ThunkManager
	sec    *SecurityManager
	host   HostServices
	icalls map[string]ICallFunc

	symbolTable map[string]*Method // mangled name -> Method, built from the class list the Emitter saw

	frames      []*frameRecord
	maxDepth    int
	profiling   bool
	profileData map[string]*ProfileEntry
	softDebug   bool
}

// NewInterpreter wires an Interpreter to the collaborators a running
// domain already owns: its TypeSystem, MemoryManager, ThunkManager, and
// SecurityManager (spec.md §4.J Lifecycle).
func NewInterpreter(ts *TypeSystem, gc *MemoryManager, thunks *ThunkManager, sec *SecurityManager) *Interpreter {
	return &Interpreter{
		ts: ts, gc: gc, thunks: thunks, sec: sec,
		icalls:      make(map[string]ICallFunc),
		symbolTable: make(map[string]*Method),
		maxDepth:    2000,
		profileData: make(map[string]*ProfileEntry),
	}
}

// RegisterICall binds the native implementation of class.method (spec.md
// §4.J "Register icalls/ecalls").
func (in *Interpreter) RegisterICall(className, methodName string, fn ICallFunc) {
	in.icalls[className+"::"+methodName] = fn
}

// SetHostServices wires the filesystem collaborator the Path icalls
// defer to (spec.md §4.J "install secure-IO").
func (in *Interpreter) SetHostServices(h HostServices) { in.host = h }

// EnableProfiling turns per-method self/total-time accounting on or off
// (spec.md §6 `profile`).
func (in *Interpreter) EnableProfiling(v bool) { in.profiling = v }

// EnableSoftDebug turns on local-variable mirroring into the current
// frame's watch set, so Watches() (debug.go) has something to report
// (spec.md §6 `softdebug`).
func (in *Interpreter) EnableSoftDebug(v bool) { in.softDebug = v }

// IndexClasses builds the symbol table the reference CodeBackend
// validates its requested symbols against, mirroring the names the
// Emitter mangled the same classes to.
func (in *Interpreter) IndexClasses(classes []*Class) {
	for _, c := range classes {
		for _, m := range c.InstanceMethods {
			in.symbolTable[mangleMethod(c, m)] = m
		}
		for _, m := range c.StaticMethods {
			in.symbolTable[mangleMethod(c, m)] = m
		}
		for _, m := range c.InstanceCtors {
			in.symbolTable[mangleMethod(c, m)] = m
		}
		if c.Dtor != nil {
			in.symbolTable[mangleDtor(c)] = c.Dtor
		}
	}
}

// ReferenceBackend is the in-process CodeBackend implementation: instead
// of invoking a real C toolchain, it defers every call to the Interpreter
// that already holds the class/method graph the Emitter's text describes
// (spec.md §4.L "Reference CodeBackend").
type ReferenceBackend struct {
	interp *Interpreter
}

func NewReferenceBackend(interp *Interpreter) *ReferenceBackend {
	return &ReferenceBackend{interp: interp}
}

// Compile validates that every requested symbol is known and returns a
// CodeImage that dispatches into the Interpreter. The C source text
// itself is accepted (and retained nowhere) purely to satisfy the
// CodeBackend contract; the reference backend never parses it.
func (b *ReferenceBackend) Compile(source string, symbols []string) (CodeImage, error) {
	for _, sym := range symbols {
		if sym == "_soX_prolog" || sym == "_soX_epilog" {
			continue
		}
		if _, ok := b.interp.symbolTable[sym]; !ok {
			return nil, fmt.Errorf("reference backend: undefined symbol %q", sym)
		}
	}
	return &referenceImage{interp: b.interp}, nil
}

type referenceImage struct{ interp *Interpreter }

func (img *referenceImage) Lookup(symbol string) (Callable, bool) {
	m, ok := img.interp.symbolTable[symbol]
	if !ok {
		return nil, false
	}
	return func(self Value, args []Value) (Value, error) {
		return img.interp.InvokeMethod(m, self, args)
	}, true
}

// frame is per-activation local storage: parameter/local bindings plus
// the closure environment chain (`_soX_env`) an `invoke` method sees.
type frame struct {
	locals map[string]Value
	self   Value
	method *Method
}

// InvokeMethod runs m with the given receiver and arguments, pushing a
// stack frame for the duration (spec.md §4.H instrumentation, §8 S6). A
// native method dispatches to its registered ICallFunc instead of
// walking a body.
func (in *Interpreter) InvokeMethod(m *Method, self Value, args []Value) (Value, error) {
	if len(in.frames) >= in.maxDepth {
		trace := in.captureTrace()
		return nil, &AbortError{Message: "stack overflow", Code: StackOverflow, StackTrace: trimStackOverflow(trace)}
	}

	if m.Special == MethodSpecialNative {
		key := m.DeclaringClass.Name() + "::" + m.Name.String()
		fn, ok := in.icalls[key]
		if !ok {
			return nil, newAbort(DisallowedCall, "unresolved icall `%s`", key)
		}
		in.pushFrame(m)
		defer in.popFrame()
		return fn(in, self, args)
	}

	fr := &frame{locals: make(map[string]Value), self: self, method: m}
	for i, p := range m.Signature.Params {
		if i < len(args) {
			fr.locals[p.Name.String()] = args[i]
		}
	}
	for _, l := range m.Locals {
		fr.locals[l.Name.String()] = zeroValue(l.Type)
	}

	in.pushFrame(m)
	defer in.popFrame()
	if in.softDebug {
		for name, v := range fr.locals {
			in.recordLocal(name, v)
		}
	}

	if m.Body == nil {
		return nil, nil
	}
	res, err := in.evalBody(fr, m.Body)
	if err != nil {
		return nil, err
	}
	return res.value, nil
}

func zeroValue(t *TypeRef) Value {
	if t == nil {
		return nil
	}
	switch t.Primitive {
	case PrimInt:
		return int64(0)
	case PrimFloat:
		return float64(0)
	case PrimBool:
		return false
	case PrimChar:
		return rune(0)
	case PrimIntPtr:
		return uintptr(0)
	default:
		return nil
	}
}

func (in *Interpreter) pushFrame(m *Method) {
	className := "?"
	if m.DeclaringClass != nil {
		className = m.DeclaringClass.Name()
	}
	fr := &frameRecord{ClassName: className, MethodName: m.Name.String(), locals: make(map[string]Value)}
	if in.profiling {
		fr.start = time.Now()
	}
	in.frames = append(in.frames, fr)
}

func (in *Interpreter) popFrame() {
	if len(in.frames) == 0 {
		return
	}
	fr := in.frames[len(in.frames)-1]
	in.frames = in.frames[:len(in.frames)-1]
	if in.profiling {
		total := time.Since(fr.start)
		self := total - fr.childTime
		if len(in.frames) > 0 {
			in.frames[len(in.frames)-1].childTime += total
		}
		key := fr.ClassName + "::" + fr.MethodName
		e, ok := in.profileData[key]
		if !ok {
			e = &ProfileEntry{ClassName: fr.ClassName, MethodName: fr.MethodName}
			in.profileData[key] = e
		}
		e.Calls++
		e.TotalTime += total
		e.SelfTime += self
	}
}

func (in *Interpreter) captureTrace() []StackFrame {
	trace := make([]StackFrame, len(in.frames))
	for i, fr := range in.frames {
		trace[len(in.frames)-1-i] = StackFrame{ClassName: fr.ClassName, MethodName: fr.MethodName}
	}
	return trace
}

// execResult threads `return`/`break` control out of evalStmt without
// resorting to panic/recover for ordinary control flow (AbortError is the
// sole non-local transfer the managed language itself exposes; Go-level
// return/break propagation here is purely an interpreter implementation
// detail, not something managed code can observe).
type execResult struct {
	returned bool
	broke    bool
	value    Value
}

func (in *Interpreter) evalBody(fr *frame, body *BodyExpr) (execResult, error) {
	for _, stmt := range body.Statements {
		res, err := in.evalStmt(fr, stmt)
		if err != nil {
			return execResult{}, err
		}
		if res.returned || res.broke {
			return res, nil
		}
	}
	return execResult{}, nil
}

func (in *Interpreter) evalStmt(fr *frame, s Expr) (execResult, error) {
	switch n := s.(type) {
	case *Return:
		var v Value
		if n.Value != nil {
			var err error
			v, err = in.evalExpr(fr, n.Value)
			if err != nil {
				return execResult{}, err
			}
		}
		return execResult{returned: true, value: v}, nil
	case *Break:
		return execResult{broke: true}, nil
	case *InlinedCondition:
		cond, err := in.evalExpr(fr, n.Condition)
		if err != nil {
			return execResult{}, err
		}
		if b, _ := cond.(bool); b {
			return in.evalBody(fr, n.Then)
		}
		return execResult{}, nil
	default:
		_, err := in.evalExpr(fr, s)
		return execResult{}, err
	}
}

func (in *Interpreter) evalExpr(fr *frame, ex Expr) (Value, error) {
	switch n := ex.(type) {
	case *IntegerConstant:
		return n.Value, nil
	case *FloatConstant:
		return n.Value, nil
	case *BoolConstant:
		return n.Value, nil
	case *CharLiteral:
		return n.Value, nil
	case *StringLiteral:
		return n.Value, nil
	case *NullConstant:
		return nil, nil
	case *This:
		return fr.self, nil
	case *Ident:
		return in.resolveIdent(fr, n.Name.String())
	case *Assignment:
		v, err := in.evalExpr(fr, n.Value)
		if err != nil {
			return nil, err
		}
		if err := in.assign(fr, n.Target, v); err != nil {
			return nil, err
		}
		return v, nil
	case *Cast:
		return in.evalCast(fr, n)
	case *Call:
		return in.evalCall(fr, n)
	case *ArrayCreation:
		length, err := in.evalExpr(fr, n.Length)
		if err != nil {
			return nil, err
		}
		l, _ := length.(int64)
		var arrClass *Class
		if n.ElementType != nil && n.ElementType.ResolvedClass() != nil {
			arrClass = in.ts.arrayOf(n.ElementType.ResolvedClass())
		}
		return in.gc.AllocArray(arrClass, int(l)), nil
	case *ArrayInit:
		var arrClass *Class
		if n.ElementType != nil && n.ElementType.ResolvedClass() != nil {
			arrClass = in.ts.arrayOf(n.ElementType.ResolvedClass())
		}
		arr := in.gc.AllocArray(arrClass, len(n.Items))
		for i, item := range n.Items {
			v, err := in.evalExpr(fr, item)
			if err != nil {
				return nil, err
			}
			arr.Elems[i] = v
		}
		return arr, nil
	case *IdentityComparison:
		l, err := in.evalExpr(fr, n.Left)
		if err != nil {
			return nil, err
		}
		r, err := in.evalExpr(fr, n.Right)
		if err != nil {
			return nil, err
		}
		eq := identityEqual(l, r)
		if n.Negate {
			eq = !eq
		}
		return eq, nil
	case *Is:
		v, err := in.evalExpr(fr, n.Value)
		if err != nil {
			return nil, err
		}
		return in.isOfType(v, n.Of), nil
	case *Abort:
		msg := "abort"
		if n.Message != nil {
			v, err := in.evalExpr(fr, n.Message)
			if err != nil {
				return nil, err
			}
			if s, ok := v.(string); ok {
				msg = s
			}
		}
		return nil, &AbortError{Message: msg, Code: NoAbortCode, StackTrace: in.captureTrace()}
	case *Assert:
		v, err := in.evalExpr(fr, n.Condition)
		if err != nil {
			return nil, err
		}
		if b, _ := v.(bool); !b {
			return nil, &AbortError{Message: "assertion failed", Code: AssertFailed, StackTrace: in.captureTrace()}
		}
		return nil, nil
	case *Ref:
		// The reference backend has no machine addresses to hand back;
		// it evaluates the referent and passes it through unchanged,
		// which is sound for every Unsafe icall this runtime registers
		// (they all treat the value opaquely).
		return in.evalExpr(fr, n.Value)
	case *CCode:
		return nil, fmt.Errorf("reference backend: cannot execute verbatim C code %q", n.Code)
	case *Sizeof:
		if n.Of.ResolvedClass() != nil {
			return int64(n.Of.ResolvedClass().GCInfo.ContentSize), nil
		}
		return int64(0), nil
	case *BodyExpr:
		if n.ClosureClass != nil {
			return in.constructClosure(fr, n), nil
		}
		res, err := in.evalBody(fr, n)
		return res.value, err
	default:
		return nil, fmt.Errorf("reference backend: unsupported expression %T", ex)
	}
}

// constructClosure builds a closure literal's capture environment (if
// any) and hands it to the ThunkManager, the same construction a
// generated `create(_env)` call performs (spec.md §4.E "Closure
// lowering", §4.G ThunkManager).
func (in *Interpreter) constructClosure(fr *frame, body *BodyExpr) Value {
	var env *Object
	if body.EnvClass != nil {
		env = in.buildClosureEnv(fr, body)
	}
	return in.thunks.Construct(body.ClosureClass, env)
}

// buildClosureEnv allocates body's capture-environment object and fills
// it from the enclosing frame: captured locals/parameters come from
// fr.locals, `_soX_upper` chains to the enclosing closure's own
// environment (when fr.self is itself a closure instance), and
// `_soX_self` copies fr.self when the body also captured `this`.
func (in *Interpreter) buildClosureEnv(fr *frame, body *BodyExpr) *Object {
	env := in.gc.AllocObject(body.EnvClass)
	for name := range body.Captures {
		idx := fieldIndexByName(body.EnvClass, name)
		if idx < 0 {
			continue
		}
		if v, ok := fr.locals[name]; ok {
			env.Fields[idx] = v
			continue
		}
		if obj, ok := fr.self.(*Object); ok {
			if fi := fieldIndexByName(obj.Class, name); fi >= 0 {
				env.Fields[idx] = obj.Fields[fi]
			}
		}
	}
	if idx := fieldIndexByName(body.EnvClass, "_soX_upper"); idx >= 0 {
		if obj, ok := fr.self.(*Object); ok {
			if ei := fieldIndexByName(obj.Class, "_soX_env"); ei >= 0 {
				env.Fields[idx] = obj.Fields[ei]
			}
		}
	}
	if body.SelfCaptured {
		if idx := fieldIndexByName(body.EnvClass, "_soX_self"); idx >= 0 {
			env.Fields[idx] = fr.self
		}
	}
	return env
}

func identityEqual(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case *Object:
		bv, ok := b.(*Object)
		return ok && av == bv
	case *ArrayObject:
		bv, ok := b.(*ArrayObject)
		return ok && av == bv
	default:
		return a == b
	}
}

func (in *Interpreter) isOfType(v Value, of *TypeRef) bool {
	target := of.ResolvedClass()
	if target == nil {
		return false
	}
	var actual *Class
	switch o := v.(type) {
	case *Object:
		actual = o.Class
	case *ArrayObject:
		actual = o.Class
	default:
		return false
	}
	return actual.isSubclassOf(target) || actual.implementsInterface(target)
}

func (in *Interpreter) resolveIdent(fr *frame, name string) (Value, error) {
	if v, ok := fr.locals[name]; ok {
		return v, nil
	}
	if obj, ok := fr.self.(*Object); ok {
		if idx := fieldIndexByName(obj.Class, name); idx >= 0 {
			return obj.Fields[idx], nil
		}
		// closure environment chain: walk _soX_env / _soX_upper
		if idx := fieldIndexByName(obj.Class, "_soX_env"); idx >= 0 {
			if env, ok := obj.Fields[idx].(*Object); ok {
				if v, err := in.resolveInEnv(env, name); err == nil {
					return v, nil
				}
			}
		}
	}
	if fr.method != nil && fr.method.DeclaringClass != nil {
		if member, ok := fr.method.DeclaringClass.LookupMember(name); ok {
			if k, ok := member.(*Const); ok {
				return in.evalExpr(&frame{locals: map[string]Value{}}, k.Value)
			}
		}
	}
	return nil, newCompileError(UnknownType, SourceLocation{}, "undefined name `%s`", name)
}

func (in *Interpreter) resolveInEnv(env *Object, name string) (Value, error) {
	if idx := fieldIndexByName(env.Class, name); idx >= 0 {
		return env.Fields[idx], nil
	}
	if idx := fieldIndexByName(env.Class, "_soX_upper"); idx >= 0 {
		if upper, ok := env.Fields[idx].(*Object); ok {
			return in.resolveInEnv(upper, name)
		}
	}
	return nil, fmt.Errorf("not found in environment chain")
}

func (in *Interpreter) assign(fr *frame, target Expr, v Value) error {
	ident, ok := target.(*Ident)
	if !ok {
		return fmt.Errorf("reference backend: unsupported assignment target %T", target)
	}
	name := ident.Name.String()
	if _, ok := fr.locals[name]; ok {
		fr.locals[name] = v
		if in.softDebug {
			in.recordLocal(name, v)
		}
		return nil
	}
	if obj, ok := fr.self.(*Object); ok {
		if idx := fieldIndexByName(obj.Class, name); idx >= 0 {
			obj.Fields[idx] = v
			return nil
		}
	}
	fr.locals[name] = v
	if in.softDebug {
		in.recordLocal(name, v)
	}
	return nil
}

func (in *Interpreter) evalCast(fr *frame, n *Cast) (Value, error) {
	v, err := in.evalExpr(fr, n.Value)
	if err != nil {
		return nil, err
	}
	switch n.Info.Tag {
	case Box:
		boxClass := in.ts.boxedOf(n.Value.Type().ResolvedClass())
		box := in.gc.AllocObject(boxClass)
		if idx := fieldIndexByName(boxClass, "_value"); idx >= 0 {
			box.Fields[idx] = v
		}
		return box, nil
	case Unbox:
		if box, ok := v.(*Object); ok {
			if idx := fieldIndexByName(box.Class, "_value"); idx >= 0 {
				return box.Fields[idx], nil
			}
		}
		return nil, newAbort(NullDereference, "unbox of non-boxed value")
	case ValueToFailable:
		return in.wrapFailableValue(n.Type().ResolvedClass(), v), nil
	case ErrorToFailable:
		return in.wrapFailableError(n.Type().ResolvedClass(), v), nil
	case Downcast:
		if !in.isOfType(v, n.Type()) {
			return nil, newAbort(RangeCheck, "invalid downcast to `%s`", n.Type())
		}
		return v, nil
	default: // Upcast, NoCast
		return v, nil
	}
}

func (in *Interpreter) wrapFailableValue(failableClass *Class, v Value) Value {
	obj := in.gc.AllocObject(failableClass)
	if idx := fieldIndexByName(failableClass, "_value"); idx >= 0 {
		obj.Fields[idx] = v
	}
	return obj
}

func (in *Interpreter) wrapFailableError(failableClass *Class, v Value) Value {
	obj := in.gc.AllocObject(failableClass)
	if idx := fieldIndexByName(failableClass, "_error"); idx >= 0 {
		obj.Fields[idx] = v
	}
	return obj
}

func (in *Interpreter) evalCall(fr *frame, n *Call) (Value, error) {
	if n.Resolved == nil {
		return nil, newCompileError(UnresolvedICall, n.Loc(), "call to `%s` was never resolved", n.Name.String())
	}
	m := n.Resolved

	var self Value
	if !m.Signature.IsStatic {
		if n.Receiver != nil {
			v, err := in.evalExpr(fr, n.Receiver)
			if err != nil {
				return nil, err
			}
			self = v
		} else {
			self = fr.self
		}
	}

	args := make([]Value, len(n.Args))
	for i, a := range n.Args {
		v, err := in.evalExpr(fr, a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	target := m
	if m.Flags.Has(MethodVirtual) {
		if obj, ok := self.(*Object); ok && obj.Class.VTable != nil && m.VTableIndex < len(obj.Class.VTable.Slots) {
			if slot := obj.Class.VTable.Slots[m.VTableIndex]; slot != nil {
				target = slot
			}
		}
	}
	return in.InvokeMethod(target, self, args)
}
