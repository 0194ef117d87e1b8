package skizo

import (
	"fmt"
	"sort"
	"strings"
)

// outputWriter is a small indentation-tracking string builder, the same
// shape the teacher's C/Go/JS/Python/TS generators all share.
type outputWriter struct {
	buffer      *strings.Builder
	indentLevel int
	space       string
}

func newOutputWriter(space string) *outputWriter {
	return &outputWriter{buffer: &strings.Builder{}, space: space}
}

func (o *outputWriter) indent()   { o.indentLevel++ }
func (o *outputWriter) unindent() { o.indentLevel-- }

func (o *outputWriter) writeIndent() {
	for i := 0; i < o.indentLevel; i++ {
		o.buffer.WriteString(o.space)
	}
}

func (o *outputWriter) writei(s string)  { o.writeIndent(); o.write(s) }
func (o *outputWriter) writeil(s string) { o.writeIndent(); o.write(s); o.write("\n") }
func (o *outputWriter) writel(s string)  { o.write(s); o.buffer.WriteString("\n") }
func (o *outputWriter) write(s string)   { o.buffer.WriteString(s) }

// EmitterOptions controls the optional instrumentation the emitter
// weaves into every method (spec.md §4.H).
type EmitterOptions struct {
	StackTraces  bool // insert _soX_pushframe/_soX_popframe
	SoftDebug    bool // insert _soX_reglocals/_soX_unreglocals + _soX_break, implies StackTraces
	NullCheck    bool
	InlineBranch bool
}

// Emitter lowers a domain's finalized classes to one C translation unit,
// following spec.md §4.H.
type Emitter struct {
	opts      EmitterOptions
	classes   []*Class
	arrayInit map[string]string // dedup key -> generated helper name
	nextArray int
	out       *outputWriter
}

func NewEmitter(opts EmitterOptions) *Emitter {
	return &Emitter{opts: opts, arrayInit: make(map[string]string), out: newOutputWriter("    ")}
}

// AddClass registers c to be emitted. No forward declarations are
// written; output is emitted in registration order.
func (e *Emitter) AddClass(c *Class) { e.classes = append(e.classes, c) }

func mangleClass(c *Class) string {
	return "_so_" + sanitizeCIdentSkizo(c.Name())
}

func mangleMethod(c *Class, m *Method) string {
	return fmt.Sprintf("_so_%s_%s", sanitizeCIdentSkizo(c.Name()), sanitizeCIdentSkizo(m.Name.String()))
}

func mangleDtor(c *Class) string {
	return fmt.Sprintf("_so_%s_dtor", sanitizeCIdentSkizo(c.Name()))
}

func mangleVTable(c *Class) string {
	return fmt.Sprintf("_so_%s_vtable", sanitizeCIdentSkizo(c.Name()))
}

func sanitizeCIdentSkizo(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" {
		return "_"
	}
	if out[0] >= '0' && out[0] <= '9' {
		return "_" + out
	}
	return out
}

// Emit produces the complete C translation unit for every registered
// class: struct defs, vtable globals, method bodies, destructors, the
// runtime-helper call sites, and the prolog/epilog functions.
func (e *Emitter) Emit() string {
	e.writePrelude()
	for _, c := range e.classes {
		e.writeStruct(c)
	}
	e.out.writel("")
	for _, c := range e.classes {
		e.writeVTableDecl(c)
	}
	e.out.writel("")
	for _, c := range e.classes {
		e.writeMethods(c)
		e.writeDtor(c)
	}
	e.writeProlog()
	e.writeEpilog()
	return e.out.buffer.String()
}

func (e *Emitter) writePrelude() {
	e.out.writel("/*")
	e.out.writel(" * Auto-generated by the Skizo domain emitter.")
	e.out.writel(" * Do not edit: this file is regenerated on every domain creation.")
	e.out.writel(" */")
	e.out.writel("#include \"skizo_runtime.h\"")
	e.out.writel("")
}

func (e *Emitter) writeStruct(c *Class) {
	if c.Primitive != PrimNone && c.Primitive != PrimObject {
		return // primitive value types have no emitted struct; they map onto C scalars directly
	}
	name := mangleClass(c)
	e.out.writel(fmt.Sprintf("typedef struct %s {", name))
	e.out.indent()
	if base := c.baseClass(); base != nil && base.IsHeapClass() {
		e.out.writeil(fmt.Sprintf("%s base;", mangleClass(base)))
	} else if c.IsHeapClass() {
		e.out.writeil("void* vtable;")
	}
	for _, f := range c.InstanceFields {
		e.out.writeil(fmt.Sprintf("/* %s */ void* %s;", f.Type, sanitizeCIdentSkizo(f.Name.String())))
	}
	e.out.unindent()
	e.out.writel(fmt.Sprintf("} %s;", name))
	e.out.writel("")
}

func (e *Emitter) writeVTableDecl(c *Class) {
	if c.VTable == nil {
		return
	}
	e.out.writel(fmt.Sprintf("static void* %s[%d];", mangleVTable(c), len(c.VTable.Slots)+1))
}

func (e *Emitter) writeMethods(c *Class) {
	for _, m := range c.InstanceMethods {
		e.writeMethod(c, m)
	}
	for _, m := range c.StaticMethods {
		e.writeMethod(c, m)
	}
	for _, m := range c.InstanceCtors {
		e.writeMethod(c, m)
	}
}

func (e *Emitter) writeMethod(c *Class, m *Method) {
	if m.Special == MethodSpecialNative {
		e.out.writel(fmt.Sprintf("/* icall */ extern void* %s();", mangleMethod(c, m)))
		return
	}
	if m.Special == MethodSpecialClosureCtor {
		e.out.writel(fmt.Sprintf("/* closure constructor, generated by the ThunkManager */ void* %s(void* _env) {", mangleMethod(c, m)))
		e.out.indent()
		e.out.writeil(fmt.Sprintf("%s* self = (%s*)_soX_alloc(&%s, sizeof(%s));", mangleClass(c), mangleClass(c), mangleVTable(c), mangleClass(c)))
		e.out.writeil("self->_soX_env = _env;")
		e.out.writeil("return self;")
		e.out.unindent()
		e.out.writel("}")
		return
	}

	e.out.writel(fmt.Sprintf("void* %s(%s) {", mangleMethod(c, m), e.paramList(c, m)))
	e.out.indent()
	if e.opts.StackTraces || e.opts.SoftDebug {
		e.out.writeil(fmt.Sprintf("_soX_pushframe(%q, %q);", c.Name(), m.Name.String()))
	}
	if e.opts.SoftDebug {
		e.out.writeil("_soX_reglocals();")
	}
	if m.Body != nil {
		for _, stmt := range m.Body.Statements {
			e.emitStatement(stmt)
		}
	}
	if e.opts.SoftDebug {
		e.out.writeil("_soX_unreglocals();")
	}
	if e.opts.StackTraces || e.opts.SoftDebug {
		e.out.writeil("_soX_popframe();")
	}
	e.out.writeil("return 0;")
	e.out.unindent()
	e.out.writel("}")
	e.out.writel("")
}

func (e *Emitter) paramList(c *Class, m *Method) string {
	parts := []string{}
	if !m.Signature.IsStatic {
		parts = append(parts, fmt.Sprintf("%s* self", mangleClass(c)))
	}
	for _, p := range m.Signature.Params {
		parts = append(parts, fmt.Sprintf("void* %s", sanitizeCIdentSkizo(p.Name.String())))
	}
	return strings.Join(parts, ", ")
}

func (e *Emitter) writeDtor(c *Class) {
	if c.Dtor == nil {
		return
	}
	e.out.writel(fmt.Sprintf("void %s(%s* self) {", mangleDtor(c), mangleClass(c)))
	e.out.indent()
	if c.Dtor.Body != nil {
		for _, stmt := range c.Dtor.Body.Statements {
			e.emitStatement(stmt)
		}
	}
	e.out.unindent()
	e.out.writel("}")
	e.out.writel("")
}

// emitStatement emits one top-level statement, applying the single
// supported branch inlining (spec.md §4.E step 5): when InlineBranch is
// on, a top-level InlinedCondition becomes a direct `if` instead of the
// generic ternary-expression form emitExpr falls back to.
func (e *Emitter) emitStatement(s Expr) {
	if ic, ok := s.(*InlinedCondition); ok && e.opts.InlineBranch {
		e.out.writeil(fmt.Sprintf("if (%s) {", e.emitExpr(ic.Condition)))
		e.out.indent()
		for _, stmt := range ic.Then.Statements {
			e.emitStatement(stmt)
		}
		e.out.unindent()
		e.out.writeil("}")
		return
	}
	e.out.writeil(e.emitExpr(s) + ";")
}

// emitExpr lowers e to a C expression fragment, inserting the runtime
// helper calls named in spec.md §4.H where a cast tag or a built-in
// operation requires one.
func (e *Emitter) emitExpr(ex Expr) string {
	switch n := ex.(type) {
	case *IntegerConstant:
		return fmt.Sprintf("%d", n.Value)
	case *FloatConstant:
		return fmt.Sprintf("%v", n.Value)
	case *BoolConstant:
		if n.Value {
			return "1"
		}
		return "0"
	case *CharLiteral:
		return fmt.Sprintf("%d /* '%c' */", n.Value, n.Value)
	case *StringLiteral:
		return fmt.Sprintf("_soX_strlit(%s)", escapeCString(n.Value))
	case *NullConstant:
		return "0"
	case *This:
		return "self"
	case *Ident:
		return sanitizeCIdentSkizo(n.Name.String())
	case *Return:
		if n.Value == nil {
			return "return 0"
		}
		return "return " + e.emitExpr(n.Value)
	case *Assignment:
		return fmt.Sprintf("%s = %s", e.emitExpr(n.Target), e.emitExpr(n.Value))
	case *Cast:
		return e.emitCast(n)
	case *Call:
		return e.emitCall(n)
	case *ArrayCreation:
		return fmt.Sprintf("_soX_newarray(%s, %s)", arrayElemVTableRef(n.ElementType), e.emitExpr(n.Length))
	case *ArrayInit:
		return e.emitArrayInit(n)
	case *IdentityComparison:
		helper := "_soX_refeq"
		if n.Left.Type() != nil && n.Left.Type().ResolvedClass() != nil && n.Left.Type().ResolvedClass().Flags.Has(ClassValueType) {
			helper = "_soX_biteq"
		}
		op := "=="
		if n.Negate {
			op = "!="
		}
		return fmt.Sprintf("(%s(%s, %s) %s 1)", helper, e.emitExpr(n.Left), e.emitExpr(n.Right), op)
	case *Is:
		return fmt.Sprintf("_soX_is(%s, %s)", e.emitExpr(n.Value), classVTableRef(n.Of))
	case *Abort:
		if n.Message != nil {
			return fmt.Sprintf("_soX_abort(%s)", e.emitExpr(n.Message))
		}
		return "_soX_abort(\"abort\")"
	case *Assert:
		return fmt.Sprintf("_soX_assert(%s)", e.emitExpr(n.Condition))
	case *Ref:
		return "&" + e.emitExpr(n.Value)
	case *Break:
		return "break"
	case *CCode:
		return n.Code
	case *Sizeof:
		if n.Of.ResolvedClass() != nil {
			return fmt.Sprintf("%d", n.Of.ResolvedClass().GCInfo.ContentSize)
		}
		return "0"
	case *BodyExpr:
		if n.ClosureClass != nil {
			return e.emitClosureCreation(n)
		}
		var parts []string
		for _, st := range n.Statements {
			parts = append(parts, e.emitExpr(st))
		}
		return strings.Join(parts, ", ")
	case *InlinedCondition:
		var parts []string
		for _, st := range n.Then.Statements {
			parts = append(parts, e.emitExpr(st))
		}
		return fmt.Sprintf("((%s) ? (%s) : 0)", e.emitExpr(n.Condition), strings.Join(parts, ", "))
	default:
		return "/* unsupported expression */ 0"
	}
}

// emitClosureCreation renders the construction site a lowered closure
// literal left behind (spec.md §4.E "Closure lowering"): a call to the
// synthesized class's ClosureCtor, passed the freshly built environment
// object (or a null environment when nothing was captured).
func (e *Emitter) emitClosureCreation(n *BodyExpr) string {
	ctor := "0"
	if len(n.ClosureClass.InstanceCtors) > 0 {
		ctor = mangleMethod(n.ClosureClass, n.ClosureClass.InstanceCtors[0])
	}
	env := "0"
	if n.EnvClass != nil {
		env = e.emitEnvConstruction(n)
	}
	return fmt.Sprintf("%s(%s)", ctor, env)
}

// emitEnvConstruction builds the capture-environment object a closure's
// constructor call takes: the runtime-provided `_soX_mkenv` helper
// allocates an instance of EnvClass and fills it from the captured
// locals/parameters (in a stable, sorted order) plus the captured `this`
// when SelfCaptured (spec.md §4.E "Closure lowering").
func (e *Emitter) emitEnvConstruction(n *BodyExpr) string {
	names := make([]string, 0, len(n.Captures))
	for name := range n.Captures {
		names = append(names, name)
	}
	sort.Strings(names)

	args := []string{"&" + mangleVTable(n.EnvClass), fmt.Sprintf("%d", len(names))}
	for _, name := range names {
		args = append(args, sanitizeCIdentSkizo(name))
	}
	if n.SelfCaptured {
		args = append(args, "self")
	}
	return fmt.Sprintf("_soX_mkenv(%s)", strings.Join(args, ", "))
}

func (e *Emitter) emitCast(n *Cast) string {
	switch n.Info.Tag {
	case Box:
		return fmt.Sprintf("_soX_box(%s)", e.emitExpr(n.Value))
	case Unbox:
		return fmt.Sprintf("_soX_unbox(%s)", e.emitExpr(n.Value))
	case Upcast:
		return e.emitExpr(n.Value)
	case Downcast:
		return fmt.Sprintf("_soX_downcast(%s, %s)", e.emitExpr(n.Value), classVTableRef(n.Type()))
	case ValueToFailable:
		return fmt.Sprintf("_soX_mkfailable_value(%s)", e.emitExpr(n.Value))
	case ErrorToFailable:
		return fmt.Sprintf("_soX_mkfailable_error(%s)", e.emitExpr(n.Value))
	default:
		return fmt.Sprintf("_soX_checktype(%s, %s)", e.emitExpr(n.Value), classVTableRef(n.Type()))
	}
}

func (e *Emitter) emitCall(n *Call) string {
	if n.Resolved == nil {
		return fmt.Sprintf("_soX_findmethod_call(%q)", n.Name.String())
	}
	c := n.Resolved.DeclaringClass
	fn := mangleMethod(c, n.Resolved)
	args := []string{}
	if !n.Resolved.Signature.IsStatic {
		recv := "self"
		if n.Receiver != nil {
			recv = e.emitExpr(n.Receiver)
		}
		args = append(args, recv)
	}
	for _, a := range n.Args {
		args = append(args, e.emitExpr(a))
	}
	if n.Resolved.Flags.Has(MethodVirtual) {
		return fmt.Sprintf("_soX_vcall(%s, %s, %d)", fn, strings.Join(args, ", "), n.Resolved.VTableIndex)
	}
	return fmt.Sprintf("%s(%s)", fn, strings.Join(args, ", "))
}

// emitArrayInit records one helper function per (length, element-type)
// pair that populates a freshly allocated array (spec.md §4.H "For every
// array initializer literal...").
func (e *Emitter) emitArrayInit(n *ArrayInit) string {
	elemName := "void"
	if n.ElementType != nil {
		elemName = sanitizeCIdentSkizo(n.ElementType.String())
	}
	key := fmt.Sprintf("%s_%d", elemName, len(n.Items))
	helper, ok := e.arrayInit[key]
	if !ok {
		e.nextArray++
		helper = fmt.Sprintf("_soX_arrayinit_%s_%d_%d", elemName, len(n.Items), e.nextArray)
		e.arrayInit[key] = helper
	}
	args := make([]string, len(n.Items))
	for i, item := range n.Items {
		args[i] = e.emitExpr(item)
	}
	return fmt.Sprintf("%s(%s)", helper, strings.Join(args, ", "))
}

func arrayElemVTableRef(t *TypeRef) string {
	if t == nil || t.ResolvedClass() == nil {
		return "0"
	}
	return "&" + mangleVTable(t.ResolvedClass())
}

func classVTableRef(t *TypeRef) string {
	if t == nil || t.ResolvedClass() == nil {
		return "0"
	}
	return "&" + mangleVTable(t.ResolvedClass())
}

func escapeCString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString("\\\"")
		case '\\':
			b.WriteString("\\\\")
		case '\n':
			b.WriteString("\\n")
		case '\t':
			b.WriteString("\\t")
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// writeProlog emits `_soX_prolog`: registers every class's vtable,
// patches interned-string-literal vtables, then runs every static
// constructor, in registration order (spec.md §4.H, §5 Ordering).
func (e *Emitter) writeProlog() {
	e.out.writel("void _soX_prolog(void) {")
	e.out.indent()
	for _, c := range e.classes {
		if c.VTable != nil {
			e.out.writeil(fmt.Sprintf("_soX_regvtable(%s, %d);", mangleVTable(c), len(c.VTable.Slots)))
		}
	}
	e.out.writeil("_soX_patchstrings();")
	for _, c := range e.classes {
		if c.StaticCtor != nil {
			e.out.writeil(fmt.Sprintf("%s();", mangleMethod(c, c.StaticCtor)))
		}
	}
	e.out.unindent()
	e.out.writel("}")
	e.out.writel("")
}

// writeEpilog emits `_soX_epilog`: runs static destructors in reverse
// registration order (spec.md §5 Ordering).
func (e *Emitter) writeEpilog() {
	e.out.writel("void _soX_epilog(void) {")
	e.out.indent()
	reversed := make([]*Class, len(e.classes))
	for i, c := range e.classes {
		reversed[len(e.classes)-1-i] = c
	}
	for _, c := range reversed {
		if c.StaticDtor != nil {
			e.out.writeil(fmt.Sprintf("%s();", mangleMethod(c, c.StaticDtor)))
		}
	}
	e.out.unindent()
	e.out.writel("}")
}

// SymbolTable lists every C symbol the Emitter produced, for the
// CodeBackend contract (spec.md §1 "CodeBackend ... accepts a C source
// string plus a symbol table").
func (e *Emitter) SymbolTable() []string {
	var syms []string
	for _, c := range e.classes {
		if c.VTable != nil {
			syms = append(syms, mangleVTable(c))
		}
		for _, m := range c.InstanceMethods {
			syms = append(syms, mangleMethod(c, m))
		}
		for _, m := range c.StaticMethods {
			syms = append(syms, mangleMethod(c, m))
		}
		for _, m := range c.InstanceCtors {
			syms = append(syms, mangleMethod(c, m))
		}
		if c.Dtor != nil {
			syms = append(syms, mangleDtor(c))
		}
	}
	syms = append(syms, "_soX_prolog", "_soX_epilog")
	sort.Strings(syms)
	return syms
}
