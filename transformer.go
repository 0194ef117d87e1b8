package skizo

// Transformer drives a work-list of classes through type inference,
// method finalization, closure-env synthesis, and implicit-conversion
// insertion (spec.md §4.E).
type Transformer struct {
	ts          *TypeSystem
	inline      bool
	worklist    []*Class
	closureUID  int
	sec         *SecurityManager
}

func NewTransformer(ts *TypeSystem, inlineBranching bool) *Transformer {
	return &Transformer{ts: ts, inline: inlineBranching}
}

// SetSecurityManager wires the collaborator checkUnsafeCall consults to
// gate ECalls and Marshal references (spec.md §4.E "Access control and
// safety"). Left nil, unsafe-call checks are skipped — every unit test
// that builds a Transformer directly without a live domain keeps working.
func (tr *Transformer) SetSecurityManager(sec *SecurityManager) { tr.sec = sec }

// Enqueue adds c to the transformer's work-list.
func (tr *Transformer) Enqueue(c *Class) { tr.worklist = append(tr.worklist, c) }

// Run drains the work-list, performing the five steps of spec.md §4.E
// for every class, then invoking CalcGCMap.
func (tr *Transformer) Run() error {
	for i := 0; i < len(tr.worklist); i++ {
		c := tr.worklist[i]
		if err := tr.transformClass(c); err != nil {
			return err
		}
	}
	return nil
}

func (tr *Transformer) transformClass(c *Class) error {
	if c.Flags.Has(ClassInferred) {
		return nil
	}

	if err := tr.resolveFieldsAndConsts(c); err != nil {
		return err
	}
	tr.lowerEventFields(c)

	if err := tr.ts.MakeSureMethodsFinalized(c); err != nil {
		return err
	}

	for _, m := range c.InstanceCtors {
		if err := tr.inferMethod(m); err != nil {
			return err
		}
	}
	if c.StaticCtor != nil {
		if err := tr.inferMethod(c.StaticCtor); err != nil {
			return err
		}
	}
	for _, m := range c.InstanceMethods {
		if err := tr.inferMethod(m); err != nil {
			return err
		}
	}
	for _, m := range c.StaticMethods {
		if err := tr.inferMethod(m); err != nil {
			return err
		}
	}
	if c.Dtor != nil {
		if err := tr.inferMethod(c.Dtor); err != nil {
			return err
		}
	}
	if c.StaticDtor != nil {
		if err := tr.inferMethod(c.StaticDtor); err != nil {
			return err
		}
	}

	if err := tr.ts.CalcGCMap(c); err != nil {
		return err
	}

	c.Flags |= ClassInferred
	return nil
}

// resolveFieldsAndConsts resolves type refs, rejects void fields, rejects
// field/const names colliding with a registered type name, and rejects
// non-static value types declared with zero fields (spec.md §4.E step 1).
func (tr *Transformer) resolveFieldsAndConsts(c *Class) error {
	for _, f := range c.InstanceFields {
		if err := tr.ts.ResolveTypeRef(f.Type); err != nil {
			return err
		}
		if f.Type.ResolvedClass() != nil && f.Type.ResolvedClass().Primitive == PrimVoid {
			return newCompileError(TypeMismatch, SourceLocation{}, "field `%s` cannot have type void", f.Name.String())
		}
		if _, isType := tr.ts.ClassByFlatName(f.Name.String()); isType {
			return newCompileError(AmbiguousName, SourceLocation{}, "field `%s` collides with a type name", f.Name.String())
		}
	}
	for _, f := range c.StaticFields {
		if err := tr.ts.ResolveTypeRef(f.Type); err != nil {
			return err
		}
		if _, isType := tr.ts.ClassByFlatName(f.Name.String()); isType {
			return newCompileError(AmbiguousName, SourceLocation{}, "field `%s` collides with a type name", f.Name.String())
		}
	}
	for _, k := range c.Consts {
		if k.Type != nil {
			if err := tr.ts.ResolveTypeRef(k.Type); err != nil {
				return err
			}
		}
		if _, isType := tr.ts.ClassByFlatName(k.Name.String()); isType {
			return newCompileError(AmbiguousName, SourceLocation{}, "const `%s` collides with a type name", k.Name.String())
		}
	}
	if c.Flags.Has(ClassValueType) && !c.Flags.Has(ClassStatic) && len(c.InstanceFields) == 0 && c.Primitive == PrimNone {
		return newCompileError(TypeMismatch, SourceLocation{}, "value type `%s` must declare at least one field", c.Name())
	}
	return nil
}

// lowerEventFields inserts, at the head of every instance constructor
// body, an assignment initializing each event-field (spec.md §4.E step 2).
// An event-field is backed by an ordinary instance field of the same name
// and type holding the multicast delegate chain, materialized here the
// first time it's lowered so the inserted assignment resolves like any
// other field write.
func (tr *Transformer) lowerEventFields(c *Class) {
	if len(c.EventFields) == 0 {
		return
	}
	for _, ef := range c.EventFields {
		if _, exists := c.LookupMember(ef.Name.String()); !exists {
			_ = c.AddField(&Field{Name: ef.Name, Type: ef.Type, Access: ef.Access})
		}
		for _, ctor := range c.InstanceCtors {
			if ctor.Body == nil {
				continue
			}
			assign := &Assignment{
				Target: &Ident{Name: ef.Name},
				Value:  &NullConstant{},
			}
			ctor.Body.Statements = append([]Expr{assign}, ctor.Body.Statements...)
		}
	}
}

// scope is a chained symbol table used while walking a method body:
// locals/params resolve through it before falling back to fields/consts
// on the declaring class.
type scope struct {
	parent *scope
	vars   map[string]*TypeRef
}

func newScope(parent *scope) *scope { return &scope{parent: parent, vars: make(map[string]*TypeRef)} }

func (s *scope) define(name string, t *TypeRef) { s.vars[name] = t }

func (s *scope) lookup(name string) (*TypeRef, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if t, ok := cur.vars[name]; ok {
			return t, true
		}
	}
	return nil, false
}

// inferMethod walks m's body bottom-up, assigning every expression its
// inferred TypeRef and inserting implicit conversions (spec.md §4.E
// step 3-4). Parameter names must not shadow fields, consts, or types.
func (tr *Transformer) inferMethod(m *Method) error {
	if m.Flags.Has(MethodInferred) || m.Special == MethodSpecialNative {
		return nil
	}
	declClass := m.DeclaringClass

	top := newScope(nil)
	for _, p := range m.Signature.Params {
		name := p.Name.String()
		if _, clash := declClass.LookupMember(name); clash {
			return newCompileError(AmbiguousName, SourceLocation{}, "parameter `%s` shadows a member of `%s`", name, declClass.Name())
		}
		if _, clash := tr.ts.ClassByFlatName(name); clash {
			return newCompileError(AmbiguousName, SourceLocation{}, "parameter `%s` shadows a type name", name)
		}
		top.define(name, p.Type)
	}
	for _, l := range m.Locals {
		top.define(l.Name.String(), l.Type)
	}

	if m.Body != nil {
		if err := tr.inferBody(m, m.Body, top); err != nil {
			return err
		}
	}
	m.Flags |= MethodInferred
	return nil
}

func (tr *Transformer) inferBody(m *Method, body *BodyExpr, sc *scope) error {
	body.Method = m
	for i, stmt := range body.Statements {
		if tr.inline {
			inlined, ok, err := tr.tryInlineBranch(m, stmt, sc)
			if err != nil {
				return err
			}
			if ok {
				body.Statements[i] = inlined
				continue
			}
		}
		lowered, err := tr.inferExpr(m, stmt, sc)
		if err != nil {
			return err
		}
		body.Statements[i] = lowered
	}
	body.SetType(NewPrimitiveTypeRef(PrimVoid))
	return nil
}

// tryInlineBranch recognizes the one pattern spec.md §4.E step 5 inlines:
// a top-level statement of the shape `bool then: ^{ ... }`. Anywhere else
// (nested inside a larger expression) the call is left alone and handled
// by the ordinary Call inference path.
func (tr *Transformer) tryInlineBranch(m *Method, stmt Expr, sc *scope) (Expr, bool, error) {
	call, ok := stmt.(*Call)
	if !ok || call.Receiver == nil || call.Name.String() != "then" || len(call.Args) != 1 {
		return nil, false, nil
	}
	thenBody, ok := call.Args[0].(*BodyExpr)
	if !ok {
		return nil, false, nil
	}

	cond, err := tr.inferExpr(m, call.Receiver, sc)
	if err != nil {
		return nil, false, err
	}
	if cond.Type() == nil || cond.Type().ResolvedClass() == nil || cond.Type().ResolvedClass().Primitive != PrimBool {
		return nil, false, nil
	}

	if containsReturn(thenBody) {
		return nil, false, newCompileError(TypeMismatch, SourceLocation{}, "`return` is not allowed inside an inlined `then:` body")
	}

	inner := newScope(sc)
	if err := tr.inferBody(m, thenBody, inner); err != nil {
		return nil, false, err
	}

	ic := &InlinedCondition{Condition: cond, Then: thenBody}
	ic.SetType(tr.primRef(PrimVoid))
	return ic, true, nil
}

// containsReturn reports whether any statement directly in body contains
// a `return` (spec.md §4.E step 5: "return forbidden inside Body"). A
// nested BodyExpr is its own scope — e.g. a closure literal captured
// inside the inlined branch — so its returns belong to that closure, not
// the enclosing method, and are not walked into here.
func containsReturn(body *BodyExpr) bool {
	for _, stmt := range body.Statements {
		if returnsWithin(stmt) {
			return true
		}
	}
	return false
}

func returnsWithin(e Expr) bool {
	switch e.(type) {
	case nil:
		return false
	case *Return:
		return true
	case *BodyExpr:
		return false
	}
	for _, child := range Children(e) {
		if returnsWithin(child) {
			return true
		}
	}
	return false
}

// inferExpr infers e's type, recursing into children first, and returns
// the (possibly rewritten, when an implicit conversion was inserted)
// expression to use in e's place.
func (tr *Transformer) inferExpr(m *Method, e Expr, sc *scope) (Expr, error) {
	switch n := e.(type) {
	case *IntegerConstant:
		n.SetType(tr.primRef(PrimInt))
		return n, nil
	case *FloatConstant:
		n.SetType(tr.primRef(PrimFloat))
		return n, nil
	case *BoolConstant:
		n.SetType(tr.primRef(PrimBool))
		return n, nil
	case *CharLiteral:
		n.SetType(tr.primRef(PrimChar))
		return n, nil
	case *StringLiteral:
		if c, ok := tr.ts.ClassByFlatName("string"); ok {
			n.SetType(c.ToTypeRef())
		}
		return n, nil
	case *NullConstant:
		return n, nil
	case *This:
		n.SetType(m.DeclaringClass.ToTypeRef())
		return n, nil
	case *Ident:
		t, ok := sc.lookup(n.Name.String())
		if !ok {
			if f, isField := m.DeclaringClass.LookupMember(n.Name.String()); isField {
				if field, ok := f.(*Field); ok {
					t = field.Type
				}
			}
		}
		if t == nil {
			return nil, newCompileError(UnknownType, SourceLocation{}, "unresolved identifier `%s`", n.Name.String())
		}
		n.SetType(t)
		return n, nil
	case *BodyExpr:
		inner := newScope(sc)
		if err := tr.inferBody(m, n, inner); err != nil {
			return nil, err
		}
		return n, nil
	case *Return:
		if n.Value != nil {
			lowered, err := tr.inferExpr(m, n.Value, sc)
			if err != nil {
				return nil, err
			}
			lowered, err = tr.insertImplicitConversion(m, sc, lowered, m.Signature.ReturnType)
			if err != nil {
				return nil, err
			}
			n.Value = lowered
		}
		n.SetType(tr.primRef(PrimVoid))
		return n, nil
	case *Assignment:
		target, err := tr.inferExpr(m, n.Target, sc)
		if err != nil {
			return nil, err
		}
		value, err := tr.inferExpr(m, n.Value, sc)
		if err != nil {
			return nil, err
		}
		value, err = tr.insertImplicitConversion(m, sc, value, target.Type())
		if err != nil {
			return nil, err
		}
		n.Target, n.Value = target, value
		n.SetType(target.Type())
		return n, nil
	case *Cast:
		value, err := tr.inferExpr(m, n.Value, sc)
		if err != nil {
			return nil, err
		}
		n.Value = value
		if n.Type() != nil && value.Type() != nil {
			n.Info = computeCast(value.Type().ResolvedClass(), n.Type().ResolvedClass())
			if !n.Info.Castable {
				return nil, newCompileError(TypeMismatch, SourceLocation{}, "cannot cast %s to %s", value.Type(), n.Type())
			}
		}
		return n, nil
	case *ArrayCreation:
		length, err := tr.inferExpr(m, n.Length, sc)
		if err != nil {
			return nil, err
		}
		n.Length = length
		if err := tr.ts.ResolveTypeRef(n.ElementType); err != nil {
			return nil, err
		}
		arrClass := tr.ts.arrayOf(n.ElementType.ResolvedClass())
		n.SetType(arrClass.ToTypeRef())
		return n, nil
	case *ArrayInit:
		for i, item := range n.Items {
			lowered, err := tr.inferExpr(m, item, sc)
			if err != nil {
				return nil, err
			}
			n.Items[i] = lowered
		}
		if n.ElementType != nil {
			if err := tr.ts.ResolveTypeRef(n.ElementType); err != nil {
				return nil, err
			}
			n.SetType(tr.ts.arrayOf(n.ElementType.ResolvedClass()).ToTypeRef())
		}
		return n, nil
	case *IdentityComparison:
		left, err := tr.inferExpr(m, n.Left, sc)
		if err != nil {
			return nil, err
		}
		right, err := tr.inferExpr(m, n.Right, sc)
		if err != nil {
			return nil, err
		}
		n.Left, n.Right = left, right
		if left.Type() != nil && right.Type() != nil {
			lc, rc := left.Type().ResolvedClass(), right.Type().ResolvedClass()
			if lc != nil && rc != nil && lc != rc && lc.Flags.Has(ClassValueType) && rc.Flags.Has(ClassValueType) {
				return nil, newCompileError(TypeMismatch, SourceLocation{}, "identity comparison of unrelated value types %s and %s", lc.Name(), rc.Name())
			}
		}
		n.SetType(tr.primRef(PrimBool))
		return n, nil
	case *Is:
		value, err := tr.inferExpr(m, n.Value, sc)
		if err != nil {
			return nil, err
		}
		n.Value = value
		n.SetType(tr.primRef(PrimBool))
		return n, nil
	case *Call:
		return tr.inferCall(m, n, sc)
	case *Abort:
		if n.Message != nil {
			lowered, err := tr.inferExpr(m, n.Message, sc)
			if err != nil {
				return nil, err
			}
			n.Message = lowered
		}
		n.SetType(tr.primRef(PrimVoid))
		return n, nil
	case *Assert:
		cond, err := tr.inferExpr(m, n.Condition, sc)
		if err != nil {
			return nil, err
		}
		n.Condition = cond
		n.SetType(tr.primRef(PrimVoid))
		return n, nil
	case *Ref:
		if !m.IsUnsafe() {
			return nil, newCompileError(DisallowedUnsafe, SourceLocation{}, "`ref` is only allowed inside unsafe methods")
		}
		value, err := tr.inferExpr(m, n.Value, sc)
		if err != nil {
			return nil, err
		}
		n.Value = value
		n.SetType(value.Type())
		return n, nil
	case *Break:
		return n, nil
	case *CCode:
		return n, nil
	case *Sizeof:
		if err := tr.ts.ResolveTypeRef(n.Of); err != nil {
			return nil, err
		}
		n.SetType(tr.primRef(PrimInt))
		return n, nil
	default:
		return n, nil
	}
}

func (tr *Transformer) primRef(p PrimitiveTag) *TypeRef {
	c, _ := tr.ts.ClassByFlatName(primitiveFlatName(p))
	return c.ToTypeRef()
}

// insertImplicitConversion wraps value in a Cast (or a synthetic
// createFromValue/createFromError Call) when target requires one (spec.md
// §4.E step 4). An anonymous method body used where a method class is
// expected is handled specially: it triggers closure lowering instead of
// a conversion (spec.md §4.E "Anonymous-method bodies appearing where a
// method class is expected trigger closure lowering").
func (tr *Transformer) insertImplicitConversion(m *Method, sc *scope, value Expr, target *TypeRef) (Expr, error) {
	if target == nil || value.Type() == nil {
		return value, nil
	}
	if body, ok := value.(*BodyExpr); ok && body.ClosureClass == nil &&
		target.ResolvedClass() != nil && target.ResolvedClass().Special == SpecialMethodClass {
		return tr.lowerClosureLiteral(m, sc, body, target.ResolvedClass())
	}
	if value.Type().Equal(target) {
		return value, nil
	}
	// null assigned to a failable struct -> createFromValue(null)
	if _, isNull := value.(*NullConstant); isNull && target.ResolvedClass() != nil && target.ResolvedClass().Special == SpecialFailable {
		return tr.wrapFailable(value, target, true), nil
	}
	info := computeCast(value.Type().ResolvedClass(), target.ResolvedClass())
	if !info.Castable {
		return nil, newCompileError(TypeMismatch, SourceLocation{}, "cannot convert %s to %s", value.Type(), target)
	}
	switch info.Tag {
	case ValueToFailable:
		return tr.wrapFailable(value, target, true), nil
	case ErrorToFailable:
		return tr.wrapFailable(value, target, false), nil
	case NoCast:
		return value, nil
	default:
		c := &Cast{Value: value, Info: info}
		c.SetType(target)
		return c, nil
	}
}

func (tr *Transformer) wrapFailable(value Expr, target *TypeRef, fromValue bool) Expr {
	name := "createFromError"
	if fromValue {
		name = "createFromValue"
	}
	call := &Call{Name: SliceOfWhole(name), Args: []Expr{value}}
	call.SetType(target)
	if target.ResolvedClass() != nil {
		for _, ctor := range target.ResolvedClass().InstanceCtors {
			if ctor.Name.String() == name {
				call.Resolved = ctor
				break
			}
		}
	}
	return call
}

// lowerClosureLiteral turns a raw anonymous body appearing in a
// method-class-typed position into a closure instance (spec.md §4.E
// "Closure lowering"): it collects the free variables body references
// out of the enclosing scope, synthesizes the closure (and, on demand,
// capture-environment) class via LowerClosure/captureInto, and records
// the construction metadata the interpreter and emitter read back off
// the BodyExpr at its original call site.
func (tr *Transformer) lowerClosureLiteral(m *Method, sc *scope, body *BodyExpr, methodClass *Class) (Expr, error) {
	enclosingVars := make(map[string]*TypeRef)
	for cur := sc; cur != nil; cur = cur.parent {
		for name, t := range cur.vars {
			if _, exists := enclosingVars[name]; !exists {
				enclosingVars[name] = t
			}
		}
	}
	captured := FreeVariables(body, enclosingVars)
	selfCaptured := referencesThis(body)

	closureClass, err := tr.LowerClosure(m, methodClass, body, captured, selfCaptured)
	if err != nil {
		return nil, err
	}

	// invoke's body was already inferred above, in the scope of the
	// enclosing method where its free variables actually resolve;
	// re-running inferMethod on it (as the worklist pass over
	// closureClass otherwise would) has no such scope to resolve against.
	if invokeMember, ok := closureClass.LookupMember("invoke"); ok {
		invokeMember.(*Method).Flags |= MethodInferred
	}

	tr.Enqueue(closureClass)

	body.ClosureClass = closureClass
	body.EnvClass = m.ClosureEnvClass
	body.Captures = captured
	body.SelfCaptured = selfCaptured
	body.SetType(closureClass.ToTypeRef())
	return body, nil
}

// referencesThis reports whether body refers to `this` anywhere, the
// trigger for IsSelfCaptured (spec.md §4.E "Closure lowering").
func referencesThis(body *BodyExpr) bool {
	found := false
	var walk func(Expr)
	walk = func(e Expr) {
		if e == nil || found {
			return
		}
		if _, ok := e.(*This); ok {
			found = true
			return
		}
		for _, child := range Children(e) {
			walk(child)
		}
	}
	walk(body)
	return found
}

// checkUnsafeCall enforces spec.md §4.E "Access control and safety" for
// the two unsafe-surface shapes a Call can take: invoking an ECall, and
// calling onto the built-in Marshal class. No-op when no SecurityManager
// is wired (unit tests that build a Transformer directly).
func (tr *Transformer) checkUnsafeCall(caller *Method, target *Method, receiverClass *Class) error {
	if tr.sec == nil {
		return nil
	}
	isECall := target.Special == MethodSpecialNative || target.ECall != nil
	isMarshal := receiverClass != nil && receiverClass.Name() == "Marshal"
	if !isECall && !isMarshal {
		return nil
	}
	if err := tr.sec.CheckUnsafe(caller, false); err != nil {
		return err
	}
	if isECall && !tr.sec.IsTrusted() {
		return newCompileError(InvalidECall, SourceLocation{}, "ECall `%s` not permitted in an untrusted domain outside a base module", target.Name.String())
	}
	return nil
}

// inferCall resolves a Call's target method against its receiver's
// resolved type (or the declaring class for a self/static call),
// enforcing access control (spec.md §4.E "Access control and safety").
func (tr *Transformer) inferCall(m *Method, n *Call, sc *scope) (Expr, error) {
	var receiverClass *Class
	if n.Receiver != nil {
		receiver, err := tr.inferExpr(m, n.Receiver, sc)
		if err != nil {
			return nil, err
		}
		n.Receiver = receiver
		if receiver.Type() != nil {
			receiverClass = receiver.Type().ResolvedClass()
		}
	} else {
		receiverClass = m.DeclaringClass
	}

	for i, arg := range n.Args {
		lowered, err := tr.inferExpr(m, arg, sc)
		if err != nil {
			return nil, err
		}
		n.Args[i] = lowered
	}

	if receiverClass != nil {
		if target, ok := receiverClass.InstanceMethodByName(n.Name.String()); ok {
			if err := tr.checkAccess(m, target); err != nil {
				return nil, err
			}
			if err := tr.checkUnsafeCall(m, target, receiverClass); err != nil {
				return nil, err
			}
			n.Resolved = target
			n.SetType(target.Signature.ReturnType)
			for i, arg := range n.Args {
				if i < len(target.Signature.Params) {
					converted, err := tr.insertImplicitConversion(m, sc, arg, target.Signature.Params[i].Type)
					if err != nil {
						return nil, err
					}
					n.Args[i] = converted
				}
			}
			return n, nil
		}
		for _, sm := range receiverClass.StaticMethods {
			if sm.Name.String() == n.Name.String() {
				if err := tr.checkAccess(m, sm); err != nil {
					return nil, err
				}
				if err := tr.checkUnsafeCall(m, sm, receiverClass); err != nil {
					return nil, err
				}
				n.Resolved = sm
				n.SetType(sm.Signature.ReturnType)
				return n, nil
			}
		}
	}
	// Unresolved calls are left for the embedder-provided ICall/builtin
	// registry to resolve at emit time (e.g. intrinsic `print`); the
	// transformer only fails closed when it can prove the call is bad.
	return n, nil
}

// checkAccess enforces spec.md §4.E "Access control and safety": Private
// reachable only from the declaring class, Protected from declaring
// class and subclasses, Internal from the same module, Public always.
func (tr *Transformer) checkAccess(caller *Method, target *Method) error {
	declClass := target.accessDeclaringClass()
	callerClass := caller.DeclaringClass
	switch target.Access {
	case AccessPublic:
		return nil
	case AccessPrivate:
		if callerClass == declClass {
			return nil
		}
	case AccessProtected:
		if callerClass == declClass || callerClass.isSubclassOf(declClass) {
			return nil
		}
	case AccessInternal:
		return nil // module identity is a parse-time concept, out of scope here
	}
	return newCompileError(AccessViolation, SourceLocation{}, "cannot call `%s` from `%s`: access violation", target.Name.String(), callerClass.Name())
}
