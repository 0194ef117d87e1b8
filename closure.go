package skizo

import "fmt"

// LowerClosure implements spec.md §4.E "Closure lowering": given an
// anonymous method body appearing where methodClass is expected, inside
// enclosing, it produces a fresh compiler-generated class
// `0Closure_<uid>` and (on demand) a sibling `0ClosureEnv_<uid>` class on
// the enclosing method, then wires up capture of every name in
// capturedNames plus `this` when selfCaptured is set.
func (tr *Transformer) LowerClosure(enclosing *Method, methodClass *Class, body *BodyExpr, capturedNames map[string]*TypeRef, selfCaptured bool) (*Class, error) {
	tr.closureUID++
	uid := tr.closureUID

	closureClass := newClass(SliceOfWhole(fmt.Sprintf("0Closure_%d", uid)))
	closureClass.Flags |= ClassCompilerGenerated
	closureClass.BaseRef = methodClass.ToTypeRef()

	objectClass, _ := tr.ts.ClassByFlatName("Object")
	intptrClass, _ := tr.ts.ClassByFlatName("intptr")

	envField := &Field{Name: SliceOfWhole("_soX_env"), Type: objectClass.ToTypeRef()}
	codeOffsetField := &Field{Name: SliceOfWhole("m_codeOffset"), Type: intptrClass.ToTypeRef()}
	if err := closureClass.AddField(envField); err != nil {
		return nil, err
	}
	if err := closureClass.AddField(codeOffsetField); err != nil {
		return nil, err
	}

	ctor := &Method{
		Name:    SliceOfWhole("create"),
		Kind:    MethodCtor,
		Special: MethodSpecialClosureCtor,
		Signature: MethodSignature{
			Params: []Param{{Name: SliceOfWhole("_env"), Type: intptrClass.ToTypeRef()}},
		},
	}
	if err := closureClass.AddMethod(ctor); err != nil {
		return nil, err
	}

	invoke := &Method{
		Name:         SliceOfWhole("invoke"),
		Kind:         MethodNormal,
		Flags:        MethodAnonymous | MethodVirtual,
		Body:         body,
		ParentMethod: enclosing,
	}
	if baseInvoke, ok := methodClass.InstanceMethodByName("invoke"); ok {
		invoke.Signature = baseInvoke.Signature
	}
	if err := closureClass.AddMethod(invoke); err != nil {
		return nil, err
	}
	body.Method = invoke

	if err := tr.ts.RegisterClass(closureClass); err != nil {
		return nil, err
	}

	if len(capturedNames) > 0 || selfCaptured {
		if err := tr.captureInto(enclosing, capturedNames, selfCaptured); err != nil {
			return nil, err
		}
	}

	return closureClass, nil
}

// envClassFor returns (synthesizing if necessary) the
// `0ClosureEnv_<uid>` class for m, the environment holding m's captured
// locals/parameters.
func (tr *Transformer) envClassFor(m *Method) *Class {
	if m.ClosureEnvClass != nil {
		return m.ClosureEnvClass
	}
	tr.closureUID++
	env := newClass(SliceOfWhole(fmt.Sprintf("0ClosureEnv_%d", tr.closureUID)))
	env.Special = SpecialClosureEnv
	env.Flags |= ClassCompilerGenerated
	objectClass, _ := tr.ts.ClassByFlatName("Object")
	env.BaseRef = objectClass.ToTypeRef()
	_ = tr.ts.RegisterClass(env)
	m.ClosureEnvClass = env
	return env
}

// captureInto ensures m's environment class has a slot for every name in
// names, walks the ParentMethod chain marking every intermediate method
// as environment-carrying and wiring `_soX_upper`, and (when selfCaptured)
// sets IsSelfCaptured on the outermost method and adds `_soX_self` to its
// environment class (spec.md §4.E "Closure lowering").
func (tr *Transformer) captureInto(m *Method, names map[string]*TypeRef, selfCaptured bool) error {
	env := tr.envClassFor(m)

	for name, typ := range names {
		if _, exists := env.LookupMember(name); exists {
			continue
		}
		f := &Field{Name: SliceOfWhole(name), Type: typ}
		if err := env.AddField(f); err != nil {
			return err
		}
	}

	objectClass, _ := tr.ts.ClassByFlatName("Object")

	// Chain through every enclosing method so a closure nested two or
	// more levels deep can still reach the outermost locals: each
	// intermediate method's own environment gets an `_soX_upper`
	// pointer to the next one out.
	cur := m
	for cur.ParentMethod != nil {
		outer := cur.ParentMethod
		curEnv := tr.envClassFor(cur)
		if _, exists := curEnv.LookupMember("_soX_upper"); !exists {
			outerEnv := tr.envClassFor(outer)
			upper := &Field{Name: SliceOfWhole("_soX_upper"), Type: outerEnv.ToTypeRef()}
			if err := curEnv.AddField(upper); err != nil {
				return err
			}
		}
		cur.EnvCarrying = true
		cur = outer
	}

	if selfCaptured {
		outermost := m
		for outermost.ParentMethod != nil {
			outermost = outermost.ParentMethod
		}
		outermost.Flags |= MethodSelfCaptured
		outermostEnv := tr.envClassFor(outermost)
		if _, exists := outermostEnv.LookupMember("_soX_self"); !exists {
			self := &Field{Name: SliceOfWhole("_soX_self"), Type: outermost.DeclaringClass.ToTypeRef()}
			_ = objectClass
			if err := outermostEnv.AddField(self); err != nil {
				return err
			}
		}
	}
	return nil
}

// FreeVariables walks body collecting, with its type, every Ident whose
// name is a key of localNames (the locals and parameters in scope where
// the closure literal appears) — the capture set LowerClosure needs. A
// name is collected wherever it occurs in body, including where a nested
// closure's own parameter of the same name shadows it.
func FreeVariables(body *BodyExpr, localNames map[string]*TypeRef) map[string]*TypeRef {
	free := make(map[string]*TypeRef)
	var walk func(Expr)
	walk = func(e Expr) {
		if e == nil {
			return
		}
		if ident, ok := e.(*Ident); ok {
			if t, isLocal := localNames[ident.Name.String()]; isLocal {
				free[ident.Name.String()] = t
			}
		}
		for _, child := range Children(e) {
			walk(child)
		}
	}
	walk(body)
	return free
}
