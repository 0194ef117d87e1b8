package skizo

// Expr is implemented by every AST expression variant of spec.md §4.D.
// Expressions are owned by the domain's bump arena conceptually (see
// DESIGN.md for how this runtime backs that with ordinary Go values) and
// form a tree via plain, non-owning child references. Every expression
// carries its inferred TypeRef (nil until the transformer runs) and a
// source location.
type Expr interface {
	exprNode()
	Type() *TypeRef
	SetType(*TypeRef)
	Loc() SourceLocation
}

// exprBase factors out the Type/Loc bookkeeping shared by every variant.
type exprBase struct {
	inferredType *TypeRef
	loc          SourceLocation
}

func (e *exprBase) exprNode()                {}
func (e *exprBase) Type() *TypeRef            { return e.inferredType }
func (e *exprBase) SetType(t *TypeRef)        { e.inferredType = t }
func (e *exprBase) Loc() SourceLocation       { return e.loc }
func (e *exprBase) setLoc(l SourceLocation)   { e.loc = l }

// BodyExpr is an ordered list of statements with the Method they belong
// to (needed so a nested closure body can walk ParentMethod links).
//
// When closure lowering (spec.md §4.E "Closure lowering") turns this body
// into a closure literal, ClosureClass names the synthesized `0Closure_*`
// class it now constructs instead of executing inline; EnvClass/Captures/
// SelfCaptured describe the capture environment to build at the
// construction site. ClosureClass is nil for an ordinary nested block.
type BodyExpr struct {
	exprBase
	Statements []Expr
	Method     *Method

	ClosureClass *Class
	EnvClass     *Class
	Captures     map[string]*TypeRef
	SelfCaptured bool
}

// Call represents both managed method calls and, before the transformer
// resolves them, plain identifier application syntax.
type Call struct {
	exprBase
	Receiver  Expr // nil for a static/free call
	Name      StringSlice
	Args      []Expr
	Resolved  *Method // filled in by the transformer
}

// Ident is a bare identifier: local, parameter, field, const, or type
// name, disambiguated by the transformer.
type Ident struct {
	exprBase
	Name StringSlice
}

type IntegerConstant struct {
	exprBase
	Value int64
}

type FloatConstant struct {
	exprBase
	Value float64
}

type BoolConstant struct {
	exprBase
	Value bool
}

type CharLiteral struct {
	exprBase
	Value rune
}

type StringLiteral struct {
	exprBase
	Value string
}

type NullConstant struct{ exprBase }

type This struct{ exprBase }

type Return struct {
	exprBase
	Value Expr // nil for a bare `return`
}

// Cast is inserted explicitly by source or implicitly by the transformer
// (spec.md §4.E step 4); CastInfo is filled in once the target type is
// resolved.
type Cast struct {
	exprBase
	Value Expr
	Info  CastInfo
}

type Sizeof struct {
	exprBase
	Of *TypeRef
}

type ArrayCreation struct {
	exprBase
	ElementType *TypeRef
	Length      Expr
}

type ArrayInit struct {
	exprBase
	ElementType *TypeRef
	Items       []Expr
}

// IdentityComparison is reference equality (`===`); for value types it
// requires the identity-of-value-type helper class described in spec.md
// §9 Open Questions, resolved at type-check time rather than guessed.
type IdentityComparison struct {
	exprBase
	Left, Right Expr
	Negate      bool
}

// Is is a runtime type test (`x is T`).
type Is struct {
	exprBase
	Value Expr
	Of    *TypeRef
}

type Assignment struct {
	exprBase
	Target Expr
	Value  Expr
}

type Abort struct {
	exprBase
	Message Expr
}

type Assert struct {
	exprBase
	Condition Expr
}

// Ref marks an expression as being passed/taken by reference; only legal
// inside Unsafe methods (spec.md §4.E).
type Ref struct {
	exprBase
	Value Expr
}

type Break struct{ exprBase }

// CCode is a verbatim-C escape hatch; the emitter copies Code unchanged
// into the generated translation unit.
type CCode struct {
	exprBase
	Code string
}

// InlinedCondition is introduced by the transformer when `InlineBranching`
// inlines the `bool then: ^{ ... }` pattern (spec.md §4.E step 5); `return`
// is forbidden inside Body by construction (the transformer rejects it
// before producing this node).
type InlinedCondition struct {
	exprBase
	Condition Expr
	Then      *BodyExpr
}

// AstVisitor lets passes (transformer, emitter) dispatch over the
// expression variants without type-switch duplication at every call site.
type AstVisitor interface {
	VisitBody(*BodyExpr) error
	VisitCall(*Call) error
	VisitIdent(*Ident) error
	VisitIntegerConstant(*IntegerConstant) error
	VisitFloatConstant(*FloatConstant) error
	VisitBoolConstant(*BoolConstant) error
	VisitCharLiteral(*CharLiteral) error
	VisitStringLiteral(*StringLiteral) error
	VisitNullConstant(*NullConstant) error
	VisitThis(*This) error
	VisitReturn(*Return) error
	VisitCast(*Cast) error
	VisitSizeof(*Sizeof) error
	VisitArrayCreation(*ArrayCreation) error
	VisitArrayInit(*ArrayInit) error
	VisitIdentityComparison(*IdentityComparison) error
	VisitIs(*Is) error
	VisitAssignment(*Assignment) error
	VisitAbort(*Abort) error
	VisitAssert(*Assert) error
	VisitRef(*Ref) error
	VisitBreak(*Break) error
	VisitCCode(*CCode) error
	VisitInlinedCondition(*InlinedCondition) error
}

// Accept dispatches e to the matching Visit* method of v.
func Accept(e Expr, v AstVisitor) error {
	switch n := e.(type) {
	case *BodyExpr:
		return v.VisitBody(n)
	case *Call:
		return v.VisitCall(n)
	case *Ident:
		return v.VisitIdent(n)
	case *IntegerConstant:
		return v.VisitIntegerConstant(n)
	case *FloatConstant:
		return v.VisitFloatConstant(n)
	case *BoolConstant:
		return v.VisitBoolConstant(n)
	case *CharLiteral:
		return v.VisitCharLiteral(n)
	case *StringLiteral:
		return v.VisitStringLiteral(n)
	case *NullConstant:
		return v.VisitNullConstant(n)
	case *This:
		return v.VisitThis(n)
	case *Return:
		return v.VisitReturn(n)
	case *Cast:
		return v.VisitCast(n)
	case *Sizeof:
		return v.VisitSizeof(n)
	case *ArrayCreation:
		return v.VisitArrayCreation(n)
	case *ArrayInit:
		return v.VisitArrayInit(n)
	case *IdentityComparison:
		return v.VisitIdentityComparison(n)
	case *Is:
		return v.VisitIs(n)
	case *Assignment:
		return v.VisitAssignment(n)
	case *Abort:
		return v.VisitAbort(n)
	case *Assert:
		return v.VisitAssert(n)
	case *Ref:
		return v.VisitRef(n)
	case *Break:
		return v.VisitBreak(n)
	case *CCode:
		return v.VisitCCode(n)
	case *InlinedCondition:
		return v.VisitInlinedCondition(n)
	default:
		panic("skizo: unhandled expression variant in Accept")
	}
}

// Children returns e's direct child expressions in evaluation order, used
// by the transformer's bottom-up walk and by closure-capture analysis.
func Children(e Expr) []Expr {
	switch n := e.(type) {
	case *BodyExpr:
		return n.Statements
	case *Call:
		cs := make([]Expr, 0, len(n.Args)+1)
		if n.Receiver != nil {
			cs = append(cs, n.Receiver)
		}
		return append(cs, n.Args...)
	case *Return:
		if n.Value == nil {
			return nil
		}
		return []Expr{n.Value}
	case *Cast:
		return []Expr{n.Value}
	case *ArrayCreation:
		return []Expr{n.Length}
	case *ArrayInit:
		return n.Items
	case *IdentityComparison:
		return []Expr{n.Left, n.Right}
	case *Is:
		return []Expr{n.Value}
	case *Assignment:
		return []Expr{n.Target, n.Value}
	case *Abort:
		if n.Message == nil {
			return nil
		}
		return []Expr{n.Message}
	case *Assert:
		return []Expr{n.Condition}
	case *Ref:
		return []Expr{n.Value}
	case *InlinedCondition:
		return []Expr{n.Condition, n.Then}
	default:
		return nil
	}
}
