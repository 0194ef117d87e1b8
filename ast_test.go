package skizo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChildrenOfAssignment(t *testing.T) {
	target := &Ident{Name: SliceOfWhole("x")}
	value := &IntegerConstant{Value: 1}
	assign := &Assignment{Target: target, Value: value}

	kids := Children(assign)
	assert.Equal(t, []Expr{target, value}, kids)
}

func TestChildrenOfCallIncludesReceiverFirst(t *testing.T) {
	receiver := &Ident{Name: SliceOfWhole("self")}
	arg := &IntegerConstant{Value: 2}
	call := &Call{Receiver: receiver, Args: []Expr{arg}}

	kids := Children(call)
	assert.Equal(t, []Expr{receiver, arg}, kids)
}

func TestChildrenOfBareReturnIsEmpty(t *testing.T) {
	assert.Nil(t, Children(&Return{}))
}

func TestChildrenOfLeafExpressionIsNil(t *testing.T) {
	assert.Nil(t, Children(&IntegerConstant{Value: 5}))
}

type countingVisitor struct {
	visitedIdent bool
}

func (v *countingVisitor) VisitBody(*BodyExpr) error              { return nil }
func (v *countingVisitor) VisitCall(*Call) error                  { return nil }
func (v *countingVisitor) VisitIdent(*Ident) error                { v.visitedIdent = true; return nil }
func (v *countingVisitor) VisitIntegerConstant(*IntegerConstant) error { return nil }
func (v *countingVisitor) VisitFloatConstant(*FloatConstant) error    { return nil }
func (v *countingVisitor) VisitBoolConstant(*BoolConstant) error      { return nil }
func (v *countingVisitor) VisitCharLiteral(*CharLiteral) error        { return nil }
func (v *countingVisitor) VisitStringLiteral(*StringLiteral) error    { return nil }
func (v *countingVisitor) VisitNullConstant(*NullConstant) error      { return nil }
func (v *countingVisitor) VisitThis(*This) error                      { return nil }
func (v *countingVisitor) VisitReturn(*Return) error                  { return nil }
func (v *countingVisitor) VisitCast(*Cast) error                      { return nil }
func (v *countingVisitor) VisitSizeof(*Sizeof) error                  { return nil }
func (v *countingVisitor) VisitArrayCreation(*ArrayCreation) error    { return nil }
func (v *countingVisitor) VisitArrayInit(*ArrayInit) error            { return nil }
func (v *countingVisitor) VisitIdentityComparison(*IdentityComparison) error { return nil }
func (v *countingVisitor) VisitIs(*Is) error                          { return nil }
func (v *countingVisitor) VisitAssignment(*Assignment) error          { return nil }
func (v *countingVisitor) VisitAbort(*Abort) error                    { return nil }
func (v *countingVisitor) VisitAssert(*Assert) error                  { return nil }
func (v *countingVisitor) VisitRef(*Ref) error                        { return nil }
func (v *countingVisitor) VisitBreak(*Break) error                    { return nil }
func (v *countingVisitor) VisitCCode(*CCode) error                    { return nil }
func (v *countingVisitor) VisitInlinedCondition(*InlinedCondition) error { return nil }

func TestAcceptDispatchesToMatchingVisitMethod(t *testing.T) {
	v := &countingVisitor{}
	err := Accept(&Ident{Name: SliceOfWhole("x")}, v)
	assert.NoError(t, err)
	assert.True(t, v.visitedIdent)
}
