package skizo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseSingleIntMain(result int64) func(ts *TypeSystem, tr *Transformer, sec *SecurityManager, host HostServices) error {
	return func(ts *TypeSystem, tr *Transformer, sec *SecurityManager, host HostServices) error {
		object, _ := ts.ClassByFlatName("Object")
		c := newClass(SliceOfWhole("Program"))
		c.BaseRef = object.ToTypeRef()
		if err := ts.RegisterClass(c); err != nil {
			return err
		}
		m := &Method{
			Name:      SliceOfWhole("main"),
			Signature: MethodSignature{IsStatic: true, ReturnType: NewPrimitiveTypeRef(PrimInt)},
			Body:      &BodyExpr{Statements: []Expr{&Return{Value: &IntegerConstant{Value: result}}}},
		}
		if err := c.AddMethod(m); err != nil {
			return err
		}
		tr.Enqueue(c)
		return nil
	}
}

func TestCreateDomainRunsEntryPoint(t *testing.T) {
	cfg := NewConfig()
	var progress []float64
	d, err := CreateDomain(cfg, parseSingleIntMain(42), func(p float64) { progress = append(progress, p) })
	require.NoError(t, err)
	defer d.Close()

	ok := d.InvokeEntryPoint("Program", "main")
	assert.True(t, ok)
	assert.Empty(t, d.GetLastError())
	assert.Equal(t, []float64{0.0, 0.2, 0.4, 0.6, 0.8, 1.0}, progress)
}

func TestInvokeEntryPointUnknownClassFails(t *testing.T) {
	cfg := NewConfig()
	d, err := CreateDomain(cfg, parseSingleIntMain(1), nil)
	require.NoError(t, err)
	defer d.Close()

	ok := d.InvokeEntryPoint("NoSuchClass", "main")
	assert.False(t, ok)
	assert.Contains(t, d.GetLastError(), "no such class")
}

func TestInvokeEntryPointUnknownMethodFails(t *testing.T) {
	cfg := NewConfig()
	d, err := CreateDomain(cfg, parseSingleIntMain(1), nil)
	require.NoError(t, err)
	defer d.Close()

	ok := d.InvokeEntryPoint("Program", "nope")
	assert.False(t, ok)
	assert.Contains(t, d.GetLastError(), "no static method")
}

func TestCreateDomainRejectsSecondDomainOnSameThread(t *testing.T) {
	cfg := NewConfig()
	d, err := CreateDomain(cfg, parseSingleIntMain(1), nil)
	require.NoError(t, err)
	defer d.Close()

	_, err = CreateDomain(cfg, parseSingleIntMain(1), nil)
	assert.ErrorIs(t, err, ErrDomainExists)
}

func TestDomainCloseIsIdempotent(t *testing.T) {
	cfg := NewConfig()
	d, err := CreateDomain(cfg, parseSingleIntMain(1), nil)
	require.NoError(t, err)
	d.Close()
	assert.NotPanics(t, func() { d.Close() })
}

func TestDomainCloseAllowsReopeningOnSameThread(t *testing.T) {
	cfg := NewConfig()
	d, err := CreateDomain(cfg, parseSingleIntMain(1), nil)
	require.NoError(t, err)
	d.Close()

	d2, err := CreateDomain(cfg, parseSingleIntMain(2), nil)
	require.NoError(t, err)
	defer d2.Close()
	assert.True(t, d2.InvokeEntryPoint("Program", "main"))
}

func TestDomainGetStringRepresentationFormatsPrimitives(t *testing.T) {
	cfg := NewConfig()
	d, err := CreateDomain(cfg, parseSingleIntMain(1), nil)
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, "null", d.GetStringRepresentation(nil))
	assert.Equal(t, "true", d.GetStringRepresentation(true))
	assert.Equal(t, "42", d.GetStringRepresentation(int64(42)))
	assert.Equal(t, "hi", d.GetStringRepresentation("hi"))
}

func TestSplitPermissionsHandlesSeparatorsAndEmpty(t *testing.T) {
	assert.Nil(t, splitPermissions(""))
	assert.Equal(t, []string{"fs:/tmp"}, splitPermissions("fs:/tmp"))
	assert.Equal(t, []string{"fs:/tmp", "fs:/var"}, splitPermissions("fs:/tmp;fs:/var"))
	assert.Equal(t, []string{"fs:/tmp", "fs:/var"}, splitPermissions("fs:/tmp,fs:/var"))
}
