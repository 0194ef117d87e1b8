package skizo

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSecurityManagerTrustedWhenNoPermissions(t *testing.T) {
	sm := NewSecurityManager("/base", nil)
	assert.True(t, sm.IsTrusted())
	assert.True(t, sm.HasPermission("fs:/tmp"))
}

func TestNewSecurityManagerUntrustedWithPermissions(t *testing.T) {
	sm := NewSecurityManager("/base", []string{"fs:/tmp"})
	assert.False(t, sm.IsTrusted())
	assert.True(t, sm.HasPermission("fs:/tmp"))
	assert.False(t, sm.HasPermission("fs:/etc"))
}

func TestGetFullPathTrustedAllowsAnyPath(t *testing.T) {
	sm := NewSecurityManager("/base", nil)
	full, err := sm.GetFullPath("/etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, "/etc/passwd", full)
}

func TestGetFullPathUntrustedRejectsEscape(t *testing.T) {
	dir := t.TempDir()
	sm := NewSecurityManager("/base", []string{"fs:" + dir})

	inside := filepath.Join(dir, "mod.sk")
	full, err := sm.GetFullPath(inside)
	require.NoError(t, err)
	assert.Equal(t, inside, full)

	_, err = sm.GetFullPath("/etc/passwd")
	require.Error(t, err)
	var ab *AbortError
	require.ErrorAs(t, err, &ab)
	assert.Equal(t, DisallowedCall, ab.Code)
}

func TestCheckUnsafeRejectsSafeMethod(t *testing.T) {
	sm := NewSecurityManager("/base", nil)
	m := &Method{Name: SliceOfWhole("deleteFile")}
	err := sm.CheckUnsafe(m, false)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, DisallowedUnsafe, ce.Kind)
}

func TestCheckUnsafeAllowsUnsafeMethodInTrustedDomain(t *testing.T) {
	sm := NewSecurityManager("/base", nil)
	m := &Method{Name: SliceOfWhole("deleteFile"), Flags: MethodUnsafe, ECall: &ECallDescriptor{}}
	assert.NoError(t, sm.CheckUnsafe(m, false))
}

func TestCheckUnsafeRejectsECallInUntrustedDomainOutsideBaseModule(t *testing.T) {
	sm := NewSecurityManager("/base", []string{"fs:/tmp"})
	m := &Method{Name: SliceOfWhole("deleteFile"), Flags: MethodUnsafe, ECall: &ECallDescriptor{}}
	err := sm.CheckUnsafe(m, false)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, InvalidECall, ce.Kind)
}

func TestCheckUnsafeAllowsECallInBaseModuleEvenUntrusted(t *testing.T) {
	sm := NewSecurityManager("/base", []string{"fs:/tmp"})
	m := &Method{Name: SliceOfWhole("deleteFile"), Flags: MethodUnsafe, ECall: &ECallDescriptor{}}
	assert.NoError(t, sm.CheckUnsafe(m, true))
}
