package skizo

import (
	"path/filepath"
	"strings"
)

// SecurityManager implements spec.md §4.I: a domain is either trusted
// (full access) or untrusted (holds a permission set). BaseModulePath is
// consulted first during module resolution so a user file can never
// shadow a builtin module.
type SecurityManager struct {
	trusted         bool
	permissions     map[string]struct{}
	baseModulePath  string
	permittedRoots  []string
}

// NewSecurityManager creates a trusted-by-default manager; passing a
// non-empty permissions set (spec.md §6 `permissions`) marks the domain
// untrusted.
func NewSecurityManager(baseModulePath string, permissions []string) *SecurityManager {
	sm := &SecurityManager{baseModulePath: baseModulePath, permissions: make(map[string]struct{})}
	for _, p := range permissions {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		sm.permissions[p] = struct{}{}
		if strings.HasPrefix(p, "fs:") {
			sm.permittedRoots = append(sm.permittedRoots, strings.TrimPrefix(p, "fs:"))
		}
	}
	sm.trusted = len(sm.permissions) == 0
	return sm
}

// IsTrusted reports whether the domain has full access.
func (sm *SecurityManager) IsTrusted() bool { return sm.trusted }

// HasPermission reports whether an untrusted domain was granted perm; a
// trusted domain has every permission implicitly.
func (sm *SecurityManager) HasPermission(perm string) bool {
	if sm.trusted {
		return true
	}
	_, ok := sm.permissions[perm]
	return ok
}

// BaseModuleFullPath is consulted first by module resolution (spec.md
// §6): builtin modules under this path can never be shadowed by a user
// source file of the same name.
func (sm *SecurityManager) BaseModuleFullPath() string { return sm.baseModulePath }

// GetFullPath backs the managed `Path::getFullPath` icall. In untrusted
// mode it rejects any path that escapes the permitted roots (spec.md
// §4.I).
func (sm *SecurityManager) GetFullPath(path string) (string, error) {
	full, err := filepath.Abs(path)
	if err != nil {
		return "", newAbort(DisallowedCall, "cannot resolve path %q: %v", path, err)
	}
	if sm.trusted {
		return full, nil
	}
	for _, root := range sm.permittedRoots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		if full == absRoot || strings.HasPrefix(full, absRoot+string(filepath.Separator)) {
			return full, nil
		}
	}
	return "", newAbort(DisallowedCall, "path %q escapes the permitted roots", path)
}

// CheckUnsafe centralizes spec.md §4.E "Unsafe escape": ref expressions,
// ECall invocations, and Marshal references are permitted only inside
// methods flagged Unsafe, and ECalls outside base modules are further
// restricted to trusted domains.
func (sm *SecurityManager) CheckUnsafe(m *Method, isBaseModule bool) error {
	if !m.IsUnsafe() {
		return newCompileError(DisallowedUnsafe, SourceLocation{}, "unsafe operation outside an unsafe method: `%s`", m.Name.String())
	}
	if m.Special == MethodSpecialNative || m.ECall != nil {
		if !isBaseModule && !sm.trusted {
			return newCompileError(InvalidECall, SourceLocation{}, "ECall `%s` not permitted in an untrusted domain outside a base module", m.Name.String())
		}
	}
	return nil
}
