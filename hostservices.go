package skizo

import (
	"os"
	"path/filepath"
	"strings"
)

// HostServices abstracts the filesystem collaborator a domain needs for
// module resolution and the Path icalls (spec.md §4.J "install
// secure-IO", §4.M "Reference HostServices"), so neither the Domain nor
// the icall implementations touch `os` directly.
type HostServices interface {
	ReadFile(path string) (string, error)
	FileExists(path string) bool
	ListFiles(dir string) ([]string, error)
	IsValidPath(path string) bool
	Separator() string
}

// OSHostServices is the reference HostServices implementation: ordinary
// local-disk I/O, gated by whatever SecurityManager the Domain wires in
// front of it (spec.md §4.I).
type OSHostServices struct{}

func NewOSHostServices() *OSHostServices { return &OSHostServices{} }

func (h *OSHostServices) ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (h *OSHostServices) FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (h *OSHostServices) ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (h *OSHostServices) IsValidPath(path string) bool {
	if path == "" {
		return false
	}
	if strings.ContainsRune(path, 0) {
		return false
	}
	_, err := filepath.Abs(path)
	return err == nil
}

func (h *OSHostServices) Separator() string { return string(filepath.Separator) }

// resolveModulePath implements spec.md §6 module resolution: the base
// module path is consulted first so a builtin module can never be
// shadowed by a same-named user source file under one of `paths`.
func resolveModulePath(host HostServices, sec *SecurityManager, searchPaths []string, name string) (string, error) {
	baseCandidate := filepath.Join(sec.BaseModuleFullPath(), name)
	if host.FileExists(baseCandidate) {
		return sec.GetFullPath(baseCandidate)
	}
	for _, dir := range searchPaths {
		candidate := filepath.Join(dir, name)
		if host.FileExists(candidate) {
			return sec.GetFullPath(candidate)
		}
	}
	return "", newAbort(DisallowedCall, "module `%s` not found in any search path", name)
}
