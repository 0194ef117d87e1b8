package skizo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSHostServicesReadFileAndExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mod.sk")
	require.NoError(t, os.WriteFile(path, []byte("class Foo {}"), 0o644))

	h := NewOSHostServices()
	assert.True(t, h.FileExists(path))
	assert.False(t, h.FileExists(filepath.Join(dir, "missing.sk")))

	data, err := h.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "class Foo {}", data)
}

func TestOSHostServicesListFilesSkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.sk"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.sk"), []byte(""), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	h := NewOSHostServices()
	names, err := h.ListFiles(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.sk", "b.sk"}, names)
}

func TestOSHostServicesIsValidPath(t *testing.T) {
	h := NewOSHostServices()
	assert.True(t, h.IsValidPath("relative/path.sk"))
	assert.False(t, h.IsValidPath(""))
	assert.False(t, h.IsValidPath("has\x00null"))
}

// fakeHostServices is an in-memory HostServices, letting resolveModulePath
// be tested without touching the real filesystem.
type fakeHostServices struct {
	files map[string]string
}

func (f *fakeHostServices) ReadFile(path string) (string, error) {
	src, ok := f.files[path]
	if !ok {
		return "", os.ErrNotExist
	}
	return src, nil
}
func (f *fakeHostServices) FileExists(path string) bool { _, ok := f.files[path]; return ok }
func (f *fakeHostServices) ListFiles(dir string) ([]string, error) { return nil, nil }
func (f *fakeHostServices) IsValidPath(path string) bool { return path != "" }
func (f *fakeHostServices) Separator() string            { return "/" }

func TestResolveModulePathPrefersBaseModuleOverSearchPaths(t *testing.T) {
	host := &fakeHostServices{files: map[string]string{
		filepath.Join("/base", "io.sk"):     "base version",
		filepath.Join("/user", "io.sk"):     "shadow attempt",
	}}
	sec := NewSecurityManager("/base", nil)

	resolved, err := resolveModulePath(host, sec, []string{"/user"}, "io.sk")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/base", "io.sk"), resolved)
}

func TestResolveModulePathFallsBackToSearchPaths(t *testing.T) {
	host := &fakeHostServices{files: map[string]string{
		filepath.Join("/user", "util.sk"): "user module",
	}}
	sec := NewSecurityManager("/base", nil)

	resolved, err := resolveModulePath(host, sec, []string{"/user"}, "util.sk")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/user", "util.sk"), resolved)
}

func TestResolveModulePathNotFoundAborts(t *testing.T) {
	host := &fakeHostServices{files: map[string]string{}}
	sec := NewSecurityManager("/base", nil)

	_, err := resolveModulePath(host, sec, []string{"/user"}, "nope.sk")
	require.Error(t, err)
	var ab *AbortError
	require.ErrorAs(t, err, &ab)
	assert.Equal(t, DisallowedCall, ab.Code)
}
