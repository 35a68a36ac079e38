package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V0v1kkk/DotNetMetadataMcpServer/internal/cil"
	"github.com/V0v1kkk/DotNetMetadataMcpServer/internal/cil/ciltest"
)

// Test Plan for the sandbox:
// - LoadPrimary reads the whole image into memory; the file can be
//   overwritten immediately afterwards
// - Resolve probes the base directory for .dll/.exe and caches results
// - MarkProcessed dedups case-insensitively within one sandbox
// - Close is idempotent and detaches loading and resolution

func writeImage(t *testing.T, dir, name, assembly string) string {
	t.Helper()
	b := ciltest.NewBuilder(assembly)
	b.AddType("MyLib", "Anchor", cil.TypePublic, 0)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, b.PE(), 0o644))
	return path
}

func TestSandbox_LoadPrimary(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeImage(t, dir, "App.dll", "App")

	sb := New(dir, nil)
	defer sb.Close()

	img, err := sb.LoadPrimary(path)
	require.NoError(t, err)
	assert.Equal(t, "App", img.Name)
	assert.Same(t, img, sb.Primary())

	// The sandbox holds no descriptor on the file: rewriting it under a
	// loaded image must succeed.
	require.NoError(t, os.WriteFile(path, []byte("rebuilt"), 0o644))
	assert.Equal(t, "App", sb.Primary().Name)
}

func TestSandbox_LoadPrimaryInvalidImage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "Broken.dll")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))

	sb := New(dir, nil)
	defer sb.Close()

	_, err := sb.LoadPrimary(path)
	assert.Error(t, err)
	assert.Nil(t, sb.Primary())
}

func TestSandbox_LoadPrimaryMissingFile(t *testing.T) {
	t.Parallel()

	sb := New(t.TempDir(), nil)
	defer sb.Close()

	_, err := sb.LoadPrimary(filepath.Join(t.TempDir(), "Gone.dll"))
	assert.Error(t, err)
}

func TestSandbox_Resolve(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeImage(t, dir, "OtherLib.dll", "OtherLib")

	sb := New(dir, nil)
	defer sb.Close()

	img, ok := sb.Resolve("OtherLib")
	require.True(t, ok)
	assert.Equal(t, "OtherLib", img.Name)

	// Second resolution returns the cached image.
	again, ok := sb.Resolve("OtherLib")
	require.True(t, ok)
	assert.Same(t, img, again)

	_, ok = sb.Resolve("Missing")
	assert.False(t, ok)
	_, ok = sb.Resolve("")
	assert.False(t, ok)
}

func TestSandbox_ResolveExecutable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeImage(t, dir, "Tool.exe", "Tool")

	sb := New(dir, nil)
	defer sb.Close()

	img, ok := sb.Resolve("Tool")
	require.True(t, ok)
	assert.Equal(t, "Tool", img.Name)
}

func TestSandbox_MarkProcessed(t *testing.T) {
	t.Parallel()

	sb := New(t.TempDir(), nil)
	defer sb.Close()

	assert.False(t, sb.MarkProcessed("/build/out/App.dll"))
	assert.True(t, sb.MarkProcessed("/build/out/App.dll"))
	assert.True(t, sb.MarkProcessed("/build/out/APP.DLL"))
	assert.True(t, sb.MarkProcessed("/build/out/../out/App.dll"))
	assert.False(t, sb.MarkProcessed("/build/out/Other.dll"))
}

func TestSandbox_Close(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeImage(t, dir, "App.dll", "App")

	sb := New(dir, nil)
	_, err := sb.LoadPrimary(path)
	require.NoError(t, err)

	sb.Close()
	sb.Close() // idempotent

	assert.Nil(t, sb.Primary())
	_, ok := sb.Resolve("App")
	assert.False(t, ok)
	_, err = sb.LoadPrimary(path)
	assert.Error(t, err)
}

func TestSandbox_DistinctIDs(t *testing.T) {
	t.Parallel()

	a := New(t.TempDir(), nil)
	defer a.Close()
	b := New(t.TempDir(), nil)
	defer b.Close()

	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}
