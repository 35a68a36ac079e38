package explorer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V0v1kkk/DotNetMetadataMcpServer/internal/cil"
	"github.com/V0v1kkk/DotNetMetadataMcpServer/internal/cil/ciltest"
	"github.com/V0v1kkk/DotNetMetadataMcpServer/internal/msbuild"
)

// Test Plan for the explorer:
// - FromProject: resolve a project directory with a built artifact and
//   walk its public surface end to end
// - FromAssembly: load failure yields an empty result and the error
// - A missing project file fails resolution outright

const testProject = `<Project Sdk="Microsoft.NET.Sdk">
  <PropertyGroup>
    <TargetFramework>net8.0</TargetFramework>
  </PropertyGroup>
</Project>`

// buildProject lays out a project directory with a compiled artifact the
// way the SDK would: bin/<configuration>/<tfm>/<name>.dll.
func buildProject(t *testing.T, dir string) string {
	t.Helper()

	project := filepath.Join(dir, "App.csproj")
	require.NoError(t, os.WriteFile(project, []byte(testProject), 0o644))

	b := ciltest.NewBuilder("App")
	tb := b.AddType("App", "Greeter", cil.TypePublic, 0)
	tb.AddMethod(cil.MethodPublic, "Greet",
		ciltest.SigMethod(true, ciltest.TString, ciltest.TString)).
		AddParam(1, "name", 0)

	artifact := filepath.Join(dir, "bin", "Debug", "net8.0", "App.dll")
	require.NoError(t, os.MkdirAll(filepath.Dir(artifact), 0o755))
	require.NoError(t, os.WriteFile(artifact, b.PE(), 0o644))
	return project
}

func TestFromProject(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	project := buildProject(t, dir)

	x := New(nil)
	records, resolution, err := x.FromProject(project, "")
	require.NoError(t, err)

	assert.Equal(t, "Debug", resolution.Configuration)
	assert.Equal(t, "net8.0", resolution.TargetFramework)
	assert.Equal(t, filepath.Join(dir, "bin", "Debug", "net8.0", "App.dll"), resolution.AssemblyPath)

	require.Len(t, records, 1)
	assert.Equal(t, "App.Greeter", records[0].FullName)
	require.Len(t, records[0].Methods, 1)
	assert.Equal(t, "Greet", records[0].Methods[0].Name)
}

func TestFromProject_MissingProject(t *testing.T) {
	t.Parallel()

	x := New(nil)
	_, _, err := x.FromProject(filepath.Join(t.TempDir(), "Gone.csproj"), "")
	assert.ErrorIs(t, err, msbuild.ErrProjectNotFound)
}

func TestFromProject_MissingArtifact(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	project := filepath.Join(dir, "App.csproj")
	require.NoError(t, os.WriteFile(project, []byte(testProject), 0o644))

	// Resolution succeeds with an assumed path; the load step fails and
	// degrades to an empty result plus the error.
	x := New(nil)
	records, _, err := x.FromProject(project, "")
	assert.Error(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestFromAssembly_InvalidImage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "Broken.dll")
	require.NoError(t, os.WriteFile(path, []byte("junk"), 0o644))

	records, err := New(nil).FromAssembly(path)
	assert.Error(t, err)
	assert.Empty(t, records)
}

func TestFromAssembly_FileReleasedAfterCall(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	project := buildProject(t, dir)
	artifact := filepath.Join(dir, "bin", "Debug", "net8.0", "App.dll")

	_, _, err := New(nil).FromProject(project, "")
	require.NoError(t, err)

	// No lock survives the call: the artifact can be replaced or removed.
	require.NoError(t, os.Remove(artifact))
}
