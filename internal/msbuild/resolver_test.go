package msbuild

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for project resolution:
// - Missing project file fails with ErrProjectNotFound
// - The preferred configuration's artifact wins when present
// - Fallback order: preferred, Release, Debug
// - No artifact anywhere degrades to the assumed path without an error
// - AssemblyName, OutputPath and TargetFrameworks properties are honored
// - The dependency manifest is probed framework-scoped first

func writeProject(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("stub"), 0o644))
}

const simpleProject = `<Project Sdk="Microsoft.NET.Sdk">
  <PropertyGroup>
    <TargetFramework>net8.0</TargetFramework>
  </PropertyGroup>
</Project>`

func TestResolve_MissingProject(t *testing.T) {
	t.Parallel()

	r := NewResolver(nil)
	_, err := r.Resolve(filepath.Join(t.TempDir(), "Gone.csproj"), "")
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestResolve_PreferredConfiguration(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	project := writeProject(t, dir, "App.csproj", simpleProject)
	artifact := filepath.Join(dir, "bin", "Debug", "net8.0", "App.dll")
	touch(t, artifact)

	res, err := NewResolver(nil).Resolve(project, "")
	require.NoError(t, err)
	assert.Equal(t, artifact, res.AssemblyPath)
	assert.Equal(t, "Debug", res.Configuration)
	assert.Equal(t, "net8.0", res.TargetFramework)
	assert.Empty(t, res.AssetsFilePath)
}

func TestResolve_FallsBackAcrossConfigurations(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	project := writeProject(t, dir, "App.csproj", simpleProject)
	debugArtifact := filepath.Join(dir, "bin", "Debug", "net8.0", "App.dll")
	touch(t, debugArtifact)

	// Release requested, only Debug built.
	res, err := NewResolver(nil).Resolve(project, "Release")
	require.NoError(t, err)
	assert.Equal(t, debugArtifact, res.AssemblyPath)
	assert.Equal(t, "Debug", res.Configuration)

	// Release wins once it exists.
	releaseArtifact := filepath.Join(dir, "bin", "Release", "net8.0", "App.dll")
	touch(t, releaseArtifact)
	res, err = NewResolver(nil).Resolve(project, "Release")
	require.NoError(t, err)
	assert.Equal(t, releaseArtifact, res.AssemblyPath)
	assert.Equal(t, "Release", res.Configuration)
}

func TestResolve_NoArtifactDegrades(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	project := writeProject(t, dir, "App.csproj", simpleProject)

	res, err := NewResolver(nil).Resolve(project, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bin", "Debug", "net8.0", "App.dll"), res.AssemblyPath)
	assert.Equal(t, "Debug", res.Configuration)
}

func TestResolve_ExecutableArtifact(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	project := writeProject(t, dir, "Tool.csproj", simpleProject)
	artifact := filepath.Join(dir, "bin", "Debug", "net8.0", "Tool.exe")
	touch(t, artifact)

	res, err := NewResolver(nil).Resolve(project, "")
	require.NoError(t, err)
	assert.Equal(t, artifact, res.AssemblyPath)
}

func TestResolve_AssemblyNameAndOutputPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	project := writeProject(t, dir, "App.csproj", `<Project Sdk="Microsoft.NET.Sdk">
  <PropertyGroup>
    <TargetFramework>net8.0</TargetFramework>
    <AssemblyName>Renamed</AssemblyName>
    <OutputPath>out\custom</OutputPath>
  </PropertyGroup>
</Project>`)
	artifact := filepath.Join(dir, "out", "custom", "Renamed.dll")
	touch(t, artifact)

	res, err := NewResolver(nil).Resolve(project, "")
	require.NoError(t, err)
	assert.Equal(t, artifact, res.AssemblyPath)
}

func TestResolve_MultiTargeted(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	project := writeProject(t, dir, "Lib.csproj", `<Project Sdk="Microsoft.NET.Sdk">
  <PropertyGroup>
    <TargetFrameworks>net8.0;netstandard2.0</TargetFrameworks>
  </PropertyGroup>
</Project>`)
	artifact := filepath.Join(dir, "bin", "Debug", "net8.0", "Lib.dll")
	touch(t, artifact)

	res, err := NewResolver(nil).Resolve(project, "")
	require.NoError(t, err)
	assert.Equal(t, "net8.0", res.TargetFramework)
	assert.Equal(t, artifact, res.AssemblyPath)
}

func TestResolve_LastPropertyGroupWins(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	project := writeProject(t, dir, "App.csproj", `<Project Sdk="Microsoft.NET.Sdk">
  <PropertyGroup>
    <AssemblyName>First</AssemblyName>
  </PropertyGroup>
  <PropertyGroup>
    <TargetFramework>net8.0</TargetFramework>
    <AssemblyName>Second</AssemblyName>
  </PropertyGroup>
</Project>`)
	artifact := filepath.Join(dir, "bin", "Debug", "net8.0", "Second.dll")
	touch(t, artifact)

	res, err := NewResolver(nil).Resolve(project, "")
	require.NoError(t, err)
	assert.Equal(t, artifact, res.AssemblyPath)
}

func TestResolve_MalformedProject(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	project := writeProject(t, dir, "Bad.csproj", "<Project><PropertyGroup>")

	_, err := NewResolver(nil).Resolve(project, "")
	assert.Error(t, err)
}

func TestResolve_AssetsFileProbing(t *testing.T) {
	t.Parallel()

	t.Run("framework scoped", func(t *testing.T) {
		dir := t.TempDir()
		project := writeProject(t, dir, "App.csproj", simpleProject)
		scoped := filepath.Join(dir, "obj", "net8.0", "project.assets.json")
		touch(t, scoped)
		touch(t, filepath.Join(dir, "obj", "project.assets.json"))

		res, err := NewResolver(nil).Resolve(project, "")
		require.NoError(t, err)
		assert.Equal(t, scoped, res.AssetsFilePath)
	})

	t.Run("plain obj fallback", func(t *testing.T) {
		dir := t.TempDir()
		project := writeProject(t, dir, "App.csproj", simpleProject)
		plain := filepath.Join(dir, "obj", "project.assets.json")
		touch(t, plain)

		res, err := NewResolver(nil).Resolve(project, "")
		require.NoError(t, err)
		assert.Equal(t, plain, res.AssetsFilePath)
	})
}
