package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V0v1kkk/DotNetMetadataMcpServer/internal/cil"
	"github.com/V0v1kkk/DotNetMetadataMcpServer/internal/cil/ciltest"
	"github.com/V0v1kkk/DotNetMetadataMcpServer/internal/explorer"
)

// Test Plan for the tool handlers:
// - dotnet_types lists public type names with filtering and paging
// - dotnet_type_members returns full records for the selected types
// - Missing project_path and malformed filters surface as tool errors
// - A failing extraction propagates as a handler error

const toolTestProject = `<Project Sdk="Microsoft.NET.Sdk">
  <PropertyGroup>
    <TargetFramework>net8.0</TargetFramework>
  </PropertyGroup>
</Project>`

// buildToolProject lays out a resolvable project whose artifact declares
// three public types.
func buildToolProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	project := filepath.Join(dir, "App.csproj")
	require.NoError(t, os.WriteFile(project, []byte(toolTestProject), 0o644))

	b := ciltest.NewBuilder("App")
	svc := b.AddType("App.Services", "UserService", cil.TypePublic, 0)
	svc.AddMethod(cil.MethodPublic, "Find",
		ciltest.SigMethod(true, ciltest.TString, ciltest.TInt32)).
		AddParam(1, "id", 0)
	b.AddType("App.Services", "OrderService", cil.TypePublic, 0)
	b.AddType("App.Models", "User", cil.TypePublic, 0)

	artifact := filepath.Join(dir, "bin", "Debug", "net8.0", "App.dll")
	require.NoError(t, os.MkdirAll(filepath.Dir(artifact), 0o755))
	require.NoError(t, os.WriteFile(artifact, b.PE(), 0o644))
	return project
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]interface{}) (*mcp.CallToolResult, error) {
	t.Helper()
	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: args},
	}
	return handler(context.Background(), request)
}

func decodeText(t *testing.T, result *mcp.CallToolResult, into interface{}) {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent")
	require.NoError(t, json.Unmarshal([]byte(text.Text), into))
}

func TestTypesHandler(t *testing.T) {
	t.Parallel()

	project := buildToolProject(t)
	handler := createTypesHandler(explorer.New(nil), 20, "Debug")

	result, err := callTool(t, handler, map[string]interface{}{
		"project_path": project,
	})
	require.NoError(t, err)

	var resp TypesResponse
	decodeText(t, result, &resp)
	assert.ElementsMatch(t, []string{
		"App.Services.UserService",
		"App.Services.OrderService",
		"App.Models.User",
	}, resp.Types)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 1, resp.TotalPages)
}

func TestTypesHandler_FilterAndPaging(t *testing.T) {
	t.Parallel()

	project := buildToolProject(t)
	handler := createTypesHandler(explorer.New(nil), 1, "Debug")

	result, err := callTool(t, handler, map[string]interface{}{
		"project_path": project,
		"filters":      []interface{}{"App.Services.*"},
		"page":         2.0,
	})
	require.NoError(t, err)

	var resp TypesResponse
	decodeText(t, result, &resp)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 2, resp.TotalPages)
	assert.Equal(t, 2, resp.CurrentPage)
	require.Len(t, resp.Types, 1)
	assert.Contains(t, resp.Types[0], "App.Services.")
}

func TestTypesHandler_InputErrors(t *testing.T) {
	t.Parallel()

	handler := createTypesHandler(explorer.New(nil), 20, "Debug")

	result, err := callTool(t, handler, map[string]interface{}{})
	require.NoError(t, err)
	assert.True(t, result.IsError)

	project := buildToolProject(t)
	result, err = callTool(t, handler, map[string]interface{}{
		"project_path": project,
		"filters":      []interface{}{"[unclosed"},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestTypesHandler_MissingProject(t *testing.T) {
	t.Parallel()

	handler := createTypesHandler(explorer.New(nil), 20, "Debug")
	_, err := callTool(t, handler, map[string]interface{}{
		"project_path": filepath.Join(t.TempDir(), "Gone.csproj"),
	})
	assert.Error(t, err)
}

func TestTypeMembersHandler(t *testing.T) {
	t.Parallel()

	project := buildToolProject(t)
	handler := createTypeMembersHandler(explorer.New(nil), 20, "Debug")

	result, err := callTool(t, handler, map[string]interface{}{
		"project_path": project,
		"type_filters": []interface{}{"*UserService"},
	})
	require.NoError(t, err)

	var resp MembersResponse
	decodeText(t, result, &resp)
	require.Len(t, resp.Types, 1)
	assert.Equal(t, 1, resp.Total)

	rec := resp.Types[0]
	assert.Equal(t, "App.Services.UserService", rec.FullName)
	require.Len(t, rec.Methods, 1)
	assert.Equal(t, "Find", rec.Methods[0].Name)
	assert.Equal(t, "String", rec.Methods[0].ReturnType)
	require.Len(t, rec.Methods[0].Parameters, 1)
	assert.Equal(t, "id", rec.Methods[0].Parameters[0].Name)
	assert.Equal(t, "Int32", rec.Methods[0].Parameters[0].Type)
}

func TestTypeMembersHandler_RequiresProjectPath(t *testing.T) {
	t.Parallel()

	handler := createTypeMembersHandler(explorer.New(nil), 20, "Debug")
	result, err := callTool(t, handler, map[string]interface{}{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
