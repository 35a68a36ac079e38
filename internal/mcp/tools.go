package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/V0v1kkk/DotNetMetadataMcpServer/internal/explorer"
	"github.com/V0v1kkk/DotNetMetadataMcpServer/internal/filter"
	"github.com/V0v1kkk/DotNetMetadataMcpServer/internal/meta"
	"github.com/V0v1kkk/DotNetMetadataMcpServer/internal/page"
)

// AddTypesTool registers the dotnet_types tool. Composable: combine with
// other registrations on the same server.
func AddTypesTool(s *server.MCPServer, x *explorer.Explorer, pageSize int, defaultConfiguration string) {
	tool := mcp.NewTool(
		"dotnet_types",
		mcp.WithDescription("List the public types of a compiled .NET project. Returns fully qualified type names, optionally filtered by wildcard patterns (* and ?), paged."),
		mcp.WithString("project_path",
			mcp.Required(),
			mcp.Description("Absolute path to the project file (.csproj)")),
		mcp.WithString("configuration",
			mcp.Description("Preferred build configuration (default: Debug; falls back to Release, then Debug)")),
		mcp.WithArray("filters",
			mcp.Description("Wildcard patterns matched against fully qualified type names, e.g. ['MyApp.Services.*', '*Controller']")),
		mcp.WithNumber("page",
			mcp.Description("1-based page index (default: 1)")),
	)
	s.AddTool(tool, createTypesHandler(x, pageSize, defaultConfiguration))
}

func createTypesHandler(x *explorer.Explorer, pageSize int, defaultConfiguration string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, ok := request.Params.Arguments.(map[string]interface{})
		if !ok {
			return mcp.NewToolResultError("invalid arguments format"), nil
		}
		req := TypesRequest{
			ProjectPath:   argString(args, "project_path"),
			Configuration: argString(args, "configuration"),
			Filters:       argStringSlice(args, "filters"),
			Page:          argInt(args, "page", 1),
		}
		if req.ProjectPath == "" {
			return mcp.NewToolResultError("project_path parameter is required"), nil
		}
		if req.Configuration == "" {
			req.Configuration = defaultConfiguration
		}

		nameFilter, err := filter.Compile(req.Filters)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		records, _, err := x.FromProject(req.ProjectPath, req.Configuration)
		if err != nil {
			return nil, fmt.Errorf("extraction failed: %w", err)
		}

		names := make([]string, 0, len(records))
		for _, r := range records {
			if nameFilter.Match(r.FullName) {
				names = append(names, r.FullName)
			}
		}
		window, totalPages := page.Window(names, req.Page, pageSize)

		return jsonResult(TypesResponse{
			Types:       window,
			CurrentPage: req.Page,
			TotalPages:  totalPages,
			Total:       len(names),
		})
	}
}

// AddTypeMembersTool registers the dotnet_type_members tool.
func AddTypeMembersTool(s *server.MCPServer, x *explorer.Explorer, pageSize int, defaultConfiguration string) {
	tool := mcp.NewTool(
		"dotnet_type_members",
		mcp.WithDescription("Describe the public surface of selected types in a compiled .NET project: constructors, methods, properties, fields and events with their signatures and classification flags."),
		mcp.WithString("project_path",
			mcp.Required(),
			mcp.Description("Absolute path to the project file (.csproj)")),
		mcp.WithString("configuration",
			mcp.Description("Preferred build configuration (default: Debug)")),
		mcp.WithArray("type_filters",
			mcp.Description("Wildcard patterns selecting types by fully qualified name; empty selects all")),
		mcp.WithNumber("page",
			mcp.Description("1-based page index (default: 1)")),
	)
	s.AddTool(tool, createTypeMembersHandler(x, pageSize, defaultConfiguration))
}

func createTypeMembersHandler(x *explorer.Explorer, pageSize int, defaultConfiguration string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, ok := request.Params.Arguments.(map[string]interface{})
		if !ok {
			return mcp.NewToolResultError("invalid arguments format"), nil
		}
		req := MembersRequest{
			ProjectPath:   argString(args, "project_path"),
			Configuration: argString(args, "configuration"),
			TypeFilters:   argStringSlice(args, "type_filters"),
			Page:          argInt(args, "page", 1),
		}
		if req.ProjectPath == "" {
			return mcp.NewToolResultError("project_path parameter is required"), nil
		}
		if req.Configuration == "" {
			req.Configuration = defaultConfiguration
		}

		nameFilter, err := filter.Compile(req.TypeFilters)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		records, _, err := x.FromProject(req.ProjectPath, req.Configuration)
		if err != nil {
			return nil, fmt.Errorf("extraction failed: %w", err)
		}

		selected := make([]meta.TypeRecord, 0, len(records))
		for _, r := range records {
			if nameFilter.Match(r.FullName) {
				selected = append(selected, r)
			}
		}
		window, totalPages := page.Window(selected, req.Page, pageSize)

		return jsonResult(MembersResponse{
			Types:       window,
			CurrentPage: req.Page,
			TotalPages:  totalPages,
			Total:       len(selected),
		})
	}
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling response: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
