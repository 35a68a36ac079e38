package mcp

import "github.com/V0v1kkk/DotNetMetadataMcpServer/internal/meta"

// TypesRequest are the parsed arguments of the dotnet_types tool.
type TypesRequest struct {
	ProjectPath   string
	Configuration string
	Filters       []string
	Page          int
}

// TypesResponse is the dotnet_types tool payload.
type TypesResponse struct {
	Types       []string `json:"types"`
	CurrentPage int      `json:"currentPage"`
	TotalPages  int      `json:"totalPages"`
	Total       int      `json:"total"`
}

// MembersRequest are the parsed arguments of the dotnet_type_members tool.
type MembersRequest struct {
	ProjectPath   string
	Configuration string
	TypeFilters   []string
	Page          int
}

// MembersResponse is the dotnet_type_members tool payload.
type MembersResponse struct {
	Types       []meta.TypeRecord `json:"types"`
	CurrentPage int               `json:"currentPage"`
	TotalPages  int               `json:"totalPages"`
	Total       int               `json:"total"`
}
