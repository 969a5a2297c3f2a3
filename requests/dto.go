package requests

import (
	"github.com/brettbedarf/clifs"
)

// NodeRequestDTO is the JSON representation of [clifs.NodeRequest]
type NodeRequestDTO struct {
	Path string                      `json:"path" validate:"required,startswith=/"`
	Type clifs.NodeCreateRequestType `json:"type" validate:"oneof=file dir"`
	// Optional UUID to identify the request in logs
	UUID *string `json:"uuid,omitempty"`
	// i.e. 0755
	Perms    *uint32 `json:"perms,omitempty" validate:"omitempty,lte=4095"`
	OwnerUID *uint32 `json:"owner_uid,omitempty"`
	OwnerGID *uint32 `json:"owner_gid,omitempty"`
}

// FileRequestDTO is the JSON representation of [clifs.FileCreateRequest]
type FileRequestDTO struct {
	NodeRequestDTO
	Sources []SourceConfigDTO `json:"sources" validate:"dive"`
}

type DirRequestDTO struct {
	NodeRequestDTO
}

// SourceConfigDTO is the JSON representation of static [clifs.FileSource] fields
//
// Additional fields depend on the "type" value:
//
// Ex. For type="http" (see [adapters.HTTPSource]):
//
//	URL      string            `json:"url"`
//	Method   *HTTPMethod       `json:"method,omitempty"`
//	Headers  map[string]string `json:"headers,omitempty"`
//	Attempts *uint             `json:"attempts,omitempty"`
//
// See adapters package for built-ins complete field definitions.
type SourceConfigDTO struct {
	Type     string `json:"type" validate:"required"`
	Priority *int   `json:"priority,omitempty"` // Lower number = higher priority, defaults to array index
}
