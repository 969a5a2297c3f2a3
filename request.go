package clifs

// NodeRequest has common fields embedded in concrete request types
type NodeRequest struct {
	Path     string
	Type     NodeCreateRequestType
	UUID     string // Optional UUID to identify the request in logs
	Perms    uint32 // i.e. 0755
	OwnerUID uint32
	OwnerGID uint32
}

// Caller returns the identity new nodes created for this request are owned by.
func (r *NodeRequest) Caller() Caller {
	return Caller{UID: r.OwnerUID, GID: r.OwnerGID}
}

// NodeCreateRequestType valid types are FileNodeType "file", DirNodeType "dir"
type NodeCreateRequestType string

const (
	FileNodeType NodeCreateRequestType = "file"
	DirNodeType  NodeCreateRequestType = "dir"
)

// FileCreateRequest seeds a file. Sources are optional; a file without
// sources is created empty.
type FileCreateRequest struct {
	NodeRequest
	Sources []FileSource `json:"sources"`
}

type DirCreateRequest struct {
	NodeRequest
}
