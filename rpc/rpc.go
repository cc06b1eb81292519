// Package rpc defines the wire contract shared by the metadata server,
// the file servers, and the client library: the HTTP paths and JSON
// bodies of the unary control surface (§6), and the message types
// exchanged over the bidirectional TokenStream.
package rpc

import "time"

// HTTP paths of the metadata server's unary control surface.
const (
	MetaPathPing         = "/ping"
	MetaPathInitialize   = "/initialize"
	MetaPathCreateFile   = "/file/create"
	MetaPathOpenFile     = "/file/open"
	MetaPathCloseFile    = "/file/close"
	MetaPathDeleteFile   = "/file/delete"
	MetaPathFileMetadata = "/file/metadata"
	MetaPathReadPlan     = "/file/readplan"
	MetaPathWritePlan    = "/file/writeplan"
)

// HTTP paths of a file service's unary control surface.
const (
	FilePathPing   = "/ping"
	FilePathInit   = "/initialize"
	FilePathWrite  = "/chunk/write"
	FilePathRead   = "/chunk/read"
	FilePathDelete = "/chunk/delete"
)

// ErrorBody is the JSON body returned on any non-2xx response. Kind
// mirrors errkind.Kind as a string so that it round-trips over JSON
// without the client needing to import the server's internal package.
type ErrorBody struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

// InitializeResponse is returned by Initialize.
type InitializeResponse struct {
	ClientID uint64 `json:"client_id"`
}

// CreateFileRequest is the body of CreateFile.
type CreateFileRequest struct {
	Name        string `json:"name"`
	StripeWidth int    `json:"stripe_width"`
}

// OpenFileRequest is the body of OpenFile.
type OpenFileRequest struct {
	Name     string `json:"name"`
	Mode     int    `json:"mode"`
	ClientID uint64 `json:"client_id"`
}

// OpenFileResponse is returned by OpenFile.
type OpenFileResponse struct {
	Descriptor uint64 `json:"descriptor"`
}

// CloseFileRequest is the body of CloseFile.
type CloseFileRequest struct {
	Descriptor uint64 `json:"descriptor"`
}

// DeleteFileRequest is the body of DeleteFile.
type DeleteFileRequest struct {
	Name string `json:"name"`
}

// FileMetadataRequest is the body of FileMetadata.
type FileMetadataRequest struct {
	Descriptor uint64 `json:"descriptor"`
}

// ChunkExtent mirrors striping.Extent over the wire, tagged with its
// chunk index since map keys don't survive JSON encoding in order.
type ChunkExtent struct {
	K         uint64 `json:"k"`
	StartByte uint64 `json:"start_byte"`
	EndByte   uint64 `json:"end_byte"`
}

// FileMetadataResponse is returned by FileMetadata.
type FileMetadataResponse struct {
	Name        string        `json:"name"`
	Size        uint64        `json:"size"`
	CTime       time.Time     `json:"ctime"`
	MTime       time.Time     `json:"mtime"`
	StripeWidth int           `json:"stripe_width"`
	Chunks      []ChunkExtent `json:"chunks"`
}

// PlanRequest is the body of both ReadPlan and WritePlan.
type PlanRequest struct {
	Descriptor uint64 `json:"descriptor"`
	Offset     uint64 `json:"offset"`
	NumBytes   uint64 `json:"num_bytes"`
}

// PlanEntry mirrors striping.Entry over the wire.
type PlanEntry struct {
	K           uint64 `json:"k"`
	ServerIndex int    `json:"server_index"`
	PlanStart   uint64 `json:"plan_start"`
	PlanEnd     uint64 `json:"plan_end"`
}

// PlanResponse is returned by ReadPlan and WritePlan.
type PlanResponse struct {
	Filename string      `json:"filename"`
	Plan     []PlanEntry `json:"plan"`
}

// FileWriteRequest is the body of a file service's WriteFile call.
type FileWriteRequest struct {
	ChunkFilename string `json:"chunk_filename"`
	K             uint64 `json:"k"`
	Start         uint64 `json:"start"`
	End           uint64 `json:"end"`
	NumBytes      uint64 `json:"num_bytes"`
	Offset        uint64 `json:"offset"`
	Buf           []byte `json:"buf"`
}

// FileReadRequest is the body of a file service's ReadFile call.
type FileReadRequest struct {
	ChunkFilename string `json:"chunk_filename"`
	K             uint64 `json:"k"`
	Start         uint64 `json:"start"`
	End           uint64 `json:"end"`
	NumBytes      uint64 `json:"num_bytes"`
	Offset        uint64 `json:"offset"`
}

// FileReadResponse is returned by ReadFile.
type FileReadResponse struct {
	Content   []byte `json:"content"`
	BytesRead int    `json:"bytes_read"`
}

// FileDeleteRequest is the body of a file service's DeleteFile call.
type FileDeleteRequest struct {
	FilenameStem     string `json:"filename_stem"`
	FileserverNumber int    `json:"fileserver_number"`
}
