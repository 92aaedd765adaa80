package model

// FileTypeText marks documents ingested from raw text rather than an
// uploaded file.
const FileTypeText = "text"

// Document is the relational record of one ingestion event. The chunk
// vectors derived from it live in the vector index, keyed back to this
// record through their document_id metadata.
type Document struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Filename   string `json:"filename"`
	FileType   string `json:"file_type"`
	ChunkCount int    `json:"chunk_count"`
	Ctime      int64  `json:"ctime"`
}
