package domain

// File type constants for corpus ingestion
const (
	FileTypeMD  = "md"
	FileTypeTXT = "txt"
)

// Chunk is a retrievable passage of the dev backend corpus
type Chunk struct {
	ID    int    `json:"chunk_id"`
	Table string `json:"table"`
	Page  int    `json:"page"`
	Text  string `json:"text"`
}
