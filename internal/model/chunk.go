package model

// TextBlock is one unit produced by a document loader: a PDF page or a whole
// plain-text document.
type TextBlock struct {
	Text string `json:"text"`
	Page int    `json:"page,omitempty"`
}

// ChunkMetadata locates a chunk inside its source. Start and End are rune
// offsets into the originating block.
type ChunkMetadata struct {
	Source string `json:"source,omitempty"`
	Page   int    `json:"page,omitempty"`
	Block  int    `json:"block"`
	Index  int    `json:"index"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
}

// DocumentChunk is the unit of indexing and retrieval.
type DocumentChunk struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}
