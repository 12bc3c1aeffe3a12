package model

// KnowledgeEntry - RAG 검색 대상 레코드 (embeddings 테이블)
// (content_hash, source_type) 조합은 유일하며 중복 insert는 조용히 무시됨
type KnowledgeEntry struct {
	Content     string
	ContentHash string
	Embedding   []float32
	SourceType  string
	SourceID    string
	Metadata    map[string]any
}

// SearchResult - 유사도 검색 결과 1건
type SearchResult struct {
	ID         int64          `json:"id"`
	Content    string         `json:"content"`
	SourceType string         `json:"source_type"`
	SourceID   string         `json:"source_id,omitempty"`
	Metadata   map[string]any `json:"metadata"`
	Similarity float64        `json:"similarity"`
}

type EmbeddingRequest struct {
	Text       string         `json:"text"`
	SourceType string         `json:"source_type"`
	SourceID   string         `json:"source_id"`
	Metadata   map[string]any `json:"metadata"`
}

type EmbeddingResponse struct {
	Status      string `json:"status"`
	EmbeddingID *int64 `json:"embedding_id"`
	Dimensions  int    `json:"dimensions"`
	Stored      bool   `json:"stored"`
	Model       string `json:"model"`
}

type SearchResponse struct {
	Status  string         `json:"status"`
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
}

type IngestRequest struct {
	Text         string         `json:"text"`
	SourceType   string         `json:"source_type"`
	SourceID     string         `json:"source_id"`
	Metadata     map[string]any `json:"metadata"`
	ChunkSize    int            `json:"chunk_size"`
	ChunkOverlap int            `json:"chunk_overlap"`
}

type IngestResponse struct {
	Status        string `json:"status"`
	ChunksCreated int    `json:"chunks_created"`
	ChunksSkipped int    `json:"chunks_skipped"`
	SourceType    string `json:"source_type"`
	SourceID      string `json:"source_id,omitempty"`
}
