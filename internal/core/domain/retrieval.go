package domain

// RetrievedChunk is a single vector-search hit: the indexed chunk's payload
// together with its similarity score.
type RetrievedChunk struct {
	ChunkID     string     `json:"chunk_id"`
	Score       float64    `json:"score"`
	SourceType  SourceType `json:"source_type"`
	Citation    string     `json:"citation"`
	Title       string     `json:"title,omitempty"`
	Section     string     `json:"section,omitempty"`
	URL         string     `json:"url,omitempty"`
	VersionDate string     `json:"version_date,omitempty"`
	Text        string     `json:"text"`
	ChunkIndex  int        `json:"chunk_index"`
	TotalChunks int        `json:"total_chunks"`
}

// Authority converts the hit into an authority record for prompt assembly
// and response building.
func (r RetrievedChunk) Authority() Authority {
	return Authority{
		SourceType:  r.SourceType,
		Citation:    r.Citation,
		Title:       r.Title,
		Section:     r.Section,
		URL:         r.URL,
		Content:     r.Text,
		VersionDate: r.VersionDate,
		ChunkID:     r.ChunkID,
	}
}
