// Package ingest prepares authority documents for retrieval: it splits them
// into bounded, overlapping chunks, embeds the chunks, and loads them into
// the vector index and the authority store.
package ingest

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/taxentia/taxentia-api/internal/core/domain"
)

const (
	// DefaultMaxChunkSize bounds a chunk's character count.
	DefaultMaxChunkSize = 2000
	// DefaultOverlapSize is how many trailing characters of a flushed chunk
	// seed the next one, for context continuity across chunk boundaries.
	DefaultOverlapSize = 200
)

// ChunkMeta is the metadata carried by every chunk of a document.
// ChunkIndex and TotalChunks are filled in by the chunker.
type ChunkMeta struct {
	SourceType  domain.SourceType `json:"source_type"`
	Citation    string            `json:"citation"`
	ChunkIndex  int               `json:"chunk_index"`
	TotalChunks int               `json:"total_chunks"`
	Title       string            `json:"title,omitempty"`
	Section     string            `json:"section,omitempty"`
	URL         string            `json:"url,omitempty"`
	VersionDate string            `json:"version_date,omitempty"`
}

// Chunk is a bounded-size piece of an authority document, ready for embedding.
type Chunk struct {
	Text string    `json:"text"`
	Meta ChunkMeta `json:"metadata"`
	ID   string    `json:"id"`
}

// Chunker splits document text into overlapping segments.
//
// Strategy: short documents come back as a single chunk; long documents are
// split on blank-line paragraph boundaries and accumulated greedily up to
// MaxChunkSize; a paragraph that alone exceeds MaxChunkSize is split further
// at sentence boundaries. Each flushed chunk seeds the next with its trailing
// OverlapSize characters, trimmed so the seed never starts mid-word.
type Chunker struct {
	MaxChunkSize int
	OverlapSize  int
}

// NewChunker returns a Chunker, substituting defaults for non-positive sizes.
func NewChunker(maxChunkSize, overlapSize int) *Chunker {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	if overlapSize <= 0 {
		overlapSize = DefaultOverlapSize
	}
	return &Chunker{MaxChunkSize: maxChunkSize, OverlapSize: overlapSize}
}

// Split chunks text into ordered, overlapping segments tagged with meta.
// It is a pure function: no side effects, deterministic for a given input.
func (c *Chunker) Split(text string, meta ChunkMeta) []Chunk {
	text = cleanText(text)
	if text == "" {
		return nil
	}

	var pieces []string
	if len(text) <= c.MaxChunkSize {
		pieces = []string{text}
	} else {
		pieces = c.split(text)
	}

	chunks := make([]Chunk, 0, len(pieces))
	for i, piece := range pieces {
		m := meta
		m.ChunkIndex = i
		m.TotalChunks = len(pieces)
		chunks = append(chunks, Chunk{
			Text: piece,
			Meta: m,
			ID:   ChunkID(meta.SourceType, meta.Citation, i),
		})
	}
	return chunks
}

// split breaks cleaned text longer than MaxChunkSize into pieces.
func (c *Chunker) split(text string) []string {
	// Oversized paragraphs are pre-split into sentence groups so a single
	// accumulation pass handles both granularities.
	var units []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if len(p) > c.MaxChunkSize {
			units = append(units, c.sentenceGroups(p)...)
		} else {
			units = append(units, p)
		}
	}

	var pieces []string
	var buf string
	for _, unit := range units {
		switch {
		case buf == "":
			buf = unit
		case len(buf)+len(unit)+2 <= c.MaxChunkSize:
			buf += "\n\n" + unit
		default:
			pieces = append(pieces, buf)
			if seed := c.overlapTail(buf); seed != "" {
				buf = seed + " " + unit
			} else {
				buf = unit
			}
		}
	}
	if buf != "" {
		pieces = append(pieces, buf)
	}
	return pieces
}

// sentenceGroups splits an oversized paragraph at sentence boundaries and
// regroups the sentences greedily so groups stay within MaxChunkSize.
func (c *Chunker) sentenceGroups(paragraph string) []string {
	sentences := splitSentences(paragraph)
	if len(sentences) <= 1 {
		// No detectable boundaries: emit the paragraph as-is rather than
		// cutting it mid-word.
		return []string{paragraph}
	}

	var groups []string
	var buf string
	for _, s := range sentences {
		switch {
		case buf == "":
			buf = s
		case len(buf)+len(s)+1 <= c.MaxChunkSize:
			buf += " " + s
		default:
			groups = append(groups, buf)
			buf = s
		}
	}
	if buf != "" {
		groups = append(groups, buf)
	}
	return groups
}

// overlapTail returns the trailing OverlapSize characters of s, advanced to
// the next word boundary so the seed never begins mid-word. Returns "" when
// no boundary exists within the window.
func (c *Chunker) overlapTail(s string) string {
	if len(s) <= c.OverlapSize {
		return s
	}
	tail := s[len(s)-c.OverlapSize:]
	if i := strings.IndexAny(tail, " \n"); i >= 0 {
		return strings.TrimLeft(tail[i:], " \n")
	}
	return ""
}

// splitSentences splits text at terminal punctuation (./!/?) followed by
// whitespace and a capital letter, or by end of text.
func splitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}
		end := i + 1
		for end < len(runes) && (runes[end] == '.' || runes[end] == '!' || runes[end] == '?') {
			end++
		}
		next := end
		for next < len(runes) && unicode.IsSpace(runes[next]) {
			next++
		}
		// A boundary needs whitespace then a capital; otherwise this is an
		// abbreviation, a decimal, or similar.
		if next == end || next >= len(runes) || !unicode.IsUpper(runes[next]) {
			i = end - 1
			continue
		}
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			out = append(out, s)
		}
		start = next
		i = next - 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

var (
	multiNewline = regexp.MustCompile(`\n\n+`)
	multiSpace   = regexp.MustCompile(` +`)
	nonAlphaNum  = regexp.MustCompile(`[^a-zA-Z0-9]+`)
)

// cleanText normalizes whitespace: runs of blank lines collapse to one
// paragraph break, runs of spaces to a single space.
func cleanText(text string) string {
	text = multiNewline.ReplaceAllString(text, "\n\n")
	text = multiSpace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// ChunkID builds the chunk's string id, used to correlate vector-store points
// with authority records: "{sourceType}-{citation}-chunk-{index}" with every
// non-alphanumeric run in the citation replaced by a dash.
func ChunkID(sourceType domain.SourceType, citation string, index int) string {
	sanitized := strings.Trim(nonAlphaNum.ReplaceAllString(citation, "-"), "-")
	return fmt.Sprintf("%s-%s-chunk-%d", sourceType, sanitized, index)
}

// NumericChunkID hashes a chunk's string id into the numeric point id the
// vector store uses. The algorithm mirrors the JavaScript
// ((h<<5)-h)+charCode accumulation over signed 32-bit values, absolute value
// taken at the end, so ids stay compatible with previously indexed data.
func NumericChunkID(stringID string) uint32 {
	var h int32
	for _, r := range stringID {
		h = h<<5 - h + int32(r)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return uint32(v)
}
