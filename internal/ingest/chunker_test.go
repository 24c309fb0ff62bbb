package ingest

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/taxentia/taxentia-api/internal/core/domain"
)

func testMeta() ChunkMeta {
	return ChunkMeta{
		SourceType: domain.SourceIRC,
		Citation:   "IRC § 162(a)",
		Title:      "Trade or business expenses",
	}
}

func TestSplitShortDocumentSingleChunk(t *testing.T) {
	c := NewChunker(0, 0)
	text := "Section 162 allows a deduction for ordinary and necessary business expenses."

	chunks := c.Split(text, testMeta())

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != text {
		t.Errorf("expected chunk text to equal input, got %q", chunks[0].Text)
	}
	if chunks[0].Meta.ChunkIndex != 0 || chunks[0].Meta.TotalChunks != 1 {
		t.Errorf("expected index 0 of 1, got %d of %d", chunks[0].Meta.ChunkIndex, chunks[0].Meta.TotalChunks)
	}
	if chunks[0].ID != "irc-IRC-162-a-chunk-0" {
		t.Errorf("unexpected chunk id %q", chunks[0].ID)
	}
}

func TestSplitEmptyInput(t *testing.T) {
	c := NewChunker(0, 0)

	if chunks := c.Split("", testMeta()); len(chunks) != 0 {
		t.Errorf("expected no chunks for empty input, got %d", len(chunks))
	}
	if chunks := c.Split("   \n\n   ", testMeta()); len(chunks) != 0 {
		t.Errorf("expected no chunks for whitespace input, got %d", len(chunks))
	}
}

func TestSplitNormalizesWhitespace(t *testing.T) {
	c := NewChunker(0, 0)
	text := "  First   part.\n\n\n\nSecond    part.  "

	chunks := c.Split(text, testMeta())

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	want := "First part.\n\nSecond part."
	if chunks[0].Text != want {
		t.Errorf("expected %q, got %q", want, chunks[0].Text)
	}
}

func TestSplitLongDocument(t *testing.T) {
	c := NewChunker(0, 0)

	var paras []string
	for i := 0; i < 4; i++ {
		sentence := fmt.Sprintf("Section %d of the statute allows a deduction for qualified expenses. ", i)
		paras = append(paras, strings.TrimSpace(strings.Repeat(sentence, 12)))
	}
	text := strings.Join(paras, "\n\n")

	chunks := c.Split(text, testMeta())

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for %d chars, got %d", len(text), len(chunks))
	}
	var all strings.Builder
	for i, ch := range chunks {
		if len(ch.Text) > c.MaxChunkSize {
			t.Errorf("chunk %d exceeds max size: %d chars", i, len(ch.Text))
		}
		if ch.Meta.ChunkIndex != i {
			t.Errorf("chunk %d has index %d", i, ch.Meta.ChunkIndex)
		}
		if ch.Meta.TotalChunks != len(chunks) {
			t.Errorf("chunk %d reports %d total chunks, want %d", i, ch.Meta.TotalChunks, len(chunks))
		}
		if want := ChunkID(domain.SourceIRC, "IRC § 162(a)", i); ch.ID != want {
			t.Errorf("chunk %d id %q, want %q", i, ch.ID, want)
		}
		all.WriteString(ch.Text)
		all.WriteString("\n\n")
	}
	// Every paragraph must survive into some chunk: no content gaps.
	for i, p := range paras {
		if !strings.Contains(all.String(), p) {
			t.Errorf("paragraph %d missing from chunk output", i)
		}
	}
}

func TestSplitOverlapSeedsNextChunk(t *testing.T) {
	c := NewChunker(0, 0)

	var paras []string
	for i := 0; i < 4; i++ {
		sentence := fmt.Sprintf("Paragraph %d covers the substantiation rules for travel costs. ", i)
		paras = append(paras, strings.TrimSpace(strings.Repeat(sentence, 14)))
	}
	chunks := c.Split(strings.Join(paras, "\n\n"), testMeta())

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		overlap := 0
		for k := 1; k <= len(chunks[i].Text) && k <= len(chunks[i-1].Text); k++ {
			if strings.HasSuffix(chunks[i-1].Text, chunks[i].Text[:k]) {
				overlap = k
			}
		}
		if overlap == 0 {
			t.Errorf("chunk %d does not begin with a tail of chunk %d", i, i-1)
		}
		if overlap > c.OverlapSize {
			t.Errorf("chunk %d overlap is %d chars, want at most %d", i, overlap, c.OverlapSize)
		}
	}
}

func TestSplitOversizedParagraph(t *testing.T) {
	c := NewChunker(0, 0)
	// One paragraph, no blank lines, well past the chunk limit.
	text := strings.TrimSpace(strings.Repeat("The taxpayer must substantiate each expense with adequate records. ", 40))

	chunks := c.Split(text, testMeta())

	if len(chunks) < 2 {
		t.Fatalf("expected sentence-level split to produce multiple chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if len(ch.Text) > c.MaxChunkSize {
			t.Errorf("chunk %d exceeds max size: %d chars", i, len(ch.Text))
		}
		if !strings.HasSuffix(ch.Text, ".") {
			t.Errorf("chunk %d does not end on a sentence boundary: %q", i, ch.Text[len(ch.Text)-20:])
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	c := NewChunker(0, 0)
	text := strings.TrimSpace(strings.Repeat("Deductions are allowed only as provided by statute. ", 60))

	first := c.Split(text, testMeta())
	second := c.Split(text, testMeta())

	if !reflect.DeepEqual(first, second) {
		t.Error("expected identical output for identical input")
	}
}

func TestOverlapTailWordBoundary(t *testing.T) {
	c := NewChunker(2000, 20)

	s := strings.Repeat("x", 100) + " alpha beta gamma delta"
	tail := c.overlapTail(s)

	if tail == "" {
		t.Fatal("expected a non-empty overlap tail")
	}
	if len(tail) > c.OverlapSize {
		t.Errorf("tail length %d exceeds overlap size %d", len(tail), c.OverlapSize)
	}
	// The window opens mid-word; the seed must start at the next full word.
	if !strings.Contains(" "+s, " "+tail) {
		t.Errorf("tail %q starts mid-word", tail)
	}

	short := "tiny text"
	if got := c.overlapTail(short); got != short {
		t.Errorf("expected short text returned whole, got %q", got)
	}

	if got := c.overlapTail(strings.Repeat("y", 300)); got != "" {
		t.Errorf("expected empty tail when no word boundary exists, got %q", got)
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "plain sentences",
			text: "First sentence. Second one! Third? All done.",
			want: []string{"First sentence.", "Second one!", "Third?", "All done."},
		},
		{
			name: "lowercase continuation is not a boundary",
			text: "See Treas. Reg. sec. 1.162-1 for rules. Next point.",
			want: []string{"See Treas.", "Reg. sec. 1.162-1 for rules.", "Next point."},
		},
		{
			name: "decimal is not a boundary",
			text: "The rate is 7.5 percent. It phases out later.",
			want: []string{"The rate is 7.5 percent.", "It phases out later."},
		},
		{
			name: "no terminal punctuation",
			text: "a bare fragment without punctuation",
			want: []string{"a bare fragment without punctuation"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitSentences(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChunkID(t *testing.T) {
	tests := []struct {
		sourceType domain.SourceType
		citation   string
		index      int
		want       string
	}{
		{domain.SourceIRC, "IRC § 162(a)", 0, "irc-IRC-162-a-chunk-0"},
		{domain.SourceRegs, "Treas. Reg. § 1.162-1", 2, "regs-Treas-Reg-1-162-1-chunk-2"},
		{domain.SourcePubs, "Pub 463", 11, "pubs-Pub-463-chunk-11"},
	}
	for _, tt := range tests {
		if got := ChunkID(tt.sourceType, tt.citation, tt.index); got != tt.want {
			t.Errorf("ChunkID(%s, %q, %d) = %q, want %q", tt.sourceType, tt.citation, tt.index, got, tt.want)
		}
	}
}

func TestNumericChunkID(t *testing.T) {
	// Values fixed by the ((h<<5)-h)+c accumulation; they must never change
	// or re-ingestion would orphan existing vector points.
	if got := NumericChunkID(""); got != 0 {
		t.Errorf("empty id hashed to %d, want 0", got)
	}
	if got := NumericChunkID("a"); got != 97 {
		t.Errorf("hash(a) = %d, want 97", got)
	}
	if got := NumericChunkID("abc"); got != 96354 {
		t.Errorf("hash(abc) = %d, want 96354", got)
	}
	if NumericChunkID("irc-IRC-162-chunk-0") == NumericChunkID("irc-IRC-162-chunk-1") {
		t.Error("distinct ids collided")
	}
}
