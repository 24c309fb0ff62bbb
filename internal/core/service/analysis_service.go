package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/taxentia/taxentia-api/internal/core/domain"
	"github.com/taxentia/taxentia-api/internal/core/ports"
)

// analysisSystemPrompt steers the model. The scoring rules here and the bands
// in domain.ColorForScore must stay in agreement.
const analysisSystemPrompt = `You are a federal tax research specialist. Answer strictly from the authorities provided in the CONTEXT section; never invent citations and never rely on outside knowledge. Cite by pinpoint reference (section and subsection). Weigh authority in this order: statute, regulation, administrative guidance, rulings, case law. Score confidence from a baseline of 85: add 5 when statute and regulation align, add 5 when on-point guidance agrees, subtract 10 for each factual assumption you must make, subtract 15 when authorities conflict or the question is unsettled. Color bands: 85-100 green, 60-84 amber, 0-59 red. List every assumption under scope_assumptions. Respond with a single JSON object matching the response schema. Output JSON only, no prose around it.`

// FallbackConclusion opens every fallback response. Handlers compare against
// it to count degraded answers.
const FallbackConclusion = "The analysis service is temporarily unavailable. " +
	"The authorities below were retrieved for your question, but no analysis " +
	"could be generated."

// maxFallbackAuthorities caps how many retrieved records a fallback carries.
const maxFallbackAuthorities = 3

// StructuredGenerator produces schema-constrained completions.
type StructuredGenerator interface {
	GenerateStructured(ctx context.Context, systemPrompt, userPrompt string, schema map[string]interface{}) (string, error)
}

type analysisService struct {
	generator StructuredGenerator
	logger    zerolog.Logger
}

// NewAnalysisService builds an AnalysisService on top of a structured
// completion client.
func NewAnalysisService(generator StructuredGenerator, logger zerolog.Logger) ports.AnalysisService {
	return &analysisService{
		generator: generator,
		logger:    logger.With().Str("component", "analysis_service").Logger(),
	}
}

// Generate produces the structured analysis for a question. It makes at most
// one model call; any failure past that point is repaired locally or degraded
// to the deterministic fallback, never re-prompted.
func (s *analysisService) Generate(ctx context.Context, question string, authorities []domain.Authority) *domain.TaxResponse {
	// 1. Build the grounded prompt from the retrieved chunks.
	prompt := buildPrompt(question, authorities)

	// 2. Single model call.
	raw, err := s.generator.GenerateStructured(ctx, analysisSystemPrompt, prompt, responseSchema())
	if err != nil {
		s.logger.Error().Err(err).Msg("analysis generation failed")
		return FallbackResponse(authorities, "The analysis service could not be reached.")
	}

	// 3. Decode the payload.
	resp, err := parseResponse(raw)
	if err != nil {
		s.logger.Error().Err(err).Str("raw", snippet(raw)).Msg("analysis response unusable")
		return FallbackResponse(authorities, "The analysis service returned an unusable response.")
	}

	// 4. Repair locally: clamp and recolor confidence, backfill citations,
	// renumber steps.
	return normalize(resp, authorities)
}

// buildPrompt assembles the CONTEXT/QUESTION prompt. Each authority becomes a
// "[SOURCE_TYPE] citation: content" block; blocks are separated by blank lines.
func buildPrompt(question string, authorities []domain.Authority) string {
	var b strings.Builder
	b.WriteString("CONTEXT:\n")
	if len(authorities) == 0 {
		b.WriteString("No authorities were retrieved for this question.\n")
	} else {
		blocks := make([]string, 0, len(authorities))
		for _, a := range authorities {
			blocks = append(blocks, fmt.Sprintf("[%s] %s: %s", strings.ToUpper(string(a.SourceType)), a.Citation, a.Content))
		}
		b.WriteString(strings.Join(blocks, "\n\n"))
		b.WriteString("\n")
	}
	b.WriteString("\nQUESTION: ")
	b.WriteString(question)
	return b.String()
}

// responseSchema is the Gemini response schema for a TaxResponse. Type names
// are the API's uppercase forms.
func responseSchema() map[string]interface{} {
	stringType := func() map[string]interface{} { return map[string]interface{}{"type": "STRING"} }
	stringArray := map[string]interface{}{"type": "ARRAY", "items": map[string]interface{}{"type": "STRING"}}

	authority := map[string]interface{}{
		"type": "OBJECT",
		"properties": map[string]interface{}{
			"source_type":  stringType(),
			"citation":     stringType(),
			"title":        stringType(),
			"section":      stringType(),
			"url":          stringType(),
			"version_date": stringType(),
			"chunk_id":     stringType(),
			"relevance":    stringType(),
		},
		"required": []string{"source_type", "citation"},
	}
	step := map[string]interface{}{
		"type": "OBJECT",
		"properties": map[string]interface{}{
			"step":           map[string]interface{}{"type": "INTEGER"},
			"text":           stringType(),
			"authority_refs": map[string]interface{}{"type": "ARRAY", "items": map[string]interface{}{"type": "INTEGER"}},
		},
		"required": []string{"step", "text"},
	}
	confidence := map[string]interface{}{
		"type": "OBJECT",
		"properties": map[string]interface{}{
			"score": map[string]interface{}{"type": "INTEGER"},
			"color": map[string]interface{}{"type": "STRING", "enum": []string{domain.ColorRed, domain.ColorAmber, domain.ColorGreen}},
			"notes": stringType(),
		},
		"required": []string{"score", "color"},
	}

	return map[string]interface{}{
		"type": "OBJECT",
		"properties": map[string]interface{}{
			"conclusion":          stringType(),
			"authorities":         map[string]interface{}{"type": "ARRAY", "items": authority},
			"analysis":            map[string]interface{}{"type": "ARRAY", "items": step},
			"scope_assumptions":   stringArray,
			"confidence":          confidence,
			"further_reading":     stringArray,
			"procedural_guidance": stringType(),
			"disclaimer":          stringType(),
		},
		"required": []string{"conclusion", "authorities", "analysis", "confidence"},
	}
}

// parseResponse decodes the model payload. Code fences are tolerated; a
// missing conclusion or an empty analysis list makes the payload unusable.
func parseResponse(raw string) (*domain.TaxResponse, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var resp domain.TaxResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, fmt.Errorf("decoding analysis: %w", err)
	}
	if strings.TrimSpace(resp.Conclusion) == "" {
		return nil, errors.New("analysis has no conclusion")
	}
	if len(resp.Analysis) == 0 {
		return nil, errors.New("analysis has no steps")
	}
	return &resp, nil
}

// normalize repairs a decoded response in place. The model's color is
// advisory only; the stored color always derives from the clamped score.
func normalize(resp *domain.TaxResponse, retrieved []domain.Authority) *domain.TaxResponse {
	if resp.Confidence.Score < 0 {
		resp.Confidence.Score = 0
	}
	if resp.Confidence.Score > 100 {
		resp.Confidence.Score = 100
	}
	resp.Confidence.Color = domain.ColorForScore(resp.Confidence.Score)

	if len(resp.Authorities) == 0 {
		resp.Authorities = citedFromRetrieved(retrieved, maxFallbackAuthorities)
	} else {
		for i := range resp.Authorities {
			backfillAuthority(&resp.Authorities[i], retrieved)
		}
	}

	// Steps are renumbered 1..n; refs outside the authority list are dropped.
	for i := range resp.Analysis {
		resp.Analysis[i].Step = i + 1
		kept := resp.Analysis[i].AuthorityRefs[:0]
		for _, ref := range resp.Analysis[i].AuthorityRefs {
			if ref >= 0 && ref < len(resp.Authorities) {
				kept = append(kept, ref)
			}
		}
		resp.Analysis[i].AuthorityRefs = kept
	}

	if resp.ScopeAssumptions == nil {
		resp.ScopeAssumptions = []string{}
	}
	if strings.TrimSpace(resp.Disclaimer) == "" {
		resp.Disclaimer = domain.Disclaimer
	}
	return resp
}

// backfillAuthority copies locator fields from the first retrieved record
// whose citation matches. Matching is case-insensitive and accepts either
// string containing the other, so "IRC § 195(b)" matches the "IRC § 195"
// chunk and vice versa.
func backfillAuthority(cited *domain.CitedAuthority, retrieved []domain.Authority) {
	for i := range retrieved {
		if !citationMatches(cited.Citation, retrieved[i].Citation) {
			continue
		}
		if cited.URL == "" {
			cited.URL = retrieved[i].URL
		}
		if cited.VersionDate == "" {
			cited.VersionDate = retrieved[i].VersionDate
		}
		if cited.ChunkID == "" {
			cited.ChunkID = retrieved[i].ChunkID
		}
		if cited.Title == "" {
			cited.Title = retrieved[i].Title
		}
		if cited.Section == "" {
			cited.Section = retrieved[i].Section
		}
		return
	}
}

func citationMatches(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func citedFromRetrieved(retrieved []domain.Authority, limit int) []domain.CitedAuthority {
	if limit > len(retrieved) {
		limit = len(retrieved)
	}
	cited := make([]domain.CitedAuthority, 0, limit)
	for _, a := range retrieved[:limit] {
		cited = append(cited, domain.CitedAuthority{
			SourceType:  a.SourceType,
			Citation:    a.Citation,
			Title:       a.Title,
			Section:     a.Section,
			URL:         a.URL,
			VersionDate: a.VersionDate,
			ChunkID:     a.ChunkID,
		})
	}
	return cited
}

// FallbackResponse builds the deterministic response used when no model
// analysis is available: fixed conclusion, up to three retrieved authorities
// verbatim, one step describing the failure, and a zero/red confidence. It is
// always schema-valid.
func FallbackResponse(authorities []domain.Authority, reason string) *domain.TaxResponse {
	return &domain.TaxResponse{
		Conclusion:  FallbackConclusion,
		Authorities: citedFromRetrieved(authorities, maxFallbackAuthorities),
		Analysis: []domain.AnalysisStep{{
			Step:          1,
			Text:          reason + " Please retry your question shortly.",
			AuthorityRefs: []int{},
		}},
		ScopeAssumptions: []string{"No analysis was performed; the listed authorities are raw retrieval results."},
		Confidence: domain.Confidence{
			Score: 0,
			Color: domain.ColorRed,
			Notes: "Automatic fallback response.",
		},
		Disclaimer: domain.Disclaimer,
	}
}

// snippet truncates raw model output for log fields.
func snippet(s string) string {
	const max = 256
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
