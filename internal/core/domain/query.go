package domain

import (
	"errors"
	"time"
)

// ErrInvalidQuery is returned when a research submission carries no usable
// question text.
var ErrInvalidQuery = errors.New("query text is required")

// Confidence colors, derived from the numeric score.
const (
	ColorRed   = "red"
	ColorAmber = "amber"
	ColorGreen = "green"
)

// ColorForScore maps a confidence score onto its band:
// red 0-59, amber 60-84, green 85-100.
func ColorForScore(score int) string {
	switch {
	case score >= 85:
		return ColorGreen
	case score >= 60:
		return ColorAmber
	default:
		return ColorRed
	}
}

// Disclaimer is appended to every analysis. It is fixed text, not model output.
const Disclaimer = "This analysis is generated from primary authority for research " +
	"purposes and does not constitute legal or tax advice. Verify all citations " +
	"against current law before relying on them."

// CitedAuthority is one entry in a response's ordered authority list.
type CitedAuthority struct {
	SourceType  SourceType `json:"source_type" bson:"source_type"`
	Citation    string     `json:"citation" bson:"citation"`
	Title       string     `json:"title,omitempty" bson:"title,omitempty"`
	Section     string     `json:"section,omitempty" bson:"section,omitempty"`
	URL         string     `json:"url,omitempty" bson:"url,omitempty"`
	VersionDate string     `json:"version_date,omitempty" bson:"version_date,omitempty"`
	ChunkID     string     `json:"chunk_id,omitempty" bson:"chunk_id,omitempty"`
	Relevance   string     `json:"relevance,omitempty" bson:"relevance,omitempty"`
}

// AnalysisStep is one step of the legal analysis. AuthorityRefs are indices
// into the response's authority list.
type AnalysisStep struct {
	Step          int    `json:"step" bson:"step"`
	Text          string `json:"text" bson:"text"`
	AuthorityRefs []int  `json:"authority_refs,omitempty" bson:"authority_refs,omitempty"`
}

// Confidence carries the model-assigned score, its color band, and any notes
// on what moved the score off the baseline.
type Confidence struct {
	Score int    `json:"score" bson:"score"`
	Color string `json:"color" bson:"color"`
	Notes string `json:"notes,omitempty" bson:"notes,omitempty"`
}

// Consistent reports whether the color matches the score band.
func (c Confidence) Consistent() bool {
	return c.Color == ColorForScore(c.Score)
}

// TaxResponse is the structured analysis returned for a research query.
// It is a value object embedded in TaxQuery, never persisted on its own.
type TaxResponse struct {
	Conclusion         string           `json:"conclusion" bson:"conclusion"`
	Authorities        []CitedAuthority `json:"authorities" bson:"authorities"`
	Analysis           []AnalysisStep   `json:"analysis" bson:"analysis"`
	ScopeAssumptions   []string         `json:"scope_assumptions" bson:"scope_assumptions"`
	Confidence         Confidence       `json:"confidence" bson:"confidence"`
	FurtherReading     []string         `json:"further_reading,omitempty" bson:"further_reading,omitempty"`
	ProceduralGuidance string           `json:"procedural_guidance,omitempty" bson:"procedural_guidance,omitempty"`
	Disclaimer         string           `json:"disclaimer" bson:"disclaimer"`
}

// TaxQuery is a persisted research query. Rows are inserted fully formed:
// the response is attached before the row is created and never mutated after.
type TaxQuery struct {
	ID              string       `json:"id" bson:"_id,omitempty"`
	UserID          string       `json:"user_id" bson:"user_id"`
	Query           string       `json:"query" bson:"query"`
	Response        *TaxResponse `json:"response" bson:"response,omitempty"`
	Confidence      int          `json:"confidence" bson:"confidence"`
	ConfidenceColor string       `json:"confidence_color" bson:"confidence_color"`
	RetrievedIDs    []string     `json:"retrieved_ids,omitempty" bson:"retrieved_ids,omitempty"`
	CreatedAt       time.Time    `json:"created_at" bson:"created_at"`
}
