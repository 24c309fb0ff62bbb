package domain

import (
	"errors"
	"time"
)

// SourceType classifies a tax authority by its place in the citation hierarchy.
type SourceType string

const (
	SourceIRC     SourceType = "irc"     // Internal Revenue Code (26 U.S.C.)
	SourceRegs    SourceType = "regs"    // Treasury Regulations (26 CFR)
	SourcePubs    SourceType = "pubs"    // IRS publications and notices
	SourceRulings SourceType = "rulings" // revenue rulings and procedures
	SourceCases   SourceType = "cases"   // case law
)

var sourceTypes = map[SourceType]struct{}{
	SourceIRC:     {},
	SourceRegs:    {},
	SourcePubs:    {},
	SourceRulings: {},
	SourceCases:   {},
}

var ErrAuthorityNotFound = errors.New("authority not found")
var ErrInvalidSourceType = errors.New("invalid source type")
var ErrQueryNotFound = errors.New("query not found")
var ErrForbidden = errors.New("access forbidden")

// Valid reports whether s names a known source type.
func (s SourceType) Valid() bool {
	_, ok := sourceTypes[s]
	return ok
}

// Authority is a citable tax-law source document. Records are immutable once
// ingested; re-ingestion replaces them wholesale.
type Authority struct {
	ID          string     `json:"id" bson:"_id,omitempty"`
	SourceType  SourceType `json:"source_type" bson:"source_type"`
	Citation    string     `json:"citation" bson:"citation"`
	Title       string     `json:"title" bson:"title"`
	Section     string     `json:"section,omitempty" bson:"section,omitempty"`
	URL         string     `json:"url" bson:"url"`
	Content     string     `json:"content" bson:"content"`
	VersionDate string     `json:"version_date,omitempty" bson:"version_date,omitempty"`
	ChunkID     string     `json:"chunk_id,omitempty" bson:"chunk_id,omitempty"`
	IngestedAt  time.Time  `json:"ingested_at" bson:"ingested_at"`
}
