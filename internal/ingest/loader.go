package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/taxentia/taxentia-api/internal/core/domain"
)

// maxFetchBytes caps a fetched document body.
const maxFetchBytes = 10 << 20

// Document is one authority document listed in an ingestion manifest.
// Text may be inlined or referenced through TextURL.
type Document struct {
	SourceType  domain.SourceType `json:"source_type"`
	Citation    string            `json:"citation"`
	Title       string            `json:"title"`
	Section     string            `json:"section,omitempty"`
	URL         string            `json:"url,omitempty"`
	VersionDate string            `json:"version_date,omitempty"`
	Text        string            `json:"text,omitempty"`
	TextURL     string            `json:"text_url,omitempty"`
}

// Loader reads ingestion manifests and resolves document text over HTTP.
type Loader struct {
	client *http.Client
	logger zerolog.Logger
}

// NewLoader builds a Loader whose HTTP fetches are bounded by timeout.
func NewLoader(timeout time.Duration, logger zerolog.Logger) *Loader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Loader{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// LoadManifest parses a JSON manifest file into documents and validates each
// entry. The manifest is a JSON array of documents.
func (l *Loader) LoadManifest(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	for i := range docs {
		if err := docs[i].validate(); err != nil {
			return nil, fmt.Errorf("manifest entry %d (%s): %w", i, docs[i].Citation, err)
		}
	}

	l.logger.Info().Int("documents", len(docs)).Str("manifest", path).Msg("manifest loaded")
	return docs, nil
}

func (d *Document) validate() error {
	if !d.SourceType.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidSourceType, d.SourceType)
	}
	if d.Citation == "" {
		return fmt.Errorf("citation is required")
	}
	if d.Text == "" && d.TextURL == "" {
		return fmt.Errorf("either text or text_url is required")
	}
	return nil
}

// Resolve fills in d.Text, fetching it from d.TextURL when not inlined.
func (l *Loader) Resolve(ctx context.Context, d *Document) error {
	if d.Text != "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.TextURL, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", d.Citation, err)
	}
	req.Header.Set("Accept", "text/plain, text/html;q=0.9, */*;q=0.5")

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", d.Citation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %d", d.Citation, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return fmt.Errorf("read %s: %w", d.Citation, err)
	}

	d.Text = string(body)
	l.logger.Debug().Str("citation", d.Citation).Int("bytes", len(body)).Msg("document text fetched")
	return nil
}
