package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

const defaultEmbeddingModel = "gemini-embedding-001"

// GeminiEmbedder generates embedding vectors through the Gemini API.
// Documents and queries use asymmetric retrieval task types so indexed
// chunks and search queries land in the same vector space.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
	logger zerolog.Logger
}

// NewGeminiEmbedder builds an embedder for the given model, defaulting to
// gemini-embedding-001.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string, logger zerolog.Logger) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if model == "" {
		model = defaultEmbeddingModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiEmbedder{client: client, model: model, logger: logger}, nil
}

// EmbedDocuments embeds chunk texts for indexing.
func (e *GeminiEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return e.embed(ctx, texts, "RETRIEVAL_DOCUMENT")
}

// EmbedQuery embeds a research question for similarity search.
func (e *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embed(ctx, []string{text}, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("no embedding returned")
	}
	return vectors[0], nil
}

func (e *GeminiEmbedder) embed(ctx context.Context, texts []string, task string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := e.client.Models.EmbedContent(ctx,
		e.model,
		contents,
		&genai.EmbedContentConfig{
			TaskType: task,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d texts", len(result.Embeddings), len(texts))
	}

	out := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		out[i] = emb.Values
	}
	e.logger.Debug().Int("texts", len(texts)).Str("task", string(task)).Msg("embeddings generated")
	return out, nil
}

// Close releases the underlying client. The genai client holds no
// closable resources, so this is a no-op.
func (e *GeminiEmbedder) Close() error {
	return nil
}
