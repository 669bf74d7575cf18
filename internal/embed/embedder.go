package embed

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder produces fixed-length vectors for text. ModelName identifies the
// producing model; vectors from different models are never comparable.
type Embedder interface {
	ModelName() string
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// openAIEmbedder talks to any OpenAI-compatible embedding endpoint, local
// servers included.
type openAIEmbedder struct {
	embedder  embeddings.Embedder
	modelName string
}

// NewOpenAIEmbedder connects to the embedding host. The "none" token keeps
// local unauthenticated services happy.
func NewOpenAIEmbedder(host, model string) (Embedder, error) {
	client, err := openai.New(
		openai.WithBaseURL(host),
		openai.WithToken("none"),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("wrap embedding client: %w", err)
	}

	return &openAIEmbedder{
		embedder:  embedder,
		modelName: model,
	}, nil
}

func (e *openAIEmbedder) ModelName() string { return e.modelName }

func (e *openAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %d texts: %w", len(texts), err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}
