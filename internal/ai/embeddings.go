package ai

import (
	"context"
	"fmt"
	"math"

	"github.com/google/generative-ai-go/genai"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/api/option"

	"medical-rag-platform/internal/config"
)

// Per-request input limits of the providers' batch endpoints.
const (
	googleBatchLimit = 100
	openAIBatchLimit = 2048
)

// NewEmbedder returns the embedder selected by EMBEDDINGS_PROVIDER. Default
// provider is Google Generative AI (text-embedding-004).
func NewEmbedder(ctx context.Context, cfg *config.Config) (Embedder, error) {
	switch cfg.EmbeddingsProvider {
	case "google", "":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
		}
		client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
		if err != nil {
			return nil, err
		}
		return &GoogleEmbedder{
			client: client,
			model:  client.EmbeddingModel(cfg.GoogleEmbeddingsModel),
			dims:   cfg.VectorDimensions,
		}, nil

	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("missing OPENAI_API_KEY for embeddings")
		}
		return &OpenAIEmbedder{
			client: openai.NewClient(cfg.OpenAIAPIKey),
			model:  openai.EmbeddingModel(cfg.OpenAIEmbeddingsModel),
			dims:   cfg.VectorDimensions,
		}, nil

	default:
		return nil, fmt.Errorf("unknown embeddings provider: %s", cfg.EmbeddingsProvider)
	}
}

// GoogleEmbedder embeds with the Gemini embedding API. text-embedding-004
// returns 768 values; vectors are shortened to dims and re-normalized.
type GoogleEmbedder struct {
	client *genai.Client
	model  *genai.EmbeddingModel
	dims   int
}

func (e *GoogleEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}
	if resp.Embedding == nil {
		return nil, fmt.Errorf("no embedding returned")
	}
	return fitDimensions(resp.Embedding.Values, e.dims), nil
}

func (e *GoogleEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += googleBatchLimit {
		end := min(start+googleBatchLimit, len(texts))

		batch := e.model.NewBatch()
		for _, t := range texts[start:end] {
			batch.AddContent(genai.Text(t))
		}
		resp, err := e.model.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, err
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("expected %d embeddings, got %d", end-start, len(resp.Embeddings))
		}
		for _, emb := range resp.Embeddings {
			out = append(out, fitDimensions(emb.Values, e.dims))
		}
	}
	return out, nil
}

func (e *GoogleEmbedder) Dimensions() int { return e.dims }

func (e *GoogleEmbedder) Close() error { return e.client.Close() }

// OpenAIEmbedder requests vectors of the configured size directly.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	dims   int
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += openAIBatchLimit {
		end := min(start+openAIBatchLimit, len(texts))

		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input:      texts[start:end],
			Model:      e.model,
			Dimensions: e.dims,
		})
		if err != nil {
			return nil, fmt.Errorf("OpenAI API error: %w", err)
		}
		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("expected %d embeddings, got %d", end-start, len(resp.Data))
		}
		batch := make([][]float32, end-start)
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(batch) {
				return nil, fmt.Errorf("embedding index %d out of range", d.Index)
			}
			batch[d.Index] = d.Embedding
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (e *OpenAIEmbedder) Dimensions() int { return e.dims }

// fitDimensions truncates v to dims and L2-normalizes the result. Vectors
// already at or below dims are returned as-is.
func fitDimensions(v []float32, dims int) []float32 {
	if dims <= 0 || len(v) <= dims {
		return v
	}
	out := make([]float32, dims)
	copy(out, v[:dims])

	var norm float64
	for _, x := range out {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return out
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range out {
		out[i] *= scale
	}
	return out
}
