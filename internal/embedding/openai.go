package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	// DefaultOpenAIModel is the remote model used when none is configured.
	DefaultOpenAIModel = "text-embedding-3-small"

	// DefaultOpenAIDimensions is the output size of text-embedding-3-small.
	DefaultOpenAIDimensions = 1536

	defaultRequestTimeout = 60 * time.Second
)

// OpenAIConfig configures the remote provider.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// OpenAIProvider calls an OpenAI-compatible embeddings endpoint.
type OpenAIProvider struct {
	client     openai.Client
	model      string
	dimensions int
}

// NewOpenAIProvider creates the remote provider. The client does not retry
// on its own; rate limits are retried here with exponential backoff.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("embedding: openai api key not set")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultOpenAIDimensions
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRequestTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIProvider{
		client:     openai.NewClient(opts...),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

func (p *OpenAIProvider) Model() string   { return p.model }
func (p *OpenAIProvider) Dimensions() int { return p.dimensions }

// Embed sends texts as one request and maps the response back by index.
// HTTP 429 is retried; any other failure is returned immediately.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(p.model),
	}
	// Only the text-embedding-3 family accepts a dimensions parameter.
	if strings.HasPrefix(p.model, "text-embedding-3") {
		params.Dimensions = openai.Int(int64(p.dimensions))
	}

	var vectors [][]float64
	operation := func() error {
		resp, err := p.client.Embeddings.New(ctx, params)
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		out, err := byIndex(resp.Data, len(texts))
		if err != nil {
			return backoff.Permanent(err)
		}
		vectors = out
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("embedding: openai request: %w", err)
	}
	return vectors, nil
}

func byIndex(data []openai.Embedding, n int) ([][]float64, error) {
	if len(data) != n {
		return nil, fmt.Errorf("embedding: got %d vectors for %d inputs", len(data), n)
	}
	out := make([][]float64, n)
	for _, d := range data {
		if d.Index < 0 || int(d.Index) >= n || out[d.Index] != nil {
			return nil, fmt.Errorf("embedding: bad response index %d", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// isRateLimitError checks if the error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}
