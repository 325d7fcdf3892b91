package embedding

import (
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/lexai-study/lexai-retrieval/internal/errs"
)

// NewClient creates an OpenAI client shared by embedding and answer generation.
// baseURL is optional and points the client at an OpenAI-compatible endpoint.
func NewClient(apiKey, baseURL string) (*openai.Client, error) {
	if apiKey == "" {
		return nil, errs.Errorf(errs.Configuration, "new openai client", "OPENAI_API_KEY not set")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(opts...)
	return &client, nil
}
