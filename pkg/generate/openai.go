package generate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/vanderheijden86/conceptmap/pkg/debug"
	"github.com/vanderheijden86/conceptmap/pkg/metrics"
	"github.com/vanderheijden86/conceptmap/pkg/model"
)

// DefaultModel is used when OpenAIOptions.Model is empty.
const DefaultModel = "gpt-4o-mini"

// DefaultAPIKeyEnv names the environment variable holding the API key.
const DefaultAPIKeyEnv = "OPENAI_API_KEY"

const systemPrompt = `You build concept maps for studying. Read the user's text and answer with a
single JSON object of the form
{"title": string, "nodes": [{"id": string, "label": string}], "edges": [{"id": string, "source": string, "target": string}]}.
Use one central concept as the root, keep labels under eight words, give every
node a unique short id, and point every edge from a broader concept to a
narrower one. Do not include any text outside the JSON object.`

// OpenAIOptions configures an OpenAIGenerator.
type OpenAIOptions struct {
	APIKey      string
	APIKeyEnv   string // consulted when APIKey is empty
	Model       string
	BaseURL     string // optional, for compatible endpoints
	Temperature float32
}

// OpenAIGenerator asks a chat completion model for a concept graph.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
	temp   float32
}

// NewOpenAIGenerator creates a generator. It fails when no API key is found.
func NewOpenAIGenerator(opts OpenAIOptions) (*OpenAIGenerator, error) {
	key := opts.APIKey
	if key == "" {
		env := opts.APIKeyEnv
		if env == "" {
			env = DefaultAPIKeyEnv
		}
		key = strings.TrimSpace(os.Getenv(env))
		if key == "" {
			return nil, fmt.Errorf("%s environment variable not set", env)
		}
	}
	name := opts.Model
	if name == "" {
		name = DefaultModel
	}

	cfg := openai.DefaultConfig(key)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	debug.Log("generate: using model %s (base %s)", name, cfg.BaseURL)
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(cfg),
		model:  name,
		temp:   opts.Temperature,
	}, nil
}

// Generate implements Generator.
func (o *OpenAIGenerator) Generate(ctx context.Context, text string) (model.ConceptGraph, error) {
	defer metrics.Timer(metrics.Generation)()

	text = strings.TrimSpace(text)
	if text == "" {
		return model.ConceptGraph{}, errors.New("generate: input text is empty")
	}

	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: o.temp,
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return model.ConceptGraph{}, fmt.Errorf("%w: OpenAI API call: %w", ErrGenerationFailed, err)
	}
	if len(resp.Choices) == 0 {
		return model.ConceptGraph{}, fmt.Errorf("%w: OpenAI returned no choices", ErrGenerationFailed)
	}
	debug.Log("generate: finish_reason=%s tokens=%d", resp.Choices[0].FinishReason, resp.Usage.TotalTokens)

	g, err := ParseGraph([]byte(resp.Choices[0].Message.Content))
	if err != nil {
		return model.ConceptGraph{}, err
	}
	return g, nil
}
