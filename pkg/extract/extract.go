// Package extract provides LLM-backed structured extraction behind a narrow
// request/response contract: a prompt and a document in, JSON out. Vendor
// processors own their prompts and output schemas; this package only runs
// the call.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5-20250929"

// Extractor extracts structured JSON from an unstructured document.
type Extractor interface {
	ExtractJSON(ctx context.Context, prompt, document string) ([]byte, error)
}

// Client is an Extractor backed by the Claude messages API.
type Client struct {
	client anthropic.Client
	model  string
}

// NewClient creates an extraction client. An empty model selects
// DefaultModel.
func NewClient(apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("extraction API key is not set")
	}
	if model == "" {
		model = DefaultModel
	}

	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

// ExtractJSON sends the prompt and document as a single user message and
// returns the JSON object from the response. The model may wrap the JSON in
// markdown fences, so the body is taken between the outermost braces.
func (c *Client) ExtractJSON(ctx context.Context, prompt, document string) ([]byte, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt + "\n\n" + document)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("extraction API call failed: %w", err)
	}

	if len(message.Content) == 0 {
		return nil, fmt.Errorf("empty response from extraction API")
	}

	var responseText string
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText += block.Text
		}
	}

	jsonStart := strings.Index(responseText, "{")
	jsonEnd := strings.LastIndex(responseText, "}")
	if jsonStart == -1 || jsonEnd == -1 {
		return nil, fmt.Errorf("no JSON found in response: %s", responseText)
	}

	return []byte(responseText[jsonStart : jsonEnd+1]), nil
}
