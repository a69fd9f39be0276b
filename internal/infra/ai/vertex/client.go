// Package vertex serves "vertex:<model>" analyzer targets with Gemini on Vertex AI.
package vertex

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bryanwahyu/automaton-compliance/internal/domain/ai"
)

const maxOutputTokens = 4096

const defaultModel = "gemini-1.5-pro"

// Client holds one genai client and a configured model per model name.
type Client struct {
	base   *genai.Client
	model  string
	mu     sync.Mutex
	models map[string]*genai.GenerativeModel
}

var _ ai.Client = (*Client)(nil)

// NewClient creates a Vertex AI client. credentialsFile is optional; application default credentials are used otherwise.
func NewClient(ctx context.Context, projectID, region, model, credentialsFile string) (*Client, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("vertex: projectID and region cannot be empty")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	base, err := genai.NewClient(ctx, projectID, region, opts...)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	if model == "" {
		model = defaultModel
	}
	return &Client{base: base, model: model, models: make(map[string]*genai.GenerativeModel)}, nil
}

func (c *Client) generativeModel(name, system string) *genai.GenerativeModel {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := name + "\x00" + system
	if m, ok := c.models[key]; ok {
		return m
	}
	m := c.base.GenerativeModel(name)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	m.GenerationConfig = genai.GenerationConfig{
		// Force JSON output
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
		MaxOutputTokens:  genai.Ptr[int32](maxOutputTokens),
	}
	c.models[key] = m
	return m
}

func (c *Client) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	name := req.Model
	if name == "" {
		name = c.model
	}
	resp, err := c.generativeModel(name, req.System).GenerateContent(ctx, genai.Text(req.User))
	if err != nil {
		if st, ok := status.FromError(err); ok && st.Code() == codes.ResourceExhausted {
			return "", fmt.Errorf("%w: %s", ai.ErrQuotaExceeded, st.Message())
		}
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return "", fmt.Errorf("gemini blocked the request: %w", err)
		}
		return "", fmt.Errorf("failed to generate content from gemini: %w", err)
	}
	text := extractText(resp)
	if text == "" {
		return "", ai.ErrEmptyCompletion
	}
	return text, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}

func (c *Client) Close() error {
	if c.base != nil {
		return c.base.Close()
	}
	return nil
}
