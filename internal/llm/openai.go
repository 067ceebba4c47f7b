package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/trycompai/comp-sub012/config"
	"go.uber.org/zap"
)

const (
	defaultBaseURL        = "https://api.openai.com/v1"
	defaultChatModel      = "gpt-4o-mini"
	defaultEmbeddingModel = "text-embedding-3-small"

	// embedBatchSize bounds the number of inputs per embeddings request
	embedBatchSize = 64
)

// OpenAIAdapter implements Provider against the OpenAI HTTP API or any
// compatible gateway
type OpenAIAdapter struct {
	config     config.LLMConfig
	httpClient *http.Client
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewOpenAIAdapter creates a new OpenAI adapter
func NewOpenAIAdapter(cfg config.LLMConfig, logger *zap.Logger) *OpenAIAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = defaultChatModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = defaultEmbeddingModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return &OpenAIAdapter{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retryDelay: 500 * time.Millisecond,
		logger:     logger,
	}
}

// Name returns the provider name
func (a *OpenAIAdapter) Name() string {
	return "openai"
}

// ChatCompletion performs a chat completion request
func (a *OpenAIAdapter) ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	startTime := time.Now()

	if len(req.Messages) == 0 {
		return nil, NewProviderError(a.Name(), "INVALID_REQUEST", "at least one message is required", 400, false, nil)
	}

	body := a.buildChatRequest(req)

	var resp openAIChatResponse
	if err := a.post(ctx, "/chat/completions", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, NewProviderError(a.Name(), "EMPTY_RESPONSE", "completion returned no choices", http.StatusOK, true, nil)
	}

	return &ChatResponse{
		ID:       resp.ID,
		Model:    resp.Model,
		Content:  resp.Choices[0].Message.Content,
		Provider: a.Name(),
		Latency:  time.Since(startTime),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		FinishReason: resp.Choices[0].FinishReason,
	}, nil
}

// Embed returns embeddings for inputs, batching large requests
func (a *OpenAIAdapter) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(inputs))

	for start := 0; start < len(inputs); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(inputs) {
			end = len(inputs)
		}

		var resp openAIEmbeddingResponse
		err := a.post(ctx, "/embeddings", openAIEmbeddingRequest{
			Model: a.config.EmbeddingModel,
			Input: inputs[start:end],
		}, &resp)
		if err != nil {
			return nil, err
		}
		if len(resp.Data) != end-start {
			return nil, NewProviderError(a.Name(), "EMBEDDING_MISMATCH",
				fmt.Sprintf("expected %d embeddings, got %d", end-start, len(resp.Data)), http.StatusOK, false, nil)
		}

		batch := make([][]float32, end-start)
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(batch) {
				return nil, NewProviderError(a.Name(), "EMBEDDING_MISMATCH", "embedding index out of range", http.StatusOK, false, nil)
			}
			if batch[d.Index] != nil {
				return nil, NewProviderError(a.Name(), "EMBEDDING_MISMATCH",
					fmt.Sprintf("duplicate embedding index %d", d.Index), http.StatusOK, false, nil)
			}
			batch[d.Index] = d.Embedding
		}
		for i, v := range batch {
			if len(v) == 0 {
				return nil, NewProviderError(a.Name(), "EMBEDDING_MISMATCH",
					fmt.Sprintf("missing embedding for input %d", start+i), http.StatusOK, false, nil)
			}
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

// post sends a JSON request, retrying transport errors, 429 and 5xx
func (a *OpenAIAdapter) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return NewProviderError(a.Name(), "MARSHAL_ERROR", "Failed to marshal request", 0, false, err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = a.retryDelay
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(a.config.MaxRetries)), ctx)

	var respBody []byte
	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+path, bytes.NewReader(reqBody))
		if err != nil {
			return backoff.Permanent(NewProviderError(a.Name(), "REQUEST_ERROR", "Failed to create request", 0, false, err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)

		httpResp, err := a.httpClient.Do(httpReq)
		if err != nil {
			return NewProviderError(a.Name(), "HTTP_ERROR", "HTTP request failed", 0, true, err)
		}
		defer httpResp.Body.Close()

		body, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return NewProviderError(a.Name(), "READ_ERROR", "Failed to read response", httpResp.StatusCode, true, err)
		}

		if httpResp.StatusCode != http.StatusOK {
			provErr := a.handleErrorResponse(httpResp.StatusCode, body)
			if provErr.Retryable {
				return provErr
			}
			return backoff.Permanent(provErr)
		}

		respBody = body
		return nil
	}

	notify := func(err error, wait time.Duration) {
		a.logger.Warn("llm request failed, retrying",
			zap.String("path", path),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	if err := backoff.RetryNotify(operation, retry, notify); err != nil {
		var provErr *ProviderError
		if errors.As(err, &provErr) {
			return provErr
		}
		return NewProviderError(a.Name(), "HTTP_ERROR", "HTTP request failed", 0, true, err)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return NewProviderError(a.Name(), "UNMARSHAL_ERROR", "Failed to unmarshal response", http.StatusOK, false, err)
	}
	return nil
}

func (a *OpenAIAdapter) buildChatRequest(req *ChatRequest) *openAIChatRequest {
	model := req.Model
	if model == "" {
		model = a.config.ChatModel
	}

	out := &openAIChatRequest{
		Model:    model,
		Messages: make([]openAIMessage, len(req.Messages)),
	}
	for i, msg := range req.Messages {
		out.Messages[i] = openAIMessage{Role: msg.Role, Content: msg.Content}
	}

	if req.MaxTokens > 0 {
		out.MaxTokens = &req.MaxTokens
	}
	if req.Temperature > 0 {
		out.Temperature = &req.Temperature
	}
	if req.User != "" {
		out.User = &req.User
	}
	if req.JSONMode {
		out.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
	}
	return out
}

func (a *OpenAIAdapter) handleErrorResponse(statusCode int, body []byte) *ProviderError {
	retryable := statusCode >= 500 || statusCode == http.StatusTooManyRequests

	var errResp openAIErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return NewProviderError(a.Name(), "UNKNOWN_ERROR", string(body), statusCode, retryable, err)
	}

	return NewProviderError(
		a.Name(),
		errResp.Error.Type,
		errResp.Error.Message,
		statusCode,
		retryable,
		errors.New(errResp.Error.Message),
	)
}

type openAIChatRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	MaxTokens      *int                  `json:"max_tokens,omitempty"`
	Temperature    *float64              `json:"temperature,omitempty"`
	User           *string               `json:"user,omitempty"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	ID      string         `json:"id"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
}

type openAIChoice struct {
	Index        int           `json:"index"`
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIEmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
