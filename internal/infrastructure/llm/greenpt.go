package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"greenpt/internal/domain/entity"
	"greenpt/internal/domain/repository"
	"greenpt/internal/infrastructure/metrics"
)

const (
	defaultMaxTokens = 2000

	// Окно таймаута масштабируется от max_tokens: больше вывода — дольше ждём.
	minRequestTimeout = 60 * time.Second
	maxRequestTimeout = 10 * time.Minute
)

// retryableStatuses — transient коды, после которых запрос повторяется с backoff.
var retryableStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

type GreenPTClient struct {
	apiKey     string
	baseURL    string
	modelsURL  string
	model      string
	client     *http.Client
	maxRetries int

	mu     sync.Mutex
	models []string
}

func NewGreenPTClient(apiKey, baseURL, modelsURL, model string, maxRetries int) repository.CompletionClient {
	return &GreenPTClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		modelsURL:  modelsURL,
		model:      model,
		client:     &http.Client{},
		maxRetries: maxRetries,
	}
}

// RequestTimeout возвращает таймаут для запроса с данным max_tokens,
// зажатый между minRequestTimeout и maxRequestTimeout.
func RequestTimeout(maxTokens int) time.Duration {
	d := time.Duration(maxTokens/50) * time.Second
	if d < minRequestTimeout {
		return minRequestTimeout
	}
	if d > maxRequestTimeout {
		return maxRequestTimeout
	}
	return d
}

func (c *GreenPTClient) Complete(ctx context.Context, prompt string, opts repository.CompletionOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	system := opts.System
	if system == "" {
		system = entity.SystemPrompt.Text
	}

	userContent := prompt
	if opts.Tone != "" {
		userContent = fmt.Sprintf("%s\n\nPreferred tone: %s", prompt, opts.Tone)
	}

	messages := make([]entity.ChatMessage, 0, len(opts.History)+2)
	messages = append(messages, entity.ChatMessage{Role: entity.RoleSystem, Content: system})
	messages = append(messages, opts.History...)
	messages = append(messages, entity.ChatMessage{Role: entity.RoleUser, Content: userContent})

	payload := map[string]interface{}{
		"model":       model,
		"messages":    messages,
		"temperature": 0.4,
		"max_tokens":  maxTokens,
	}

	metrics.IncLLMRequest(model)
	start := time.Now()
	defer func() {
		metrics.ObserveLLMDuration(model, time.Since(start))
	}()

	body, err := json.Marshal(payload)
	if err != nil {
		metrics.IncError("llm", "marshal_request")
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	timeout := RequestTimeout(maxTokens)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		response, err := c.makeRequest(ctx, c.baseURL, body, timeout)
		if err == nil {
			return parseCompletion(response)
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) {
			if !retryableStatuses[apiErr.StatusCode] {
				metrics.IncError("llm", fmt.Sprintf("api_error_%d", apiErr.StatusCode))
				return "", apiErr
			}
			if attempt < c.maxRetries {
				metrics.IncLLMRetry("status")
				if err := sleepCtx(ctx, time.Duration(attempt+1)*2*time.Second); err != nil {
					return "", err
				}
			}
			continue
		}

		// Transport-level failure: таймаут или недоступная сеть.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if attempt < c.maxRetries {
			backoff := time.Duration(attempt+1) * 2 * time.Second
			if errors.Is(err, context.DeadlineExceeded) {
				backoff = time.Duration(attempt+1) * 5 * time.Second
				metrics.IncLLMRetry("timeout")
			} else {
				metrics.IncLLMRetry("network")
			}
			if err := sleepCtx(ctx, backoff); err != nil {
				return "", err
			}
		}
	}

	metrics.IncError("llm", "retries_exhausted")
	var apiErr *APIError
	if errors.As(lastErr, &apiErr) {
		return "", apiErr
	}
	return "", &NetworkError{Attempts: c.maxRetries + 1, Err: lastErr}
}

func (c *GreenPTClient) ListModels(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	if c.models != nil {
		cached := c.models
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.modelsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create models request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.IncError("llm", "models_request")
		return nil, &NetworkError{Attempts: 1, Err: err}
	}
	defer closeBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		metrics.IncError("llm", fmt.Sprintf("models_error_%d", resp.StatusCode))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var data struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		metrics.IncError("llm", "models_decode")
		return nil, fmt.Errorf("failed to decode models response: %w", err)
	}

	models := make([]string, 0, len(data.Data))
	for _, item := range data.Data {
		if item.ID != "" {
			models = append(models, item.ID)
		}
	}
	if len(models) == 0 {
		models = []string{c.model}
	}

	c.mu.Lock()
	c.models = models
	c.mu.Unlock()
	return models, nil
}

func (c *GreenPTClient) makeRequest(ctx context.Context, url string, body []byte, timeout time.Duration) (map[string]interface{}, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		metrics.IncError("llm", "create_request")
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.IncError("llm", "http_do")
		if reqCtx.Err() != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("request timed out after %s: %w", timeout, context.DeadlineExceeded)
		}
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer closeBody(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var response map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		metrics.IncError("llm", "decode_response")
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return response, nil
}

func (c *GreenPTClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

func parseCompletion(response map[string]interface{}) (string, error) {
	choices, ok := response["choices"].([]interface{})
	if !ok || len(choices) == 0 {
		return "", fmt.Errorf("invalid response format: no choices")
	}

	choice, ok := choices[0].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("invalid response format: invalid choice")
	}

	var content string
	if message, ok := choice["message"].(map[string]interface{}); ok {
		content, _ = message["content"].(string)
	}
	content = strings.TrimSpace(content)

	// Некоторые прокси кладут текст в summary/message на верхнем уровне.
	if content == "" {
		if summary, ok := response["summary"].(string); ok {
			content = strings.TrimSpace(summary)
		}
	}
	if content == "" {
		if msg, ok := response["message"].(string); ok {
			content = strings.TrimSpace(msg)
		}
	}

	if content == "" {
		return "", fmt.Errorf("greenpt did not include any assistant content")
	}
	return content, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		log.Printf("close body err: %s", err)
	}
}
