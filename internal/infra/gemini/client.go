package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gruz-board/internal/infra/metrics"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Client выполняет generateContent запросы к Gemini API.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// NewClient создаёт клиента Gemini.
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout + 5*time.Second}
	return &Client{http: httpClient, baseURL: baseURL, apiKey: apiKey}
}

// GenerateContentRequest описывает тело запроса.
type GenerateContentRequest struct {
	Contents         []Content         `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
	Tools            []Tool            `json:"tools,omitempty"`
}

// Content блок диалога.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part фрагмент контента.
type Part struct {
	Text string `json:"text,omitempty"`
}

// GenerationConfig настройки генерации.
type GenerationConfig struct {
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
	Temperature      float64 `json:"temperature,omitempty"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
}

// Tool включает инструменты модели.
type Tool struct {
	GoogleSearch *struct{} `json:"googleSearch,omitempty"`
}

// ResponseMIMETypeJSON просит вернуть JSON.
const ResponseMIMETypeJSON = "application/json"

// GenerateContentResponse описывает ответ модели.
type GenerateContentResponse struct {
	Candidates    []Candidate    `json:"candidates"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
}

// Candidate вариант ответа.
type Candidate struct {
	Content           Content            `json:"content"`
	GroundingMetadata *GroundingMetadata `json:"groundingMetadata,omitempty"`
}

// GroundingMetadata источники, на которые опёрся ответ.
type GroundingMetadata struct {
	GroundingChunks []GroundingChunk `json:"groundingChunks,omitempty"`
}

// GroundingChunk один источник.
type GroundingChunk struct {
	Web *struct {
		URI   string `json:"uri"`
		Title string `json:"title"`
	} `json:"web,omitempty"`
}

// UsageMetadata статистика использования токенов.
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// Text склеивает текстовые части первого кандидата.
func (r GenerateContentResponse) Text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// GenerateContent вызывает /models/{model}:generateContent.
func (c *Client) GenerateContent(ctx context.Context, model string, req GenerateContentRequest) (GenerateContentResponse, error) {
	if c.apiKey == "" {
		return GenerateContentResponse{}, fmt.Errorf("gemini: api key is empty")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return GenerateContentResponse{}, fmt.Errorf("gemini: marshal request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return GenerateContentResponse{}, fmt.Errorf("gemini: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		metrics.ObserveNetworkRequest("gemini", "generate_content", model, start, err)
		return GenerateContentResponse{}, fmt.Errorf("gemini: do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveNetworkRequest("gemini", "generate_content", model, start, err)
		return GenerateContentResponse{}, fmt.Errorf("gemini: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var apiErr apiErrorResponse
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Message != "" {
			err = fmt.Errorf("gemini: %s", apiErr.Error.Message)
		} else {
			err = fmt.Errorf("gemini: unexpected status %d", resp.StatusCode)
		}
		metrics.ObserveNetworkRequest("gemini", "generate_content", model, start, err)
		return GenerateContentResponse{}, err
	}
	var out GenerateContentResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		metrics.ObserveNetworkRequest("gemini", "generate_content", model, start, err)
		return GenerateContentResponse{}, fmt.Errorf("gemini: decode response: %w", err)
	}
	metrics.ObserveNetworkRequest("gemini", "generate_content", model, start, nil)
	if out.UsageMetadata != nil {
		metrics.ObserveLLMGeneration(model, time.Since(start), out.UsageMetadata.PromptTokenCount, out.UsageMetadata.CandidatesTokenCount, out.UsageMetadata.TotalTokenCount)
	}
	return out, nil
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
