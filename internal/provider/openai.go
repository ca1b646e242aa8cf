package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint.
// xAI's API is one.
type OpenAIProvider struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewOpenAI(name, baseURL, apiKey, model string) *OpenAIProvider {
	return &OpenAIProvider{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		// per-call deadlines come from the context
		client: &http.Client{},
	}
}

func (o *OpenAIProvider) Name() string { return o.name }

func (o *OpenAIProvider) ModelName() string { return o.model }

func (o *OpenAIProvider) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", o.baseURL+"/models", nil)
	if err != nil {
		return nil, err
	}
	o.authorize(req)
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, transportError(o.name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, statusError(o.name, resp.StatusCode, body)
	}
	var result struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	models := make([]string, len(result.Data))
	for i, m := range result.Data {
		models[i] = m.ID
	}
	return models, nil
}

type oaiRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	Temperature float64      `json:"temperature"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Stream      bool         `json:"stream"`
}

// oaiMessage content is either a plain string or a list of parts when
// images are attached.
type oaiMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type oaiPart struct {
	Type     string       `json:"type"`
	Text     string       `json:"text,omitempty"`
	ImageURL *oaiImageURL `json:"image_url,omitempty"`
}

type oaiImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type oaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

func toOAIMessage(m Message) oaiMessage {
	if len(m.Images) == 0 {
		return oaiMessage{Role: string(m.Role), Content: m.Content}
	}
	parts := []oaiPart{{Type: "text", Text: m.Content}}
	for _, img := range m.Images {
		mime := img.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		detail := img.Detail
		if detail == "" {
			detail = "high"
		}
		parts = append(parts, oaiPart{
			Type: "image_url",
			ImageURL: &oaiImageURL{
				URL:    fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(img.Data)),
				Detail: detail,
			},
		})
	}
	return oaiMessage{Role: string(m.Role), Content: parts}
}

func (o *OpenAIProvider) Complete(ctx context.Context, r Request) (string, error) {
	msgs := make([]oaiMessage, len(r.Messages))
	for i, m := range r.Messages {
		msgs[i] = toOAIMessage(m)
	}

	payload, err := json.Marshal(oaiRequest{
		Model:       o.model,
		Messages:    msgs,
		Temperature: r.Temperature,
		MaxTokens:   r.MaxTokens,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	o.authorize(req)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", transportError(o.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transportError(o.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", statusError(o.name, resp.StatusCode, body)
	}

	var result oaiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", &Error{Kind: KindMalformed, Provider: o.name, Message: "undecodable response body", Err: err}
	}
	if len(result.Choices) == 0 {
		return "", &Error{Kind: KindMalformed, Provider: o.name, Message: "response has no choices"}
	}
	return result.Choices[0].Message.Content, nil
}

func (o *OpenAIProvider) authorize(req *http.Request) {
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}
}
