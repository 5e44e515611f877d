package classifier

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
)

// OpenAI speaks the chat completion protocol of OpenAI compatible services.
// Protocol failures degrade to not-spam unless configured otherwise.
type OpenAI struct{}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model           string        `json:"model"`
	Messages        []chatMessage `json:"messages"`
	MaxTokens       int           `json:"max_tokens"`
	Temperature     float64       `json:"temperature"`
	TopP            float64       `json:"top_p"`
	PresencePenalty float64       `json:"presence_penalty"`
	Stream          bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content any `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func NewOpenAI(name string, cfg ProviderConfig, opts ...Option) (*Strategy, error) {
	return New(name, cfg, OpenAI{}, opts...)
}

func (OpenAI) Name() string          { return "openai" }
func (OpenAI) DefaultPolicy() Policy { return PolicyDegrade }

func (OpenAI) Build(ctx context.Context, cfg ProviderConfig, req Request) (*http.Request, error) {
	body, err := json.Marshal(chatPayload(cfg, req.Text))
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+cfg.Secret)
	httpReq.Header.Set("Content-Type", mimeJSON)
	httpReq.Header.Set("Accept", mimeJSON)

	return httpReq, nil
}

func chatPayload(cfg ProviderConfig, text string) chatRequest {
	return chatRequest{
		Model: cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: cfg.SystemMessage},
			{Role: "user", Content: text},
		},
		MaxTokens:       cfg.MaxTokens,
		Temperature:     cfg.Temperature,
		TopP:            cfg.TopP,
		PresencePenalty: cfg.PresencePenalty,
		Stream:          cfg.Stream,
	}
}

func (OpenAI) Interpret(resp Response) (any, error) {
	if !isSuccess(resp.Status) {
		return nil, &Error{
			Kind:    KindInvalidEntity,
			Message: fmt.Sprintf("Received unexpected response from third party service: %d %s", resp.Status, resp.Body),
			Body:    string(resp.Body),
		}
	}
	if blank(resp.Body) {
		return "", nil
	}

	var cr chatResponse
	if err := json.Unmarshal(resp.Body, &cr); err != nil {
		return nil, &Error{
			Kind:    KindInvalidEntity,
			Message: "Third party service response isn't valid JSON",
			Body:    string(resp.Body),
			Err:     err,
		}
	}
	if len(cr.Choices) == 0 {
		return "", nil
	}
	return cr.Choices[0].Message.Content, nil
}
