package classifier

import (
	"bytes"
	"context"
	"net/http"

	"github.com/goccy/go-json"
)

// Scaleway speaks the classification endpoint protocol of Scaleway managed
// inference. Every failure propagates unless configured otherwise.
type Scaleway struct{}

type scalewayRequest struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

func NewScaleway(name string, cfg ProviderConfig, opts ...Option) (*Strategy, error) {
	return New(name, cfg, Scaleway{}, opts...)
}

func (Scaleway) Name() string          { return "scaleway" }
func (Scaleway) DefaultPolicy() Policy { return PolicyPropagate }

func (Scaleway) Build(ctx context.Context, cfg ProviderConfig, req Request) (*http.Request, error) {
	body, err := json.Marshal(scalewayRequest{Text: req.Text, Type: req.ResourceClass})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", mimeJSON)
	httpReq.Header.Set("Accept", mimeJSON)
	httpReq.Header.Set("X-Auth-Token", cfg.Secret)

	// The remote side routes and audits per tenant on these.
	if host := req.OrganizationHost; host != "" {
		httpReq.Header.Set("X-Host", host)
		httpReq.Header.Set("X-Decidim-Host", host)
		httpReq.Header.Set("X-Decidim", host)
		httpReq.Host = host
	}

	return httpReq, nil
}

func (Scaleway) Interpret(resp Response) (any, error) {
	body := string(resp.Body)

	switch {
	case isSuccess(resp.Status):
		if blank(resp.Body) {
			return "", nil
		}
		var parsed map[string]any
		if err := json.Unmarshal(resp.Body, &parsed); err != nil {
			return nil, &Error{
				Kind:    KindInvalidEntity,
				Message: "Third party service response isn't valid JSON",
				Body:    body,
				Err:     err,
			}
		}
		value, ok := parsed["spam"]
		if !ok {
			return "", nil
		}
		return value, nil
	case resp.Status == http.StatusForbidden:
		return nil, &Error{
			Kind:    KindForbidden,
			Message: "Access forbidden to the third party service. Check your API key or permissions.",
			Body:    body,
		}
	case resp.Status == http.StatusRequestTimeout, resp.Status == http.StatusGatewayTimeout:
		return nil, &Error{Kind: KindTimeout, Message: orDefault(body, "Request timed out"), Body: body}
	case resp.Status == http.StatusServiceUnavailable:
		return nil, &Error{Kind: KindServiceUnavailable, Message: orDefault(body, "Service unavailable"), Body: body}
	default:
		return nil, &Error{
			Kind:    KindInvalidEntity,
			Message: "Received unexpected response from third party service: " + body,
			Body:    body,
		}
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
