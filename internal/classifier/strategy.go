package classifier

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const (
	mimeJSON         = "application/json"
	maxBodyBytes     = 1 << 20
	defaultThreshold = 0.75
)

// ProviderConfig is read-only once a strategy is built.
type ProviderConfig struct {
	Endpoint        string
	Secret          string
	Model           string
	SystemMessage   string
	MaxTokens       int
	Temperature     float64
	TopP            float64
	PresencePenalty float64
	Stream          bool
}

// Response is the raw reply of the provider.
type Response struct {
	Status int
	Body   []byte
}

// Protocol is the wire contract of one provider.
type Protocol interface {
	Name() string
	Build(ctx context.Context, cfg ProviderConfig, req Request) (*http.Request, error)
	// Interpret returns the raw label value found in a response, or an *Error.
	Interpret(resp Response) (any, error)
	DefaultPolicy() Policy
}

type Policy int

const (
	// PolicyDegrade turns invalid entity and output format failures into a not-spam verdict.
	PolicyDegrade Policy = iota + 1
	// PolicyPropagate returns every failure to the caller.
	PolicyPropagate
)

func (p Policy) String() string {
	switch p {
	case PolicyDegrade:
		return "degrade"
	case PolicyPropagate:
		return "propagate"
	default:
		return "unknown"
	}
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "degrade":
		return PolicyDegrade, nil
	case "propagate":
		return PolicyPropagate, nil
	default:
		return 0, fmt.Errorf("unknown policy %q", s)
	}
}

// Strategy classifies content through one remote provider. It holds no
// per-call state and is safe for concurrent use.
type Strategy struct {
	name              string
	cfg               ProviderConfig
	protocol          Protocol
	policy            Policy
	userThreshold     float64
	resourceThreshold float64
	client            *http.Client
	logger            *slog.Logger
}

type Option func(*Strategy)

// WithHTTPClient replaces the default TLS client. The client is copied and
// never follows redirects.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Strategy) { s.client = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Strategy) { s.logger = l }
}

func WithPolicy(p Policy) Option {
	return func(s *Strategy) { s.policy = p }
}

func WithThresholds(user, resource float64) Option {
	return func(s *Strategy) {
		s.userThreshold = user
		s.resourceThreshold = resource
	}
}

func New(name string, cfg ProviderConfig, protocol Protocol, opts ...Option) (*Strategy, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("strategy %s: parse endpoint: %w", name, err)
	}
	if u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("strategy %s: endpoint must be an https URL, got %q", name, cfg.Endpoint)
	}

	s := &Strategy{
		name:              name,
		cfg:               cfg,
		protocol:          protocol,
		policy:            protocol.DefaultPolicy(),
		userThreshold:     defaultThreshold,
		resourceThreshold: defaultThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		s.client = &http.Client{
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		}
	}
	client := *s.client
	client.CheckRedirect = noRedirect
	s.client = &client
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "classifier", "strategy", name, "protocol", protocol.Name())

	return s, nil
}

func (s *Strategy) Name() string   { return s.name }
func (s *Strategy) Policy() Policy { return s.policy }

// Train is a no-op, the remote model cannot be trained through this interface.
func (s *Strategy) Train(_, _ string) error { return nil }

func (s *Strategy) Untrain(_, _ string) error { return nil }

func (s *Strategy) threshold() float64 {
	if s.name == UserStrategyName {
		return s.userThreshold
	}
	return s.resourceThreshold
}

// Classify performs exactly one request against the provider.
func (s *Strategy) Classify(ctx context.Context, req Request) (*Verdict, error) {
	s.logger.Debug("classifying content", "resource_class", req.ResourceClass, "host", req.OrganizationHost)

	httpReq, err := s.protocol.Build(ctx, s.cfg, req)
	if err != nil {
		return nil, fmt.Errorf("strategy %s: build request: %w", s.name, err)
	}

	resp, err := s.send(httpReq, req.OrganizationHost)
	if err != nil {
		s.logger.Error("request failed", "endpoint", s.cfg.Endpoint, "host", req.OrganizationHost, "error", err)
		return nil, err
	}
	s.logger.Debug("received response", "status", resp.Status, "body", string(resp.Body))

	value, err := s.protocol.Interpret(resp)
	if err == nil {
		label, ok := validLabel(value)
		if ok {
			v := newVerdict(label, s.threshold())
			s.logger.Info("content classified", "label", label, "score", v.Score())
			return v, nil
		}
		err = invalidOutputFormat(value, string(resp.Body))
	}

	var te *Error
	if errors.As(err, &te) {
		te.Status = resp.Status
		te.Endpoint = s.cfg.Endpoint
		te.Host = req.OrganizationHost
		if te.Body == "" {
			te.Body = string(resp.Body)
		}
	}

	s.logger.Error("classification failed",
		"endpoint", s.cfg.Endpoint,
		"host", req.OrganizationHost,
		"status", resp.Status,
		"body", string(resp.Body),
		"policy", s.policy,
		"error", err,
	)

	if s.policy == PolicyDegrade && Degradable(err) {
		v := newVerdict(LabelNotSpam, s.threshold())
		v.Degraded = err
		return v, nil
	}
	return nil, err
}

func (s *Strategy) send(req *http.Request, host string) (Response, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return Response{}, s.transportError(err, host)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Response{}, s.transportError(err, host)
	}
	return Response{Status: resp.StatusCode, Body: body}, nil
}

// noRedirect hands 3xx responses back to the protocol as they are.
func noRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

func (s *Strategy) transportError(err error, host string) *Error {
	return &Error{
		Kind:     KindTransport,
		Message:  fmt.Sprintf("Error during request to third party service (url/%s) (Host/%s)", s.cfg.Endpoint, host),
		Endpoint: s.cfg.Endpoint,
		Host:     host,
		Err:      err,
	}
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func blank(b []byte) bool {
	return strings.TrimSpace(string(b)) == ""
}
