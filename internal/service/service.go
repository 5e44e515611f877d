// Package service runs every registered spam strategy against a piece of content.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"aispam/internal/classifier"
	"aispam/internal/config"
	"aispam/internal/formatter"
)

// Outcome is the result of one strategy. Exactly one of Verdict and Err is set.
type Outcome struct {
	Strategy string
	Verdict  *classifier.Verdict
	Err      error
}

type Service struct {
	registry []classifier.Classifier
	limit    int
	logger   *slog.Logger
}

func New(logger *slog.Logger, registry ...classifier.Classifier) *Service {
	return &Service{
		registry: registry,
		limit:    -1,
		logger:   logger.With("component", "service"),
	}
}

// WithMaxConcurrency bounds the strategies in flight for one Classify call.
// n <= 0 means no bound.
func (s *Service) WithMaxConcurrency(n int) *Service {
	if n <= 0 {
		n = -1
	}
	s.limit = n
	return s
}

// NewFromConfig builds one strategy per configured provider. They share client.
func NewFromConfig(cfg *config.Config, client *http.Client, logger *slog.Logger) (*Service, error) {
	registry := make([]classifier.Classifier, 0, len(cfg.Strategies))

	for _, sc := range cfg.Strategies {
		opts := []classifier.Option{
			classifier.WithLogger(logger),
			classifier.WithThresholds(cfg.Thresholds.User, cfg.Thresholds.Resource),
		}
		if client != nil {
			opts = append(opts, classifier.WithHTTPClient(client))
		}
		if sc.Policy != "" {
			p, err := classifier.ParsePolicy(sc.Policy)
			if err != nil {
				return nil, fmt.Errorf("strategy %s: %w", sc.Name, err)
			}
			opts = append(opts, classifier.WithPolicy(p))
		}

		var (
			s   *classifier.Strategy
			err error
		)
		switch sc.Protocol {
		case "openai":
			s, err = classifier.NewOpenAI(sc.Name, sc.ProviderConfig(), opts...)
		case "scaleway":
			s, err = classifier.NewScaleway(sc.Name, sc.ProviderConfig(), opts...)
		default:
			err = fmt.Errorf("strategy %s: unknown protocol %q", sc.Name, sc.Protocol)
		}
		if err != nil {
			return nil, err
		}

		logger.Info("strategy registered", "strategy", s.Name(), "protocol", sc.Protocol, "policy", s.Policy())
		registry = append(registry, s)
	}

	return New(logger, registry...).WithMaxConcurrency(cfg.Classify.MaxConcurrency), nil
}

func (s *Service) Strategies() []string {
	names := make([]string, len(s.registry))
	for i, c := range s.registry {
		names[i] = c.Name()
	}
	return names
}

// Classify cleans text and runs every strategy on it concurrently. It
// returns nil when nothing is left to classify after cleanup. A failing
// strategy does not stop the others.
func (s *Service) Classify(ctx context.Context, text, organizationHost, resourceClass string) []Outcome {
	text = formatter.Cleanup(text)
	if text == "" {
		s.logger.Debug("blank content skipped", "resource_class", resourceClass)
		return nil
	}

	req := classifier.Request{
		Text:             text,
		OrganizationHost: organizationHost,
		ResourceClass:    resourceClass,
	}

	// Failures are recorded per Outcome and never returned to the group, so
	// one strategy failing cannot cancel the others.
	outcomes := make([]Outcome, len(s.registry))
	var g errgroup.Group
	g.SetLimit(s.limit)
	for i, c := range s.registry {
		g.Go(func() error {
			v, err := c.Classify(ctx, req)
			outcomes[i] = Outcome{Strategy: c.Name(), Verdict: v, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		if o.Err != nil {
			s.logger.Warn("strategy failed", "strategy", o.Strategy, "error", o.Err)
			continue
		}
		s.logger.Info("strategy verdict", "strategy", o.Strategy, "score", o.Verdict.Score(), "log", o.Verdict.Log())
	}

	return outcomes
}
