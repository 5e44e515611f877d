package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"aispam/internal/domain"
	"aispam/internal/service"
)

type Classifier interface {
	Classify(ctx context.Context, text, organizationHost, resourceClass string) []service.Outcome
	Strategies() []string
}

type Server struct {
	echo       *echo.Echo
	classifier Classifier
	hub        *EventHub
	logger     *slog.Logger
}

type classifyRequest struct {
	Text             string `json:"text"`
	OrganizationHost string `json:"organization_host"`
	ResourceClass    string `json:"resource_class"`
}

type classifyResponse struct {
	Skipped    bool                    `json:"skipped"`
	Strategies []domain.StrategyReport `json:"strategies"`
}

func NewServer(cl Classifier, logger *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:       e,
		classifier: cl,
		hub:        NewEventHub(),
		logger:     logger.With("component", "api"),
	}

	s.routes()

	return s
}

func (s *Server) routes() {
	s.echo.GET("/health", s.health)
	s.echo.GET("/api/strategies", s.strategies)
	s.echo.POST("/api/classify", s.classify)
	s.echo.GET("/api/events", s.events)
}

func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown ends open event streams first, they would otherwise hold the
// server until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.echo.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// Broadcast pushes one verdict event to every /api/events subscriber.
func (s *Server) Broadcast(msg string) {
	s.hub.Publish([]byte(msg))
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) strategies(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]string{"strategies": s.classifier.Strategies()})
}

func (s *Server) classify(c echo.Context) error {
	var req classifyRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("bad classify request", "error", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.Text) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "text required"})
	}

	outcomes := s.classifier.Classify(c.Request().Context(), req.Text, req.OrganizationHost, req.ResourceClass)
	if outcomes == nil {
		return c.JSON(http.StatusOK, classifyResponse{Skipped: true, Strategies: []domain.StrategyReport{}})
	}

	resp := classifyResponse{Strategies: service.Report(outcomes)}
	if data, err := json.Marshal(resp); err == nil {
		s.Broadcast(string(data))
	}
	return c.JSON(http.StatusOK, resp)
}
