package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agentgate/internal/catalog"
	"agentgate/internal/chat"
	"agentgate/internal/config"
	"agentgate/internal/observability"
	"agentgate/internal/translator"
)

const (
	maxBodyBytes        = 1 << 20 // 1 MiB
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	writeTimeout        = 45 * time.Second
	idleTimeout         = 120 * time.Second
)

var endpoints = []string{
	"GET  /",
	"GET  /health",
	"GET  /metrics",
	"GET  /v1/models",
	"GET  /v1/models/{id}",
	"POST /v1/chat/completions",
}

type Server struct {
	cfg     config.Config
	catalog *catalog.Catalog
	chat    *chat.Service
	app     *echo.Echo
	address string
	started time.Time
	now     func() time.Time
}

// New constructs an HTTP server wired with routing and middleware.
func New(cfg config.Config, cat *catalog.Catalog, svc *chat.Service) (*Server, error) {
	if cat == nil {
		return nil, errors.New("catalog must not be nil")
	}
	if svc == nil {
		return nil, errors.New("chat service must not be nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = openAIErrorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(observability.Middleware())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency:   true,
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"request_id", v.RequestID,
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.Info("request", attrs...)
			return nil
		},
	}))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'; form-action 'none'",
	}))

	srv := &Server{
		cfg:     cfg,
		catalog: cat,
		chat:    svc,
		app:     e,
		address: fmt.Sprintf(":%d", cfg.Server.Port),
		started: time.Now(),
		now:     time.Now,
	}

	srv.registerRoutes()

	return srv, nil
}

// ServeHTTP lets the server be mounted directly, mainly by tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	printStartupBanner(s.cfg.Service.Name, s.cfg.Server.Port)
	slog.Info("starting server", "addr", s.address, "agent", s.chat.AgentName())

	httpServer := &http.Server{
		Addr:         s.address,
		Handler:      s.app,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		slog.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.app.GET("/", s.handleRoot)
	s.app.GET("/health", s.handleHealth)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.app.GET("/v1/models", s.handleListModels)
	s.app.GET("/v1/models/:id", s.handleGetModel)
	s.app.POST("/v1/chat/completions", s.handleChatCompletions)
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"message": s.cfg.Service.Name + " OpenAI-compatible API",
		"version": s.cfg.Service.Version,
		"agent":   s.chat.AgentName(),
		"endpoints": map[string]string{
			"models":  "/v1/models",
			"chat":    "/v1/chat/completions",
			"health":  "/health",
			"metrics": "/metrics",
		},
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "ok",
		"agent":          s.chat.AgentName(),
		"uptime_seconds": int64(s.now().Sub(s.started).Seconds()),
	})
}

func (s *Server) handleListModels(c echo.Context) error {
	return c.JSON(http.StatusOK, translator.FromModelInfos(s.catalog.List()))
}

func (s *Server) handleGetModel(c echo.Context) error {
	info, err := s.catalog.Get(c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, translator.FromModelInfo(info))
}

func (s *Server) handleChatCompletions(c echo.Context) error {
	var req translator.ChatCompletionRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	prepared, err := s.chat.Prepare(req)
	if err != nil {
		return toHTTPError(err)
	}
	id := translator.NewCompletionID()
	created := s.now().Unix()

	if prepared.Stream {
		return s.streamCompletion(c, prepared, id, created)
	}

	completion, err := s.chat.Complete(c.Request().Context(), prepared)
	if err != nil {
		return toHTTPError(err)
	}

	resp := translator.NewCompletion(id, prepared.Model, created, completion.Text, &completion.Usage)
	return c.JSON(http.StatusOK, resp)
}

func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return requestError{
				Status:  http.StatusBadRequest,
				Message: "request body is required",
				Type:    typeInvalidRequest,
			}
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return requestError{
				Status:  http.StatusRequestEntityTooLarge,
				Message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
				Type:    typeInvalidRequest,
			}
		}
		return requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("invalid JSON payload: %v", err),
			Type:    typeInvalidRequest,
		}
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "request body must contain a single JSON object",
			Type:    typeInvalidRequest,
		}
	}
	return nil
}

func printStartupBanner(name string, port int) {
	host := "127.0.0.1"
	fmt.Println()
	fmt.Printf("%s ready\n", name)
	fmt.Printf("Listening on http://%s:%d\n", host, port)
	fmt.Println("Endpoints:")
	for _, endpoint := range endpoints {
		fmt.Printf("  %s\n", endpoint)
	}
	fmt.Printf("Example:\n  curl http://%s:%d/v1/chat/completions -H 'Content-Type: application/json' -d '{\"model\":\"alfred-butler\",\"messages\":[{\"role\":\"user\",\"content\":\"hello\"}]}'\n\n", host, port)
}
