package server

import (
	"strings"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/it-spirit/spiritsearch/common/logger"
	"github.com/it-spirit/spiritsearch/config"
	"github.com/it-spirit/spiritsearch/feedback"
	"github.com/it-spirit/spiritsearch/orchestrator"
	"github.com/it-spirit/spiritsearch/schema"
)

// Server is the HTTP transport: the search endpoint, feedback recording, a
// liveness probe and the Prometheus scrape endpoint.
type Server struct {
	app      *fiber.App
	orch     *orchestrator.Orchestrator
	feedback *feedback.Store
}

// New builds the fiber app and registers routes and middleware.
func New(cfg config.ServerConfig, orch *orchestrator.Orchestrator, fb *feedback.Store) *Server {
	app := fiber.New(fiber.Config{
		AppName:      "spiritsearch",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // fusion responses can take a while
		BodyLimit:    1 * 1024 * 1024,
	})

	s := &Server{app: app, orch: orch, feedback: fb}

	app.Use(recover.New())

	prom := fiberprometheus.New("spiritsearch")
	prom.RegisterAt(app, "/metrics")
	app.Use(prom.Middleware)

	origins := cfg.CORSOrigins
	if origins == "" {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	app.Get("/", s.handleLiveness)
	app.Post("/api/search", s.handleSearch)
	app.Post("/api/feedback", s.handleFeedback)

	return s
}

func (s *Server) handleLiveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleSearch parses the request and runs the pipeline. Pipeline outcomes,
// including failures, are always HTTP 200 with a typed envelope; only a
// malformed body or a missing query is a client error.
func (s *Server) handleSearch(c *fiber.Ctx) error {
	var req schema.SearchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.Query) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "query is required"})
	}
	resp := s.orch.Handle(c.UserContext(), req)
	return c.JSON(resp)
}

func (s *Server) handleFeedback(c *fiber.Ctx) error {
	if s.feedback == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "feedback store not configured"})
	}
	var entry feedback.Entry
	if err := c.BodyParser(&entry); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := s.feedback.Record(c.UserContext(), entry); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// Listen blocks serving HTTP on the given port.
func (s *Server) Listen(addr string) error {
	logger.Infof("server: listening on %s", addr)
	return s.app.Listen(addr)
}

// Shutdown drains connections and stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
