// Package preview serves live camera frames to browser clients.
//
// It is strictly a consumer: frames arrive through the frame pipeline's
// non-blocking mailboxes and are JPEG-encoded and fanned out over
// websockets. The preview side never opens or reads a camera, so it can
// never contend with recording for a device handle.
package preview

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/courtside/dualcam/internal/log"
	"github.com/courtside/dualcam/pkg/capture"
	"github.com/courtside/dualcam/pkg/pipeline"
	"github.com/courtside/dualcam/pkg/registry"
)

// Feed keys match the pipeline consumer keys the recorder publishes to.
var feeds = []string{"camera1", "camera2"}

// pollInterval is how often each feed polls the pipeline. Preview runs
// well below capture rate; the mailbox keeps only the newest frame.
const pollInterval = 100 * time.Millisecond

// StatusFunc returns a snapshot of recorder/job state for /api/status.
type StatusFunc func() any

// Server is the preview web server.
type Server struct {
	app  *fiber.App
	port string

	reg  *registry.Registry
	pipe *pipeline.Pipeline[capture.Frame]
	hubs map[string]*hub

	status StatusFunc
	stop   chan struct{}
}

// NewServer creates a preview server polling the given pipeline.
func NewServer(port string, reg *registry.Registry, pipe *pipeline.Pipeline[capture.Frame], status StatusFunc) *Server {
	s := &Server{
		port:   port,
		reg:    reg,
		pipe:   pipe,
		hubs:   make(map[string]*hub, len(feeds)),
		status: status,
		stop:   make(chan struct{}),
	}
	for _, feed := range feeds {
		s.hubs[feed] = newHub(feed, s.stop)
	}

	app := fiber.New(fiber.Config{
		AppName:               "dualcam preview",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/devices", s.handleDevices)
	api.Get("/status", s.handleStatus)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/camera/:feed", websocket.New(s.handleCameraWS))

	s.app = app
	return s
}

// Start runs the hubs and poll loops and listens. Blocks.
func (s *Server) Start() error {
	for _, feed := range feeds {
		go s.hubs[feed].run()
		go s.pollLoop(feed)
	}
	log.Info("preview server listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// StartAsync runs the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("preview server stopped", "error", err)
		}
	}()
}

// Shutdown stops the poll loops and the web server.
func (s *Server) Shutdown() error {
	close(s.stop)
	return s.app.Shutdown()
}

// pollLoop moves frames from the pipeline to one feed's hub.
func (s *Server) pollLoop(feed string) {
	h := s.hubs[feed]
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		frame, ok := s.pipe.TryTake(feed)
		if !ok {
			continue
		}
		if h.clientCount() == 0 {
			frame.Close()
			continue
		}

		jpeg, err := capture.EncodeJPEG(frame)
		frame.Close()
		if err != nil {
			log.Warn("preview encode failed", "feed", feed, "error", err)
			continue
		}
		h.send(jpeg)
	}
}

func (s *Server) handleDevices(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 30*time.Second)
	defer cancel()

	devices, err := s.reg.Scan(ctx)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"devices": devices})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	if s.status == nil {
		return c.JSON(fiber.Map{})
	}
	return c.JSON(s.status())
}

func (s *Server) handleCameraWS(c *websocket.Conn) {
	feed := c.Params("feed")
	h, ok := s.hubs[feed]
	if !ok {
		c.Close()
		return
	}
	newClient(h, c).serve()
}
