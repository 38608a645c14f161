// Package preview serves a browser view of the animated avatar. The page
// receives every Nth frame over a websocket, reports canvas resizes back,
// and can start or stop speech clips through a small HTTP API.
package preview

import (
	"context"
	"net"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/normanking/interviewavatar/internal/asset"
	"github.com/normanking/interviewavatar/internal/audio"
	"github.com/normanking/interviewavatar/internal/avatar3d"
	"github.com/normanking/interviewavatar/internal/bus"
	"github.com/normanking/interviewavatar/internal/logging"
)

// Sessions is the part of the audio manager the API drives.
type Sessions interface {
	StartSession(ctx context.Context, url string) (*audio.Session, error)
	StopSession()
	Current() *audio.Session
}

// Options configures a Server.
type Options struct {
	Addr         string
	FrameEvery   int // broadcast every Nth rendered frame
	StaticDir    string
	AllowOrigins string // comma separated CORS allow list; empty means Addr's origin

	Sessions Sessions
	Viewport *Viewport
	EventBus *bus.EventBus
	Logger   *logging.Logger
}

// Server is the preview web server. It implements avatar3d.Host.
type Server struct {
	app        *fiber.App
	addr       string
	frameEvery uint64

	sessions Sessions
	viewport *Viewport
	logger   *logging.Logger

	frames *Hub
	logs   *Hub

	cancel context.CancelFunc
	hubsWG sync.WaitGroup

	mu       sync.RWMutex
	last     avatar3d.Frame
	rendered uint64
	rig      *asset.Report
}

const logsComponent = "preview.logs"

// previewOrigins returns the origins a page served from addr can have.
// Wildcard and empty hosts map to the loopback names.
func previewOrigins(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil || port == "" {
		port = "8686"
	}
	switch host {
	case "", "0.0.0.0", "::":
		return "http://localhost:" + port + ",http://127.0.0.1:" + port
	}
	return "http://" + net.JoinHostPort(host, port)
}

// NewServer creates the server and registers its routes. Hubs start with
// Serve.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	every := opts.FrameEvery
	if every <= 0 {
		every = 1
	}
	viewport := opts.Viewport
	if viewport == nil {
		viewport = NewViewport(opts.EventBus)
	}

	s := &Server{
		addr:       opts.Addr,
		frameEvery: uint64(every),
		sessions:   opts.Sessions,
		viewport:   viewport,
		logger:     logger,
		frames:     NewHub("frames", logger.Component("preview")),
		logs:       NewHub("logs", logger.Component(logsComponent)),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Interview Avatar Preview",
		DisableStartupMessage: true,
	})
	origins := opts.AllowOrigins
	if origins == "" {
		origins = previewOrigins(opts.Addr)
	}
	app.Use(cors.New(cors.Config{AllowOrigins: origins}))
	if opts.StaticDir != "" {
		app.Static("/", opts.StaticDir)
	}

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/logs", s.handleGetLogs)
	api.Post("/session", s.handleStartSession)
	api.Delete("/session", s.handleStopSession)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/frames", websocket.New(s.handleFramesWS))
	app.Get("/ws/logs", websocket.New(s.handleLogsWS))

	s.app = app

	logger.SetOnLog(func(e logging.LogEntry) {
		// The log hub's own warnings would feed back into it.
		if e.Component == logsComponent {
			return
		}
		s.logs.BroadcastJSON(e)
	})
	if opts.EventBus != nil {
		opts.EventBus.SubscribeMultiple(bus.AllEventTypes, s.forwardEvent)
	}
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Viewport returns the viewport fed by browser resizes.
func (s *Server) Viewport() *Viewport {
	return s.viewport
}

// Start listens on the configured address and blocks until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve runs the hubs and serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.hubsWG.Add(2)
	go func() { defer s.hubsWG.Done(); s.frames.Run(ctx) }()
	go func() { defer s.hubsWG.Done(); s.logs.Run(ctx) }()

	s.logger.Info("preview", "Preview server listening", map[string]interface{}{"addr": ln.Addr().String()})
	return s.app.Listener(ln)
}

// Shutdown closes every websocket client and stops the server.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		s.hubsWG.Wait()
	}
	return s.app.Shutdown()
}

// Render records the frame and broadcasts every Nth one. It is called on
// the frame loop and never blocks.
func (s *Server) Render(f avatar3d.Frame) {
	s.mu.Lock()
	s.last = f
	s.rendered++
	n := s.rendered
	s.mu.Unlock()

	if n%s.frameEvery != 0 {
		return
	}
	if err := s.frames.BroadcastJSON(frameMessage{Type: "frame", Frame: f}); err != nil {
		s.logger.Warn("preview", "Frame encode failed", map[string]interface{}{"error": err.Error()})
	}
}

// SetRigStatus records the asset load outcome shown by /api/status.
func (s *Server) SetRigStatus(rep asset.Report) {
	s.mu.Lock()
	s.rig = &rep
	s.mu.Unlock()
}

// Rendered returns how many frames Render has seen.
func (s *Server) Rendered() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rendered
}

func (s *Server) forwardEvent(e bus.Event) {
	s.frames.BroadcastJSON(eventMessage{Type: "event", Event: string(e.Type), Data: e.Data})
}

var _ avatar3d.Host = (*Server)(nil)
