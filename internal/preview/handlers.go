package preview

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/normanking/interviewavatar/internal/asset"
	"github.com/normanking/interviewavatar/internal/audio"
	"github.com/normanking/interviewavatar/internal/avatar3d"
)

// sessionTimeout bounds a clip fetch started from the API.
const sessionTimeout = 30 * time.Second

type frameMessage struct {
	Type  string         `json:"type"`
	Frame avatar3d.Frame `json:"frame"`
}

type eventMessage struct {
	Type  string         `json:"type"`
	Event string         `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

// clientMessage is what the browser sends on /ws/frames.
type clientMessage struct {
	Type   string `json:"type"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// SessionView is the JSON form of an audio session.
type SessionView struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	State      string `json:"state"`
	DurationMS int64  `json:"duration_ms"`
}

// Status is the body of GET /api/status.
type Status struct {
	Frame    avatar3d.Frame `json:"frame"`
	Rendered uint64         `json:"rendered"`
	Rig      *asset.Report  `json:"rig,omitempty"`
	Session  *SessionView   `json:"session,omitempty"`
	Viewport ViewportState  `json:"viewport"`
	Clients  int            `json:"clients"`
}

// StartSessionRequest is the body of POST /api/session.
type StartSessionRequest struct {
	URL string `json:"url"`
}

func viewSession(sess *audio.Session) *SessionView {
	if sess == nil {
		return nil
	}
	return &SessionView{
		ID:         sess.ID,
		URL:        sess.URL,
		State:      string(sess.State()),
		DurationMS: sess.Duration.Milliseconds(),
	}
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	s.mu.RLock()
	st := Status{
		Frame:    s.last,
		Rendered: s.rendered,
		Rig:      s.rig,
	}
	s.mu.RUnlock()

	if s.sessions != nil {
		st.Session = viewSession(s.sessions.Current())
	}
	st.Viewport = s.viewport.State()
	st.Clients = s.frames.ClientCount()
	return c.JSON(st)
}

func (s *Server) handleGetLogs(c *fiber.Ctx) error {
	return c.JSON(s.logger.GetHistory(c.QueryInt("limit", 200)))
}

func (s *Server) handleStartSession(c *fiber.Ctx) error {
	if s.sessions == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "audio is not configured",
		})
	}

	var req StartSessionRequest
	if err := c.BodyParser(&req); err != nil || req.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "url is required",
		})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), sessionTimeout)
	defer cancel()
	sess, err := s.sessions.StartSession(ctx, req.URL)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(viewSession(sess))
}

func (s *Server) handleStopSession(c *fiber.Ctx) error {
	if s.sessions != nil {
		s.sessions.StopSession()
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleFramesWS streams frames and bus events, and accepts resize
// messages from the page.
func (s *Server) handleFramesWS(conn *websocket.Conn) {
	client := NewClient(s.frames, conn, s.handleClientMessage)
	if data, err := json.Marshal(eventMessage{
		Type:  "viewport",
		Event: "hello",
		Data:  map[string]any{"viewport": s.viewport.State()},
	}); err == nil {
		client.Send(data)
	}
	client.Run()
}

func (s *Server) handleClientMessage(data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Debug("preview", "Ignoring malformed client message", map[string]interface{}{"error": err.Error()})
		return
	}
	switch msg.Type {
	case "resize":
		if err := s.viewport.Resize(msg.Width, msg.Height); err != nil {
			s.logger.Warn("preview", "Rejected resize", map[string]interface{}{
				"width":  msg.Width,
				"height": msg.Height,
			})
		}
	}
}

// handleLogsWS replays recent history, then streams new entries.
func (s *Server) handleLogsWS(conn *websocket.Conn) {
	client := NewClient(s.logs, conn, nil)
	for _, e := range s.logger.GetHistory(100) {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		if !client.Send(data) {
			break
		}
	}
	client.Run()
}
