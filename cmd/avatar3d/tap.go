package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/normanking/interviewavatar/internal/avatar3d"
)

type tapMessage struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Frame *avatar3d.Frame `json:"frame"`
	Data  map[string]any  `json:"data"`
}

// runTap connects to a preview server's frame socket and prints one line
// per message until the connection closes.
func runTap(addr string, w io.Writer) error {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws/frames"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u.String(), err)
	}
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		var msg tapMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		fmt.Fprintln(w, formatTap(msg))
	}
}

func formatTap(msg tapMessage) string {
	if msg.Type == "frame" && msg.Frame != nil {
		f := msg.Frame
		return fmt.Sprintf("#%-6d %-8s level=%.3f mouth=%.3f blink=%.3f amp=%.3f speaking=%t",
			f.Seq, f.Mode, f.Level, f.MouthOpen, f.Blink, f.Amplitude, f.Speaking)
	}
	return fmt.Sprintf("%s %s %v", msg.Type, msg.Event, msg.Data)
}
