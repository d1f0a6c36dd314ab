package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"pkt.systems/pslog"

	"github.com/jxucoder/codegrounds/internal/playground"
)

const (
	pingInterval  = 30 * time.Second
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
)

// EventState is the first event of every stream; it carries a full State.
const EventState playground.EventType = "state"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // The API is served to local editors.
	},
}

func (s *Server) stateEvent(sess *playground.Session) *playground.Event {
	return &playground.Event{
		SessionID: sess.ID,
		Type:      EventState,
		Data:      sess.State(),
		CreatedAt: time.Now().UTC(),
	}
}

func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Subscribe before the snapshot so no change falls between the two.
	bus := s.sessions.Bus()
	ch := bus.Subscribe(sess.ID)
	defer bus.Unsubscribe(sess.ID, ch)

	writeSSE(w, s.stateEvent(sess))
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			writeSSE(w, event)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, event *playground.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
}

// wsCommand is a message sent by a websocket client.
type wsCommand struct {
	Type string `json:"type"`
	Code string `json:"code,omitempty"`
}

type wsError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// wsClient is one websocket connection bound to a session.
type wsClient struct {
	conn   *websocket.Conn
	ctx    context.Context
	sess   *playground.Session
	events chan *playground.Event
	send   chan []byte
	done   chan struct{}
	log    pslog.Logger
}

// handleWebSocket upgrades to a websocket that streams the session's events
// and accepts editor commands.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "session", sess.ID, "err", err)
		return
	}

	bus := s.sessions.Bus()
	c := &wsClient{
		conn:   conn,
		ctx:    pslog.ContextWithLogger(context.WithoutCancel(r.Context()), s.log.With("session", sess.ID)),
		sess:   sess,
		events: bus.Subscribe(sess.ID),
		send:   make(chan []byte, 256),
		done:   make(chan struct{}),
		log:    s.log.With("session", sess.ID),
	}
	c.queue(s.stateEvent(sess))

	go c.writePump()
	go func() {
		c.readPump()
		bus.Unsubscribe(sess.ID, c.events)
	}()
}

// queue marshals v onto the send buffer, dropping it when the buffer is full.
func (c *wsClient) queue(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	default:
		c.log.Debug("websocket send buffer full, dropping message")
	}
}

// readPump outlives the upgrade handler, so commands run on c.ctx.
func (c *wsClient) readPump() {
	defer func() {
		close(c.done)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("websocket read error", "err", err)
			}
			return
		}
		c.handle(message)
	}
}

func (c *wsClient) handle(raw []byte) {
	var cmd wsCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		c.queue(wsError{Type: "error", Error: "invalid message: " + err.Error()})
		return
	}

	var err error
	switch cmd.Type {
	case "edit":
		err = c.sess.Edit(cmd.Code)
	case "undo":
		c.sess.Undo()
	case "redo":
		c.sess.Redo()
	case "format":
		c.sess.Format()
	case "hint":
		_, err = c.sess.RequestHint(c.ctx)
	case "run_tests":
		_, err = c.sess.RunTests(c.ctx)
	case "stop_tests":
		c.sess.StopTests()
	default:
		err = fmt.Errorf("unknown message type %q", cmd.Type)
	}
	if err != nil {
		c.queue(wsError{Type: "error", Error: err.Error()})
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.events:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}
