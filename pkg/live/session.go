package live

import (
	"bytes"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/recera/kgview/pkg/engine"
	"github.com/recera/kgview/pkg/render"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	maxMessage = 64 * 1024
)

// Session is one connected page and the engine it drives.
type Session struct {
	ID   string
	conn *websocket.Conn
	eng  *engine.Engine
	log  *zap.Logger

	ctrl      chan []byte // binary control replies
	closeChan chan struct{}
	closeOnce sync.Once

	lastSVG      string
	lastSeq      uint64
	lastEntities []byte
}

func newSession(id string, conn *websocket.Conn, eng *engine.Engine, log *zap.Logger) *Session {
	return &Session{
		ID:        id,
		conn:      conn,
		eng:       eng,
		log:       log,
		ctrl:      make(chan []byte, 16),
		closeChan: make(chan struct{}),
	}
}

// Engine returns the session's engine.
func (s *Session) Engine() *engine.Engine { return s.eng }

// close asks the session to stop. run does the cleanup.
func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.closeChan) })
}

// run serves the connection until either side closes it, then unmounts the
// engine.
func (s *Session) run() {
	frames, unsubscribe := s.eng.Subscribe()
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writer(frames)
	}()

	s.log.Info("live session connected")
	s.reader()

	s.close()
	unsubscribe()
	<-writerDone
	s.conn.Close()
	s.eng.Unmount()
	s.log.Info("live session closed", zap.Uint64("frames_sent", s.lastSeq))
}

func (s *Session) reader() {
	s.conn.SetReadLimit(maxMessage)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// An expired deadline on the raw conn unblocks ReadMessage.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-s.closeChan:
			s.conn.UnderlyingConn().SetReadDeadline(time.Now())
		case <-stop:
		}
	}()

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("unexpected close", zap.Error(err))
			}
			return
		}
		switch messageType {
		case websocket.BinaryMessage:
			s.handleBinaryMessage(data)
		case websocket.TextMessage:
			s.handleTextMessage(data)
		}
	}
}

// writer sends the SVG of each new frame, skipping frames whose markup did
// not change, plus control replies and keepalive pings.
func (s *Session) writer(frames <-chan *render.Frame) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	if !s.write(websocket.BinaryMessage, EncodeControl(ControlHello, 0)) {
		return
	}
	if f := s.eng.Frame(); f != nil && !s.sendFrame(f) {
		return
	}

	for {
		select {
		case f, ok := <-frames:
			if !ok {
				s.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if !s.sendFrame(f) {
				return
			}

		case msg := <-s.ctrl:
			if !s.write(websocket.BinaryMessage, msg) {
				return
			}

		case <-ticker.C:
			if !s.write(websocket.PingMessage, nil) {
				return
			}

		case <-s.closeChan:
			s.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}

func (s *Session) sendFrame(f *render.Frame) bool {
	svg, err := render.RenderSVG(f)
	if err != nil {
		s.log.Error("failed to render frame", zap.Uint64("seq", f.Seq), zap.Error(err))
		return true
	}
	if svg == s.lastSVG {
		return true
	}
	s.lastSVG = svg
	s.lastSeq++
	if !s.write(websocket.TextMessage, []byte(svg)) {
		return false
	}
	return s.sendEntities(f)
}

// sendEntities sends the entities list when it differs from the last one.
func (s *Session) sendEntities(f *render.Frame) bool {
	msg, err := json.Marshal(entitiesMessage(f))
	if err != nil {
		s.log.Error("failed to encode entities", zap.Error(err))
		return true
	}
	if bytes.Equal(msg, s.lastEntities) {
		return true
	}
	s.lastEntities = msg
	return s.write(websocket.TextMessage, msg)
}

func entitiesMessage(f *render.Frame) EntitiesMessage {
	m := EntitiesMessage{Type: "entities", Entities: make([]Entity, 0, len(f.Nodes))}
	for _, n := range f.Nodes {
		m.Entities = append(m.Entities, Entity{
			ID:         n.ID,
			Label:      n.Label,
			Type:       string(n.Type),
			Confidence: n.Confidence,
		})
	}
	return m
}

func (s *Session) write(messageType int, data []byte) bool {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(messageType, data); err != nil {
		s.log.Debug("write failed", zap.Error(err))
		s.close()
		return false
	}
	return true
}

// handleBinaryMessage processes pointer events and control frames.
func (s *Session) handleBinaryMessage(data []byte) {
	if len(data) == 0 {
		return
	}
	switch MessageType(data[0]) {
	case FrameEvent:
		ev, err := DecodePointer(data)
		if err != nil {
			s.log.Debug("failed to decode event", zap.Error(err))
			return
		}
		s.eng.Dispatch(ev)

	case FrameControl:
		name, _, err := DecodeControl(data)
		if err != nil {
			s.log.Debug("failed to decode control frame", zap.Error(err))
			return
		}
		if name == ControlPing {
			select {
			case s.ctrl <- EncodeControl(ControlPong):
			default:
			}
		}
	}
}

// handleTextMessage processes JSON control commands.
func (s *Session) handleTextMessage(data []byte) {
	c, err := ParseControl(data)
	if err != nil {
		s.log.Debug("rejected control message", zap.Error(err))
		return
	}
	if err := c.Apply(s.eng); err != nil {
		s.log.Debug("control message not applied", zap.String("type", c.Type), zap.Error(err))
	}
}
