package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/nosuite/internal/common"
	"github.com/dmitrijs2005/nosuite/internal/logging"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendQueue  = 64
)

// Peer is the side of a session a Handler sees.
type Peer interface {
	Join(email, app, clientID string)
}

// Handler executes what a session receives.
type Handler interface {
	// Register validates the credentials of req and joins the peer to the
	// owner's room.
	Register(ctx context.Context, p Peer, req Request) error
	// Storage runs a batch and returns one response per command.
	Storage(ctx context.Context, p Peer, cmds []Command) []any
}

// Session is one websocket connection. Frames are read and handled in
// order; writes go through a single writer goroutine.
type Session struct {
	id      string
	conn    *websocket.Conn
	hub     *Hub
	handler Handler
	log     logging.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	subs map[string]*Subscriber
}

// Server upgrades HTTP requests to sessions.
type Server struct {
	hub      *Hub
	handler  Handler
	upgrader websocket.Upgrader
	maxBytes int64
	log      logging.Logger

	wg       sync.WaitGroup
	mu       sync.Mutex
	sessions map[*Session]struct{}
	closed   bool
}

func NewServer(hub *Hub, handler Handler, maxMessageBytes int64, log logging.Logger) *Server {
	return &Server{
		hub:     hub,
		handler: handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// origins are checked per command against the token scope
			CheckOrigin: func(*http.Request) bool { return true },
		},
		maxBytes: maxMessageBytes,
		log:      log.With("module", "realtime"),
		sessions: make(map[*Session]struct{}),
	}
}

func (srv *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.log.Warn(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	s := &Session{
		id:      uuid.NewString(),
		conn:    conn,
		hub:     srv.hub,
		handler: srv.handler,
		log:     srv.log,
		send:    make(chan []byte, sendQueue),
		done:    make(chan struct{}),
		subs:    make(map[string]*Subscriber),
	}
	s.log = srv.log.With("conn", s.id)

	srv.mu.Lock()
	if srv.closed {
		srv.mu.Unlock()
		conn.Close()
		return
	}
	srv.sessions[s] = struct{}{}
	srv.wg.Add(2)
	srv.mu.Unlock()

	go func() {
		defer srv.wg.Done()
		s.writeLoop()
	}()
	go func() {
		defer srv.wg.Done()
		s.readLoop(srv.maxBytes)
		srv.mu.Lock()
		delete(srv.sessions, s)
		srv.mu.Unlock()
	}()
}

// Close ends every live session and refuses new ones.
func (srv *Server) Close() {
	srv.mu.Lock()
	srv.closed = true
	live := make([]*Session, 0, len(srv.sessions))
	for s := range srv.sessions {
		live = append(live, s)
	}
	srv.mu.Unlock()

	for _, s := range live {
		s.close()
	}
}

// Wait blocks until every session has ended.
func (srv *Server) Wait() {
	srv.wg.Wait()
}

func (s *Session) ID() string {
	return s.id
}

// Join registers the session for email and app under clientID. Joining the
// same triple twice is a no-op.
func (s *Session) Join(email, app, clientID string) {
	key := email + "\x00" + app + "\x00" + clientID

	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return
	default:
	}
	if _, ok := s.subs[key]; ok {
		return
	}
	sub := NewSubscriber(s.id, email, app, clientID, s.enqueue)
	s.subs[key] = sub
	s.hub.Register(sub)
}

// enqueue hands a frame to the writer without blocking.
func (s *Session) enqueue(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		close(s.done)
		for key, sub := range s.subs {
			s.hub.Unregister(sub)
			delete(s.subs, key)
		}
		s.mu.Unlock()
		s.conn.Close()
	})
}

func (s *Session) readLoop(maxBytes int64) {
	defer s.close()

	if maxBytes > 0 {
		s.conn.SetReadLimit(maxBytes)
	}
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug(ctx, "websocket closed", "error", err)
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))

		reply := s.handle(ctx, data)
		frame, err := json.Marshal(reply)
		if err != nil {
			s.log.Error(ctx, "encode reply", "error", err)
			continue
		}
		if !s.enqueue(frame) {
			s.log.Warn(ctx, "reply dropped, client too slow")
			return
		}
	}
}

func (s *Session) handle(ctx context.Context, data []byte) Reply {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Reply{Type: TypeError, Error: "Bad request"}
	}

	switch req.Type {
	case TypeRegister:
		if err := s.handler.Register(ctx, s, req); err != nil {
			return Reply{ID: req.ID, Type: TypeRegister, Error: common.PublicMessage(err)}
		}
		return Reply{ID: req.ID, Type: TypeRegister, Success: true}
	case TypeStorage:
		return Reply{ID: req.ID, Type: TypeStorage, Responses: s.handler.Storage(ctx, s, req.Cmds)}
	default:
		return Reply{ID: req.ID, Type: TypeError, Error: "Unknown message type"}
	}
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case frame := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}
