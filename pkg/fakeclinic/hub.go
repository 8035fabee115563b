package fakeclinic

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type peer struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (p *peer) write(data []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

// hub tracks the live sockets of every user.
type hub struct {
	mu    sync.Mutex
	peers map[string]map[*peer]struct{}
	inbox chan Inbound
}

// Inbound is a frame a client sent over its socket.
type Inbound struct {
	UserID string
	Event  string
	Data   json.RawMessage
}

func newHub() *hub {
	return &hub{
		peers: make(map[string]map[*peer]struct{}),
		inbox: make(chan Inbound, 64),
	}
}

func (h *hub) add(userID string, p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.peers[userID] == nil {
		h.peers[userID] = make(map[*peer]struct{})
	}
	h.peers[userID][p] = struct{}{}
}

func (h *hub) remove(userID string, p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers[userID], p)
	if len(h.peers[userID]) == 0 {
		delete(h.peers, userID)
	}
}

func (h *hub) snapshot(userID string) []*peer {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*peer, 0, len(h.peers[userID]))
	for p := range h.peers[userID] {
		out = append(out, p)
	}
	return out
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWS authenticates with the token query parameter, like the real server.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	s.mu.RLock()
	userID, ok := s.tokens[token]
	s.mu.RUnlock()
	if token == "" || !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("upgrade failed", "err", err)
		return
	}
	p := &peer{conn: conn}
	s.hub.add(userID, p)
	s.log.Debug("socket opened", "user", userID)

	defer func() {
		s.hub.remove(userID, p)
		_ = conn.Close()
		s.log.Debug("socket closed", "user", userID)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if json.Unmarshal(data, &msg) != nil || msg.Event == "" {
			continue
		}
		select {
		case s.hub.inbox <- Inbound{UserID: userID, Event: msg.Event, Data: msg.Data}:
		default:
		}
	}
}

// Push sends {"event","data"} to every socket of userID and returns how many got it.
func (s *Server) Push(userID, event string, data any) int {
	frame, err := json.Marshal(struct {
		Event string `json:"event"`
		Data  any    `json:"data,omitempty"`
	}{event, data})
	if err != nil {
		s.log.Error("push encode", "err", err)
		return 0
	}
	n := 0
	for _, p := range s.hub.snapshot(userID) {
		if err := p.write(frame); err != nil {
			s.log.Debug("push failed", "user", userID, "err", err)
			continue
		}
		n++
	}
	return n
}

// PushRaw writes frame unmodified, for exercising client-side decoding.
func (s *Server) PushRaw(userID string, frame []byte) int {
	n := 0
	for _, p := range s.hub.snapshot(userID) {
		if p.write(frame) == nil {
			n++
		}
	}
	return n
}

// Connections reports how many sockets userID currently holds.
func (s *Server) Connections(userID string) int {
	return len(s.hub.snapshot(userID))
}

// DropConnections closes userID's sockets without a close frame.
func (s *Server) DropConnections(userID string) {
	for _, p := range s.hub.snapshot(userID) {
		_ = p.conn.Close()
	}
}

// Inbox delivers frames received from clients. Frames are dropped when nobody reads.
func (s *Server) Inbox() <-chan Inbound {
	return s.hub.inbox
}
