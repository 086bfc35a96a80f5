package rooms

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/horriblebox/horriblebox/game"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type watcher struct {
	conn *websocket.Conn
	send chan game.Room
}

// WatchHub fans room snapshots out to websocket spectators, one set of
// watchers per room code. Game clients converge by polling; the feed is a
// read-only convenience on top.
type WatchHub struct {
	mu       sync.Mutex
	watchers map[string]map[*watcher]bool
}

func newWatchHub() *WatchHub {
	return &WatchHub{
		watchers: make(map[string]map[*watcher]bool),
	}
}

func (h *WatchHub) add(code string, w *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.watchers[code]
	if !ok {
		set = make(map[*watcher]bool)
		h.watchers[code] = set
	}
	set[w] = true
}

func (h *WatchHub) remove(code string, w *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.watchers[code]
	if !ok {
		return
	}
	if set[w] {
		delete(set, w)
		close(w.send)
	}
	if len(set) == 0 {
		delete(h.watchers, code)
	}
}

// Broadcast sends a room snapshot to every watcher of its code. Watchers that
// can't keep up are dropped rather than blocking the writer.
func (h *WatchHub) Broadcast(code string, room game.Room) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for w := range h.watchers[code] {
		select {
		case w.send <- room:
		default:
			delete(h.watchers[code], w)
			close(w.send)
		}
	}
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	code := game.NormalizeCode(ps.ByName("code"))

	room, err := s.store.Get(code)
	if err != nil {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logf("ROOMS: Watch upgrade failed for %s: %v", code, err)
		return
	}

	wt := &watcher{
		conn: conn,
		send: make(chan game.Room, 8),
	}

	s.hub.add(code, wt)
	s.logf("ROOMS: Watcher connected to %s", code)

	// Current snapshot first, so late watchers don't wait for a mutation.
	wt.send <- room

	go wt.writePump()
	wt.readPump(s.hub, code)
}

// readPump discards inbound frames until the peer goes away; the feed is
// one-directional.
func (wt *watcher) readPump(h *WatchHub, code string) {
	defer func() {
		h.remove(code, wt)
		_ = wt.conn.Close()
	}()

	for {
		if _, _, err := wt.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (wt *watcher) writePump() {
	defer wt.conn.Close()

	for room := range wt.send {
		if err := wt.conn.WriteJSON(Response{Room: &room}); err != nil {
			return
		}
	}
}
